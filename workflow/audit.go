// workflow/audit.go
package workflow

import (
	"context"
	"fmt"
	"time"

	"assettrack/apperr"
	"assettrack/models"
	"assettrack/store"
)

// Recorder is the append-only audit ledger. Every state-changing operation in
// the registry and the coordinator writes exactly one entry through it, inside
// the same transaction as the mutation.
type Recorder struct {
	store   store.Store
	publish func(models.AuditLog)
}

func NewRecorder(st store.Store) *Recorder {
	return &Recorder{store: st}
}

// Notify registers a consumer for appended entries (the websocket stream).
// The consumer is advisory; delivery is best-effort and must not block.
func (r *Recorder) Notify(fn func(models.AuditLog)) {
	r.publish = fn
}

// Append assigns id and timestamp when absent and persists the entry. A
// failure here is an integrity failure: the caller's whole mutation aborts.
func (r *Recorder) Append(ctx context.Context, e *models.AuditLog) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if err := r.store.AppendAudit(ctx, e); err != nil {
		return fmt.Errorf("audit append: %v: %w", err, apperr.ErrFatal)
	}
	if r.publish != nil {
		r.publish(*e)
	}
	return nil
}

// Recent returns entries ordered by timestamp descending.
func (r *Recorder) Recent(ctx context.Context, limit int64, f store.AuditFilter) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	f.Limit = limit
	return r.store.ListAudit(ctx, f)
}
