// workflow/monitor.go
package workflow

import (
	"context"
	"time"

	"assettrack/models"
	"assettrack/store"
)

// Monitor is the read-only projection of issuances still waiting on
// signatures. It has no side effects and may be polled at any cadence.
type Monitor struct {
	store         store.Store
	thresholdDays int
}

func NewMonitor(st store.Store, thresholdDays int) *Monitor {
	return &Monitor{store: st, thresholdDays: thresholdDays}
}

// PendingIssuance is one pending_signatures issuance with the derived
// overdue state and the names a polling consumer renders.
type PendingIssuance struct {
	Issuance    models.Issuance `json:"issuance"`
	HolderName  string          `json:"holderName,omitempty"`
	DaysPending int             `json:"daysPending"`
	Overdue     bool            `json:"overdue"`
}

// ListPending computes days pending (whole days elapsed since issue) and the
// overdue flag for every issuance in pending_signatures, ordered oldest
// first. The query re-runs per call.
func (m *Monitor) ListPending(ctx context.Context, now time.Time) ([]PendingIssuance, error) {
	issuances, err := m.store.ListIssuances(ctx, store.IssuanceFilter{Status: models.IssuancePendingSignatures})
	if err != nil {
		return nil, err
	}

	out := make([]PendingIssuance, 0, len(issuances))
	for _, i := range issuances {
		days := 0
		if d := now.Sub(i.IssuedDate); d > 0 {
			days = int(d.Hours() / 24)
		}
		p := PendingIssuance{
			Issuance:    i,
			DaysPending: days,
			Overdue:     days > m.thresholdDays,
		}
		if u, err := m.store.GetUser(ctx, i.UserID); err == nil {
			p.HolderName = u.FullName
		}
		out = append(out, p)
	}
	return out, nil
}
