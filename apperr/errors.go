// apperr/errors.go
//
// Shared error taxonomy. Handlers translate these into HTTP statuses; the
// workflow and store packages return them wrapped with context via fmt.Errorf
// and %w so callers can test with errors.Is / errors.As.
package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound: a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict: a state-machine precondition was violated (double issue,
	// cancel after activation, return while not in use, delete while issued).
	ErrConflict = errors.New("conflict")

	// ErrDuplicateAssetTag: the asset business key already exists.
	ErrDuplicateAssetTag = errors.New("duplicate asset tag")

	// ErrAlreadySigned: the named document requirement was signed earlier.
	ErrAlreadySigned = errors.New("document already signed")

	// ErrUnavailable: a dependency (storage, directory) is unreachable.
	// Retryable with backoff; details are logged server-side only.
	ErrUnavailable = errors.New("service unavailable")

	// ErrFatal: integrity failure, e.g. the audit entry could not be
	// appended. The whole mutation is aborted.
	ErrFatal = errors.New("fatal")
)

// ValidationError carries per-field messages for malformed input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidation builds a single-field validation error.
func NewValidation(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
