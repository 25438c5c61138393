package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError reports malformed input. It is surfaced to the caller and
// never retried.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Msg
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Msg)
}

// Validationf builds a *ValidationError for the given field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// ConflictKind distinguishes the conflict outcomes a caller can act on.
type ConflictKind int

const (
	// ConflictAlreadyApplied means the request was processed before; nothing changed.
	ConflictAlreadyApplied ConflictKind = iota + 1
	// ConflictKeyReused means an idempotency key was replayed with a different request.
	ConflictKeyReused
	// ConflictStale means the ledger changed underneath the request; retry with fresh state.
	ConflictStale
)

func (k ConflictKind) String() string {
	switch k {
	case ConflictAlreadyApplied:
		return "already_applied"
	case ConflictKeyReused:
		return "key_reused"
	case ConflictStale:
		return "stale_state"
	default:
		return "unknown"
	}
}

// ConflictError is returned when a mutation cannot be applied because of the
// current ledger state rather than because of bad input.
type ConflictError struct {
	Kind ConflictKind
	Msg  string
	// ExistingID references the record that already satisfied the request, if any.
	ExistingID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict (%s): %s", e.Kind, e.Msg)
}

// InvariantViolation is an internal failure: a mutation would break the
// zero-sum rule or a split no longer adds up to its expense.
type InvariantViolation struct {
	Invariant string
	Residual  decimal.Decimal
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s (residual %s)", e.Invariant, e.Residual.String())
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// AsConflict returns the wrapped *ConflictError, if any.
func AsConflict(err error) (*ConflictError, bool) {
	var c *ConflictError
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}

// IsInvariantViolation reports whether err wraps an *InvariantViolation.
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}
