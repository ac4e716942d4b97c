package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidStatus       = errors.New("invalid status for operation")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrTeacherNotQualified = errors.New("teacher does not teach subject")
	ErrInvalidSchedule     = errors.New("invalid schedule")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrDisputeNotOpen      = errors.New("no open dispute")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrForbidden           = errors.New("not permitted for this participant")
	// ErrStaleState means a conditional update found the row in a different state than it was read in.
	ErrStaleState = errors.New("stale state")
)

// PreconditionError is a rejected operation that performed no mutation.
type PreconditionError struct {
	Op     string
	Err    error
	Reason string
}

func (e *PreconditionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Reason)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

func Precondition(op string, err error, format string, args ...any) error {
	return &PreconditionError{Op: op, Err: err, Reason: fmt.Sprintf(format, args...)}
}

func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
