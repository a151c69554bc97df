/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All engine error types in one place. The taxonomy is deliberately small:
  most bad input is coerced, not rejected (see coerce.go). The errors that
  remain are caller errors (immutable period, missing period) and surfaced
  persistence failures - a missing summary is always preferred over a
  silently wrong one.

PROPAGATION:
  A failure for one employee never aborts the batch: engine.Recompute
  collects per-employee failures in Result.Failures and keeps going.

SEE ALSO:
  - engine.go: produces EmployeeError values
*/
package payroll

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPeriodImmutable is returned when a recompute targets a posted or
	// finalized period. This is a caller error, checked before any
	// per-employee work starts; it is never retryable.
	ErrPeriodImmutable = errors.New("period is posted/finalized and immutable")

	// ErrPeriodNotFound is returned when a referenced period doesn't exist.
	ErrPeriodNotFound = errors.New("pay period not found")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrSummaryWrite wraps a persistence failure during summary upsert.
	ErrSummaryWrite = errors.New("summary write failed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// EmployeeError ties a failure to the employee whose computation produced it.
type EmployeeError struct {
	EmployeeID EmployeeID
	Err        error
}

func (e *EmployeeError) Error() string {
	return fmt.Sprintf("employee %s: %v", e.EmployeeID, e.Err)
}

func (e *EmployeeError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrPeriodImmutable) ||
		errors.Is(err, ErrPeriodNotFound) ||
		errors.Is(err, ErrEmployeeNotFound)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPeriodNotFound) ||
		errors.Is(err, ErrEmployeeNotFound)
}
