/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All domain error types in one place. Pre-check hooks reject mutations with
  these; the api package translates them to HTTP status codes at the boundary.

ERROR CATEGORIES:
  1. Business-rule rejections - budget exceeded, capacity exceeded
  2. Validation errors - malformed percentage, dates outside project bounds
  3. Reference errors - missing employee/project

USAGE:
  Callers branch with errors.Is / errors.As:

    var budgetErr *engine.BudgetExceededError
    if errors.As(err, &budgetErr) {
        // budgetErr.Current, budgetErr.Requested, ...
    }

SEE ALSO:
  - hooks.go: Pre-check handlers that raise these
  - api/handlers.go: Translation to HTTP statuses
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrBudgetExceeded is returned when a reservation would push an
	// employee's allocated percentage above 100.
	ErrBudgetExceeded = errors.New("allocation budget exceeded")

	// ErrCapacityExceeded is returned when a project already has as many
	// active allocations as it requires resources.
	ErrCapacityExceeded = errors.New("project capacity exceeded")

	// ErrDateRange is returned when allocation dates fall outside the
	// project bounds or start is after end.
	ErrDateRange = errors.New("date range violation")

	// ErrNotFound is returned when a referenced employee/project/record is missing.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed input (non-integer or
	// out-of-range percentage, missing references).
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// BudgetExceededError details a budget rejection. Never auto-retried.
type BudgetExceededError struct {
	EmployeeID string
	Current    Percent
	Requested  Percent
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("employee %s over budget: allocated %s%%, requested %s%% more (limit 100%%)",
		e.EmployeeID, e.Current, e.Requested)
}

func (e *BudgetExceededError) Unwrap() error { return ErrBudgetExceeded }

// CapacityExceededError details a project headcount rejection.
type CapacityExceededError struct {
	ProjectID string
	Required  int
	Allocated int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("project %s at capacity: %d of %d resources allocated",
		e.ProjectID, e.Allocated, e.Required)
}

func (e *CapacityExceededError) Unwrap() error { return ErrCapacityExceeded }

// DateRangeError details an allocation-date rejection.
type DateRangeError struct {
	Field string // "startDate" or "endDate"
	Value Date
	Min   Date
	Max   Date
}

func (e *DateRangeError) Error() string {
	return fmt.Sprintf("%s %s outside allowed range [%s, %s]", e.Field, e.Value, e.Min, e.Max)
}

func (e *DateRangeError) Unwrap() error { return ErrDateRange }

// NotFoundError identifies the missing reference.
type NotFoundError struct {
	Entity string // "employee", "project", "demand", "allocation"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError echoes the offending value back to the caller.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is a rejection of client input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrBudgetExceeded) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrDateRange) ||
		errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
