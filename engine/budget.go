/*
budget.go - Per-employee allocation-percentage budget ledger

PURPOSE:
  Tracks the sum of percentage allocated across an employee's active
  allocations and enforces the <=100% invariant at write time.

CHECK vs. APPLY:
  Allocation creates separate "can this succeed" from "apply the effect":
  CanReserve validates against a freshly read snapshot before the primary
  write commits; Apply adjusts the stored total after commit using the
  persisted allocation's percentage. Batched writes may not expose the
  in-flight record to the pre-check's own read, so the two phases never
  assume they see each other's state.

ZERO IS VALID:
  A 0% reservation is explicitly allowed. It reserves nothing but is not
  rejected as falsy input.

SEE ALSO:
  - hooks.go: Invokes the ledger from allocation pre/post hooks
  - errors.go: BudgetExceededError
*/
package engine

import (
	"context"
)

// =============================================================================
// BUDGET LEDGER
// =============================================================================

type BudgetLedger struct {
	store Store
}

func NewBudgetLedger(store Store) *BudgetLedger {
	return &BudgetLedger{store: store}
}

// CanReserve checks whether reserving pct for the employee would stay within
// budget. Read-only; the caller applies the effect after its write commits.
func (l *BudgetLedger) CanReserve(ctx context.Context, employeeID string, pct Percent) error {
	return l.CanReserveReplacing(ctx, employeeID, pct, PercentFromInt(0))
}

// CanReserveReplacing checks a reservation that simultaneously releases a
// prior contribution on the same employee (percentage change on an existing
// allocation): current - released + requested must not exceed 100.
func (l *BudgetLedger) CanReserveReplacing(ctx context.Context, employeeID string, requested, released Percent) error {
	emp, err := l.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return err
	}
	if emp == nil {
		return &NotFoundError{Entity: "employee", ID: employeeID}
	}

	projected := emp.AllocatedPercentage.Sub(released).ClampZero().Add(requested)
	if projected.GreaterThan(FullBudget) {
		return &BudgetExceededError{
			EmployeeID: employeeID,
			Current:    emp.AllocatedPercentage,
			Requested:  requested,
		}
	}
	return nil
}

// Reserve validates and applies in one step. Used by callers that are not
// split across a commit boundary (e.g., transfers).
func (l *BudgetLedger) Reserve(ctx context.Context, employeeID string, pct Percent) error {
	if err := l.CanReserve(ctx, employeeID, pct); err != nil {
		return err
	}
	return l.Apply(ctx, employeeID, pct)
}

// Release subtracts pct from the employee's allocated total, clamped at zero.
func (l *BudgetLedger) Release(ctx context.Context, employeeID string, pct Percent) error {
	return l.Apply(ctx, employeeID, pct.Neg())
}

// Apply adjusts the stored total by delta (positive or negative) without
// re-validating the ceiling. The post-write phase uses this: the pre-check
// already ran, and the primary write it guarded has committed.
func (l *BudgetLedger) Apply(ctx context.Context, employeeID string, delta Percent) error {
	emp, err := l.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return err
	}
	if emp == nil {
		return &NotFoundError{Entity: "employee", ID: employeeID}
	}

	next := emp.AllocatedPercentage.Add(delta).ClampZero()
	if next.Equal(emp.AllocatedPercentage) {
		return nil
	}
	return l.store.SetEmployeeAllocated(ctx, employeeID, next)
}

// Transfer moves a reservation from one employee to another, validating the
// destination's budget before touching either record.
func (l *BudgetLedger) Transfer(ctx context.Context, fromEmployeeID, toEmployeeID string, pct Percent) error {
	if err := l.CanReserve(ctx, toEmployeeID, pct); err != nil {
		return err
	}
	if err := l.Release(ctx, fromEmployeeID, pct); err != nil {
		return err
	}
	return l.Apply(ctx, toEmployeeID, pct)
}
