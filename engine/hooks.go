/*
hooks.go - Typed mutation observers and the reconciling implementations

PURPOSE:
  The entry points of the reconciliation engine. Every Allocation, Demand,
  and Project mutation flows through a typed observer: Before* handlers
  validate against freshly read state and may reject the operation with a
  domain error; After* handlers run once the primary write has committed,
  cannot abort, and log failures instead of re-surfacing them.

WHY TYPED OBSERVERS:
  One interface per entity with explicit BeforeCreate/AfterCreate/... methods,
  composed by a Dispatcher resolved at startup. No string-keyed handler
  registration, no runtime reflection.

BEST-EFFORT AFTER PHASE:
  Rolling back an already-committed primary write is not attempted. A failed
  cascade leaves derived fields stale until the next recompute; the sweeper
  and the read-time self-heal exist precisely to correct that drift.

SEE ALSO:
  - engine.go: Orchestrates store writes around these hooks
  - snapshot.go: Pre-image passing between the two phases
*/
package engine

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// OPERATIONS
// =============================================================================

type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// =============================================================================
// OBSERVER INTERFACES - One per entity, resolved at startup
// =============================================================================

// AllocationObserver watches allocation mutations. BeforeCreate and
// BeforeUpdate may normalize the record in place (defaults, date auto-fill).
type AllocationObserver interface {
	BeforeCreate(ctx context.Context, next *Allocation, asOf Date) error
	AfterCreate(ctx context.Context, created Allocation, asOf Date)
	BeforeUpdate(ctx context.Context, old Allocation, next *Allocation, asOf Date) error
	AfterUpdate(ctx context.Context, old, updated Allocation, asOf Date)
	BeforeDelete(ctx context.Context, old Allocation, asOf Date) error
	AfterDelete(ctx context.Context, old Allocation, asOf Date)
}

// DemandObserver watches demand mutations. Every demand change reprices the
// owning project's requiredResources.
type DemandObserver interface {
	BeforeCreate(ctx context.Context, next *Demand) error
	AfterCreate(ctx context.Context, created Demand)
	BeforeUpdate(ctx context.Context, old Demand, next *Demand) error
	AfterUpdate(ctx context.Context, old, updated Demand)
	AfterDelete(ctx context.Context, old Demand)
}

// ProjectObserver watches project updates. A transition to Closed cascades
// into the project's active allocations.
type ProjectObserver interface {
	BeforeUpdate(ctx context.Context, old Project, next *Project, asOf Date) error
	AfterUpdate(ctx context.Context, old, updated Project, asOf Date)
}

// EmployeeObserver self-heals stale state as a side effect of single-record
// reads, so no global scheduled job is required for correctness.
type EmployeeObserver interface {
	AfterRead(ctx context.Context, employeeID string, asOf Date)
}

// Dispatcher holds the observer for each entity. Built once at startup.
type Dispatcher struct {
	Allocations AllocationObserver
	Demands     DemandObserver
	Projects    ProjectObserver
	Employees   EmployeeObserver
}

// =============================================================================
// ALLOCATION HOOKS
// =============================================================================

type allocationHooks struct {
	store   Store
	ledger  *BudgetLedger
	counter *ResourceCounter
	status  *StatusEngine
	log     *logrus.Logger
}

func (h *allocationHooks) BeforeCreate(ctx context.Context, next *Allocation, asOf Date) error {
	if next.Status == "" {
		next.Status = AllocationActive
	}
	if err := validatePercentage(next.Percentage); err != nil {
		return err
	}

	emp, err := h.store.GetEmployee(ctx, next.EmployeeID)
	if err != nil {
		return err
	}
	if emp == nil {
		return &NotFoundError{Entity: "employee", ID: next.EmployeeID}
	}

	proj, err := h.store.GetProject(ctx, next.ProjectID)
	if err != nil {
		return err
	}
	if proj == nil {
		return &NotFoundError{Entity: "project", ID: next.ProjectID}
	}

	if err := fillAndCheckDates(next, *proj); err != nil {
		return err
	}

	if next.IsActive() {
		if err := h.ledger.CanReserve(ctx, next.EmployeeID, next.Percentage); err != nil {
			return err
		}
		if err := h.counter.CheckCapacity(ctx, next.ProjectID); err != nil {
			return err
		}
	}
	return nil
}

func (h *allocationHooks) AfterCreate(ctx context.Context, created Allocation, asOf Date) {
	if created.IsActive() {
		// Apply uses the persisted record's percentage, not the pre-check's
		// view: under batched writes they are not guaranteed to agree.
		if err := h.ledger.Apply(ctx, created.EmployeeID, created.Percentage); err != nil {
			h.log.WithField("allocation", created.ID).WithError(err).Warn("budget apply after create failed")
		}
	}
	if err := h.counter.Recompute(ctx, created.ProjectID); err != nil {
		h.log.WithField("project", created.ProjectID).WithError(err).Warn("recompute after create failed")
	}
	if err := h.status.DeriveForProject(ctx, created.ProjectID, asOf); err != nil {
		h.log.WithField("project", created.ProjectID).WithError(err).Warn("status derivation after create failed")
	}
	h.status.DeriveMany(ctx, []string{created.EmployeeID}, asOf)
}

func (h *allocationHooks) BeforeUpdate(ctx context.Context, old Allocation, next *Allocation, asOf Date) error {
	if err := validatePercentage(next.Percentage); err != nil {
		return err
	}

	proj, err := h.store.GetProject(ctx, next.ProjectID)
	if err != nil {
		return err
	}
	if proj == nil {
		return &NotFoundError{Entity: "project", ID: next.ProjectID}
	}
	if err := fillAndCheckDates(next, *proj); err != nil {
		return err
	}

	if next.EmployeeID != old.EmployeeID {
		emp, err := h.store.GetEmployee(ctx, next.EmployeeID)
		if err != nil {
			return err
		}
		if emp == nil {
			return &NotFoundError{Entity: "employee", ID: next.EmployeeID}
		}
		if next.IsActive() {
			if err := h.ledger.CanReserve(ctx, next.EmployeeID, next.Percentage); err != nil {
				return err
			}
		}
	} else if !next.contribution().Equal(old.contribution()) {
		// Same employee: the old allocation's own contribution is subtracted
		// before validating the new total.
		if err := h.ledger.CanReserveReplacing(ctx, next.EmployeeID, next.contribution(), old.contribution()); err != nil {
			return err
		}
	}

	if next.ProjectID != old.ProjectID && next.IsActive() {
		if err := h.counter.CheckCapacity(ctx, next.ProjectID); err != nil {
			return err
		}
	}
	return nil
}

func (h *allocationHooks) AfterUpdate(ctx context.Context, old, updated Allocation, asOf Date) {
	if updated.EmployeeID == old.EmployeeID {
		delta := updated.contribution().Sub(old.contribution())
		if !delta.IsZero() {
			if err := h.ledger.Apply(ctx, updated.EmployeeID, delta); err != nil {
				h.log.WithField("employee", updated.EmployeeID).WithError(err).Warn("budget apply after update failed")
			}
		}
	} else {
		if err := h.ledger.Release(ctx, old.EmployeeID, old.contribution()); err != nil {
			h.log.WithField("employee", old.EmployeeID).WithError(err).Warn("budget release after update failed")
		}
		if err := h.ledger.Apply(ctx, updated.EmployeeID, updated.contribution()); err != nil {
			h.log.WithField("employee", updated.EmployeeID).WithError(err).Warn("budget apply after update failed")
		}
	}

	if err := h.counter.Recompute(ctx, old.ProjectID); err != nil {
		h.log.WithField("project", old.ProjectID).WithError(err).Warn("recompute after update failed")
	}
	if updated.ProjectID != old.ProjectID {
		if err := h.counter.Recompute(ctx, updated.ProjectID); err != nil {
			h.log.WithField("project", updated.ProjectID).WithError(err).Warn("recompute after update failed")
		}
	}

	h.status.DeriveMany(ctx, []string{old.EmployeeID, updated.EmployeeID}, asOf)
}

func (h *allocationHooks) BeforeDelete(ctx context.Context, old Allocation, asOf Date) error {
	return nil
}

func (h *allocationHooks) AfterDelete(ctx context.Context, old Allocation, asOf Date) {
	// Release is unconditional on delete, independent of the allocation's
	// status; the ledger clamps at zero.
	if err := h.ledger.Release(ctx, old.EmployeeID, old.Percentage); err != nil {
		h.log.WithField("employee", old.EmployeeID).WithError(err).Warn("budget release after delete failed")
	}
	if err := h.counter.Recompute(ctx, old.ProjectID); err != nil {
		h.log.WithField("project", old.ProjectID).WithError(err).Warn("recompute after delete failed")
	}
	h.status.DeriveMany(ctx, []string{old.EmployeeID}, asOf)
}

// =============================================================================
// DEMAND HOOKS
// =============================================================================

type demandHooks struct {
	store   Store
	counter *ResourceCounter
	log     *logrus.Logger
}

func (h *demandHooks) BeforeCreate(ctx context.Context, next *Demand) error {
	return h.check(ctx, next)
}

func (h *demandHooks) BeforeUpdate(ctx context.Context, old Demand, next *Demand) error {
	return h.check(ctx, next)
}

func (h *demandHooks) check(ctx context.Context, d *Demand) error {
	if d.Quantity < 0 {
		return &ValidationError{Field: "quantity", Value: strconv.Itoa(d.Quantity), Reason: "must be non-negative"}
	}
	proj, err := h.store.GetProject(ctx, d.ProjectID)
	if err != nil {
		return err
	}
	if proj == nil {
		return &NotFoundError{Entity: "project", ID: d.ProjectID}
	}
	return nil
}

func (h *demandHooks) AfterCreate(ctx context.Context, created Demand) { h.reprice(ctx, created.ProjectID) }

func (h *demandHooks) AfterUpdate(ctx context.Context, old, updated Demand) {
	h.reprice(ctx, updated.ProjectID)
}

func (h *demandHooks) AfterDelete(ctx context.Context, old Demand) { h.reprice(ctx, old.ProjectID) }

func (h *demandHooks) reprice(ctx context.Context, projectID string) {
	if err := h.counter.RecomputeRequired(ctx, projectID); err != nil {
		h.log.WithField("project", projectID).WithError(err).Warn("required-resources recompute failed")
	}
	if err := h.counter.Recompute(ctx, projectID); err != nil {
		h.log.WithField("project", projectID).WithError(err).Warn("recompute after demand change failed")
	}
}

// =============================================================================
// PROJECT HOOKS
// =============================================================================

type projectHooks struct {
	store   Store
	counter *ResourceCounter
	status  *StatusEngine
	sweeper *Sweeper
	log     *logrus.Logger
}

func (h *projectHooks) BeforeUpdate(ctx context.Context, old Project, next *Project, asOf Date) error {
	if !next.StartDate.IsZero() && !next.EndDate.IsZero() && next.EndDate.Before(next.StartDate) {
		return &DateRangeError{Field: "endDate", Value: next.EndDate, Min: next.StartDate, Max: next.EndDate}
	}
	return nil
}

func (h *projectHooks) AfterUpdate(ctx context.Context, old, updated Project, asOf Date) {
	if updated.Status == ProjectClosed && old.Status != ProjectClosed {
		employees, err := h.sweeper.CompleteProjectAllocations(ctx, h.store, updated.ID)
		if err != nil {
			h.log.WithField("project", updated.ID).WithError(err).Warn("cascade completion on close failed")
		}
		h.status.DeriveMany(ctx, employees, asOf)
	}

	if err := h.counter.Recompute(ctx, updated.ID); err != nil {
		h.log.WithField("project", updated.ID).WithError(err).Warn("recompute after project update failed")
	}

	if updated.ExternalRef != old.ExternalRef || !updated.StartDate.Equal(old.StartDate) {
		if err := h.status.DeriveForProject(ctx, updated.ID, asOf); err != nil {
			h.log.WithField("project", updated.ID).WithError(err).Warn("status derivation after project update failed")
		}
	}
}

// =============================================================================
// EMPLOYEE HOOKS
// =============================================================================

type employeeHooks struct {
	status  *StatusEngine
	sweeper *Sweeper
	log     *logrus.Logger
}

func (h *employeeHooks) AfterRead(ctx context.Context, employeeID string, asOf Date) {
	if err := h.sweeper.SweepEmployee(ctx, employeeID, asOf); err != nil {
		h.log.WithField("employee", employeeID).WithError(err).Warn("read-time sweep failed")
	}
	if _, _, err := h.status.Derive(ctx, employeeID, asOf); err != nil {
		h.log.WithField("employee", employeeID).WithError(err).Warn("read-time status derivation failed")
	}
}

// =============================================================================
// SHARED VALIDATION
// =============================================================================

// validatePercentage enforces a whole number in [0,100]. Zero is valid.
func validatePercentage(p Percent) error {
	if !p.Value.IsInteger() {
		return &ValidationError{Field: "percentage", Value: p.String(), Reason: "must be a whole number"}
	}
	if p.IsNegative() || p.GreaterThan(FullBudget) {
		return &ValidationError{Field: "percentage", Value: p.String(), Reason: "must be between 0 and 100"}
	}
	return nil
}

// fillAndCheckDates defaults missing allocation dates from the project and
// validates the window lies within the project bounds.
func fillAndCheckDates(a *Allocation, proj Project) error {
	if a.StartDate.IsZero() {
		a.StartDate = proj.StartDate
	}
	if a.EndDate.IsZero() {
		a.EndDate = proj.EndDate
	}

	if !a.StartDate.IsZero() && !a.EndDate.IsZero() && a.EndDate.Before(a.StartDate) {
		return &DateRangeError{Field: "endDate", Value: a.EndDate, Min: a.StartDate, Max: proj.EndDate}
	}
	if !proj.StartDate.IsZero() && a.StartDate.Before(proj.StartDate) {
		return &DateRangeError{Field: "startDate", Value: a.StartDate, Min: proj.StartDate, Max: proj.EndDate}
	}
	if !proj.EndDate.IsZero() && a.EndDate.After(proj.EndDate) {
		return &DateRangeError{Field: "endDate", Value: a.EndDate, Min: proj.StartDate, Max: proj.EndDate}
	}
	return nil
}
