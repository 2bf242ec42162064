/*
sweeper.go - Time-driven expiry pass

PURPOSE:
  Dates pass without an explicit write. The sweeper is the reconciliation
  pass that notices: allocations past their end date become Completed,
  projects past their end date become Closed, and the budget ledger,
  resource counter, and status machine are cascaded accordingly.

IDEMPOTENCE:
  Running the sweep twice in a row produces no additional writes on the
  second pass. Expired allocations are no longer Active, so they fall out
  of the scan; recompute and rederivation are no-ops when state already
  matches. Safe to invoke concurrently with itself.

TWO PHASES:
  1. Scan Active allocations; complete those with endDate < asOf.
  2. Scan Planned/Active projects; close those with endDate < asOf,
     cascade-completing every still-Active allocation under them.
  Then one deduplicated status rederivation over every touched employee.

SEE ALSO:
  - api/scheduler.go: Periodic background invocation
  - engine.go: GetEmployee runs the single-employee variant on read
*/
package engine

import (
	"context"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// SWEEP RESULT
// =============================================================================

// SweepResult reports what a sweep changed.
type SweepResult struct {
	AllocationsCompleted int
	ProjectsClosed       int
	EmployeesAffected    int
}

// =============================================================================
// EXPIRY SWEEPER
// =============================================================================

type Sweeper struct {
	store   Store
	ledger  *BudgetLedger
	counter *ResourceCounter
	status  *StatusEngine
	log     *logrus.Logger
}

func NewSweeper(store Store, ledger *BudgetLedger, counter *ResourceCounter, status *StatusEngine, log *logrus.Logger) *Sweeper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sweeper{store: store, ledger: ledger, counter: counter, status: status, log: log}
}

// Run executes the two-phase sweep as of the given day.
func (s *Sweeper) Run(ctx context.Context, asOf Date) (SweepResult, error) {
	var result SweepResult
	touchedProjects := make(map[string]bool)
	touchedEmployees := make(map[string]bool)

	// Phase 1: expire allocations past their end date.
	active, err := s.store.ListActiveAllocations(ctx)
	if err != nil {
		return result, err
	}
	for _, a := range active {
		if a.EndDate.IsZero() || !a.EndDate.Before(asOf) {
			continue
		}
		if err := s.completeAllocation(ctx, a); err != nil {
			s.log.WithField("allocation", a.ID).WithError(err).Warn("failed to complete expired allocation")
			continue
		}
		result.AllocationsCompleted++
		touchedProjects[a.ProjectID] = true
		touchedEmployees[a.EmployeeID] = true
	}

	// Phase 2: close projects past their end date, cascading into their
	// remaining active allocations.
	open, err := s.store.ListOpenProjects(ctx)
	if err != nil {
		return result, err
	}
	for _, p := range open {
		if p.EndDate.IsZero() || !p.EndDate.Before(asOf) {
			continue
		}
		if err := s.store.SetProjectStatus(ctx, p.ID, ProjectClosed); err != nil {
			s.log.WithField("project", p.ID).WithError(err).Warn("failed to close expired project")
			continue
		}
		result.ProjectsClosed++
		touchedProjects[p.ID] = true

		employees, err := s.CompleteProjectAllocations(ctx, s.store, p.ID)
		if err != nil {
			s.log.WithField("project", p.ID).WithError(err).Warn("cascade completion failed")
		}
		for _, id := range employees {
			touchedEmployees[id] = true
			result.AllocationsCompleted++
		}
	}

	// Recompute counts for every touched project, then rederive every
	// touched employee once.
	for id := range touchedProjects {
		if err := s.counter.Recompute(ctx, id); err != nil {
			s.log.WithField("project", id).WithError(err).Warn("recompute after sweep failed")
		}
	}
	ids := make([]string, 0, len(touchedEmployees))
	for id := range touchedEmployees {
		ids = append(ids, id)
	}
	s.status.DeriveMany(ctx, ids, asOf)
	result.EmployeesAffected = len(ids)

	return result, nil
}

// SweepEmployee is the lightweight single-employee variant, run as a side
// effect of reading one employee record. It checks only that employee's
// allocations, so a read never triggers a full-table scan.
func (s *Sweeper) SweepEmployee(ctx context.Context, employeeID string, asOf Date) error {
	active, err := s.store.ListAllocationsByEmployee(ctx, employeeID, AllocationActive)
	if err != nil {
		return err
	}

	touchedProjects := make(map[string]bool)
	expired := 0
	for _, a := range active {
		if a.EndDate.IsZero() || !a.EndDate.Before(asOf) {
			continue
		}
		if err := s.completeAllocation(ctx, a); err != nil {
			s.log.WithField("allocation", a.ID).WithError(err).Warn("failed to complete expired allocation")
			continue
		}
		expired++
		touchedProjects[a.ProjectID] = true
	}

	for id := range touchedProjects {
		if err := s.counter.Recompute(ctx, id); err != nil {
			s.log.WithField("project", id).WithError(err).Warn("recompute after sweep failed")
		}
	}
	if expired > 0 {
		if _, _, err := s.status.Derive(ctx, employeeID, asOf); err != nil {
			return err
		}
	}
	return nil
}

// CompleteProjectAllocations completes every still-Active allocation under a
// project, releasing each employee's budget. Returns the affected employee
// IDs (with repeats; callers deduplicate). Shared by the sweep's project
// phase and the project-close mutation hook.
func (s *Sweeper) CompleteProjectAllocations(ctx context.Context, st Store, projectID string) ([]string, error) {
	active, err := st.ListAllocationsByProject(ctx, projectID, AllocationActive)
	if err != nil {
		return nil, err
	}

	var employees []string
	for _, a := range active {
		if err := s.completeAllocation(ctx, a); err != nil {
			s.log.WithField("allocation", a.ID).WithError(err).Warn("failed to complete allocation under closing project")
			continue
		}
		employees = append(employees, a.EmployeeID)
	}
	return employees, nil
}

// completeAllocation flips one Active allocation to Completed and releases
// its share of the employee's budget.
func (s *Sweeper) completeAllocation(ctx context.Context, a Allocation) error {
	if err := s.store.SetAllocationStatus(ctx, a.ID, AllocationCompleted); err != nil {
		return err
	}
	if err := s.ledger.Release(ctx, a.EmployeeID, a.Percentage); err != nil {
		s.log.WithFields(logrus.Fields{
			"allocation": a.ID,
			"employee":   a.EmployeeID,
		}).WithError(err).Warn("budget release after completion failed")
	}
	return nil
}
