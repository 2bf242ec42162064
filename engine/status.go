/*
status.go - Employee status state machine

PURPOSE:
  Derives each employee's display status (Bench / PreAllocated / Allocated /
  Resigned) from the joint set of their active allocations and the projects
  those allocations reference.

TRANSITION RULES (evaluated over ALL active allocations, not per-allocation):
  1. Resigned is absorbing - the guard sits at the top of Derive and nowhere else.
  2. An allocation "qualifies" only when both its own start date and its
     project's start date have passed. An allocation can be created before
     either formally begins; status reflects present reality, not plans.
  3. Any qualifying allocation on a project with a non-empty externalRef
     => Allocated (takes precedence over PreAllocated).
     Otherwise any qualifying allocation => PreAllocated.
  4. Active allocations but none qualifying yet => status left unchanged.
     No premature demotion to Bench.
  5. Zero active allocations => Bench. The write is skipped when the status
     is already correct; redundant rederivation must be a no-op.

SEE ALSO:
  - sweeper.go: Feeds the same rederivation after expiry transitions
  - hooks.go: Invokes Derive after allocation/project mutations
*/
package engine

import (
	"context"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// STATUS ENGINE
// =============================================================================

type StatusEngine struct {
	store Store
	log   *logrus.Logger
}

func NewStatusEngine(store Store, log *logrus.Logger) *StatusEngine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &StatusEngine{store: store, log: log}
}

// Derive recomputes one employee's status as of the given day.
// Returns the resulting status and whether a write happened.
func (s *StatusEngine) Derive(ctx context.Context, employeeID string, asOf Date) (EmployeeStatus, bool, error) {
	emp, err := s.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return "", false, err
	}
	if emp == nil {
		return "", false, &NotFoundError{Entity: "employee", ID: employeeID}
	}

	// Resigned is absorbing. The single guard for the whole engine.
	if emp.Status == StatusResigned {
		return StatusResigned, false, nil
	}

	active, err := s.store.ListAllocationsByEmployee(ctx, employeeID, AllocationActive)
	if err != nil {
		return emp.Status, false, err
	}

	if len(active) == 0 {
		if emp.Status == StatusBench {
			return StatusBench, false, nil
		}
		if err := s.store.SetEmployeeStatus(ctx, employeeID, StatusBench); err != nil {
			return emp.Status, false, err
		}
		return StatusBench, true, nil
	}

	anyQualifying := false
	anyExternal := false
	for _, a := range active {
		if a.StartDate.After(asOf) {
			continue // allocation not started
		}
		proj, err := s.store.GetProject(ctx, a.ProjectID)
		if err != nil {
			return emp.Status, false, err
		}
		if proj == nil {
			s.log.WithFields(logrus.Fields{
				"allocation": a.ID,
				"project":    a.ProjectID,
			}).Warn("active allocation references missing project; skipped in status derivation")
			continue
		}
		if proj.StartDate.After(asOf) {
			continue // project not started
		}
		anyQualifying = true
		if proj.ExternalRef != "" {
			anyExternal = true
			break
		}
	}

	if !anyQualifying {
		// All dates still in the future: keep whatever the status was.
		return emp.Status, false, nil
	}

	next := StatusPreAllocated
	if anyExternal {
		next = StatusAllocated
	}
	if next == emp.Status {
		return next, false, nil
	}
	if err := s.store.SetEmployeeStatus(ctx, employeeID, next); err != nil {
		return emp.Status, false, err
	}
	return next, true, nil
}

// DeriveMany rederives a deduplicated set of employees, logging and
// continuing on individual failures. Returns the number of status writes.
func (s *StatusEngine) DeriveMany(ctx context.Context, employeeIDs []string, asOf Date) int {
	seen := make(map[string]bool, len(employeeIDs))
	changed := 0
	for _, id := range employeeIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		_, didChange, err := s.Derive(ctx, id, asOf)
		if err != nil {
			s.log.WithField("employee", id).WithError(err).Warn("status derivation failed")
			continue
		}
		if didChange {
			changed++
		}
	}
	return changed
}

// DeriveForProject rederives every employee holding an allocation on the
// project. Run after project updates that change externalRef or startDate.
func (s *StatusEngine) DeriveForProject(ctx context.Context, projectID string, asOf Date) error {
	allocations, err := s.store.ListAllocationsByProject(ctx, projectID, "")
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(allocations))
	for _, a := range allocations {
		ids = append(ids, a.EmployeeID)
	}
	s.DeriveMany(ctx, ids, asOf)
	return nil
}
