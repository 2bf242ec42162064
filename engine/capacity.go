/*
capacity.go - Per-project resource counter

PURPOSE:
  Tracks required vs. actively-allocated resource counts per project.
  Recompute is a full, idempotent rederivation - safe to call redundantly,
  which is what makes the best-effort post-commit policy tolerable: any
  missed update is corrected by the next recompute over the same project.

TWO REQUIRED-RESOURCES PATHS:
  requiredResources is normally the sum of Demand quantities under the
  project (RecomputeRequired, run on every Demand mutation). A project can
  instead carry a manually set value (ManualRequired); the demand-driven
  recompute then honors the manual value and logs a warning. Recompute never
  touches requiredResources either way.

SEE ALSO:
  - hooks.go: CheckCapacity runs as an allocation pre-check, not in Recompute
  - status.go: The other post-write rederivation
*/
package engine

import (
	"context"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// RESOURCE COUNTER
// =============================================================================

type ResourceCounter struct {
	store Store
	log   *logrus.Logger
}

func NewResourceCounter(store Store, log *logrus.Logger) *ResourceCounter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ResourceCounter{store: store, log: log}
}

// Recompute rederives allocatedResources and toBeAllocated for a project
// from its Active allocations. requiredResources is read as stored.
func (c *ResourceCounter) Recompute(ctx context.Context, projectID string) error {
	proj, err := c.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if proj == nil {
		return &NotFoundError{Entity: "project", ID: projectID}
	}

	active, err := c.store.ListAllocationsByProject(ctx, projectID, AllocationActive)
	if err != nil {
		return err
	}

	allocated := len(active)
	toBeAllocated := proj.RequiredResources - allocated
	if toBeAllocated < 0 {
		toBeAllocated = 0
	}

	if allocated == proj.AllocatedResources && toBeAllocated == proj.ToBeAllocated {
		return nil
	}
	return c.store.SetProjectCounts(ctx, projectID, allocated, toBeAllocated)
}

// RecomputeRequired sets requiredResources to the sum of Demand quantities
// under the project. Run after every Demand create/update/delete.
func (c *ResourceCounter) RecomputeRequired(ctx context.Context, projectID string) error {
	proj, err := c.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if proj == nil {
		return &NotFoundError{Entity: "project", ID: projectID}
	}

	demands, err := c.store.ListDemandsByProject(ctx, projectID)
	if err != nil {
		return err
	}

	sum := 0
	for _, d := range demands {
		sum += d.Quantity
	}

	if proj.ManualRequired {
		// Manual override wins over the demand sum; see package doc.
		c.log.WithFields(logrus.Fields{
			"project":    projectID,
			"manual":     proj.RequiredResources,
			"demand_sum": sum,
		}).Warn("project keeps manually set requiredResources over demand sum")
		return nil
	}

	toBeAllocated := sum - proj.AllocatedResources
	if toBeAllocated < 0 {
		toBeAllocated = 0
	}
	if sum == proj.RequiredResources && toBeAllocated == proj.ToBeAllocated {
		return nil
	}
	return c.store.SetProjectRequired(ctx, projectID, sum, toBeAllocated)
}

// CheckCapacity is the allocation pre-check: one more active allocation must
// still fit within requiredResources. The count is read fresh, not trusted
// from the project's stored derived field alone.
func (c *ResourceCounter) CheckCapacity(ctx context.Context, projectID string) error {
	proj, err := c.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if proj == nil {
		return &NotFoundError{Entity: "project", ID: projectID}
	}

	active, err := c.store.ListAllocationsByProject(ctx, projectID, AllocationActive)
	if err != nil {
		return err
	}

	if len(active)+1 > proj.RequiredResources {
		return &CapacityExceededError{
			ProjectID: projectID,
			Required:  proj.RequiredResources,
			Allocated: len(active),
		}
	}
	return nil
}

// Coverage computes the read-time view of a demand: how many active
// allocations on the project carry the demanded skill.
func (c *ResourceCounter) Coverage(ctx context.Context, d Demand) (DemandCoverage, error) {
	cov := DemandCoverage{Demand: d}

	active, err := c.store.ListAllocationsByProject(ctx, d.ProjectID, AllocationActive)
	if err != nil {
		return cov, err
	}

	for _, a := range active {
		emp, err := c.store.GetEmployee(ctx, a.EmployeeID)
		if err != nil {
			return cov, err
		}
		if emp != nil && emp.HasSkill(d.Skill) {
			cov.AllocatedCount++
		}
	}

	cov.Remaining = d.Quantity - cov.AllocatedCount
	if cov.Remaining < 0 {
		cov.Remaining = 0
	}
	return cov, nil
}
