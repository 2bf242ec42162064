package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/allocation-engine/engine"
	"github.com/warp/allocation-engine/engine/store"
)

func newTestCounter(t *testing.T) (*engine.ResourceCounter, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	return engine.NewResourceCounter(st, testLogger()), st
}

func seedAllocation(t *testing.T, st *store.Memory, id, empID, projID string, pct int, status engine.AllocationStatus) {
	t.Helper()
	err := st.SaveAllocation(context.Background(), engine.Allocation{
		ID:         id,
		EmployeeID: empID,
		ProjectID:  projID,
		Percentage: engine.PercentFromInt(pct),
		Status:     status,
	})
	require.NoError(t, err)
}

// =============================================================================
// RECOMPUTE
// =============================================================================

func TestResourceCounter_Recompute_CountsOnlyActive(t *testing.T) {
	// GIVEN: A project with 2 active, 1 completed, 1 cancelled allocation
	// WHEN: Recomputing its counts
	// THEN: allocated=2, toBeAllocated=required-2

	counter, st := newTestCounter(t)
	ctx := context.Background()
	seedProject(t, st, "proj-1", 5)
	seedAllocation(t, st, "a-1", "emp-1", "proj-1", 100, engine.AllocationActive)
	seedAllocation(t, st, "a-2", "emp-2", "proj-1", 50, engine.AllocationActive)
	seedAllocation(t, st, "a-3", "emp-3", "proj-1", 100, engine.AllocationCompleted)
	seedAllocation(t, st, "a-4", "emp-4", "proj-1", 100, engine.AllocationCancelled)

	require.NoError(t, counter.Recompute(ctx, "proj-1"))

	proj := getProject(t, st, "proj-1")
	assert.Equal(t, 2, proj.AllocatedResources)
	assert.Equal(t, 3, proj.ToBeAllocated)
}

func TestResourceCounter_Recompute_ToBeAllocatedNeverNegative(t *testing.T) {
	// GIVEN: More active allocations than required resources
	// WHEN: Recomputing
	// THEN: toBeAllocated floors at zero

	counter, st := newTestCounter(t)
	ctx := context.Background()
	seedProject(t, st, "proj-1", 1)
	seedAllocation(t, st, "a-1", "emp-1", "proj-1", 50, engine.AllocationActive)
	seedAllocation(t, st, "a-2", "emp-2", "proj-1", 50, engine.AllocationActive)

	require.NoError(t, counter.Recompute(ctx, "proj-1"))

	proj := getProject(t, st, "proj-1")
	assert.Equal(t, 2, proj.AllocatedResources)
	assert.Equal(t, 0, proj.ToBeAllocated)
}

func TestResourceCounter_Recompute_MissingProject(t *testing.T) {
	counter, _ := newTestCounter(t)

	err := counter.Recompute(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))
}

// =============================================================================
// REQUIRED RESOURCES (DEMAND-DRIVEN vs MANUAL)
// =============================================================================

func TestResourceCounter_RecomputeRequired_SumsDemands(t *testing.T) {
	// GIVEN: A demand-driven project with demands of 2 and 3
	// WHEN: Repricing
	// THEN: requiredResources=5

	counter, st := newTestCounter(t)
	ctx := context.Background()
	seedProject(t, st, "proj-1", 0)
	require.NoError(t, st.SaveDemand(ctx, engine.Demand{ID: "d-1", ProjectID: "proj-1", Skill: "go", Quantity: 2}))
	require.NoError(t, st.SaveDemand(ctx, engine.Demand{ID: "d-2", ProjectID: "proj-1", Skill: "sql", Quantity: 3}))

	require.NoError(t, counter.RecomputeRequired(ctx, "proj-1"))

	proj := getProject(t, st, "proj-1")
	assert.Equal(t, 5, proj.RequiredResources)
	assert.Equal(t, 5, proj.ToBeAllocated)
}

func TestResourceCounter_RecomputeRequired_ManualOverrideKept(t *testing.T) {
	// GIVEN: A project with a manually set headcount of 10
	// WHEN: Repricing against demands summing to 3
	// THEN: The manual value is kept

	counter, st := newTestCounter(t)
	ctx := context.Background()
	seedProject(t, st, "proj-1", 10) // seedProject sets ManualRequired for required > 0
	require.NoError(t, st.SaveDemand(ctx, engine.Demand{ID: "d-1", ProjectID: "proj-1", Skill: "go", Quantity: 3}))

	require.NoError(t, counter.RecomputeRequired(ctx, "proj-1"))

	proj := getProject(t, st, "proj-1")
	assert.Equal(t, 10, proj.RequiredResources)
}

// =============================================================================
// CAPACITY CHECK
// =============================================================================

func TestResourceCounter_CheckCapacity_RoomLeft(t *testing.T) {
	counter, st := newTestCounter(t)
	ctx := context.Background()
	seedProject(t, st, "proj-1", 2)
	seedAllocation(t, st, "a-1", "emp-1", "proj-1", 100, engine.AllocationActive)

	assert.NoError(t, counter.CheckCapacity(ctx, "proj-1"))
}

func TestResourceCounter_CheckCapacity_Full(t *testing.T) {
	// GIVEN: A project requiring 2 with 2 active allocations
	// WHEN: Checking room for one more
	// THEN: Rejected; completed allocations do not count against capacity

	counter, st := newTestCounter(t)
	ctx := context.Background()
	seedProject(t, st, "proj-1", 2)
	seedAllocation(t, st, "a-1", "emp-1", "proj-1", 100, engine.AllocationActive)
	seedAllocation(t, st, "a-2", "emp-2", "proj-1", 100, engine.AllocationActive)
	seedAllocation(t, st, "a-3", "emp-3", "proj-1", 100, engine.AllocationCompleted)

	err := counter.CheckCapacity(ctx, "proj-1")
	require.Error(t, err)

	var capErr *engine.CapacityExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 2, capErr.Required)
	assert.Equal(t, 2, capErr.Allocated)
}

func TestResourceCounter_CheckCapacity_ZeroRequired(t *testing.T) {
	// GIVEN: A project with no required resources
	// WHEN: Checking capacity
	// THEN: Rejected - nothing fits in a zero-headcount project

	counter, st := newTestCounter(t)
	seedProject(t, st, "proj-1", 0)

	err := counter.CheckCapacity(context.Background(), "proj-1")
	assert.ErrorIs(t, err, engine.ErrCapacityExceeded)
}

// =============================================================================
// COVERAGE
// =============================================================================

func TestResourceCounter_Coverage_CountsSkillMatches(t *testing.T) {
	// GIVEN: A demand for 3 Go engineers; two allocated employees have Go,
	//        one does not, and one Go employee's allocation is completed
	// WHEN: Computing coverage
	// THEN: allocated=2, remaining=1

	counter, st := newTestCounter(t)
	ctx := context.Background()
	seedProject(t, st, "proj-1", 3)
	seedEmployee(t, st, "emp-1", "go")
	seedEmployee(t, st, "emp-2", "GO", "sql")
	seedEmployee(t, st, "emp-3", "design")
	seedEmployee(t, st, "emp-4", "go")
	seedAllocation(t, st, "a-1", "emp-1", "proj-1", 100, engine.AllocationActive)
	seedAllocation(t, st, "a-2", "emp-2", "proj-1", 100, engine.AllocationActive)
	seedAllocation(t, st, "a-3", "emp-3", "proj-1", 100, engine.AllocationActive)
	seedAllocation(t, st, "a-4", "emp-4", "proj-1", 100, engine.AllocationCompleted)

	cov, err := counter.Coverage(ctx, engine.Demand{
		ID: "d-1", ProjectID: "proj-1", Skill: "go", Quantity: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, cov.AllocatedCount)
	assert.Equal(t, 1, cov.Remaining)
}

func TestResourceCounter_Coverage_RemainingFloorsAtZero(t *testing.T) {
	counter, st := newTestCounter(t)
	ctx := context.Background()
	seedProject(t, st, "proj-1", 3)
	seedEmployee(t, st, "emp-1", "go")
	seedEmployee(t, st, "emp-2", "go")
	seedAllocation(t, st, "a-1", "emp-1", "proj-1", 100, engine.AllocationActive)
	seedAllocation(t, st, "a-2", "emp-2", "proj-1", 100, engine.AllocationActive)

	cov, err := counter.Coverage(ctx, engine.Demand{
		ID: "d-1", ProjectID: "proj-1", Skill: "go", Quantity: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, cov.AllocatedCount)
	assert.Equal(t, 0, cov.Remaining)
}
