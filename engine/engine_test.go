package engine_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/allocation-engine/engine"
	"github.com/warp/allocation-engine/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// testToday pins the engine clock; date-sensitive fixtures are relative to it.
var testToday = engine.NewDate(2025, time.June, 15)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestEngine(t *testing.T) (*engine.Engine, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	eng := engine.New(st, testLogger())
	eng.Clock = func() engine.Date { return testToday }
	return eng, st
}

func date(y int, m time.Month, day int) engine.Date {
	return engine.NewDate(y, m, day)
}

func seedEmployee(t *testing.T, st *store.Memory, id string, skills ...string) {
	t.Helper()
	err := st.SaveEmployee(context.Background(), engine.Employee{
		ID:     id,
		Name:   "Employee " + id,
		Status: engine.StatusBench,
		Skills: skills,
	})
	require.NoError(t, err)
}

// seedProject creates a started, open-ended project with a manual headcount.
func seedProject(t *testing.T, st *store.Memory, id string, required int) {
	t.Helper()
	err := st.SaveProject(context.Background(), engine.Project{
		ID:                id,
		Name:              "Project " + id,
		Status:            engine.ProjectActive,
		StartDate:         date(2025, time.January, 1),
		EndDate:           date(2025, time.December, 31),
		RequiredResources: required,
		ToBeAllocated:     required,
		ManualRequired:    required > 0,
	})
	require.NoError(t, err)
}

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func getEmployee(t *testing.T, st *store.Memory, id string) engine.Employee {
	t.Helper()
	emp, err := st.GetEmployee(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, emp)
	return *emp
}

func getProject(t *testing.T, st *store.Memory, id string) engine.Project {
	t.Helper()
	p, err := st.GetProject(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return *p
}

// =============================================================================
// ALLOCATION LIFECYCLE
// =============================================================================

func TestEngine_CreateAllocation_DefaultsTo100Percent(t *testing.T) {
	// GIVEN: An employee on the bench and a started project needing 1 resource
	// WHEN: Creating an allocation without a percentage or dates
	// THEN: Percentage defaults to 100, dates default from the project, and
	//       budget, counts, and status are all reconciled

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")
	seedProject(t, st, "proj-1", 1)

	a, err := eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1",
		ProjectID:  "proj-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 100, a.Percentage.Int())
	assert.Equal(t, engine.AllocationActive, a.Status)
	assert.True(t, a.StartDate.Equal(date(2025, time.January, 1)), "start defaults from project")
	assert.True(t, a.EndDate.Equal(date(2025, time.December, 31)), "end defaults from project")

	emp := getEmployee(t, st, "emp-1")
	assert.Equal(t, 100, emp.AllocatedPercentage.Int())
	assert.Equal(t, engine.StatusPreAllocated, emp.Status, "internal project => PreAllocated")

	proj := getProject(t, st, "proj-1")
	assert.Equal(t, 1, proj.AllocatedResources)
	assert.Equal(t, 0, proj.ToBeAllocated)
}

func TestEngine_CreateAllocation_ExternalProject_StatusAllocated(t *testing.T) {
	// GIVEN: A started project carrying an external customer reference
	// WHEN: An employee is allocated to it
	// THEN: The employee's status is Allocated, not PreAllocated

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")

	require.NoError(t, st.SaveProject(ctx, engine.Project{
		ID:                "proj-ext",
		Name:              "Customer project",
		Status:            engine.ProjectActive,
		StartDate:         date(2025, time.January, 1),
		EndDate:           date(2025, time.December, 31),
		ExternalRef:       "SOW-1042",
		RequiredResources: 1,
		ManualRequired:    true,
	}))

	_, err := eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1",
		ProjectID:  "proj-ext",
	})
	require.NoError(t, err)

	emp := getEmployee(t, st, "emp-1")
	assert.Equal(t, engine.StatusAllocated, emp.Status)
}

func TestEngine_CreateAllocation_OverBudget_Rejected(t *testing.T) {
	// GIVEN: An employee already allocated 60%
	// WHEN: Requesting another 50%
	// THEN: The create is rejected with BudgetExceededError and the stored
	//       budget is unchanged

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")
	seedProject(t, st, "proj-1", 2)
	seedProject(t, st, "proj-2", 2)

	_, err := eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1",
		ProjectID:  "proj-1",
		Percentage: intPtr(60),
	})
	require.NoError(t, err)

	_, err = eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1",
		ProjectID:  "proj-2",
		Percentage: intPtr(50),
	})
	require.Error(t, err)

	var budgetErr *engine.BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, "emp-1", budgetErr.EmployeeID)
	assert.Equal(t, 60, budgetErr.Current.Int())
	assert.Equal(t, 50, budgetErr.Requested.Int())

	emp := getEmployee(t, st, "emp-1")
	assert.Equal(t, 60, emp.AllocatedPercentage.Int(), "rejection must not touch the budget")
}

func TestEngine_CreateAllocation_ExactlyFull_Allowed(t *testing.T) {
	// GIVEN: An employee allocated 60%
	// WHEN: Requesting exactly the remaining 40%
	// THEN: The create succeeds; the ceiling is inclusive

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")
	seedProject(t, st, "proj-1", 2)

	_, err := eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1", ProjectID: "proj-1", Percentage: intPtr(60),
	})
	require.NoError(t, err)

	_, err = eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1", ProjectID: "proj-1", Percentage: intPtr(40),
	})
	require.NoError(t, err)

	emp := getEmployee(t, st, "emp-1")
	assert.Equal(t, 100, emp.AllocatedPercentage.Int())
}

func TestEngine_CreateAllocation_ZeroPercent_Allowed(t *testing.T) {
	// GIVEN: A fully allocated employee
	// WHEN: Creating a 0% allocation
	// THEN: It succeeds; zero is a valid reservation, not falsy input

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")
	seedProject(t, st, "proj-1", 3)

	_, err := eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1", ProjectID: "proj-1", Percentage: intPtr(100),
	})
	require.NoError(t, err)

	_, err = eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1", ProjectID: "proj-1", Percentage: intPtr(0),
	})
	require.NoError(t, err)

	emp := getEmployee(t, st, "emp-1")
	assert.Equal(t, 100, emp.AllocatedPercentage.Int())
}

func TestEngine_CreateAllocation_InvalidPercentage_Rejected(t *testing.T) {
	// GIVEN: A valid employee and project
	// WHEN: Requesting a percentage above 100
	// THEN: Rejected as a validation error, not a budget error

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")
	seedProject(t, st, "proj-1", 1)

	_, err := eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1", ProjectID: "proj-1", Percentage: intPtr(150),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestEngine_CreateAllocation_AtCapacity_Rejected(t *testing.T) {
	// GIVEN: A project requiring 1 resource with 1 active allocation
	// WHEN: Allocating a second employee
	// THEN: Rejected with CapacityExceededError

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")
	seedEmployee(t, st, "emp-2")
	seedProject(t, st, "proj-1", 1)

	_, err := eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1", ProjectID: "proj-1",
	})
	require.NoError(t, err)

	_, err = eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-2", ProjectID: "proj-1",
	})
	require.Error(t, err)

	var capErr *engine.CapacityExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "proj-1", capErr.ProjectID)
	assert.Equal(t, 1, capErr.Required)
	assert.Equal(t, 1, capErr.Allocated)
}

func TestEngine_CreateAllocation_DatesOutsideProject_Rejected(t *testing.T) {
	// GIVEN: A project running Jan 1 - Dec 31, 2025
	// WHEN: Allocating with an end date past the project end
	// THEN: Rejected with a date range error

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")
	seedProject(t, st, "proj-1", 1)

	_, err := eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1",
		ProjectID:  "proj-1",
		EndDate:    date(2026, time.March, 1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrDateRange)
}

func TestEngine_CreateAllocation_MissingEmployee_Rejected(t *testing.T) {
	eng, st := newTestEngine(t)
	seedProject(t, st, "proj-1", 1)

	_, err := eng.CreateAllocation(context.Background(), engine.AllocationDraft{
		EmployeeID: "ghost", ProjectID: "proj-1",
	})
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))
}

func TestEngine_UpdateAllocation_PercentageChange_AppliesDelta(t *testing.T) {
	// GIVEN: An employee with a 60% allocation
	// WHEN: Updating it to 80%
	// THEN: The employee's budget reflects only the 20-point delta

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")
	seedProject(t, st, "proj-1", 1)

	a, err := eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1", ProjectID: "proj-1", Percentage: intPtr(60),
	})
	require.NoError(t, err)

	updated, err := eng.UpdateAllocation(ctx, a.ID, engine.AllocationPatch{
		Percentage: intPtr(80),
	})
	require.NoError(t, err)
	assert.Equal(t, 80, updated.Percentage.Int())

	emp := getEmployee(t, st, "emp-1")
	assert.Equal(t, 80, emp.AllocatedPercentage.Int())
}

func TestEngine_UpdateAllocation_PercentageChange_ReplacesOwnContribution(t *testing.T) {
	// GIVEN: An employee at 90% via a single allocation
	// WHEN: Raising that same allocation to 100%
	// THEN: Allowed - the old 90 is subtracted before validating (90-90+100 <= 100)

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")
	seedProject(t, st, "proj-1", 1)

	a, err := eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1", ProjectID: "proj-1", Percentage: intPtr(90),
	})
	require.NoError(t, err)

	_, err = eng.UpdateAllocation(ctx, a.ID, engine.AllocationPatch{Percentage: intPtr(100)})
	require.NoError(t, err)

	emp := getEmployee(t, st, "emp-1")
	assert.Equal(t, 100, emp.AllocatedPercentage.Int())
}

func TestEngine_UpdateAllocation_CancelReleasesBudget(t *testing.T) {
	// GIVEN: An active 70% allocation
	// WHEN: Flipping its status to Cancelled
	// THEN: The employee's budget drops by 70 and the project count drops

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")
	seedProject(t, st, "proj-1", 1)

	a, err := eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1", ProjectID: "proj-1", Percentage: intPtr(70),
	})
	require.NoError(t, err)

	cancelled := engine.AllocationCancelled
	_, err = eng.UpdateAllocation(ctx, a.ID, engine.AllocationPatch{Status: &cancelled})
	require.NoError(t, err)

	emp := getEmployee(t, st, "emp-1")
	assert.Equal(t, 0, emp.AllocatedPercentage.Int())
	assert.Equal(t, engine.StatusBench, emp.Status)

	proj := getProject(t, st, "proj-1")
	assert.Equal(t, 0, proj.AllocatedResources)
	assert.Equal(t, 1, proj.ToBeAllocated)
}

func TestEngine_UpdateAllocation_MoveToOtherEmployee(t *testing.T) {
	// GIVEN: emp-1 holds a 50% allocation; emp-2 is free
	// WHEN: Reassigning the allocation to emp-2
	// THEN: emp-1's budget is released, emp-2's is charged, both statuses rederived

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")
	seedEmployee(t, st, "emp-2")
	seedProject(t, st, "proj-1", 1)

	a, err := eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1", ProjectID: "proj-1", Percentage: intPtr(50),
	})
	require.NoError(t, err)

	_, err = eng.UpdateAllocation(ctx, a.ID, engine.AllocationPatch{EmployeeID: strPtr("emp-2")})
	require.NoError(t, err)

	emp1 := getEmployee(t, st, "emp-1")
	assert.Equal(t, 0, emp1.AllocatedPercentage.Int())
	assert.Equal(t, engine.StatusBench, emp1.Status)

	emp2 := getEmployee(t, st, "emp-2")
	assert.Equal(t, 50, emp2.AllocatedPercentage.Int())
	assert.Equal(t, engine.StatusPreAllocated, emp2.Status)
}

func TestEngine_DeleteAllocation_ReleasesBudget(t *testing.T) {
	// GIVEN: An active 100% allocation
	// WHEN: Deleting it
	// THEN: Budget, count, and status all reconcile back

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")
	seedProject(t, st, "proj-1", 1)

	a, err := eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1", ProjectID: "proj-1",
	})
	require.NoError(t, err)

	require.NoError(t, eng.DeleteAllocation(ctx, a.ID))

	emp := getEmployee(t, st, "emp-1")
	assert.Equal(t, 0, emp.AllocatedPercentage.Int())
	assert.Equal(t, engine.StatusBench, emp.Status)

	proj := getProject(t, st, "proj-1")
	assert.Equal(t, 0, proj.AllocatedResources)
}

func TestEngine_DeleteAllocation_NonActive_ClampsAtZero(t *testing.T) {
	// GIVEN: A completed allocation whose budget share was already released
	// WHEN: Deleting it (release runs unconditionally regardless of status)
	// THEN: The budget clamps at zero instead of going negative

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")
	seedProject(t, st, "proj-1", 1)

	a, err := eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1", ProjectID: "proj-1", Percentage: intPtr(80),
	})
	require.NoError(t, err)

	completed := engine.AllocationCompleted
	_, err = eng.UpdateAllocation(ctx, a.ID, engine.AllocationPatch{Status: &completed})
	require.NoError(t, err)

	emp := getEmployee(t, st, "emp-1")
	require.Equal(t, 0, emp.AllocatedPercentage.Int(), "completion released the budget")

	require.NoError(t, eng.DeleteAllocation(ctx, a.ID))

	emp = getEmployee(t, st, "emp-1")
	assert.Equal(t, 0, emp.AllocatedPercentage.Int(), "double release clamps at zero")
	assert.False(t, emp.AllocatedPercentage.IsNegative())
}

// =============================================================================
// DEMANDS AND PROJECT REPRICING
// =============================================================================

func TestEngine_CreateDemand_RepricesProject(t *testing.T) {
	// GIVEN: A project with no manual headcount
	// WHEN: Adding demands for 2 Go engineers and 1 designer
	// THEN: requiredResources follows the demand sum

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedProject(t, st, "proj-1", 0)

	_, err := eng.CreateDemand(ctx, engine.Demand{ProjectID: "proj-1", Skill: "go", Quantity: 2})
	require.NoError(t, err)

	proj := getProject(t, st, "proj-1")
	assert.Equal(t, 2, proj.RequiredResources)
	assert.Equal(t, 2, proj.ToBeAllocated)

	d2, err := eng.CreateDemand(ctx, engine.Demand{ProjectID: "proj-1", Skill: "design", Quantity: 1})
	require.NoError(t, err)

	proj = getProject(t, st, "proj-1")
	assert.Equal(t, 3, proj.RequiredResources)

	require.NoError(t, eng.DeleteDemand(ctx, d2.ID))

	proj = getProject(t, st, "proj-1")
	assert.Equal(t, 2, proj.RequiredResources)
}

func TestEngine_CreateDemand_NegativeQuantity_Rejected(t *testing.T) {
	eng, st := newTestEngine(t)
	seedProject(t, st, "proj-1", 0)

	_, err := eng.CreateDemand(context.Background(), engine.Demand{
		ProjectID: "proj-1", Skill: "go", Quantity: -1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestEngine_ManualRequired_WinsOverDemandSum(t *testing.T) {
	// GIVEN: A project created with a manually set headcount of 5
	// WHEN: A demand for 2 is added
	// THEN: requiredResources stays 5; the demand sum only logs a warning

	eng, st := newTestEngine(t)
	ctx := context.Background()

	p, err := eng.CreateProject(ctx, engine.Project{
		Name:              "Manual project",
		StartDate:         date(2025, time.January, 1),
		EndDate:           date(2025, time.December, 31),
		RequiredResources: 5,
	})
	require.NoError(t, err)
	require.True(t, p.ManualRequired)

	_, err = eng.CreateDemand(ctx, engine.Demand{ProjectID: p.ID, Skill: "go", Quantity: 2})
	require.NoError(t, err)

	proj := getProject(t, st, p.ID)
	assert.Equal(t, 5, proj.RequiredResources, "manual headcount is kept")
}

func TestEngine_DemandCoverage_MatchesSkills(t *testing.T) {
	// GIVEN: A demand for 2 Go engineers and one allocated employee who has Go
	// WHEN: Reading coverage for the project
	// THEN: allocated_count=1, remaining=1

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-go", "go", "sql")
	seedEmployee(t, st, "emp-js", "javascript")
	seedProject(t, st, "proj-1", 0)

	_, err := eng.CreateDemand(ctx, engine.Demand{ProjectID: "proj-1", Skill: "Go", Quantity: 2})
	require.NoError(t, err)

	_, err = eng.CreateAllocation(ctx, engine.AllocationDraft{EmployeeID: "emp-go", ProjectID: "proj-1"})
	require.NoError(t, err)
	_, err = eng.CreateAllocation(ctx, engine.AllocationDraft{EmployeeID: "emp-js", ProjectID: "proj-1"})
	require.NoError(t, err)

	coverage, err := eng.DemandCoverageForProject(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, coverage, 1)

	assert.Equal(t, 1, coverage[0].AllocatedCount, "skill match is case-insensitive")
	assert.Equal(t, 1, coverage[0].Remaining)
}

// =============================================================================
// PROJECT CLOSE CASCADE
// =============================================================================

func TestEngine_CloseProject_CompletesAllocations(t *testing.T) {
	// GIVEN: A project with two active allocations
	// WHEN: Updating its status to Closed
	// THEN: Both allocations complete, budgets release, employees go to Bench

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")
	seedEmployee(t, st, "emp-2")
	seedProject(t, st, "proj-1", 2)

	a1, err := eng.CreateAllocation(ctx, engine.AllocationDraft{EmployeeID: "emp-1", ProjectID: "proj-1", Percentage: intPtr(50)})
	require.NoError(t, err)
	a2, err := eng.CreateAllocation(ctx, engine.AllocationDraft{EmployeeID: "emp-2", ProjectID: "proj-1"})
	require.NoError(t, err)

	closed := engine.ProjectClosed
	_, err = eng.UpdateProject(ctx, "proj-1", engine.ProjectPatch{Status: &closed})
	require.NoError(t, err)

	for _, id := range []string{a1.ID, a2.ID} {
		a, err := st.GetAllocation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, engine.AllocationCompleted, a.Status)
	}

	for _, id := range []string{"emp-1", "emp-2"} {
		emp := getEmployee(t, st, id)
		assert.Equal(t, 0, emp.AllocatedPercentage.Int())
		assert.Equal(t, engine.StatusBench, emp.Status)
	}

	proj := getProject(t, st, "proj-1")
	assert.Equal(t, 0, proj.AllocatedResources)
}

func TestEngine_UpdateProject_ExternalRefChange_RederivesStatuses(t *testing.T) {
	// GIVEN: An employee PreAllocated on an internal project
	// WHEN: The project gains an external customer reference
	// THEN: The employee is promoted to Allocated without touching the allocation

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")
	seedProject(t, st, "proj-1", 1)

	_, err := eng.CreateAllocation(ctx, engine.AllocationDraft{EmployeeID: "emp-1", ProjectID: "proj-1"})
	require.NoError(t, err)
	require.Equal(t, engine.StatusPreAllocated, getEmployee(t, st, "emp-1").Status)

	_, err = eng.UpdateProject(ctx, "proj-1", engine.ProjectPatch{ExternalRef: strPtr("SOW-7")})
	require.NoError(t, err)

	assert.Equal(t, engine.StatusAllocated, getEmployee(t, st, "emp-1").Status)
}

func TestEngine_UpdateProject_EndBeforeStart_Rejected(t *testing.T) {
	eng, st := newTestEngine(t)
	seedProject(t, st, "proj-1", 1)

	end := date(2024, time.January, 1)
	_, err := eng.UpdateProject(context.Background(), "proj-1", engine.ProjectPatch{EndDate: &end})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrDateRange)
}

// =============================================================================
// EMPLOYEE READS AND RESIGNATION
// =============================================================================

func TestEngine_GetEmployee_SelfHealsExpiredAllocation(t *testing.T) {
	// GIVEN: An allocation whose end date passed without any write
	// WHEN: The employee record is read
	// THEN: The read completes the allocation, releases the budget, and
	//       returns the healed record

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")

	require.NoError(t, st.SaveProject(ctx, engine.Project{
		ID:                "proj-old",
		Name:              "Finished project",
		Status:            engine.ProjectActive,
		StartDate:         date(2025, time.January, 1),
		EndDate:           date(2025, time.March, 31),
		RequiredResources: 1,
		ManualRequired:    true,
	}))

	a, err := eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-1", ProjectID: "proj-old",
	})
	require.NoError(t, err)
	require.Equal(t, 100, getEmployee(t, st, "emp-1").AllocatedPercentage.Int())

	emp, err := eng.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)

	assert.Equal(t, 0, emp.AllocatedPercentage.Int())
	assert.Equal(t, engine.StatusBench, emp.Status)

	healed, err := st.GetAllocation(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.AllocationCompleted, healed.Status)
}

func TestEngine_MarkResigned_IsAbsorbing(t *testing.T) {
	// GIVEN: A resigned employee
	// WHEN: Status is rederived by a later read
	// THEN: Resigned is never overwritten

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")

	require.NoError(t, eng.MarkResigned(ctx, "emp-1"))

	emp, err := eng.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusResigned, emp.Status)

	// Idempotent
	require.NoError(t, eng.MarkResigned(ctx, "emp-1"))
	assert.Equal(t, engine.StatusResigned, getEmployee(t, st, "emp-1").Status)
}

// =============================================================================
// SWEEP VIA ENGINE
// =============================================================================

func TestEngine_CheckExpiredItems_IsIdempotent(t *testing.T) {
	// GIVEN: An expired allocation and an expired project
	// WHEN: Running the sweep twice
	// THEN: The first run reports the transitions; the second reports nothing

	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, st, "emp-1")
	seedEmployee(t, st, "emp-2")

	require.NoError(t, st.SaveProject(ctx, engine.Project{
		ID: "proj-live", Name: "Live", Status: engine.ProjectActive,
		StartDate: date(2025, time.January, 1), EndDate: date(2025, time.December, 31),
		RequiredResources: 1, ManualRequired: true,
	}))
	require.NoError(t, st.SaveProject(ctx, engine.Project{
		ID: "proj-dead", Name: "Ended", Status: engine.ProjectActive,
		StartDate: date(2025, time.January, 1), EndDate: date(2025, time.May, 1),
		RequiredResources: 1, ManualRequired: true,
	}))

	// Expires with its project
	_, err := eng.CreateAllocation(ctx, engine.AllocationDraft{EmployeeID: "emp-1", ProjectID: "proj-dead"})
	require.NoError(t, err)
	// Expired allocation on a live project
	_, err = eng.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: "emp-2", ProjectID: "proj-live",
		StartDate: date(2025, time.February, 1), EndDate: date(2025, time.April, 30),
	})
	require.NoError(t, err)

	result, err := eng.CheckExpiredItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.AllocationsCompleted)
	assert.Equal(t, 1, result.ProjectsClosed)
	assert.Equal(t, 2, result.EmployeesAffected)

	again, err := eng.CheckExpiredItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.AllocationsCompleted, "second sweep must be a no-op")
	assert.Equal(t, 0, again.ProjectsClosed)

	for _, id := range []string{"emp-1", "emp-2"} {
		emp := getEmployee(t, st, id)
		assert.Equal(t, 0, emp.AllocatedPercentage.Int())
		assert.Equal(t, engine.StatusBench, emp.Status)
	}
}
