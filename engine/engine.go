/*
engine.go - Orchestrating entry point for all reconciled mutations

PURPOSE:
  The Engine is what the transport layer calls. Each mutation runs the
  matching observer's before phase against freshly read committed state,
  performs the primary write inside the store transaction, then runs the
  after phase post-commit. Pre-check rejections abort the operation and
  propagate to the caller; after-phase failures are logged and absorbed.

CAUSAL CHAIN:
  All chained updates triggered by one user action (ledger apply, counter
  recompute, status derivation) execute sequentially on the calling
  goroutine. No fire-and-forget concurrency, no worker pool.

CLOCK:
  The Engine resolves "today" once per operation through its Clock field
  and passes the date down explicitly. Tests pin the clock.

SEE ALSO:
  - hooks.go: The observers invoked here
  - sweeper.go: CheckExpiredItems delegates to the sweeper
*/
package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	store   TxStore
	ledger  *BudgetLedger
	counter *ResourceCounter
	status  *StatusEngine
	sweeper *Sweeper
	hooks   Dispatcher
	snaps   *snapshotCache
	log     *logrus.Logger

	// Clock resolves the current day. Overridable in tests.
	Clock func() Date
}

// New wires the engine's components and observers over the given store.
// A nil logger falls back to the logrus standard logger.
func New(store TxStore, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}

	ledger := NewBudgetLedger(store)
	counter := NewResourceCounter(store, log)
	status := NewStatusEngine(store, log)
	sweeper := NewSweeper(store, ledger, counter, status, log)

	return &Engine{
		store:   store,
		ledger:  ledger,
		counter: counter,
		status:  status,
		sweeper: sweeper,
		hooks: Dispatcher{
			Allocations: &allocationHooks{store: store, ledger: ledger, counter: counter, status: status, log: log},
			Demands:     &demandHooks{store: store, counter: counter, log: log},
			Projects:    &projectHooks{store: store, counter: counter, status: status, sweeper: sweeper, log: log},
			Employees:   &employeeHooks{status: status, sweeper: sweeper, log: log},
		},
		snaps: newSnapshotCache(256),
		log:   log,
		Clock: Today,
	}
}

// Sweeper exposes the expiry sweeper (used by the background scheduler).
func (e *Engine) Sweeper() *Sweeper { return e.sweeper }

// =============================================================================
// ALLOCATION OPERATIONS
// =============================================================================

// AllocationDraft is the caller's view of a new allocation. Nil/zero fields
// take defaults: percentage 100, status Active, dates from the project.
type AllocationDraft struct {
	ID         string
	EmployeeID string
	ProjectID  string
	Percentage *int
	Status     AllocationStatus
	StartDate  Date
	EndDate    Date
}

// AllocationPatch carries the changed fields of an update. Nil means "keep".
type AllocationPatch struct {
	EmployeeID *string
	ProjectID  *string
	Percentage *int
	Status     *AllocationStatus
	StartDate  *Date
	EndDate    *Date
}

func (e *Engine) CreateAllocation(ctx context.Context, draft AllocationDraft) (*Allocation, error) {
	asOf := e.Clock()

	a := Allocation{
		ID:         draft.ID,
		EmployeeID: draft.EmployeeID,
		ProjectID:  draft.ProjectID,
		Status:     draft.Status,
		StartDate:  draft.StartDate,
		EndDate:    draft.EndDate,
		Percentage: PercentFromInt(100),
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if draft.Percentage != nil {
		a.Percentage = PercentFromInt(*draft.Percentage)
	}

	if err := e.hooks.Allocations.BeforeCreate(ctx, &a, asOf); err != nil {
		return nil, err
	}
	if err := e.store.WithTx(ctx, func(tx Store) error {
		return tx.SaveAllocation(ctx, a)
	}); err != nil {
		return nil, err
	}
	e.hooks.Allocations.AfterCreate(ctx, a, asOf)
	return &a, nil
}

func (e *Engine) UpdateAllocation(ctx context.Context, id string, patch AllocationPatch) (*Allocation, error) {
	asOf := e.Clock()

	old, err := e.store.GetAllocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, &NotFoundError{Entity: "allocation", ID: id}
	}

	// Capture the pre-image before the write; the after phase computes its
	// ledger deltas against these values.
	key := string(OpUpdate) + ":" + id
	e.snaps.put(key, *old)

	next := *old
	if patch.EmployeeID != nil {
		next.EmployeeID = *patch.EmployeeID
	}
	if patch.ProjectID != nil {
		next.ProjectID = *patch.ProjectID
	}
	if patch.Percentage != nil {
		next.Percentage = PercentFromInt(*patch.Percentage)
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.StartDate != nil {
		next.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		next.EndDate = *patch.EndDate
	}

	if err := e.hooks.Allocations.BeforeUpdate(ctx, *old, &next, asOf); err != nil {
		e.snaps.take(key)
		return nil, err
	}
	if err := e.store.WithTx(ctx, func(tx Store) error {
		return tx.SaveAllocation(ctx, next)
	}); err != nil {
		e.snaps.take(key)
		return nil, err
	}

	prev, ok := e.snaps.take(key)
	if !ok {
		prev = *old // snapshot evicted under load
	}
	e.hooks.Allocations.AfterUpdate(ctx, prev, next, asOf)
	return &next, nil
}

func (e *Engine) DeleteAllocation(ctx context.Context, id string) error {
	asOf := e.Clock()

	old, err := e.store.GetAllocation(ctx, id)
	if err != nil {
		return err
	}
	if old == nil {
		return &NotFoundError{Entity: "allocation", ID: id}
	}

	// The row is unavailable post-delete; snapshot first.
	key := string(OpDelete) + ":" + id
	e.snaps.put(key, *old)

	if err := e.hooks.Allocations.BeforeDelete(ctx, *old, asOf); err != nil {
		e.snaps.take(key)
		return err
	}
	if err := e.store.WithTx(ctx, func(tx Store) error {
		return tx.DeleteAllocation(ctx, id)
	}); err != nil {
		e.snaps.take(key)
		return err
	}

	prev, ok := e.snaps.take(key)
	if !ok {
		prev = *old
	}
	e.hooks.Allocations.AfterDelete(ctx, prev, asOf)
	return nil
}

func (e *Engine) GetAllocation(ctx context.Context, id string) (*Allocation, error) {
	a, err := e.store.GetAllocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &NotFoundError{Entity: "allocation", ID: id}
	}
	return a, nil
}

func (e *Engine) ListAllocationsByEmployee(ctx context.Context, employeeID string, status AllocationStatus) ([]Allocation, error) {
	return e.store.ListAllocationsByEmployee(ctx, employeeID, status)
}

func (e *Engine) ListAllocationsByProject(ctx context.Context, projectID string, status AllocationStatus) ([]Allocation, error) {
	return e.store.ListAllocationsByProject(ctx, projectID, status)
}

// =============================================================================
// DEMAND OPERATIONS
// =============================================================================

type DemandPatch struct {
	Skill    *string
	Quantity *int
}

func (e *Engine) CreateDemand(ctx context.Context, d Demand) (*Demand, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if err := e.hooks.Demands.BeforeCreate(ctx, &d); err != nil {
		return nil, err
	}
	if err := e.store.WithTx(ctx, func(tx Store) error {
		return tx.SaveDemand(ctx, d)
	}); err != nil {
		return nil, err
	}
	e.hooks.Demands.AfterCreate(ctx, d)
	return &d, nil
}

func (e *Engine) UpdateDemand(ctx context.Context, id string, patch DemandPatch) (*Demand, error) {
	old, err := e.store.GetDemand(ctx, id)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, &NotFoundError{Entity: "demand", ID: id}
	}

	next := *old
	if patch.Skill != nil {
		next.Skill = *patch.Skill
	}
	if patch.Quantity != nil {
		next.Quantity = *patch.Quantity
	}

	if err := e.hooks.Demands.BeforeUpdate(ctx, *old, &next); err != nil {
		return nil, err
	}
	if err := e.store.WithTx(ctx, func(tx Store) error {
		return tx.SaveDemand(ctx, next)
	}); err != nil {
		return nil, err
	}
	e.hooks.Demands.AfterUpdate(ctx, *old, next)
	return &next, nil
}

func (e *Engine) DeleteDemand(ctx context.Context, id string) error {
	old, err := e.store.GetDemand(ctx, id)
	if err != nil {
		return err
	}
	if old == nil {
		return &NotFoundError{Entity: "demand", ID: id}
	}

	if err := e.store.WithTx(ctx, func(tx Store) error {
		return tx.DeleteDemand(ctx, id)
	}); err != nil {
		return err
	}
	e.hooks.Demands.AfterDelete(ctx, *old)
	return nil
}

func (e *Engine) GetDemand(ctx context.Context, id string) (*Demand, error) {
	d, err := e.store.GetDemand(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &NotFoundError{Entity: "demand", ID: id}
	}
	return d, nil
}

func (e *Engine) ListDemandsByProject(ctx context.Context, projectID string) ([]Demand, error) {
	return e.store.ListDemandsByProject(ctx, projectID)
}

// DemandCoverageForProject returns the read-time coverage view of every
// demand under a project.
func (e *Engine) DemandCoverageForProject(ctx context.Context, projectID string) ([]DemandCoverage, error) {
	demands, err := e.store.ListDemandsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]DemandCoverage, 0, len(demands))
	for _, d := range demands {
		cov, err := e.counter.Coverage(ctx, d)
		if err != nil {
			return nil, err
		}
		out = append(out, cov)
	}
	return out, nil
}

// =============================================================================
// PROJECT OPERATIONS
// =============================================================================

type ProjectPatch struct {
	Name        *string
	Status      *ProjectStatus
	StartDate   *Date
	EndDate     *Date
	ExternalRef *string
	// RequiredResources sets a manual headcount, overriding the demand sum
	// until cleared.
	RequiredResources *int
}

func (e *Engine) CreateProject(ctx context.Context, p Project) (*Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = ProjectPlanned
	}
	if !p.StartDate.IsZero() && !p.EndDate.IsZero() && p.EndDate.Before(p.StartDate) {
		return nil, &DateRangeError{Field: "endDate", Value: p.EndDate, Min: p.StartDate, Max: p.EndDate}
	}
	if p.RequiredResources > 0 {
		p.ManualRequired = true
	}
	p.ToBeAllocated = p.RequiredResources

	if err := e.store.WithTx(ctx, func(tx Store) error {
		return tx.SaveProject(ctx, p)
	}); err != nil {
		return nil, err
	}
	return &p, nil
}

func (e *Engine) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (*Project, error) {
	asOf := e.Clock()

	old, err := e.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, &NotFoundError{Entity: "project", ID: id}
	}

	next := *old
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.StartDate != nil {
		next.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		next.EndDate = *patch.EndDate
	}
	if patch.ExternalRef != nil {
		next.ExternalRef = *patch.ExternalRef
	}
	if patch.RequiredResources != nil {
		next.RequiredResources = *patch.RequiredResources
		next.ManualRequired = true
	}

	if err := e.hooks.Projects.BeforeUpdate(ctx, *old, &next, asOf); err != nil {
		return nil, err
	}
	if err := e.store.WithTx(ctx, func(tx Store) error {
		return tx.SaveProject(ctx, next)
	}); err != nil {
		return nil, err
	}
	e.hooks.Projects.AfterUpdate(ctx, *old, next, asOf)

	// Re-read: the after phase rewrites the derived counts.
	refreshed, err := e.store.GetProject(ctx, id)
	if err != nil || refreshed == nil {
		return &next, nil
	}
	return refreshed, nil
}

func (e *Engine) GetProject(ctx context.Context, id string) (*Project, error) {
	p, err := e.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &NotFoundError{Entity: "project", ID: id}
	}
	return p, nil
}

func (e *Engine) ListProjects(ctx context.Context) ([]Project, error) {
	return e.store.ListProjects(ctx)
}

// =============================================================================
// EMPLOYEE OPERATIONS
// =============================================================================

func (e *Engine) CreateEmployee(ctx context.Context, emp Employee) (*Employee, error) {
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}
	if emp.Status == "" {
		emp.Status = StatusBench
	}
	if err := e.store.WithTx(ctx, func(tx Store) error {
		return tx.SaveEmployee(ctx, emp)
	}); err != nil {
		return nil, err
	}
	return &emp, nil
}

// GetEmployee reads one employee, self-healing stale allocation and status
// state as a side effect of the read.
func (e *Engine) GetEmployee(ctx context.Context, id string) (*Employee, error) {
	emp, err := e.store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, &NotFoundError{Entity: "employee", ID: id}
	}

	e.hooks.Employees.AfterRead(ctx, id, e.Clock())

	refreshed, err := e.store.GetEmployee(ctx, id)
	if err != nil || refreshed == nil {
		return emp, nil
	}
	return refreshed, nil
}

func (e *Engine) ListEmployees(ctx context.Context) ([]Employee, error) {
	return e.store.ListEmployees(ctx)
}

// MarkResigned flips an employee to the absorbing Resigned state.
func (e *Engine) MarkResigned(ctx context.Context, id string) error {
	emp, err := e.store.GetEmployee(ctx, id)
	if err != nil {
		return err
	}
	if emp == nil {
		return &NotFoundError{Entity: "employee", ID: id}
	}
	if emp.Status == StatusResigned {
		return nil
	}
	return e.store.SetEmployeeStatus(ctx, id, StatusResigned)
}

// =============================================================================
// SWEEP
// =============================================================================

// CheckExpiredItems triggers the expiry sweeper outside the normal
// read/write paths.
func (e *Engine) CheckExpiredItems(ctx context.Context) (SweepResult, error) {
	return e.sweeper.Run(ctx, e.Clock())
}

// ResetData wipes the store. Demo scenario loading only.
func (e *Engine) ResetData(ctx context.Context) error {
	return e.store.Reset(ctx)
}
