/*
store.go - Persistence interface for the reconciled entities

PURPOSE:
  Defines the interface between the reconciliation engine and the database.
  The engine treats the store as a transactional CRUD surface with
  equality-predicate reads; it re-reads fresh state inside hooks rather
  than trusting caller-supplied values.

KEY INTERFACES:
  Store:   Typed per-entity reads and writes
  TxStore: Store plus WithTx for atomic multi-write mutations

DERIVED-FIELD WRITES:
  The narrow setters (SetEmployeeAllocated, SetProjectCounts, ...) exist so
  reconciliation passes touch only the derived fields they own. Identity
  fields are never rewritten by the engine.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite (WAL mode)
  - engine/store: In-memory for testing

SEE ALSO:
  - engine.go: Orchestrates mutations through WithTx
  - sweeper.go: Full-table scans (the only component allowed to)
*/
package engine

import "context"

// =============================================================================
// STORE - Typed entity persistence
// =============================================================================

// Store handles persistence of employees, projects, demands, and allocations.
// Get* methods return (nil, nil) when the record does not exist.
type Store interface {
	// Employees
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	SaveEmployee(ctx context.Context, e Employee) error
	SetEmployeeStatus(ctx context.Context, id string, status EmployeeStatus) error
	SetEmployeeAllocated(ctx context.Context, id string, pct Percent) error

	// Projects
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	// ListOpenProjects returns projects with status Planned or Active.
	ListOpenProjects(ctx context.Context) ([]Project, error)
	SaveProject(ctx context.Context, p Project) error
	SetProjectStatus(ctx context.Context, id string, status ProjectStatus) error
	// SetProjectCounts writes the derived allocated/toBeAllocated pair.
	SetProjectCounts(ctx context.Context, id string, allocated, toBeAllocated int) error
	// SetProjectRequired writes the demand-driven requiredResources and the
	// toBeAllocated value implied by it.
	SetProjectRequired(ctx context.Context, id string, required, toBeAllocated int) error

	// Demands
	GetDemand(ctx context.Context, id string) (*Demand, error)
	ListDemandsByProject(ctx context.Context, projectID string) ([]Demand, error)
	SaveDemand(ctx context.Context, d Demand) error
	DeleteDemand(ctx context.Context, id string) error

	// Allocations. An empty status filter means all statuses.
	GetAllocation(ctx context.Context, id string) (*Allocation, error)
	ListAllocationsByEmployee(ctx context.Context, employeeID string, status AllocationStatus) ([]Allocation, error)
	ListAllocationsByProject(ctx context.Context, projectID string, status AllocationStatus) ([]Allocation, error)
	// ListActiveAllocations scans every Active allocation. Sweeper-only.
	ListActiveAllocations(ctx context.Context) ([]Allocation, error)
	SaveAllocation(ctx context.Context, a Allocation) error
	DeleteAllocation(ctx context.Context, id string) error
	SetAllocationStatus(ctx context.Context, id string, status AllocationStatus) error

	// Reset clears all data. Used by demo scenario loading; never called
	// from reconciliation paths.
	Reset(ctx context.Context) error
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support. Pre-check hooks and the
// primary write of a mutation run inside WithTx; post-write cascades run
// after commit and are best-effort.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
