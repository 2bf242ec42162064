/*
Package engine implements the allocation reconciliation engine.

PURPOSE:
  Maintains the derived, cross-entity invariants of a workforce allocation
  system every time an Allocation, Demand, or Project record changes:
  - Per-employee allocation-percentage budgets (never above 100%)
  - Per-project required vs. actively-allocated resource counts
  - Each employee's display status, derived from their active allocations

KEY CONCEPTS IN THIS FILE (types.go):
  - Percent: A budget quantity backed by decimal.Decimal
  - Employee / Project / Demand / Allocation: The reconciled entities
  - Status enums for employees, projects, and allocations

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for all budget arithmetic
  2. Derived fields are stored but always recomputable from the allocations
  3. Components take an explicit "asOf" date - nothing calls time.Now()

SEE ALSO:
  - budget.go:   Per-employee budget ledger
  - capacity.go: Per-project resource counter
  - status.go:   Employee status state machine
  - sweeper.go:  Time-driven expiry pass
*/
package engine

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PERCENT - Budget quantity (0-100, whole numbers at the API boundary)
// =============================================================================

// Percent is a share of an employee's time. Stored values are whole numbers
// in [0,100]; arithmetic uses decimal to stay exact under add/subtract chains.
type Percent struct {
	Value decimal.Decimal
}

func PercentFromInt(n int) Percent {
	return Percent{Value: decimal.NewFromInt(int64(n))}
}

func PercentFromString(s string) Percent {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Percent{Value: decimal.Zero}
	}
	return Percent{Value: d}
}

// FullBudget is the per-employee ceiling across concurrent allocations.
var FullBudget = PercentFromInt(100)

func (p Percent) Add(o Percent) Percent      { return Percent{Value: p.Value.Add(o.Value)} }
func (p Percent) Sub(o Percent) Percent      { return Percent{Value: p.Value.Sub(o.Value)} }
func (p Percent) Neg() Percent               { return Percent{Value: p.Value.Neg()} }
func (p Percent) IsZero() bool               { return p.Value.IsZero() }
func (p Percent) IsNegative() bool           { return p.Value.IsNegative() }
func (p Percent) GreaterThan(o Percent) bool { return p.Value.GreaterThan(o.Value) }
func (p Percent) LessThan(o Percent) bool    { return p.Value.LessThan(o.Value) }
func (p Percent) Equal(o Percent) bool       { return p.Value.Equal(o.Value) }
func (p Percent) Int() int                   { return int(p.Value.IntPart()) }
func (p Percent) String() string             { return p.Value.String() }

// ClampZero floors a percentage at zero. Releases never drive a budget negative.
func (p Percent) ClampZero() Percent {
	if p.IsNegative() {
		return Percent{Value: decimal.Zero}
	}
	return p
}

// =============================================================================
// STATUS ENUMS
// =============================================================================

type EmployeeStatus string

const (
	StatusBench        EmployeeStatus = "Bench"
	StatusPreAllocated EmployeeStatus = "PreAllocated"
	StatusAllocated    EmployeeStatus = "Allocated"
	StatusResigned     EmployeeStatus = "Resigned"
)

type ProjectStatus string

const (
	ProjectPlanned ProjectStatus = "Planned"
	ProjectActive  ProjectStatus = "Active"
	ProjectClosed  ProjectStatus = "Closed"
)

type AllocationStatus string

const (
	AllocationActive    AllocationStatus = "Active"
	AllocationCompleted AllocationStatus = "Completed"
	AllocationCancelled AllocationStatus = "Cancelled"
)

// =============================================================================
// ENTITIES
// =============================================================================

// Employee is a staffable person. AllocatedPercentage is derived-but-stored:
// it always equals the sum of Percentage over the employee's Active allocations.
// Status never changes once Resigned.
type Employee struct {
	ID                  string
	Name                string
	Status              EmployeeStatus
	AllocatedPercentage Percent
	Skills              []string
}

// HasSkill reports whether the employee carries the given skill.
// Matching is case-insensitive; skills are comma-encoded at the store layer.
func (e Employee) HasSkill(skill string) bool {
	for _, s := range e.Skills {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(skill)) {
			return true
		}
	}
	return false
}

// Project carries two derived counts: AllocatedResources (count of Active
// allocations) and ToBeAllocated (max(0, required-allocated)).
// RequiredResources is normally the sum of Demand quantities; when
// ManualRequired is set, the manually entered value is honored instead and
// demand-driven recomputes only log a warning.
type Project struct {
	ID                 string
	Name               string
	Status             ProjectStatus
	StartDate          Date
	EndDate            Date
	ExternalRef        string // empty = none; presence signals customer-committed staffing
	RequiredResources  int
	AllocatedResources int
	ToBeAllocated      int
	ManualRequired     bool
}

// Demand is a skill-scoped headcount requirement under a project.
type Demand struct {
	ID        string
	ProjectID string
	Skill     string
	Quantity  int
}

// DemandCoverage is the read-time view of a demand: how many active
// allocations on the project carry the demanded skill. Never stored.
type DemandCoverage struct {
	Demand
	AllocatedCount int
	Remaining      int
}

// Allocation assigns a share of an employee's time to a project for a date
// range. Dates default from the project and must lie within its bounds.
type Allocation struct {
	ID         string
	EmployeeID string
	ProjectID  string
	Percentage Percent
	Status     AllocationStatus
	StartDate  Date
	EndDate    Date
}

// IsActive reports whether the allocation counts toward budget and capacity.
func (a Allocation) IsActive() bool { return a.Status == AllocationActive }

// contribution is the allocation's share of the employee budget:
// its percentage while Active, zero otherwise.
func (a Allocation) contribution() Percent {
	if a.IsActive() {
		return a.Percentage
	}
	return PercentFromInt(0)
}
