// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/allocation-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	employees   map[string]engine.Employee
	projects    map[string]engine.Project
	demands     map[string]engine.Demand
	allocations map[string]engine.Allocation
}

func NewMemory() *Memory {
	return &Memory{
		employees:   make(map[string]engine.Employee),
		projects:    make(map[string]engine.Project),
		demands:     make(map[string]engine.Demand),
		allocations: make(map[string]engine.Allocation),
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Memory) GetEmployee(_ context.Context, id string) (*engine.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]engine.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveEmployee(_ context.Context, e engine.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
	return nil
}

func (m *Memory) SetEmployeeStatus(_ context.Context, id string, status engine.EmployeeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[id]
	if !ok {
		return &engine.NotFoundError{Entity: "employee", ID: id}
	}
	e.Status = status
	m.employees[id] = e
	return nil
}

func (m *Memory) SetEmployeeAllocated(_ context.Context, id string, pct engine.Percent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[id]
	if !ok {
		return &engine.NotFoundError{Entity: "employee", ID: id}
	}
	e.AllocatedPercentage = pct
	m.employees[id] = e
	return nil
}

// =============================================================================
// PROJECTS
// =============================================================================

func (m *Memory) GetProject(_ context.Context, id string) (*engine.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ListProjects(_ context.Context) ([]engine.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListOpenProjects(_ context.Context) ([]engine.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Project
	for _, p := range m.projects {
		if p.Status == engine.ProjectPlanned || p.Status == engine.ProjectActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveProject(_ context.Context, p engine.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

func (m *Memory) SetProjectStatus(_ context.Context, id string, status engine.ProjectStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return &engine.NotFoundError{Entity: "project", ID: id}
	}
	p.Status = status
	m.projects[id] = p
	return nil
}

func (m *Memory) SetProjectCounts(_ context.Context, id string, allocated, toBeAllocated int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return &engine.NotFoundError{Entity: "project", ID: id}
	}
	p.AllocatedResources = allocated
	p.ToBeAllocated = toBeAllocated
	m.projects[id] = p
	return nil
}

func (m *Memory) SetProjectRequired(_ context.Context, id string, required, toBeAllocated int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return &engine.NotFoundError{Entity: "project", ID: id}
	}
	p.RequiredResources = required
	p.ToBeAllocated = toBeAllocated
	m.projects[id] = p
	return nil
}

// =============================================================================
// DEMANDS
// =============================================================================

func (m *Memory) GetDemand(_ context.Context, id string) (*engine.Demand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.demands[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *Memory) ListDemandsByProject(_ context.Context, projectID string) ([]engine.Demand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Demand
	for _, d := range m.demands {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveDemand(_ context.Context, d engine.Demand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.demands[d.ID] = d
	return nil
}

func (m *Memory) DeleteDemand(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.demands, id)
	return nil
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

func (m *Memory) GetAllocation(_ context.Context, id string) (*engine.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.allocations[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) ListAllocationsByEmployee(_ context.Context, employeeID string, status engine.AllocationStatus) ([]engine.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Allocation
	for _, a := range m.allocations {
		if a.EmployeeID == employeeID && (status == "" || a.Status == status) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListAllocationsByProject(_ context.Context, projectID string, status engine.AllocationStatus) ([]engine.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Allocation
	for _, a := range m.allocations {
		if a.ProjectID == projectID && (status == "" || a.Status == status) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListActiveAllocations(_ context.Context) ([]engine.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Allocation
	for _, a := range m.allocations {
		if a.Status == engine.AllocationActive {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveAllocation(_ context.Context, a engine.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations[a.ID] = a
	return nil
}

func (m *Memory) DeleteAllocation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.allocations, id)
	return nil
}

func (m *Memory) SetAllocationStatus(_ context.Context, id string, status engine.AllocationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.allocations[id]
	if !ok {
		return &engine.NotFoundError{Entity: "allocation", ID: id}
	}
	a.Status = status
	m.allocations[id] = a
	return nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees = make(map[string]engine.Employee)
	m.projects = make(map[string]engine.Project)
	m.demands = make(map[string]engine.Demand)
	m.allocations = make(map[string]engine.Allocation)
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// WithTx runs fn against the same store. The memory store offers no real
// rollback; tests rely on single-goroutine sequencing.
func (m *Memory) WithTx(_ context.Context, fn func(engine.Store) error) error {
	return fn(m)
}
