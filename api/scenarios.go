/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	staffing data for testing and demos. Each scenario creates employees,
	projects, demands, and allocations that demonstrate specific engine
	behavior.

AVAILABLE SCENARIOS:

	fresh-bench:        New hires, no projects - everyone on the bench
	staffing-crunch:    Demand-driven project with partial skill coverage
	external-sow:       Customer-committed project, fully staffed
	winding-down:       Past-dated allocations and projects ready to sweep

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create employees with skills
 3. Create projects (manual headcount or demand-driven)
 4. Create allocations through the engine so budgets, counts, and
    statuses reconcile exactly as they would in production

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "staffing-crunch"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler context, writeJSON/writeError helpers
  - engine/engine.go: The mutation surface the loaders drive
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/allocation-engine/engine"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-bench",
		Name:        "Fresh Bench",
		Description: "Five new hires with mixed skills and no projects yet",
		Category:    "staffing",
	},
	{
		ID:          "staffing-crunch",
		Name:        "Staffing Crunch",
		Description: "Demand-driven project with open skill gaps",
		Category:    "staffing",
	},
	{
		ID:          "external-sow",
		Name:        "External Engagement",
		Description: "Customer-committed project staffed to capacity",
		Category:    "staffing",
	},
	{
		ID:          "winding-down",
		Name:        "Winding Down",
		Description: "Expired allocations and a past-dated project for the sweeper",
		Category:    "expiry",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Engine.ResetData(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = "" // Clear current scenario on reset

	var err error
	switch req.ScenarioID {
	case "fresh-bench":
		err = h.loadFreshBenchScenario(ctx)
	case "staffing-crunch":
		err = h.loadStaffingCrunchScenario(ctx)
	case "external-sow":
		err = h.loadExternalSOWScenario(ctx)
	case "winding-down":
		err = h.loadWindingDownScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SEEDING HELPERS
// =============================================================================

func (h *Handler) seedEmployee(ctx context.Context, id, name string, skills ...string) error {
	_, err := h.Engine.CreateEmployee(ctx, engine.Employee{
		ID:     id,
		Name:   name,
		Skills: skills,
	})
	return err
}

func (h *Handler) seedAllocation(ctx context.Context, empID, projID string, pct int, start, end engine.Date) error {
	_, err := h.Engine.CreateAllocation(ctx, engine.AllocationDraft{
		EmployeeID: empID,
		ProjectID:  projID,
		Percentage: &pct,
		StartDate:  start,
		EndDate:    end,
	})
	return err
}

// quarterWindow returns the start of the current quarter and the start plus
// three months, anchored on the engine clock.
func (h *Handler) quarterWindow() (engine.Date, engine.Date) {
	today := h.Engine.Clock()
	qMonth := time.Month((int(today.Time.Month())-1)/3*3 + 1)
	start := engine.NewDate(today.Time.Year(), qMonth, 1)
	return start, start.AddMonths(3)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadFreshBenchScenario(ctx context.Context) error {
	hires := []struct {
		id, name string
		skills   []string
	}{
		{"emp-001", "Alice Johnson", []string{"go", "sql"}},
		{"emp-002", "Bob Martinez", []string{"react", "typescript"}},
		{"emp-003", "Carol Chen", []string{"go", "kubernetes"}},
		{"emp-004", "David Okafor", []string{"design"}},
		{"emp-005", "Eve Lindqvist", []string{"sql", "python"}},
	}
	for _, e := range hires {
		if err := h.seedEmployee(ctx, e.id, e.name, e.skills...); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadStaffingCrunchScenario(ctx context.Context) error {
	if err := h.loadFreshBenchScenario(ctx); err != nil {
		return err
	}

	start, end := h.quarterWindow()
	proj, err := h.Engine.CreateProject(ctx, engine.Project{
		ID:        "proj-platform",
		Name:      "Platform Rebuild",
		Status:    engine.ProjectActive,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		return err
	}

	// Demand-driven headcount: 3 Go + 2 React, only partially staffable
	// from the bench above.
	demands := []engine.Demand{
		{ProjectID: proj.ID, Skill: "go", Quantity: 3},
		{ProjectID: proj.ID, Skill: "react", Quantity: 2},
	}
	for _, d := range demands {
		if _, err := h.Engine.CreateDemand(ctx, d); err != nil {
			return err
		}
	}

	// Two Go engineers and the lone React engineer join; the remaining
	// demand shows up as open coverage.
	for _, empID := range []string{"emp-001", "emp-003", "emp-002"} {
		if err := h.seedAllocation(ctx, empID, proj.ID, 100, start, end); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadExternalSOWScenario(ctx context.Context) error {
	if err := h.loadFreshBenchScenario(ctx); err != nil {
		return err
	}

	start, end := h.quarterWindow()
	proj, err := h.Engine.CreateProject(ctx, engine.Project{
		ID:                "proj-acme",
		Name:              "Acme Integration",
		Status:            engine.ProjectActive,
		StartDate:         start,
		EndDate:           end,
		ExternalRef:       "SOW-2041",
		RequiredResources: 2,
	})
	if err != nil {
		return err
	}

	// Fully staffed customer engagement: both holders derive to Allocated.
	if err := h.seedAllocation(ctx, "emp-001", proj.ID, 100, start, end); err != nil {
		return err
	}
	if err := h.seedAllocation(ctx, "emp-004", proj.ID, 80, start, end); err != nil {
		return err
	}
	return nil
}

func (h *Handler) loadWindingDownScenario(ctx context.Context) error {
	if err := h.loadFreshBenchScenario(ctx); err != nil {
		return err
	}

	today := h.Engine.Clock()
	pastStart := today.AddMonths(-6)
	pastEnd := today.AddMonths(-1)

	// A finished engagement the sweeper has not seen yet. The project is
	// created already past its end date; its allocations carry the same
	// expired window. One sweep closes the project, completes the
	// allocations, releases the budgets, and benches both employees.
	proj, err := h.Engine.CreateProject(ctx, engine.Project{
		ID:                "proj-legacy",
		Name:              "Legacy Migration",
		Status:            engine.ProjectActive,
		StartDate:         pastStart,
		EndDate:           pastEnd,
		ExternalRef:       "SOW-1887",
		RequiredResources: 2,
	})
	if err != nil {
		return err
	}
	if err := h.seedAllocation(ctx, "emp-002", proj.ID, 100, pastStart, pastEnd); err != nil {
		return err
	}
	if err := h.seedAllocation(ctx, "emp-005", proj.ID, 60, pastStart, pastEnd); err != nil {
		return err
	}

	// A live project alongside, so the sweep visibly leaves healthy state alone.
	start, end := h.quarterWindow()
	live, err := h.Engine.CreateProject(ctx, engine.Project{
		ID:                "proj-current",
		Name:              "Current Work",
		Status:            engine.ProjectActive,
		StartDate:         start,
		EndDate:           end,
		RequiredResources: 1,
	})
	if err != nil {
		return err
	}
	return h.seedAllocation(ctx, "emp-001", live.ID, 50, start, end)
}
