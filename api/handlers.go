/*
handlers.go - HTTP API handlers for the allocation engine

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                  List all employees
    POST   /api/employees                  Create employee
    GET    /api/employees/{id}             Get employee (self-healing read)
    POST   /api/employees/{id}/resign      Mark employee resigned
    GET    /api/employees/{id}/allocations Allocations for an employee

  Projects:
    GET    /api/projects                   List all projects
    POST   /api/projects                   Create project
    GET    /api/projects/{id}              Get project
    PUT    /api/projects/{id}              Update project
    GET    /api/projects/{id}/allocations  Allocations under a project
    GET    /api/projects/{id}/demands      Demands under a project
    GET    /api/projects/{id}/coverage     Skill coverage per demand

  Demands:
    POST   /api/demands                    Create demand
    GET    /api/demands/{id}               Get demand
    PUT    /api/demands/{id}               Update demand
    DELETE /api/demands/{id}               Delete demand

  Allocations:
    POST   /api/allocations                Create allocation
    GET    /api/allocations/{id}           Get allocation
    PUT    /api/allocations/{id}           Update allocation
    DELETE /api/allocations/{id}           Delete allocation

  Admin:
    POST   /api/admin/sweep                Run the expiry sweep now

  Scenarios (dev/demo only):
    GET    /api/scenarios                  List available demo scenarios
    GET    /api/scenarios/current          Currently loaded scenario
    POST   /api/scenarios/load             Reset the database, load a scenario

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator tags)
  3. Call the engine (pre-check hooks enforce domain rules)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input (bad JSON, bad dates, validator failures)
  - 404: Resource not found
  - 422: Domain rejections (budget, capacity, date window)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - engine/errors.go: Domain error taxonomy translated here
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/warp/allocation-engine/engine"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *engine.Engine
	validate *validator.Validate
	log      *logrus.Logger

	currentScenario string
}

// NewHandler creates a new handler over the given engine.
func NewHandler(eng *engine.Engine, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Engine:   eng,
		validate: validator.New(),
		log:      log,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Engine.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTOs(employees))
}

// CreateEmployee creates a new employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	emp, err := h.Engine.CreateEmployee(r.Context(), engine.Employee{
		ID:     req.ID,
		Name:   req.Name,
		Skills: req.Skills,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(*emp))
}

// GetEmployee returns one employee. The read self-heals expired allocation
// state before responding.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	emp, err := h.Engine.GetEmployee(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// ResignEmployee flips an employee to the terminal Resigned status.
func (h *Handler) ResignEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Engine.MarkResigned(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListEmployeeAllocations returns an employee's allocations, optionally
// filtered by ?status=Active|Completed|Cancelled.
func (h *Handler) ListEmployeeAllocations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status := engine.AllocationStatus(r.URL.Query().Get("status"))

	allocations, err := h.Engine.ListAllocationsByEmployee(r.Context(), id, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list allocations", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTOs(allocations))
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

// ListProjects returns all projects with their derived counts.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Engine.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTOs(projects))
}

// CreateProject creates a new project.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date", err)
		return
	}

	p, err := h.Engine.CreateProject(r.Context(), engine.Project{
		ID:                req.ID,
		Name:              req.Name,
		Status:            engine.ProjectStatus(req.Status),
		StartDate:         start,
		EndDate:           end,
		ExternalRef:       req.ExternalRef,
		RequiredResources: req.RequiredResources,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(*p))
}

// GetProject returns one project.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.Engine.GetProject(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(*p))
}

// UpdateProject applies a partial update. Closing a project cascades into
// its active allocations.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	patch := engine.ProjectPatch{
		Name:              req.Name,
		ExternalRef:       req.ExternalRef,
		RequiredResources: req.RequiredResources,
	}
	if req.Status != nil {
		status := engine.ProjectStatus(*req.Status)
		patch.Status = &status
	}
	if req.StartDate != nil {
		d, err := parseDate(*req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date", err)
			return
		}
		patch.StartDate = &d
	}
	if req.EndDate != nil {
		d, err := parseDate(*req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date", err)
			return
		}
		patch.EndDate = &d
	}

	p, err := h.Engine.UpdateProject(r.Context(), id, patch)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(*p))
}

// ListProjectAllocations returns a project's allocations, optionally
// filtered by ?status=.
func (h *Handler) ListProjectAllocations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status := engine.AllocationStatus(r.URL.Query().Get("status"))

	allocations, err := h.Engine.ListAllocationsByProject(r.Context(), id, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list allocations", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTOs(allocations))
}

// ListProjectDemands returns the demands under a project.
func (h *Handler) ListProjectDemands(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	demands, err := h.Engine.ListDemandsByProject(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list demands", err)
		return
	}
	writeJSON(w, http.StatusOK, toDemandDTOs(demands))
}

// GetProjectCoverage returns per-demand skill coverage for a project.
func (h *Handler) GetProjectCoverage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	coverage, err := h.Engine.DemandCoverageForProject(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute coverage", err)
		return
	}
	writeJSON(w, http.StatusOK, toCoverageDTOs(coverage))
}

// =============================================================================
// DEMAND HANDLERS
// =============================================================================

// CreateDemand adds a skill demand to a project and reprices its required
// resource count.
func (h *Handler) CreateDemand(w http.ResponseWriter, r *http.Request) {
	var req CreateDemandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	d, err := h.Engine.CreateDemand(r.Context(), engine.Demand{
		ID:        req.ID,
		ProjectID: req.ProjectID,
		Skill:     req.Skill,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDemandDTO(*d))
}

// GetDemand returns one demand.
func (h *Handler) GetDemand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := h.Engine.GetDemand(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDemandDTO(*d))
}

// UpdateDemand applies a partial update and reprices the project.
func (h *Handler) UpdateDemand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateDemandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	d, err := h.Engine.UpdateDemand(r.Context(), id, engine.DemandPatch{
		Skill:    req.Skill,
		Quantity: req.Quantity,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDemandDTO(*d))
}

// DeleteDemand removes a demand and reprices the project.
func (h *Handler) DeleteDemand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Engine.DeleteDemand(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

// CreateAllocation assigns an employee to a project. The engine's pre-checks
// enforce the budget ceiling, project capacity, and date windows.
func (h *Handler) CreateAllocation(w http.ResponseWriter, r *http.Request) {
	var req CreateAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date", err)
		return
	}

	a, err := h.Engine.CreateAllocation(r.Context(), engine.AllocationDraft{
		ID:         req.ID,
		EmployeeID: req.EmployeeID,
		ProjectID:  req.ProjectID,
		Percentage: req.Percentage,
		Status:     engine.AllocationStatus(req.Status),
		StartDate:  start,
		EndDate:    end,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAllocationDTO(*a))
}

// GetAllocation returns one allocation.
func (h *Handler) GetAllocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := h.Engine.GetAllocation(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTO(*a))
}

// UpdateAllocation applies a partial update. Employee, project, and
// percentage changes re-run the budget and capacity checks.
func (h *Handler) UpdateAllocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	patch := engine.AllocationPatch{
		EmployeeID: req.EmployeeID,
		ProjectID:  req.ProjectID,
		Percentage: req.Percentage,
	}
	if req.Status != nil {
		status := engine.AllocationStatus(*req.Status)
		patch.Status = &status
	}
	if req.StartDate != nil {
		d, err := parseDate(*req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date", err)
			return
		}
		patch.StartDate = &d
	}
	if req.EndDate != nil {
		d, err := parseDate(*req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date", err)
			return
		}
		patch.EndDate = &d
	}

	a, err := h.Engine.UpdateAllocation(r.Context(), id, patch)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTO(*a))
}

// DeleteAllocation removes an allocation, releasing its budget share.
func (h *Handler) DeleteAllocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Engine.DeleteAllocation(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerSweep runs the expiry sweep immediately.
// POST /api/admin/sweep
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.Engine.CheckExpiredItems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResultDTO{
		AllocationsCompleted: result.AllocationsCompleted,
		ProjectsClosed:       result.ProjectsClosed,
		EmployeesAffected:    result.EmployeesAffected,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError translates engine errors to HTTP statuses: missing
// records map to 404, malformed input to 400, domain rejections (budget,
// capacity, date window) to 422, anything else to 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, engine.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, engine.ErrBudgetExceeded):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "Budget exceeded", Code: "budget_exceeded", Details: err.Error(),
		})
	case errors.Is(err, engine.ErrCapacityExceeded):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "Capacity exceeded", Code: "capacity_exceeded", Details: err.Error(),
		})
	case errors.Is(err, engine.ErrDateRange):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "Date range violation", Code: "date_range", Details: err.Error(),
		})
	default:
		h.log.WithError(err).Error("unhandled engine error")
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

// parseDate parses an optional "YYYY-MM-DD" value; empty means unset.
func parseDate(s string) (engine.Date, error) {
	if s == "" {
		return engine.Date{}, nil
	}
	return engine.ParseDate(s)
}
