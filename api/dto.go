/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  them through the shared validator before touching the engine. Domain
  rules (budget, capacity, date windows) stay in the engine's pre-checks.

DATES:
  All dates cross the wire as "YYYY-MM-DD" strings. Empty string means
  unset; allocation dates then default from the project.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: Domain entities these map onto
*/
package api

import (
	"github.com/warp/allocation-engine/engine"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Status              string   `json:"status"`
	AllocatedPercentage int      `json:"allocated_percentage"`
	Skills              []string `json:"skills,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID     string   `json:"id"`
	Name   string   `json:"name" validate:"required"`
	Skills []string `json:"skills,omitempty"`
}

// ProjectDTO represents a project, including its derived resource counts.
type ProjectDTO struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Status             string `json:"status"`
	StartDate          string `json:"start_date,omitempty"`
	EndDate            string `json:"end_date,omitempty"`
	ExternalRef        string `json:"external_ref,omitempty"`
	RequiredResources  int    `json:"required_resources"`
	AllocatedResources int    `json:"allocated_resources"`
	ToBeAllocated      int    `json:"to_be_allocated"`
	ManualRequired     bool   `json:"manual_required"`
}

// CreateProjectRequest is the request to create a project.
type CreateProjectRequest struct {
	ID                string `json:"id"`
	Name              string `json:"name" validate:"required"`
	Status            string `json:"status" validate:"omitempty,oneof=Planned Active Closed"`
	StartDate         string `json:"start_date,omitempty"`
	EndDate           string `json:"end_date,omitempty"`
	ExternalRef       string `json:"external_ref,omitempty"`
	RequiredResources int    `json:"required_resources" validate:"gte=0"`
}

// UpdateProjectRequest carries the changed fields; nil means "keep".
type UpdateProjectRequest struct {
	Name              *string `json:"name,omitempty"`
	Status            *string `json:"status,omitempty" validate:"omitempty,oneof=Planned Active Closed"`
	StartDate         *string `json:"start_date,omitempty"`
	EndDate           *string `json:"end_date,omitempty"`
	ExternalRef       *string `json:"external_ref,omitempty"`
	RequiredResources *int    `json:"required_resources,omitempty" validate:"omitempty,gte=0"`
}

// DemandDTO represents a skill demand in API responses.
type DemandDTO struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Skill     string `json:"skill"`
	Quantity  int    `json:"quantity"`
}

// CreateDemandRequest is the request to add a demand to a project.
type CreateDemandRequest struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id" validate:"required"`
	Skill     string `json:"skill" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

// UpdateDemandRequest carries the changed fields; nil means "keep".
type UpdateDemandRequest struct {
	Skill    *string `json:"skill,omitempty"`
	Quantity *int    `json:"quantity,omitempty" validate:"omitempty,gte=0"`
}

// DemandCoverageDTO is the read-time coverage view of one demand.
type DemandCoverageDTO struct {
	DemandDTO
	AllocatedCount int `json:"allocated_count"`
	Remaining      int `json:"remaining"`
}

// AllocationDTO represents an employee-to-project assignment.
type AllocationDTO struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	ProjectID  string `json:"project_id"`
	Percentage int    `json:"percentage"`
	Status     string `json:"status"`
	StartDate  string `json:"start_date,omitempty"`
	EndDate    string `json:"end_date,omitempty"`
}

// CreateAllocationRequest is the request to allocate an employee.
// Percentage defaults to 100 when omitted; dates default from the project.
type CreateAllocationRequest struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id" validate:"required"`
	ProjectID  string `json:"project_id" validate:"required"`
	Percentage *int   `json:"percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	Status     string `json:"status" validate:"omitempty,oneof=Active Completed Cancelled"`
	StartDate  string `json:"start_date,omitempty"`
	EndDate    string `json:"end_date,omitempty"`
}

// UpdateAllocationRequest carries the changed fields; nil means "keep".
type UpdateAllocationRequest struct {
	EmployeeID *string `json:"employee_id,omitempty"`
	ProjectID  *string `json:"project_id,omitempty"`
	Percentage *int    `json:"percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	Status     *string `json:"status,omitempty" validate:"omitempty,oneof=Active Completed Cancelled"`
	StartDate  *string `json:"start_date,omitempty"`
	EndDate    *string `json:"end_date,omitempty"`
}

// SweepResultDTO reports what an expiry sweep changed.
type SweepResultDTO struct {
	AllocationsCompleted int `json:"allocations_completed"`
	ProjectsClosed       int `json:"projects_closed"`
	EmployeesAffected    int `json:"employees_affected"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e engine.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:                  e.ID,
		Name:                e.Name,
		Status:              string(e.Status),
		AllocatedPercentage: e.AllocatedPercentage.Int(),
		Skills:              e.Skills,
	}
}

func toEmployeeDTOs(employees []engine.Employee) []EmployeeDTO {
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	return dtos
}

func toProjectDTO(p engine.Project) ProjectDTO {
	return ProjectDTO{
		ID:                 p.ID,
		Name:               p.Name,
		Status:             string(p.Status),
		StartDate:          dateString(p.StartDate),
		EndDate:            dateString(p.EndDate),
		ExternalRef:        p.ExternalRef,
		RequiredResources:  p.RequiredResources,
		AllocatedResources: p.AllocatedResources,
		ToBeAllocated:      p.ToBeAllocated,
		ManualRequired:     p.ManualRequired,
	}
}

func toProjectDTOs(projects []engine.Project) []ProjectDTO {
	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	return dtos
}

func toDemandDTO(d engine.Demand) DemandDTO {
	return DemandDTO{
		ID:        d.ID,
		ProjectID: d.ProjectID,
		Skill:     d.Skill,
		Quantity:  d.Quantity,
	}
}

func toDemandDTOs(demands []engine.Demand) []DemandDTO {
	dtos := make([]DemandDTO, len(demands))
	for i, d := range demands {
		dtos[i] = toDemandDTO(d)
	}
	return dtos
}

func toCoverageDTOs(coverage []engine.DemandCoverage) []DemandCoverageDTO {
	dtos := make([]DemandCoverageDTO, len(coverage))
	for i, c := range coverage {
		dtos[i] = DemandCoverageDTO{
			DemandDTO:      toDemandDTO(c.Demand),
			AllocatedCount: c.AllocatedCount,
			Remaining:      c.Remaining,
		}
	}
	return dtos
}

func toAllocationDTO(a engine.Allocation) AllocationDTO {
	return AllocationDTO{
		ID:         a.ID,
		EmployeeID: a.EmployeeID,
		ProjectID:  a.ProjectID,
		Percentage: a.Percentage.Int(),
		Status:     string(a.Status),
		StartDate:  dateString(a.StartDate),
		EndDate:    dateString(a.EndDate),
	}
}

func toAllocationDTOs(allocations []engine.Allocation) []AllocationDTO {
	dtos := make([]AllocationDTO, len(allocations))
	for i, a := range allocations {
		dtos[i] = toAllocationDTO(a)
	}
	return dtos
}

func dateString(d engine.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}
