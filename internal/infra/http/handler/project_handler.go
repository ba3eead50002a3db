package handler

import (
	"net/http"
	"time"

	"github.com/buildledger/api/internal/app"
	"github.com/buildledger/api/internal/infra/http/middleware"
	"github.com/buildledger/api/pkg/apierror"
	"github.com/buildledger/api/pkg/domain/project"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/logger"
	"github.com/buildledger/api/pkg/validator"
)

// ProjectHandler handles project endpoints.
type ProjectHandler struct {
	service   *app.ProjectService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(svc *app.ProjectService, v *validator.Validator, log *logger.Logger) *ProjectHandler {
	return &ProjectHandler{
		service:   svc,
		validator: v,
		logger:    log.With("handler", "project"),
	}
}

// ProjectResponse represents a project in API responses.
type ProjectResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Code        string     `json:"code"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	BudgetCents int64      `json:"budget_cents"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toProjectResponse(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID().String(),
		Name:        p.Name(),
		Code:        p.Code(),
		Description: p.Description(),
		Status:      p.Status().String(),
		BudgetCents: p.BudgetCents(),
		StartDate:   p.StartDate(),
		EndDate:     p.EndDate(),
		CreatedBy:   p.CreatedBy().String(),
		CreatedAt:   p.CreatedAt(),
		UpdatedAt:   p.UpdatedAt(),
	}
}

// CategoryTotalResponse is a per-category spend bucket.
type CategoryTotalResponse struct {
	Category string `json:"category"`
	Cents    int64  `json:"cents"`
}

// BudgetResponse is the budget roll-up for a project.
type BudgetResponse struct {
	BudgetCents        int64                   `json:"budget_cents"`
	ApprovedDeltaCents int64                   `json:"approved_delta_cents"`
	RevisedBudgetCents int64                   `json:"revised_budget_cents"`
	SpentCents         int64                   `json:"spent_cents"`
	RemainingCents     int64                   `json:"remaining_cents"`
	ByCategory         []CategoryTotalResponse `json:"by_category"`
}

// ChangeStatusRequest carries a project status transition.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,project_status"`
}

// SetDatesRequest carries schedule dates, either of which may be null.
type SetDatesRequest struct {
	StartDate *string `json:"start_date" validate:"omitempty"`
	EndDate   *string `json:"end_date" validate:"omitempty"`
}

// Create handles POST /api/v1/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := tenantActor(w, r)
	if !ok {
		return
	}

	var input app.CreateProjectInput
	if err := decodeJSON(r, &input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	p, err := h.service.CreateProject(r.Context(), tenantID, input, userID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Project")
		return
	}
	respondJSON(w, http.StatusCreated, toProjectResponse(p))
}

// List handles GET /api/v1/projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}

	filter := project.Filter{
		Status: project.Status(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
	}

	result, err := h.service.ListProjects(r.Context(), tenantID, filter, parsePagination(r))
	if err != nil {
		handleServiceError(w, h.logger, err, "Projects")
		return
	}
	respondJSON(w, http.StatusOK, newListResponse(result, toProjectResponse))
}

// Get handles GET /api/v1/projects/{projectId}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	projectID, err := pathID(r, "projectId")
	if err != nil {
		apierror.BadRequest("Invalid project ID").WriteJSON(w)
		return
	}

	p, err := h.service.GetProject(r.Context(), tenantID, projectID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Project")
		return
	}
	respondJSON(w, http.StatusOK, toProjectResponse(p))
}

// Update handles PUT /api/v1/projects/{projectId}.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	projectID, err := pathID(r, "projectId")
	if err != nil {
		apierror.BadRequest("Invalid project ID").WriteJSON(w)
		return
	}

	var input app.UpdateProjectInput
	if err := decodeJSON(r, &input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	p, err := h.service.UpdateProject(r.Context(), tenantID, projectID, input)
	if err != nil {
		handleServiceError(w, h.logger, err, "Project")
		return
	}
	respondJSON(w, http.StatusOK, toProjectResponse(p))
}

// ChangeStatus handles POST /api/v1/projects/{projectId}/status.
func (h *ProjectHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	projectID, err := pathID(r, "projectId")
	if err != nil {
		apierror.BadRequest("Invalid project ID").WriteJSON(w)
		return
	}

	var req ChangeStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	p, err := h.service.ChangeProjectStatus(r.Context(), tenantID, projectID, req.Status)
	if err != nil {
		handleServiceError(w, h.logger, err, "Project")
		return
	}
	respondJSON(w, http.StatusOK, toProjectResponse(p))
}

// SetDates handles PUT /api/v1/projects/{projectId}/dates.
func (h *ProjectHandler) SetDates(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	projectID, err := pathID(r, "projectId")
	if err != nil {
		apierror.BadRequest("Invalid project ID").WriteJSON(w)
		return
	}

	var req SetDatesRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	start, err := parseOptionalDate(req.StartDate)
	if err != nil {
		apierror.BadRequest("start_date must be YYYY-MM-DD").WriteJSON(w)
		return
	}
	end, err := parseOptionalDate(req.EndDate)
	if err != nil {
		apierror.BadRequest("end_date must be YYYY-MM-DD").WriteJSON(w)
		return
	}

	p, err := h.service.SetProjectDates(r.Context(), tenantID, projectID, start, end)
	if err != nil {
		handleServiceError(w, h.logger, err, "Project")
		return
	}
	respondJSON(w, http.StatusOK, toProjectResponse(p))
}

// Delete handles DELETE /api/v1/projects/{projectId}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	projectID, err := pathID(r, "projectId")
	if err != nil {
		apierror.BadRequest("Invalid project ID").WriteJSON(w)
		return
	}

	if err := h.service.DeleteProject(r.Context(), tenantID, projectID); err != nil {
		handleServiceError(w, h.logger, err, "Project")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Budget handles GET /api/v1/projects/{projectId}/budget.
func (h *ProjectHandler) Budget(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	projectID, err := pathID(r, "projectId")
	if err != nil {
		apierror.BadRequest("Invalid project ID").WriteJSON(w)
		return
	}

	budget, err := h.service.GetProjectBudget(r.Context(), tenantID, projectID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Project")
		return
	}

	byCategory := make([]CategoryTotalResponse, 0, len(budget.ByCategory))
	for _, ct := range budget.ByCategory {
		byCategory = append(byCategory, CategoryTotalResponse{
			Category: ct.Category.String(),
			Cents:    ct.Cents,
		})
	}
	respondJSON(w, http.StatusOK, BudgetResponse{
		BudgetCents:        budget.BudgetCents,
		ApprovedDeltaCents: budget.ApprovedDeltaCents,
		RevisedBudgetCents: budget.RevisedBudgetCents,
		SpentCents:         budget.SpentCents,
		RemainingCents:     budget.RemainingCents,
		ByCategory:         byCategory,
	})
}

// tenantActor pulls the tenant and user IDs from the context, writing
// the error response itself when either is missing.
func tenantActor(w http.ResponseWriter, r *http.Request) (tenantID, userID shared.ID, ok bool) {
	tenantID, hasTenant := middleware.GetTenantID(r.Context())
	if !hasTenant {
		apierror.Forbidden("No workspace membership").WriteJSON(w)
		return shared.ID{}, shared.ID{}, false
	}
	userID, hasUser := middleware.GetUserID(r.Context())
	if !hasUser {
		apierror.Unauthorized("Authentication required").WriteJSON(w)
		return shared.ID{}, shared.ID{}, false
	}
	return tenantID, userID, true
}

func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
