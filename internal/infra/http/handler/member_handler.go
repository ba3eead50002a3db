package handler

import (
	"net/http"
	"time"

	"github.com/buildledger/api/internal/app"
	"github.com/buildledger/api/internal/infra/http/middleware"
	"github.com/buildledger/api/pkg/apierror"
	"github.com/buildledger/api/pkg/domain/user"
	"github.com/buildledger/api/pkg/logger"
	"github.com/buildledger/api/pkg/validator"
)

// MemberHandler handles workspace member endpoints.
type MemberHandler struct {
	service   *app.UserService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewMemberHandler creates a new member handler.
func NewMemberHandler(svc *app.UserService, v *validator.Validator, log *logger.Logger) *MemberHandler {
	return &MemberHandler{
		service:   svc,
		validator: v,
		logger:    log.With("handler", "member"),
	}
}

// UserResponse represents a user record in API responses.
type UserResponse struct {
	ID          string            `json:"id"`
	TenantID    string            `json:"tenant_id,omitempty"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Role        string            `json:"role"`
	Permissions map[string]string `json:"permissions"`
	IsActive    bool              `json:"is_active"`
	LastLoginAt *time.Time        `json:"last_login_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func toUserResponse(r *user.Record) UserResponse {
	permissions := make(map[string]string)
	for resource, level := range r.Permissions() {
		permissions[resource.String()] = string(level)
	}

	resp := UserResponse{
		ID:          r.ID().String(),
		Name:        r.Name(),
		Email:       r.Email(),
		Role:        r.Role().String(),
		Permissions: permissions,
		IsActive:    r.IsActive(),
		LastLoginAt: r.LastLoginAt(),
		CreatedAt:   r.CreatedAt(),
		UpdatedAt:   r.UpdatedAt(),
	}
	if r.HasTenant() {
		resp.TenantID = r.TenantID().String()
	}
	return resp
}

// MemberStatsResponse summarizes workspace membership.
type MemberStatsResponse struct {
	Total  int   `json:"total"`
	Active int64 `json:"active"`
}

// UpdatePermissionsRequest carries a permission map rewrite.
type UpdatePermissionsRequest struct {
	Permissions map[string]string `json:"permissions" validate:"required,dive,keys,permission_resource,endkeys,permission_level"`
}

// List handles GET /api/v1/members.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		apierror.Forbidden("No workspace membership").WriteJSON(w)
		return
	}

	members, err := h.service.ListMembers(r.Context(), tenantID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Members")
		return
	}

	data := make([]UserResponse, 0, len(members))
	for _, m := range members {
		data = append(data, toUserResponse(m))
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": data})
}

// Get handles GET /api/v1/members/{memberId}.
func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		apierror.Forbidden("No workspace membership").WriteJSON(w)
		return
	}
	memberID, err := pathID(r, "memberId")
	if err != nil {
		apierror.BadRequest("Invalid member ID").WriteJSON(w)
		return
	}

	member, err := h.service.GetMember(r.Context(), tenantID, memberID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Member")
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(member))
}

// Stats handles GET /api/v1/members/stats.
func (h *MemberHandler) Stats(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		apierror.Forbidden("No workspace membership").WriteJSON(w)
		return
	}

	stats, err := h.service.GetMemberStats(r.Context(), tenantID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Members")
		return
	}
	respondJSON(w, http.StatusOK, MemberStatsResponse{
		Total:  stats.Total,
		Active: stats.Active,
	})
}

// UpdatePermissions handles PUT /api/v1/members/{memberId}/permissions.
func (h *MemberHandler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		apierror.Forbidden("No workspace membership").WriteJSON(w)
		return
	}
	memberID, err := pathID(r, "memberId")
	if err != nil {
		apierror.BadRequest("Invalid member ID").WriteJSON(w)
		return
	}

	var req UpdatePermissionsRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	member, err := h.service.UpdateMemberPermissions(r.Context(), tenantID, memberID, app.UpdateMemberPermissionsInput{
		Permissions: req.Permissions,
	})
	if err != nil {
		handleServiceError(w, h.logger, err, "Member")
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(member))
}

// Deactivate handles POST /api/v1/members/{memberId}/deactivate.
func (h *MemberHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		apierror.Forbidden("No workspace membership").WriteJSON(w)
		return
	}
	actorID, _ := middleware.GetUserID(r.Context())
	memberID, err := pathID(r, "memberId")
	if err != nil {
		apierror.BadRequest("Invalid member ID").WriteJSON(w)
		return
	}

	if err := h.service.DeactivateMember(r.Context(), tenantID, memberID, actorID); err != nil {
		handleServiceError(w, h.logger, err, "Member")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Activate handles POST /api/v1/members/{memberId}/activate.
func (h *MemberHandler) Activate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		apierror.Forbidden("No workspace membership").WriteJSON(w)
		return
	}
	memberID, err := pathID(r, "memberId")
	if err != nil {
		apierror.BadRequest("Invalid member ID").WriteJSON(w)
		return
	}

	if err := h.service.ActivateMember(r.Context(), tenantID, memberID); err != nil {
		handleServiceError(w, h.logger, err, "Member")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
