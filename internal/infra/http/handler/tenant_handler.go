package handler

import (
	"net/http"
	"time"

	"github.com/buildledger/api/internal/app"
	"github.com/buildledger/api/internal/infra/http/middleware"
	"github.com/buildledger/api/pkg/apierror"
	"github.com/buildledger/api/pkg/domain/tenant"
	"github.com/buildledger/api/pkg/logger"
	"github.com/buildledger/api/pkg/validator"
)

// TenantHandler handles workspace and invitation endpoints.
type TenantHandler struct {
	service   *app.TenantService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewTenantHandler creates a new tenant handler.
func NewTenantHandler(svc *app.TenantService, v *validator.Validator, log *logger.Logger) *TenantHandler {
	return &TenantHandler{
		service:   svc,
		validator: v,
		logger:    log.With("handler", "tenant"),
	}
}

// TenantResponse represents a workspace in API responses.
type TenantResponse struct {
	ID        string    `json:"id"`
	Subdomain string    `json:"subdomain"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTenantResponse(t *tenant.Tenant) TenantResponse {
	return TenantResponse{
		ID:        t.ID().String(),
		Subdomain: t.Subdomain(),
		Name:      t.Name(),
		Email:     t.Email(),
		Phone:     t.Phone(),
		Plan:      t.Plan().String(),
		Status:    t.Status().String(),
		CreatedAt: t.CreatedAt(),
		UpdatedAt: t.UpdatedAt(),
	}
}

// InvitationResponse represents an invitation in API responses. The
// token is only included for the inviting side right after creation.
type InvitationResponse struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Role      string            `json:"role"`
	Status    string            `json:"status"`
	InvitedBy string            `json:"invited_by"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
	Pending   bool              `json:"pending"`
	Token     string            `json:"token,omitempty"`
	Perms     map[string]string `json:"permissions,omitempty"`
}

func toInvitationResponse(inv *tenant.Invitation, includeToken bool) InvitationResponse {
	perms := make(map[string]string)
	for resource, level := range inv.Permissions() {
		perms[resource.String()] = string(level)
	}

	resp := InvitationResponse{
		ID:        inv.ID().String(),
		Email:     inv.Email(),
		Role:      inv.Role().String(),
		Status:    inv.Status().String(),
		InvitedBy: inv.InvitedBy().String(),
		ExpiresAt: inv.ExpiresAt(),
		CreatedAt: inv.CreatedAt(),
		Pending:   inv.IsPending(),
		Perms:     perms,
	}
	if includeToken {
		resp.Token = inv.Token()
	}
	return resp
}

// InvitationDetailsResponse is the public acceptance-page view of an
// invitation. It never carries the token back out.
type InvitationDetailsResponse struct {
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	TenantName  string    `json:"tenant_name"`
	InviterName string    `json:"inviter_name,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Create handles POST /api/v1/tenants.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		apierror.Unauthorized("Authentication required").WriteJSON(w)
		return
	}

	var input app.CreateTenantInput
	if err := decodeJSON(r, &input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	t, err := h.service.CreateTenant(r.Context(), input, userID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Tenant")
		return
	}
	respondJSON(w, http.StatusCreated, toTenantResponse(t))
}

// GetCurrent handles GET /api/v1/tenants/current.
func (h *TenantHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		apierror.Forbidden("No workspace membership").WriteJSON(w)
		return
	}

	t, err := h.service.GetTenant(r.Context(), tenantID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Tenant")
		return
	}
	respondJSON(w, http.StatusOK, toTenantResponse(t))
}

// UpdateCurrent handles PUT /api/v1/tenants/current.
func (h *TenantHandler) UpdateCurrent(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		apierror.Forbidden("No workspace membership").WriteJSON(w)
		return
	}

	var input app.UpdateTenantInput
	if err := decodeJSON(r, &input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	t, err := h.service.UpdateTenant(r.Context(), tenantID, input)
	if err != nil {
		handleServiceError(w, h.logger, err, "Tenant")
		return
	}
	respondJSON(w, http.StatusOK, toTenantResponse(t))
}

// CreateInvitation handles POST /api/v1/invitations.
func (h *TenantHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		apierror.Forbidden("No workspace membership").WriteJSON(w)
		return
	}
	inviterID, _ := middleware.GetUserID(r.Context())

	var input app.CreateInvitationInput
	if err := decodeJSON(r, &input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	inv, err := h.service.CreateInvitation(r.Context(), tenantID, input, inviterID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Invitation")
		return
	}
	respondJSON(w, http.StatusCreated, toInvitationResponse(inv, true))
}

// ListInvitations handles GET /api/v1/invitations.
func (h *TenantHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		apierror.Forbidden("No workspace membership").WriteJSON(w)
		return
	}

	invitations, err := h.service.ListInvitations(r.Context(), tenantID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Invitations")
		return
	}

	data := make([]InvitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		data = append(data, toInvitationResponse(inv, false))
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": data})
}

// ResendInvitation handles POST /api/v1/invitations/{invitationId}/resend.
func (h *TenantHandler) ResendInvitation(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		apierror.Forbidden("No workspace membership").WriteJSON(w)
		return
	}
	invitationID, err := pathID(r, "invitationId")
	if err != nil {
		apierror.BadRequest("Invalid invitation ID").WriteJSON(w)
		return
	}

	inv, err := h.service.ResendInvitation(r.Context(), tenantID, invitationID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Invitation")
		return
	}
	respondJSON(w, http.StatusOK, toInvitationResponse(inv, false))
}

// CancelInvitation handles DELETE /api/v1/invitations/{invitationId}.
func (h *TenantHandler) CancelInvitation(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		apierror.Forbidden("No workspace membership").WriteJSON(w)
		return
	}
	invitationID, err := pathID(r, "invitationId")
	if err != nil {
		apierror.BadRequest("Invalid invitation ID").WriteJSON(w)
		return
	}

	if err := h.service.CancelInvitation(r.Context(), tenantID, invitationID); err != nil {
		handleServiceError(w, h.logger, err, "Invitation")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// GetInvitationByToken handles GET /api/v1/invitations/lookup. The
// token travels in the query string because the acceptance page links
// to it directly from the email.
func (h *TenantHandler) GetInvitationByToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		apierror.BadRequest("Token is required").WriteJSON(w)
		return
	}

	details, err := h.service.GetInvitationByToken(r.Context(), token)
	if err != nil {
		handleServiceError(w, h.logger, err, "Invitation")
		return
	}

	respondJSON(w, http.StatusOK, InvitationDetailsResponse{
		Email:       details.Invitation.Email(),
		Role:        details.Invitation.Role().String(),
		TenantName:  details.TenantName,
		InviterName: details.InviterName,
		ExpiresAt:   details.Invitation.ExpiresAt(),
	})
}

// AcceptInvitation handles POST /api/v1/invitations/accept.
func (h *TenantHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	var input app.AcceptInvitationInput
	if err := decodeJSON(r, &input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	record, err := h.service.AcceptInvitation(r.Context(), input)
	if err != nil {
		handleServiceError(w, h.logger, err, "Invitation")
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(record))
}
