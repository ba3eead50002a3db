package handler

import (
	"net/http"
	"time"

	"github.com/buildledger/api/internal/app"
	"github.com/buildledger/api/internal/infra/http/middleware"
	"github.com/buildledger/api/pkg/apierror"
	"github.com/buildledger/api/pkg/jwt"
	"github.com/buildledger/api/pkg/logger"
	"github.com/buildledger/api/pkg/validator"
)

// AuthHandler handles session exchange and lifecycle endpoints.
type AuthHandler struct {
	service   *app.AuthService
	users     *app.UserService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(svc *app.AuthService, users *app.UserService, v *validator.Validator, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service:   svc,
		users:     users,
		validator: v,
		logger:    log.With("handler", "auth"),
	}
}

// ExchangeRequest carries an identity provider token to trade for a
// local session.
type ExchangeRequest struct {
	Token string `json:"token" validate:"required"`
}

// RefreshRequest carries a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SessionResponse is the session pair returned on sign-in and refresh.
type SessionResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time     `json:"expires_at"`
	User         *UserResponse `json:"user,omitempty"`
}

func toSessionResponse(s *app.Session) SessionResponse {
	resp := SessionResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
	}
	if s.User != nil {
		u := toUserResponse(s.User)
		resp.User = &u
	}
	return resp
}

// Exchange handles POST /api/v1/auth/session.
func (h *AuthHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	session, err := h.service.ExchangeToken(r.Context(), req.Token)
	if err != nil {
		handleServiceError(w, h.logger, err, "Session")
		return
	}

	respondJSON(w, http.StatusOK, toSessionResponse(session))
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	session, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(w, h.logger, err, "Session")
		return
	}

	respondJSON(w, http.StatusOK, toSessionResponse(session))
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		apierror.Unauthorized("Authentication required").WriteJSON(w)
		return
	}
	sessionID, _ := middleware.GetSessionID(r.Context())

	claims := &jwt.Claims{UserID: userID.String(), SessionID: sessionID}
	if err := h.service.Logout(r.Context(), claims); err != nil {
		handleServiceError(w, h.logger, err, "Session")
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	record, ok := middleware.GetUserRecord(r.Context())
	if !ok {
		apierror.Unauthorized("Authentication required").WriteJSON(w)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(record))
}
