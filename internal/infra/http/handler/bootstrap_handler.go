package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/buildledger/api/internal/app"
	"github.com/buildledger/api/pkg/apierror"
	"github.com/buildledger/api/pkg/domain/resolver"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/logger"
)

// BootstrapHandler serves the client bootstrap endpoint that feeds the
// routing guard.
type BootstrapHandler struct {
	resolver *app.ResolverService
	auth     *app.AuthService
	logger   *logger.Logger
}

// NewBootstrapHandler creates a new bootstrap handler.
func NewBootstrapHandler(svc *app.ResolverService, auth *app.AuthService, log *logger.Logger) *BootstrapHandler {
	return &BootstrapHandler{
		resolver: svc,
		auth:     auth,
		logger:   log.With("handler", "bootstrap"),
	}
}

// SnapshotResponse mirrors the guard's input for client debugging.
type SnapshotResponse struct {
	Identity   string `json:"identity"`
	Membership string `json:"membership"`
	Tenant     string `json:"tenant"`
	Page       string `json:"page"`
	WaitedMs   int64  `json:"waited_ms"`
}

// BootstrapResponse is the guard decision plus the data the client
// needs to render without further round trips.
type BootstrapResponse struct {
	Decision string           `json:"decision"`
	Redirect bool             `json:"redirect"`
	Target   string           `json:"target,omitempty"`
	Snapshot SnapshotResponse `json:"snapshot"`
	User     *UserResponse    `json:"user,omitempty"`
	Tenant   *TenantResponse  `json:"tenant,omitempty"`
}

// Bootstrap handles GET /api/v1/bootstrap. Authentication is optional:
// an anonymous call still gets a decision, it just resolves with an
// absent identity.
func (h *BootstrapHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	identityID := h.optionalIdentity(r)

	page := resolver.Public
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, ok := resolver.ParsePageKind(raw)
		if !ok {
			apierror.BadRequest("Unknown page kind").WriteJSON(w)
			return
		}
		page = parsed
	}

	waited := time.Duration(parseQueryInt(r.URL.Query().Get("waited_ms"), 0)) * time.Millisecond

	subdomain := strings.TrimSpace(r.URL.Query().Get("subdomain"))
	if subdomain == "" {
		subdomain = strings.TrimSpace(r.Header.Get("X-Tenant-Subdomain"))
	}

	result, err := h.resolver.Bootstrap(r.Context(), identityID, subdomain, page, waited)
	if err != nil {
		handleServiceError(w, h.logger, err, "Bootstrap")
		return
	}

	resp := BootstrapResponse{
		Decision: result.Decision.String(),
		Redirect: result.Decision.IsRedirect(),
		Target:   result.Target.String(),
		Snapshot: SnapshotResponse{
			Identity:   result.Snapshot.Identity.String(),
			Membership: result.Snapshot.Membership.String(),
			Tenant:     result.Snapshot.Tenant.String(),
			Page:       result.Snapshot.Page.String(),
			WaitedMs:   result.Snapshot.Waited.Milliseconds(),
		},
	}
	if result.User != nil {
		u := toUserResponse(result.User)
		resp.User = &u
	}
	if result.Tenant != nil {
		t := toTenantResponse(result.Tenant)
		resp.Tenant = &t
	}

	respondJSON(w, http.StatusOK, resp)
}

// optionalIdentity resolves the caller's user ID from a bearer token
// when one is present. An invalid or expired token reads as anonymous
// rather than failing the bootstrap.
func (h *BootstrapHandler) optionalIdentity(r *http.Request) *shared.ID {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil
	}

	claims, err := h.auth.ValidateAccess(r.Context(), strings.TrimSpace(parts[1]))
	if err != nil {
		return nil
	}
	id, err := shared.IDFromString(claims.UserID)
	if err != nil {
		return nil
	}
	return &id
}
