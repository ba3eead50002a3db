// Package routes registers all HTTP routes for the API. Route
// definitions live in the infrastructure layer, not in main, and are
// split across files by domain.
package routes

import (
	"github.com/buildledger/api/internal/app"
	"github.com/buildledger/api/internal/config"
	infrahttp "github.com/buildledger/api/internal/infra/http"
	"github.com/buildledger/api/internal/infra/http/handler"
	"github.com/buildledger/api/internal/infra/http/middleware"
	"github.com/buildledger/api/pkg/logger"
)

// Middleware is an alias to the http package's Middleware type.
type Middleware = infrahttp.Middleware

// Router is an alias to the http package's Router interface.
type Router = infrahttp.Router

// Handlers holds all HTTP handlers for route registration.
type Handlers struct {
	Health     *handler.HealthHandler
	Auth       *handler.AuthHandler
	Bootstrap  *handler.BootstrapHandler
	Tenant     *handler.TenantHandler
	Member     *handler.MemberHandler
	Project    *handler.ProjectHandler
	Cost       *handler.CostHandler
	Invoice    *handler.InvoiceHandler
	Attachment *handler.AttachmentHandler
}

// Deps carries the cross-cutting services route registration needs
// beyond the handlers themselves.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	AuthService *app.AuthService
	UserService *app.UserService
	// Sensitive is the Redis-backed limiter applied to the sign-in
	// and invitation acceptance endpoints. Nil disables it.
	Sensitive middleware.SensitiveLimiter
}

// Register registers all application routes.
func Register(router Router, h Handlers, deps Deps) {
	authenticated := middleware.Authenticate(deps.AuthService, deps.UserService)

	var sensitive Middleware
	if deps.Sensitive != nil {
		sensitive = middleware.SensitiveRateLimit(deps.Sensitive, deps.Logger)
	}

	registerMiscRoutes(router, h)
	registerAuthRoutes(router, h.Auth, authenticated, sensitive)
	registerWorkspaceRoutes(router, h, authenticated, sensitive)
	registerProjectRoutes(router, h, authenticated)
	registerBillingRoutes(router, h, authenticated)
}
