package routes

import (
	"github.com/buildledger/api/internal/infra/http/middleware"
	"github.com/buildledger/api/pkg/domain/user"
)

// registerWorkspaceRoutes registers tenant, invitation, and member
// endpoints. The invitation lookup and acceptance endpoints are
// public: their callers hold a token, not a session.
func registerWorkspaceRoutes(router Router, h Handlers, authenticated, sensitive Middleware) {
	requireTenant := middleware.RequireTenant()
	usersRead := middleware.RequirePermission(user.ResourceUsers, user.LevelRead)
	usersWrite := middleware.RequirePermission(user.ResourceUsers, user.LevelWrite)

	// Workspace creation needs a session but no existing membership.
	router.POST("/api/v1/tenants", h.Tenant.Create, authenticated)

	router.Group("/api/v1/tenants/current", func(r Router) {
		r.GET("/", h.Tenant.GetCurrent)
		r.PUT("/", h.Tenant.UpdateCurrent, middleware.RequirePermission(user.ResourceUsers, user.LevelWrite))
	}, authenticated, requireTenant)

	// One group per prefix: chi rejects a second mount on the same
	// path, so the public and managed invitation routes live together
	// and carry their middleware per route.
	router.Group("/api/v1/invitations", func(r Router) {
		// Public token endpoints, behind the stricter limiter: the
		// token is the only credential, so these are enumeration
		// targets.
		if sensitive != nil {
			r.GET("/lookup", h.Tenant.GetInvitationByToken, sensitive)
			r.POST("/accept", h.Tenant.AcceptInvitation, sensitive)
		} else {
			r.GET("/lookup", h.Tenant.GetInvitationByToken)
			r.POST("/accept", h.Tenant.AcceptInvitation)
		}

		// Invitation management, members-side.
		r.GET("/", h.Tenant.ListInvitations, authenticated, requireTenant, usersRead)
		r.POST("/", h.Tenant.CreateInvitation, authenticated, requireTenant, usersWrite)
		r.POST("/{invitationId}/resend", h.Tenant.ResendInvitation, authenticated, requireTenant, usersWrite)
		r.DELETE("/{invitationId}", h.Tenant.CancelInvitation, authenticated, requireTenant, usersWrite)
	})

	router.Group("/api/v1/members", func(r Router) {
		r.GET("/", h.Member.List, usersRead)
		r.GET("/stats", h.Member.Stats, usersRead)
		r.GET("/{memberId}", h.Member.Get, usersRead)
		r.PUT("/{memberId}/permissions", h.Member.UpdatePermissions, usersWrite)
		r.POST("/{memberId}/deactivate", h.Member.Deactivate, usersWrite)
		r.POST("/{memberId}/activate", h.Member.Activate, usersWrite)
	}, authenticated, requireTenant)
}
