package routes

import (
	"github.com/buildledger/api/internal/infra/http/handler"
)

// registerAuthRoutes registers session lifecycle endpoints. Exchange
// and refresh are public but carry the stricter Redis limiter: they
// are the brute-force surface.
func registerAuthRoutes(router Router, h *handler.AuthHandler, authenticated, sensitive Middleware) {
	router.Group("/api/v1/auth", func(r Router) {
		if sensitive != nil {
			r.POST("/session", h.Exchange, sensitive)
			r.POST("/refresh", h.Refresh, sensitive)
		} else {
			r.POST("/session", h.Exchange)
			r.POST("/refresh", h.Refresh)
		}

		r.POST("/logout", h.Logout, authenticated)
		r.GET("/me", h.Me, authenticated)
	})
}
