package routes

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerMiscRoutes registers health probes, the Prometheus scrape
// endpoint, and the client bootstrap endpoint. All public: bootstrap
// does its own optional token handling so anonymous visitors still get
// a routing decision.
func registerMiscRoutes(router Router, h Handlers) {
	router.GET("/health", h.Health.Health)
	router.GET("/ready", h.Health.Ready)
	router.GET("/metrics", promhttp.Handler().ServeHTTP)

	router.GET("/api/v1/bootstrap", h.Bootstrap.Bootstrap)
}
