package http

import (
	"net/http"
)

// Middleware wraps an http.Handler, following the standard net/http
// middleware pattern.
type Middleware func(http.Handler) http.Handler

// Router is the routing surface handlers register against. The
// abstraction keeps the chi dependency out of handler code.
type Router interface {
	// Method handlers with optional route-specific middleware.
	// Middleware is applied in order: the first wraps outermost.
	GET(path string, handler http.HandlerFunc, middlewares ...Middleware)
	POST(path string, handler http.HandlerFunc, middlewares ...Middleware)
	PUT(path string, handler http.HandlerFunc, middlewares ...Middleware)
	PATCH(path string, handler http.HandlerFunc, middlewares ...Middleware)
	DELETE(path string, handler http.HandlerFunc, middlewares ...Middleware)

	// Group creates a route group under prefix. Group middleware
	// applies to every route inside it.
	Group(prefix string, fn func(Router), middlewares ...Middleware)

	// Use adds middleware for all subsequently registered routes.
	Use(middlewares ...Middleware)

	// With returns a Router that applies the middleware to routes
	// registered through it, without touching the parent.
	With(middlewares ...Middleware) Router

	// Handler returns the http.Handler for use with http.Server.
	Handler() http.Handler
}

// Chain applies middlewares to a handler, first middleware outermost.
func Chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
