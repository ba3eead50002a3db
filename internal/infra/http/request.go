package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// PathParam extracts a URL path parameter from the request.
func PathParam(r *http.Request, key string) string {
	if val := chi.URLParam(r, key); val != "" {
		return val
	}
	return r.PathValue(key)
}

// QueryParam extracts a URL query parameter from the request.
func QueryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// QueryParamDefault extracts a URL query parameter with a default.
func QueryParamDefault(r *http.Request, key, defaultValue string) string {
	if val := r.URL.Query().Get(key); val != "" {
		return val
	}
	return defaultValue
}
