// Package handler contains the HTTP handlers for the public API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/buildledger/api/pkg/apierror"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/domain/tenant"
	"github.com/buildledger/api/pkg/logger"
	"github.com/buildledger/api/pkg/pagination"
	"github.com/buildledger/api/pkg/validator"
)

// ListResponse is the envelope for paginated list endpoints.
type ListResponse[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// newListResponse maps a pagination result into the response envelope,
// converting each item.
func newListResponse[D, T any](result pagination.Result[D], convert func(D) T) ListResponse[T] {
	data := make([]T, 0, len(result.Data))
	for _, item := range result.Data {
		data = append(data, convert(item))
	}
	return ListResponse[T]{
		Data:       data,
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func handleValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apiErrors := make([]apierror.ValidationError, len(validationErrors))
		for i, ve := range validationErrors {
			apiErrors[i] = apierror.ValidationError{
				Field:   ve.Field,
				Message: ve.Message,
			}
		}
		apierror.ValidationFailed("Validation failed", apiErrors).WriteJSON(w)
		return
	}
	apierror.BadRequest("Validation error").WriteJSON(w)
}

// handleServiceError maps domain errors onto the API error envelope.
// Specific sentinels are checked before the generic classes they wrap.
func handleServiceError(w http.ResponseWriter, log *logger.Logger, err error, resource string) {
	switch {
	case errors.Is(err, tenant.ErrSubdomainTaken):
		apierror.SubdomainTaken().WriteJSON(w)
	case errors.Is(err, tenant.ErrInvitationExpired):
		apierror.InvitationExpired().WriteJSON(w)
	case errors.Is(err, tenant.ErrInvitationAlreadyProcessed):
		apierror.InvitationAlreadyProcessed().WriteJSON(w)
	case errors.Is(err, shared.ErrNotFound):
		apierror.NotFound(resource).WriteJSON(w)
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrAlreadyExists):
		apierror.Conflict(trimSentinelPrefix(err)).WriteJSON(w)
	case errors.Is(err, shared.ErrValidation):
		apierror.BadRequest(trimSentinelPrefix(err)).WriteJSON(w)
	case errors.Is(err, shared.ErrUnauthorized):
		apierror.Unauthorized("Authentication failed").WriteJSON(w)
	case errors.Is(err, shared.ErrForbidden):
		apierror.Forbidden("Operation not allowed").WriteJSON(w)
	case errors.Is(err, shared.ErrUpstreamUnavailable):
		log.Error("upstream unavailable", "error", err)
		apierror.ServiceUnavailable("A backing service is temporarily unavailable").WriteJSON(w)
	default:
		log.Error("service error", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}

// trimSentinelPrefix strips the wrapped sentinel prefix so the client
// sees the human part of the message.
func trimSentinelPrefix(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx != -1 {
		return msg[idx+2:]
	}
	return msg
}

func parsePagination(r *http.Request) pagination.Request {
	page := parseQueryInt(r.URL.Query().Get("page"), 1)
	perPage := parseQueryInt(r.URL.Query().Get("per_page"), 20)
	return pagination.New(page, perPage)
}

// parseQueryInt parses a query parameter as an integer, falling back
// to defaultVal when empty or invalid.
func parseQueryInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return val
}

func pathID(r *http.Request, name string) (shared.ID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return shared.ID{}, shared.ValidationErrorf("%s is required", name)
	}
	return shared.IDFromString(raw)
}
