// Package apierror provides standardized API error responses shared by
// all HTTP handlers.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeValidationFailed   Code = "VALIDATION_FAILED"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"

	// Domain-specific codes clients branch on.
	CodeSubdomainTaken       Code = "SUBDOMAIN_TAKEN"
	CodeInvitationExpired    Code = "INVITATION_EXPIRED"
	CodeInvitationProcessed  Code = "INVITATION_ALREADY_PROCESSED"
	CodeAlreadyMember        Code = "ALREADY_MEMBER"
	CodeMissingTenantContext Code = "MISSING_TENANT_CONTEXT"
)

// Error is a standardized API error.
type Error struct {
	// HTTP status code, not serialized.
	Status int `json:"-"`

	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`

	// Internal cause, never exposed to the client.
	Err error `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Response is the JSON error envelope.
type Response struct {
	Error     string `json:"error"`
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ToResponse converts the error to a response envelope.
func (e *Error) ToResponse() Response {
	return Response{
		Error:   string(e.Code),
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// WriteJSON writes the error as JSON to the response writer.
func (e *Error) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e.ToResponse())
}

// WriteJSONWithRequestID writes the error as JSON tagged with the
// request ID.
func (e *Error) WriteJSONWithRequestID(w http.ResponseWriter, requestID string) {
	resp := e.ToResponse()
	resp.RequestID = requestID
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(resp)
}

// New creates a new API error.
func New(status int, code Code, message string) *Error {
	return &Error{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with API error context.
func Wrap(err error, status int, code Code, message string) *Error {
	return &Error{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds details to the error.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// WithError attaches an internal cause.
func (e *Error) WithError(err error) *Error {
	e.Err = err
	return e
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, message)
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden creates a 403 Forbidden error.
func Forbidden(message string) *Error {
	if message == "" {
		message = "Access denied"
	}
	return New(http.StatusForbidden, CodeForbidden, message)
}

// NotFound creates a 404 Not Found error.
func NotFound(resource string) *Error {
	message := "Resource not found"
	if resource != "" {
		message = fmt.Sprintf("%s not found", resource)
	}
	return New(http.StatusNotFound, CodeNotFound, message)
}

// Conflict creates a 409 Conflict error.
func Conflict(message string) *Error {
	return New(http.StatusConflict, CodeConflict, message)
}

// SubdomainTaken creates a 409 with the dedicated code so onboarding
// clients can prompt for a different subdomain.
func SubdomainTaken() *Error {
	return New(http.StatusConflict, CodeSubdomainTaken, "Subdomain is already taken")
}

// InvitationExpired creates a 400 for an expired invitation. Expiry is
// a bad-request condition, distinct from the 404 a non-pending or
// unknown token gets.
func InvitationExpired() *Error {
	return New(http.StatusBadRequest, CodeInvitationExpired, "Invitation has expired")
}

// InvitationAlreadyProcessed creates a 409 for a non-pending invitation.
func InvitationAlreadyProcessed() *Error {
	return New(http.StatusConflict, CodeInvitationProcessed, "Invitation has already been processed")
}

// ValidationFailed creates a 422 Unprocessable Entity error.
func ValidationFailed(message string, details any) *Error {
	return &Error{
		Status:  http.StatusUnprocessableEntity,
		Code:    CodeValidationFailed,
		Message: message,
		Details: details,
	}
}

// InternalError creates a 500 Internal Server Error.
func InternalError(err error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternalError,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return New(http.StatusServiceUnavailable, CodeServiceUnavailable, message)
}

// RateLimitExceeded creates a 429 Too Many Requests error.
func RateLimitExceeded() *Error {
	return New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded")
}

// IsAPIError checks if an error is an API error.
func IsAPIError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr)
}

// FromError converts any error to an API error, wrapping unknown
// errors as internal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	return InternalError(err)
}

// ValidationError is a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of field validation failures.
type ValidationErrors []ValidationError

// Add appends a validation error.
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// HasErrors reports whether any validation errors were collected.
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// ToAPIError converts the collection to a 422 API error.
func (v ValidationErrors) ToAPIError() *Error {
	return ValidationFailed("Validation failed", v)
}
