// Package shared provides domain types and error sentinels used across
// all bounded contexts.
package shared

import (
	"errors"
	"fmt"
)

// Base sentinels. Domain packages wrap these with %w so callers can
// classify errors with errors.Is without importing every domain package.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")
	ErrInternal      = errors.New("internal error")

	// ErrMissingTenantContext indicates a tenant-scoped operation was
	// invoked without a tenant scope. This is a programming error, not a
	// recoverable condition: every store call must carry an explicit
	// tenant ID.
	ErrMissingTenantContext = errors.New("missing tenant context")

	// ErrUpstreamUnavailable indicates a transient failure of the
	// identity provider or a backing store.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err wraps ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict reports whether err wraps ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsUpstreamUnavailable reports whether err wraps ErrUpstreamUnavailable.
func IsUpstreamUnavailable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

// ValidationErrorf builds an error wrapping ErrValidation.
func ValidationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
