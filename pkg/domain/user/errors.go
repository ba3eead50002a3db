package user

import (
	"errors"
	"fmt"

	"github.com/buildledger/api/pkg/domain/shared"
)

// Domain errors for user record operations.
var (
	ErrUserNotFound      = fmt.Errorf("user %w", shared.ErrNotFound)
	ErrUserAlreadyExists = fmt.Errorf("user %w", shared.ErrAlreadyExists)
	ErrUserInactive      = errors.New("user is deactivated")

	// ErrSelfDeactivation is returned when a user attempts to deactivate
	// their own record.
	ErrSelfDeactivation = fmt.Errorf("%w: a user may not deactivate itself", shared.ErrValidation)

	// ErrTenantAlreadyAssigned is returned when a record already bound to
	// one tenant is bound to a different one. tenant_id is set exactly
	// once under normal operation.
	ErrTenantAlreadyAssigned = fmt.Errorf("%w: user already belongs to a tenant", shared.ErrConflict)
)

// NotFoundError builds a not-found error for a specific user ID.
func NotFoundError(id shared.ID) error {
	return fmt.Errorf("user with id %s %w", id, shared.ErrNotFound)
}

// NotFoundByEmailError builds a not-found error for an email address.
func NotFoundByEmailError(email string) error {
	return fmt.Errorf("user with email %s %w", email, shared.ErrNotFound)
}

func invalidResourceError(r Resource) error {
	return fmt.Errorf("%w: unknown resource %q", shared.ErrValidation, r)
}

func invalidLevelError(r Resource, l Level) error {
	return fmt.Errorf("%w: invalid level %q for resource %q", shared.ErrValidation, l, r)
}
