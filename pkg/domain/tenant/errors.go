package tenant

import (
	"fmt"

	"github.com/buildledger/api/pkg/domain/shared"
)

// Domain errors for tenant and invitation operations. Each wraps a
// shared sentinel so transport layers can map them without string
// matching.
var (
	// ErrSubdomainTaken is returned when the requested subdomain is
	// already reserved by another tenant.
	ErrSubdomainTaken = fmt.Errorf("%w: subdomain is already taken", shared.ErrConflict)

	// ErrSubdomainInvalidFormat is returned for subdomains outside the
	// 3-50 character lowercase alphanumeric-and-hyphen format.
	ErrSubdomainInvalidFormat = fmt.Errorf("%w: subdomain must be 3-50 lowercase letters, numbers, and hyphens", shared.ErrValidation)

	// ErrAlreadyMember is returned when an invitation targets an email
	// that already has an active user record in the tenant.
	ErrAlreadyMember = fmt.Errorf("%w: user with this email is already a member", shared.ErrConflict)

	// ErrInvitationAlreadySent is returned when a pending invitation for
	// the email already exists in the tenant.
	ErrInvitationAlreadySent = fmt.Errorf("%w: a pending invitation already exists for this email", shared.ErrConflict)

	// ErrInvalidInvitation is returned when no pending invitation matches
	// the presented token.
	ErrInvalidInvitation = fmt.Errorf("invitation %w or no longer pending", shared.ErrNotFound)

	// ErrInvitationExpired is returned when the invitation's computed
	// expiry has passed. The stored status stays pending; expiry is
	// evaluated on every use.
	ErrInvitationExpired = fmt.Errorf("%w: invitation has expired", shared.ErrValidation)

	// ErrInvitationAlreadyProcessed is returned to the loser of a
	// concurrent acceptance race, when the conditional pending->accepted
	// status write matched no rows.
	ErrInvitationAlreadyProcessed = fmt.Errorf("%w: invitation was already processed", shared.ErrConflict)
)

// NotFoundError builds a not-found error for a tenant ID.
func NotFoundError(id shared.ID) error {
	return fmt.Errorf("tenant with id %s %w", id, shared.ErrNotFound)
}

// InvitationNotFoundError builds a not-found error for an invitation ID.
func InvitationNotFoundError(id shared.ID) error {
	return fmt.Errorf("invitation with id %s %w", id, shared.ErrNotFound)
}
