package tenant

import (
	"context"
	"time"

	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/pagination"
)

// Repository persists tenants and their invitations.
type Repository interface {
	// Create inserts a new tenant. Returns ErrSubdomainTaken when the
	// subdomain is already claimed.
	Create(ctx context.Context, t *Tenant) error

	// GetByID returns a tenant by ID.
	GetByID(ctx context.Context, id shared.ID) (*Tenant, error)

	// GetBySubdomain returns a tenant by its normalized subdomain.
	GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)

	// List returns tenants across the whole system, newest first,
	// with the total count. Operator tooling only; request handlers
	// are always tenant-scoped.
	List(ctx context.Context, page pagination.Request) ([]*Tenant, int64, error)

	// Update persists mutations to an existing tenant.
	Update(ctx context.Context, t *Tenant) error

	// ExistsBySubdomain reports whether a subdomain is already claimed.
	ExistsBySubdomain(ctx context.Context, subdomain string) (bool, error)

	// CreateInvitation inserts a pending invitation. Returns
	// ErrInvitationAlreadySent when a pending invitation for the same
	// tenant and email already exists.
	CreateInvitation(ctx context.Context, inv *Invitation) error

	// GetInvitationByToken returns an invitation by its token,
	// regardless of status.
	GetInvitationByToken(ctx context.Context, token string) (*Invitation, error)

	// GetInvitationByID returns an invitation scoped to a tenant.
	GetInvitationByID(ctx context.Context, tenantID, id shared.ID) (*Invitation, error)

	// GetPendingInvitationByEmail returns the pending invitation for
	// an email within a tenant, or a not-found error.
	GetPendingInvitationByEmail(ctx context.Context, tenantID shared.ID, email string) (*Invitation, error)

	// UpdateInvitation persists mutations to an existing invitation.
	UpdateInvitation(ctx context.Context, inv *Invitation) error

	// MarkInvitationAccepted flips status pending -> accepted as a
	// single conditional write. Returns ErrInvitationAlreadyProcessed
	// when the invitation was no longer pending, so concurrent accepts
	// resolve to exactly one winner.
	MarkInvitationAccepted(ctx context.Context, id shared.ID) error

	// ListInvitations returns a tenant's invitations, newest first.
	ListInvitations(ctx context.Context, tenantID shared.ID) ([]*Invitation, error)

	// DeleteExpiredInvitations removes pending invitations whose
	// expiry passed more than retention ago. The maintenance sweep
	// runs system-wide, so this is deliberately not tenant-scoped.
	// Returns the number of rows removed.
	DeleteExpiredInvitations(ctx context.Context, retention time.Duration) (int64, error)
}
