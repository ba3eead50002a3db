package tenant

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/domain/user"
)

// DefaultInvitationExpiry is how long an invitation stays acceptable,
// both at issuance and after a resend.
const DefaultInvitationExpiry = 7 * 24 * time.Hour

// InvitationStatus is the stored lifecycle state of an invitation.
// Transitions are monotone: pending -> accepted or pending -> expired,
// both terminal. Expiry by time is computed from expires_at and does not
// eagerly rewrite the stored status.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

// IsValid reports whether the status is known.
func (s InvitationStatus) IsValid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationExpired:
		return true
	}
	return false
}

func (s InvitationStatus) String() string { return string(s) }

// Invitation is a time-bounded capability granting tenant membership
// with a predefined role and permission set. The token is the only
// credential needed to accept it.
type Invitation struct {
	id          shared.ID
	tenantID    shared.ID
	email       string
	role        user.Role
	permissions user.Permissions
	token       string
	invitedBy   shared.ID
	status      InvitationStatus
	expiresAt   time.Time
	createdAt   time.Time
	updatedAt   time.Time
}

// NewInvitation creates a pending invitation with a fresh random token.
// An expiresIn of zero means DefaultInvitationExpiry.
func NewInvitation(tenantID shared.ID, email string, role user.Role, permissions user.Permissions, invitedBy shared.ID, expiresIn time.Duration) (*Invitation, error) {
	if tenantID.IsZero() {
		return nil, shared.ValidationErrorf("tenantID is required")
	}
	if email == "" {
		return nil, shared.ValidationErrorf("email is required")
	}
	if !role.IsValid() {
		return nil, shared.ValidationErrorf("invalid role %q", role)
	}
	if role == user.RoleMaster {
		return nil, shared.ValidationErrorf("cannot invite as master")
	}
	if invitedBy.IsZero() {
		return nil, shared.ValidationErrorf("invitedBy is required")
	}
	if permissions == nil {
		permissions = user.TemplateFor(role)
	}
	if err := permissions.Validate(); err != nil {
		return nil, err
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	if expiresIn <= 0 {
		expiresIn = DefaultInvitationExpiry
	}
	now := time.Now().UTC()
	return &Invitation{
		id:          shared.NewID(),
		tenantID:    tenantID,
		email:       email,
		role:        role,
		permissions: permissions.Clone(),
		token:       token,
		invitedBy:   invitedBy,
		status:      InvitationPending,
		expiresAt:   now.Add(expiresIn),
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstituteInvitation recreates an Invitation from persistence.
func ReconstituteInvitation(
	id, tenantID shared.ID,
	email string,
	role user.Role,
	permissions user.Permissions,
	token string,
	invitedBy shared.ID,
	status InvitationStatus,
	expiresAt, createdAt, updatedAt time.Time,
) *Invitation {
	if permissions == nil {
		permissions = user.Permissions{}
	}
	return &Invitation{
		id:          id,
		tenantID:    tenantID,
		email:       email,
		role:        role,
		permissions: permissions,
		token:       token,
		invitedBy:   invitedBy,
		status:      status,
		expiresAt:   expiresAt,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the invitation ID.
func (i *Invitation) ID() shared.ID { return i.id }

// TenantID returns the tenant the invitation grants membership in.
func (i *Invitation) TenantID() shared.ID { return i.tenantID }

// Email returns the invitee's email address.
func (i *Invitation) Email() string { return i.email }

// Role returns the role template assigned on acceptance.
func (i *Invitation) Role() user.Role { return i.role }

// Permissions returns the permission set assigned on acceptance.
func (i *Invitation) Permissions() user.Permissions { return i.permissions.Clone() }

// Token returns the opaque invitation token.
func (i *Invitation) Token() string { return i.token }

// InvitedBy returns the user record ID of the inviter.
func (i *Invitation) InvitedBy() shared.ID { return i.invitedBy }

// Status returns the stored status. Callers checking usability must
// also consult IsExpired: a stored pending status past expires_at is
// not acceptable.
func (i *Invitation) Status() InvitationStatus { return i.status }

// ExpiresAt returns the expiry deadline.
func (i *Invitation) ExpiresAt() time.Time { return i.expiresAt }

// CreatedAt returns when the invitation was issued.
func (i *Invitation) CreatedAt() time.Time { return i.createdAt }

// UpdatedAt returns the last mutation time.
func (i *Invitation) UpdatedAt() time.Time { return i.updatedAt }

// IsExpired reports whether the computed expiry has passed.
func (i *Invitation) IsExpired() bool {
	return time.Now().UTC().After(i.expiresAt)
}

// IsPending reports whether the stored status is pending. It does not
// fold in IsExpired; the two are checked separately so an expired
// invitation can be reported as such rather than as missing.
func (i *Invitation) IsPending() bool {
	return i.status == InvitationPending
}

// IsAcceptable reports whether the invitation can be accepted now.
func (i *Invitation) IsAcceptable() bool {
	return i.IsPending() && !i.IsExpired()
}

// MarkAccepted transitions pending -> accepted.
func (i *Invitation) MarkAccepted() error {
	if i.status != InvitationPending {
		return ErrInvitationAlreadyProcessed
	}
	if i.IsExpired() {
		return ErrInvitationExpired
	}
	i.status = InvitationAccepted
	i.updatedAt = time.Now().UTC()
	return nil
}

// Cancel transitions pending -> expired. Cancelling a non-pending
// invitation is a no-op.
func (i *Invitation) Cancel() {
	if i.status != InvitationPending {
		return
	}
	i.status = InvitationExpired
	i.updatedAt = time.Now().UTC()
}

// ExtendExpiry pushes expires_at to a full window from now, keeping the
// original token. Resend is expiry-extension, not token rotation: an
// earlier email with the same link stays valid. An expiresIn of zero
// means DefaultInvitationExpiry.
func (i *Invitation) ExtendExpiry(expiresIn time.Duration) error {
	if i.status != InvitationPending {
		return ErrInvitationAlreadyProcessed
	}
	if expiresIn <= 0 {
		expiresIn = DefaultInvitationExpiry
	}
	now := time.Now().UTC()
	i.expiresAt = now.Add(expiresIn)
	i.updatedAt = now
	return nil
}

// generateToken returns an unguessable URL-safe token.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}
