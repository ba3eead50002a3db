// Package user provides the tenant-scoped user record bound to an
// external identity.
package user

import (
	"time"

	"github.com/buildledger/api/pkg/domain/shared"
)

// Record is the tenant-scoped profile for an authenticated identity.
// Its ID equals the identity provider's subject, so the record can be
// located directly from validated token claims. TenantID is nil until
// the user either creates a tenant or accepts an invitation, and is
// treated as immutable afterward.
type Record struct {
	id          shared.ID
	tenantID    *shared.ID
	name        string
	email       string
	role        Role
	permissions Permissions
	isActive    bool
	lastLoginAt *time.Time
	createdAt   time.Time
	updatedAt   time.Time
}

// NewUnassigned creates the record written the first time an identity
// with no user record is observed. It carries no tenant and the
// unassigned permission template.
func NewUnassigned(identityID shared.ID, email, name string) (*Record, error) {
	if identityID.IsZero() {
		return nil, shared.ValidationErrorf("identity id is required")
	}
	if email == "" {
		return nil, shared.ValidationErrorf("email is required")
	}

	now := time.Now().UTC()
	return &Record{
		id:          identityID,
		name:        name,
		email:       email,
		role:        RoleEntry,
		permissions: UnassignedTemplate(),
		isActive:    true,
		lastLoginAt: &now,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// NewMember creates a record already bound to a tenant with the given
// role template. Used when an invitation is accepted by an email that
// has no record yet.
func NewMember(identityID, tenantID shared.ID, email, name string, role Role, permissions Permissions) (*Record, error) {
	if identityID.IsZero() {
		return nil, shared.ValidationErrorf("identity id is required")
	}
	if tenantID.IsZero() {
		return nil, shared.ValidationErrorf("tenant id is required")
	}
	if email == "" {
		return nil, shared.ValidationErrorf("email is required")
	}
	if !role.IsValid() {
		return nil, shared.ValidationErrorf("invalid role %q", role)
	}
	if permissions == nil {
		permissions = TemplateFor(role)
	}
	if err := permissions.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tid := tenantID
	return &Record{
		id:          identityID,
		tenantID:    &tid,
		name:        name,
		email:       email,
		role:        role,
		permissions: permissions.Clone(),
		isActive:    true,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstitute recreates a Record from persistence.
func Reconstitute(
	id shared.ID,
	tenantID *shared.ID,
	name, email string,
	role Role,
	permissions Permissions,
	isActive bool,
	lastLoginAt *time.Time,
	createdAt, updatedAt time.Time,
) *Record {
	if permissions == nil {
		permissions = Permissions{}
	}
	return &Record{
		id:          id,
		tenantID:    tenantID,
		name:        name,
		email:       email,
		role:        role,
		permissions: permissions,
		isActive:    isActive,
		lastLoginAt: lastLoginAt,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the record ID (equal to the identity provider subject).
func (r *Record) ID() shared.ID { return r.id }

// TenantID returns the bound tenant, or nil for an unassigned record.
func (r *Record) TenantID() *shared.ID { return r.tenantID }

// HasTenant reports whether the record is bound to a tenant.
func (r *Record) HasTenant() bool { return r.tenantID != nil && !r.tenantID.IsZero() }

// Name returns the display name.
func (r *Record) Name() string { return r.name }

// Email returns the email address.
func (r *Record) Email() string { return r.email }

// Role returns the role label. Authorization must not branch on this;
// use Permissions instead.
func (r *Record) Role() Role { return r.role }

// Permissions returns a copy of the stored permission set.
func (r *Record) Permissions() Permissions { return r.permissions.Clone() }

// Can reports whether the record grants the required level on resource.
func (r *Record) Can(resource Resource, required Level) bool {
	if !r.isActive {
		return false
	}
	return r.permissions.Allows(resource, required)
}

// IsActive reports whether the record is active.
func (r *Record) IsActive() bool { return r.isActive }

// LastLoginAt returns the last observed login, or nil.
func (r *Record) LastLoginAt() *time.Time { return r.lastLoginAt }

// CreatedAt returns the creation timestamp.
func (r *Record) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last update timestamp.
func (r *Record) UpdatedAt() time.Time { return r.updatedAt }

// BindTenant binds the record to a tenant with the given role and
// permission set. Binding is idempotent for the same tenant and
// rejected for a different one.
func (r *Record) BindTenant(tenantID shared.ID, role Role, permissions Permissions) error {
	if tenantID.IsZero() {
		return shared.ValidationErrorf("tenant id is required")
	}
	if r.HasTenant() && !r.tenantID.Equals(tenantID) {
		return ErrTenantAlreadyAssigned
	}
	if !role.IsValid() {
		return shared.ValidationErrorf("invalid role %q", role)
	}
	if permissions == nil {
		permissions = TemplateFor(role)
	}
	if err := permissions.Validate(); err != nil {
		return err
	}

	tid := tenantID
	r.tenantID = &tid
	r.role = role
	r.permissions = permissions.Clone()
	r.isActive = true
	r.updatedAt = time.Now().UTC()
	return nil
}

// PromoteToMaster grants the master template on tenant creation.
func (r *Record) PromoteToMaster(tenantID shared.ID) error {
	return r.BindTenant(tenantID, RoleMaster, TemplateFor(RoleMaster))
}

// SetPermission overrides the level for one resource.
func (r *Record) SetPermission(resource Resource, level Level) error {
	if !resource.IsValid() {
		return invalidResourceError(resource)
	}
	if !level.IsValid() {
		return invalidLevelError(resource, level)
	}
	if r.permissions == nil {
		r.permissions = Permissions{}
	}
	r.permissions[resource] = level
	r.updatedAt = time.Now().UTC()
	return nil
}

// Deactivate soft-deletes the record. Records are never hard-deleted so
// audit history survives.
func (r *Record) Deactivate() {
	r.isActive = false
	r.updatedAt = time.Now().UTC()
}

// Activate re-enables a deactivated record.
func (r *Record) Activate() {
	r.isActive = true
	r.updatedAt = time.Now().UTC()
}

// UpdateProfile updates the display name.
func (r *Record) UpdateProfile(name string) {
	r.name = name
	r.updatedAt = time.Now().UTC()
}

// TouchLogin records a login time.
func (r *Record) TouchLogin(at time.Time) {
	at = at.UTC()
	r.lastLoginAt = &at
	r.updatedAt = at
}
