// Package tenant provides the tenant entity and the invitation
// lifecycle state.
package tenant

import (
	"regexp"
	"strings"
	"time"

	"github.com/buildledger/api/pkg/domain/shared"
)

var subdomainRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Subdomain length bounds.
const (
	SubdomainMinLength = 3
	SubdomainMaxLength = 50
)

// Status represents the tenant account status.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusClosed    Status = "closed"
)

// IsValid reports whether the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusClosed:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// Tenant represents an isolated organization. All project, cost, and
// user data hangs off a tenant and is never visible across tenants.
type Tenant struct {
	id        shared.ID
	subdomain string
	name      string
	email     string
	phone     string
	plan      Plan
	status    Status
	createdBy shared.ID
	createdAt time.Time
	updatedAt time.Time
}

// NewTenant creates a tenant. The subdomain is normalized to lowercase
// and immutable after creation; uniqueness is enforced at write time by
// the store.
func NewTenant(subdomain, name, email, phone string, plan Plan, createdBy shared.ID) (*Tenant, error) {
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if err := ValidateSubdomain(subdomain); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, shared.ValidationErrorf("name is required")
	}
	if email == "" {
		return nil, shared.ValidationErrorf("email is required")
	}
	if !plan.IsValid() {
		return nil, shared.ValidationErrorf("invalid plan %q", plan)
	}
	if createdBy.IsZero() {
		return nil, shared.ValidationErrorf("createdBy is required")
	}

	now := time.Now().UTC()
	return &Tenant{
		id:        shared.NewID(),
		subdomain: subdomain,
		name:      name,
		email:     email,
		phone:     phone,
		plan:      plan,
		status:    StatusActive,
		createdBy: createdBy,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstitute recreates a Tenant from persistence.
func Reconstitute(
	id shared.ID,
	subdomain, name, email, phone string,
	plan Plan,
	status Status,
	createdBy shared.ID,
	createdAt, updatedAt time.Time,
) *Tenant {
	return &Tenant{
		id:        id,
		subdomain: subdomain,
		name:      name,
		email:     email,
		phone:     phone,
		plan:      plan,
		status:    status,
		createdBy: createdBy,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the tenant ID.
func (t *Tenant) ID() shared.ID { return t.id }

// Subdomain returns the unique subdomain.
func (t *Tenant) Subdomain() string { return t.subdomain }

// Name returns the organization name.
func (t *Tenant) Name() string { return t.name }

// Email returns the billing/contact email.
func (t *Tenant) Email() string { return t.email }

// Phone returns the optional contact phone.
func (t *Tenant) Phone() string { return t.phone }

// Plan returns the subscription plan.
func (t *Tenant) Plan() Plan { return t.plan }

// Status returns the account status.
func (t *Tenant) Status() Status { return t.status }

// IsActive reports whether the tenant can be used.
func (t *Tenant) IsActive() bool { return t.status == StatusActive }

// CreatedBy returns the ID of the founding user.
func (t *Tenant) CreatedBy() shared.ID { return t.createdBy }

// CreatedAt returns the creation timestamp.
func (t *Tenant) CreatedAt() time.Time { return t.createdAt }

// UpdatedAt returns the last update timestamp.
func (t *Tenant) UpdatedAt() time.Time { return t.updatedAt }

// UpdateContact updates the mutable contact fields. The subdomain is
// deliberately not updatable.
func (t *Tenant) UpdateContact(name, email, phone string) error {
	if name == "" {
		return shared.ValidationErrorf("name is required")
	}
	if email == "" {
		return shared.ValidationErrorf("email is required")
	}
	t.name = name
	t.email = email
	t.phone = phone
	t.updatedAt = time.Now().UTC()
	return nil
}

// ChangePlan switches the subscription plan.
func (t *Tenant) ChangePlan(plan Plan) error {
	if !plan.IsValid() {
		return shared.ValidationErrorf("invalid plan %q", plan)
	}
	t.plan = plan
	t.updatedAt = time.Now().UTC()
	return nil
}

// Suspend marks the tenant suspended.
func (t *Tenant) Suspend() {
	t.status = StatusSuspended
	t.updatedAt = time.Now().UTC()
}

// ValidateSubdomain checks the subdomain format rules: 3-50 characters,
// lowercase alphanumerics and interior hyphens.
func ValidateSubdomain(subdomain string) error {
	if len(subdomain) < SubdomainMinLength || len(subdomain) > SubdomainMaxLength {
		return ErrSubdomainInvalidFormat
	}
	if !subdomainRegex.MatchString(subdomain) {
		return ErrSubdomainInvalidFormat
	}
	return nil
}
