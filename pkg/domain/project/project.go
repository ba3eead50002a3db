package project

import (
	"context"
	"time"

	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/pagination"
)

// Status is a project's lifecycle state.
type Status string

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusOnHold    Status = "on_hold"
	StatusCompleted Status = "completed"
)

// IsValid reports whether the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPlanning, StatusActive, StatusOnHold, StatusCompleted:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// Project is a construction job whose costs are tracked against a
// budget. All money is stored as integer cents.
type Project struct {
	id          shared.ID
	tenantID    shared.ID
	name        string
	code        string
	description string
	status      Status
	budgetCents int64
	startDate   *time.Time
	endDate     *time.Time
	createdBy   shared.ID
	createdAt   time.Time
	updatedAt   time.Time
}

// NewProject creates a project in the planning state.
func NewProject(tenantID shared.ID, name, code, description string, budgetCents int64, createdBy shared.ID) (*Project, error) {
	if tenantID.IsZero() {
		return nil, shared.ErrMissingTenantContext
	}
	if name == "" {
		return nil, shared.ValidationErrorf("name is required")
	}
	if budgetCents < 0 {
		return nil, shared.ValidationErrorf("budget cannot be negative")
	}

	now := time.Now().UTC()
	return &Project{
		id:          shared.NewID(),
		tenantID:    tenantID,
		name:        name,
		code:        code,
		description: description,
		status:      StatusPlanning,
		budgetCents: budgetCents,
		createdBy:   createdBy,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstitute recreates a Project from persistence.
func Reconstitute(
	id, tenantID shared.ID,
	name, code, description string,
	status Status,
	budgetCents int64,
	startDate, endDate *time.Time,
	createdBy shared.ID,
	createdAt, updatedAt time.Time,
) *Project {
	return &Project{
		id:          id,
		tenantID:    tenantID,
		name:        name,
		code:        code,
		description: description,
		status:      status,
		budgetCents: budgetCents,
		startDate:   startDate,
		endDate:     endDate,
		createdBy:   createdBy,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (p *Project) ID() shared.ID         { return p.id }
func (p *Project) TenantID() shared.ID   { return p.tenantID }
func (p *Project) Name() string          { return p.name }
func (p *Project) Code() string          { return p.code }
func (p *Project) Description() string   { return p.description }
func (p *Project) Status() Status        { return p.status }
func (p *Project) BudgetCents() int64    { return p.budgetCents }
func (p *Project) StartDate() *time.Time { return p.startDate }
func (p *Project) EndDate() *time.Time   { return p.endDate }
func (p *Project) CreatedBy() shared.ID  { return p.createdBy }
func (p *Project) CreatedAt() time.Time  { return p.createdAt }
func (p *Project) UpdatedAt() time.Time  { return p.updatedAt }

// Update changes the editable fields.
func (p *Project) Update(name, code, description string, budgetCents int64) error {
	if name == "" {
		return shared.ValidationErrorf("name is required")
	}
	if budgetCents < 0 {
		return shared.ValidationErrorf("budget cannot be negative")
	}
	p.name = name
	p.code = code
	p.description = description
	p.budgetCents = budgetCents
	p.updatedAt = time.Now().UTC()
	return nil
}

// ChangeStatus moves the project to a new lifecycle state. Completed
// is terminal.
func (p *Project) ChangeStatus(status Status) error {
	if !status.IsValid() {
		return shared.ValidationErrorf("invalid status %q", status)
	}
	if p.status == StatusCompleted && status != StatusCompleted {
		return shared.ValidationErrorf("completed project cannot be reopened")
	}
	p.status = status
	p.updatedAt = time.Now().UTC()
	return nil
}

// SetDates sets the planned start and end. End must not precede start.
func (p *Project) SetDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return shared.ValidationErrorf("end date before start date")
	}
	p.startDate = start
	p.endDate = end
	p.updatedAt = time.Now().UTC()
	return nil
}

// IsOpenForCosts reports whether new cost entries may be booked.
func (p *Project) IsOpenForCosts() bool {
	return p.status == StatusActive || p.status == StatusPlanning
}

// Filter narrows project listings.
type Filter struct {
	Status Status
	Search string
}

// Repository persists projects. Every call is tenant-scoped and must
// reject a zero tenant ID with shared.ErrMissingTenantContext.
type Repository interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, tenantID, id shared.ID) (*Project, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, tenantID, id shared.ID) error
	List(ctx context.Context, tenantID shared.ID, filter Filter, page pagination.Request) ([]*Project, int64, error)
}
