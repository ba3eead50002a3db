package cost

import (
	"context"
	"fmt"
	"time"

	"github.com/buildledger/api/pkg/domain/shared"
)

// ChangeOrderStatus is the approval state of a change order.
type ChangeOrderStatus string

const (
	ChangeOrderDraft    ChangeOrderStatus = "draft"
	ChangeOrderPending  ChangeOrderStatus = "pending"
	ChangeOrderApproved ChangeOrderStatus = "approved"
	ChangeOrderRejected ChangeOrderStatus = "rejected"
)

// IsValid reports whether the status is known.
func (s ChangeOrderStatus) IsValid() bool {
	switch s {
	case ChangeOrderDraft, ChangeOrderPending, ChangeOrderApproved, ChangeOrderRejected:
		return true
	}
	return false
}

func (s ChangeOrderStatus) String() string { return string(s) }

// ChangeOrder is a scoped amendment to a project's budget. Only an
// approved change order affects budget math.
type ChangeOrder struct {
	id          shared.ID
	tenantID    shared.ID
	projectID   shared.ID
	number      string
	description string
	deltaCents  int64
	status      ChangeOrderStatus
	requestedBy shared.ID
	decidedBy   *shared.ID
	decidedAt   *time.Time
	createdAt   time.Time
	updatedAt   time.Time
}

// NewChangeOrder creates a draft change order.
func NewChangeOrder(tenantID, projectID shared.ID, number, description string, deltaCents int64, requestedBy shared.ID) (*ChangeOrder, error) {
	if tenantID.IsZero() {
		return nil, shared.ErrMissingTenantContext
	}
	if projectID.IsZero() {
		return nil, shared.ValidationErrorf("projectID is required")
	}
	if description == "" {
		return nil, shared.ValidationErrorf("description is required")
	}
	if deltaCents == 0 {
		return nil, shared.ValidationErrorf("delta cannot be zero")
	}

	now := time.Now().UTC()
	return &ChangeOrder{
		id:          shared.NewID(),
		tenantID:    tenantID,
		projectID:   projectID,
		number:      number,
		description: description,
		deltaCents:  deltaCents,
		status:      ChangeOrderDraft,
		requestedBy: requestedBy,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstituteChangeOrder recreates a ChangeOrder from persistence.
func ReconstituteChangeOrder(
	id, tenantID, projectID shared.ID,
	number, description string,
	deltaCents int64,
	status ChangeOrderStatus,
	requestedBy shared.ID,
	decidedBy *shared.ID,
	decidedAt *time.Time,
	createdAt, updatedAt time.Time,
) *ChangeOrder {
	return &ChangeOrder{
		id:          id,
		tenantID:    tenantID,
		projectID:   projectID,
		number:      number,
		description: description,
		deltaCents:  deltaCents,
		status:      status,
		requestedBy: requestedBy,
		decidedBy:   decidedBy,
		decidedAt:   decidedAt,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (c *ChangeOrder) ID() shared.ID             { return c.id }
func (c *ChangeOrder) TenantID() shared.ID       { return c.tenantID }
func (c *ChangeOrder) ProjectID() shared.ID      { return c.projectID }
func (c *ChangeOrder) Number() string            { return c.number }
func (c *ChangeOrder) Description() string       { return c.description }
func (c *ChangeOrder) DeltaCents() int64         { return c.deltaCents }
func (c *ChangeOrder) Status() ChangeOrderStatus { return c.status }
func (c *ChangeOrder) RequestedBy() shared.ID    { return c.requestedBy }
func (c *ChangeOrder) DecidedBy() *shared.ID     { return c.decidedBy }
func (c *ChangeOrder) DecidedAt() *time.Time     { return c.decidedAt }
func (c *ChangeOrder) CreatedAt() time.Time      { return c.createdAt }
func (c *ChangeOrder) UpdatedAt() time.Time      { return c.updatedAt }

// Submit moves draft -> pending.
func (c *ChangeOrder) Submit() error {
	if c.status != ChangeOrderDraft {
		return fmt.Errorf("%w: change order is %s", shared.ErrConflict, c.status)
	}
	c.status = ChangeOrderPending
	c.updatedAt = time.Now().UTC()
	return nil
}

// Approve moves pending -> approved and records the decider.
func (c *ChangeOrder) Approve(decidedBy shared.ID) error {
	return c.decide(ChangeOrderApproved, decidedBy)
}

// Reject moves pending -> rejected and records the decider.
func (c *ChangeOrder) Reject(decidedBy shared.ID) error {
	return c.decide(ChangeOrderRejected, decidedBy)
}

func (c *ChangeOrder) decide(status ChangeOrderStatus, decidedBy shared.ID) error {
	if c.status != ChangeOrderPending {
		return fmt.Errorf("%w: change order is %s", shared.ErrConflict, c.status)
	}
	now := time.Now().UTC()
	c.status = status
	c.decidedBy = &decidedBy
	c.decidedAt = &now
	c.updatedAt = now
	return nil
}

// ChangeOrderRepository persists change orders, tenant-scoped.
type ChangeOrderRepository interface {
	Create(ctx context.Context, co *ChangeOrder) error
	GetByID(ctx context.Context, tenantID, id shared.ID) (*ChangeOrder, error)
	Update(ctx context.Context, co *ChangeOrder) error
	ListByProject(ctx context.Context, tenantID, projectID shared.ID) ([]*ChangeOrder, error)
	// ApprovedDelta returns the sum of approved deltas for a project.
	ApprovedDelta(ctx context.Context, tenantID, projectID shared.ID) (int64, error)
}
