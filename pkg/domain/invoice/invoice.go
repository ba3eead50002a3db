package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/pagination"
)

// Status is an invoice's collection state.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
	StatusVoided  Status = "voided"
)

// IsValid reports whether the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusVoided:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// LineItem is one billed line on an invoice.
type LineItem struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitCents   int64  `json:"unit_cents"`
}

// TotalCents returns the line total.
func (l LineItem) TotalCents() int64 { return l.Quantity * l.UnitCents }

// Invoice bills a client for work on a project.
type Invoice struct {
	id        shared.ID
	tenantID  shared.ID
	projectID shared.ID
	number    string
	clientRef string
	items     []LineItem
	status    Status
	issuedAt  *time.Time
	dueAt     *time.Time
	paidAt    *time.Time
	createdBy shared.ID
	createdAt time.Time
	updatedAt time.Time
}

// NewInvoice creates a draft invoice.
func NewInvoice(tenantID, projectID shared.ID, number, clientRef string, items []LineItem, createdBy shared.ID) (*Invoice, error) {
	if tenantID.IsZero() {
		return nil, shared.ErrMissingTenantContext
	}
	if projectID.IsZero() {
		return nil, shared.ValidationErrorf("projectID is required")
	}
	if number == "" {
		return nil, shared.ValidationErrorf("number is required")
	}
	if len(items) == 0 {
		return nil, shared.ValidationErrorf("at least one line item is required")
	}
	for i, item := range items {
		if item.Description == "" {
			return nil, shared.ValidationErrorf("line %d: description is required", i)
		}
		if item.Quantity <= 0 {
			return nil, shared.ValidationErrorf("line %d: quantity must be positive", i)
		}
	}

	now := time.Now().UTC()
	return &Invoice{
		id:        shared.NewID(),
		tenantID:  tenantID,
		projectID: projectID,
		number:    number,
		clientRef: clientRef,
		items:     append([]LineItem(nil), items...),
		status:    StatusDraft,
		createdBy: createdBy,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstitute recreates an Invoice from persistence.
func Reconstitute(
	id, tenantID, projectID shared.ID,
	number, clientRef string,
	items []LineItem,
	status Status,
	issuedAt, dueAt, paidAt *time.Time,
	createdBy shared.ID,
	createdAt, updatedAt time.Time,
) *Invoice {
	return &Invoice{
		id:        id,
		tenantID:  tenantID,
		projectID: projectID,
		number:    number,
		clientRef: clientRef,
		items:     items,
		status:    status,
		issuedAt:  issuedAt,
		dueAt:     dueAt,
		paidAt:    paidAt,
		createdBy: createdBy,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (v *Invoice) ID() shared.ID        { return v.id }
func (v *Invoice) TenantID() shared.ID  { return v.tenantID }
func (v *Invoice) ProjectID() shared.ID { return v.projectID }
func (v *Invoice) Number() string       { return v.number }
func (v *Invoice) ClientRef() string    { return v.clientRef }
func (v *Invoice) Items() []LineItem    { return append([]LineItem(nil), v.items...) }
func (v *Invoice) Status() Status       { return v.status }
func (v *Invoice) IssuedAt() *time.Time { return v.issuedAt }
func (v *Invoice) DueAt() *time.Time    { return v.dueAt }
func (v *Invoice) PaidAt() *time.Time   { return v.paidAt }
func (v *Invoice) CreatedBy() shared.ID { return v.createdBy }
func (v *Invoice) CreatedAt() time.Time { return v.createdAt }
func (v *Invoice) UpdatedAt() time.Time { return v.updatedAt }

// TotalCents sums all line items.
func (v *Invoice) TotalCents() int64 {
	var total int64
	for _, item := range v.items {
		total += item.TotalCents()
	}
	return total
}

// ReplaceItems swaps the line items on a draft invoice.
func (v *Invoice) ReplaceItems(items []LineItem) error {
	if v.status != StatusDraft {
		return fmt.Errorf("%w: invoice is %s", shared.ErrConflict, v.status)
	}
	if len(items) == 0 {
		return shared.ValidationErrorf("at least one line item is required")
	}
	v.items = append([]LineItem(nil), items...)
	v.updatedAt = time.Now().UTC()
	return nil
}

// Send moves draft -> sent and stamps the issue and due dates.
func (v *Invoice) Send(dueAt time.Time) error {
	if v.status != StatusDraft {
		return fmt.Errorf("%w: invoice is %s", shared.ErrConflict, v.status)
	}
	now := time.Now().UTC()
	if dueAt.Before(now) {
		return shared.ValidationErrorf("due date in the past")
	}
	v.status = StatusSent
	v.issuedAt = &now
	v.dueAt = &dueAt
	v.updatedAt = now
	return nil
}

// MarkPaid moves sent or overdue -> paid.
func (v *Invoice) MarkPaid() error {
	if v.status != StatusSent && v.status != StatusOverdue {
		return fmt.Errorf("%w: invoice is %s", shared.ErrConflict, v.status)
	}
	now := time.Now().UTC()
	v.status = StatusPaid
	v.paidAt = &now
	v.updatedAt = now
	return nil
}

// MarkOverdue moves sent -> overdue once the due date passes.
func (v *Invoice) MarkOverdue() error {
	if v.status != StatusSent {
		return fmt.Errorf("%w: invoice is %s", shared.ErrConflict, v.status)
	}
	if v.dueAt == nil || time.Now().UTC().Before(*v.dueAt) {
		return shared.ValidationErrorf("invoice is not past due")
	}
	v.status = StatusOverdue
	v.updatedAt = time.Now().UTC()
	return nil
}

// Void retires an unpaid invoice.
func (v *Invoice) Void() error {
	if v.status == StatusPaid {
		return fmt.Errorf("%w: paid invoice cannot be voided", shared.ErrConflict)
	}
	if v.status == StatusVoided {
		return nil
	}
	v.status = StatusVoided
	v.updatedAt = time.Now().UTC()
	return nil
}

// Filter narrows invoice listings.
type Filter struct {
	ProjectID shared.ID
	Status    Status
}

// Repository persists invoices, tenant-scoped.
type Repository interface {
	Create(ctx context.Context, v *Invoice) error
	GetByID(ctx context.Context, tenantID, id shared.ID) (*Invoice, error)
	Update(ctx context.Context, v *Invoice) error
	List(ctx context.Context, tenantID shared.ID, filter Filter, page pagination.Request) ([]*Invoice, int64, error)
	// ListDueBefore returns sent invoices whose due date passed, for
	// the overdue sweep.
	ListDueBefore(ctx context.Context, cutoff time.Time) ([]*Invoice, error)
}
