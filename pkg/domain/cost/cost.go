package cost

import (
	"context"
	"time"

	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/pagination"
)

// Category classifies a cost entry for reporting.
type Category string

const (
	CategoryMaterial      Category = "material"
	CategoryLabor         Category = "labor"
	CategoryEquipment     Category = "equipment"
	CategorySubcontractor Category = "subcontractor"
	CategoryCapitalLease  Category = "capital_lease"
	CategoryConsumables   Category = "consumables"
	CategoryOther         Category = "other"
)

// Categories returns all known categories.
func Categories() []Category {
	return []Category{
		CategoryMaterial,
		CategoryLabor,
		CategoryEquipment,
		CategorySubcontractor,
		CategoryCapitalLease,
		CategoryConsumables,
		CategoryOther,
	}
}

// IsValid reports whether the category is known.
func (c Category) IsValid() bool {
	for _, k := range Categories() {
		if c == k {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }

// Entry is a single booked cost against a project. Amounts are integer
// cents; negative amounts represent credits.
type Entry struct {
	id          shared.ID
	tenantID    shared.ID
	projectID   shared.ID
	category    Category
	description string
	amountCents int64
	vendor      string
	incurredAt  time.Time
	enteredBy   shared.ID
	createdAt   time.Time
	updatedAt   time.Time
}

// NewEntry books a cost against a project.
func NewEntry(tenantID, projectID shared.ID, category Category, description string, amountCents int64, vendor string, incurredAt time.Time, enteredBy shared.ID) (*Entry, error) {
	if tenantID.IsZero() {
		return nil, shared.ErrMissingTenantContext
	}
	if projectID.IsZero() {
		return nil, shared.ValidationErrorf("projectID is required")
	}
	if !category.IsValid() {
		return nil, shared.ValidationErrorf("invalid category %q", category)
	}
	if description == "" {
		return nil, shared.ValidationErrorf("description is required")
	}
	if amountCents == 0 {
		return nil, shared.ValidationErrorf("amount cannot be zero")
	}
	if incurredAt.IsZero() {
		incurredAt = time.Now().UTC()
	}

	now := time.Now().UTC()
	return &Entry{
		id:          shared.NewID(),
		tenantID:    tenantID,
		projectID:   projectID,
		category:    category,
		description: description,
		amountCents: amountCents,
		vendor:      vendor,
		incurredAt:  incurredAt,
		enteredBy:   enteredBy,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstituteEntry recreates an Entry from persistence.
func ReconstituteEntry(
	id, tenantID, projectID shared.ID,
	category Category,
	description string,
	amountCents int64,
	vendor string,
	incurredAt time.Time,
	enteredBy shared.ID,
	createdAt, updatedAt time.Time,
) *Entry {
	return &Entry{
		id:          id,
		tenantID:    tenantID,
		projectID:   projectID,
		category:    category,
		description: description,
		amountCents: amountCents,
		vendor:      vendor,
		incurredAt:  incurredAt,
		enteredBy:   enteredBy,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (e *Entry) ID() shared.ID         { return e.id }
func (e *Entry) TenantID() shared.ID   { return e.tenantID }
func (e *Entry) ProjectID() shared.ID  { return e.projectID }
func (e *Entry) Category() Category    { return e.category }
func (e *Entry) Description() string   { return e.description }
func (e *Entry) AmountCents() int64    { return e.amountCents }
func (e *Entry) Vendor() string        { return e.vendor }
func (e *Entry) IncurredAt() time.Time { return e.incurredAt }
func (e *Entry) EnteredBy() shared.ID  { return e.enteredBy }
func (e *Entry) CreatedAt() time.Time  { return e.createdAt }
func (e *Entry) UpdatedAt() time.Time  { return e.updatedAt }

// Update changes the editable fields of a cost entry.
func (e *Entry) Update(category Category, description string, amountCents int64, vendor string, incurredAt time.Time) error {
	if !category.IsValid() {
		return shared.ValidationErrorf("invalid category %q", category)
	}
	if description == "" {
		return shared.ValidationErrorf("description is required")
	}
	if amountCents == 0 {
		return shared.ValidationErrorf("amount cannot be zero")
	}
	e.category = category
	e.description = description
	e.amountCents = amountCents
	e.vendor = vendor
	if !incurredAt.IsZero() {
		e.incurredAt = incurredAt
	}
	e.updatedAt = time.Now().UTC()
	return nil
}

// CategoryTotal is a per-category sum for a project.
type CategoryTotal struct {
	Category Category
	Cents    int64
}

// Filter narrows cost listings.
type Filter struct {
	ProjectID shared.ID
	Category  Category
	From      *time.Time
	To        *time.Time
}

// Repository persists cost entries. Every call is tenant-scoped and
// must reject a zero tenant ID with shared.ErrMissingTenantContext.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, tenantID, id shared.ID) (*Entry, error)
	Update(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, tenantID, id shared.ID) error
	List(ctx context.Context, tenantID shared.ID, filter Filter, page pagination.Request) ([]*Entry, int64, error)
	TotalsByCategory(ctx context.Context, tenantID, projectID shared.ID) ([]CategoryTotal, error)
}
