package user

import (
	"context"

	"github.com/buildledger/api/pkg/domain/shared"
)

// Repository defines the interface for user record persistence.
type Repository interface {
	Create(ctx context.Context, record *Record) error
	GetByID(ctx context.Context, id shared.ID) (*Record, error)
	GetByEmail(ctx context.Context, email string) (*Record, error)
	Update(ctx context.Context, record *Record) error

	// Upsert writes the record keyed by its identity ID. Re-running it
	// with the same ID overwrites in place rather than inserting a
	// duplicate; invitation acceptance relies on this.
	Upsert(ctx context.Context, record *Record) error

	// Tenant-scoped queries. A zero tenantID is rejected with
	// shared.ErrMissingTenantContext.
	GetMember(ctx context.Context, tenantID shared.ID, id shared.ID) (*Record, error)
	GetMemberByEmail(ctx context.Context, tenantID shared.ID, email string) (*Record, error)
	ListByTenant(ctx context.Context, tenantID shared.ID) ([]*Record, error)
	CountActiveByTenant(ctx context.Context, tenantID shared.ID) (int64, error)
}
