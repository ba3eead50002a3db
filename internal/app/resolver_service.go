package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/buildledger/api/pkg/domain/resolver"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/domain/tenant"
	"github.com/buildledger/api/pkg/domain/user"
	"github.com/buildledger/api/pkg/logger"
)

// CachedTenant is the serializable tenant snapshot kept in the
// bootstrap cache. Domain entities keep their fields unexported, so the
// cache round-trips this flat form and rebuilds the entity on read.
type CachedTenant struct {
	ID        string    `json:"id"`
	Subdomain string    `json:"subdomain"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newCachedTenant(t *tenant.Tenant) *CachedTenant {
	return &CachedTenant{
		ID:        t.ID().String(),
		Subdomain: t.Subdomain(),
		Name:      t.Name(),
		Email:     t.Email(),
		Phone:     t.Phone(),
		Plan:      t.Plan().String(),
		Status:    t.Status().String(),
		CreatedBy: t.CreatedBy().String(),
		CreatedAt: t.CreatedAt(),
		UpdatedAt: t.UpdatedAt(),
	}
}

func (c *CachedTenant) entity() (*tenant.Tenant, error) {
	id, err := shared.IDFromString(c.ID)
	if err != nil {
		return nil, fmt.Errorf("cached tenant has malformed id %q: %w", c.ID, err)
	}
	createdBy, err := shared.IDFromString(c.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("cached tenant has malformed creator id %q: %w", c.CreatedBy, err)
	}
	return tenant.Reconstitute(
		id,
		c.Subdomain, c.Name, c.Email, c.Phone,
		tenant.Plan(c.Plan), tenant.Status(c.Status),
		createdBy,
		c.CreatedAt, c.UpdatedAt,
	), nil
}

// TenantCache is the read-through cache in front of the tenants table.
// Satisfied by the redis cache specialized to CachedTenant.
type TenantCache interface {
	GetOrSet(ctx context.Context, key string, loader func(ctx context.Context) (*CachedTenant, error)) (*CachedTenant, error)
}

// TenantCacheInvalidator is the write side of the bootstrap tenant
// cache, used by TenantService when a tenant row changes.
type TenantCacheInvalidator interface {
	Invalidate(ctx context.Context, key string) error
}

func tenantCacheKeyBySubdomain(subdomain string) string { return "subdomain:" + subdomain }
func tenantCacheKeyByID(id shared.ID) string            { return "id:" + id.String() }

// ResolverService assembles routing snapshots server-side. The client
// asks once per navigation; the guard in pkg/domain/resolver decides
// synchronously from the combined snapshot, so there is no client-side
// polling loop.
type ResolverService struct {
	users   user.Repository
	tenants tenant.Repository
	cache   TenantCache
	logger  *logger.Logger
}

// ResolverServiceOption is a functional option for ResolverService.
type ResolverServiceOption func(*ResolverService)

// WithTenantCache puts a read-through cache in front of the bootstrap
// tenant lookups. Membership is deliberately never cached: a stale
// record would delay deactivation and permission changes.
func WithTenantCache(cache TenantCache) ResolverServiceOption {
	return func(s *ResolverService) {
		s.cache = cache
	}
}

// NewResolverService creates a new ResolverService.
func NewResolverService(users user.Repository, tenants tenant.Repository, log *logger.Logger, opts ...ResolverServiceOption) *ResolverService {
	s := &ResolverService{
		users:   users,
		tenants: tenants,
		logger:  log.With("service", "resolver"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BootstrapResult is the combined snapshot plus the guard's decision.
// User and Tenant are nil when their load state is not Present.
type BootstrapResult struct {
	Snapshot resolver.Snapshot
	Decision resolver.Decision
	Target   resolver.Target
	User     *user.Record
	Tenant   *tenant.Tenant
}

func (r *BootstrapResult) decide() {
	r.Decision = resolver.Decide(r.Snapshot)
	r.Target = resolver.RedirectTarget(r.Decision, r.Snapshot)
}

// Bootstrap loads the user record and tenant row concurrently and runs
// the guard. identityID is nil for anonymous visitors. A not-found
// lookup is Absent; any other store error is Failed, which the guard
// treats differently on purpose: a flaky store must never read as "no
// membership".
func (s *ResolverService) Bootstrap(ctx context.Context, identityID *shared.ID, subdomain string, page resolver.PageKind, waited time.Duration) (*BootstrapResult, error) {
	result := &BootstrapResult{
		Snapshot: resolver.Snapshot{
			Identity:   resolver.Absent,
			Membership: resolver.Absent,
			Tenant:     resolver.Absent,
			Page:       page,
			Waited:     waited,
		},
	}

	if identityID == nil {
		result.decide()
		return result, nil
	}
	result.Snapshot.Identity = resolver.Present

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		record, err := s.users.GetByID(gctx, *identityID)
		switch {
		case err == nil:
			result.User = record
			if record.HasTenant() && record.IsActive() {
				result.Snapshot.Membership = resolver.Present
			}
		case errors.Is(err, shared.ErrNotFound):
			// Absent already.
		default:
			s.logger.Warn("user record load failed during bootstrap",
				"user_id", identityID.String(),
				"error", err,
			)
			result.Snapshot.Membership = resolver.Failed
		}
		return nil
	})

	if subdomain != "" {
		g.Go(func() error {
			t, err := s.tenantBySubdomain(gctx, subdomain)
			switch {
			case err == nil:
				result.Tenant = t
				result.Snapshot.Tenant = resolver.Present
			case errors.Is(err, shared.ErrNotFound):
				// Absent already.
			default:
				s.logger.Warn("tenant load failed during bootstrap",
					"subdomain", subdomain,
					"error", err,
				)
				result.Snapshot.Tenant = resolver.Failed
			}
			return nil
		})
	}

	// The loaders record failures in the snapshot instead of
	// returning them, so Wait cannot error here.
	_ = g.Wait()

	// No workspace URL to resolve: a member's own tenant row is the
	// one that matters, and it is only known after the record loads.
	if subdomain == "" && result.User != nil && result.User.HasTenant() {
		t, err := s.tenantByID(ctx, *result.User.TenantID())
		switch {
		case err == nil:
			result.Tenant = t
			result.Snapshot.Tenant = resolver.Present
		case errors.Is(err, shared.ErrNotFound):
			// Absent already.
		default:
			s.logger.Warn("tenant load failed during bootstrap",
				"tenant_id", result.User.TenantID().String(),
				"error", err,
			)
			result.Snapshot.Tenant = resolver.Failed
		}
	}

	result.decide()
	return result, nil
}

// tenantBySubdomain resolves a workspace URL, through the cache when
// one is configured. Not-found is never cached, so a fresh signup's
// subdomain resolves as soon as the row exists.
func (s *ResolverService) tenantBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	if s.cache == nil {
		return s.tenants.GetBySubdomain(ctx, subdomain)
	}
	snap, err := s.cache.GetOrSet(ctx, tenantCacheKeyBySubdomain(subdomain), func(ctx context.Context) (*CachedTenant, error) {
		t, err := s.tenants.GetBySubdomain(ctx, subdomain)
		if err != nil {
			return nil, err
		}
		return newCachedTenant(t), nil
	})
	if err != nil {
		return nil, err
	}
	return snap.entity()
}

func (s *ResolverService) tenantByID(ctx context.Context, id shared.ID) (*tenant.Tenant, error) {
	if s.cache == nil {
		return s.tenants.GetByID(ctx, id)
	}
	snap, err := s.cache.GetOrSet(ctx, tenantCacheKeyByID(id), func(ctx context.Context) (*CachedTenant, error) {
		t, err := s.tenants.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return newCachedTenant(t), nil
	})
	if err != nil {
		return nil, err
	}
	return snap.entity()
}
