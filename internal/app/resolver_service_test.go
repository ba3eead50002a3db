package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildledger/api/internal/config"
	"github.com/buildledger/api/pkg/domain/resolver"
	"github.com/buildledger/api/pkg/domain/tenant"
	"github.com/buildledger/api/pkg/logger"
)

type mockTenantCache struct {
	mu          sync.Mutex
	entries     map[string]*CachedTenant
	loads       int
	invalidated []string
}

func newMockTenantCache() *mockTenantCache {
	return &mockTenantCache{entries: make(map[string]*CachedTenant)}
}

func (m *mockTenantCache) GetOrSet(ctx context.Context, key string, loader func(ctx context.Context) (*CachedTenant, error)) (*CachedTenant, error) {
	m.mu.Lock()
	if snap, ok := m.entries[key]; ok {
		m.mu.Unlock()
		return snap, nil
	}
	m.mu.Unlock()

	snap, err := loader(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.entries[key] = snap
	m.loads++
	m.mu.Unlock()
	return snap, nil
}

func (m *mockTenantCache) Invalidate(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	m.invalidated = append(m.invalidated, key)
	return nil
}

func TestBootstrapServesTenantFromCache(t *testing.T) {
	f := newTenantFixture(t)
	cache := newMockTenantCache()
	svc := NewResolverService(f.users, f.repo, logger.NewNop(), WithTenantCache(cache))
	inviterID := f.inviter.ID()

	first, err := svc.Bootstrap(context.Background(), &inviterID, "acme", resolver.TenantRequired, 0)
	require.NoError(t, err)
	assert.Equal(t, resolver.Render, first.Decision)
	require.NotNil(t, first.Tenant)
	assert.Equal(t, 1, f.repo.getBySubdomainCalls)

	second, err := svc.Bootstrap(context.Background(), &inviterID, "acme", resolver.TenantRequired, 0)
	require.NoError(t, err)

	// The second navigation is answered from the cache.
	assert.Equal(t, 1, f.repo.getBySubdomainCalls)
	require.NotNil(t, second.Tenant)
	assert.Equal(t, f.tenant.ID(), second.Tenant.ID())
	assert.Equal(t, "acme", second.Tenant.Subdomain())
	assert.Equal(t, f.tenant.Name(), second.Tenant.Name())
	assert.Equal(t, f.tenant.Status(), second.Tenant.Status())
}

func TestBootstrapCachesTenantByID(t *testing.T) {
	f := newTenantFixture(t)
	cache := newMockTenantCache()
	svc := NewResolverService(f.users, f.repo, logger.NewNop(), WithTenantCache(cache))
	inviterID := f.inviter.ID()

	// No workspace URL: the member's own tenant row is looked up by id.
	first, err := svc.Bootstrap(context.Background(), &inviterID, "", resolver.TenantRequired, 0)
	require.NoError(t, err)
	require.NotNil(t, first.Tenant)
	assert.Equal(t, 1, f.repo.getByIDCalls)

	_, err = svc.Bootstrap(context.Background(), &inviterID, "", resolver.TenantRequired, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.getByIDCalls)
	assert.Equal(t, 1, cache.loads)
}

func TestBootstrapUnknownSubdomainNotCached(t *testing.T) {
	f := newTenantFixture(t)
	cache := newMockTenantCache()
	svc := NewResolverService(f.users, f.repo, logger.NewNop(), WithTenantCache(cache))
	inviterID := f.inviter.ID()

	result, err := svc.Bootstrap(context.Background(), &inviterID, "nosuch", resolver.TenantRequired, 0)
	require.NoError(t, err)
	assert.Equal(t, resolver.Absent, result.Snapshot.Tenant)
	assert.Nil(t, result.Tenant)

	// A miss stays a miss: nothing was stored, so the next call asks
	// the store again.
	assert.Equal(t, 0, cache.loads)
	_, err = svc.Bootstrap(context.Background(), &inviterID, "nosuch", resolver.TenantRequired, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, f.repo.getBySubdomainCalls)
}

func TestBootstrapWithoutCacheHitsStore(t *testing.T) {
	f := newTenantFixture(t)
	svc := NewResolverService(f.users, f.repo, logger.NewNop())
	inviterID := f.inviter.ID()

	for i := 0; i < 2; i++ {
		result, err := svc.Bootstrap(context.Background(), &inviterID, "acme", resolver.TenantRequired, 0)
		require.NoError(t, err)
		require.NotNil(t, result.Tenant)
	}
	assert.Equal(t, 2, f.repo.getBySubdomainCalls)
}

func TestBootstrapCarriesRedirectTarget(t *testing.T) {
	f := newTenantFixture(t)
	svc := NewResolverService(f.users, f.repo, logger.NewNop())

	anon, err := svc.Bootstrap(context.Background(), nil, "acme", resolver.TenantRequired, 0)
	require.NoError(t, err)
	assert.Equal(t, resolver.RedirectToAuth, anon.Decision)
	assert.Equal(t, resolver.TargetAuth, anon.Target)

	inviterID := f.inviter.ID()
	member, err := svc.Bootstrap(context.Background(), &inviterID, "acme", resolver.AuthOnly, 0)
	require.NoError(t, err)
	assert.Equal(t, resolver.RedirectAwayFromAuthPage, member.Decision)
	assert.Equal(t, resolver.TargetDashboard, member.Target)
}

func TestUpdateTenantInvalidatesBootstrapCache(t *testing.T) {
	f := newTenantFixture(t)
	cache := newMockTenantCache()

	cfg := config.InvitationConfig{
		Expiry:    tenant.DefaultInvitationExpiry,
		Retention: 30 * 24 * time.Hour,
	}
	tenants := NewTenantService(f.repo, f.users, cfg, logger.NewNop(),
		WithTenantCacheInvalidation(cache),
	)
	resolverSvc := NewResolverService(f.users, f.repo, logger.NewNop(), WithTenantCache(cache))
	inviterID := f.inviter.ID()

	_, err := resolverSvc.Bootstrap(context.Background(), &inviterID, "acme", resolver.TenantRequired, 0)
	require.NoError(t, err)
	require.Equal(t, 1, cache.loads)

	_, err = tenants.UpdateTenant(context.Background(), f.tenant.ID(), UpdateTenantInput{
		Name:  "Acme Construction",
		Email: "ops@acme.test",
	})
	require.NoError(t, err)

	assert.Contains(t, cache.invalidated, "id:"+f.tenant.ID().String())
	assert.Contains(t, cache.invalidated, "subdomain:acme")

	// The next navigation reloads the row and sees the new name.
	after, err := resolverSvc.Bootstrap(context.Background(), &inviterID, "acme", resolver.TenantRequired, 0)
	require.NoError(t, err)
	require.NotNil(t, after.Tenant)
	assert.Equal(t, "Acme Construction", after.Tenant.Name())
	assert.Equal(t, 2, f.repo.getBySubdomainCalls)
}
