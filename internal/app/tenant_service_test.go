package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildledger/api/internal/config"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/domain/tenant"
	"github.com/buildledger/api/pkg/domain/user"
	"github.com/buildledger/api/pkg/identity"
	"github.com/buildledger/api/pkg/logger"
	"github.com/buildledger/api/pkg/pagination"
)

// =============================================================================
// Mocks
// =============================================================================

type mockTenantRepo struct {
	mu          sync.Mutex
	tenants     map[string]*tenant.Tenant
	invitations map[string]*tenant.Invitation

	createInvitationErr error
	updateInvitationErr error
	markAcceptedErr     error
	markAcceptedCalls   int
	cleanupRetention    time.Duration
	cleanupCount        int64

	getByIDCalls        int
	getBySubdomainCalls int
}

func newMockTenantRepo() *mockTenantRepo {
	return &mockTenantRepo{
		tenants:     make(map[string]*tenant.Tenant),
		invitations: make(map[string]*tenant.Invitation),
	}
}

func (m *mockTenantRepo) Create(ctx context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tenants {
		if existing.Subdomain() == t.Subdomain() {
			return tenant.ErrSubdomainTaken
		}
	}
	m.tenants[t.ID().String()] = t
	return nil
}

func (m *mockTenantRepo) GetByID(ctx context.Context, id shared.ID) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByIDCalls++
	if t, ok := m.tenants[id.String()]; ok {
		return t, nil
	}
	return nil, shared.ErrNotFound
}

func (m *mockTenantRepo) GetBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getBySubdomainCalls++
	for _, t := range m.tenants {
		if t.Subdomain() == subdomain {
			return t, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockTenantRepo) List(ctx context.Context, page pagination.Request) ([]*tenant.Tenant, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*tenant.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	return out, int64(len(out)), nil
}

func (m *mockTenantRepo) Update(ctx context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[t.ID().String()]; !ok {
		return tenant.NotFoundError(t.ID())
	}
	m.tenants[t.ID().String()] = t
	return nil
}

func (m *mockTenantRepo) ExistsBySubdomain(ctx context.Context, subdomain string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.Subdomain() == subdomain {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTenantRepo) CreateInvitation(ctx context.Context, inv *tenant.Invitation) error {
	if m.createInvitationErr != nil {
		return m.createInvitationErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invitations[inv.ID().String()] = inv
	return nil
}

func (m *mockTenantRepo) GetInvitationByToken(ctx context.Context, token string) (*tenant.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.Token() == token {
			return inv, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockTenantRepo) GetInvitationByID(ctx context.Context, tenantID, id shared.ID) (*tenant.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.invitations[id.String()]; ok && inv.TenantID().Equals(tenantID) {
		return inv, nil
	}
	return nil, tenant.InvitationNotFoundError(id)
}

func (m *mockTenantRepo) GetPendingInvitationByEmail(ctx context.Context, tenantID shared.ID, email string) (*tenant.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.TenantID().Equals(tenantID) && inv.Email() == email && inv.IsPending() {
			return inv, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockTenantRepo) UpdateInvitation(ctx context.Context, inv *tenant.Invitation) error {
	if m.updateInvitationErr != nil {
		return m.updateInvitationErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invitations[inv.ID().String()] = inv
	return nil
}

func (m *mockTenantRepo) MarkInvitationAccepted(ctx context.Context, id shared.ID) error {
	m.mu.Lock()
	m.markAcceptedCalls++
	m.mu.Unlock()
	if m.markAcceptedErr != nil {
		return m.markAcceptedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id.String()]
	if !ok || !inv.IsPending() {
		return tenant.ErrInvitationAlreadyProcessed
	}
	return inv.MarkAccepted()
}

func (m *mockTenantRepo) ListInvitations(ctx context.Context, tenantID shared.ID) ([]*tenant.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*tenant.Invitation
	for _, inv := range m.invitations {
		if inv.TenantID().Equals(tenantID) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *mockTenantRepo) DeleteExpiredInvitations(ctx context.Context, retention time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupRetention = retention
	return m.cleanupCount, nil
}

type mockUserRepo struct {
	mu      sync.Mutex
	records map[string]*user.Record

	upsertErr error
	updateErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{records: make(map[string]*user.Record)}
}

func (m *mockUserRepo) Create(ctx context.Context, r *user.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID().String()] = r
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id shared.ID) (*user.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id.String()]; ok {
		return r, nil
	}
	return nil, shared.ErrNotFound
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*user.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Email() == email {
			return r, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockUserRepo) Update(ctx context.Context, r *user.Record) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID().String()] = r
	return nil
}

func (m *mockUserRepo) Upsert(ctx context.Context, r *user.Record) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID().String()] = r
	return nil
}

func (m *mockUserRepo) GetMember(ctx context.Context, tenantID, id shared.ID) (*user.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id.String()]; ok && r.HasTenant() && r.TenantID().Equals(tenantID) {
		return r, nil
	}
	return nil, shared.ErrNotFound
}

func (m *mockUserRepo) GetMemberByEmail(ctx context.Context, tenantID shared.ID, email string) (*user.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.HasTenant() && r.TenantID().Equals(tenantID) && r.Email() == email {
			return r, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockUserRepo) ListByTenant(ctx context.Context, tenantID shared.ID) ([]*user.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*user.Record
	for _, r := range m.records {
		if r.HasTenant() && r.TenantID().Equals(tenantID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockUserRepo) CountActiveByTenant(ctx context.Context, tenantID shared.ID) (int64, error) {
	records, _ := m.ListByTenant(ctx, tenantID)
	var n int64
	for _, r := range records {
		if r.IsActive() {
			n++
		}
	}
	return n, nil
}

type mockIdentityProvider struct {
	mu         sync.Mutex
	identities map[string]*identity.Identity

	lookupErr     error
	createErr     error
	credentialErr error

	created          []string
	credentialResets []string
	deleted          []string
}

func newMockIdentityProvider() *mockIdentityProvider {
	return &mockIdentityProvider{identities: make(map[string]*identity.Identity)}
}

func (m *mockIdentityProvider) addIdentity(email string) *identity.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	ident := &identity.Identity{ID: shared.NewID().String(), Email: email, EmailVerified: true}
	m.identities[email] = ident
	return ident
}

func (m *mockIdentityProvider) LookupByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ident, ok := m.identities[email]; ok {
		return ident, nil
	}
	return nil, identity.ErrIdentityNotFound
}

func (m *mockIdentityProvider) CreateIdentity(ctx context.Context, email, name, password string) (*identity.Identity, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[email]; ok {
		return nil, identity.ErrIdentityExists
	}
	ident := &identity.Identity{ID: shared.NewID().String(), Email: email, Name: name, EmailVerified: true}
	m.identities[email] = ident
	m.created = append(m.created, ident.ID)
	return ident, nil
}

func (m *mockIdentityProvider) UpdateCredential(ctx context.Context, id, password string) error {
	if m.credentialErr != nil {
		return m.credentialErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentialResets = append(m.credentialResets, id)
	return nil
}

func (m *mockIdentityProvider) DeleteIdentity(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	for email, ident := range m.identities {
		if ident.ID == id {
			delete(m.identities, email)
		}
	}
	return nil
}

type mockEnqueuer struct {
	mu             sync.Mutex
	invitationJobs []InvitationEmailJob
	welcomeJobs    []WelcomeEmailJob

	invitationErr error
	welcomeErr    error
}

func (m *mockEnqueuer) EnqueueInvitationEmail(ctx context.Context, payload InvitationEmailJob) error {
	if m.invitationErr != nil {
		return m.invitationErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invitationJobs = append(m.invitationJobs, payload)
	return nil
}

func (m *mockEnqueuer) EnqueueWelcomeEmail(ctx context.Context, payload WelcomeEmailJob) error {
	if m.welcomeErr != nil {
		return m.welcomeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomeJobs = append(m.welcomeJobs, payload)
	return nil
}

// =============================================================================
// Fixtures
// =============================================================================

type tenantFixture struct {
	repo     *mockTenantRepo
	users    *mockUserRepo
	idp      *mockIdentityProvider
	enqueuer *mockEnqueuer
	service  *TenantService

	tenant  *tenant.Tenant
	inviter *user.Record
}

func newTenantFixture(t *testing.T) *tenantFixture {
	t.Helper()

	f := &tenantFixture{
		repo:     newMockTenantRepo(),
		users:    newMockUserRepo(),
		idp:      newMockIdentityProvider(),
		enqueuer: &mockEnqueuer{},
	}

	inviter, err := user.NewUnassigned(shared.NewID(), "founder@acme.test", "Founder")
	require.NoError(t, err)

	workspace, err := tenant.NewTenant("acme", "Acme Builders", "ops@acme.test", "", tenant.PlanStandard, inviter.ID())
	require.NoError(t, err)
	require.NoError(t, inviter.PromoteToMaster(workspace.ID()))

	f.repo.tenants[workspace.ID().String()] = workspace
	f.users.records[inviter.ID().String()] = inviter
	f.tenant = workspace
	f.inviter = inviter

	cfg := config.InvitationConfig{
		Expiry:    tenant.DefaultInvitationExpiry,
		Retention: 30 * 24 * time.Hour,
	}
	f.service = NewTenantService(f.repo, f.users, cfg, logger.NewNop(),
		WithIdentityProvider(f.idp),
		WithEmailEnqueuer(f.enqueuer),
	)
	return f
}

func (f *tenantFixture) invite(t *testing.T, email string) *tenant.Invitation {
	t.Helper()
	inv, err := f.service.CreateInvitation(context.Background(), f.tenant.ID(), CreateInvitationInput{
		Email: email,
		Role:  "entry",
	}, f.inviter.ID())
	require.NoError(t, err)
	return inv
}

// =============================================================================
// CreateTenant
// =============================================================================

func TestCreateTenantPromotesCreator(t *testing.T) {
	f := newTenantFixture(t)
	ctx := context.Background()

	creator, err := user.NewUnassigned(shared.NewID(), "owner@newco.test", "Owner")
	require.NoError(t, err)
	f.users.records[creator.ID().String()] = creator

	created, err := f.service.CreateTenant(ctx, CreateTenantInput{
		Subdomain: "NewCo",
		Name:      "NewCo Construction",
		Email:     "ops@newco.test",
		Plan:      "free",
	}, creator.ID())
	require.NoError(t, err)

	assert.Equal(t, "newco", created.Subdomain())

	stored, err := f.users.GetByID(ctx, creator.ID())
	require.NoError(t, err)
	assert.Equal(t, user.RoleMaster, stored.Role())
	require.True(t, stored.HasTenant())
	assert.True(t, stored.TenantID().Equals(created.ID()))
	assert.True(t, stored.Can(user.ResourceUsers, user.LevelWrite))
}

func TestCreateTenantRejectsSecondWorkspace(t *testing.T) {
	f := newTenantFixture(t)

	// The inviter already belongs to the fixture workspace.
	_, err := f.service.CreateTenant(context.Background(), CreateTenantInput{
		Subdomain: "other",
		Name:      "Other",
		Email:     "ops@other.test",
		Plan:      "free",
	}, f.inviter.ID())
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateTenantSubdomainTaken(t *testing.T) {
	f := newTenantFixture(t)

	creator, err := user.NewUnassigned(shared.NewID(), "owner@dup.test", "Owner")
	require.NoError(t, err)
	f.users.records[creator.ID().String()] = creator

	_, err = f.service.CreateTenant(context.Background(), CreateTenantInput{
		Subdomain: "ACME",
		Name:      "Duplicate",
		Email:     "ops@dup.test",
		Plan:      "free",
	}, creator.ID())
	assert.ErrorIs(t, err, tenant.ErrSubdomainTaken)
}

// =============================================================================
// CreateInvitation
// =============================================================================

func TestCreateInvitation(t *testing.T) {
	f := newTenantFixture(t)

	inv := f.invite(t, "New.Hire@Example.com")

	assert.Equal(t, "new.hire@example.com", inv.Email(), "email is normalized")
	assert.Equal(t, user.RoleEntry, inv.Role())
	assert.NotEmpty(t, inv.Token())

	require.Len(t, f.enqueuer.invitationJobs, 1)
	job := f.enqueuer.invitationJobs[0]
	assert.Equal(t, "new.hire@example.com", job.RecipientEmail)
	assert.Equal(t, inv.Token(), job.Token)
	assert.Equal(t, "Acme Builders", job.TenantName)
	assert.False(t, job.KnownAccount, "no provider account yet")
}

func TestCreateInvitationPicksExistingAccountEmail(t *testing.T) {
	f := newTenantFixture(t)
	f.idp.addIdentity("returning@example.com")

	f.invite(t, "returning@example.com")

	require.Len(t, f.enqueuer.invitationJobs, 1)
	assert.True(t, f.enqueuer.invitationJobs[0].KnownAccount)
}

func TestCreateInvitationRejectsActiveMember(t *testing.T) {
	f := newTenantFixture(t)

	member, err := user.NewMember(shared.NewID(), f.tenant.ID(), "member@example.com", "Member", user.RoleEntry, nil)
	require.NoError(t, err)
	f.users.records[member.ID().String()] = member

	_, err = f.service.CreateInvitation(context.Background(), f.tenant.ID(), CreateInvitationInput{
		Email: "member@example.com",
		Role:  "entry",
	}, f.inviter.ID())
	assert.ErrorIs(t, err, tenant.ErrAlreadyMember)
}

func TestCreateInvitationAllowsDeactivatedMember(t *testing.T) {
	f := newTenantFixture(t)

	member, err := user.NewMember(shared.NewID(), f.tenant.ID(), "former@example.com", "Former", user.RoleEntry, nil)
	require.NoError(t, err)
	member.Deactivate()
	f.users.records[member.ID().String()] = member

	// Re-inviting a deactivated member is the reactivation path.
	inv := f.invite(t, "former@example.com")
	assert.True(t, inv.IsAcceptable())
}

func TestCreateInvitationRejectsDuplicatePending(t *testing.T) {
	f := newTenantFixture(t)

	f.invite(t, "dup@example.com")

	_, err := f.service.CreateInvitation(context.Background(), f.tenant.ID(), CreateInvitationInput{
		Email: "dup@example.com",
		Role:  "entry",
	}, f.inviter.ID())
	assert.ErrorIs(t, err, tenant.ErrInvitationAlreadySent)
}

func TestCreateInvitationSurvivesEnqueueFailure(t *testing.T) {
	f := newTenantFixture(t)
	f.enqueuer.invitationErr = errors.New("queue down")

	inv := f.invite(t, "invitee@example.com")

	// The invitation exists and is acceptable even though no email
	// went out.
	stored, err := f.repo.GetInvitationByToken(context.Background(), inv.Token())
	require.NoError(t, err)
	assert.True(t, stored.IsAcceptable())
}

func TestCreateInvitationSurvivesIdentityLookupFailure(t *testing.T) {
	f := newTenantFixture(t)
	f.idp.lookupErr = identity.ErrProviderUnavailable

	inv := f.invite(t, "invitee@example.com")
	assert.True(t, inv.IsAcceptable())
}

func TestCreateInvitationCustomPermissions(t *testing.T) {
	f := newTenantFixture(t)

	inv, err := f.service.CreateInvitation(context.Background(), f.tenant.ID(), CreateInvitationInput{
		Email: "viewer@example.com",
		Role:  "view",
		Permissions: map[string]string{
			"projects": "write",
		},
	}, f.inviter.ID())
	require.NoError(t, err)
	assert.Equal(t, user.LevelWrite, inv.Permissions().Get(user.ResourceProjects))

	_, err = f.service.CreateInvitation(context.Background(), f.tenant.ID(), CreateInvitationInput{
		Email: "bad@example.com",
		Role:  "view",
		Permissions: map[string]string{
			"secrets": "write",
		},
	}, f.inviter.ID())
	assert.ErrorIs(t, err, shared.ErrValidation)
}

// =============================================================================
// Resend / Cancel
// =============================================================================

func TestResendInvitationKeepsToken(t *testing.T) {
	f := newTenantFixture(t)
	inv := f.invite(t, "invitee@example.com")
	token := inv.Token()

	// The recipient signed up on their own since the first send.
	f.idp.addIdentity("invitee@example.com")

	resent, err := f.service.ResendInvitation(context.Background(), f.tenant.ID(), inv.ID())
	require.NoError(t, err)

	assert.Equal(t, token, resent.Token())
	require.Len(t, f.enqueuer.invitationJobs, 2, "resend queues another email")
	assert.Equal(t, token, f.enqueuer.invitationJobs[1].Token)
	assert.False(t, f.enqueuer.invitationJobs[0].KnownAccount)
	assert.True(t, f.enqueuer.invitationJobs[1].KnownAccount, "delivery path is chosen again on resend")
}

func TestResendInvitationRejectsProcessed(t *testing.T) {
	f := newTenantFixture(t)
	inv := f.invite(t, "invitee@example.com")
	require.NoError(t, f.repo.MarkInvitationAccepted(context.Background(), inv.ID()))

	_, err := f.service.ResendInvitation(context.Background(), f.tenant.ID(), inv.ID())
	assert.ErrorIs(t, err, tenant.ErrInvitationAlreadyProcessed)
}

func TestCancelInvitation(t *testing.T) {
	f := newTenantFixture(t)
	inv := f.invite(t, "invitee@example.com")

	require.NoError(t, f.service.CancelInvitation(context.Background(), f.tenant.ID(), inv.ID()))

	_, err := f.service.GetInvitationByToken(context.Background(), inv.Token())
	assert.ErrorIs(t, err, tenant.ErrInvalidInvitation)
}

// =============================================================================
// GetInvitationByToken
// =============================================================================

func TestGetInvitationByToken(t *testing.T) {
	f := newTenantFixture(t)
	inv := f.invite(t, "invitee@example.com")

	details, err := f.service.GetInvitationByToken(context.Background(), inv.Token())
	require.NoError(t, err)
	assert.Equal(t, "Acme Builders", details.TenantName)
	assert.Equal(t, "Founder", details.InviterName)
	assert.Equal(t, "invitee@example.com", details.Invitation.Email())
}

func TestGetInvitationByTokenUnknown(t *testing.T) {
	f := newTenantFixture(t)

	_, err := f.service.GetInvitationByToken(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, tenant.ErrInvalidInvitation)
}

func TestGetInvitationByTokenExpired(t *testing.T) {
	f := newTenantFixture(t)
	inv := expiredInvitation(t, f)

	_, err := f.service.GetInvitationByToken(context.Background(), inv.Token())
	assert.ErrorIs(t, err, tenant.ErrInvitationExpired)
}

// expiredInvitation stores a pending invitation whose expiry already
// passed, as the cleanup-sweep-hasn't-run-yet state.
func expiredInvitation(t *testing.T, f *tenantFixture) *tenant.Invitation {
	t.Helper()
	now := time.Now().UTC()
	inv := tenant.ReconstituteInvitation(
		shared.NewID(), f.tenant.ID(),
		"stale@example.com",
		user.RoleEntry,
		user.TemplateFor(user.RoleEntry),
		"stale-token",
		f.inviter.ID(),
		tenant.InvitationPending,
		now.Add(-time.Hour), now.Add(-8*24*time.Hour), now.Add(-8*24*time.Hour),
	)
	f.repo.invitations[inv.ID().String()] = inv
	return inv
}

// =============================================================================
// AcceptInvitation
// =============================================================================

func TestAcceptInvitationNewIdentity(t *testing.T) {
	f := newTenantFixture(t)
	inv := f.invite(t, "invitee@example.com")

	record, err := f.service.AcceptInvitation(context.Background(), AcceptInvitationInput{
		Token:    inv.Token(),
		Name:     "New Hire",
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	require.Len(t, f.idp.created, 1, "identity created for new email")
	assert.Empty(t, f.idp.credentialResets)
	assert.Empty(t, f.idp.deleted)

	assert.Equal(t, f.idp.created[0], record.ID().String(), "record keyed by identity id")
	require.True(t, record.HasTenant())
	assert.True(t, record.TenantID().Equals(f.tenant.ID()))
	assert.Equal(t, user.RoleEntry, record.Role())

	stored, err := f.repo.GetInvitationByToken(context.Background(), inv.Token())
	require.NoError(t, err)
	assert.Equal(t, tenant.InvitationAccepted, stored.Status())

	require.Len(t, f.enqueuer.welcomeJobs, 1)
	assert.Equal(t, "invitee@example.com", f.enqueuer.welcomeJobs[0].UserEmail)
}

func TestAcceptInvitationExistingIdentity(t *testing.T) {
	f := newTenantFixture(t)
	inv := f.invite(t, "invitee@example.com")
	ident := f.idp.addIdentity("invitee@example.com")

	record, err := f.service.AcceptInvitation(context.Background(), AcceptInvitationInput{
		Token:    inv.Token(),
		Name:     "Returning Hire",
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	// Mailbox control was proven, so the presented password becomes
	// the credential. No new identity, nothing deleted.
	assert.Equal(t, []string{ident.ID}, f.idp.credentialResets)
	assert.Empty(t, f.idp.created)
	assert.Empty(t, f.idp.deleted)
	assert.Equal(t, ident.ID, record.ID().String())
}

func TestAcceptInvitationIdempotentRecordUpsert(t *testing.T) {
	f := newTenantFixture(t)
	inv := f.invite(t, "invitee@example.com")
	ident := f.idp.addIdentity("invitee@example.com")

	identityID, err := shared.IDFromString(ident.ID)
	require.NoError(t, err)
	existing, err := user.NewUnassigned(identityID, "invitee@example.com", "Old Name")
	require.NoError(t, err)
	f.users.records[existing.ID().String()] = existing

	record, err := f.service.AcceptInvitation(context.Background(), AcceptInvitationInput{
		Token:    inv.Token(),
		Name:     "New Name",
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	// The existing record is bound, not duplicated.
	assert.Len(t, f.users.records, 2, "inviter plus the bound record")
	assert.Equal(t, "New Name", record.Name())
	require.True(t, record.HasTenant())
	assert.True(t, record.TenantID().Equals(f.tenant.ID()))
}

func TestAcceptInvitationUnknownToken(t *testing.T) {
	f := newTenantFixture(t)

	_, err := f.service.AcceptInvitation(context.Background(), AcceptInvitationInput{
		Token:    "no-such-token",
		Name:     "Nobody",
		Password: "correct horse battery",
	})
	assert.ErrorIs(t, err, tenant.ErrInvalidInvitation)
}

func TestAcceptInvitationExpired(t *testing.T) {
	f := newTenantFixture(t)
	inv := expiredInvitation(t, f)

	_, err := f.service.AcceptInvitation(context.Background(), AcceptInvitationInput{
		Token:    inv.Token(),
		Name:     "Late",
		Password: "correct horse battery",
	})
	assert.ErrorIs(t, err, tenant.ErrInvitationExpired)

	// Computed expiry only: the stored status is untouched.
	assert.Equal(t, tenant.InvitationPending, inv.Status())
	assert.Empty(t, f.idp.created, "no provisioning on expired token")
}

func TestAcceptInvitationRollsBackCreatedIdentity(t *testing.T) {
	f := newTenantFixture(t)
	inv := f.invite(t, "invitee@example.com")
	f.users.upsertErr = errors.New("database down")

	_, err := f.service.AcceptInvitation(context.Background(), AcceptInvitationInput{
		Token:    inv.Token(),
		Name:     "New Hire",
		Password: "correct horse battery",
	})
	require.Error(t, err)

	require.Len(t, f.idp.created, 1)
	assert.Equal(t, f.idp.created, f.idp.deleted, "identity created here is deleted again")
}

func TestAcceptInvitationNeverDeletesPreexistingIdentity(t *testing.T) {
	f := newTenantFixture(t)
	inv := f.invite(t, "invitee@example.com")
	f.idp.addIdentity("invitee@example.com")
	f.users.upsertErr = errors.New("database down")

	_, err := f.service.AcceptInvitation(context.Background(), AcceptInvitationInput{
		Token:    inv.Token(),
		Name:     "Returning Hire",
		Password: "correct horse battery",
	})
	require.Error(t, err)
	assert.Empty(t, f.idp.deleted, "pre-existing identity must survive a failed accept")
}

func TestAcceptInvitationConcurrentLoser(t *testing.T) {
	f := newTenantFixture(t)
	inv := f.invite(t, "invitee@example.com")
	f.repo.markAcceptedErr = tenant.ErrInvitationAlreadyProcessed

	_, err := f.service.AcceptInvitation(context.Background(), AcceptInvitationInput{
		Token:    inv.Token(),
		Name:     "Loser",
		Password: "correct horse battery",
	})
	assert.ErrorIs(t, err, tenant.ErrInvitationAlreadyProcessed)
}

func TestAcceptInvitationBookkeepingFailureNotSurfaced(t *testing.T) {
	f := newTenantFixture(t)
	inv := f.invite(t, "invitee@example.com")
	f.repo.markAcceptedErr = errors.New("connection reset")

	// The account was provisioned; an infrastructure failure on the
	// final status write must not fail the signup.
	record, err := f.service.AcceptInvitation(context.Background(), AcceptInvitationInput{
		Token:    inv.Token(),
		Name:     "New Hire",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	assert.True(t, record.HasTenant())
	assert.Equal(t, 1, f.repo.markAcceptedCalls)
}

func TestAcceptInvitationCreateConflictFallsBack(t *testing.T) {
	f := newTenantFixture(t)
	inv := f.invite(t, "invitee@example.com")

	// Simulate a concurrent accept creating the identity between our
	// lookup and create: the create reports a conflict, and by then
	// the lookup finds the account.
	f.idp.createErr = identity.ErrIdentityExists
	ident := f.idp.addIdentity("invitee@example.com")
	firstLookup := true
	wrapped := &flakyLookupProvider{inner: f.idp, failFirst: &firstLookup}

	svc := NewTenantService(f.repo, f.users, config.InvitationConfig{}, logger.NewNop(),
		WithIdentityProvider(wrapped),
		WithEmailEnqueuer(f.enqueuer),
	)

	record, err := svc.AcceptInvitation(context.Background(), AcceptInvitationInput{
		Token:    inv.Token(),
		Name:     "Racer",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	assert.Equal(t, ident.ID, record.ID().String())
	assert.Empty(t, f.idp.deleted, "the fallback identity is not ours to delete")
}

// flakyLookupProvider fails the first LookupByEmail with not-found and
// delegates everything afterwards.
type flakyLookupProvider struct {
	inner     *mockIdentityProvider
	failFirst *bool
}

func (p *flakyLookupProvider) LookupByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	if *p.failFirst {
		*p.failFirst = false
		return nil, identity.ErrIdentityNotFound
	}
	return p.inner.LookupByEmail(ctx, email)
}

func (p *flakyLookupProvider) CreateIdentity(ctx context.Context, email, name, password string) (*identity.Identity, error) {
	return p.inner.CreateIdentity(ctx, email, name, password)
}

func (p *flakyLookupProvider) UpdateCredential(ctx context.Context, id, password string) error {
	return p.inner.UpdateCredential(ctx, id, password)
}

func (p *flakyLookupProvider) DeleteIdentity(ctx context.Context, id string) error {
	return p.inner.DeleteIdentity(ctx, id)
}

func TestAcceptInvitationRequiresProvider(t *testing.T) {
	f := newTenantFixture(t)
	svc := NewTenantService(f.repo, f.users, config.InvitationConfig{}, logger.NewNop())

	_, err := svc.AcceptInvitation(context.Background(), AcceptInvitationInput{
		Token:    "any",
		Name:     "Nobody",
		Password: "correct horse battery",
	})
	assert.ErrorIs(t, err, shared.ErrUpstreamUnavailable)
}

// =============================================================================
// Cleanup
// =============================================================================

func TestCleanupExpiredInvitations(t *testing.T) {
	f := newTenantFixture(t)
	f.repo.cleanupCount = 3

	removed, err := f.service.CleanupExpiredInvitations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
	assert.Equal(t, 30*24*time.Hour, f.repo.cleanupRetention, "sweep uses the configured retention")
}
