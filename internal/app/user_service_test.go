package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/domain/user"
	"github.com/buildledger/api/pkg/logger"
)

type mockSessionRevoker struct {
	sessionsDeleted []string
	tokensRevoked   []string
	deleteErr       error
	revokeErr       error
}

func (m *mockSessionRevoker) DeleteAllUserSessions(ctx context.Context, userID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.sessionsDeleted = append(m.sessionsDeleted, userID)
	return nil
}

func (m *mockSessionRevoker) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	m.tokensRevoked = append(m.tokensRevoked, userID)
	return nil
}

type userFixture struct {
	users    *mockUserRepo
	sessions *mockSessionRevoker
	service  *UserService

	tenantID shared.ID
	member   *user.Record
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()

	f := &userFixture{
		users:    newMockUserRepo(),
		sessions: &mockSessionRevoker{},
		tenantID: shared.NewID(),
	}

	member, err := user.NewMember(shared.NewID(), f.tenantID, "member@acme.test", "Member", user.RoleEntry, nil)
	require.NoError(t, err)
	f.users.records[member.ID().String()] = member
	f.member = member

	f.service = NewUserService(f.users, logger.NewNop(), WithSessionRevoker(f.sessions))
	return f
}

func TestEnsureUserCreatesOnFirstSight(t *testing.T) {
	f := newUserFixture(t)
	identityID := shared.NewID()

	record, err := f.service.EnsureUser(context.Background(), identityID, "new@acme.test", "New User")
	require.NoError(t, err)

	assert.True(t, record.ID().Equals(identityID))
	assert.False(t, record.HasTenant(), "first sight yields an unassigned record")

	stored, err := f.users.GetByID(context.Background(), identityID)
	require.NoError(t, err)
	assert.Equal(t, "new@acme.test", stored.Email())
}

func TestEnsureUserTouchesLoginAndSyncsName(t *testing.T) {
	f := newUserFixture(t)

	before := time.Now().UTC()
	record, err := f.service.EnsureUser(context.Background(), f.member.ID(), "member@acme.test", "Renamed")
	require.NoError(t, err)

	assert.Equal(t, "Renamed", record.Name())
	require.NotNil(t, record.LastLoginAt())
	assert.False(t, record.LastLoginAt().Before(before))
}

func TestEnsureUserSurvivesTouchFailure(t *testing.T) {
	f := newUserFixture(t)
	f.users.updateErr = errors.New("database down")

	// A stale last-login timestamp must not fail the login.
	record, err := f.service.EnsureUser(context.Background(), f.member.ID(), "member@acme.test", "")
	require.NoError(t, err)
	assert.True(t, record.ID().Equals(f.member.ID()))
}

func TestDeactivateMember(t *testing.T) {
	f := newUserFixture(t)
	actorID := shared.NewID()

	err := f.service.DeactivateMember(context.Background(), f.tenantID, f.member.ID(), actorID)
	require.NoError(t, err)

	stored, err := f.users.GetByID(context.Background(), f.member.ID())
	require.NoError(t, err)
	assert.False(t, stored.IsActive())
	assert.False(t, stored.Can(user.ResourceCosts, user.LevelRead), "deactivated records grant nothing")

	assert.Equal(t, []string{f.member.ID().String()}, f.sessions.sessionsDeleted)
	assert.Equal(t, []string{f.member.ID().String()}, f.sessions.tokensRevoked)
}

func TestDeactivateMemberRejectsSelf(t *testing.T) {
	f := newUserFixture(t)

	err := f.service.DeactivateMember(context.Background(), f.tenantID, f.member.ID(), f.member.ID())
	assert.ErrorIs(t, err, shared.ErrValidation)

	stored, getErr := f.users.GetByID(context.Background(), f.member.ID())
	require.NoError(t, getErr)
	assert.True(t, stored.IsActive())
}

func TestDeactivateMemberSurvivesRevocationFailure(t *testing.T) {
	f := newUserFixture(t)
	f.sessions.deleteErr = errors.New("redis down")
	f.sessions.revokeErr = errors.New("redis down")

	// The deactivation is durable in the database; revocation failures
	// only delay lockout until the access token expires.
	err := f.service.DeactivateMember(context.Background(), f.tenantID, f.member.ID(), shared.NewID())
	require.NoError(t, err)

	stored, getErr := f.users.GetByID(context.Background(), f.member.ID())
	require.NoError(t, getErr)
	assert.False(t, stored.IsActive())
}

func TestActivateMember(t *testing.T) {
	f := newUserFixture(t)
	f.member.Deactivate()

	err := f.service.ActivateMember(context.Background(), f.tenantID, f.member.ID())
	require.NoError(t, err)

	stored, getErr := f.users.GetByID(context.Background(), f.member.ID())
	require.NoError(t, getErr)
	assert.True(t, stored.IsActive())
	assert.True(t, stored.Can(user.ResourceCosts, user.LevelWrite))
}

func TestUpdateMemberPermissions(t *testing.T) {
	f := newUserFixture(t)

	record, err := f.service.UpdateMemberPermissions(context.Background(), f.tenantID, f.member.ID(), UpdateMemberPermissionsInput{
		Permissions: map[string]string{
			"projects": "write",
			"users":    "read",
		},
	})
	require.NoError(t, err)

	assert.True(t, record.Can(user.ResourceProjects, user.LevelWrite))
	assert.True(t, record.Can(user.ResourceUsers, user.LevelRead))
	assert.True(t, record.Can(user.ResourceCosts, user.LevelWrite), "untouched levels survive")
}

func TestUpdateMemberPermissionsRejectsUnknownResource(t *testing.T) {
	f := newUserFixture(t)

	_, err := f.service.UpdateMemberPermissions(context.Background(), f.tenantID, f.member.ID(), UpdateMemberPermissionsInput{
		Permissions: map[string]string{"secrets": "write"},
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateMemberPermissionsUnknownMember(t *testing.T) {
	f := newUserFixture(t)

	_, err := f.service.UpdateMemberPermissions(context.Background(), f.tenantID, shared.NewID(), UpdateMemberPermissionsInput{
		Permissions: map[string]string{"projects": "read"},
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetMemberStats(t *testing.T) {
	f := newUserFixture(t)

	second, err := user.NewMember(shared.NewID(), f.tenantID, "second@acme.test", "Second", user.RoleView, nil)
	require.NoError(t, err)
	second.Deactivate()
	f.users.records[second.ID().String()] = second

	// A record from a different workspace must not leak into the counts.
	other, err := user.NewMember(shared.NewID(), shared.NewID(), "other@else.test", "Other", user.RoleEntry, nil)
	require.NoError(t, err)
	f.users.records[other.ID().String()] = other

	stats, err := f.service.GetMemberStats(context.Background(), f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, int64(1), stats.Active)
}
