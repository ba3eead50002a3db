package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/domain/user"
	"github.com/buildledger/api/pkg/logger"
)

// SessionRevoker cuts off a user's live sessions. Satisfied by the
// redis session store.
type SessionRevoker interface {
	DeleteAllUserSessions(ctx context.Context, userID string) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error
}

// UserService manages user records and workspace membership.
type UserService struct {
	users    user.Repository
	sessions SessionRevoker
	logger   *logger.Logger
}

// UserServiceOption is a functional option for UserService.
type UserServiceOption func(*UserService)

// WithSessionRevoker enables immediate session revocation when a
// member is deactivated.
func WithSessionRevoker(revoker SessionRevoker) UserServiceOption {
	return func(s *UserService) {
		s.sessions = revoker
	}
}

// NewUserService creates a new UserService.
func NewUserService(users user.Repository, log *logger.Logger, opts ...UserServiceOption) *UserService {
	s := &UserService{
		users:  users,
		logger: log.With("service", "user"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureUser returns the record for an authenticated identity, lazily
// creating an unassigned one on first sight. Known records get their
// last-login timestamp touched; a changed display name at the provider
// is synced down.
func (s *UserService) EnsureUser(ctx context.Context, identityID shared.ID, email, name string) (*user.Record, error) {
	record, err := s.users.GetByID(ctx, identityID)
	switch {
	case err == nil:
		record.TouchLogin(time.Now().UTC())
		if name != "" && name != record.Name() {
			record.UpdateProfile(name)
		}
		if err := s.users.Update(ctx, record); err != nil {
			// The login still works with a stale timestamp.
			s.logger.Warn("failed to touch user login",
				"user_id", identityID.String(),
				"error", err,
			)
		}
		return record, nil
	case errors.Is(err, shared.ErrNotFound):
		record, err = user.NewUnassigned(identityID, email, name)
		if err != nil {
			return nil, err
		}
		// Upsert, not insert: two first requests can race here and
		// must converge on one row.
		if err := s.users.Upsert(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to create user record: %w", err)
		}
		s.logger.Info("user record created on first sight",
			"user_id", identityID.String(),
			"email", email,
		)
		return record, nil
	default:
		return nil, fmt.Errorf("failed to load user record: %w", err)
	}
}

// GetUser retrieves a user record by identity ID.
func (s *UserService) GetUser(ctx context.Context, id shared.ID) (*user.Record, error) {
	return s.users.GetByID(ctx, id)
}

// GetUserByEmail retrieves a user record by email address.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*user.Record, error) {
	return s.users.GetByEmail(ctx, email)
}

// GetMember retrieves a user record scoped to a workspace.
func (s *UserService) GetMember(ctx context.Context, tenantID, id shared.ID) (*user.Record, error) {
	return s.users.GetMember(ctx, tenantID, id)
}

// ListMembers returns all user records in a workspace.
func (s *UserService) ListMembers(ctx context.Context, tenantID shared.ID) ([]*user.Record, error) {
	return s.users.ListByTenant(ctx, tenantID)
}

// MemberStats summarizes a workspace's membership.
type MemberStats struct {
	Total  int   `json:"total"`
	Active int64 `json:"active"`
}

// GetMemberStats returns membership counts for a workspace.
func (s *UserService) GetMemberStats(ctx context.Context, tenantID shared.ID) (*MemberStats, error) {
	members, err := s.users.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	active, err := s.users.CountActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &MemberStats{Total: len(members), Active: active}, nil
}

// UpdateMemberPermissionsInput carries per-resource level overrides.
// The member's role is the template applied at creation; permissions
// are edited independently of it.
type UpdateMemberPermissionsInput struct {
	Permissions map[string]string `json:"permissions" validate:"required,min=1,dive,keys,permission_resource,endkeys,permission_level"`
}

// UpdateMemberPermissions overrides permission levels for a member.
func (s *UserService) UpdateMemberPermissions(ctx context.Context, tenantID, memberID shared.ID, input UpdateMemberPermissionsInput) (*user.Record, error) {
	record, err := s.users.GetMember(ctx, tenantID, memberID)
	if err != nil {
		return nil, err
	}

	for res, lvl := range input.Permissions {
		if err := record.SetPermission(user.Resource(res), user.Level(lvl)); err != nil {
			return nil, err
		}
	}

	if err := s.users.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update permissions: %w", err)
	}

	s.logger.Info("member permissions updated",
		"tenant_id", tenantID.String(),
		"user_id", memberID.String(),
	)
	return record, nil
}

// DeactivateMember soft-deactivates a member and revokes their live
// sessions. Self-deactivation is rejected so a workspace cannot lock
// itself out of its last pair of hands.
func (s *UserService) DeactivateMember(ctx context.Context, tenantID, memberID, actorID shared.ID) error {
	if memberID.Equals(actorID) {
		return shared.ValidationErrorf("cannot deactivate your own account")
	}

	record, err := s.users.GetMember(ctx, tenantID, memberID)
	if err != nil {
		return err
	}

	record.Deactivate()
	if err := s.users.Update(ctx, record); err != nil {
		return fmt.Errorf("failed to deactivate member: %w", err)
	}

	if s.sessions != nil {
		if err := s.sessions.DeleteAllUserSessions(ctx, memberID.String()); err != nil {
			s.logger.Error("failed to revoke sessions for deactivated member",
				"user_id", memberID.String(),
				"error", err,
			)
		}
		if err := s.sessions.RevokeAllRefreshTokens(ctx, memberID.String()); err != nil {
			s.logger.Error("failed to revoke refresh tokens for deactivated member",
				"user_id", memberID.String(),
				"error", err,
			)
		}
	}

	s.logger.Info("member deactivated",
		"tenant_id", tenantID.String(),
		"user_id", memberID.String(),
		"actor_id", actorID.String(),
	)
	return nil
}

// ActivateMember reverses a soft deactivation.
func (s *UserService) ActivateMember(ctx context.Context, tenantID, memberID shared.ID) error {
	record, err := s.users.GetMember(ctx, tenantID, memberID)
	if err != nil {
		return err
	}

	record.Activate()
	if err := s.users.Update(ctx, record); err != nil {
		return fmt.Errorf("failed to activate member: %w", err)
	}

	s.logger.Info("member activated",
		"tenant_id", tenantID.String(),
		"user_id", memberID.String(),
	)
	return nil
}
