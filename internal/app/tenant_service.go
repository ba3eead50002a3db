package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/buildledger/api/internal/config"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/domain/tenant"
	"github.com/buildledger/api/pkg/domain/user"
	"github.com/buildledger/api/pkg/identity"
	"github.com/buildledger/api/pkg/logger"
	"github.com/buildledger/api/pkg/pagination"
)

// EmailJobEnqueuer defines the interface for enqueueing email jobs.
type EmailJobEnqueuer interface {
	EnqueueInvitationEmail(ctx context.Context, payload InvitationEmailJob) error
	EnqueueWelcomeEmail(ctx context.Context, payload WelcomeEmailJob) error
}

// InvitationEmailJob contains data for invitation email jobs.
// KnownAccount selects the join-existing-workspace wording over the
// create-your-account wording.
type InvitationEmailJob struct {
	RecipientEmail string
	InviterName    string
	TenantName     string
	Token          string
	ExpiresIn      time.Duration
	InvitationID   string
	TenantID       string
	KnownAccount   bool
}

// WelcomeEmailJob contains data for welcome email jobs.
type WelcomeEmailJob struct {
	UserEmail  string
	UserName   string
	TenantName string
	UserID     string
}

// TenantService handles workspace onboarding and the invitation
// lifecycle.
type TenantService struct {
	repo          tenant.Repository
	users         user.Repository
	idp           identity.Provider
	emailEnqueuer EmailJobEnqueuer
	cache         TenantCacheInvalidator
	invitationCfg config.InvitationConfig
	logger        *logger.Logger
}

// TenantServiceOption is a functional option for TenantService.
type TenantServiceOption func(*TenantService)

// WithIdentityProvider sets the identity provider admin client. Without
// it, invitation acceptance cannot provision accounts.
func WithIdentityProvider(idp identity.Provider) TenantServiceOption {
	return func(s *TenantService) {
		s.idp = idp
	}
}

// WithEmailEnqueuer sets the email job enqueuer for TenantService.
func WithEmailEnqueuer(enqueuer EmailJobEnqueuer) TenantServiceOption {
	return func(s *TenantService) {
		s.emailEnqueuer = enqueuer
	}
}

// WithTenantCacheInvalidation drops the bootstrap cache entries for a
// tenant when its row changes.
func WithTenantCacheInvalidation(cache TenantCacheInvalidator) TenantServiceOption {
	return func(s *TenantService) {
		s.cache = cache
	}
}

// NewTenantService creates a new TenantService.
func NewTenantService(repo tenant.Repository, users user.Repository, invitationCfg config.InvitationConfig, log *logger.Logger, opts ...TenantServiceOption) *TenantService {
	s := &TenantService{
		repo:          repo,
		users:         users,
		invitationCfg: invitationCfg,
		logger:        log.With("service", "tenant"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTenantInput carries the fields for workspace creation.
type CreateTenantInput struct {
	Subdomain string `json:"subdomain" validate:"required,subdomain"`
	Name      string `json:"name" validate:"required,min=2,max=255"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
	Plan      string `json:"plan" validate:"required,plan"`
}

// CreateTenant creates a workspace and promotes its creator to master
// with the full-write permission template.
func (s *TenantService) CreateTenant(ctx context.Context, input CreateTenantInput, creatorID shared.ID) (*tenant.Tenant, error) {
	plan, ok := tenant.ParsePlan(input.Plan)
	if !ok {
		return nil, shared.ValidationErrorf("invalid plan %q", input.Plan)
	}

	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load creator: %w", err)
	}
	if creator.HasTenant() {
		return nil, fmt.Errorf("%w: user already belongs to a workspace", shared.ErrConflict)
	}

	subdomain := strings.ToLower(strings.TrimSpace(input.Subdomain))
	taken, err := s.repo.ExistsBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, fmt.Errorf("failed to check subdomain: %w", err)
	}
	if taken {
		return nil, tenant.ErrSubdomainTaken
	}

	t, err := tenant.NewTenant(subdomain, input.Name, input.Email, input.Phone, plan, creatorID)
	if err != nil {
		return nil, err
	}

	// The unique index on subdomain is the backstop for the
	// check-then-insert race above.
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	if err := creator.PromoteToMaster(t.ID()); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, creator); err != nil {
		return nil, fmt.Errorf("failed to promote workspace creator: %w", err)
	}

	s.logger.Info("tenant created",
		"tenant_id", t.ID().String(),
		"subdomain", t.Subdomain(),
		"created_by", creatorID.String(),
	)
	return t, nil
}

// GetTenant retrieves a tenant by ID.
func (s *TenantService) GetTenant(ctx context.Context, id shared.ID) (*tenant.Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// ListTenants returns tenants system-wide. Operator tooling only;
// there is no HTTP route for this.
func (s *TenantService) ListTenants(ctx context.Context, page pagination.Request) (pagination.Result[*tenant.Tenant], error) {
	tenants, total, err := s.repo.List(ctx, page)
	if err != nil {
		return pagination.Result[*tenant.Tenant]{}, err
	}
	return pagination.NewResult(tenants, total, page), nil
}

// GetTenantBySubdomain retrieves a tenant by its subdomain.
func (s *TenantService) GetTenantBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	return s.repo.GetBySubdomain(ctx, strings.ToLower(strings.TrimSpace(subdomain)))
}

// UpdateTenantInput carries mutable workspace fields. The subdomain is
// immutable after creation and deliberately absent.
type UpdateTenantInput struct {
	Name  string `json:"name" validate:"required,min=2,max=255"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

// UpdateTenant updates a workspace's contact details.
func (s *TenantService) UpdateTenant(ctx context.Context, id shared.ID, input UpdateTenantInput) (*tenant.Tenant, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := t.UpdateContact(input.Name, input.Email, input.Phone); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}

	s.invalidateTenantCache(ctx, t)

	s.logger.Info("tenant updated", "tenant_id", id.String())
	return t, nil
}

// invalidateTenantCache drops the bootstrap cache entries for the
// tenant. Best effort: a failed invalidation means stale reads until
// the TTL, not a broken update.
func (s *TenantService) invalidateTenantCache(ctx context.Context, t *tenant.Tenant) {
	if s.cache == nil {
		return
	}
	for _, key := range []string{tenantCacheKeyByID(t.ID()), tenantCacheKeyBySubdomain(t.Subdomain())} {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn("failed to invalidate tenant cache",
				"tenant_id", t.ID().String(),
				"key", key,
				"error", err,
			)
		}
	}
}

// CreateInvitationInput carries the fields for issuing an invitation.
type CreateInvitationInput struct {
	Email       string            `json:"email" validate:"required,email"`
	Role        string            `json:"role" validate:"required,role"`
	Permissions map[string]string `json:"permissions" validate:"omitempty,dive,keys,permission_resource,endkeys,permission_level"`
}

// CreateInvitation issues a pending invitation and queues the email.
// The email is delivery, not correctness: a failed enqueue is logged
// and the invitation stays usable.
func (s *TenantService) CreateInvitation(ctx context.Context, tenantID shared.ID, input CreateInvitationInput, inviterID shared.ID) (*tenant.Invitation, error) {
	role, ok := user.ParseRole(input.Role)
	if !ok {
		return nil, shared.ValidationErrorf("invalid role %q", input.Role)
	}

	var permissions user.Permissions
	if len(input.Permissions) > 0 {
		permissions = make(user.Permissions, len(input.Permissions))
		for res, lvl := range input.Permissions {
			permissions[user.Resource(res)] = user.Level(lvl)
		}
		if err := permissions.Validate(); err != nil {
			return nil, err
		}
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	existingMember, err := s.users.GetMemberByEmail(ctx, tenantID, email)
	if err == nil && existingMember != nil && existingMember.IsActive() {
		return nil, tenant.ErrAlreadyMember
	}
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing member: %w", err)
	}

	if _, err := s.repo.GetPendingInvitationByEmail(ctx, tenantID, email); err == nil {
		return nil, tenant.ErrInvitationAlreadySent
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to check pending invitation: %w", err)
	}

	knownAccount := s.identityKnown(ctx, email)

	invitation, err := tenant.NewInvitation(tenantID, email, role, permissions, inviterID, s.invitationCfg.Expiry)
	if err != nil {
		return nil, err
	}

	// The partial unique index on (tenant_id, lower(email)) WHERE
	// status='pending' backstops the check-then-act window above.
	if err := s.repo.CreateInvitation(ctx, invitation); err != nil {
		return nil, err
	}

	s.logger.Info("invitation created",
		"tenant_id", tenantID.String(),
		"email", email,
		"role", role.String(),
	)

	s.enqueueInvitationEmail(ctx, invitation, inviterID, knownAccount)
	return invitation, nil
}

// identityKnown reports whether the provider already has an account for
// the email. Advisory only: the answer picks the email copy, and a
// provider outage degrades to the new-account wording rather than
// blocking the invite.
func (s *TenantService) identityKnown(ctx context.Context, email string) bool {
	if s.idp == nil {
		return false
	}
	if _, err := s.idp.LookupByEmail(ctx, email); err != nil {
		if !errors.Is(err, identity.ErrIdentityNotFound) {
			s.logger.Warn("identity lookup failed during invitation, assuming new account",
				"email", email,
				"error", err,
			)
		}
		return false
	}
	return true
}

// ResendInvitation extends a pending invitation's expiry and re-queues
// the email. The token is kept: the invitation is a renewable
// capability, and an earlier email with the same link stays valid.
func (s *TenantService) ResendInvitation(ctx context.Context, tenantID, invitationID shared.ID) (*tenant.Invitation, error) {
	invitation, err := s.repo.GetInvitationByID(ctx, tenantID, invitationID)
	if err != nil {
		return nil, err
	}

	if err := invitation.ExtendExpiry(s.invitationCfg.Expiry); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateInvitation(ctx, invitation); err != nil {
		return nil, fmt.Errorf("failed to extend invitation: %w", err)
	}

	s.logger.Info("invitation resent",
		"tenant_id", tenantID.String(),
		"invitation_id", invitationID.String(),
	)

	// The recipient may have finished (or abandoned) a signup since the
	// first send, so the delivery path is chosen again.
	s.enqueueInvitationEmail(ctx, invitation, invitation.InvitedBy(), s.identityKnown(ctx, invitation.Email()))
	return invitation, nil
}

// CancelInvitation expires a pending invitation so its token can no
// longer be accepted.
func (s *TenantService) CancelInvitation(ctx context.Context, tenantID, invitationID shared.ID) error {
	invitation, err := s.repo.GetInvitationByID(ctx, tenantID, invitationID)
	if err != nil {
		return err
	}

	invitation.Cancel()
	if err := s.repo.UpdateInvitation(ctx, invitation); err != nil {
		return fmt.Errorf("failed to cancel invitation: %w", err)
	}

	s.logger.Info("invitation cancelled",
		"tenant_id", tenantID.String(),
		"invitation_id", invitationID.String(),
	)
	return nil
}

// ListInvitations returns a workspace's invitations, newest first.
func (s *TenantService) ListInvitations(ctx context.Context, tenantID shared.ID) ([]*tenant.Invitation, error) {
	return s.repo.ListInvitations(ctx, tenantID)
}

// InvitationDetails is the public view of an invitation, with the
// tenant and inviter names denormalized for the acceptance page.
type InvitationDetails struct {
	Invitation  *tenant.Invitation
	TenantName  string
	InviterName string
}

// GetInvitationByToken resolves a token for the acceptance page. A
// token that is not pending reads as not found; only computed expiry
// is reported as expired.
func (s *TenantService) GetInvitationByToken(ctx context.Context, token string) (*InvitationDetails, error) {
	invitation, err := s.repo.GetInvitationByToken(ctx, token)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, tenant.ErrInvalidInvitation
		}
		return nil, err
	}

	if !invitation.IsPending() {
		return nil, tenant.ErrInvalidInvitation
	}
	if invitation.IsExpired() {
		return nil, tenant.ErrInvitationExpired
	}

	details := &InvitationDetails{Invitation: invitation}

	if t, err := s.repo.GetByID(ctx, invitation.TenantID()); err == nil {
		details.TenantName = t.Name()
	}
	if inviter, err := s.users.GetByID(ctx, invitation.InvitedBy()); err == nil {
		details.InviterName = inviter.Name()
	}

	return details, nil
}

// AcceptInvitationInput carries the acceptance form fields.
type AcceptInvitationInput struct {
	Token    string `json:"token" validate:"required"`
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Password string `json:"password" validate:"required,min=12,max=128"`
}

// AcceptInvitation redeems an invitation token into a provisioned
// account and a tenant-bound user record.
//
// The conditional pending->accepted status write is the arbiter for
// concurrent accepts of the same token: the loser gets
// ErrInvitationAlreadyProcessed. Account provisioning is idempotent
// per email, so the race cannot duplicate user records. An identity
// created in this call is deleted again if the user record cannot be
// written; pre-existing identities are never deleted.
func (s *TenantService) AcceptInvitation(ctx context.Context, input AcceptInvitationInput) (*user.Record, error) {
	if s.idp == nil {
		return nil, fmt.Errorf("%w: identity provider not configured", shared.ErrUpstreamUnavailable)
	}

	invitation, err := s.repo.GetInvitationByToken(ctx, input.Token)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, tenant.ErrInvalidInvitation
		}
		return nil, err
	}

	if !invitation.IsPending() {
		return nil, tenant.ErrInvalidInvitation
	}
	// Computed expiry. The stored status stays pending; the cleanup
	// sweep owns the terminal write.
	if invitation.IsExpired() {
		return nil, tenant.ErrInvitationExpired
	}

	ident, createdIdentity, err := s.resolveIdentity(ctx, invitation.Email(), input.Name, input.Password)
	if err != nil {
		return nil, err
	}

	record, err := s.bindUserRecord(ctx, ident, invitation, input.Name)
	if err != nil {
		if createdIdentity {
			if delErr := s.idp.DeleteIdentity(ctx, ident.ID); delErr != nil {
				s.logger.Error("failed to roll back identity after record write failure",
					"identity_id", ident.ID,
					"error", delErr,
				)
			}
		}
		return nil, err
	}

	if err := s.repo.MarkInvitationAccepted(ctx, invitation.ID()); err != nil {
		if errors.Is(err, tenant.ErrInvitationAlreadyProcessed) {
			return nil, err
		}
		// The account exists and works. Losing the bookkeeping write
		// is not worth failing the signup over.
		s.logger.Error("failed to mark invitation accepted after provisioning",
			"invitation_id", invitation.ID().String(),
			"error", err,
		)
	}

	s.logger.Info("invitation accepted",
		"invitation_id", invitation.ID().String(),
		"tenant_id", invitation.TenantID().String(),
		"user_id", record.ID().String(),
	)

	s.enqueueWelcomeEmail(ctx, record, invitation.TenantID())
	return record, nil
}

// resolveIdentity finds or creates the identity provider account for
// the invited email. The returned bool reports whether the identity
// was created by this call.
func (s *TenantService) resolveIdentity(ctx context.Context, email, name, password string) (*identity.Identity, bool, error) {
	ident, err := s.idp.LookupByEmail(ctx, email)
	if err == nil {
		// Accepting the invitation proves mailbox control, so the
		// presented password becomes the credential.
		if err := s.idp.UpdateCredential(ctx, ident.ID, password); err != nil {
			return nil, false, fmt.Errorf("failed to set credential: %w", err)
		}
		return ident, false, nil
	}
	if !errors.Is(err, identity.ErrIdentityNotFound) {
		return nil, false, fmt.Errorf("identity lookup failed: %w", err)
	}

	ident, err = s.idp.CreateIdentity(ctx, email, name, password)
	if err != nil {
		// A concurrent accept may have created it between the lookup
		// and the create. Fall back to the existing account.
		if errors.Is(err, identity.ErrIdentityExists) {
			existing, lookupErr := s.idp.LookupByEmail(ctx, email)
			if lookupErr != nil {
				return nil, false, fmt.Errorf("identity lookup after create conflict failed: %w", lookupErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create identity: %w", err)
	}
	return ident, true, nil
}

// bindUserRecord upserts the user record for the identity, bound to
// the invitation's tenant, role, and permissions.
func (s *TenantService) bindUserRecord(ctx context.Context, ident *identity.Identity, invitation *tenant.Invitation, name string) (*user.Record, error) {
	identityID, err := shared.IDFromString(ident.ID)
	if err != nil {
		return nil, fmt.Errorf("identity provider returned malformed id %q: %w", ident.ID, err)
	}

	record, err := s.users.GetByID(ctx, identityID)
	switch {
	case err == nil:
		if err := record.BindTenant(invitation.TenantID(), invitation.Role(), invitation.Permissions()); err != nil {
			return nil, err
		}
		if name != "" {
			record.UpdateProfile(name)
		}
	case errors.Is(err, shared.ErrNotFound):
		record, err = user.NewMember(identityID, invitation.TenantID(), invitation.Email(), name, invitation.Role(), invitation.Permissions())
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to load user record: %w", err)
	}

	if err := s.users.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to write user record: %w", err)
	}
	return record, nil
}

// CleanupExpiredInvitations removes pending invitations that expired
// more than the retention window ago. Run by the maintenance worker.
func (s *TenantService) CleanupExpiredInvitations(ctx context.Context) (int64, error) {
	count, err := s.repo.DeleteExpiredInvitations(ctx, s.invitationCfg.Retention)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.logger.Info("cleaned up expired invitations", "count", count)
	}
	return count, nil
}

func (s *TenantService) enqueueInvitationEmail(ctx context.Context, invitation *tenant.Invitation, inviterID shared.ID, knownAccount bool) {
	if s.emailEnqueuer == nil {
		return
	}

	inviterName := "A teammate"
	if inviter, err := s.users.GetByID(ctx, inviterID); err == nil && inviter.Name() != "" {
		inviterName = inviter.Name()
	}

	tenantName := "your workspace"
	if t, err := s.repo.GetByID(ctx, invitation.TenantID()); err == nil {
		tenantName = t.Name()
	}

	payload := InvitationEmailJob{
		RecipientEmail: invitation.Email(),
		InviterName:    inviterName,
		TenantName:     tenantName,
		Token:          invitation.Token(),
		ExpiresIn:      time.Until(invitation.ExpiresAt()),
		InvitationID:   invitation.ID().String(),
		TenantID:       invitation.TenantID().String(),
		KnownAccount:   knownAccount,
	}
	if err := s.emailEnqueuer.EnqueueInvitationEmail(ctx, payload); err != nil {
		s.logger.Error("failed to enqueue invitation email",
			"email", invitation.Email(),
			"invitation_id", invitation.ID().String(),
			"error", err,
		)
		return
	}

	s.logger.Info("invitation email queued",
		"email", invitation.Email(),
		"invitation_id", invitation.ID().String(),
	)
}

func (s *TenantService) enqueueWelcomeEmail(ctx context.Context, record *user.Record, tenantID shared.ID) {
	if s.emailEnqueuer == nil {
		return
	}

	tenantName := "your workspace"
	if t, err := s.repo.GetByID(ctx, tenantID); err == nil {
		tenantName = t.Name()
	}

	payload := WelcomeEmailJob{
		UserEmail:  record.Email(),
		UserName:   record.Name(),
		TenantName: tenantName,
		UserID:     record.ID().String(),
	}
	if err := s.emailEnqueuer.EnqueueWelcomeEmail(ctx, payload); err != nil {
		s.logger.Error("failed to enqueue welcome email",
			"email", record.Email(),
			"error", err,
		)
	}
}
