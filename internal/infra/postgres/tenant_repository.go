package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/domain/tenant"
	"github.com/buildledger/api/pkg/domain/user"
	"github.com/buildledger/api/pkg/pagination"
)

// TenantRepository implements tenant.Repository using PostgreSQL.
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// Create persists a new tenant. A unique index on subdomain is the
// authoritative guard against races; ExistsBySubdomain is only a
// fast-path check.
func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	query := `
		INSERT INTO tenants (id, subdomain, name, email, phone, plan, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		t.ID().String(),
		t.Subdomain(),
		t.Name(),
		t.Email(),
		nullString(t.Phone()),
		t.Plan().String(),
		t.Status().String(),
		t.CreatedBy().String(),
		t.CreatedAt(),
		t.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return tenant.ErrSubdomainTaken
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	return nil
}

// GetByID retrieves a tenant by ID.
func (r *TenantRepository) GetByID(ctx context.Context, id shared.ID) (*tenant.Tenant, error) {
	query := `
		SELECT id, subdomain, name, email, phone, plan, status, created_by, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`

	return r.scanTenant(r.db.QueryRowContext(ctx, query, id.String()))
}

// GetBySubdomain retrieves a tenant by subdomain.
func (r *TenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	query := `
		SELECT id, subdomain, name, email, phone, plan, status, created_by, created_at, updated_at
		FROM tenants
		WHERE subdomain = $1
	`

	return r.scanTenant(r.db.QueryRowContext(ctx, query, subdomain))
}

// List returns tenants system-wide, newest first, with the total
// count. Backs the operator CLI.
func (r *TenantRepository) List(ctx context.Context, page pagination.Request) ([]*tenant.Tenant, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tenants: %w", err)
	}

	query := `
		SELECT id, subdomain, name, email, phone, plan, status, created_by, created_at, updated_at
		FROM tenants
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		t, err := scanTenantFrom(rows)
		if err != nil {
			return nil, 0, err
		}
		tenants = append(tenants, t)
	}

	return tenants, total, rows.Err()
}

// Update updates an existing tenant. The subdomain column is
// deliberately not in the SET list.
func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) error {
	query := `
		UPDATE tenants
		SET name = $2, email = $3, phone = $4, plan = $5, status = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		t.ID().String(),
		t.Name(),
		t.Email(),
		nullString(t.Phone()),
		t.Plan().String(),
		t.Status().String(),
		t.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return tenant.NotFoundError(t.ID())
	}

	return nil
}

// ExistsBySubdomain checks if a subdomain is already claimed.
func (r *TenantRepository) ExistsBySubdomain(ctx context.Context, subdomain string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM tenants WHERE subdomain = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, subdomain).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check subdomain existence: %w", err)
	}

	return exists, nil
}

func (r *TenantRepository) scanTenant(row *sql.Row) (*tenant.Tenant, error) {
	return scanTenantFrom(row)
}

func scanTenantFrom(s rowScanner) (*tenant.Tenant, error) {
	var (
		idStr      string
		subdomain  string
		name       string
		email      string
		phone      sql.NullString
		plan       string
		status     string
		createdBy  string
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := s.Scan(&idStr, &subdomain, &name, &email, &phone, &plan, &status, &createdBy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant ID in database: %w", err)
	}
	creator, err := shared.IDFromString(createdBy)
	if err != nil {
		return nil, fmt.Errorf("invalid creator ID in database: %w", err)
	}

	return tenant.Reconstitute(
		id,
		subdomain,
		name,
		email,
		nullStringValue(phone),
		tenant.Plan(plan),
		tenant.Status(status),
		creator,
		createdAt,
		updatedAt,
	), nil
}

// CreateInvitation persists a pending invitation. A partial unique
// index on (tenant_id, lower(email)) WHERE status = 'pending' keeps
// at most one live invitation per address.
func (r *TenantRepository) CreateInvitation(ctx context.Context, inv *tenant.Invitation) error {
	permissions, err := toJSONB(inv.Permissions())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tenant_invitations (id, tenant_id, email, role, permissions, token, invited_by, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		inv.ID().String(),
		inv.TenantID().String(),
		inv.Email(),
		inv.Role().String(),
		permissions,
		inv.Token(),
		inv.InvitedBy().String(),
		inv.Status().String(),
		inv.ExpiresAt(),
		inv.CreatedAt(),
		inv.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return tenant.ErrInvitationAlreadySent
		}
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	return nil
}

const invitationColumns = `id, tenant_id, email, role, permissions, token, invited_by, status, expires_at, created_at, updated_at`

// GetInvitationByToken retrieves an invitation by token, regardless of
// status.
func (r *TenantRepository) GetInvitationByToken(ctx context.Context, token string) (*tenant.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM tenant_invitations WHERE token = $1`

	inv, err := r.scanInvitation(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, tenant.ErrInvalidInvitation
		}
		return nil, err
	}
	return inv, nil
}

// GetInvitationByID retrieves an invitation scoped to a tenant.
func (r *TenantRepository) GetInvitationByID(ctx context.Context, tenantID, id shared.ID) (*tenant.Invitation, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + invitationColumns + ` FROM tenant_invitations WHERE tenant_id = $1 AND id = $2`

	inv, err := r.scanInvitation(r.db.QueryRowContext(ctx, query, tenantID.String(), id.String()))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, tenant.InvitationNotFoundError(id)
		}
		return nil, err
	}
	return inv, nil
}

// GetPendingInvitationByEmail retrieves the pending invitation for an
// email within a tenant.
func (r *TenantRepository) GetPendingInvitationByEmail(ctx context.Context, tenantID shared.ID, email string) (*tenant.Invitation, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + invitationColumns + `
		FROM tenant_invitations
		WHERE tenant_id = $1 AND lower(email) = lower($2) AND status = 'pending'
	`

	return r.scanInvitation(r.db.QueryRowContext(ctx, query, tenantID.String(), email))
}

// UpdateInvitation persists mutations to an existing invitation.
func (r *TenantRepository) UpdateInvitation(ctx context.Context, inv *tenant.Invitation) error {
	query := `
		UPDATE tenant_invitations
		SET status = $2, expires_at = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		inv.ID().String(),
		inv.Status().String(),
		inv.ExpiresAt(),
		inv.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return tenant.InvitationNotFoundError(inv.ID())
	}

	return nil
}

// MarkInvitationAccepted flips status pending -> accepted in one
// conditional write. A zero row count means some other request got
// there first.
func (r *TenantRepository) MarkInvitationAccepted(ctx context.Context, id shared.ID) error {
	query := `
		UPDATE tenant_invitations
		SET status = 'accepted', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to mark invitation accepted: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return tenant.ErrInvitationAlreadyProcessed
	}

	return nil
}

// ListInvitations returns a tenant's invitations, newest first.
func (r *TenantRepository) ListInvitations(ctx context.Context, tenantID shared.ID) ([]*tenant.Invitation, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + invitationColumns + `
		FROM tenant_invitations
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*tenant.Invitation
	for rows.Next() {
		inv, err := r.scanInvitationRows(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}

	return invitations, rows.Err()
}

// DeleteExpiredInvitations removes pending invitations whose expiry
// passed more than retention ago. The sweep runs across all tenants.
func (r *TenantRepository) DeleteExpiredInvitations(ctx context.Context, retention time.Duration) (int64, error) {
	query := `
		DELETE FROM tenant_invitations
		WHERE status = 'pending' AND expires_at < $1
	`

	cutoff := time.Now().UTC().Add(-retention)

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invitations: %w", err)
	}

	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *TenantRepository) scanInvitation(row *sql.Row) (*tenant.Invitation, error) {
	return scanInvitationFrom(row)
}

func (r *TenantRepository) scanInvitationRows(rows *sql.Rows) (*tenant.Invitation, error) {
	return scanInvitationFrom(rows)
}

func scanInvitationFrom(s rowScanner) (*tenant.Invitation, error) {
	var (
		idStr       string
		tenantIDStr string
		email       string
		role        string
		permsRaw    []byte
		token       string
		invitedBy   string
		status      string
		expiresAt   time.Time
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := s.Scan(&idStr, &tenantIDStr, &email, &role, &permsRaw, &token, &invitedBy, &status, &expiresAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan invitation: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid invitation ID in database: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant ID in database: %w", err)
	}
	inviter, err := shared.IDFromString(invitedBy)
	if err != nil {
		return nil, fmt.Errorf("invalid inviter ID in database: %w", err)
	}

	permissions := user.Permissions{}
	if err := fromJSONB(permsRaw, &permissions); err != nil {
		return nil, err
	}

	return tenant.ReconstituteInvitation(
		id,
		tenantID,
		email,
		user.Role(role),
		permissions,
		token,
		inviter,
		tenant.InvitationStatus(status),
		expiresAt,
		createdAt,
		updatedAt,
	), nil
}
