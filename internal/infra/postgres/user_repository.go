package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/domain/user"
)

// UserRepository implements user.Repository using PostgreSQL.
// Permissions are stored as a JSONB resource->level map.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, tenant_id, name, email, role, permissions, is_active, last_login_at, created_at, updated_at`

// Create persists a new user record.
func (r *UserRepository) Create(ctx context.Context, record *user.Record) error {
	permissions, err := toJSONB(record.Permissions())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, tenant_id, name, email, role, permissions, is_active, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID().String(),
		nullID(record.TenantID()),
		record.Name(),
		record.Email(),
		record.Role().String(),
		permissions,
		record.IsActive(),
		nullTime(record.LastLoginAt()),
		record.CreatedAt(),
		record.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user record by its identity provider subject.
func (r *UserRepository) GetByID(ctx context.Context, id shared.ID) (*user.Record, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	record, err := scanUserFrom(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, user.NotFoundError(id)
		}
		return nil, err
	}
	return record, nil
}

// GetByEmail retrieves a user record by email, across tenants.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.Record, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	record, err := scanUserFrom(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, user.NotFoundByEmailError(email)
		}
		return nil, err
	}
	return record, nil
}

// Update persists mutations to an existing user record.
func (r *UserRepository) Update(ctx context.Context, record *user.Record) error {
	permissions, err := toJSONB(record.Permissions())
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET tenant_id = $2, name = $3, email = $4, role = $5, permissions = $6, is_active = $7, last_login_at = $8, updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		record.ID().String(),
		nullID(record.TenantID()),
		record.Name(),
		record.Email(),
		record.Role().String(),
		permissions,
		record.IsActive(),
		nullTime(record.LastLoginAt()),
		record.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return user.NotFoundError(record.ID())
	}

	return nil
}

// Upsert inserts the record or, when the identity already has one,
// refreshes its profile fields. Tenant binding, role, and permissions
// are never touched on the update path: sign-in sync must not clobber
// membership state.
func (r *UserRepository) Upsert(ctx context.Context, record *user.Record) error {
	permissions, err := toJSONB(record.Permissions())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, tenant_id, name, email, role, permissions, is_active, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, last_login_at = EXCLUDED.last_login_at, updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID().String(),
		nullID(record.TenantID()),
		record.Name(),
		record.Email(),
		record.Role().String(),
		permissions,
		record.IsActive(),
		nullTime(record.LastLoginAt()),
		record.CreatedAt(),
		record.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

// GetMember retrieves a user record scoped to a tenant.
func (r *UserRepository) GetMember(ctx context.Context, tenantID, id shared.ID) (*user.Record, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND id = $2`

	record, err := scanUserFrom(r.db.QueryRowContext(ctx, query, tenantID.String(), id.String()))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, user.NotFoundError(id)
		}
		return nil, err
	}
	return record, nil
}

// GetMemberByEmail retrieves a tenant's member by email.
func (r *UserRepository) GetMemberByEmail(ctx context.Context, tenantID shared.ID, email string) (*user.Record, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND lower(email) = lower($2)`

	record, err := scanUserFrom(r.db.QueryRowContext(ctx, query, tenantID.String(), email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, user.NotFoundByEmailError(email)
		}
		return nil, err
	}
	return record, nil
}

// ListByTenant returns all of a tenant's user records, active and
// deactivated, newest first.
func (r *UserRepository) ListByTenant(ctx context.Context, tenantID shared.ID) ([]*user.Record, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var records []*user.Record
	for rows.Next() {
		record, err := scanUserFrom(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// CountActiveByTenant counts a tenant's active members.
func (r *UserRepository) CountActiveByTenant(ctx context.Context, tenantID shared.ID) (int64, error) {
	if err := requireTenant(tenantID); err != nil {
		return 0, err
	}

	query := `SELECT COUNT(*) FROM users WHERE tenant_id = $1 AND is_active = TRUE`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, tenantID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}

	return count, nil
}

func scanUserFrom(s rowScanner) (*user.Record, error) {
	var (
		idStr       string
		tenantIDStr sql.NullString
		name        string
		email       string
		role        string
		permsRaw    []byte
		isActive    bool
		lastLoginAt sql.NullTime
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := s.Scan(&idStr, &tenantIDStr, &name, &email, &role, &permsRaw, &isActive, &lastLoginAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in database: %w", err)
	}

	permissions := user.Permissions{}
	if err := fromJSONB(permsRaw, &permissions); err != nil {
		return nil, err
	}

	return user.Reconstitute(
		id,
		parseNullID(tenantIDStr),
		name,
		email,
		user.Role(role),
		permissions,
		isActive,
		nullTimeValue(lastLoginAt),
		createdAt,
		updatedAt,
	), nil
}
