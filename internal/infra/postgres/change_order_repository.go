package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/buildledger/api/pkg/domain/cost"
	"github.com/buildledger/api/pkg/domain/shared"
)

// ChangeOrderRepository implements cost.ChangeOrderRepository using
// PostgreSQL.
type ChangeOrderRepository struct {
	db *DB
}

// NewChangeOrderRepository creates a new ChangeOrderRepository.
func NewChangeOrderRepository(db *DB) *ChangeOrderRepository {
	return &ChangeOrderRepository{db: db}
}

const changeOrderColumns = `id, tenant_id, project_id, number, description, delta_cents, status, requested_by, decided_by, decided_at, created_at, updated_at`

// Create persists a new change order.
func (r *ChangeOrderRepository) Create(ctx context.Context, co *cost.ChangeOrder) error {
	query := `
		INSERT INTO change_orders (id, tenant_id, project_id, number, description, delta_cents, status, requested_by, decided_by, decided_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		co.ID().String(),
		co.TenantID().String(),
		co.ProjectID().String(),
		nullString(co.Number()),
		co.Description(),
		co.DeltaCents(),
		co.Status().String(),
		co.RequestedBy().String(),
		nullID(co.DecidedBy()),
		nullTime(co.DecidedAt()),
		co.CreatedAt(),
		co.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create change order: %w", err)
	}

	return nil
}

// GetByID retrieves a change order scoped to a tenant.
func (r *ChangeOrderRepository) GetByID(ctx context.Context, tenantID, id shared.ID) (*cost.ChangeOrder, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + changeOrderColumns + ` FROM change_orders WHERE tenant_id = $1 AND id = $2`

	co, err := scanChangeOrderFrom(r.db.QueryRowContext(ctx, query, tenantID.String(), id.String()))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("change order %s %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return co, nil
}

// Update persists mutations to an existing change order.
func (r *ChangeOrderRepository) Update(ctx context.Context, co *cost.ChangeOrder) error {
	query := `
		UPDATE change_orders
		SET number = $3, description = $4, delta_cents = $5, status = $6, decided_by = $7, decided_at = $8, updated_at = $9
		WHERE tenant_id = $1 AND id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		co.TenantID().String(),
		co.ID().String(),
		nullString(co.Number()),
		co.Description(),
		co.DeltaCents(),
		co.Status().String(),
		nullID(co.DecidedBy()),
		nullTime(co.DecidedAt()),
		co.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update change order: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("change order %s %w", co.ID(), shared.ErrNotFound)
	}

	return nil
}

// ListByProject returns a project's change orders, newest first.
func (r *ChangeOrderRepository) ListByProject(ctx context.Context, tenantID, projectID shared.ID) ([]*cost.ChangeOrder, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + changeOrderColumns + `
		FROM change_orders
		WHERE tenant_id = $1 AND project_id = $2
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID.String(), projectID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list change orders: %w", err)
	}
	defer rows.Close()

	var orders []*cost.ChangeOrder
	for rows.Next() {
		co, err := scanChangeOrderFrom(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, co)
	}

	return orders, rows.Err()
}

// ApprovedDelta sums the approved budget deltas for a project.
func (r *ChangeOrderRepository) ApprovedDelta(ctx context.Context, tenantID, projectID shared.ID) (int64, error) {
	if err := requireTenant(tenantID); err != nil {
		return 0, err
	}

	query := `
		SELECT COALESCE(SUM(delta_cents), 0)
		FROM change_orders
		WHERE tenant_id = $1 AND project_id = $2 AND status = 'approved'
	`

	var delta int64
	if err := r.db.QueryRowContext(ctx, query, tenantID.String(), projectID.String()).Scan(&delta); err != nil {
		return 0, fmt.Errorf("failed to sum change orders: %w", err)
	}

	return delta, nil
}

func scanChangeOrderFrom(s rowScanner) (*cost.ChangeOrder, error) {
	var (
		idStr        string
		tenantIDStr  string
		projectIDStr string
		number       sql.NullString
		description  string
		deltaCents   int64
		status       string
		requestedBy  string
		decidedBy    sql.NullString
		decidedAt    sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := s.Scan(&idStr, &tenantIDStr, &projectIDStr, &number, &description, &deltaCents, &status, &requestedBy, &decidedBy, &decidedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan change order: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid change order ID in database: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant ID in database: %w", err)
	}
	projectID, err := shared.IDFromString(projectIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid project ID in database: %w", err)
	}
	requester, err := shared.IDFromString(requestedBy)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in database: %w", err)
	}

	return cost.ReconstituteChangeOrder(
		id,
		tenantID,
		projectID,
		nullStringValue(number),
		description,
		deltaCents,
		cost.ChangeOrderStatus(status),
		requester,
		parseNullID(decidedBy),
		nullTimeValue(decidedAt),
		createdAt,
		updatedAt,
	), nil
}
