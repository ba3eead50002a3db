package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/buildledger/api/pkg/domain/cost"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/pagination"
)

// CostRepository implements cost.Repository using PostgreSQL.
type CostRepository struct {
	db *DB
}

// NewCostRepository creates a new CostRepository.
func NewCostRepository(db *DB) *CostRepository {
	return &CostRepository{db: db}
}

const costColumns = `id, tenant_id, project_id, category, description, amount_cents, vendor, incurred_at, entered_by, created_at, updated_at`

// Create persists a new cost entry.
func (r *CostRepository) Create(ctx context.Context, e *cost.Entry) error {
	query := `
		INSERT INTO cost_entries (id, tenant_id, project_id, category, description, amount_cents, vendor, incurred_at, entered_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		e.ID().String(),
		e.TenantID().String(),
		e.ProjectID().String(),
		e.Category().String(),
		e.Description(),
		e.AmountCents(),
		nullString(e.Vendor()),
		e.IncurredAt(),
		e.EnteredBy().String(),
		e.CreatedAt(),
		e.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create cost entry: %w", err)
	}

	return nil
}

// GetByID retrieves a cost entry scoped to a tenant.
func (r *CostRepository) GetByID(ctx context.Context, tenantID, id shared.ID) (*cost.Entry, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + costColumns + ` FROM cost_entries WHERE tenant_id = $1 AND id = $2`

	e, err := scanCostFrom(r.db.QueryRowContext(ctx, query, tenantID.String(), id.String()))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("cost entry %s %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return e, nil
}

// Update persists mutations to an existing cost entry.
func (r *CostRepository) Update(ctx context.Context, e *cost.Entry) error {
	query := `
		UPDATE cost_entries
		SET category = $3, description = $4, amount_cents = $5, vendor = $6, incurred_at = $7, updated_at = $8
		WHERE tenant_id = $1 AND id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		e.TenantID().String(),
		e.ID().String(),
		e.Category().String(),
		e.Description(),
		e.AmountCents(),
		nullString(e.Vendor()),
		e.IncurredAt(),
		e.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update cost entry: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("cost entry %s %w", e.ID(), shared.ErrNotFound)
	}

	return nil
}

// Delete removes a cost entry.
func (r *CostRepository) Delete(ctx context.Context, tenantID, id shared.ID) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	query := `DELETE FROM cost_entries WHERE tenant_id = $1 AND id = $2`

	result, err := r.db.ExecContext(ctx, query, tenantID.String(), id.String())
	if err != nil {
		return fmt.Errorf("failed to delete cost entry: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("cost entry %s %w", id, shared.ErrNotFound)
	}

	return nil
}

// List returns a page of a tenant's cost entries plus the total count.
func (r *CostRepository) List(ctx context.Context, tenantID shared.ID, filter cost.Filter, page pagination.Request) ([]*cost.Entry, int64, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, 0, err
	}

	where := `WHERE tenant_id = $1`
	args := []any{tenantID.String()}

	if !filter.ProjectID.IsZero() {
		args = append(args, filter.ProjectID.String())
		where += fmt.Sprintf(` AND project_id = $%d`, len(args))
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		where += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where += fmt.Sprintf(` AND incurred_at >= $%d`, len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where += fmt.Sprintf(` AND incurred_at < $%d`, len(args))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM cost_entries ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cost entries: %w", err)
	}

	args = append(args, page.Limit(), page.Offset())
	query := fmt.Sprintf(`
		SELECT `+costColumns+`
		FROM cost_entries %s
		ORDER BY incurred_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cost entries: %w", err)
	}
	defer rows.Close()

	var entries []*cost.Entry
	for rows.Next() {
		e, err := scanCostFrom(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}

	return entries, total, rows.Err()
}

// TotalsByCategory sums a project's booked costs per category.
func (r *CostRepository) TotalsByCategory(ctx context.Context, tenantID, projectID shared.ID) ([]cost.CategoryTotal, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT category, COALESCE(SUM(amount_cents), 0)
		FROM cost_entries
		WHERE tenant_id = $1 AND project_id = $2
		GROUP BY category
		ORDER BY category
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID.String(), projectID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to sum cost entries: %w", err)
	}
	defer rows.Close()

	var totals []cost.CategoryTotal
	for rows.Next() {
		var t cost.CategoryTotal
		var category string
		if err := rows.Scan(&category, &t.Cents); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		t.Category = cost.Category(category)
		totals = append(totals, t)
	}

	return totals, rows.Err()
}

func scanCostFrom(s rowScanner) (*cost.Entry, error) {
	var (
		idStr        string
		tenantIDStr  string
		projectIDStr string
		category     string
		description  string
		amountCents  int64
		vendor       sql.NullString
		incurredAt   time.Time
		enteredBy    string
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := s.Scan(&idStr, &tenantIDStr, &projectIDStr, &category, &description, &amountCents, &vendor, &incurredAt, &enteredBy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan cost entry: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid cost entry ID in database: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant ID in database: %w", err)
	}
	projectID, err := shared.IDFromString(projectIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid project ID in database: %w", err)
	}
	entered, err := shared.IDFromString(enteredBy)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in database: %w", err)
	}

	return cost.ReconstituteEntry(
		id,
		tenantID,
		projectID,
		cost.Category(category),
		description,
		amountCents,
		nullStringValue(vendor),
		incurredAt,
		entered,
		createdAt,
		updatedAt,
	), nil
}
