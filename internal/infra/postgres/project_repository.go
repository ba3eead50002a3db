package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/buildledger/api/pkg/domain/project"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/pagination"
)

// ProjectRepository implements project.Repository using PostgreSQL.
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, tenant_id, name, code, description, status, budget_cents, start_date, end_date, created_by, created_at, updated_at`

// Create persists a new project.
func (r *ProjectRepository) Create(ctx context.Context, p *project.Project) error {
	query := `
		INSERT INTO projects (id, tenant_id, name, code, description, status, budget_cents, start_date, end_date, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID().String(),
		p.TenantID().String(),
		p.Name(),
		nullString(p.Code()),
		nullString(p.Description()),
		p.Status().String(),
		p.BudgetCents(),
		nullTime(p.StartDate()),
		nullTime(p.EndDate()),
		p.CreatedBy().String(),
		p.CreatedAt(),
		p.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetByID retrieves a project scoped to a tenant.
func (r *ProjectRepository) GetByID(ctx context.Context, tenantID, id shared.ID) (*project.Project, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + projectColumns + ` FROM projects WHERE tenant_id = $1 AND id = $2`

	p, err := scanProjectFrom(r.db.QueryRowContext(ctx, query, tenantID.String(), id.String()))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, project.NotFoundError(id)
		}
		return nil, err
	}
	return p, nil
}

// Update persists mutations to an existing project.
func (r *ProjectRepository) Update(ctx context.Context, p *project.Project) error {
	query := `
		UPDATE projects
		SET name = $3, code = $4, description = $5, status = $6, budget_cents = $7, start_date = $8, end_date = $9, updated_at = $10
		WHERE tenant_id = $1 AND id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		p.TenantID().String(),
		p.ID().String(),
		p.Name(),
		nullString(p.Code()),
		nullString(p.Description()),
		p.Status().String(),
		p.BudgetCents(),
		nullTime(p.StartDate()),
		nullTime(p.EndDate()),
		p.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return project.NotFoundError(p.ID())
	}

	return nil
}

// Delete removes a project and, via cascading foreign keys, its cost
// entries, change orders, invoices, and attachment records.
func (r *ProjectRepository) Delete(ctx context.Context, tenantID, id shared.ID) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	query := `DELETE FROM projects WHERE tenant_id = $1 AND id = $2`

	result, err := r.db.ExecContext(ctx, query, tenantID.String(), id.String())
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return project.NotFoundError(id)
	}

	return nil
}

// List returns a page of a tenant's projects plus the total count.
func (r *ProjectRepository) List(ctx context.Context, tenantID shared.ID, filter project.Filter, page pagination.Request) ([]*project.Project, int64, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, 0, err
	}

	where := `WHERE tenant_id = $1`
	args := []any{tenantID.String()}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(` AND (name ILIKE $%d OR code ILIKE $%d)`, len(args), len(args))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM projects ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	args = append(args, page.Limit(), page.Offset())
	query := fmt.Sprintf(`
		SELECT `+projectColumns+`
		FROM projects %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*project.Project
	for rows.Next() {
		p, err := scanProjectFrom(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, p)
	}

	return projects, total, rows.Err()
}

func scanProjectFrom(s rowScanner) (*project.Project, error) {
	var (
		idStr       string
		tenantIDStr string
		name        string
		code        sql.NullString
		description sql.NullString
		status      string
		budgetCents int64
		startDate   sql.NullTime
		endDate     sql.NullTime
		createdBy   string
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := s.Scan(&idStr, &tenantIDStr, &name, &code, &description, &status, &budgetCents, &startDate, &endDate, &createdBy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid project ID in database: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant ID in database: %w", err)
	}
	creator, err := shared.IDFromString(createdBy)
	if err != nil {
		return nil, fmt.Errorf("invalid creator ID in database: %w", err)
	}

	return project.Reconstitute(
		id,
		tenantID,
		name,
		nullStringValue(code),
		nullStringValue(description),
		project.Status(status),
		budgetCents,
		nullTimeValue(startDate),
		nullTimeValue(endDate),
		creator,
		createdAt,
		updatedAt,
	), nil
}
