package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/buildledger/api/pkg/domain/invoice"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/pagination"
)

// InvoiceRepository implements invoice.Repository using PostgreSQL.
// Line items are stored as a JSONB array.
type InvoiceRepository struct {
	db *DB
}

// NewInvoiceRepository creates a new InvoiceRepository.
func NewInvoiceRepository(db *DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `id, tenant_id, project_id, number, client_ref, items, status, issued_at, due_at, paid_at, created_by, created_at, updated_at`

// Create persists a new invoice.
func (r *InvoiceRepository) Create(ctx context.Context, v *invoice.Invoice) error {
	items, err := toJSONB(v.Items())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO invoices (id, tenant_id, project_id, number, client_ref, items, status, issued_at, due_at, paid_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		v.ID().String(),
		v.TenantID().String(),
		v.ProjectID().String(),
		v.Number(),
		nullString(v.ClientRef()),
		items,
		v.Status().String(),
		nullTime(v.IssuedAt()),
		nullTime(v.DueAt()),
		nullTime(v.PaidAt()),
		v.CreatedBy().String(),
		v.CreatedAt(),
		v.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: invoice number %s already used", shared.ErrConflict, v.Number())
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	return nil
}

// GetByID retrieves an invoice scoped to a tenant.
func (r *InvoiceRepository) GetByID(ctx context.Context, tenantID, id shared.ID) (*invoice.Invoice, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1 AND id = $2`

	v, err := scanInvoiceFrom(r.db.QueryRowContext(ctx, query, tenantID.String(), id.String()))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("invoice %s %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return v, nil
}

// Update persists mutations to an existing invoice.
func (r *InvoiceRepository) Update(ctx context.Context, v *invoice.Invoice) error {
	items, err := toJSONB(v.Items())
	if err != nil {
		return err
	}

	query := `
		UPDATE invoices
		SET number = $3, client_ref = $4, items = $5, status = $6, issued_at = $7, due_at = $8, paid_at = $9, updated_at = $10
		WHERE tenant_id = $1 AND id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		v.TenantID().String(),
		v.ID().String(),
		v.Number(),
		nullString(v.ClientRef()),
		items,
		v.Status().String(),
		nullTime(v.IssuedAt()),
		nullTime(v.DueAt()),
		nullTime(v.PaidAt()),
		v.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("invoice %s %w", v.ID(), shared.ErrNotFound)
	}

	return nil
}

// List returns a page of a tenant's invoices plus the total count.
func (r *InvoiceRepository) List(ctx context.Context, tenantID shared.ID, filter invoice.Filter, page pagination.Request) ([]*invoice.Invoice, int64, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, 0, err
	}

	where := `WHERE tenant_id = $1`
	args := []any{tenantID.String()}

	if !filter.ProjectID.IsZero() {
		args = append(args, filter.ProjectID.String())
		where += fmt.Sprintf(` AND project_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM invoices ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	args = append(args, page.Limit(), page.Offset())
	query := fmt.Sprintf(`
		SELECT `+invoiceColumns+`
		FROM invoices %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*invoice.Invoice
	for rows.Next() {
		v, err := scanInvoiceFrom(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, v)
	}

	return invoices, total, rows.Err()
}

// ListDueBefore returns sent invoices past their due date, across all
// tenants, for the overdue sweep.
func (r *InvoiceRepository) ListDueBefore(ctx context.Context, cutoff time.Time) ([]*invoice.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE status = 'sent' AND due_at IS NOT NULL AND due_at < $1
		ORDER BY due_at
	`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list due invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*invoice.Invoice
	for rows.Next() {
		v, err := scanInvoiceFrom(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, v)
	}

	return invoices, rows.Err()
}

func scanInvoiceFrom(s rowScanner) (*invoice.Invoice, error) {
	var (
		idStr        string
		tenantIDStr  string
		projectIDStr string
		number       string
		clientRef    sql.NullString
		itemsRaw     []byte
		status       string
		issuedAt     sql.NullTime
		dueAt        sql.NullTime
		paidAt       sql.NullTime
		createdBy    string
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := s.Scan(&idStr, &tenantIDStr, &projectIDStr, &number, &clientRef, &itemsRaw, &status, &issuedAt, &dueAt, &paidAt, &createdBy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice ID in database: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant ID in database: %w", err)
	}
	projectID, err := shared.IDFromString(projectIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid project ID in database: %w", err)
	}
	creator, err := shared.IDFromString(createdBy)
	if err != nil {
		return nil, fmt.Errorf("invalid creator ID in database: %w", err)
	}

	var items []invoice.LineItem
	if err := fromJSONB(itemsRaw, &items); err != nil {
		return nil, err
	}

	return invoice.Reconstitute(
		id,
		tenantID,
		projectID,
		number,
		nullStringValue(clientRef),
		items,
		invoice.Status(status),
		nullTimeValue(issuedAt),
		nullTimeValue(dueAt),
		nullTimeValue(paidAt),
		creator,
		createdAt,
		updatedAt,
	), nil
}
