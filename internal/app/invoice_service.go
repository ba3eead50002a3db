package app

import (
	"context"
	"fmt"
	"time"

	"github.com/buildledger/api/pkg/domain/invoice"
	"github.com/buildledger/api/pkg/domain/project"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/logger"
	"github.com/buildledger/api/pkg/pagination"
)

// InvoiceService manages client invoices.
type InvoiceService struct {
	invoices invoice.Repository
	projects project.Repository
	logger   *logger.Logger
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(invoices invoice.Repository, projects project.Repository, log *logger.Logger) *InvoiceService {
	return &InvoiceService{
		invoices: invoices,
		projects: projects,
		logger:   log.With("service", "invoice"),
	}
}

// InvoiceLineInput is one billed line in a create or update request.
type InvoiceLineInput struct {
	Description string `json:"description" validate:"required,max=500"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	UnitCents   int64  `json:"unit_cents" validate:"required,gt=0"`
}

// CreateInvoiceInput carries the fields for drafting an invoice.
type CreateInvoiceInput struct {
	ProjectID string             `json:"project_id" validate:"required,uuid"`
	Number    string             `json:"number" validate:"required,max=32"`
	ClientRef string             `json:"client_ref" validate:"omitempty,max=255"`
	Items     []InvoiceLineInput `json:"items" validate:"required,min=1,dive"`
}

// CreateInvoice drafts an invoice against a project.
func (s *InvoiceService) CreateInvoice(ctx context.Context, tenantID shared.ID, input CreateInvoiceInput, createdBy shared.ID) (*invoice.Invoice, error) {
	projectID, err := shared.IDFromString(input.ProjectID)
	if err != nil {
		return nil, shared.ValidationErrorf("invalid project_id")
	}

	if _, err := s.projects.GetByID(ctx, tenantID, projectID); err != nil {
		return nil, err
	}

	items := make([]invoice.LineItem, len(input.Items))
	for i, line := range input.Items {
		items[i] = invoice.LineItem{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitCents:   line.UnitCents,
		}
	}

	v, err := invoice.NewInvoice(tenantID, projectID, input.Number, input.ClientRef, items, createdBy)
	if err != nil {
		return nil, err
	}

	if err := s.invoices.Create(ctx, v); err != nil {
		return nil, err
	}

	s.logger.Info("invoice drafted",
		"tenant_id", tenantID.String(),
		"invoice_id", v.ID().String(),
		"number", v.Number(),
		"total_cents", v.TotalCents(),
	)
	return v, nil
}

// GetInvoice retrieves an invoice scoped to the workspace.
func (s *InvoiceService) GetInvoice(ctx context.Context, tenantID, id shared.ID) (*invoice.Invoice, error) {
	return s.invoices.GetByID(ctx, tenantID, id)
}

// ReplaceInvoiceItems rewrites a draft invoice's lines.
func (s *InvoiceService) ReplaceInvoiceItems(ctx context.Context, tenantID, id shared.ID, lines []InvoiceLineInput) (*invoice.Invoice, error) {
	v, err := s.invoices.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	items := make([]invoice.LineItem, len(lines))
	for i, line := range lines {
		items[i] = invoice.LineItem{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitCents:   line.UnitCents,
		}
	}

	if err := v.ReplaceItems(items); err != nil {
		return nil, err
	}

	if err := s.invoices.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// SendInvoice issues a draft invoice with the given due date.
func (s *InvoiceService) SendInvoice(ctx context.Context, tenantID, id shared.ID, dueAt time.Time) (*invoice.Invoice, error) {
	v, err := s.invoices.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if err := v.Send(dueAt); err != nil {
		return nil, err
	}

	if err := s.invoices.Update(ctx, v); err != nil {
		return nil, err
	}

	s.logger.Info("invoice sent",
		"tenant_id", tenantID.String(),
		"invoice_id", id.String(),
		"due_at", dueAt.Format("2006-01-02"),
	)
	return v, nil
}

// MarkInvoicePaid records payment of a sent or overdue invoice.
func (s *InvoiceService) MarkInvoicePaid(ctx context.Context, tenantID, id shared.ID) (*invoice.Invoice, error) {
	v, err := s.invoices.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if err := v.MarkPaid(); err != nil {
		return nil, err
	}

	if err := s.invoices.Update(ctx, v); err != nil {
		return nil, err
	}

	s.logger.Info("invoice paid", "tenant_id", tenantID.String(), "invoice_id", id.String())
	return v, nil
}

// VoidInvoice cancels an invoice that will never be collected.
func (s *InvoiceService) VoidInvoice(ctx context.Context, tenantID, id shared.ID) (*invoice.Invoice, error) {
	v, err := s.invoices.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if err := v.Void(); err != nil {
		return nil, err
	}

	if err := s.invoices.Update(ctx, v); err != nil {
		return nil, err
	}

	s.logger.Info("invoice voided", "tenant_id", tenantID.String(), "invoice_id", id.String())
	return v, nil
}

// ListInvoices returns a filtered page of the workspace's invoices.
func (s *InvoiceService) ListInvoices(ctx context.Context, tenantID shared.ID, filter invoice.Filter, page pagination.Request) (pagination.Result[*invoice.Invoice], error) {
	invoices, total, err := s.invoices.List(ctx, tenantID, filter, page)
	if err != nil {
		return pagination.Result[*invoice.Invoice]{}, err
	}
	return pagination.NewResult(invoices, total, page), nil
}

// MarkOverdueInvoices flips sent invoices whose due date passed to
// overdue. Run by the maintenance worker; it works across all tenants.
func (s *InvoiceService) MarkOverdueInvoices(ctx context.Context) (int64, error) {
	due, err := s.invoices.ListDueBefore(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to list due invoices: %w", err)
	}

	var marked int64
	for _, v := range due {
		if err := v.MarkOverdue(); err != nil {
			// A concurrent payment can land between the listing and
			// this write. Skip, don't fail the sweep.
			s.logger.Warn("skipping invoice during overdue sweep",
				"invoice_id", v.ID().String(),
				"error", err,
			)
			continue
		}
		if err := s.invoices.Update(ctx, v); err != nil {
			s.logger.Error("failed to mark invoice overdue",
				"invoice_id", v.ID().String(),
				"error", err,
			)
			continue
		}
		marked++
	}

	if marked > 0 {
		s.logger.Info("overdue sweep complete", "marked", marked)
	}
	return marked, nil
}
