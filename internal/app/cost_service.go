package app

import (
	"context"
	"fmt"
	"time"

	"github.com/buildledger/api/pkg/domain/cost"
	"github.com/buildledger/api/pkg/domain/project"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/logger"
	"github.com/buildledger/api/pkg/pagination"
)

// CostService manages cost entries and change orders.
type CostService struct {
	costs        cost.Repository
	changeOrders cost.ChangeOrderRepository
	projects     project.Repository
	logger       *logger.Logger
}

// NewCostService creates a new CostService.
func NewCostService(costs cost.Repository, changeOrders cost.ChangeOrderRepository, projects project.Repository, log *logger.Logger) *CostService {
	return &CostService{
		costs:        costs,
		changeOrders: changeOrders,
		projects:     projects,
		logger:       log.With("service", "cost"),
	}
}

// CreateCostEntryInput carries the fields for recording a cost.
type CreateCostEntryInput struct {
	ProjectID   string `json:"project_id" validate:"required,uuid"`
	Category    string `json:"category" validate:"required,cost_category"`
	Description string `json:"description" validate:"required,max=2000"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Vendor      string `json:"vendor" validate:"omitempty,max=255"`
	IncurredAt  string `json:"incurred_at" validate:"required"`
}

// CreateCostEntry records a cost against an open project.
func (s *CostService) CreateCostEntry(ctx context.Context, tenantID shared.ID, input CreateCostEntryInput, enteredBy shared.ID) (*cost.Entry, error) {
	projectID, err := shared.IDFromString(input.ProjectID)
	if err != nil {
		return nil, shared.ValidationErrorf("invalid project_id")
	}

	incurredAt, err := time.Parse("2006-01-02", input.IncurredAt)
	if err != nil {
		return nil, shared.ValidationErrorf("incurred_at must be YYYY-MM-DD")
	}

	p, err := s.projects.GetByID(ctx, tenantID, projectID)
	if err != nil {
		return nil, err
	}
	if !p.IsOpenForCosts() {
		return nil, shared.ValidationErrorf("project %s is not open for costs", p.Code())
	}

	entry, err := cost.NewEntry(tenantID, projectID, cost.Category(input.Category), input.Description, input.AmountCents, input.Vendor, incurredAt, enteredBy)
	if err != nil {
		return nil, err
	}

	if err := s.costs.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("cost entry recorded",
		"tenant_id", tenantID.String(),
		"project_id", projectID.String(),
		"category", input.Category,
		"amount_cents", input.AmountCents,
	)
	return entry, nil
}

// GetCostEntry retrieves a cost entry scoped to the workspace.
func (s *CostService) GetCostEntry(ctx context.Context, tenantID, id shared.ID) (*cost.Entry, error) {
	return s.costs.GetByID(ctx, tenantID, id)
}

// UpdateCostEntryInput carries mutable cost entry fields.
type UpdateCostEntryInput struct {
	Category    string `json:"category" validate:"required,cost_category"`
	Description string `json:"description" validate:"required,max=2000"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Vendor      string `json:"vendor" validate:"omitempty,max=255"`
	IncurredAt  string `json:"incurred_at" validate:"required"`
}

// UpdateCostEntry rewrites a cost entry.
func (s *CostService) UpdateCostEntry(ctx context.Context, tenantID, id shared.ID, input UpdateCostEntryInput) (*cost.Entry, error) {
	incurredAt, err := time.Parse("2006-01-02", input.IncurredAt)
	if err != nil {
		return nil, shared.ValidationErrorf("incurred_at must be YYYY-MM-DD")
	}

	entry, err := s.costs.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if err := entry.Update(cost.Category(input.Category), input.Description, input.AmountCents, input.Vendor, incurredAt); err != nil {
		return nil, err
	}

	if err := s.costs.Update(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("cost entry updated", "tenant_id", tenantID.String(), "entry_id", id.String())
	return entry, nil
}

// DeleteCostEntry removes a cost entry.
func (s *CostService) DeleteCostEntry(ctx context.Context, tenantID, id shared.ID) error {
	if err := s.costs.Delete(ctx, tenantID, id); err != nil {
		return err
	}

	s.logger.Info("cost entry deleted", "tenant_id", tenantID.String(), "entry_id", id.String())
	return nil
}

// ListCostEntries returns a filtered page of cost entries.
func (s *CostService) ListCostEntries(ctx context.Context, tenantID shared.ID, filter cost.Filter, page pagination.Request) (pagination.Result[*cost.Entry], error) {
	entries, total, err := s.costs.List(ctx, tenantID, filter, page)
	if err != nil {
		return pagination.Result[*cost.Entry]{}, err
	}
	return pagination.NewResult(entries, total, page), nil
}

// CreateChangeOrderInput carries the fields for raising a change order.
type CreateChangeOrderInput struct {
	ProjectID   string `json:"project_id" validate:"required,uuid"`
	Number      string `json:"number" validate:"required,max=32"`
	Description string `json:"description" validate:"required,max=2000"`
	DeltaCents  int64  `json:"delta_cents" validate:"required"`
}

// CreateChangeOrder raises a change order against a project.
func (s *CostService) CreateChangeOrder(ctx context.Context, tenantID shared.ID, input CreateChangeOrderInput, requestedBy shared.ID) (*cost.ChangeOrder, error) {
	projectID, err := shared.IDFromString(input.ProjectID)
	if err != nil {
		return nil, shared.ValidationErrorf("invalid project_id")
	}

	if _, err := s.projects.GetByID(ctx, tenantID, projectID); err != nil {
		return nil, err
	}

	co, err := cost.NewChangeOrder(tenantID, projectID, input.Number, input.Description, input.DeltaCents, requestedBy)
	if err != nil {
		return nil, err
	}

	if err := s.changeOrders.Create(ctx, co); err != nil {
		return nil, err
	}

	s.logger.Info("change order created",
		"tenant_id", tenantID.String(),
		"project_id", projectID.String(),
		"number", input.Number,
		"delta_cents", input.DeltaCents,
	)
	return co, nil
}

// GetChangeOrder retrieves a change order scoped to the workspace.
func (s *CostService) GetChangeOrder(ctx context.Context, tenantID, id shared.ID) (*cost.ChangeOrder, error) {
	return s.changeOrders.GetByID(ctx, tenantID, id)
}

// SubmitChangeOrder moves a draft change order into review.
func (s *CostService) SubmitChangeOrder(ctx context.Context, tenantID, id shared.ID) (*cost.ChangeOrder, error) {
	return s.transitionChangeOrder(ctx, tenantID, id, func(co *cost.ChangeOrder) error {
		return co.Submit()
	})
}

// ApproveChangeOrder approves a submitted change order, folding its
// delta into the project's revised budget.
func (s *CostService) ApproveChangeOrder(ctx context.Context, tenantID, id, decidedBy shared.ID) (*cost.ChangeOrder, error) {
	return s.transitionChangeOrder(ctx, tenantID, id, func(co *cost.ChangeOrder) error {
		return co.Approve(decidedBy)
	})
}

// RejectChangeOrder rejects a submitted change order.
func (s *CostService) RejectChangeOrder(ctx context.Context, tenantID, id, decidedBy shared.ID) (*cost.ChangeOrder, error) {
	return s.transitionChangeOrder(ctx, tenantID, id, func(co *cost.ChangeOrder) error {
		return co.Reject(decidedBy)
	})
}

// ListChangeOrders returns a project's change orders.
func (s *CostService) ListChangeOrders(ctx context.Context, tenantID, projectID shared.ID) ([]*cost.ChangeOrder, error) {
	return s.changeOrders.ListByProject(ctx, tenantID, projectID)
}

func (s *CostService) transitionChangeOrder(ctx context.Context, tenantID, id shared.ID, transition func(*cost.ChangeOrder) error) (*cost.ChangeOrder, error) {
	co, err := s.changeOrders.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if err := transition(co); err != nil {
		return nil, err
	}

	if err := s.changeOrders.Update(ctx, co); err != nil {
		return nil, fmt.Errorf("failed to update change order: %w", err)
	}

	s.logger.Info("change order transitioned",
		"tenant_id", tenantID.String(),
		"change_order_id", id.String(),
		"status", co.Status().String(),
	)
	return co, nil
}
