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

// ProjectService manages projects and their budget view.
type ProjectService struct {
	projects     project.Repository
	costs        cost.Repository
	changeOrders cost.ChangeOrderRepository
	logger       *logger.Logger
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projects project.Repository, costs cost.Repository, changeOrders cost.ChangeOrderRepository, log *logger.Logger) *ProjectService {
	return &ProjectService{
		projects:     projects,
		costs:        costs,
		changeOrders: changeOrders,
		logger:       log.With("service", "project"),
	}
}

// CreateProjectInput carries the fields for project creation.
type CreateProjectInput struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Code        string `json:"code" validate:"required,min=2,max=32"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	BudgetCents int64  `json:"budget_cents" validate:"min=0"`
}

// CreateProject creates a project in the workspace.
func (s *ProjectService) CreateProject(ctx context.Context, tenantID shared.ID, input CreateProjectInput, createdBy shared.ID) (*project.Project, error) {
	p, err := project.NewProject(tenantID, input.Name, input.Code, input.Description, input.BudgetCents, createdBy)
	if err != nil {
		return nil, err
	}

	if err := s.projects.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("project created",
		"tenant_id", tenantID.String(),
		"project_id", p.ID().String(),
		"code", p.Code(),
	)
	return p, nil
}

// GetProject retrieves a project scoped to the workspace.
func (s *ProjectService) GetProject(ctx context.Context, tenantID, id shared.ID) (*project.Project, error) {
	return s.projects.GetByID(ctx, tenantID, id)
}

// UpdateProjectInput carries mutable project fields.
type UpdateProjectInput struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Code        string `json:"code" validate:"required,min=2,max=32"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	BudgetCents int64  `json:"budget_cents" validate:"min=0"`
}

// UpdateProject updates a project's details.
func (s *ProjectService) UpdateProject(ctx context.Context, tenantID, id shared.ID, input UpdateProjectInput) (*project.Project, error) {
	p, err := s.projects.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if err := p.Update(input.Name, input.Code, input.Description, input.BudgetCents); err != nil {
		return nil, err
	}

	if err := s.projects.Update(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("project updated", "tenant_id", tenantID.String(), "project_id", id.String())
	return p, nil
}

// ChangeProjectStatus moves a project through its lifecycle.
func (s *ProjectService) ChangeProjectStatus(ctx context.Context, tenantID, id shared.ID, status string) (*project.Project, error) {
	p, err := s.projects.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if err := p.ChangeStatus(project.Status(status)); err != nil {
		return nil, err
	}

	if err := s.projects.Update(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("project status changed",
		"tenant_id", tenantID.String(),
		"project_id", id.String(),
		"status", status,
	)
	return p, nil
}

// SetProjectDates sets the planned start and end dates.
func (s *ProjectService) SetProjectDates(ctx context.Context, tenantID, id shared.ID, start, end *time.Time) (*project.Project, error) {
	p, err := s.projects.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if err := p.SetDates(start, end); err != nil {
		return nil, err
	}

	if err := s.projects.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProject removes a project.
func (s *ProjectService) DeleteProject(ctx context.Context, tenantID, id shared.ID) error {
	if err := s.projects.Delete(ctx, tenantID, id); err != nil {
		return err
	}

	s.logger.Info("project deleted", "tenant_id", tenantID.String(), "project_id", id.String())
	return nil
}

// ListProjects returns a filtered page of the workspace's projects.
func (s *ProjectService) ListProjects(ctx context.Context, tenantID shared.ID, filter project.Filter, page pagination.Request) (pagination.Result[*project.Project], error) {
	projects, total, err := s.projects.List(ctx, tenantID, filter, page)
	if err != nil {
		return pagination.Result[*project.Project]{}, err
	}
	return pagination.NewResult(projects, total, page), nil
}

// ProjectBudget is the rolled-up money view of a project: the original
// budget, approved change-order deltas, and spend by category.
type ProjectBudget struct {
	BudgetCents        int64                `json:"budget_cents"`
	ApprovedDeltaCents int64                `json:"approved_delta_cents"`
	RevisedBudgetCents int64                `json:"revised_budget_cents"`
	SpentCents         int64                `json:"spent_cents"`
	RemainingCents     int64                `json:"remaining_cents"`
	ByCategory         []cost.CategoryTotal `json:"by_category"`
}

// GetProjectBudget computes the budget roll-up for a project.
func (s *ProjectService) GetProjectBudget(ctx context.Context, tenantID, id shared.ID) (*ProjectBudget, error) {
	p, err := s.projects.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	totals, err := s.costs.TotalsByCategory(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to total costs: %w", err)
	}

	delta, err := s.changeOrders.ApprovedDelta(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to sum change orders: %w", err)
	}

	var spent int64
	for _, t := range totals {
		spent += t.Cents
	}

	revised := p.BudgetCents() + delta
	return &ProjectBudget{
		BudgetCents:        p.BudgetCents(),
		ApprovedDeltaCents: delta,
		RevisedBudgetCents: revised,
		SpentCents:         spent,
		RemainingCents:     revised - spent,
		ByCategory:         totals,
	}, nil
}
