package main

import (
	"github.com/buildledger/api/internal/infra/postgres"
)

// Repositories holds all repository instances.
type Repositories struct {
	// Workspace
	Tenant *postgres.TenantRepository
	User   *postgres.UserRepository

	// Projects & Costs
	Project     *postgres.ProjectRepository
	Cost        *postgres.CostRepository
	ChangeOrder *postgres.ChangeOrderRepository

	// Billing & Files
	Invoice    *postgres.InvoiceRepository
	Attachment *postgres.AttachmentRepository
}

// NewRepositories initializes all repositories with the database connection.
func NewRepositories(db *postgres.DB) *Repositories {
	return &Repositories{
		Tenant:      postgres.NewTenantRepository(db),
		User:        postgres.NewUserRepository(db),
		Project:     postgres.NewProjectRepository(db),
		Cost:        postgres.NewCostRepository(db),
		ChangeOrder: postgres.NewChangeOrderRepository(db),
		Invoice:     postgres.NewInvoiceRepository(db),
		Attachment:  postgres.NewAttachmentRepository(db),
	}
}
