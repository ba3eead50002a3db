package main

import (
	"github.com/buildledger/api/internal/infra/http/handler"
	"github.com/buildledger/api/internal/infra/http/routes"
	"github.com/buildledger/api/internal/infra/postgres"
	"github.com/buildledger/api/internal/infra/redis"
	"github.com/buildledger/api/pkg/logger"
	"github.com/buildledger/api/pkg/validator"
)

// HandlerDeps contains dependencies needed to create handlers.
type HandlerDeps struct {
	Log         *logger.Logger
	Validator   *validator.Validator
	DB          *postgres.DB
	RedisClient *redis.Client
	Services    *Services
}

// NewHandlers creates all HTTP handlers.
func NewHandlers(deps *HandlerDeps) routes.Handlers {
	log := deps.Log
	v := deps.Validator
	svc := deps.Services

	return routes.Handlers{
		Health: handler.NewHealthHandler(
			handler.WithDatabase(deps.DB),
			handler.WithRedis(deps.RedisClient),
		),
		Auth:       handler.NewAuthHandler(svc.Auth, svc.User, v, log),
		Bootstrap:  handler.NewBootstrapHandler(svc.Resolver, svc.Auth, log),
		Tenant:     handler.NewTenantHandler(svc.Tenant, v, log),
		Member:     handler.NewMemberHandler(svc.User, v, log),
		Project:    handler.NewProjectHandler(svc.Project, v, log),
		Cost:       handler.NewCostHandler(svc.Cost, v, log),
		Invoice:    handler.NewInvoiceHandler(svc.Invoice, v, log),
		Attachment: handler.NewAttachmentHandler(svc.Attachment, log),
	}
}
