package main

import (
	"context"
	"fmt"
	"time"

	"github.com/buildledger/api/internal/app"
	"github.com/buildledger/api/internal/config"
	"github.com/buildledger/api/internal/infra/jobs"
	"github.com/buildledger/api/internal/infra/redis"
	"github.com/buildledger/api/internal/infra/storage"
	"github.com/buildledger/api/pkg/email"
	"github.com/buildledger/api/pkg/identity"
	"github.com/buildledger/api/pkg/jwt"
	"github.com/buildledger/api/pkg/logger"
)

// Sensitive endpoints (sign-in, invitation acceptance) get a tighter
// Redis-backed limit on top of the global per-IP limiter.
const (
	sensitiveRateLimit  = 10
	sensitiveRateWindow = time.Minute
)

// tenantCacheTTL bounds staleness for bootstrap tenant lookups when an
// invalidation is missed. Tenant rows change rarely.
const tenantCacheTTL = 5 * time.Minute

// Services holds all application service instances.
type Services struct {
	Auth       *app.AuthService
	User       *app.UserService
	Tenant     *app.TenantService
	Resolver   *app.ResolverService
	Project    *app.ProjectService
	Cost       *app.CostService
	Invoice    *app.InvoiceService
	Attachment *app.AttachmentService
	Email      *app.EmailService

	// SessionStore backs both auth sessions and member revocation.
	SessionStore *redis.SessionStore
	// SensitiveLimiter throttles the sign-in and invitation
	// acceptance endpoints.
	SensitiveLimiter *redis.RateLimiter
}

// ServiceDeps contains dependencies needed to create services.
type ServiceDeps struct {
	Config      *config.Config
	Log         *logger.Logger
	Repos       *Repositories
	RedisClient *redis.Client
	Validator   *identity.Validator
	JobClient   *jobs.Client
}

// NewServices initializes all application services.
func NewServices(ctx context.Context, deps *ServiceDeps) (*Services, error) {
	cfg := deps.Config
	log := deps.Log
	repos := deps.Repos

	sessionStore, err := redis.NewSessionStore(deps.RedisClient, log)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	sensitiveLimiter, err := redis.NewRateLimiter(deps.RedisClient, "sensitive", sensitiveRateLimit, sensitiveRateWindow, log)
	if err != nil {
		return nil, fmt.Errorf("sensitive rate limiter: %w", err)
	}

	tokens := jwt.NewGenerator(jwt.TokenConfig{
		Secret:               cfg.Auth.JWTSecret,
		Issuer:               cfg.Auth.JWTIssuer,
		AccessTokenDuration:  cfg.Auth.AccessTokenDuration,
		RefreshTokenDuration: cfg.Auth.RefreshTokenDuration,
	})

	adminClient, err := identity.NewAdminClient(identity.AdminClientConfig{
		BaseURL:      cfg.Identity.AdminURL(),
		TokenURL:     cfg.Identity.TokenURL(),
		ClientID:     cfg.Identity.AdminClientID,
		ClientSecret: cfg.Identity.AdminClientSecret,
		HTTPTimeout:  cfg.Identity.HTTPTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("identity admin client: %w", err)
	}

	store, err := storage.NewS3Store(ctx, &cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}

	tenantCache, err := redis.NewCache[app.CachedTenant](deps.RedisClient, "tenant", tenantCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("tenant cache: %w", err)
	}

	userService := app.NewUserService(repos.User, log,
		app.WithSessionRevoker(sessionStore),
	)

	tenantService := app.NewTenantService(repos.Tenant, repos.User, cfg.Invitation, log,
		app.WithIdentityProvider(adminClient),
		app.WithEmailEnqueuer(jobs.NewEnqueuer(deps.JobClient)),
		app.WithTenantCacheInvalidation(tenantCache),
	)

	return &Services{
		Auth:             app.NewAuthService(deps.Validator, tokens, sessionStore, userService, cfg.Auth.RefreshTokenDuration, log),
		User:             userService,
		Tenant:           tenantService,
		Resolver:         app.NewResolverService(repos.User, repos.Tenant, log, app.WithTenantCache(tenantCache)),
		Project:          app.NewProjectService(repos.Project, repos.Cost, repos.ChangeOrder, log),
		Cost:             app.NewCostService(repos.Cost, repos.ChangeOrder, repos.Project, log),
		Invoice:          app.NewInvoiceService(repos.Invoice, repos.Project, log),
		Attachment:       app.NewAttachmentService(repos.Attachment, store, repos.Project, cfg.Storage.PresignExpiry, log),
		Email:            newEmailService(cfg, log),
		SessionStore:     sessionStore,
		SensitiveLimiter: sensitiveLimiter,
	}, nil
}

// newEmailService falls back to a no-op sender when SMTP is not
// configured, so development environments still accept invitations.
func newEmailService(cfg *config.Config, log *logger.Logger) *app.EmailService {
	var sender email.Sender
	if cfg.SMTP.IsConfigured() {
		sender = email.NewSMTPSender(email.Config{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			User:       cfg.SMTP.User,
			Password:   cfg.SMTP.Password,
			From:       cfg.SMTP.From,
			FromName:   cfg.SMTP.FromName,
			TLS:        cfg.SMTP.TLS,
			SkipVerify: cfg.SMTP.SkipVerify,
			Timeout:    cfg.SMTP.Timeout,
		})
		log.Info("email sender initialized", "host", cfg.SMTP.Host, "from", cfg.SMTP.From)
	} else {
		sender = email.NewNoOpSender()
		log.Warn("SMTP not configured, emails will be logged and dropped")
	}
	return app.NewEmailService(sender, cfg.SMTP, cfg.App.Name, log)
}
