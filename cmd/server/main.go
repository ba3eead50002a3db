package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/buildledger/api/internal/config"
	"github.com/buildledger/api/internal/infra/http"
	"github.com/buildledger/api/internal/infra/http/routes"
	"github.com/buildledger/api/internal/infra/jobs"
	"github.com/buildledger/api/internal/infra/postgres"
	"github.com/buildledger/api/internal/infra/redis"
	"github.com/buildledger/api/pkg/identity"
	"github.com/buildledger/api/pkg/logger"
	"github.com/buildledger/api/pkg/migrations"
	"github.com/buildledger/api/pkg/validator"
)

// Command line flags.
var (
	migrateOnly = flag.Bool("migrate", false, "Run pending database migrations and exit")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	if code := runMigrations(ctx, db, log); code != 0 || *migrateOnly {
		return code
	}

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer closeWithLog(redisClient, "redis", log)
	log.Info("redis connected")

	// ==========================================================================
	// Identity Provider
	// ==========================================================================
	identityValidator, err := initIdentityValidator(cfg, log)
	if err != nil {
		return 1
	}
	defer closeWithLog(identityValidator, "identity validator", log)

	// ==========================================================================
	// Repositories & Job Queue
	// ==========================================================================
	repos := NewRepositories(db)
	log.Info("repositories initialized")

	jobClient, err := jobs.NewClient(jobs.ClientConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	}, log)
	if err != nil {
		log.Error("failed to initialize job client", "error", err)
		return 1
	}
	defer closeWithLog(jobClient, "job client", log)

	// ==========================================================================
	// Services
	// ==========================================================================
	services, err := NewServices(ctx, &ServiceDeps{
		Config:      cfg,
		Log:         log,
		Repos:       repos,
		RedisClient: redisClient,
		Validator:   identityValidator,
		JobClient:   jobClient,
	})
	if err != nil {
		log.Error("failed to initialize services", "error", err)
		return 1
	}
	log.Info("services initialized")

	// ==========================================================================
	// HTTP Server
	// ==========================================================================
	handlers := NewHandlers(&HandlerDeps{
		Log:         log,
		Validator:   validator.New(),
		DB:          db,
		RedisClient: redisClient,
		Services:    services,
	})

	server := http.NewServer(cfg, log)
	routes.Register(server.Router(), handlers, routes.Deps{
		Config:      cfg,
		Logger:      log,
		AuthService: services.Auth,
		UserService: services.User,
		Sensitive:   services.SensitiveLimiter,
	})

	// ==========================================================================
	// Workers
	// ==========================================================================
	workers, err := NewWorkers(cfg, jobClient, services, log)
	if err != nil {
		log.Error("failed to initialize workers", "error", err)
		return 1
	}
	if err := workers.Start(log); err != nil {
		log.Error("failed to start workers", "error", err)
		return 1
	}

	// ==========================================================================
	// Start Server
	// ==========================================================================
	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
		}
	}()
	log.Info("application started", "http_addr", cfg.Server.Addr())

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	workers.Stop(log)

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

// =============================================================================
// Helper Functions
// =============================================================================

func initLogger(cfg *config.Config) *logger.Logger {
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	log.SetDefault()
	return log
}

func runMigrations(ctx context.Context, db *postgres.DB, log *logger.Logger) int {
	runner := migrations.NewRunner(db.DB)
	if err := runner.EnsureMigrationTable(ctx); err != nil {
		log.Error("failed to prepare migration table", "error", err)
		return 1
	}
	applied, err := runner.Up(ctx)
	if err != nil {
		log.Error("migration failed", "error", err)
		return 1
	}
	if applied > 0 {
		log.Info("migrations applied", "count", applied)
	}
	return 0
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}

// =============================================================================
// Identity Validator
// =============================================================================

func initIdentityValidator(cfg *config.Config, log *logger.Logger) (*identity.Validator, error) {
	v, err := identity.NewValidator(context.Background(), identity.ValidatorConfig{
		JWKSURL:             cfg.Identity.JWKSURL(),
		IssuerURL:           cfg.Identity.IssuerURL(),
		Audience:            cfg.Identity.ClientID,
		RefreshInterval:     cfg.Identity.JWKSRefreshInterval,
		HTTPTimeout:         cfg.Identity.HTTPTimeout,
		RequireInitialFetch: false,
		OnRefreshError: func(err error, consecutiveFailures int) {
			log.Error("JWKS refresh failed",
				"error", err,
				"consecutive_failures", consecutiveFailures,
				"jwks_url", cfg.Identity.JWKSURL(),
			)
		},
	})
	if err != nil {
		log.Error("failed to initialize identity validator", "error", err)
		return nil, err
	}

	if v.HasKeys() {
		log.Info("identity validator initialized", "issuer", cfg.Identity.IssuerURL())
	} else {
		log.Warn("identity validator started without keys, will retry in background",
			"jwks_url", cfg.Identity.JWKSURL(),
		)
	}
	return v, nil
}
