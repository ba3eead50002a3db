package cmd

import (
	"fmt"
	"os"

	"github.com/buildledger/api/internal/app"
	"github.com/buildledger/api/internal/config"
	"github.com/buildledger/api/internal/infra/postgres"
	"github.com/buildledger/api/internal/infra/redis"
	"github.com/buildledger/api/pkg/logger"
)

// adminEnv bundles the connections and services a command needs. The
// CLI talks to the database directly with the same configuration the
// API server reads, so it works even when the server is down.
type adminEnv struct {
	cfg *config.Config
	log *logger.Logger
	db  *postgres.DB

	// redisClient is nil when redis is unreachable; commands that
	// only read the database still work.
	redisClient *redis.Client

	tenants *app.TenantService
	users   *app.UserService
}

func openEnv() (*adminEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	level := "error"
	if flagVerbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Format: "text"})

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	env := &adminEnv{
		cfg: cfg,
		log: log,
		db:  db,
	}

	tenantRepo := postgres.NewTenantRepository(db)
	userRepo := postgres.NewUserRepository(db)

	// Redis is optional here. Without it, deactivation still flips the
	// record but cannot revoke live sessions, so warn the operator.
	userOpts := []app.UserServiceOption{}
	if redisClient, err := redis.New(&cfg.Redis, log); err == nil {
		env.redisClient = redisClient
		sessionStore, err := redis.NewSessionStore(redisClient, log)
		if err == nil {
			userOpts = append(userOpts, app.WithSessionRevoker(sessionStore))
		}
	} else {
		fmt.Fprintf(os.Stderr, "Warning: redis unreachable, live sessions will not be revoked: %v\n", err)
	}

	env.users = app.NewUserService(userRepo, log, userOpts...)
	env.tenants = app.NewTenantService(tenantRepo, userRepo, cfg.Invitation, log)

	return env, nil
}

func (e *adminEnv) Close() {
	if e.redisClient != nil {
		_ = e.redisClient.Close()
	}
	_ = e.db.Close()
}
