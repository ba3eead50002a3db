package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/buildledger/api/internal/config"
	"github.com/buildledger/api/internal/infra/http/middleware"
	"github.com/buildledger/api/pkg/logger"
)

// Server is the HTTP server with the global middleware stack applied.
type Server struct {
	httpServer   *http.Server
	router       Router
	config       *config.Config
	logger       *logger.Logger
	cleanupFuncs []func()
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithRouter sets a custom router implementation.
func WithRouter(r Router) ServerOption {
	return func(s *Server) {
		s.router = r
	}
}

// NewServer creates the HTTP server. Middleware order matters: recovery
// first so nothing below it can crash the process, request IDs before
// anything that logs, decompression before the body limit so the limit
// applies to real bytes.
func NewServer(cfg *config.Config, log *logger.Logger, opts ...ServerOption) *Server {
	s := &Server{
		config: cfg,
		logger: log,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.router == nil {
		s.router = NewChiRouter()
	}

	rateLimitMw, rateLimitStop := middleware.RateLimitWithStop(&cfg.RateLimit, log)
	s.cleanupFuncs = append(s.cleanupFuncs, rateLimitStop)

	loggerCfg := middleware.DefaultLoggerConfig()
	loggerCfg.SlowRequestThreshold = time.Duration(cfg.Log.SlowRequestSeconds) * time.Second
	if !cfg.Log.SkipHealthLogs {
		loggerCfg.SkipPaths = nil
	}

	s.router.Use(
		middleware.Recovery(log, cfg.IsProduction()),
		middleware.RequestID(),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{
			HSTSEnabled: cfg.IsProduction(),
		}),
		middleware.CORS(&cfg.CORS),
		middleware.Decompress(nil),
		middleware.BodyLimit(cfg.Server.MaxBodySize),
		rateLimitMw,
		middleware.Timeout(cfg.Server.RequestTimeout),
		middleware.Metrics(),
		middleware.Logger(log, loggerCfg),
	)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	return s
}

// Router returns the router for registering handlers.
func (s *Server) Router() Router {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.config.Server.Addr())

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	for _, cleanup := range s.cleanupFuncs {
		cleanup()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
