package handler

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Pinger is implemented by dependencies that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	db    Pinger
	redis Pinger
}

// HealthHandlerOption configures the health handler.
type HealthHandlerOption func(*HealthHandler)

// WithDatabase adds the database readiness check.
func WithDatabase(db Pinger) HealthHandlerOption {
	return func(h *HealthHandler) { h.db = db }
}

// WithRedis adds the Redis readiness check.
func WithRedis(redis Pinger) HealthHandlerOption {
	return func(h *HealthHandler) { h.redis = redis }
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(opts ...HealthHandlerOption) *HealthHandler {
	h := &HealthHandler{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse is the liveness probe body.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Health handles GET /health. Liveness only: no dependency checks, so
// a degraded backing store does not get the process restarted.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// ReadyResponse is the readiness probe body.
type ReadyResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is a single dependency check.
type CheckResult struct {
	Status   string `json:"status"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Ready handles GET /ready. Dependencies are pinged in parallel and a
// single failure turns the response into 503.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckResult)
	allHealthy := true

	var wg sync.WaitGroup
	var mu sync.Mutex

	check := func(name string, p Pinger) {
		defer wg.Done()
		result := pingDependency(ctx, p)
		mu.Lock()
		checks[name] = result
		if result.Status != "ok" {
			allHealthy = false
		}
		mu.Unlock()
	}

	if h.db != nil {
		wg.Add(1)
		go check("database", h.db)
	}
	if h.redis != nil {
		wg.Add(1)
		go check("redis", h.redis)
	}
	wg.Wait()

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	respondJSON(w, statusCode, ReadyResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

func pingDependency(ctx context.Context, p Pinger) CheckResult {
	start := time.Now()
	err := p.Ping(ctx)
	duration := time.Since(start).Round(time.Microsecond)

	if err != nil {
		return CheckResult{
			Status:   "error",
			Duration: duration.String(),
			Error:    err.Error(),
		}
	}
	return CheckResult{
		Status:   "ok",
		Duration: duration.String(),
	}
}
