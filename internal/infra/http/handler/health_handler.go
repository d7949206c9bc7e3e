package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const readyCheckTimeout = 5 * time.Second

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	checks map[string]Pinger
}

// HealthHandlerOption configures the health handler.
type HealthHandlerOption func(*HealthHandler)

// WithDatabase adds a database check. A nil pinger is ignored so the
// in-memory store can run without one.
func WithDatabase(db Pinger) HealthHandlerOption {
	return withCheck("database", db)
}

// WithRedis adds a Redis check.
func WithRedis(redis Pinger) HealthHandlerOption {
	return withCheck("redis", redis)
}

func withCheck(name string, p Pinger) HealthHandlerOption {
	return func(h *HealthHandler) {
		if p != nil {
			h.checks[name] = p
		}
	}
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(opts ...HealthHandlerOption) *HealthHandler {
	h := &HealthHandler{checks: make(map[string]Pinger)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult represents a single dependency check.
type CheckResult struct {
	Status   string `json:"status"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Health handles GET /health (liveness).
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeProbe(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// Ready handles GET /ready. Dependencies are checked in parallel and any
// failure turns the probe into a 503.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		checks     = make(map[string]CheckResult, len(h.checks))
		allHealthy = true
	)
	for name, p := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := checkDependency(ctx, p)
			mu.Lock()
			defer mu.Unlock()
			checks[name] = result
			if result.Status != "ok" {
				allHealthy = false
			}
		}()
	}
	wg.Wait()

	status, code := "ready", http.StatusOK
	if !allHealthy {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeProbe(w, code, ReadyResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

func checkDependency(ctx context.Context, p Pinger) CheckResult {
	start := time.Now()
	err := p.Ping(ctx)
	result := CheckResult{Status: "ok", Duration: time.Since(start).String()}
	if err != nil {
		result.Status = "error"
		result.Error = err.Error()
	}
	return result
}

func writeProbe(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
