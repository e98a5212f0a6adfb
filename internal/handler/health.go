package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HealthChecker serves liveness/readiness probes, caching the expensive
// readiness check (a store ping) for a short window so a thundering herd
// of probes doesn't hammer the database.
type HealthChecker struct {
	store  DatabaseChecker
	logger zerolog.Logger

	mu           sync.RWMutex
	cachedStatus *HealthStatus
	cacheExpiry  time.Time
	cacheTTL     time.Duration
}

// DatabaseChecker is the subset of store.Store a health check needs.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// NewHealthChecker constructs a HealthChecker backed by store.
func NewHealthChecker(store DatabaseChecker, logger zerolog.Logger) *HealthChecker {
	return &HealthChecker{
		store:    store,
		logger:   logger.With().Str("component", "health").Logger(),
		cacheTTL: 5 * time.Second,
	}
}

// HealthStatus is the JSON body returned by /healthz and /readyz.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HandleLiveness always returns 200 if the process is running; it never
// touches the store.
func (h *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, &HealthStatus{Status: statusHealthy, Timestamp: time.Now().UTC()})
}

// HandleReadiness reports whether the store is reachable, caching the
// result for cacheTTL.
func (h *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	if h.cachedStatus != nil && time.Now().Before(h.cacheExpiry) {
		status := h.cachedStatus
		h.mu.RUnlock()
		writeStatus(w, httpStatusFor(status), status)
		return
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := &HealthStatus{Status: statusHealthy, Timestamp: time.Now().UTC()}
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("readiness check failed")
		status.Status = statusUnhealthy
		status.Error = err.Error()
	}

	h.mu.Lock()
	h.cachedStatus = status
	h.cacheExpiry = time.Now().Add(h.cacheTTL)
	h.mu.Unlock()

	writeStatus(w, httpStatusFor(status), status)
}

func httpStatusFor(status *HealthStatus) int {
	if status.Status == statusHealthy {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

func writeStatus(w http.ResponseWriter, code int, status *HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
