// Package middleware provides HTTP middleware for the Hako server.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skystar-p/hako/internal/metrics"
)

// RateLimiter implements per-client token bucket rate limiting, applied to
// the prepare_upload and upload endpoints to bound storage growth.
type RateLimiter struct {
	requestsPerSecond float64
	burstSize         int
	enabled           bool

	buckets sync.Map // map[string]*bucket

	metrics *metrics.Metrics
	logger  zerolog.Logger

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// bucket represents a token bucket for a single client.
type bucket struct {
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	Enabled           bool
	CleanupInterval   time.Duration
}

// DefaultRateLimiterConfig returns sensible defaults.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 5,
		BurstSize:         20,
		Enabled:           true,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig, m *metrics.Metrics, logger zerolog.Logger) *RateLimiter {
	rl := &RateLimiter{
		requestsPerSecond: config.RequestsPerSecond,
		burstSize:         config.BurstSize,
		enabled:           config.Enabled,
		metrics:           m,
		logger:            logger.With().Str("component", "ratelimiter").Logger(),
		cleanupInterval:   config.CleanupInterval,
		stopCleanup:       make(chan struct{}),
	}

	if config.Enabled {
		go rl.cleanupLoop()
	}

	return rl
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.enabled {
			next.ServeHTTP(w, r)
			return
		}

		clientID := rl.getClientID(r)

		if !rl.allow(clientID) {
			rl.logger.Warn().
				Str("client_id", clientID).
				Str("path", r.URL.Path).
				Msg("rate limit exceeded")

			if rl.metrics != nil {
				rl.metrics.RecordRateLimited(normalizePath(r.URL.Path))
			}

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientID extracts the client identifier from the request.
func (rl *RateLimiter) getClientID(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	return r.RemoteAddr
}

// allow checks if a request is allowed under the rate limit.
func (rl *RateLimiter) allow(clientID string) bool {
	b := rl.getBucket(clientID)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * rl.requestsPerSecond
	if b.tokens > float64(rl.burstSize) {
		b.tokens = float64(rl.burstSize)
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}

	return false
}

// getBucket gets or creates a bucket for the client.
func (rl *RateLimiter) getBucket(clientID string) *bucket {
	if b, ok := rl.buckets.Load(clientID); ok {
		return b.(*bucket)
	}

	b := &bucket{
		tokens:     float64(rl.burstSize),
		lastRefill: time.Now(),
	}

	actual, _ := rl.buckets.LoadOrStore(clientID, b)
	return actual.(*bucket)
}

// cleanupLoop periodically removes stale buckets.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup removes buckets that haven't been accessed recently.
func (rl *RateLimiter) cleanup() {
	threshold := time.Now().Add(-rl.cleanupInterval)
	deleted := 0

	rl.buckets.Range(func(key, value interface{}) bool {
		b := value.(*bucket)
		b.mu.Lock()
		if b.lastRefill.Before(threshold) {
			rl.buckets.Delete(key)
			deleted++
		}
		b.mu.Unlock()
		return true
	})

	if deleted > 0 {
		rl.logger.Debug().Int("deleted", deleted).Msg("cleaned up stale rate limit buckets")
	}
}

// Stop stops the rate limiter's background cleanup.
func (rl *RateLimiter) Stop() {
	if rl.enabled {
		close(rl.stopCleanup)
	}
}
