// Package middleware provides HTTP middleware for the Hako server.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skystar-p/hako/internal/metrics"
)

// Context keys for tracing.
type contextKey string

const (
	// RequestIDKey is the context key for the request ID.
	RequestIDKey contextKey = "request_id"
)

// HeaderRequestID is the header carrying the request's correlation ID, both
// accepted from upstream proxies and echoed back to the caller.
const HeaderRequestID = "X-Request-ID"

// Tracing assigns a request ID to every request and logs its outcome.
type Tracing struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewTracing creates a new Tracing middleware.
func NewTracing(m *metrics.Metrics, logger zerolog.Logger) *Tracing {
	return &Tracing{
		logger:  logger.With().Str("component", "tracing").Logger(),
		metrics: m,
	}
}

// Middleware returns the tracing middleware.
func (t *Tracing) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set(HeaderRequestID, requestID)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		t.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Msg("request started")

		next.ServeHTTP(wrapped, r.WithContext(ctx))

		duration := time.Since(start)

		if t.metrics != nil {
			t.metrics.RecordHTTPRequest(r.Method, normalizePath(r.URL.Path), http.StatusText(wrapped.statusCode), duration.Seconds())
		}

		logger := t.logger.Info()
		if wrapped.statusCode >= 400 {
			logger = t.logger.Warn()
		}
		if wrapped.statusCode >= 500 {
			logger = t.logger.Error()
		}

		logger.
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration", duration).
			Int("bytes", wrapped.bytesWritten).
			Msg("request completed")
	})
}

// responseWriter wraps http.ResponseWriter to capture response details.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// Flush implements http.Flusher so streamed downloads keep working under
// the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// normalizePath collapses the fixed set of Hako routes and leaves the
// SPA catch-all as a single bucket, keeping metric label cardinality flat
// regardless of file id values embedded in query strings.
func normalizePath(path string) string {
	switch path {
	case "/api/ping", "/api/prepare_upload", "/api/upload", "/api/metadata", "/api/download":
		return path
	case "/metrics", "/healthz":
		return path
	default:
		return "/"
	}
}

// GetRequestID extracts the request ID from context.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(RequestIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// LoggerWithTrace returns a logger carrying the request ID field.
func LoggerWithTrace(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	return logger.With().Str("request_id", GetRequestID(ctx)).Logger()
}

// MetricsMiddleware tracks in-flight request count.
type MetricsMiddleware struct {
	metrics *metrics.Metrics
}

// NewMetricsMiddleware creates a new metrics middleware.
func NewMetricsMiddleware(m *metrics.Metrics) *MetricsMiddleware {
	return &MetricsMiddleware{metrics: m}
}

// Middleware returns the metrics middleware.
func (m *MetricsMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.metrics.HTTPRequestsInFlight.Inc()
		defer m.metrics.HTTPRequestsInFlight.Dec()

		next.ServeHTTP(w, r)
	})
}
