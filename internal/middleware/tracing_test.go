package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skystar-p/hako/internal/metrics"
)

var (
	testMetricsOnce sync.Once
	testMetrics     *metrics.Metrics
)

// newTestMetrics returns a process-wide Metrics instance. promauto registers
// collectors against the default registry, so every test in this package
// must share one instance rather than calling metrics.New() repeatedly.
func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	testMetricsOnce.Do(func() {
		testMetrics = metrics.New()
	})
	return testMetrics
}

func TestTracing_GeneratesRequestIDWhenAbsent(t *testing.T) {
	tr := NewTracing(nil, zerolog.Nop())

	var seen string
	handler := tr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
}

func TestTracing_PreservesIncomingRequestID(t *testing.T) {
	tr := NewTracing(nil, zerolog.Nop())

	var seen string
	handler := tr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set(HeaderRequestID, "fixed-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "fixed-id", seen)
}

func TestTracing_RecordsStatusCode(t *testing.T) {
	tr := NewTracing(nil, zerolog.Nop())

	handler := tr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/metadata", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNormalizePath_UnknownPathCollapsesToRoot(t *testing.T) {
	assert.Equal(t, "/", normalizePath("/some/random/path"))
	assert.Equal(t, "/api/download", normalizePath("/api/download"))
}

func TestMetricsMiddleware_TracksInFlight(t *testing.T) {
	m := newTestMetrics(t)
	mm := NewMetricsMiddleware(m)

	var during float64
	handler := mm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = inFlight(t, m)
		w.WriteHeader(http.StatusOK)
	}))

	before := inFlight(t, m)
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, before+1, during)
	assert.Equal(t, before, inFlight(t, m))
}

func inFlight(t *testing.T, m *metrics.Metrics) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, m.HTTPRequestsInFlight.Write(&pb))
	return pb.GetGauge().GetValue()
}
