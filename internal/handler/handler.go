// Package handler provides the HTTP handlers for the Hako API.
package handler

import (
	"io/fs"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/skystar-p/hako/internal/cache/metacache"
	"github.com/skystar-p/hako/internal/metrics"
	"github.com/skystar-p/hako/internal/store"
)

// Handler holds the dependencies shared by every Hako HTTP handler.
type Handler struct {
	store   store.Store
	cache   *metacache.Cache
	metrics *metrics.Metrics
	logger  zerolog.Logger
	health  *HealthChecker
}

// Config contains the dependencies needed to construct a Handler.
type Config struct {
	Store   store.Store
	Cache   *metacache.Cache
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// New creates a Handler.
func New(cfg Config) *Handler {
	return &Handler{
		store:   cfg.Store,
		cache:   cfg.Cache,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With().Str("component", "handler").Logger(),
		health:  NewHealthChecker(cfg.Store, cfg.Logger),
	}
}

// Mux builds the Hako HTTP routing tree: the fixed API surface plus the
// SPA-shell catch-all serving assets from assetFS.
func (h *Handler) Mux(assetFS fs.FS, indexHTML []byte) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ping", h.HandlePing)
	mux.HandleFunc("POST /api/prepare_upload", h.HandlePrepareUpload)
	mux.HandleFunc("POST /api/upload", h.HandleUpload)
	mux.HandleFunc("GET /api/metadata", h.HandleMetadata)
	mux.HandleFunc("GET /api/download", h.HandleDownload)
	mux.HandleFunc("GET /healthz", h.health.HandleLiveness)
	mux.HandleFunc("GET /readyz", h.health.HandleReadiness)
	mux.Handle("/", newSPAHandler(assetFS, indexHTML))
	return mux
}

func (h *Handler) recordStoreOp(op string, err error, durationSeconds float64) {
	if h.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	h.metrics.RecordStoreOperation(op, status, durationSeconds)
}
