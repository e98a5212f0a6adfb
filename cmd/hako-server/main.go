// Command hako-server runs the Hako HTTP API: prepare_upload, upload,
// metadata and download, plus the background expiry sweep.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/skystar-p/hako/internal/cache/metacache"
	"github.com/skystar-p/hako/internal/config"
	"github.com/skystar-p/hako/internal/gc"
	"github.com/skystar-p/hako/internal/handler"
	"github.com/skystar-p/hako/internal/metrics"
	"github.com/skystar-p/hako/internal/middleware"
	"github.com/skystar-p/hako/internal/store"
	"github.com/skystar-p/hako/internal/store/postgres"
	"github.com/skystar-p/hako/internal/store/sqlite"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	cache, err := metacache.New(ctx, cfg.RedisAddr, 5*time.Minute, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer cache.Close()

	m := metrics.New()

	h := handler.New(handler.Config{
		Store:   st,
		Cache:   cache,
		Metrics: m,
		Logger:  logger,
	})

	tracing := middleware.NewTracing(m, logger)
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimitPerSecond,
		BurstSize:         cfg.RateLimitBurst,
		Enabled:           true,
		CleanupInterval:   middleware.DefaultRateLimiterConfig().CleanupInterval,
	}, m, logger)
	defer rateLimiter.Stop()

	mux := h.Mux(nil, []byte("<!doctype html><title>hako</title>"))
	limited := rateLimiter.Middleware(mux)
	root := tracing.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/prepare_upload", "/api/upload":
			limited.ServeHTTP(w, r)
		default:
			mux.ServeHTTP(w, r)
		}
	}))

	worker := gc.New(st, cfg.Expiry, cfg.DeleteIntervalDuration(), m, logger)
	worker.Start(ctx)
	defer worker.Stop()

	srv := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	go func() {
		logger.Info().Str("addr", cfg.BindAddr).Msg("hako-server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreEngine {
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
		return postgres.NewStore(db, cfg.ChunkCountLimit), nil
	default:
		return sqlite.Open(cfg.SQLiteDBFilename, cfg.ChunkCountLimit)
	}
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logger.Info().Str("addr", addr).Msg("metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server failed")
	}
}
