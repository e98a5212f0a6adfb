// Package gc implements the periodic expiry sweep described in spec
// section 5: a ticking background task that marks expired files
// unavailable and deletes their chunks in one transaction.
package gc

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skystar-p/hako/internal/metrics"
	"github.com/skystar-p/hako/internal/store"
)

// Worker runs store.GCExpired on a fixed interval. A Worker with
// expirySecs <= 0 is disabled: Start returns immediately without
// scheduling a ticker, per spec section 5 ("If expiry is unset or zero,
// the worker is disabled").
type Worker struct {
	store    store.Store
	expiry   int64
	interval time.Duration
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New constructs a GC worker. expirySecs is the object lifetime; interval
// is how often a sweep runs.
func New(s store.Store, expirySecs int64, interval time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Worker {
	return &Worker{
		store:    s,
		expiry:   expirySecs,
		interval: interval,
		metrics:  m,
		logger:   logger.With().Str("component", "gc").Logger(),
	}
}

// Start launches the ticking sweep loop in a background goroutine. It is a
// no-op when expiry is disabled (<=0). Calling Start twice without an
// intervening Stop is a programming error and panics, matching the
// single-owner lifecycle the server main assumes.
func (w *Worker) Start(ctx context.Context) {
	if w.expiry <= 0 {
		w.logger.Info().Msg("gc worker disabled, expiry is unset")
		return
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		panic("gc: worker already running")
	}
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.loop(ctx)
}

// Stop signals the loop to exit and waits for it to finish. Safe to call
// on a disabled or already-stopped worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	done := w.done
	w.mu.Unlock()

	<-done
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep, logging the ids it removed and
// recording metrics. Errors are logged but never panic the loop: a
// failed sweep is retried on the next tick.
func (w *Worker) RunOnce(ctx context.Context) {
	start := time.Now()

	ids, err := w.store.GCExpired(ctx, w.expiry)
	duration := time.Since(start)

	if err != nil {
		w.logger.Error().Err(err).Msg("gc sweep failed")
		return
	}

	if len(ids) > 0 {
		w.logger.Info().Ints64("ids", ids).Int("count", len(ids)).Msg("gc removed expired files")
	}

	if w.metrics != nil {
		w.metrics.RecordGCRun(duration.Seconds(), len(ids), float64(time.Now().Unix()))
	}
}
