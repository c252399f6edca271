package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/twquote/internal/api"
	"github.com/rickgao/twquote/internal/model"
	"github.com/rickgao/twquote/internal/poller"
	"github.com/rickgao/twquote/internal/version"
	"github.com/rickgao/twquote/internal/writer"
)

const namespace = "twquote"

// Collector holds the run's metrics in its own registry.
type Collector struct {
	Registry *prometheus.Registry

	rounds        prometheus.Counter
	attempts      *prometheus.CounterVec
	failures      *prometheus.CounterVec
	roundDuration prometheus.Histogram
	quotesWritten prometheus.Counter

	completed atomic.Int64
	lastRound atomic.Int64 // Unix nanos of the last finished round
}

// NewCollector creates and registers all collectors.
func NewCollector() *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),

		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Total number of completed polling rounds.",
		}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Total number of quote fetch attempts by result.",
		}, []string{"result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Total number of failure records by stage.",
		}, []string{"stage"}),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Duration of polling rounds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		quotesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_written_total",
			Help:      "Total number of quote rows written to artifacts.",
		}),
	}

	c.Registry.MustRegister(
		c.rounds,
		c.attempts,
		c.failures,
		c.roundDuration,
		c.quotesWritten,
		prometheus.NewGoCollector(),
	)
	return c
}

// ObserveAttempt records one fetch attempt. It matches poller.Hooks.Attempt.
func (c *Collector) ObserveAttempt(_ model.Symbol, _ int, err error) {
	result := "ok"
	if err != nil {
		result = api.KindName(err)
	}
	c.attempts.WithLabelValues(result).Inc()
}

// ObserveRound records a finished round. It matches poller.Hooks.Round.
func (c *Collector) ObserveRound(o poller.Outcome) {
	c.rounds.Inc()
	c.completed.Add(1)
	if !o.Finished.IsZero() {
		c.lastRound.Store(o.Finished.UnixNano())
	}
	c.roundDuration.Observe(o.Duration().Seconds())
	if o.Failures > 0 {
		c.failures.WithLabelValues(string(model.StageFetch)).Add(float64(o.Failures))
	}
}

// ObserveFlush records the writer's totals after a flush.
func (c *Collector) ObserveFlush(stats writer.WriterMetrics) {
	c.quotesWritten.Add(float64(stats.QuoteRows))
	if stats.Errors > 0 {
		c.failures.WithLabelValues(string(model.StageWrite)).Add(float64(stats.Errors))
	}
}

// Handler returns an HTTP handler exposing the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

// HealthHandler reports liveness and round progress as JSON.
func (c *Collector) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status    string `json:"status"`
			Version   string `json:"version"`
			Rounds    int64  `json:"rounds"`
			LastRound string `json:"last_round,omitempty"`
		}{
			Status:  "healthy",
			Version: version.String(),
			Rounds:  c.completed.Load(),
		}
		if ns := c.lastRound.Load(); ns > 0 {
			health.LastRound = time.Unix(0, ns).UTC().Format(time.RFC3339)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})
}

// Serve exposes the metrics on port at path until ctx is done.
func (c *Collector) Serve(ctx context.Context, port int, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, c.Handler())
	mux.Handle("/health", c.HealthHandler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server started", "addr", srv.Addr, "path", path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	logger.Info("metrics server stopped")
	return nil
}
