// Package metrics exposes prometheus collectors for the matching pipeline.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notification result label values.
const (
	ResultSent       = "sent"
	ResultSuppressed = "suppressed"
	ResultFailed     = "failed"
)

// Metrics holds the pipeline counters and the matching-latency histogram.
type Metrics struct {
	registry *prometheus.Registry

	MessagesProcessed prometheus.Counter
	MatchesFound      prometheus.Counter
	Notifications     *prometheus.CounterVec
	MatchDuration     prometheus.Histogram
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		MessagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "highlight_messages_processed_total",
			Help: "Inbound messages run through the matching pipeline.",
		}),
		MatchesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "highlight_matches_found_total",
			Help: "Keyword matches found across all owners.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "highlight_notifications_total",
			Help: "Notification outcomes by result.",
		}, []string{"result"}),
		MatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "highlight_match_duration_seconds",
			Help:    "Per-message matching latency.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}

	registry.MustRegister(m.MessagesProcessed, m.MatchesFound, m.Notifications, m.MatchDuration)
	return m
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the scrape endpoint on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
