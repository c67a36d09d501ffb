package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for extraction and monitor sweeps.
type Metrics struct {
	Registry        *prometheus.Registry
	TierAttempts    *prometheus.CounterVec
	TierFailures    *prometheus.CounterVec
	TierSuccesses   *prometheus.CounterVec
	ExtractDuration prometheus.Histogram
	Sweeps          prometheus.Counter
	MonitorUpdates  prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_tier_attempts_total",
			Help: "Extraction tiers entered, by tier.",
		},
		[]string{"tier"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_tier_failures_total",
			Help: "Extraction tiers that failed or found nothing, by tier.",
		},
		[]string{"tier"},
	)
	successes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_tier_successes_total",
			Help: "Extraction tiers that produced the final result, by tier.",
		},
		[]string{"tier"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "listing_extract_duration_seconds",
			Help:    "Wall time of a full extraction across all tiers.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900},
		},
	)
	sweeps := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listing_monitor_sweeps_total",
			Help: "Completed monitor sweeps.",
		},
	)
	updates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listing_monitor_updates_total",
			Help: "Monitor polls that found new listings.",
		},
	)

	registry.MustRegister(attempts, failures, successes, duration, sweeps, updates)

	return &Metrics{
		Registry:        registry,
		TierAttempts:    attempts,
		TierFailures:    failures,
		TierSuccesses:   successes,
		ExtractDuration: duration,
		Sweeps:          sweeps,
		MonitorUpdates:  updates,
	}
}

func (m *Metrics) IncAttempt(tier string) {
	if m == nil {
		return
	}
	m.TierAttempts.WithLabelValues(tier).Inc()
}

func (m *Metrics) IncFailure(tier string) {
	if m == nil {
		return
	}
	m.TierFailures.WithLabelValues(tier).Inc()
}

func (m *Metrics) IncSuccess(tier string) {
	if m == nil {
		return
	}
	m.TierSuccesses.WithLabelValues(tier).Inc()
}

func (m *Metrics) ObserveExtract(d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractDuration.Observe(d.Seconds())
}

// IncSweep records one finished sweep and how many monitors it updated.
func (m *Metrics) IncSweep(updated int) {
	if m == nil {
		return
	}
	m.Sweeps.Inc()
	m.MonitorUpdates.Add(float64(updated))
}
