// Package telemetry exposes prometheus metrics for locate calls.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the locator collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	locateTotal       *prometheus.CounterVec
	strategyErrors    *prometheus.CounterVec
	locateDuration    prometheus.Histogram
	trainingSamples   *prometheus.CounterVec
	preflightFailures *prometheus.CounterVec
}

// New registers the collectors on reg
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		locateTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locator",
			Name:      "locate_total",
			Help:      "Locate calls by the strategy that resolved them",
		}, []string{"strategy"}),
		strategyErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locator",
			Name:      "strategy_errors_total",
			Help:      "Strategy attempts that failed with an error or panic",
		}, []string{"strategy"}),
		locateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "locator",
			Name:      "locate_duration_seconds",
			Help:      "Wall time of locate calls",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		trainingSamples: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locator",
			Name:      "training_samples_total",
			Help:      "Training sample writes by outcome",
		}, []string{"outcome"}),
		preflightFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locator",
			Name:      "preflight_failures_total",
			Help:      "Failed preflight checks by name",
		}, []string{"check"}),
	}
}

// ObserveLocate records one finished locate call
func (m *Metrics) ObserveLocate(strategy string, d time.Duration) {
	if m == nil {
		return
	}
	m.locateTotal.WithLabelValues(strategy).Inc()
	m.locateDuration.Observe(d.Seconds())
}

// StrategyError counts a failed strategy attempt
func (m *Metrics) StrategyError(strategy string) {
	if m == nil {
		return
	}
	m.strategyErrors.WithLabelValues(strategy).Inc()
}

// TrainingSample counts a record_success outcome ("stored" or "failed")
func (m *Metrics) TrainingSample(outcome string) {
	if m == nil {
		return
	}
	m.trainingSamples.WithLabelValues(outcome).Inc()
}

// PreflightFailure counts a failed check
func (m *Metrics) PreflightFailure(check string) {
	if m == nil {
		return
	}
	m.preflightFailures.WithLabelValues(check).Inc()
}

// WriteFile dumps the registry in the text exposition format
func (m *Metrics) WriteFile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
