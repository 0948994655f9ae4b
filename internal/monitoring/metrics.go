// Package monitoring exposes the Prometheus counters and gauges the
// pipeline emits: oracle call/retry/fallback outcomes, insert-batch
// outcomes, and the rate limiter's current occupancy, behind a small
// Metrics wrapper that no-ops when disabled.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OracleCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_keyword_oracle_calls_total",
			Help: "Total number of classification oracle call outcomes",
		},
		[]string{"outcome"},
	)

	OracleRetryTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_keyword_oracle_retry_total",
			Help: "Total number of classification oracle retry attempts",
		},
	)

	OracleFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_keyword_oracle_fallback_total",
			Help: "Total number of utterances classified via local fallback instead of the oracle",
		},
	)

	InsertTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_keyword_insert_total",
			Help: "Total number of keyword rows by insert outcome",
		},
		[]string{"result"},
	)

	RateLimiterRPMCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_keyword_rate_limiter_rpm_current",
			Help: "Current requests-per-minute occupancy of the process-wide oracle rate limiter",
		},
	)
)

// Metrics wraps the package-level Prometheus vectors behind an
// enabled/disabled switch so a batch run with prometheus_enabled=false
// pays no metrics overhead.
type Metrics struct {
	enabled bool
}

// New builds a Metrics recorder. When enabled is false every method is a
// no-op.
func New(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

// ObserveCall implements oracle.Metrics.
func (m *Metrics) ObserveCall(outcome string) {
	if !m.enabled {
		return
	}
	OracleCallsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRetry implements oracle.Metrics.
func (m *Metrics) ObserveRetry() {
	if !m.enabled {
		return
	}
	OracleRetryTotal.Inc()
}

// ObserveFallback implements oracle.Metrics.
func (m *Metrics) ObserveFallback() {
	if !m.enabled {
		return
	}
	OracleFallbackTotal.Inc()
}

// RecordInsert records a batch insert outcome (inserted/skipped/failed).
func (m *Metrics) RecordInsert(result string, count int) {
	if !m.enabled || count <= 0 {
		return
	}
	InsertTotal.WithLabelValues(result).Add(float64(count))
}

// UpdateRateLimiterRPM reports the rate limiter's current trailing-60s
// request count.
func (m *Metrics) UpdateRateLimiterRPM(rpm int) {
	if !m.enabled {
		return
	}
	RateLimiterRPMCurrent.Set(float64(rpm))
}
