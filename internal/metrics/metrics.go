// Package metrics provides Prometheus metrics for the quote board.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mervalboard/internal/health"
)

var healthStatuses = []health.Status{health.OK, health.Limited, health.Error}

// Metrics holds the board collectors. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	sourceRequests    *prometheus.CounterVec
	sourceDuration    *prometheus.HistogramVec
	batchDuration     prometheus.Histogram
	batchUnavailable  prometheus.Gauge
	apiHealth         *prometheus.GaugeVec
	triggersTotal     *prometheus.CounterVec
	lastBatchUnixTime prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sourceRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quote_source_requests_total",
				Help: "Quote source attempts by outcome",
			},
			[]string{"source", "outcome"},
		),
		sourceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quote_source_request_duration_seconds",
				Help:    "Duration of quote source attempts",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "board_batch_duration_seconds",
				Help:    "Duration of complete batch runs",
				Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
			},
		),
		batchUnavailable: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "board_unavailable_instruments",
				Help: "Instruments left without a price by the last batch run",
			},
		),
		apiHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "board_api_health",
				Help: "1 for the health status of the last batch run, 0 otherwise",
			},
			[]string{"status"},
		),
		triggersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "board_batch_triggers_total",
				Help: "Batch triggers by origin and whether they started a run",
			},
			[]string{"trigger", "result"},
		),
		lastBatchUnixTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "board_last_batch_timestamp_seconds",
				Help: "Unix time of the last completed batch run",
			},
		),
	}

	m.registry.MustRegister(
		m.sourceRequests,
		m.sourceDuration,
		m.batchDuration,
		m.batchUnavailable,
		m.apiHealth,
		m.triggersTotal,
		m.lastBatchUnixTime,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSource records one source attempt.
func (m *Metrics) ObserveSource(source string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "unavailable"
	if ok {
		outcome = "ok"
	}
	m.sourceRequests.WithLabelValues(source, outcome).Inc()
	m.sourceDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveBatch records a completed batch run.
func (m *Metrics) ObserveBatch(status health.Status, unavailable int, elapsed time.Duration, completed time.Time) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(elapsed.Seconds())
	m.batchUnavailable.Set(float64(unavailable))
	m.lastBatchUnixTime.Set(float64(completed.Unix()))
	for _, s := range healthStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		m.apiHealth.WithLabelValues(string(s)).Set(v)
	}
}

// ObserveTrigger records whether a trigger started a run.
func (m *Metrics) ObserveTrigger(trigger string, started bool) {
	if m == nil {
		return
	}
	result := "skipped"
	if started {
		result = "started"
	}
	m.triggersTotal.WithLabelValues(trigger, result).Inc()
}
