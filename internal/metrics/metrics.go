// Package metrics exposes the monitor's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the monitor's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	PollTicks     *prometheus.CounterVec
	PollErrors    *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	FetchErrors   *prometheus.CounterVec
	TrackedJobs   prometheus.Gauge
	EventTotal    prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sismonitor_poll_ticks_total",
			Help: "Polling loop ticks, by monitor.",
		}, []string{"monitor"}),
		PollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sismonitor_poll_errors_total",
			Help: "Polling ticks that failed, by monitor.",
		}, []string{"monitor"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sismonitor_fetch_duration_seconds",
			Help:    "Upstream API fetch latency, by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sismonitor_fetch_errors_total",
			Help: "Upstream API fetches that failed at transport level, by endpoint.",
		}, []string{"endpoint"}),
		TrackedJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sismonitor_tracked_jobs",
			Help: "Import jobs currently tracked.",
		}),
		EventTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sismonitor_event_total",
			Help: "Running total of provisioning events held in the chart window.",
		}),
	}

	m.registry.MustRegister(
		m.PollTicks,
		m.PollErrors,
		m.FetchDuration,
		m.FetchErrors,
		m.TrackedJobs,
		m.EventTotal,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFetch satisfies sis.Recorder.
func (m *Metrics) ObserveFetch(endpoint string, elapsed time.Duration, err error) {
	m.FetchDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
	if err != nil {
		m.FetchErrors.WithLabelValues(endpoint).Inc()
	}
}

// Tick records one tick for monitor, failed or not.
func (m *Metrics) Tick(monitor string, err error) {
	m.PollTicks.WithLabelValues(monitor).Inc()
	if err != nil {
		m.PollErrors.WithLabelValues(monitor).Inc()
	}
}
