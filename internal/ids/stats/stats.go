// Package stats exposes detector activity as Prometheus metrics on a private
// registry. A nil *Metrics is valid and records nothing.
package stats

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haukened/rr-ids/internal/ids/domain"
)

const (
	Namespace = "rr_ids"

	MetricRecords         = "records"
	MetricRecordsCreated  = "records_created_total"
	MetricRecordsDeleted  = "records_deleted_total"
	MetricRecordsEvicted  = "records_evicted_total"
	MetricFilterRefreshes = "filter_refreshes_total"
	MetricRedirectEvicted = "redirect_sources_evicted_total"
	MetricAlerts          = "alerts_total"
	MetricEvents          = "events_total"
	MetricEventErrors     = "event_errors_total"

	TagFilter    = "filter"
	TagHeuristic = "heuristic"
)

// Metrics implements membership.Observer, redirect.Observer and the
// detector's alert/event hooks.
type Metrics struct {
	registry   *prometheus.Registry
	httpServer *http.Server

	records         prometheus.Gauge
	recordsCreated  prometheus.Counter
	recordsDeleted  prometheus.Counter
	recordsEvicted  prometheus.Counter
	filterRefreshes *prometheus.CounterVec
	redirectEvicted prometheus.Counter
	alerts          *prometheus.CounterVec
	events          prometheus.Counter
	eventErrors     prometheus.Counter
}

// New builds Metrics whose scrape endpoint is served at httpPath.
func New(httpPath string) *Metrics {
	registry := prometheus.NewPedanticRegistry()
	mux := http.NewServeMux()
	mux.Handle(httpPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	m := &Metrics{
		registry:   registry,
		httpServer: &http.Server{Handler: mux},

		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      MetricRecords,
			Help:      "Number of sources currently tracked by the membership table.",
		}),
		recordsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricRecordsCreated,
			Help:      "Tracking records created.",
		}),
		recordsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricRecordsDeleted,
			Help:      "Tracking records deleted explicitly.",
		}),
		recordsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricRecordsEvicted,
			Help:      "Tracking records evicted because the table was full.",
		}),
		filterRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricFilterRefreshes,
			Help:      "Bloom filters reinitialised after crossing the false-positive threshold.",
		}, []string{TagFilter}),
		redirectEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricRedirectEvicted,
			Help:      "Sources dropped from the redirect tracker because it was full.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricAlerts,
			Help:      "Alerts raised, by heuristic.",
		}, []string{TagHeuristic}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricEvents,
			Help:      "HTTP events evaluated.",
		}),
		eventErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricEventErrors,
			Help:      "HTTP events that could not be evaluated.",
		}),
	}

	registry.MustRegister(
		m.records,
		m.recordsCreated,
		m.recordsDeleted,
		m.recordsEvicted,
		m.filterRefreshes,
		m.redirectEvicted,
		m.alerts,
		m.events,
		m.eventErrors,
	)
	return m
}

// Registry returns the private registry, for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Serve serves the scrape endpoint on listener until Close.
func (m *Metrics) Serve(listener net.Listener) error {
	return m.httpServer.Serve(listener) //nolint: wrapcheck
}

// Close stops the HTTP server. The listener is closed by the server.
func (m *Metrics) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.httpServer.Shutdown(ctx) //nolint: wrapcheck
}

func (m *Metrics) RecordCreated() {
	if m == nil {
		return
	}
	m.recordsCreated.Inc()
	m.records.Inc()
}

func (m *Metrics) RecordDeleted() {
	if m == nil {
		return
	}
	m.recordsDeleted.Inc()
	m.records.Dec()
}

func (m *Metrics) RecordEvicted() {
	if m == nil {
		return
	}
	m.recordsEvicted.Inc()
	m.records.Dec()
}

func (m *Metrics) FilterRefreshed(name domain.FilterName) {
	if m == nil {
		return
	}
	m.filterRefreshes.WithLabelValues(string(name)).Inc()
}

func (m *Metrics) SourceEvicted() {
	if m == nil {
		return
	}
	m.redirectEvicted.Inc()
}

// AlertRaised counts one alert.
func (m *Metrics) AlertRaised(h domain.Heuristic) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(string(h)).Inc()
}

// EventHandled counts one evaluated event; failed marks an evaluation error.
func (m *Metrics) EventHandled(failed bool) {
	if m == nil {
		return
	}
	m.events.Inc()
	if failed {
		m.eventErrors.Inc()
	}
}
