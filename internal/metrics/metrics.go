// Package metrics exposes Prometheus collectors for the editor: taxonomy
// lookups, node operations, catalog cache efficiency, domain events and
// websocket connections.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matthewbaird/adops/internal/event"
	"github.com/matthewbaird/adops/internal/nodeops"
	"github.com/matthewbaird/adops/internal/taxonomy"
)

const namespace = "adops"

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	// lookups counts option lookups.
	// Labels: field, outcome (ok, error, stale)
	lookups *prometheus.CounterVec

	// lookupLatency measures option lookup latency in seconds.
	// Labels: field
	lookupLatency *prometheus.HistogramVec

	// nodeOps counts context-menu actions.
	// Labels: action, outcome (ok, rejected, error)
	nodeOps *prometheus.CounterVec

	// cacheLookups counts catalog cache hits and misses.
	// Labels: kind, result (hit, miss)
	cacheLookups *prometheus.CounterVec

	// events counts domain events seen on the bus.
	// Labels: event_type
	events *prometheus.CounterVec

	// connections tracks open websocket connections.
	connections prometheus.Gauge
}

// New registers the collectors on reg. A *prometheus.Registry serves as
// both registerer and gatherer; pass prometheus.DefaultRegisterer to use
// the process-wide registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "taxonomy",
			Name:      "lookups_total",
			Help:      "Taxonomy option lookups by field and outcome",
		}, []string{"field", "outcome"}),
		lookupLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "taxonomy",
			Name:      "lookup_duration_seconds",
			Help:      "Taxonomy option lookup latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"field"}),
		nodeOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "node_operations_total",
			Help:      "Composition tree node operations by action and outcome",
		}, []string{"action", "outcome"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "cache_lookups_total",
			Help:      "Catalog cache lookups by kind and result",
		}, []string{"kind", "result"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events dispatched on the event bus",
		}, []string{"event_type"}),
		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wire",
			Name:      "connections",
			Help:      "Open editor websocket connections",
		}),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// LookupHook returns a taxonomy.LookupHook recording lookups.
func (m *Metrics) LookupHook() taxonomy.LookupHook {
	return func(field taxonomy.FieldKey, outcome string, elapsed time.Duration) {
		m.lookups.WithLabelValues(string(field), outcome).Inc()
		if outcome != taxonomy.OutcomeStale {
			m.lookupLatency.WithLabelValues(string(field)).Observe(elapsed.Seconds())
		}
	}
}

// NodeObserver returns a nodeops.Observer counting actions.
func (m *Metrics) NodeObserver() nodeops.Observer {
	return func(action nodeops.Action, outcome string) {
		m.nodeOps.WithLabelValues(string(action), outcome).Inc()
	}
}

// CacheObserver records a catalog cache lookup.
func (m *Metrics) CacheObserver(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

// HandleEvent counts evt. It makes Metrics an event bus subscriber.
func (m *Metrics) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	m.events.WithLabelValues(evt.EventType).Inc()
	return nil
}

// ConnOpened and ConnClosed track websocket connections.
func (m *Metrics) ConnOpened() { m.connections.Inc() }
func (m *Metrics) ConnClosed() { m.connections.Dec() }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
