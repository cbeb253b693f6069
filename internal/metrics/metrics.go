// Package metrics exposes realtime tree activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/groupchat/internal/realtime"
)

// Ensure Metrics implements realtime.Observer
var _ realtime.Observer = (*Metrics)(nil)

// Metrics records hub writes, live subscriptions and snapshot fan-out.
type Metrics struct {
	registry      *prometheus.Registry
	writes        *prometheus.CounterVec
	subscriptions *prometheus.GaugeVec
	deliveries    *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groupchat",
			Subsystem: "tree",
			Name:      "writes_total",
			Help:      "Tree writes by collection, operation and result.",
		}, []string{"collection", "op", "result"}),
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "groupchat",
			Subsystem: "tree",
			Name:      "subscriptions",
			Help:      "Live snapshot subscriptions by collection.",
		}, []string{"collection"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groupchat",
			Subsystem: "tree",
			Name:      "snapshot_deliveries_total",
			Help:      "Snapshots offered to subscribers by collection.",
		}, []string{"collection"}),
	}
	m.registry.MustRegister(
		m.writes,
		m.subscriptions,
		m.deliveries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveWrite counts a write attempt.
func (m *Metrics) ObserveWrite(collection, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.writes.WithLabelValues(collection, op, result).Inc()
}

func (m *Metrics) SubscriptionOpened(collection string) {
	m.subscriptions.WithLabelValues(collection).Inc()
}

func (m *Metrics) SubscriptionClosed(collection string) {
	m.subscriptions.WithLabelValues(collection).Dec()
}

// ObserveFanout counts the snapshots pushed after one write.
func (m *Metrics) ObserveFanout(collection string, subscribers int) {
	m.deliveries.WithLabelValues(collection).Add(float64(subscribers))
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
