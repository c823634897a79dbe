package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/arbor/pkg/domain"
)

// Metrics is a Prometheus-backed observer counting workflow and node
// lifecycle outcomes and timing node executions.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal    *prometheus.CounterVec
	nodesTotal   *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	nodeAttempts *prometheus.HistogramVec
}

// NewMetrics creates the observer with its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbor",
			Name:      "workflow_runs_total",
			Help:      "Workflow runs by terminal status.",
		}, []string{"workflow", "status"}),
		nodesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbor",
			Name:      "node_executions_total",
			Help:      "Node executions by terminal status.",
		}, []string{"node", "status"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "arbor",
			Name:      "node_duration_seconds",
			Help:      "Wall time per node execution, all attempts included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node"}),
		nodeAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "arbor",
			Name:      "node_attempts",
			Help:      "Attempts consumed per node execution.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 13},
		}, []string{"node"}),
	}
	m.registry.MustRegister(m.runsTotal, m.nodesTotal, m.nodeDuration, m.nodeAttempts)
	return m
}

// OnEvent implements domain.Observer.
func (m *Metrics) OnEvent(_ context.Context, ev domain.Event) {
	switch ev.Type {
	case domain.EventWorkflowCompleted:
		m.runsTotal.WithLabelValues(ev.Workflow, "completed").Inc()
	case domain.EventWorkflowFailed:
		m.runsTotal.WithLabelValues(ev.Workflow, "failed").Inc()
	case domain.EventNodeCompleted:
		m.nodesTotal.WithLabelValues(ev.NodeID, "succeeded").Inc()
		m.nodeDuration.WithLabelValues(ev.NodeID).Observe(ev.Elapsed.Seconds())
		m.nodeAttempts.WithLabelValues(ev.NodeID).Observe(float64(ev.Attempts))
	case domain.EventNodeFailed:
		m.nodesTotal.WithLabelValues(ev.NodeID, "failed").Inc()
		m.nodeDuration.WithLabelValues(ev.NodeID).Observe(ev.Elapsed.Seconds())
		m.nodeAttempts.WithLabelValues(ev.NodeID).Observe(float64(ev.Attempts))
	}
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics over HTTP (mounted at /metrics by the HTTP
// adapter).
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
