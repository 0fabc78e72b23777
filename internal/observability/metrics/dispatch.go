package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics contains all Prometheus metrics related to side effect dispatching.
type DispatchMetrics struct {
	ActionsEnqueued *prometheus.CounterVec
	ActionsSucceeded *prometheus.CounterVec
	ActionsFailed   *prometheus.CounterVec
	ActionDuration  prometheus.Histogram
	DrainTimeouts   prometheus.Counter
	registry        *prometheus.Registry
}

// NewDispatchMetrics creates a new instance of DispatchMetrics registered to the given registry.
func NewDispatchMetrics(registry *prometheus.Registry) (*DispatchMetrics, error) {
	m := &DispatchMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register dispatch metrics: %w", err)
	}
	return m, nil
}

func (m *DispatchMetrics) initMetrics() {
	m.ActionsEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_actions_enqueued_total",
		Help: "Total number of side effect actions enqueued",
	}, []string{"action"})

	m.ActionsSucceeded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_actions_succeeded_total",
		Help: "Total number of side effect actions that completed successfully",
	}, []string{"action"})

	m.ActionsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_actions_failed_total",
		Help: "Total number of side effect actions that returned an error or panicked",
	}, []string{"action"})

	m.ActionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_action_duration_seconds",
		Help:    "Duration of side effect action execution in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	m.DrainTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_drain_timeouts_total",
		Help: "Total number of drains that hit the wait deadline with actions still running",
	})
}

// Collect implements the prometheus.Collector interface.
func (m *DispatchMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ActionsEnqueued.Collect(ch)
	m.ActionsSucceeded.Collect(ch)
	m.ActionsFailed.Collect(ch)
	ch <- m.ActionDuration
	ch <- m.DrainTimeouts
}

// Describe implements the prometheus.Collector interface.
func (m *DispatchMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ActionsEnqueued.Describe(ch)
	m.ActionsSucceeded.Describe(ch)
	m.ActionsFailed.Describe(ch)
	ch <- m.ActionDuration.Desc()
	ch <- m.DrainTimeouts.Desc()
}
