// Package metrics provides custom Prometheus metrics for the grading workflow components.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics contains all Prometheus metrics related to grading workflow operations.
type WorkflowMetrics struct {
	GradesSubmitted   prometheus.Counter
	GradesFinalized   prometheus.Counter
	GraderConflicts   prometheus.Counter
	QCFlagged         prometheus.Counter
	BlackLabels       prometheus.Counter
	ComputeDuration   prometheus.Histogram
	BatchItemsGraded  prometheus.Histogram
	registry          *prometheus.Registry
}

// NewWorkflowMetrics creates a new instance of WorkflowMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewWorkflowMetrics(registry *prometheus.Registry) (*WorkflowMetrics, error) {
	m := &WorkflowMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register workflow metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for WorkflowMetrics.
func (m *WorkflowMetrics) initMetrics() {
	m.GradesSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grading_submissions_total",
		Help: "Total number of junior grade batches submitted for senior review",
	})

	m.GradesFinalized = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grading_finalizations_total",
		Help: "Total number of senior grade batches finalized",
	})

	m.GraderConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grading_grader_conflicts_total",
		Help: "Total number of submissions rejected because another grader already wrote the phase",
	})

	m.QCFlagged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grading_qc_flagged_total",
		Help: "Total number of jobs flagged for quality control review",
	})

	m.BlackLabels = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grading_black_labels_total",
		Help: "Total number of black label certifications issued",
	})

	m.ComputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "grading_compute_duration_seconds",
		Help:    "Duration of final grade computations in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	m.BatchItemsGraded = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "grading_batch_items",
		Help:    "Number of items graded per batch operation",
		Buckets: prometheus.LinearBuckets(1, 5, 10),
	})
}

// Collect implements the prometheus.Collector interface.
func (m *WorkflowMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.GradesSubmitted
	ch <- m.GradesFinalized
	ch <- m.GraderConflicts
	ch <- m.QCFlagged
	ch <- m.BlackLabels
	ch <- m.ComputeDuration
	ch <- m.BatchItemsGraded
}

// Describe implements the prometheus.Collector interface.
func (m *WorkflowMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.GradesSubmitted.Desc()
	ch <- m.GradesFinalized.Desc()
	ch <- m.GraderConflicts.Desc()
	ch <- m.QCFlagged.Desc()
	ch <- m.BlackLabels.Desc()
	ch <- m.ComputeDuration.Desc()
	ch <- m.BatchItemsGraded.Desc()
}
