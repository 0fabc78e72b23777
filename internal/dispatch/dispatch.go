// Package dispatch executes post-commit side effects concurrently with a
// bounded wait. Actions run at most once, failures are logged and never
// propagate back to the caller or to each other.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gradehaus/gradeflow/internal/logging"
	"github.com/gradehaus/gradeflow/internal/observability/metrics"
)

// Action is a unit of side effect work. Actions must be safe to run
// concurrently with each other and should be idempotent where possible,
// since a drained dispatcher gives no completion guarantee to the caller.
type Action interface {
	// Name identifies the action in logs and metrics.
	Name() string
	// Execute performs the side effect. The context carries the drain
	// deadline, long running actions should honor it.
	Execute(ctx context.Context) error
}

// ActionFunc adapts a plain function to the Action interface.
type ActionFunc struct {
	ActionName string
	Fn         func(ctx context.Context) error
}

// Name returns the action name.
func (a ActionFunc) Name() string { return a.ActionName }

// Execute runs the wrapped function.
func (a ActionFunc) Execute(ctx context.Context) error { return a.Fn(ctx) }

// Dispatcher runs actions on a bounded worker pool.
type Dispatcher struct {
	workers int
	wait    time.Duration
	metrics *metrics.DispatchMetrics
	logger  *slog.Logger

	mu      sync.Mutex
	pending sync.WaitGroup
	sem     chan struct{}
	closed  bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics attaches dispatch metrics to the dispatcher.
func WithMetrics(m *metrics.DispatchMetrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger overrides the default dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a Dispatcher with the given worker count and drain wait.
// Non-positive values fall back to 4 workers and a 5 second wait.
func New(workers int, wait time.Duration, opts ...Option) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	d := &Dispatcher{
		workers: workers,
		wait:    wait,
		logger:  logging.ForService("dispatch"),
		sem:     make(chan struct{}, workers),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes all actions concurrently, bounded by the worker count, and
// waits up to the configured drain duration for them to finish. Actions
// still running when the wait expires keep running in the background, Run
// returns without them. Errors and panics are logged per action and never
// returned.
func (d *Dispatcher) Run(ctx context.Context, actions ...Action) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("dispatcher closed, dropping actions", "count", len(actions))
		return
	}
	done := make(chan struct{})
	var batch sync.WaitGroup
	execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.wait)
	for _, action := range actions {
		if action == nil {
			continue
		}
		batch.Add(1)
		d.pending.Add(1)
		if d.metrics != nil {
			d.metrics.ActionsEnqueued.WithLabelValues(action.Name()).Inc()
		}
		go func(a Action) {
			defer d.pending.Done()
			defer batch.Done()
			d.sem <- struct{}{}
			defer func() { <-d.sem }()
			d.execute(execCtx, a)
		}(action)
	}
	d.mu.Unlock()

	go func() {
		batch.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
	case <-time.After(d.wait):
		// leave cancel to fire via the context deadline so stragglers
		// get their remaining grace instead of an immediate cut
		d.logger.Warn("drain wait expired with actions still running", "wait", d.wait)
		if d.metrics != nil {
			d.metrics.DrainTimeouts.Inc()
		}
		go func() {
			<-done
			cancel()
		}()
	}
}

// execute runs a single action with panic recovery and outcome logging.
func (d *Dispatcher) execute(ctx context.Context, a Action) {
	start := time.Now()
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("action panicked: %v", r)
			}
		}()
		err = a.Execute(ctx)
	}()
	elapsed := time.Since(start)
	if d.metrics != nil {
		d.metrics.ActionDuration.Observe(elapsed.Seconds())
	}
	if err != nil {
		d.logger.Error("side effect failed", "action", a.Name(), "duration", elapsed, "error", err)
		if d.metrics != nil {
			d.metrics.ActionsFailed.WithLabelValues(a.Name()).Inc()
		}
		return
	}
	d.logger.Debug("side effect completed", "action", a.Name(), "duration", elapsed)
	if d.metrics != nil {
		d.metrics.ActionsSucceeded.WithLabelValues(a.Name()).Inc()
	}
}

// Close waits for all in-flight actions to finish and rejects further runs.
// Intended for shutdown paths and tests.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.pending.Wait()
}
