// Package workflow orchestrates the dual-phase grading of card jobs. The
// primary path of each operation is synchronous and transactional; cascading
// status updates, CRM sync, customer email and label regeneration run as
// post-commit side effects through the dispatcher.
package workflow

import (
	"log/slog"
	"strings"

	"github.com/gradehaus/gradeflow/internal/conf"
	"github.com/gradehaus/gradeflow/internal/crm"
	"github.com/gradehaus/gradeflow/internal/datastore"
	"github.com/gradehaus/gradeflow/internal/dispatch"
	"github.com/gradehaus/gradeflow/internal/errors"
	"github.com/gradehaus/gradeflow/internal/labels"
	"github.com/gradehaus/gradeflow/internal/logging"
	"github.com/gradehaus/gradeflow/internal/notify"
	"github.com/gradehaus/gradeflow/internal/observability/metrics"
	"github.com/gradehaus/gradeflow/internal/score"
)

// Grader identifies the caller of a grading operation. The level is
// resolved once at the authentication boundary and passed in.
type Grader struct {
	ID    uint
	Name  string
	Level datastore.GraderLevel
}

// ImageTags carries the front/back image annotations of one item.
type ImageTags struct {
	Front string
	Back  string
}

// ItemGradeInput is the per-item payload of a submit or finalize call.
// All sub-grade fields are optional; nil means not supplied.
type ItemGradeInput struct {
	ItemID     uint
	Centering  *float64
	Corners    *float64
	Edges      *float64
	Surface    *float64
	Auto       *float64
	MinGrade   *float64
	FinalGrade *float64

	CannotGrade                bool
	ServiceUnavailable         bool
	ServiceUnavailableComments string
	Deactivate                 bool

	Notes     string
	Comment   string
	ImageTags ImageTags
}

// Assignment pairs a set of job numbers with the grader they go to.
type Assignment struct {
	JobNumbers []string
	GraderID   uint
}

// Engine runs the grading workflow over a datastore.
type Engine struct {
	store      datastore.Interface
	settings   *conf.Settings
	scorer     *score.Engine
	dispatcher *dispatch.Dispatcher
	crm        *crm.Client
	notifier   *notify.Client
	pusher     *notify.Pusher
	labels     *labels.Generator
	metrics    *metrics.WorkflowMetrics
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics attaches workflow metrics.
func WithMetrics(m *metrics.WorkflowMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPusher attaches the ops push alert channel.
func WithPusher(p *notify.Pusher) Option {
	return func(e *Engine) { e.pusher = p }
}

// NewEngine wires a workflow engine. The dispatcher, CRM client, notifier
// and label generator are required collaborators; metrics and push alerts
// are optional.
func NewEngine(
	store datastore.Interface,
	settings *conf.Settings,
	scorer *score.Engine,
	dispatcher *dispatch.Dispatcher,
	crmClient *crm.Client,
	notifier *notify.Client,
	labelGen *labels.Generator,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:      store,
		settings:   settings,
		scorer:     scorer,
		dispatcher: dispatcher,
		crm:        crmClient,
		notifier:   notifier,
		labels:     labelGen,
		logger:     logging.ForService("workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// isTen reports whether a grade value is the maximum grade.
func isTen(v *float64) bool {
	return v != nil && int(*v) == 10
}

// equalsFold is the case-insensitive comparison used for grader names,
// tier names and country names.
func equalsFold(a, b string) bool {
	return strings.EqualFold(a, b)
}

// validateSubGrades checks every sub-grade field of one input against the
// range/step rule. Violations name the offending field and item.
func validateSubGrades(itemName string, in *ItemGradeInput) error {
	fields := []struct {
		name  string
		value *float64
	}{
		{"Centering", in.Centering},
		{"Corners", in.Corners},
		{"Edges", in.Edges},
		{"Surface", in.Surface},
		{"Auto", in.Auto},
		{"Min Grade", in.MinGrade},
	}
	for _, f := range fields {
		if !score.IsValidSubGrade(f.value) {
			return errors.Newf("%s value for item %q must be between 1 and 10 in 0.5 steps", f.name, itemName).
				Component("workflow").
				Category(errors.CategoryValidation).
				Context("field", f.name).
				Context("item", itemName).
				Build()
		}
	}
	return nil
}

// batchContext is the shared state one submit or finalize call accumulates
// while walking its items. All items of a batch belong to the same job.
type batchContext struct {
	job         *datastore.Job
	suborder    *datastore.Suborder
	level       *datastore.ServiceLevel
	requireSubs bool
}

// resolveJob lazily loads the job and suborder from the first resolvable
// item of the batch.
func (e *Engine) resolveJob(bc *batchContext, item *datastore.Item) error {
	if bc.job != nil {
		return nil
	}
	job, err := e.store.GetJob(item.JobID)
	if err != nil {
		return err
	}
	suborder, err := e.store.GetSuborder(job.SuborderID)
	if err != nil {
		return err
	}
	bc.job = &job
	bc.suborder = &suborder
	return nil
}

// resolveServiceLevel lazily loads the service level and the sub-grade
// requirement for the batch.
func (e *Engine) resolveServiceLevel(bc *batchContext) error {
	if bc.level != nil {
		return nil
	}
	level, err := e.store.GetServiceLevel(bc.suborder.ServiceLevelID)
	if err != nil {
		return err
	}
	bc.level = &level
	bc.requireSubs = level.SubGradeRequired
	return nil
}

// noItemsError fails a batch in which no submitted item id resolved.
func noItemsError() error {
	return errors.Newf("none of the submitted items exist").
		Component("workflow").
		Category(errors.CategoryNotFound).
		Build()
}

// graderConflictError rejects a rewrite of a phase another grader owns.
func graderConflictError(itemID uint, owner string) error {
	return errors.Newf("item %d is already graded by %s and can't be graded again", itemID, owner).
		Component("workflow").
		Category(errors.CategoryConflict).
		Context("item_id", itemID).
		Context("graded_by", owner).
		Build()
}
