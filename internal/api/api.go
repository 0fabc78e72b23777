// Package api exposes the grading operations over a JSON HTTP API.
// Handlers are thin wrappers: they bind, delegate to the workflow engine or
// the work queue and translate error categories to status codes.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/gradehaus/gradeflow/internal/conf"
	"github.com/gradehaus/gradeflow/internal/datastore"
	"github.com/gradehaus/gradeflow/internal/errors"
	"github.com/gradehaus/gradeflow/internal/logging"
	"github.com/gradehaus/gradeflow/internal/observability"
	"github.com/gradehaus/gradeflow/internal/score"
	"github.com/gradehaus/gradeflow/internal/workflow"
	"github.com/gradehaus/gradeflow/internal/workqueue"
)

// Controller registers the grading routes on an echo instance.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Store    datastore.Interface
	Settings *conf.Settings
	Workflow *workflow.Engine
	Scorer   *score.Engine
	Queue    *workqueue.Service

	metrics *observability.Metrics
	logger  *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithMetrics attaches the shared metrics instance and exposes /metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Controller) {
		c.metrics = metrics
	}
}

// New wires the controller routes onto e under /api/v1/grading.
func New(e *echo.Echo, store datastore.Interface, settings *conf.Settings,
	engine *workflow.Engine, scorer *score.Engine, queue *workqueue.Service,
	opts ...Option,
) *Controller {
	c := &Controller{
		Echo:     e,
		Store:    store,
		Settings: settings,
		Workflow: engine,
		Scorer:   scorer,
		Queue:    queue,
		logger:   logging.ForService("api"),
	}
	for _, opt := range opts {
		opt(c)
	}

	e.Use(middleware.Recover())

	c.Group = e.Group("/api/v1/grading")
	c.initRoutes()
	if c.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
	return c
}

func (c *Controller) initRoutes() {
	c.Group.POST("/submit", c.SubmitGrades)
	c.Group.POST("/finalize", c.FinalizeGrades)
	c.Group.POST("/assign", c.AssignGraders)
	c.Group.GET("/compute", c.ComputeGrade)
	c.Group.GET("/workqueues", c.ListWorkQueue)
	c.Group.GET("/issue-categories", c.ListIssueCategories)
}

// ErrorResponse is the JSON error envelope. The correlation id ties the
// response to the server-side log line.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// HandleError logs err and writes the JSON error envelope. The status code
// follows the error category: validation 400, authorization 403, not-found
// 404, conflict 409, everything else 500.
func (c *Controller) HandleError(ctx echo.Context, err error, message string) error {
	code := statusFor(err)
	resp := ErrorResponse{
		Error:         err.Error(),
		Message:       message,
		Code:          code,
		CorrelationID: uuid.New().String()[:8],
	}
	c.logger.Error("request failed",
		"correlation_id", resp.CorrelationID,
		"message", message,
		"error", err.Error(),
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP())
	return ctx.JSON(code, resp)
}

func statusFor(err error) int {
	switch {
	case errors.IsValidation(err):
		return http.StatusBadRequest
	case errors.IsAuthorization(err):
		return http.StatusForbidden
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// validationError wraps a bind or input problem as a 400.
func validationError(message string) error {
	return errors.Newf("%s", message).
		Component("api").
		Category(errors.CategoryValidation).
		Build()
}

// resolveGrader loads the calling grader and rejects deactivated accounts.
func (c *Controller) resolveGrader(id uint) (workflow.Grader, error) {
	grader, err := c.Store.GetGrader(id)
	if err != nil {
		return workflow.Grader{}, err
	}
	if !grader.Active || grader.Deleted {
		return workflow.Grader{}, errors.Newf("grader %s is deactivated", grader.Name).
			Component("api").
			Category(errors.CategoryAuthorization).
			Context("grader_id", id).
			Build()
	}
	return workflow.Grader{ID: grader.ID, Name: grader.Name, Level: grader.Level}, nil
}

// Shutdown stops the echo server within the given timeout.
func (c *Controller) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.Echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
