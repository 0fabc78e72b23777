package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gradehaus/gradeflow/internal/datastore"
	"github.com/gradehaus/gradeflow/internal/workflow"
	"github.com/gradehaus/gradeflow/internal/workqueue"
)

// ItemGradeRequest is one item's grade payload in a submit or finalize call.
type ItemGradeRequest struct {
	ItemID                     uint     `json:"itemId"`
	Centering                  *float64 `json:"centering,omitempty"`
	Corners                    *float64 `json:"corners,omitempty"`
	Edges                      *float64 `json:"edges,omitempty"`
	Surface                    *float64 `json:"surface,omitempty"`
	Auto                       *float64 `json:"auto,omitempty"`
	MinGrade                   *float64 `json:"minGrade,omitempty"`
	FinalGrade                 *float64 `json:"finalGrade,omitempty"`
	CannotGrade                bool     `json:"cannotGrade,omitempty"`
	ServiceUnavailable         bool     `json:"serviceUnavailable,omitempty"`
	ServiceUnavailableComments string   `json:"serviceUnavailableComments,omitempty"`
	Deactivate                 bool     `json:"deactivate,omitempty"`
	Notes                      string   `json:"notes,omitempty"`
	Comment                    string   `json:"comment,omitempty"`
	FrontImgTags               string   `json:"frontImgTags,omitempty"`
	BackImgTags                string   `json:"backImgTags,omitempty"`
}

// GradeBatchRequest is the submit/finalize request body.
type GradeBatchRequest struct {
	GraderID uint               `json:"graderId"`
	Items    []ItemGradeRequest `json:"items"`
}

func (r *GradeBatchRequest) inputs() []workflow.ItemGradeInput {
	inputs := make([]workflow.ItemGradeInput, 0, len(r.Items))
	for i := range r.Items {
		item := &r.Items[i]
		inputs = append(inputs, workflow.ItemGradeInput{
			ItemID:                     item.ItemID,
			Centering:                  item.Centering,
			Corners:                    item.Corners,
			Edges:                      item.Edges,
			Surface:                    item.Surface,
			Auto:                       item.Auto,
			MinGrade:                   item.MinGrade,
			FinalGrade:                 item.FinalGrade,
			CannotGrade:                item.CannotGrade,
			ServiceUnavailable:         item.ServiceUnavailable,
			ServiceUnavailableComments: item.ServiceUnavailableComments,
			Deactivate:                 item.Deactivate,
			Notes:                      item.Notes,
			Comment:                    item.Comment,
			ImageTags:                  workflow.ImageTags{Front: item.FrontImgTags, Back: item.BackImgTags},
		})
	}
	return inputs
}

// SubmitGrades handles POST /api/v1/grading/submit.
func (c *Controller) SubmitGrades(ctx echo.Context) error {
	var req GradeBatchRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, validationError("invalid request body"), "failed to parse submit request")
	}
	if len(req.Items) == 0 {
		return c.HandleError(ctx, validationError("no items in request"), "failed to submit grades")
	}
	grader, err := c.resolveGrader(req.GraderID)
	if err != nil {
		return c.HandleError(ctx, err, "failed to resolve grader")
	}
	if err := c.Workflow.SubmitGrades(ctx.Request().Context(), grader, req.inputs()); err != nil {
		return c.HandleError(ctx, err, "failed to submit grades")
	}
	return ctx.JSON(http.StatusOK, map[string]any{"status": "submitted", "items": len(req.Items)})
}

// FinalizeGrades handles POST /api/v1/grading/finalize.
func (c *Controller) FinalizeGrades(ctx echo.Context) error {
	var req GradeBatchRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, validationError("invalid request body"), "failed to parse finalize request")
	}
	if len(req.Items) == 0 {
		return c.HandleError(ctx, validationError("no items in request"), "failed to finalize grades")
	}
	grader, err := c.resolveGrader(req.GraderID)
	if err != nil {
		return c.HandleError(ctx, err, "failed to resolve grader")
	}
	if err := c.Workflow.FinalizeGrades(ctx.Request().Context(), grader, req.inputs()); err != nil {
		return c.HandleError(ctx, err, "failed to finalize grades")
	}
	return ctx.JSON(http.StatusOK, map[string]any{"status": "finalized", "items": len(req.Items)})
}

// AssignRequest is the assign request body.
type AssignRequest struct {
	Assignments []struct {
		JobNumbers []string `json:"jobNumbers"`
		GraderID   uint     `json:"graderId"`
	} `json:"assignments"`
}

// AssignGraders handles POST /api/v1/grading/assign.
func (c *Controller) AssignGraders(ctx echo.Context) error {
	var req AssignRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, validationError("invalid request body"), "failed to parse assign request")
	}
	if len(req.Assignments) == 0 {
		return c.HandleError(ctx, validationError("no assignments in request"), "failed to assign graders")
	}
	assignments := make([]workflow.Assignment, 0, len(req.Assignments))
	for _, a := range req.Assignments {
		assignments = append(assignments, workflow.Assignment{JobNumbers: a.JobNumbers, GraderID: a.GraderID})
	}
	if err := c.Workflow.AssignGraders(ctx.Request().Context(), assignments); err != nil {
		return c.HandleError(ctx, err, "failed to assign graders")
	}
	return ctx.JSON(http.StatusOK, map[string]any{"status": "assigned"})
}

// ComputeResponse carries a computed final grade and its derivation.
type ComputeResponse struct {
	Grade       string `json:"grade"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	RoundNumber string `json:"roundNumber"`
	Bump        string `json:"bump"`
	BumpCount   int    `json:"bumpCount"`
	Takeoff     string `json:"takeoff"`
}

// ComputeGrade handles GET /api/v1/grading/compute. The four sub-grades
// come in as query parameters.
func (c *Controller) ComputeGrade(ctx echo.Context) error {
	result, err := c.Scorer.Compute(
		ctx.QueryParam("centering"),
		ctx.QueryParam("corners"),
		ctx.QueryParam("edges"),
		ctx.QueryParam("surface"),
	)
	if err != nil {
		return c.HandleError(ctx, err, "failed to compute grade")
	}
	return ctx.JSON(http.StatusOK, ComputeResponse{
		Grade:       result.Grade.String(),
		Description: result.Description,
		Category:    string(result.Category),
		RoundNumber: result.RoundNumber.String(),
		Bump:        result.Bump.String(),
		BumpCount:   result.BumpCount,
		Takeoff:     result.Takeoff.String(),
	})
}

// ListWorkQueue handles GET /api/v1/grading/workqueues.
func (c *Controller) ListWorkQueue(ctx echo.Context) error {
	query := workqueue.Query{
		DueDate: ctx.QueryParam("dueDate"),
	}
	if raw := ctx.QueryParam("graderId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return c.HandleError(ctx, validationError("graderId must be a number"), "failed to list work queue")
		}
		graderID := uint(id)
		query.GraderID = &graderID
	}
	if raw := ctx.QueryParam("serviceLevelId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return c.HandleError(ctx, validationError("serviceLevelId must be a number"), "failed to list work queue")
		}
		levelID := uint(id)
		query.ServiceLevelID = &levelID
	}
	for _, status := range ctx.QueryParams()["status"] {
		query.Statuses = append(query.Statuses, datastore.JobStatus(status))
	}
	if raw := ctx.QueryParam("page"); raw != "" {
		query.Page, _ = strconv.Atoi(raw)
	}
	if raw := ctx.QueryParam("pageSize"); raw != "" {
		query.PageSize, _ = strconv.Atoi(raw)
	}

	page, err := c.Queue.List(query)
	if err != nil {
		return c.HandleError(ctx, err, "failed to list work queue")
	}
	return ctx.JSON(http.StatusOK, page)
}

// ListIssueCategories handles GET /api/v1/grading/issue-categories.
func (c *Controller) ListIssueCategories(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, workflow.IssueCategories())
}
