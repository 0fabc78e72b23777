package workflow

import (
	"context"

	"github.com/gradehaus/gradeflow/internal/datastore"
	"github.com/gradehaus/gradeflow/internal/errors"
)

// AssignGraders assigns each batch of jobs to a grader and moves them into
// GRADING. Assigning a job that already progressed past GRADING is an
// explicit reopen and is logged as such.
func (e *Engine) AssignGraders(ctx context.Context, assignments []Assignment) error {
	for _, assignment := range assignments {
		grader, err := e.store.GetGrader(assignment.GraderID)
		if err != nil && !errors.IsNotFound(err) {
			return err
		}
		if errors.IsNotFound(err) || !grader.Active || grader.Deleted {
			return errors.Newf("selected assignee doesn't exist or is deactivated, change the selection and try again").
				Component("workflow").
				Category(errors.CategoryAuthorization).
				Context("grader_id", assignment.GraderID).
				Build()
		}

		jobs, err := e.store.GetJobsByNumbers(assignment.JobNumbers)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			continue
		}

		updates := make([]*datastore.Job, 0, len(jobs))
		for i := range jobs {
			job := &jobs[i]
			if !job.Status.CanAdvanceTo(datastore.JobGrading) && job.Status != datastore.JobGrading {
				e.logger.Warn("reopening job for regrading",
					"job_no", job.JobNo, "from_status", job.Status, "grader", grader.Name)
			}
			id := grader.ID
			job.GraderID = &id
			job.Status = datastore.JobGrading
			updates = append(updates, job)
		}
		if err := e.store.SaveJobs(updates); err != nil {
			return err
		}
		e.logger.Info("jobs assigned", "grader", grader.Name, "jobs", len(updates))
	}
	return nil
}

// IssueCategory is one gradeable-issue bucket graders can tag.
type IssueCategory struct {
	Category      string   `json:"category"`
	SubCategories []string `json:"subCategories"`
}

// IssueCategories returns the static category list graders pick from when
// flagging problems on a card.
func IssueCategories() []IssueCategory {
	return []IssueCategory{
		{Category: "Centering", SubCategories: []string{"Off-Center Front", "Off-Center Back", "Tilt", "Miscut"}},
		{Category: "Corners", SubCategories: []string{"Soft Corner", "Corner Ding", "Fraying"}},
		{Category: "Edges", SubCategories: []string{"Chipping", "Rough Cut", "Edge Wear"}},
		{Category: "Surface", SubCategories: []string{"Scratch", "Print Line", "Stain", "Crease", "Wax Residue"}},
		{Category: "Authenticity", SubCategories: []string{"Suspected Trim", "Suspected Recolor", "Counterfeit Concern"}},
		{Category: "Handling", SubCategories: []string{"Wrong Holder", "Label Mismatch", "Damaged In Transit"}},
	}
}
