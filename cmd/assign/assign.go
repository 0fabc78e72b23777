// Package assign implements the grader assignment command.
package assign

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gradehaus/gradeflow/internal/conf"
	"github.com/gradehaus/gradeflow/internal/crm"
	"github.com/gradehaus/gradeflow/internal/datastore"
	"github.com/gradehaus/gradeflow/internal/dispatch"
	"github.com/gradehaus/gradeflow/internal/labels"
	"github.com/gradehaus/gradeflow/internal/notify"
	"github.com/gradehaus/gradeflow/internal/score"
	"github.com/gradehaus/gradeflow/internal/workflow"
)

// Command creates the assign command.
func Command(settings *conf.Settings) *cobra.Command {
	var graderID uint
	var jobNumbers []string

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign jobs to a grader",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := datastore.New(settings)
			if store == nil {
				return fmt.Errorf("no database enabled in configuration")
			}
			if err := store.Open(); err != nil {
				return fmt.Errorf("opening datastore: %w", err)
			}
			defer func() { _ = store.Close() }()

			dispatcher := dispatch.New(
				settings.Dispatch.Workers,
				time.Duration(settings.Dispatch.DrainTimeout)*time.Second,
			)
			defer dispatcher.Close()

			engine := workflow.NewEngine(
				store, settings,
				score.NewEngine(score.NewStoreTables(store)),
				dispatcher,
				crm.NewClient(&settings.CRM),
				notify.NewClient(&settings.Notification),
				labels.NewGenerator(settings.Grading.Label),
			)

			assignment := workflow.Assignment{JobNumbers: jobNumbers, GraderID: graderID}
			if err := engine.AssignGraders(context.Background(), []workflow.Assignment{assignment}); err != nil {
				return err
			}
			fmt.Printf("Assigned %d job(s) to grader %d\n", len(jobNumbers), graderID)
			return nil
		},
	}

	cmd.Flags().UintVar(&graderID, "grader", 0, "Grader id to assign the jobs to")
	cmd.Flags().StringSliceVar(&jobNumbers, "jobs", nil, "Job numbers to assign")
	_ = cmd.MarkFlagRequired("grader")
	_ = cmd.MarkFlagRequired("jobs")

	return cmd
}
