// Package compute implements the one-shot final grade computation command.
package compute

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gradehaus/gradeflow/internal/conf"
	"github.com/gradehaus/gradeflow/internal/datastore"
	"github.com/gradehaus/gradeflow/internal/score"
)

// Command creates the compute command.
func Command(settings *conf.Settings) *cobra.Command {
	var centering, corners, edges, surface string

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute a final grade from the four sub-grades",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := datastore.New(settings)
			if store == nil {
				return fmt.Errorf("no database enabled in configuration")
			}
			if err := store.Open(); err != nil {
				return fmt.Errorf("opening datastore: %w", err)
			}
			defer func() { _ = store.Close() }()

			engine := score.NewEngine(score.NewStoreTables(store))
			result, err := engine.Compute(centering, corners, edges, surface)
			if err != nil {
				return err
			}

			fmt.Printf("Final grade:  %s", result.Grade.String())
			if result.Description != "" {
				fmt.Printf(" (%s)", result.Description)
			}
			fmt.Println()
			fmt.Printf("Category:     %s\n", result.Category)
			fmt.Printf("Round number: %s\n", result.RoundNumber.String())
			fmt.Printf("Bump:         %s (count %d)\n", result.Bump.String(), result.BumpCount)
			fmt.Printf("Takeoff:      %s\n", result.Takeoff.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&centering, "centering", "", "Centering sub-grade")
	cmd.Flags().StringVar(&corners, "corners", "", "Corners sub-grade")
	cmd.Flags().StringVar(&edges, "edges", "", "Edges sub-grade")
	cmd.Flags().StringVar(&surface, "surface", "", "Surface sub-grade")
	_ = cmd.MarkFlagRequired("centering")
	_ = cmd.MarkFlagRequired("corners")
	_ = cmd.MarkFlagRequired("edges")
	_ = cmd.MarkFlagRequired("surface")

	return cmd
}
