package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show recent prepare runs",
		Long: `List the prepare runs recorded for this project, newest first, or the
per-requirement outcomes of one run when a run ID is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDeps(cmd.Context())
			defer d.close()

			if d.history == nil {
				return fmt.Errorf("no run history available in this project")
			}

			if len(args) == 1 {
				return showRun(cmd, d, args[0])
			}

			runs, err := d.history.ListRuns(cmd.Context(), projectDir, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No prepare runs recorded.")
				return nil
			}
			for _, run := range runs {
				outcome := "failed"
				if run.Success {
					outcome = "succeeded"
				}
				fmt.Printf("%s  %s  env=%s  %s\n",
					run.StartedAt.Format("2006-01-02 15:04:05"), run.ID, run.EnvironmentName, outcome)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")

	return cmd
}

func showRun(cmd *cobra.Command, d *deps, runID string) error {
	run, err := d.history.GetRun(cmd.Context(), runID)
	if err != nil {
		return err
	}
	results, err := d.history.ResultsForRun(cmd.Context(), runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s (started %s)\n", run.ID, run.StartedAt.Format("2006-01-02 15:04:05"))
	for _, result := range results {
		mark := "✗"
		if result.Success {
			mark = "✓"
		}
		fmt.Printf("  %s %s (%s): %s\n", mark, result.EnvVar, result.Kind, result.Description)
		if result.Errors != "" {
			fmt.Printf("      %s\n", result.Errors)
		}
	}
	return nil
}
