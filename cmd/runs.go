package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/estado-transparente/transparencia-cli/internal/model"
	"github.com/estado-transparente/transparencia-cli/internal/registry"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the job run audit trail",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collector and parser runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := initPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := registry.NewJobLog(pool).List(ctx, limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

func formatRunsList(w io.Writer, runs []model.JobRun) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tCOMPONENT\tSOURCE\tSTATUS\tSTARTED\tDURATION\tERROR")
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(10 * time.Millisecond).String()
		}
		errMsg := r.Error
		if len(errMsg) > 60 {
			errMsg = errMsg[:57] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Component, r.SourceID, r.Status,
			r.StartedAt.Format("2006-01-02 15:04:05"), duration, errMsg)
	}
	_ = tw.Flush()
}

func init() {
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	rootCmd.AddCommand(runsCmd)
}
