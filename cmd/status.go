package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/estado-transparente/transparencia-cli/internal/model"
	"github.com/estado-transparente/transparencia-cli/internal/registry"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := initPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		counts, err := registry.New(pool).StatusCounts(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PARSE STATUS\tARTIFACTS")
		for _, status := range []model.ParseStatus{model.ParsePending, model.ParseOK, model.ParseFailed} {
			fmt.Fprintf(tw, "%s\t%d\n", status, counts[status])
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		runs, err := registry.NewJobLog(pool).List(ctx, 50)
		if err != nil {
			return err
		}
		var failed []model.JobRun
		for _, r := range runs {
			if r.Status == model.RunFailed || r.Status == model.RunPartial {
				failed = append(failed, r)
			}
			if len(failed) == 5 {
				break
			}
		}
		if len(failed) > 0 {
			fmt.Fprintln(os.Stdout)
			fmt.Fprintln(os.Stdout, "Recent failures:")
			formatRunsList(os.Stdout, failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
