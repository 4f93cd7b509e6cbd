package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/estado-transparente/transparencia-cli/internal/model"
	"github.com/estado-transparente/transparencia-cli/internal/registry"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Inspect the artifact registry",
}

var artifactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered artifacts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := initPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		sourceID, _ := cmd.Flags().GetString("source")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		artifacts, err := registry.New(pool).List(ctx, registry.ListFilter{
			SourceID: sourceID,
			Status:   model.ParseStatus(status),
			Limit:    limit,
		})
		if err != nil {
			return err
		}

		if len(artifacts) == 0 {
			fmt.Fprintln(os.Stderr, "No artifacts found.")
			return nil
		}

		formatArtifactsList(os.Stdout, artifacts)
		return nil
	},
}

func formatArtifactsList(w io.Writer, artifacts []model.Artifact) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ARTIFACT ID\tSOURCE\tCAPTURED\tSIZE\tSTATUS\tDIGEST")
	for _, a := range artifacts {
		digest := a.ContentDigest
		if len(digest) > 19 {
			digest = digest[:19] // "sha256:" plus 12 hex chars
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			a.ID, a.SourceID, a.CapturedAt.Format("2006-01-02 15:04"),
			a.SizeBytes, a.ParseStatus, digest)
	}
	_ = tw.Flush()
}

func init() {
	artifactsListCmd.Flags().String("source", "", "filter by source id")
	artifactsListCmd.Flags().String("status", "", "filter by parse status (pending, ok, failed)")
	artifactsListCmd.Flags().Int("limit", 50, "max number of artifacts to display")

	artifactsCmd.AddCommand(artifactsListCmd)
	rootCmd.AddCommand(artifactsCmd)
}
