package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/estado-transparente/transparencia-cli/internal/blob"
	"github.com/estado-transparente/transparencia-cli/internal/model"
	"github.com/estado-transparente/transparencia-cli/internal/parse"
	"github.com/estado-transparente/transparencia-cli/internal/registry"
)

var parseCmd = &cobra.Command{
	Use:   "parse [artifact-id]",
	Short: "Parse an artifact into facts",
	Long:  "Parses one artifact by id, or every pending artifact with --pending. Each successful parse writes a snapshot of facts with per-fact provenance.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pending, _ := cmd.Flags().GetBool("pending")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		force, _ := cmd.Flags().GetBool("force")

		if len(args) == 0 && !pending {
			return eris.New("parse: pass an artifact id or --pending")
		}
		if len(args) == 1 && pending {
			return eris.New("parse: an artifact id and --pending are mutually exclusive")
		}

		pool, err := initPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		reg := registry.New(pool)
		runner := parse.NewRunner(pool, reg, registry.NewJobLog(pool), blob.NewFSStore(cfg.Blob.Dir))
		opts := parse.Options{DryRun: dryRun, Force: force}

		if len(args) == 1 {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return eris.Wrap(err, "parse: invalid artifact id")
			}
			summary, err := runner.Run(ctx, id, opts)
			if err != nil {
				return err
			}
			printParseSummary(summary)
			return nil
		}

		artifacts, err := reg.List(ctx, registry.ListFilter{Status: model.ParsePending})
		if err != nil {
			return err
		}
		if len(artifacts) == 0 {
			fmt.Fprintln(os.Stderr, "No pending artifacts.")
			return nil
		}

		failed := 0
		for _, a := range artifacts {
			summary, err := runner.Run(ctx, a.ID, opts)
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "%s: %v\n", a.ID, err)
				continue
			}
			printParseSummary(summary)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d artifacts failed to parse", failed, len(artifacts))
		}
		return nil
	},
}

func printParseSummary(s *parse.Summary) {
	switch {
	case s.Skipped:
		fmt.Fprintf(os.Stderr, "%s: already parsed, skipped (use --force to re-parse)\n", s.ArtifactID)
	case s.DryRun:
		fmt.Fprintf(os.Stderr, "%s: dry run, %d facts parsed (%s)\n", s.ArtifactID, s.FactsParsed, s.Format)
	default:
		fmt.Fprintf(os.Stderr, "%s: %d facts written, snapshot %s (%s)\n",
			s.ArtifactID, s.FactsWritten, s.SnapshotID, s.Format)
	}
}

func init() {
	parseCmd.Flags().Bool("pending", false, "parse every artifact whose parse status is pending")
	parseCmd.Flags().Bool("dry-run", false, "parse and report without writing facts")
	parseCmd.Flags().Bool("force", false, "re-parse even when the artifact is already parsed")

	rootCmd.AddCommand(parseCmd)
}
