package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/estado-transparente/transparencia-cli/internal/acquire"
	"github.com/estado-transparente/transparencia-cli/internal/blob"
	"github.com/estado-transparente/transparencia-cli/internal/config"
	"github.com/estado-transparente/transparencia-cli/internal/db"
	"github.com/estado-transparente/transparencia-cli/internal/fetcher"
	"github.com/estado-transparente/transparencia-cli/internal/registry"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "transparencia",
	Short: "Civic transparency ingestion pipeline",
	Long:  "Collects Chilean public-finance disclosure documents, stores them content-addressed, and parses them into auditable facts with full provenance.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// initPool connects to the store and brings the schema up to date.
func initPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// newController wires the collector against a connected pool.
func newController(pool db.Pool) *acquire.Controller {
	return acquire.NewController(
		registry.New(pool),
		registry.NewJobLog(pool),
		blob.NewFSStore(cfg.Blob.Dir),
		fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.Acquire.UserAgent,
			Timeout:    cfg.Acquire.Timeout(),
			MaxRetries: cfg.Acquire.MaxRetries,
		}),
		fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: cfg.Acquire.Timeout()}),
		cfg.Acquire.RateLimitInterval(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
