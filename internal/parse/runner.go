package parse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/estado-transparente/transparencia-cli/internal/blob"
	"github.com/estado-transparente/transparencia-cli/internal/db"
	"github.com/estado-transparente/transparencia-cli/internal/dialect"
	"github.com/estado-transparente/transparencia-cli/internal/fault"
	"github.com/estado-transparente/transparencia-cli/internal/model"
	"github.com/estado-transparente/transparencia-cli/internal/registry"
)

// Options control a single parse run.
type Options struct {
	// DryRun parses and reports but writes nothing.
	DryRun bool
	// Force re-parses an artifact whose parse_status is already ok,
	// producing a new snapshot alongside the old facts.
	Force bool
}

// Summary reports what one parse run did.
type Summary struct {
	ArtifactID   uuid.UUID
	SnapshotID   uuid.UUID
	Format       string
	FactsParsed  int
	FactsWritten int
	Skipped      bool
	DryRun       bool
}

// Runner executes parse runs end to end: load, detect, parse, resolve,
// write.
type Runner struct {
	pool     db.Pool
	registry *registry.Registry
	joblog   *registry.JobLog
	blobs    blob.Store
}

// NewRunner wires a Runner from its collaborators.
func NewRunner(pool db.Pool, reg *registry.Registry, joblog *registry.JobLog, blobs blob.Store) *Runner {
	return &Runner{pool: pool, registry: reg, joblog: joblog, blobs: blobs}
}

// Run parses one artifact. Every fact row, its provenance, the snapshot,
// and the artifact's ok flip commit in one transaction: a failed parse
// leaves nothing behind except the failed status and the job run entry.
func (r *Runner) Run(ctx context.Context, artifactID uuid.UUID, opts Options) (*Summary, error) {
	log := zap.L().With(zap.String("component", "parser"), zap.String("artifact_id", artifactID.String()))

	artifact, err := r.registry.Get(ctx, artifactID)
	if err != nil {
		return nil, err
	}

	if artifact.ParseStatus == model.ParseOK && !opts.Force {
		log.Info("artifact already parsed, skipping")
		return &Summary{ArtifactID: artifactID, Skipped: true}, nil
	}

	// A dry run leaves the store completely untouched, so it gets no
	// audit row either, success or failure.
	var runID uuid.UUID
	if !opts.DryRun {
		runID, err = r.joblog.Start(ctx, "parser", artifact.SourceID, map[string]any{
			"artifact_id": artifactID.String(),
		})
		if err != nil {
			return nil, err
		}
	}

	summary, err := r.run(ctx, artifact, opts, log)
	if err != nil {
		if !opts.DryRun {
			if statusErr := r.registry.SetParseStatus(ctx, r.pool, artifactID, model.ParseFailed, err.Error()); statusErr != nil {
				log.Error("recording failed parse status", zap.Error(statusErr))
			}
			if logErr := r.joblog.Fail(ctx, runID, err.Error()); logErr != nil {
				log.Error("closing job run", zap.Error(logErr))
			}
		}
		return nil, err
	}

	if !opts.DryRun {
		detail := map[string]any{
			"facts_parsed":  summary.FactsParsed,
			"facts_created": summary.FactsWritten,
			"snapshot_id":   summary.SnapshotID.String(),
		}
		if err := r.joblog.Complete(ctx, runID, detail); err != nil {
			log.Error("closing job run", zap.Error(err))
		}
	}
	return summary, nil
}

func (r *Runner) run(ctx context.Context, artifact *model.Artifact, opts Options, log *zap.Logger) (*Summary, error) {
	data, err := r.blobs.Get(artifact.StorageLocation)
	if err != nil {
		return nil, err
	}

	format := dialect.Detect(artifact.MimeType, artifact.StorageLocation, artifact.SourceID)
	log.Info("parsing artifact",
		zap.String("source_id", artifact.SourceID),
		zap.String("format", format.String()),
		zap.Int("size_bytes", len(data)))

	candidates, err := format.Parse(data, artifact.SourceID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fault.Errorf(fault.KindAmbiguity, "parse: artifact %s produced no facts", artifact.ID)
	}

	summary := &Summary{
		ArtifactID:  artifact.ID,
		Format:      format.String(),
		FactsParsed: len(candidates),
		DryRun:      opts.DryRun,
	}
	if opts.DryRun {
		log.Info("dry run, not writing", zap.Int("facts_parsed", len(candidates)))
		return summary, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fault.Wrap(fault.KindStorage, err, "parse: begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	snapshotID := uuid.New()
	note := fmt.Sprintf("parse of %s (%s)", artifact.SourceID, format)
	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshots (snapshot_id, note) VALUES ($1, $2)`,
		snapshotID, note,
	); err != nil {
		return nil, fault.Wrap(fault.KindStorage, err, "parse: insert snapshot")
	}

	resolver := NewResolver(tx)
	facts, err := resolver.ResolveAll(ctx, candidates)
	if err != nil {
		return nil, err
	}

	method := format.Method()
	for i, fact := range facts {
		dimsJSON, err := marshalDims(fact.Dims)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO facts
			 (fact_id, snapshot_id, entity_id, metric_id, period_start, period_end, value_num, unit, dims)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			fact.ID, snapshotID, fact.EntityID, fact.MetricID,
			fact.PeriodStart, fact.PeriodEnd, fact.Value, fact.Unit, dimsJSON,
		); err != nil {
			return nil, fault.Wrap(fault.KindStorage, err, "parse: insert fact")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO provenance (fact_id, artifact_id, location, method)
			 VALUES ($1, $2, $3, $4)`,
			fact.ID, artifact.ID, candidates[i].Location, method,
		); err != nil {
			return nil, fault.Wrap(fault.KindStorage, err, "parse: insert provenance")
		}
	}

	if err := r.registry.SetParseStatus(ctx, tx, artifact.ID, model.ParseOK, ""); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Wrap(fault.KindStorage, err, "parse: commit")
	}

	summary.SnapshotID = snapshotID
	summary.FactsWritten = len(facts)
	log.Info("facts written",
		zap.Int("facts_created", len(facts)),
		zap.String("snapshot_id", snapshotID.String()))
	return summary, nil
}

func marshalDims(dims map[string]string) ([]byte, error) {
	if dims == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(dims)
	if err != nil {
		return nil, fault.Wrap(fault.KindStorage, err, "parse: marshal dims")
	}
	return data, nil
}
