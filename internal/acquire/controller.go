// Package acquire implements the collector: it downloads source documents
// at a polite fixed rate, deduplicates them by content digest, and
// registers new artifacts for parsing.
package acquire

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/estado-transparente/transparencia-cli/internal/blob"
	"github.com/estado-transparente/transparencia-cli/internal/fetcher"
	"github.com/estado-transparente/transparencia-cli/internal/model"
	"github.com/estado-transparente/transparencia-cli/internal/registry"
)

// Options control a single acquisition.
type Options struct {
	// DryRun fetches and reports but registers nothing.
	DryRun bool
	// Force stores a new artifact even when the digest already exists.
	Force bool
}

// Result reports what one acquisition did.
type Result struct {
	ArtifactID uuid.UUID
	Digest     string
	SizeBytes  int64
	// Deduped is set when the bytes matched an existing artifact and no
	// new row was created.
	Deduped bool
	DryRun  bool
}

// Controller runs acquisitions end to end. One controller serializes all
// its downloads through a fixed-interval limiter so batch runs stay polite
// toward government portals.
type Controller struct {
	registry *registry.Registry
	joblog   *registry.JobLog
	blobs    blob.Store
	httpF    *fetcher.HTTPFetcher
	ftpF     *fetcher.FTPFetcher
	limiter  *rate.Limiter
}

// NewController wires a Controller. interval is the minimum delay between
// outbound requests.
func NewController(reg *registry.Registry, joblog *registry.JobLog, blobs blob.Store,
	httpF *fetcher.HTTPFetcher, ftpF *fetcher.FTPFetcher, interval time.Duration) *Controller {
	return &Controller{
		registry: reg,
		joblog:   joblog,
		blobs:    blobs,
		httpF:    httpF,
		ftpF:     ftpF,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// AcquireURL downloads one URL for a source and registers the result. The
// content digest is checked against the registry before anything is
// written; identical bytes resolve to the existing artifact.
func (c *Controller) AcquireURL(ctx context.Context, sourceID, url string, opts Options) (*Result, error) {
	log := zap.L().With(
		zap.String("component", "collector"),
		zap.String("source_id", sourceID),
		zap.String("url", url))

	var runID uuid.UUID
	if !opts.DryRun {
		var err error
		runID, err = c.joblog.Start(ctx, "collector", sourceID, map[string]any{"url": url})
		if err != nil {
			return nil, err
		}
	}

	result, err := c.acquire(ctx, sourceID, url, opts, log)
	if err != nil {
		if !opts.DryRun {
			if logErr := c.joblog.Fail(ctx, runID, err.Error()); logErr != nil {
				log.Error("closing job run", zap.Error(logErr))
			}
		}
		return nil, err
	}

	if !opts.DryRun {
		detail := map[string]any{"digest": result.Digest, "size_bytes": result.SizeBytes}
		if result.Deduped {
			detail["deduped"] = true
		} else {
			detail["artifact_id"] = result.ArtifactID.String()
		}
		if err := c.joblog.Complete(ctx, runID, detail); err != nil {
			log.Error("closing job run", zap.Error(err))
		}
	}
	return result, nil
}

func (c *Controller) acquire(ctx context.Context, sourceID, url string, opts Options, log *zap.Logger) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := fetcher.ForURL(url, c.httpF, c.ftpF).Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	digest := blob.Digest(resp.Body)
	log.Info("fetched document",
		zap.String("digest", digest),
		zap.Int("size_bytes", len(resp.Body)),
		zap.String("mime_type", resp.MimeType))

	if !opts.Force {
		existing, err := c.registry.FindByDigest(ctx, digest)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			log.Info("content unchanged, deduplicated",
				zap.String("artifact_id", existing.ID.String()))
			return &Result{
				ArtifactID: existing.ID,
				Digest:     digest,
				SizeBytes:  int64(len(resp.Body)),
				Deduped:    true,
				DryRun:     opts.DryRun,
			}, nil
		}
	}

	result := &Result{
		Digest:    digest,
		SizeBytes: int64(len(resp.Body)),
		DryRun:    opts.DryRun,
	}
	if opts.DryRun {
		log.Info("dry run, not storing")
		return result, nil
	}

	id := uuid.New()
	location, err := c.blobs.Put(id, resp.Body)
	if err != nil {
		return nil, err
	}

	artifact := &model.Artifact{
		ID:              id,
		SourceID:        sourceID,
		URL:             url,
		CapturedAt:      time.Now().UTC(),
		ContentDigest:   digest,
		MimeType:        resp.MimeType,
		SizeBytes:       int64(len(resp.Body)),
		StorageKind:     c.blobs.Kind(),
		StorageLocation: location,
	}
	if err := c.registry.Insert(ctx, artifact); err != nil {
		return nil, err
	}

	log.Info("artifact registered", zap.String("artifact_id", id.String()))
	result.ArtifactID = id
	return result, nil
}

// BatchOptions control a manifest-driven batch run.
type BatchOptions struct {
	// SourceID limits the batch to one manifest source. A disabled source
	// is still collected when targeted explicitly.
	SourceID string
	// Year limits the batch to manifest URLs for one year.
	Year   int
	DryRun bool
	Force  bool
}

// BatchSummary reports a batch run per source.
type BatchSummary struct {
	Acquired int
	Deduped  int
	Failed   int
	Skipped  int
}

// AcquireBatch walks the manifest sequentially and acquires every matching
// URL. Each source gets its own audit entry closed as ok, partial, or
// failed; one bad URL never aborts the rest of the batch.
func (c *Controller) AcquireBatch(ctx context.Context, m *Manifest, opts BatchOptions) (*BatchSummary, error) {
	log := zap.L().With(zap.String("component", "collector"))
	summary := &BatchSummary{}

	for _, src := range m.Sources {
		if opts.SourceID != "" && src.ID != opts.SourceID {
			continue
		}
		targeted := opts.SourceID == src.ID
		if !src.IsEnabled() && !targeted {
			log.Info("skipping disabled source", zap.String("source_id", src.ID))
			summary.Skipped++
			continue
		}
		if src.RequiresAPIKey {
			log.Warn("skipping source that requires an api key", zap.String("source_id", src.ID))
			summary.Skipped++
			continue
		}

		if err := c.acquireSource(ctx, src, opts, summary); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

func (c *Controller) acquireSource(ctx context.Context, src ManifestSource, opts BatchOptions, summary *BatchSummary) error {
	var runID uuid.UUID
	if !opts.DryRun {
		var err error
		runID, err = c.joblog.Start(ctx, "collector_batch", src.ID, map[string]any{"urls": len(src.URLs)})
		if err != nil {
			return err
		}
	}

	acquired, deduped, failed := 0, 0, 0
	var firstErr error
	for _, u := range src.URLs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if opts.Year != 0 && u.Year != 0 && u.Year != opts.Year {
			continue
		}

		// The source's batch run is the audit entry; per-URL outcomes go
		// into its detail rather than one run per URL.
		log := zap.L().With(
			zap.String("component", "collector"),
			zap.String("source_id", src.ID),
			zap.String("url", u.URL))
		res, err := c.acquire(ctx, src.ID, u.URL, Options{DryRun: opts.DryRun, Force: opts.Force}, log)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			zap.L().Error("batch url failed",
				zap.String("source_id", src.ID), zap.String("url", u.URL), zap.Error(err))
			continue
		}
		if res.Deduped {
			deduped++
		} else {
			acquired++
		}
	}

	summary.Acquired += acquired
	summary.Deduped += deduped
	summary.Failed += failed

	if opts.DryRun {
		return nil
	}

	detail := map[string]any{"acquired": acquired, "deduped": deduped, "failed": failed}
	switch {
	case failed == 0:
		return c.joblog.Complete(ctx, runID, detail)
	case acquired+deduped == 0:
		return c.joblog.Fail(ctx, runID, firstErr.Error())
	default:
		msg := fmt.Sprintf("%d of %d urls failed: %s", failed, acquired+deduped+failed, firstErr)
		return c.joblog.Partial(ctx, runID, msg, detail)
	}
}
