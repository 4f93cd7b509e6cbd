// Package registry provides relational access to the artifact registry and
// the job run audit trail.
package registry

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/estado-transparente/transparencia-cli/internal/db"
	"github.com/estado-transparente/transparencia-cli/internal/fault"
	"github.com/estado-transparente/transparencia-cli/internal/model"
)

const artifactColumns = `artifact_id, source_id, url, captured_at, content_digest,
	mime_type, size_bytes, storage_kind, storage_location, parse_status, parse_error`

// Registry reads and writes artifact rows.
type Registry struct {
	pool db.Pool
}

// New creates a Registry backed by the given pool.
func New(pool db.Pool) *Registry {
	return &Registry{pool: pool}
}

// FindByDigest returns the artifact with the given content digest, or nil
// if none exists. The digest is the dedup key: re-acquiring identical bytes
// resolves to this row.
func (r *Registry) FindByDigest(ctx context.Context, digest string) (*model.Artifact, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE content_digest = $1`,
		digest,
	)
	a, err := scanArtifact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fault.Wrapf(fault.KindStorage, err, "registry: find artifact by digest %s", digest)
	}
	return a, nil
}

// Get returns the artifact with the given id.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*model.Artifact, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE artifact_id = $1`,
		id,
	)
	a, err := scanArtifact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.Errorf(fault.KindStorage, "registry: artifact %s not found", id)
	}
	if err != nil {
		return nil, fault.Wrapf(fault.KindStorage, err, "registry: get artifact %s", id)
	}
	return a, nil
}

// Insert registers a new artifact with parse_status pending.
func (r *Registry) Insert(ctx context.Context, a *model.Artifact) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO artifacts
		 (artifact_id, source_id, url, captured_at, content_digest, mime_type,
		  size_bytes, storage_kind, storage_location, parse_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending')`,
		a.ID, a.SourceID, a.URL, a.CapturedAt, a.ContentDigest, a.MimeType,
		a.SizeBytes, a.StorageKind, a.StorageLocation,
	)
	if err != nil {
		return fault.Wrapf(fault.KindStorage, err, "registry: insert artifact %s", a.ID)
	}
	return nil
}

// SetParseStatus flips an artifact's parse status. It accepts a Querier so
// the ok flip can happen inside the fact-writing transaction.
func (r *Registry) SetParseStatus(ctx context.Context, q db.Querier, id uuid.UUID, status model.ParseStatus, parseError string) error {
	var errVal *string
	if parseError != "" {
		errVal = &parseError
	}
	_, err := q.Exec(ctx,
		`UPDATE artifacts SET parse_status = $2, parse_error = $3 WHERE artifact_id = $1`,
		id, string(status), errVal,
	)
	if err != nil {
		return fault.Wrapf(fault.KindStorage, err, "registry: set parse status of %s", id)
	}
	return nil
}

// ListFilter narrows List results.
type ListFilter struct {
	SourceID string
	Status   model.ParseStatus
	Limit    int
}

// List returns artifacts most recently captured first.
func (r *Registry) List(ctx context.Context, filter ListFilter) ([]model.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE 1=1`
	var args []any

	if filter.SourceID != "" {
		args = append(args, filter.SourceID)
		query += ` AND source_id = $1`
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND parse_status = $` + itoa(len(args))
	}
	query += ` ORDER BY captured_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fault.Wrap(fault.KindStorage, err, "registry: list artifacts")
	}
	defer rows.Close()

	var artifacts []model.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fault.Wrap(fault.KindStorage, err, "registry: scan artifact")
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, rows.Err()
}

// StatusCounts reports how many artifacts sit in each parse status.
func (r *Registry) StatusCounts(ctx context.Context) (map[model.ParseStatus]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT parse_status, count(*) FROM artifacts GROUP BY parse_status`,
	)
	if err != nil {
		return nil, fault.Wrap(fault.KindStorage, err, "registry: status counts")
	}
	defer rows.Close()

	counts := make(map[model.ParseStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fault.Wrap(fault.KindStorage, err, "registry: scan status count")
		}
		counts[model.ParseStatus(status)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*model.Artifact, error) {
	var a model.Artifact
	var status string
	var parseError *string
	err := row.Scan(
		&a.ID, &a.SourceID, &a.URL, &a.CapturedAt, &a.ContentDigest,
		&a.MimeType, &a.SizeBytes, &a.StorageKind, &a.StorageLocation,
		&status, &parseError,
	)
	if err != nil {
		return nil, err
	}
	a.ParseStatus = model.ParseStatus(status)
	if parseError != nil {
		a.ParseError = *parseError
	}
	return &a, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
