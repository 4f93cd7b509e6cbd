// Package parse turns a registered artifact into canonical facts: it
// detects the format, runs the pure parser, resolves entity and metric
// identities, and writes the snapshot, fact, and provenance rows in one
// transaction.
package parse

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/estado-transparente/transparencia-cli/internal/db"
	"github.com/estado-transparente/transparencia-cli/internal/fault"
	"github.com/estado-transparente/transparencia-cli/internal/model"
)

// Resolver maps natural keys to entity and metric ids, creating rows on
// first sight. Lookups are cached for the lifetime of one parse run, so a
// file that mentions the same ministry a thousand times costs one query.
// The first display name seen for a key wins; later spellings resolve to
// the same row without updating it.
type Resolver struct {
	q        db.Querier
	entities map[string]uuid.UUID
	metrics  map[string]uuid.UUID
}

// NewResolver creates a Resolver that reads and writes through q, which
// may be a transaction.
func NewResolver(q db.Querier) *Resolver {
	return &Resolver{
		q:        q,
		entities: make(map[string]uuid.UUID),
		metrics:  make(map[string]uuid.UUID),
	}
}

// Entity resolves a natural key to an entity id, inserting a new entity
// when the key has never been seen.
func (r *Resolver) Entity(ctx context.Context, key, name, entityType string) (uuid.UUID, error) {
	if id, ok := r.entities[key]; ok {
		return id, nil
	}
	id, err := r.resolve(ctx, resolveSpec{
		table:    "entities",
		idCol:    "entity_id",
		extraCol: "entity_type",
		key:      key,
		name:     name,
		extra:    entityType,
	})
	if err != nil {
		return uuid.Nil, err
	}
	r.entities[key] = id
	return id, nil
}

// Metric resolves a natural key to a metric id, inserting a new metric
// when the key has never been seen.
func (r *Resolver) Metric(ctx context.Context, key, name, unit string) (uuid.UUID, error) {
	if id, ok := r.metrics[key]; ok {
		return id, nil
	}
	id, err := r.resolve(ctx, resolveSpec{
		table:    "metrics",
		idCol:    "metric_id",
		extraCol: "unit",
		key:      key,
		name:     name,
		extra:    unit,
	})
	if err != nil {
		return uuid.Nil, err
	}
	r.metrics[key] = id
	return id, nil
}

type resolveSpec struct {
	table    string
	idCol    string
	extraCol string
	key      string
	name     string
	extra    string
}

// resolve looks the key up, and on a miss inserts with ON CONFLICT DO
// NOTHING and re-selects. The conflict clause makes concurrent parse runs
// converge on one row per key instead of failing on the unique index.
func (r *Resolver) resolve(ctx context.Context, spec resolveSpec) (uuid.UUID, error) {
	selectSQL := `SELECT ` + spec.idCol + ` FROM ` + spec.table + ` WHERE natural_key = $1`

	var id uuid.UUID
	err := r.q.QueryRow(ctx, selectSQL, spec.key).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fault.Wrapf(fault.KindStorage, err, "resolver: look up %s %q", spec.table, spec.key)
	}

	_, err = r.q.Exec(ctx,
		`INSERT INTO `+spec.table+` (`+spec.idCol+`, natural_key, display_name, `+spec.extraCol+`)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (natural_key) DO NOTHING`,
		uuid.New(), spec.key, spec.name, spec.extra,
	)
	if err != nil {
		return uuid.Nil, fault.Wrapf(fault.KindStorage, err, "resolver: insert %s %q", spec.table, spec.key)
	}

	if err := r.q.QueryRow(ctx, selectSQL, spec.key).Scan(&id); err != nil {
		return uuid.Nil, fault.Wrapf(fault.KindStorage, err, "resolver: re-select %s %q", spec.table, spec.key)
	}
	return id, nil
}

// ResolveAll resolves every candidate's entity and metric, returning facts
// ready for insertion (without snapshot ids).
func (r *Resolver) ResolveAll(ctx context.Context, candidates []model.FactCandidate) ([]model.Fact, error) {
	facts := make([]model.Fact, 0, len(candidates))
	for _, c := range candidates {
		entityID, err := r.Entity(ctx, c.EntityKey, c.EntityName, c.EntityType)
		if err != nil {
			return nil, err
		}
		metricID, err := r.Metric(ctx, c.MetricKey, c.MetricName, c.MetricUnit)
		if err != nil {
			return nil, err
		}
		facts = append(facts, model.Fact{
			ID:          uuid.New(),
			EntityID:    entityID,
			MetricID:    metricID,
			PeriodStart: c.PeriodStart,
			PeriodEnd:   c.PeriodEnd,
			Value:       c.Value,
			Unit:        c.MetricUnit,
			Dims:        c.Dims,
		})
	}
	return facts, nil
}
