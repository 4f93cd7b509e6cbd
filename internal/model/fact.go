package model

import (
	"time"

	"github.com/google/uuid"
)

// Entity is a resolved organizational actor (ministry, service, budget
// partida). The natural key is the dedup identity; the display name is the
// first spelling seen.
type Entity struct {
	ID         uuid.UUID
	NaturalKey string
	Name       string
	Type       string
}

// Metric is a resolved measure definition.
type Metric struct {
	ID         uuid.UUID
	NaturalKey string
	Name       string
	Unit       string
}

// Snapshot groups the facts produced by one parse run. Facts are
// append-only; re-parsing an artifact creates a new snapshot rather than
// rewriting old rows.
type Snapshot struct {
	ID        uuid.UUID
	Note      string
	CreatedAt time.Time
}

// FactCandidate is a parser's output row before identity resolution: the
// entity and metric are still spelled out rather than referenced by id.
type FactCandidate struct {
	EntityKey   string
	EntityName  string
	EntityType  string
	MetricKey   string
	MetricName  string
	MetricUnit  string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Value       float64
	Location    string
	Dims        map[string]string
}

// Fact is a stored observation: one entity, one metric, one period, one
// value, tied to the snapshot that produced it.
type Fact struct {
	ID          uuid.UUID
	SnapshotID  uuid.UUID
	EntityID    uuid.UUID
	MetricID    uuid.UUID
	PeriodStart time.Time
	PeriodEnd   time.Time
	Value       float64
	Unit        string
	Dims        map[string]string
}

// Provenance records where inside the source file a fact came from and
// which parser produced it.
type Provenance struct {
	FactID     uuid.UUID
	ArtifactID uuid.UUID
	Location   string
	Method     string
}
