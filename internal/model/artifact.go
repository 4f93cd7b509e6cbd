// Package model holds the domain types shared across the pipeline:
// acquired artifacts, job runs, and the canonical fact shapes produced by
// parsing.
package model

import (
	"time"

	"github.com/google/uuid"
)

// ParseStatus is the lifecycle state of an artifact's parse.
type ParseStatus string

const (
	ParsePending ParseStatus = "pending"
	ParseOK      ParseStatus = "ok"
	ParseFailed  ParseStatus = "failed"
)

// Artifact is one acquired file: immutable bytes in blob storage plus the
// registry row describing where they came from. The content digest is the
// dedup key; two acquisitions of identical bytes share one artifact.
type Artifact struct {
	ID              uuid.UUID
	SourceID        string
	URL             string
	CapturedAt      time.Time
	ContentDigest   string
	MimeType        string
	SizeBytes       int64
	StorageKind     string
	StorageLocation string
	ParseStatus     ParseStatus
	ParseError      string
}
