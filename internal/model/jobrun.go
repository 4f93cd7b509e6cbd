package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the outcome of a job run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunOK      RunStatus = "ok"
	RunFailed  RunStatus = "failed"
	// RunPartial marks a batch where some items succeeded and some failed.
	RunPartial RunStatus = "partial"
)

// JobRun is one audit-trail entry: a collector or parser invocation with
// its outcome and free-form detail.
type JobRun struct {
	ID         uuid.UUID
	Component  string
	SourceID   string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	Detail     map[string]any
	Error      string
}
