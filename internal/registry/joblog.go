package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/estado-transparente/transparencia-cli/internal/db"
	"github.com/estado-transparente/transparencia-cli/internal/fault"
	"github.com/estado-transparente/transparencia-cli/internal/model"
)

// JobLog provides append-only access to the job_runs audit trail. A run is
// opened before the work starts and closed exactly once with its outcome.
type JobLog struct {
	pool db.Pool
}

// NewJobLog creates a JobLog backed by the given pool.
func NewJobLog(pool db.Pool) *JobLog {
	return &JobLog{pool: pool}
}

// Start opens a running job run and returns its id.
func (l *JobLog) Start(ctx context.Context, component, sourceID string, detail map[string]any) (uuid.UUID, error) {
	id := uuid.New()
	detailJSON, err := marshalDetail(detail)
	if err != nil {
		return uuid.Nil, err
	}

	_, err = l.pool.Exec(ctx,
		`INSERT INTO job_runs (job_run_id, component, source_id, status, started_at, detail)
		 VALUES ($1, $2, $3, 'running', now(), $4)`,
		id, component, sourceID, detailJSON,
	)
	if err != nil {
		return uuid.Nil, fault.Wrapf(fault.KindStorage, err, "joblog: start %s run for %s", component, sourceID)
	}
	return id, nil
}

// Complete closes a run as ok, merging extra detail into the existing one.
func (l *JobLog) Complete(ctx context.Context, id uuid.UUID, detail map[string]any) error {
	return l.finish(ctx, id, model.RunOK, "", detail)
}

// Fail closes a run as failed, preserving the error text for operators.
func (l *JobLog) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	return l.finish(ctx, id, model.RunFailed, errMsg, nil)
}

// Partial closes a batch run where some URLs succeeded and others failed.
func (l *JobLog) Partial(ctx context.Context, id uuid.UUID, errMsg string, detail map[string]any) error {
	return l.finish(ctx, id, model.RunPartial, errMsg, detail)
}

func (l *JobLog) finish(ctx context.Context, id uuid.UUID, status model.RunStatus, errMsg string, detail map[string]any) error {
	detailJSON, err := marshalDetail(detail)
	if err != nil {
		return err
	}
	var errVal *string
	if errMsg != "" {
		errVal = &errMsg
	}

	_, err = l.pool.Exec(ctx,
		`UPDATE job_runs
		 SET status = $2, finished_at = now(), error = $3, detail = detail || $4
		 WHERE job_run_id = $1`,
		id, string(status), errVal, detailJSON,
	)
	if err != nil {
		return fault.Wrapf(fault.KindStorage, err, "joblog: finish run %s as %s", id, status)
	}
	return nil
}

// List returns job runs most recent first.
func (l *JobLog) List(ctx context.Context, limit int) ([]model.JobRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx,
		`SELECT job_run_id, component, source_id, status, started_at, finished_at, detail, error
		 FROM job_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fault.Wrap(fault.KindStorage, err, "joblog: list runs")
	}
	defer rows.Close()

	var runs []model.JobRun
	for rows.Next() {
		var run model.JobRun
		var status string
		var finishedAt *time.Time
		var errStr *string
		var detailJSON []byte
		if err := rows.Scan(&run.ID, &run.Component, &run.SourceID, &status,
			&run.StartedAt, &finishedAt, &detailJSON, &errStr); err != nil {
			return nil, fault.Wrap(fault.KindStorage, err, "joblog: scan run")
		}
		run.Status = model.RunStatus(status)
		run.FinishedAt = finishedAt
		if errStr != nil {
			run.Error = *errStr
		}
		if detailJSON != nil {
			_ = json.Unmarshal(detailJSON, &run.Detail)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func marshalDetail(detail map[string]any) ([]byte, error) {
	if detail == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return nil, fault.Wrap(fault.KindStorage, err, "joblog: marshal detail")
	}
	return data, nil
}
