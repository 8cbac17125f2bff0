package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/core/errs"
	"github.com/orbit-sync/transferd/internal/core/logger"
	"github.com/orbit-sync/transferd/internal/core/model"
	"github.com/orbit-sync/transferd/internal/core/utils"
)

// JobStore persists model.Job rows.
type JobStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db, logger: logger.Named("store.job")}
}

// Create inserts a new job, defaulting CreatedAt and Status if unset.
func (s *JobStore) Create(ctx context.Context, j *model.Job) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = model.JobStatusPending
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}
	if j.Type == model.JobTypeScheduled {
		if err := utils.ValidateCronSchedule(j.CronExpression); err != nil {
			return errors.Join(errs.ErrInvalidInput, err)
		}
	}
	cfg, err := json.Marshal(j.Config)
	if err != nil {
		return errors.Join(errs.ErrInvalidInput, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs
			(id, type, status, config, priority, retries, max_retries, cron_expression,
			 is_active, next_run_at, last_run_at, total_runs, files_transferred,
			 bytes_transferred, error, created_at, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID.String(), string(j.Type), string(j.Status), string(cfg), j.Priority,
		j.Retries, j.MaxRetries, j.CronExpression, boolToInt(j.IsActive),
		nullTime(j.NextRunAt), nullTime(j.LastRunAt), j.TotalRuns,
		j.FilesTransferred, j.BytesTransferred, j.Error, j.CreatedAt,
		nullTime(j.StartedAt), nullTime(j.EndedAt),
	)
	if err != nil {
		return errors.Join(errs.ErrSystem, err)
	}
	return nil
}

// Get fetches a job by ID.
func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, jobSelect+` WHERE id = ?`, id.String())
	return scanJob(row)
}

// ListDueScheduled returns active scheduled jobs whose NextRunAt has
// elapsed, the set the scheduler polls each wake interval.
func (s *JobStore) ListDueScheduled(ctx context.Context, now time.Time) ([]*model.Job, error) {
	rows, err := s.db.QueryContext(ctx, jobSelect+`
		WHERE type = ? AND is_active = 1 AND next_run_at IS NOT NULL AND next_run_at <= ?`,
		string(model.JobTypeScheduled), now)
	if err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ListStuckRunning returns every job still marked RUNNING, used at startup
// to recover jobs orphaned by a prior crash.
func (s *JobStore) ListStuckRunning(ctx context.Context) ([]*model.Job, error) {
	rows, err := s.db.QueryContext(ctx, jobSelect+` WHERE status = ?`, string(model.JobStatusRunning))
	if err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ResetStuckRunning marks every job still RUNNING as FAILED, for crash
// recovery at process startup: a process that died mid-transfer leaves its
// job's status stuck at RUNNING forever, since nothing else would ever
// mark it terminal.
func (s *JobStore) ResetStuckRunning(ctx context.Context) (int, error) {
	stuck, err := s.ListStuckRunning(ctx)
	if err != nil {
		return 0, err
	}
	for _, j := range stuck {
		if err := s.UpdateStatus(ctx, j.ID, model.JobStatusFailed, "interrupted by process restart"); err != nil {
			return 0, err
		}
	}
	return len(stuck), nil
}

// UpdateStatus transitions a job's status, stamping StartedAt/EndedAt where
// applicable and recording an error message.
func (s *JobStore) UpdateStatus(ctx context.Context, id uuid.UUID, status model.JobStatus, errMsg string) error {
	now := time.Now()
	var startedAt, endedAt interface{}
	switch status {
	case model.JobStatusRunning:
		startedAt = now
	case model.JobStatusSuccess, model.JobStatusFailed, model.JobStatusCancelled:
		endedAt = now
	}

	query := `UPDATE jobs SET status = ?, error = ?`
	args := []interface{}{string(status), errMsg}
	if startedAt != nil {
		query += `, started_at = ?`
		args = append(args, startedAt)
	}
	if endedAt != nil {
		query += `, ended_at = ?`
		args = append(args, endedAt)
	}
	query += ` WHERE id = ?`
	args = append(args, id.String())

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Join(errs.ErrSystem, err)
	}
	return checkRowsAffected(res)
}

// UpdateStats sets the job's cumulative transfer counters.
func (s *JobStore) UpdateStats(ctx context.Context, id uuid.UUID, files, bytes int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET files_transferred = ?, bytes_transferred = ? WHERE id = ?`,
		files, bytes, id.String())
	if err != nil {
		return errors.Join(errs.ErrSystem, err)
	}
	return checkRowsAffected(res)
}

// RecordScheduleRun updates the scheduling bookkeeping on a Job of
// JobTypeScheduled right before its next execution Job is created.
func (s *JobStore) RecordScheduleRun(ctx context.Context, id uuid.UUID, lastRun, nextRun time.Time) error {
	var next interface{}
	if !nextRun.IsZero() {
		next = nextRun
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET last_run_at = ?, next_run_at = ?, total_runs = total_runs + 1
		WHERE id = ?`, lastRun, next, id.String())
	if err != nil {
		return errors.Join(errs.ErrSystem, err)
	}
	return checkRowsAffected(res)
}

const jobSelect = `
	SELECT id, type, status, config, priority, retries, max_retries, cron_expression,
	       is_active, next_run_at, last_run_at, total_runs, files_transferred,
	       bytes_transferred, error, created_at, started_at, ended_at
	FROM jobs`

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		idStr, jobType, status, cfgStr, cron, errMsg string
		priority, retries, maxRetries                int
		isActive                                      int
		nextRunAt, lastRunAt, startedAt, endedAt      sql.NullTime
		totalRuns, filesTransferred, bytesTransferred int64
		createdAt                                     time.Time
	)
	if err := row.Scan(&idStr, &jobType, &status, &cfgStr, &priority, &retries, &maxRetries,
		&cron, &isActive, &nextRunAt, &lastRunAt, &totalRuns, &filesTransferred,
		&bytesTransferred, &errMsg, &createdAt, &startedAt, &endedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, errors.Join(errs.ErrSystem, err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}
	var cfg model.JobConfig
	if err := json.Unmarshal([]byte(cfgStr), &cfg); err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}

	j := &model.Job{
		ID:               id,
		Type:             model.JobType(jobType),
		Status:           model.JobStatus(status),
		Config:           cfg,
		Priority:         priority,
		Retries:          retries,
		MaxRetries:       maxRetries,
		CronExpression:   cron,
		IsActive:         isActive != 0,
		TotalRuns:        totalRuns,
		FilesTransferred: filesTransferred,
		BytesTransferred: bytesTransferred,
		Error:            errMsg,
		CreatedAt:        createdAt,
	}
	if nextRunAt.Valid {
		j.NextRunAt = &nextRunAt.Time
	}
	if lastRunAt.Valid {
		j.LastRunAt = &lastRunAt.Time
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		j.EndedAt = &endedAt.Time
	}
	return j, nil
}

func scanJobs(rows *sql.Rows) ([]*model.Job, error) {
	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
