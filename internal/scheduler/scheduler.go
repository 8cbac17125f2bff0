// Package scheduler implements the Scheduler (C7): it wakes on a fixed
// interval, finds SCHEDULED jobs whose next_run_at has elapsed, and clones
// each into a queued MANUAL execution job without disturbing the
// scheduled job's own recurring definition.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/core/logger"
	"github.com/orbit-sync/transferd/internal/core/model"
)

// JobStore is the subset of store.JobStore the scheduler needs.
type JobStore interface {
	ListDueScheduled(ctx context.Context, now time.Time) ([]*model.Job, error)
	RecordScheduleRun(ctx context.Context, id uuid.UUID, lastRun, nextRun time.Time) error
	Create(ctx context.Context, j *model.Job) error
}

// Queue is the subset of queue.Queue the scheduler needs.
type Queue interface {
	Enqueue(ctx context.Context, jobID uuid.UUID, priority int, delay time.Duration) error
}

// Scheduler polls JobStore.ListDueScheduled at WakeInterval and queues one
// MANUAL execution job per due SCHEDULED job.
type Scheduler struct {
	jobs  JobStore
	queue Queue

	wakeInterval time.Duration
	parser       cron.Parser
	logger       *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// Options configures a Scheduler.
type Options struct {
	Jobs         JobStore
	Queue        Queue
	WakeInterval time.Duration
}

// New creates a Scheduler. WakeInterval defaults to 60s, matching the
// check interval the job model's next_run_at bookkeeping is built around.
func New(opts Options) *Scheduler {
	if opts.WakeInterval <= 0 {
		opts.WakeInterval = 60 * time.Second
	}
	return &Scheduler{
		jobs:         opts.Jobs,
		queue:        opts.Queue,
		wakeInterval: opts.WakeInterval,
		parser:       cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:       logger.Named("scheduler"),
	}
}

// Start begins the wake loop. It is idempotent.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Warn("scheduler is already running")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
	s.logger.Info("scheduler started", zap.Duration("wake_interval", s.wakeInterval))
}

// Stop halts the wake loop and waits for the in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.running = false
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.wakeInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()
	due, err := s.jobs.ListDueScheduled(ctx, now)
	if err != nil {
		s.logger.Error("failed to list due scheduled jobs", zap.Error(err))
		return
	}

	for _, job := range due {
		if err := s.runDue(ctx, job, now); err != nil {
			s.logger.Error("failed to dispatch scheduled job",
				zap.Stringer("scheduled_job_id", job.ID), zap.Error(err))
		}
	}
}

// runDue first advances job's own next_run_at so the same tick never fires
// it twice, then clones job into a queued MANUAL execution job.
func (s *Scheduler) runDue(ctx context.Context, job *model.Job, now time.Time) error {
	nextRun, err := s.nextRun(job.CronExpression, now)
	if err != nil {
		s.logger.Error("invalid cron expression on scheduled job",
			zap.Stringer("scheduled_job_id", job.ID), zap.String("cron", job.CronExpression), zap.Error(err))
	}

	if err := s.jobs.RecordScheduleRun(ctx, job.ID, now, nextRun); err != nil {
		return err
	}

	scheduledID := job.ID
	exec := &model.Job{
		Type:     model.JobTypeManual,
		Status:   model.JobStatusQueued,
		Config:   job.Config,
		Priority: job.Priority,
	}
	exec.Config.ScheduledJobID = &scheduledID

	if err := s.jobs.Create(ctx, exec); err != nil {
		return err
	}

	s.logger.Info("queued scheduled job execution",
		zap.Stringer("scheduled_job_id", job.ID), zap.Stringer("execution_job_id", exec.ID))
	return s.queue.Enqueue(ctx, exec.ID, exec.Priority, 0)
}

// nextRun computes the next time expr fires after now. A blank expression
// never fires again.
func (s *Scheduler) nextRun(expr string, now time.Time) (time.Time, error) {
	if expr == "" {
		return time.Time{}, nil
	}
	schedule, err := s.parser.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(now), nil
}
