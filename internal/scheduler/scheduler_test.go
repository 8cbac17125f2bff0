package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbit-sync/transferd/internal/core/model"
	"github.com/orbit-sync/transferd/internal/scheduler"
)

type fakeJobStore struct {
	mu       sync.Mutex
	due      []*model.Job
	recorded []uuid.UUID
	created  []*model.Job
}

func (s *fakeJobStore) ListDueScheduled(context.Context, time.Time) ([]*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := s.due
	s.due = nil
	return due, nil
}

func (s *fakeJobStore) RecordScheduleRun(_ context.Context, id uuid.UUID, _, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, id)
	return nil
}

func (s *fakeJobStore) Create(_ context.Context, j *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	s.created = append(s.created, j)
	return nil
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []uuid.UUID
}

func (q *fakeQueue) Enqueue(_ context.Context, jobID uuid.UUID, _ int, _ time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, jobID)
	return nil
}

func TestScheduler_DueJob_ClonesToManualAndEnqueues(t *testing.T) {
	scheduledID := uuid.New()
	due := &model.Job{
		ID:             scheduledID,
		Type:           model.JobTypeScheduled,
		Status:         model.JobStatusQueued,
		CronExpression: "*/5 * * * *",
		Priority:       3,
		Config: model.JobConfig{
			SourcePath: "/in",
			DestPath:   "/out",
		},
	}
	jobs := &fakeJobStore{due: []*model.Job{due}}
	q := &fakeQueue{}

	s := scheduler.New(scheduler.Options{Jobs: jobs, Queue: q, WakeInterval: 20 * time.Millisecond})
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		jobs.mu.Lock()
		defer jobs.mu.Unlock()
		return len(jobs.created) == 1
	}, time.Second, 5*time.Millisecond)

	jobs.mu.Lock()
	child := jobs.created[0]
	jobs.mu.Unlock()

	assert.Equal(t, model.JobTypeManual, child.Type)
	assert.Equal(t, model.JobStatusQueued, child.Status)
	require.NotNil(t, child.Config.ScheduledJobID)
	assert.Equal(t, scheduledID, *child.Config.ScheduledJobID)
	assert.Equal(t, "/in", child.Config.SourcePath)

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.enqueued) == 1
	}, time.Second, 5*time.Millisecond)

	require.Contains(t, jobs.recorded, scheduledID)
}

func TestScheduler_NoDueJobs_NeverEnqueues(t *testing.T) {
	jobs := &fakeJobStore{}
	q := &fakeQueue{}

	s := scheduler.New(scheduler.Options{Jobs: jobs, Queue: q, WakeInterval: 10 * time.Millisecond})
	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	assert.Empty(t, q.enqueued)
	assert.Empty(t, jobs.created)
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	jobs := &fakeJobStore{}
	q := &fakeQueue{}
	s := scheduler.New(scheduler.Options{Jobs: jobs, Queue: q, WakeInterval: time.Hour})

	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
}
