// Package queue implements the Redis-backed durable job queue: a priority
// sorted set for dispatch, a TTL status cache, and per-endpoint counters
// shared with the throttle controller.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/core/errs"
	"github.com/orbit-sync/transferd/internal/core/logger"
)

// Queue is a Redis-backed FIFO/priority job queue, mirroring the teacher's
// pattern of a thin wrapper struct holding a client plus a named logger.
type Queue struct {
	rdb        *redis.Client
	keyPrefix  string
	statusTTL  time.Duration
	logger     *zap.Logger
}

// Config configures a Queue.
type Config struct {
	Addr      string
	DB        int
	KeyPrefix string
	StatusTTL time.Duration
}

// New creates a Queue backed by the given Redis address.
func New(cfg Config) *Queue {
	return &Queue{
		rdb: redis.NewClient(&redis.Options{
			Addr: cfg.Addr,
			DB:   cfg.DB,
		}),
		keyPrefix: cfg.KeyPrefix,
		statusTTL: cfg.StatusTTL,
		logger:    logger.Named("queue"),
	}
}

// NewWithClient wraps an already-constructed redis client, used by tests to
// point the Queue at an in-process miniredis server.
func NewWithClient(rdb *redis.Client, keyPrefix string, statusTTL time.Duration) *Queue {
	return &Queue{rdb: rdb, keyPrefix: keyPrefix, statusTTL: statusTTL, logger: logger.Named("queue")}
}

func (q *Queue) jobQueueKey() string {
	return fmt.Sprintf("%s:job_queue", q.keyPrefix)
}

func (q *Queue) jobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("%s:job_status:%s", q.keyPrefix, jobID)
}

func (q *Queue) endpointCounterKey(endpointID uuid.UUID) string {
	return fmt.Sprintf("%s:endpoint_counters:%s", q.keyPrefix, endpointID)
}

// Enqueue adds a job ID to the dispatch queue. priority orders dequeue
// (lower score pops first); delay postpones eligibility by that duration.
func (q *Queue) Enqueue(ctx context.Context, jobID uuid.UUID, priority int, delay time.Duration) error {
	score := float64(priority)
	if delay > 0 {
		score = float64(time.Now().Add(delay).Unix())
	}
	if err := q.rdb.ZAdd(ctx, q.jobQueueKey(), redis.Z{Score: score, Member: jobID.String()}).Err(); err != nil {
		return errors.Join(errs.ErrQueueUnavailable, err)
	}
	return nil
}

// Dequeue pops the lowest-scoring eligible job ID, or ("", false, nil) if
// none are ready yet.
func (q *Queue) Dequeue(ctx context.Context) (uuid.UUID, bool, error) {
	now := float64(time.Now().Unix())
	results, err := q.rdb.ZRangeByScoreWithScores(ctx, q.jobQueueKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", now),
		Count: 1,
	}).Result()
	if err != nil {
		return uuid.Nil, false, errors.Join(errs.ErrQueueUnavailable, err)
	}
	if len(results) == 0 {
		return uuid.Nil, false, nil
	}

	member := results[0].Member.(string)
	removed, err := q.rdb.ZRem(ctx, q.jobQueueKey(), member).Result()
	if err != nil {
		return uuid.Nil, false, errors.Join(errs.ErrQueueUnavailable, err)
	}
	if removed == 0 {
		// Lost the race to another worker popping the same member.
		return uuid.Nil, false, nil
	}

	id, err := uuid.Parse(member)
	if err != nil {
		return uuid.Nil, false, errors.Join(errs.ErrSystem, err)
	}
	return id, true, nil
}

// Length reports the number of entries currently in the dispatch queue,
// eligible or not.
func (q *Queue) Length(ctx context.Context) (int64, error) {
	n, err := q.rdb.ZCard(ctx, q.jobQueueKey()).Result()
	if err != nil {
		return 0, errors.Join(errs.ErrQueueUnavailable, err)
	}
	return n, nil
}

// Status is the cached, human-facing snapshot of a job's last known state,
// kept separately from the durable Job row so dashboards can poll Redis
// without hitting SQLite.
type Status struct {
	JobID            uuid.UUID `json:"job_id"`
	State            string    `json:"state"`
	FilesTransferred int64     `json:"files_transferred"`
	BytesTransferred int64     `json:"bytes_transferred"`
	Error            string    `json:"error,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SetStatus caches a job's status with the configured TTL.
func (q *Queue) SetStatus(ctx context.Context, status Status) error {
	status.UpdatedAt = time.Now()
	payload, err := json.Marshal(status)
	if err != nil {
		return errors.Join(errs.ErrInvalidInput, err)
	}
	if err := q.rdb.SetEx(ctx, q.jobStatusKey(status.JobID), payload, q.statusTTL).Err(); err != nil {
		return errors.Join(errs.ErrQueueUnavailable, err)
	}
	return nil
}

// GetStatus reads a job's cached status, returning errs.ErrNotFound if the
// TTL has expired or it was never set.
func (q *Queue) GetStatus(ctx context.Context, jobID uuid.UUID) (*Status, error) {
	payload, err := q.rdb.Get(ctx, q.jobStatusKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(errs.ErrQueueUnavailable, err)
	}
	var status Status
	if err := json.Unmarshal([]byte(payload), &status); err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}
	return &status, nil
}

// IncrementEndpointCounter increments the in-flight transfer counter for an
// endpoint and returns the new value.
func (q *Queue) IncrementEndpointCounter(ctx context.Context, endpointID uuid.UUID) (int64, error) {
	n, err := q.rdb.Incr(ctx, q.endpointCounterKey(endpointID)).Result()
	if err != nil {
		return 0, errors.Join(errs.ErrQueueUnavailable, err)
	}
	return n, nil
}

// DecrementEndpointCounter decrements the in-flight transfer counter for an
// endpoint, clamping it at zero so a double-release can't drive it negative.
func (q *Queue) DecrementEndpointCounter(ctx context.Context, endpointID uuid.UUID) (int64, error) {
	n, err := q.rdb.Decr(ctx, q.endpointCounterKey(endpointID)).Result()
	if err != nil {
		return 0, errors.Join(errs.ErrQueueUnavailable, err)
	}
	if n < 0 {
		if err := q.rdb.Set(ctx, q.endpointCounterKey(endpointID), 0, 0).Err(); err != nil {
			return 0, errors.Join(errs.ErrQueueUnavailable, err)
		}
		return 0, nil
	}
	return n, nil
}

// GetEndpointCounter reads the current in-flight transfer count for an
// endpoint without mutating it.
func (q *Queue) GetEndpointCounter(ctx context.Context, endpointID uuid.UUID) (int64, error) {
	n, err := q.rdb.Get(ctx, q.endpointCounterKey(endpointID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Join(errs.ErrQueueUnavailable, err)
	}
	return n, nil
}

// ResetEndpointCounter zeroes an endpoint's in-flight counter, used on
// startup to clear stale counts left by a crashed process.
func (q *Queue) ResetEndpointCounter(ctx context.Context, endpointID uuid.UUID) error {
	if err := q.rdb.Set(ctx, q.endpointCounterKey(endpointID), 0, 0).Err(); err != nil {
		return errors.Join(errs.ErrQueueUnavailable, err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (q *Queue) Close() error {
	return q.rdb.Close()
}
