package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewWithClient(rdb, "test", time.Hour)
}

func TestEnqueueDequeue_FIFOByPriority(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	high := uuid.New()
	low := uuid.New()
	require.NoError(t, q.Enqueue(ctx, low, 10, 0))
	require.NoError(t, q.Enqueue(ctx, high, 1, 0))

	got, ok, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, high, got, "lower priority score should dequeue first")

	got, ok, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, low, got)
}

func TestDequeue_EmptyQueue(t *testing.T) {
	q := newTestQueue(t)
	_, ok, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDequeue_RespectsDelay(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	jobID := uuid.New()
	require.NoError(t, q.Enqueue(ctx, jobID, 0, time.Hour))

	_, ok, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "delayed job should not be eligible yet")
}

func TestLength(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	n, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, q.Enqueue(ctx, uuid.New(), 0, 0))
	require.NoError(t, q.Enqueue(ctx, uuid.New(), 1, 0))

	n, err = q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStatus_SetAndGet(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	jobID := uuid.New()

	_, err := q.GetStatus(ctx, jobID)
	assert.Error(t, err, "unset status should be not-found")

	require.NoError(t, q.SetStatus(ctx, Status{
		JobID:            jobID,
		State:            "running",
		FilesTransferred: 3,
		BytesTransferred: 1024,
	}))

	got, err := q.GetStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "running", got.State)
	assert.Equal(t, int64(3), got.FilesTransferred)
	assert.Equal(t, int64(1024), got.BytesTransferred)
}

func TestEndpointCounter_IncrementDecrement(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	endpointID := uuid.New()

	n, err := q.IncrementEndpointCounter(ctx, endpointID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = q.IncrementEndpointCounter(ctx, endpointID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = q.DecrementEndpointCounter(ctx, endpointID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEndpointCounter_ClampsAtZero(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	endpointID := uuid.New()

	n, err := q.DecrementEndpointCounter(ctx, endpointID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "decrementing below zero should clamp")

	got, err := q.GetEndpointCounter(ctx, endpointID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestEndpointCounter_ResetAndGetUnset(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	endpointID := uuid.New()

	n, err := q.GetEndpointCounter(ctx, endpointID)
	require.NoError(t, err)
	assert.Zero(t, n, "unset counter should read as zero")

	_, err = q.IncrementEndpointCounter(ctx, endpointID)
	require.NoError(t, err)

	require.NoError(t, q.ResetEndpointCounter(ctx, endpointID))

	n, err = q.GetEndpointCounter(ctx, endpointID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
