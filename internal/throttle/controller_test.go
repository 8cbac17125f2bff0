package throttle_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/orbit-sync/transferd/internal/core/errs"
	"github.com/orbit-sync/transferd/internal/throttle"
)

// fakeCounters is an in-process counter map, standing in for the queue's
// Redis-backed counters.
type fakeCounters struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int64
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{counts: map[uuid.UUID]int64{}}
}

func (f *fakeCounters) IncrementEndpointCounter(_ context.Context, id uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[id]++
	return f.counts[id], nil
}

func (f *fakeCounters) DecrementEndpointCounter(_ context.Context, id uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[id]--
	if f.counts[id] < 0 {
		f.counts[id] = 0
	}
	return f.counts[id], nil
}

func (f *fakeCounters) GetEndpointCounter(_ context.Context, id uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[id], nil
}

// MockLimits is a testify mock for throttle.Limits.
type MockLimits struct {
	mock.Mock
}

func (m *MockLimits) EndpointLimit(ctx context.Context, endpointID uuid.UUID) (int, error) {
	args := m.Called(ctx, endpointID)
	return args.Int(0), args.Error(1)
}

func TestAcquire_WithinLimit(t *testing.T) {
	counters := newFakeCounters()
	limits := new(MockLimits)
	endpointID := uuid.New()
	limits.On("EndpointLimit", mock.Anything, endpointID).Return(2, nil)

	c := throttle.New(counters, limits, 5)

	require.NoError(t, c.Acquire(context.Background(), endpointID, time.Second))
	require.NoError(t, c.Acquire(context.Background(), endpointID, time.Second))
}

func TestAcquire_TimesOutWhenOverLimit(t *testing.T) {
	counters := newFakeCounters()
	limits := new(MockLimits)
	endpointID := uuid.New()
	limits.On("EndpointLimit", mock.Anything, endpointID).Return(1, nil)

	c := throttle.New(counters, limits, 5)
	require.NoError(t, c.Acquire(context.Background(), endpointID, time.Second))

	err := c.Acquire(context.Background(), endpointID, 50*time.Millisecond)
	assert.ErrorIs(t, err, errs.ErrThrottleTimeout)
}

func TestAcquire_UnknownEndpointUsesDefaultLimit(t *testing.T) {
	counters := newFakeCounters()
	limits := new(MockLimits)
	endpointID := uuid.New()
	limits.On("EndpointLimit", mock.Anything, endpointID).Return(0, errs.ErrEndpointNotFound)

	c := throttle.New(counters, limits, 1)
	require.NoError(t, c.Acquire(context.Background(), endpointID, time.Second))

	err := c.Acquire(context.Background(), endpointID, 50*time.Millisecond)
	assert.ErrorIs(t, err, errs.ErrThrottleTimeout)
}

func TestRelease_FreesSlotForNextAcquire(t *testing.T) {
	counters := newFakeCounters()
	limits := new(MockLimits)
	endpointID := uuid.New()
	limits.On("EndpointLimit", mock.Anything, endpointID).Return(1, nil)

	c := throttle.New(counters, limits, 5)
	require.NoError(t, c.Acquire(context.Background(), endpointID, time.Second))
	require.NoError(t, c.Release(context.Background(), endpointID))
	require.NoError(t, c.Acquire(context.Background(), endpointID, time.Second))
}

func TestCheckCanAcquire(t *testing.T) {
	counters := newFakeCounters()
	limits := new(MockLimits)
	endpointID := uuid.New()
	limits.On("EndpointLimit", mock.Anything, endpointID).Return(1, nil)

	c := throttle.New(counters, limits, 5)

	ok, err := c.CheckCanAcquire(context.Background(), endpointID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Acquire(context.Background(), endpointID, time.Second))

	ok, err = c.CheckCanAcquire(context.Background(), endpointID)
	require.NoError(t, err)
	assert.False(t, ok)
}
