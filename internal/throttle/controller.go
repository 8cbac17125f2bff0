// Package throttle bounds how many transfers may run concurrently against
// a single endpoint, independent of how many workers are running overall.
package throttle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/core/errs"
	"github.com/orbit-sync/transferd/internal/core/logger"
)

// Counters is the subset of the queue's endpoint-counter operations the
// throttle controller depends on, so it can be tested against a fake
// without a live Redis server.
type Counters interface {
	IncrementEndpointCounter(ctx context.Context, endpointID uuid.UUID) (int64, error)
	DecrementEndpointCounter(ctx context.Context, endpointID uuid.UUID) (int64, error)
	GetEndpointCounter(ctx context.Context, endpointID uuid.UUID) (int64, error)
}

// Limits resolves the configured concurrency ceiling for an endpoint.
type Limits interface {
	EndpointLimit(ctx context.Context, endpointID uuid.UUID) (int, error)
}

// Controller implements the Throttle Controller (C4): acquire/release
// slots bounded per endpoint, backed by the queue's shared Redis counters
// so every worker process observes the same count.
type Controller struct {
	counters     Counters
	limits       Limits
	defaultLimit int
	backoff      time.Duration
	logger       *zap.Logger
}

// New creates a Controller. defaultLimit is used whenever limits can't
// resolve an endpoint's own configured limit.
func New(counters Counters, limits Limits, defaultLimit int) *Controller {
	return &Controller{
		counters:     counters,
		limits:       limits,
		defaultLimit: defaultLimit,
		backoff:      time.Second,
		logger:       logger.Named("throttle"),
	}
}

// Acquire blocks until a concurrency slot opens up for endpointID, or
// returns errs.ErrThrottleTimeout once timeout elapses.
func (c *Controller) Acquire(ctx context.Context, endpointID uuid.UUID, timeout time.Duration) error {
	limit, err := c.resolveLimit(ctx, endpointID)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for {
		n, err := c.counters.IncrementEndpointCounter(ctx, endpointID)
		if err != nil {
			return err
		}
		if n <= int64(limit) {
			return nil
		}

		// Over the limit: give the slot back and wait before retrying.
		if _, err := c.counters.DecrementEndpointCounter(ctx, endpointID); err != nil {
			return err
		}

		if time.Now().After(deadline) {
			return errs.ErrThrottleTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff):
		}
	}
}

// Release returns a previously-acquired slot for endpointID.
func (c *Controller) Release(ctx context.Context, endpointID uuid.UUID) error {
	_, err := c.counters.DecrementEndpointCounter(ctx, endpointID)
	return err
}

// CheckCanAcquire reports whether a slot currently looks available, without
// reserving one — a non-binding read used by callers deciding whether to
// even attempt a transfer.
func (c *Controller) CheckCanAcquire(ctx context.Context, endpointID uuid.UUID) (bool, error) {
	limit, err := c.resolveLimit(ctx, endpointID)
	if err != nil {
		return false, err
	}
	n, err := c.counters.GetEndpointCounter(ctx, endpointID)
	if err != nil {
		return false, err
	}
	return n < int64(limit), nil
}

func (c *Controller) resolveLimit(ctx context.Context, endpointID uuid.UUID) (int, error) {
	if c.limits == nil {
		return c.defaultLimit, nil
	}
	limit, err := c.limits.EndpointLimit(ctx, endpointID)
	if err != nil {
		if errors.Is(err, errs.ErrEndpointNotFound) || errors.Is(err, errs.ErrNotFound) {
			return c.defaultLimit, nil
		}
		return 0, err
	}
	if limit <= 0 {
		return c.defaultLimit, nil
	}
	return limit, nil
}
