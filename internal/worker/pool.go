// Package worker implements the Worker (C6): the pool of queue-polling
// loops that own a job's state machine end to end, from dequeue through
// per-file transfer execution to chain-job spawning.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/chain"
	"github.com/orbit-sync/transferd/internal/core/logger"
	"github.com/orbit-sync/transferd/internal/core/model"
	"github.com/orbit-sync/transferd/internal/endpoint"
	"github.com/orbit-sync/transferd/internal/queue"
)

// Queue is the subset of the queue package's operations a worker needs.
type Queue interface {
	Dequeue(ctx context.Context) (uuid.UUID, bool, error)
	Enqueue(ctx context.Context, jobID uuid.UUID, priority int, delay time.Duration) error
	SetStatus(ctx context.Context, status queue.Status) error
}

// JobStore is the subset of store.JobStore a worker needs.
type JobStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Job, error)
	Create(ctx context.Context, j *model.Job) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.JobStatus, errMsg string) error
	UpdateStats(ctx context.Context, id uuid.UUID, files, bytes int64) error
}

// TransferStore is the subset of store.TransferStore a worker needs.
type TransferStore interface {
	Create(ctx context.Context, t *model.Transfer) error
	UpdateDestPath(ctx context.Context, id uuid.UUID, destPath string) error
	UpdateProgress(ctx context.Context, id uuid.UUID, bytes, files, speed, eta int64) error
	Finish(ctx context.Context, id uuid.UUID, status model.TransferStatus, errMsg string) error
}

// EndpointStore is the subset of store.EndpointStore a worker needs.
type EndpointStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Endpoint, error)
}

// Adapter is the subset of endpoint.Adapter a worker needs.
type Adapter interface {
	Configure(ep model.Endpoint) error
	ListFiles(ctx context.Context, ep model.Endpoint, basePath, glob string) ([]endpoint.FileEntry, error)
	StartCopy(ctx context.Context, sourceURL, destURL string, deleteSource, exactDest bool) (*endpoint.CopyHandle, error)
	PollProgress(ctx context.Context, handle *endpoint.CopyHandle) (*endpoint.Progress, bool, error)
	CancelCopy(handle *endpoint.CopyHandle)
}

// Throttle is the subset of throttle.Controller a worker needs.
type Throttle interface {
	Acquire(ctx context.Context, endpointID uuid.UUID, timeout time.Duration) error
	Release(ctx context.Context, endpointID uuid.UUID) error
	CheckCanAcquire(ctx context.Context, endpointID uuid.UUID) (bool, error)
}

// ChainGenerator is the subset of chain.Generator a worker needs.
type ChainGenerator interface {
	Generate(parent *model.Job, perFileTransfers []chain.PerFileInput, now time.Time) []*model.Job
}

// Options configures a Pool.
type Options struct {
	Queue          Queue
	Jobs           JobStore
	Transfers      TransferStore
	Endpoints      EndpointStore
	Adapter        Adapter
	Throttle       Throttle
	ChainGenerator ChainGenerator

	Concurrency    int
	PollInterval   time.Duration
	RequeueDelay   time.Duration
	AcquireTimeout time.Duration
}

// Pool runs Concurrency worker loops, each independently polling the queue
// and owning whichever job it dequeues until that job reaches a terminal
// state. Parallelism across jobs comes from running several of these
// loops; parallelism within a job's own transfers does not exist by
// design (spec: transfers within one job are processed sequentially).
type Pool struct {
	opts   Options
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Pool. Fields left zero in opts fall back to sane defaults
// matching spec.md's stated timeouts.
func New(opts Options) *Pool {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.RequeueDelay <= 0 {
		opts.RequeueDelay = 60 * time.Second
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = 30 * time.Second
	}
	return &Pool{opts: opts, logger: logger.Named("worker")}
}

// Start launches the pool's worker loops. It returns immediately; call
// Stop to cancel and wait for them to drain.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.opts.Concurrency; i++ {
		id := i
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.loop(ctx, id)
		}()
	}
}

// Stop cancels every worker loop and waits for in-flight jobs to unwind.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.logger.Info("waiting for worker loops to drain")
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) loop(ctx context.Context, workerID int) {
	log := p.logger.With(zap.Int("worker_id", workerID))
	log.Info("worker loop starting")

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("worker loop stopping")
			return
		case <-ticker.C:
		}

		jobID, ok, err := p.opts.Queue.Dequeue(ctx)
		if err != nil {
			log.Error("dequeue failed", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		if err := p.runJob(ctx, jobID); err != nil {
			log.Error("job execution failed", zap.Stringer("job_id", jobID), zap.Error(err))
		}
	}
}
