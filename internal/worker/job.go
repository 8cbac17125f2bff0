package worker

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/chain"
	"github.com/orbit-sync/transferd/internal/core/model"
	"github.com/orbit-sync/transferd/internal/endpoint"
	"github.com/orbit-sync/transferd/internal/template"
)

// runJob executes one dequeued job's full state machine: throttle check,
// file enumeration, transfer materialization, per-transfer copy, and
// chain-job spawning on success.
func (p *Pool) runJob(ctx context.Context, jobID uuid.UUID) error {
	log := p.logger.With(zap.Stringer("job_id", jobID))

	job, err := p.opts.Jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.IsTerminal() {
		log.Debug("skipping already-terminal job")
		return nil
	}

	srcEP, err := p.opts.Endpoints.Get(ctx, job.Config.SourceEndpointID)
	if err != nil {
		return p.failJob(ctx, job, fmt.Errorf("load source endpoint: %w", err))
	}
	destEP, err := p.opts.Endpoints.Get(ctx, job.Config.DestEndpointID)
	if err != nil {
		return p.failJob(ctx, job, fmt.Errorf("load dest endpoint: %w", err))
	}

	// Throttle check (§4.6 step 1): a non-binding read of both ends. This is
	// not slot acquisition — that happens per-transfer below.
	srcOK, err := p.opts.Throttle.CheckCanAcquire(ctx, srcEP.ID)
	if err != nil {
		return fmt.Errorf("throttle check source: %w", err)
	}
	destOK, err := p.opts.Throttle.CheckCanAcquire(ctx, destEP.ID)
	if err != nil {
		return fmt.Errorf("throttle check dest: %w", err)
	}
	if !srcOK || !destOK {
		log.Debug("endpoints at capacity, requeuing job", zap.Duration("delay", p.opts.RequeueDelay))
		if err := p.opts.Jobs.UpdateStatus(ctx, job.ID, model.JobStatusQueued, ""); err != nil {
			return fmt.Errorf("requeue job: %w", err)
		}
		return p.opts.Queue.Enqueue(ctx, job.ID, job.Priority, p.opts.RequeueDelay)
	}

	if err := p.opts.Jobs.UpdateStatus(ctx, job.ID, model.JobStatusRunning, ""); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	if err := p.opts.Adapter.Configure(*srcEP); err != nil {
		return p.failJob(ctx, job, fmt.Errorf("configure source endpoint: %w", err))
	}
	if err := p.opts.Adapter.Configure(*destEP); err != nil {
		return p.failJob(ctx, job, fmt.Errorf("configure dest endpoint: %w", err))
	}

	// File enumeration (§4.6 step 2). Chain-generated jobs already carry
	// source_path=dir and file_pattern=filename; non-chained jobs carry
	// whatever glob the template/manual submission declared. Either way
	// the same list call is correct.
	glob := job.Config.FilePattern
	if glob == "" {
		glob = "*"
	}
	files, err := p.opts.Adapter.ListFiles(ctx, *srcEP, job.Config.SourcePath, glob)
	if err != nil {
		return p.failJob(ctx, job, fmt.Errorf("list source files: %w", err))
	}
	if len(files) == 0 {
		log.Info("no matching files, completing job with zero transfers")
		return p.opts.Jobs.UpdateStatus(ctx, job.ID, model.JobStatusSuccess, "")
	}

	// Transfer materialization (§4.6 step 3).
	transfers := make([]*model.Transfer, 0, len(files))
	var totalBytes int64
	for _, f := range files {
		t := &model.Transfer{
			ID:         uuid.New(),
			JobID:      job.ID,
			SourcePath: path.Join(job.Config.SourcePath, f.Name),
			Status:     model.TransferStatusPending,
		}
		if err := p.opts.Transfers.Create(ctx, t); err != nil {
			return p.failJob(ctx, job, fmt.Errorf("persist transfer for %s: %w", f.Name, err))
		}
		transfers = append(transfers, t)
		totalBytes += f.Size
	}
	if err := p.opts.Jobs.UpdateStats(ctx, job.ID, int64(len(transfers)), totalBytes); err != nil {
		log.Warn("failed to record initial transfer totals", zap.Error(err))
	}

	// Per-transfer execution (§4.6 step 4), sequential within this job.
	now := time.Now()
	successfulFiles := make([]chain.PerFileInput, 0, len(transfers))
	var filesOK, bytesOK int64
	anyFailed := false

	for i, t := range transfers {
		destPath, exactDest := resolveDestPath(job.Config.DestPath, files[i].Name, now)
		if err := p.opts.Transfers.UpdateDestPath(ctx, t.ID, destPath); err != nil {
			log.Warn("failed to record resolved dest path", zap.Error(err))
		}

		if err := p.runTransfer(ctx, *srcEP, *destEP, job, t, files[i], destPath, exactDest); err != nil {
			log.Error("transfer failed", zap.Stringer("transfer_id", t.ID), zap.Error(err))
			anyFailed = true
			continue
		}
		filesOK++
		bytesOK += files[i].Size
		destFile := destPath
		if !exactDest {
			destFile = path.Join(destPath, files[i].Name)
		}
		successfulFiles = append(successfulFiles, chain.PerFileInput{
			SourcePath: destFile,
			TransferID: t.ID,
		})
	}

	if err := p.opts.Jobs.UpdateStats(ctx, job.ID, filesOK, bytesOK); err != nil {
		log.Warn("failed to record final transfer totals", zap.Error(err))
	}

	// Summary + chain (§4.6 step 5).
	if anyFailed {
		return p.opts.Jobs.UpdateStatus(ctx, job.ID, model.JobStatusFailed, "one or more transfers failed")
	}

	if err := p.opts.Jobs.UpdateStatus(ctx, job.ID, model.JobStatusSuccess, ""); err != nil {
		return fmt.Errorf("mark job success: %w", err)
	}

	for _, child := range p.opts.ChainGenerator.Generate(job, successfulFiles, now) {
		if err := p.opts.Jobs.Create(ctx, child); err != nil {
			log.Error("failed to persist chain job", zap.Error(err))
			continue
		}
		if err := p.opts.Jobs.UpdateStatus(ctx, child.ID, model.JobStatusQueued, ""); err != nil {
			log.Error("failed to queue chain job", zap.Error(err))
			continue
		}
		if err := p.opts.Queue.Enqueue(ctx, child.ID, child.Priority, 0); err != nil {
			log.Error("failed to enqueue chain job", zap.Error(err))
		}
	}

	return nil
}

// runTransfer drives one file's copy end to end: slot acquisition, the
// copy subprocess, 1 Hz progress polling, and commit of the terminal
// status.
func (p *Pool) runTransfer(ctx context.Context, srcEP, destEP model.Endpoint, job *model.Job, t *model.Transfer, file endpoint.FileEntry, destPath string, exactDest bool) error {
	if err := p.opts.Throttle.Acquire(ctx, srcEP.ID, p.opts.AcquireTimeout); err != nil {
		_ = p.opts.Transfers.Finish(ctx, t.ID, model.TransferStatusFailed, err.Error())
		return err
	}
	defer func() { _ = p.opts.Throttle.Release(ctx, srcEP.ID) }()

	if err := p.opts.Throttle.Acquire(ctx, destEP.ID, p.opts.AcquireTimeout); err != nil {
		_ = p.opts.Transfers.Finish(ctx, t.ID, model.TransferStatusFailed, err.Error())
		return err
	}
	defer func() { _ = p.opts.Throttle.Release(ctx, destEP.ID) }()

	sourceURL := endpoint.BuildURL(srcEP, t.SourcePath)
	destURL := endpoint.BuildURL(destEP, destPath)

	handle, err := p.opts.Adapter.StartCopy(ctx, sourceURL, destURL, job.Config.DeleteSource, exactDest)
	if err != nil {
		_ = p.opts.Transfers.Finish(ctx, t.ID, model.TransferStatusFailed, err.Error())
		return err
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.opts.Adapter.CancelCopy(handle)
			_ = p.opts.Transfers.Finish(ctx, t.ID, model.TransferStatusCancelled, "")
			return ctx.Err()
		case <-ticker.C:
		}

		progress, done, err := p.opts.Adapter.PollProgress(ctx, handle)
		if err != nil {
			_ = p.opts.Transfers.Finish(ctx, t.ID, model.TransferStatusFailed, err.Error())
			return err
		}
		if progress != nil {
			_ = p.opts.Transfers.UpdateProgress(ctx, t.ID, progress.Bytes, 1, progress.Rate, progress.ETA)
		}
		if done {
			return p.opts.Transfers.Finish(ctx, t.ID, model.TransferStatusSuccess, "")
		}
	}
}

// resolveDestPath expands the job's destination template against
// fileName. When the expansion's basename equals fileName (the common
// case: the template ends in {filename}), the returned path is a
// directory and exactDest is false; otherwise the template renamed the
// file and the full path names the exact destination file.
func resolveDestPath(destTemplate, fileName string, at time.Time) (string, bool) {
	resolved := template.Expand(destTemplate, fileName, at)
	dir, base := path.Split(resolved)
	if base == fileName {
		return path.Clean(dir), false
	}
	return resolved, true
}

func (p *Pool) failJob(ctx context.Context, job *model.Job, cause error) error {
	if err := p.opts.Jobs.UpdateStatus(ctx, job.ID, model.JobStatusFailed, cause.Error()); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}
