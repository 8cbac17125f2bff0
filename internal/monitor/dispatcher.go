// Package monitor implements the Event Monitors (C8): an S3 poller and a
// filesystem watcher, both feeding a single dispatcher that matches
// incoming events against active transfer templates and queues one
// EVENT_TRIGGERED job per match.
package monitor

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/core/model"
	"github.com/orbit-sync/transferd/internal/template"
)

// Event is the normalized shape both monitors hand to the dispatcher.
type Event struct {
	EventType  model.EventType
	FilePath   string // full source-relative path, e.g. an S3 key or an absolute filesystem path
	FileName   string
	FileSize   int64
	ModifiedAt time.Time
	EventTime  time.Time

	// S3-only.
	Bucket string

	// Filesystem-only: the watched root the event path falls under, used
	// to resolve the template whose watch_path it matches.
	WatchRoot string
}

// TemplateStore is the subset of store.TemplateStore the dispatcher needs.
type TemplateStore interface {
	ListActiveByEventType(ctx context.Context, eventType model.EventType) ([]*model.TransferTemplate, error)
	RecordTrigger(ctx context.Context, id uuid.UUID, at time.Time) error
}

// JobStore is the subset of store.JobStore the dispatcher needs.
type JobStore interface {
	Create(ctx context.Context, j *model.Job) error
}

// Queue is the subset of queue.Queue the dispatcher needs.
type Queue interface {
	Enqueue(ctx context.Context, jobID uuid.UUID, priority int, delay time.Duration) error
}

// Dispatcher matches events against active templates and queues the jobs
// they spawn. Both the S3 poller and the filesystem watcher share one
// Dispatcher so a template is matched identically regardless of source.
type Dispatcher struct {
	Templates TemplateStore
	Jobs      JobStore
	Queue     Queue
	Logger    *zap.Logger
}

// Dispatch loads every active template for ev's event type, matches ev
// against each, and queues one EVENT_TRIGGERED job per match.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	templates, err := d.Templates.ListActiveByEventType(ctx, ev.EventType)
	if err != nil {
		d.Logger.Error("failed to list templates for event", zap.String("event_type", string(ev.EventType)), zap.Error(err))
		return
	}

	for _, tmpl := range templates {
		if !matches(tmpl, ev) {
			continue
		}
		if err := d.fire(ctx, tmpl, ev); err != nil {
			d.Logger.Error("failed to dispatch template match",
				zap.Stringer("template_id", tmpl.ID), zap.String("file", ev.FilePath), zap.Error(err))
		}
	}
}

func matches(tmpl *model.TransferTemplate, ev Event) bool {
	if tmpl.FilePattern != "" {
		ok, err := path.Match(tmpl.FilePattern, ev.FileName)
		if err != nil || !ok {
			return false
		}
	}

	switch ev.EventType {
	case model.EventTypeS3:
		if tmpl.SourceConfig.BucketName != "" && tmpl.SourceConfig.BucketName != ev.Bucket {
			return false
		}
		if tmpl.SourceConfig.Prefix != "" && !strings.HasPrefix(ev.FilePath, tmpl.SourceConfig.Prefix) {
			return false
		}
		return true
	case model.EventTypeFilesystem:
		return tmpl.SourceConfig.WatchPath != "" && tmpl.SourceConfig.WatchPath == ev.WatchRoot
	default:
		return false
	}
}

func (d *Dispatcher) fire(ctx context.Context, tmpl *model.TransferTemplate, ev Event) error {
	now := ev.EventTime
	if now.IsZero() {
		now = time.Now()
	}

	destPath := template.Expand(tmpl.DestTemplate, ev.FilePath, now)
	tmplID := tmpl.ID
	sourceDir := path.Dir(ev.FilePath)

	job := &model.Job{
		Type:   model.JobTypeEventTriggered,
		Status: model.JobStatusQueued,
		Config: model.JobConfig{
			SourceEndpointID:   tmpl.SourceEndpoint,
			SourcePath:         sourceDir,
			FilePattern:        ev.FileName,
			DestEndpointID:     tmpl.DestEndpointID,
			DestPath:           destPath,
			ChainRules:         tmpl.ChainRules,
			TransferTemplateID: &tmplID,
		},
	}

	if err := d.Jobs.Create(ctx, job); err != nil {
		return err
	}
	if err := d.Queue.Enqueue(ctx, job.ID, job.Priority, 0); err != nil {
		return err
	}
	return d.Templates.RecordTrigger(ctx, tmpl.ID, now)
}
