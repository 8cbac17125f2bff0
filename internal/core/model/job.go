package model

import (
	"time"

	"github.com/google/uuid"
)

// JobConfig is the job's own authoritative copy of everything the worker and
// chain generator need once the job is dequeued — it is copied in at
// creation time from the originating template/schedule/chain rule so the
// job remains self-contained even if the template changes later.
type JobConfig struct {
	SourceEndpointID uuid.UUID   `json:"source_endpoint_id"`
	SourcePath       string      `json:"source_path"`
	FilePattern      string      `json:"file_pattern,omitempty"`
	DestEndpointID   uuid.UUID   `json:"dest_endpoint_id"`
	DestPath         string      `json:"dest_path"`
	DeleteSource     bool        `json:"delete_source,omitempty"`
	BandwidthLimit   string      `json:"bandwidth_limit,omitempty"`
	ChainRules       []ChainRule `json:"chain_rules,omitempty"`

	// Provenance, set when this job was spawned by another component.
	TransferTemplateID *uuid.UUID `json:"transfer_template_id,omitempty"`
	ScheduledJobID     *uuid.UUID `json:"scheduled_job_id,omitempty"`
	ParentJobID        *uuid.UUID `json:"parent_job_id,omitempty"`
	ParentTransferID   *uuid.UUID `json:"parent_transfer_id,omitempty"`
	ChainIndex         int        `json:"chain_index,omitempty"`
	ChainRule          string     `json:"chain_rule,omitempty"`
	SourceFile         string     `json:"source_file,omitempty"`
}

// Job is one unit of orchestration work: a request to run a copy (and,
// potentially, its chained follow-ons) between two endpoints.
type Job struct {
	ID        uuid.UUID `json:"id"`
	Type      JobType   `json:"type"`
	Status    JobStatus `json:"status"`
	Config    JobConfig `json:"config"`
	Priority  int       `json:"priority"`
	Retries   int       `json:"retries"`
	MaxRetries int      `json:"max_retries"`

	// Scheduling, populated only for Type == JobTypeScheduled.
	CronExpression string     `json:"cron_expression,omitempty"`
	IsActive       bool       `json:"is_active,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	TotalRuns      int64      `json:"total_runs,omitempty"`

	FilesTransferred int64      `json:"files_transferred"`
	BytesTransferred int64      `json:"bytes_transferred"`
	Error            string     `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
}

// IsTerminal reports whether the job has reached a state from which it will
// not transition further on its own.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case JobStatusSuccess, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}
