// Package model holds the durable entities of the orchestration engine:
// endpoints, transfer templates, jobs and transfers.
package model

// EndpointKind identifies which URL-construction and config rules an
// endpoint follows.
type EndpointKind string

const (
	EndpointKindLocal EndpointKind = "local"
	EndpointKindS3    EndpointKind = "s3"
	EndpointKindSMB   EndpointKind = "smb"
	EndpointKindSFTP  EndpointKind = "sftp"
	EndpointKindOther EndpointKind = "other"
)

// JobType distinguishes how a job came to exist.
type JobType string

const (
	JobTypeManual         JobType = "manual"
	JobTypeScheduled      JobType = "scheduled"
	JobTypeEventTriggered JobType = "event_triggered"
	JobTypeChained        JobType = "chained"
)

// JobStatus is the job's position in its state machine.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSuccess   JobStatus = "success"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// TransferStatus is a single file/rule transfer's position in its state
// machine, a level below Job.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusRunning   TransferStatus = "running"
	TransferStatusSuccess   TransferStatus = "success"
	TransferStatusFailed    TransferStatus = "failed"
	TransferStatusCancelled TransferStatus = "cancelled"
)

// EventType identifies which monitor feeds a template.
type EventType string

const (
	EventTypeS3         EventType = "s3_object_created"
	EventTypeFilesystem EventType = "filesystem_created"
	EventTypeCron       EventType = "cron"
)
