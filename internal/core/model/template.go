package model

import (
	"time"

	"github.com/google/uuid"
)

// ChainRule describes one follow-on transfer spawned after a parent
// job/transfer completes successfully. DestTemplate may use the path
// template tokens ({year}, {month}, {day}, {hour}, {minute}, {timestamp},
// {filename}, {original_filename}, {name}/{basename}, {ext}/{extension}).
type ChainRule struct {
	DestEndpointID uuid.UUID `json:"dest_endpoint_id"`
	DestTemplate   string    `json:"dest_template"`
	FilePattern    string    `json:"file_pattern,omitempty"`
}

// TemplateSourceConfig narrows the fields an event monitor needs to decide
// whether an incoming event matches a template, keyed by the template's
// EventType.
type TemplateSourceConfig struct {
	// S3
	BucketName string `json:"bucket_name,omitempty"`
	Prefix     string `json:"prefix,omitempty"`

	// Filesystem
	WatchPath string `json:"watch_path,omitempty"`

	// Cron
	CronExpression string `json:"cron_expression,omitempty"`
}

// TransferTemplate binds an event source to a destination path template and
// optional chain rules, to be instantiated into a Job whenever a matching
// event arrives.
type TransferTemplate struct {
	ID             uuid.UUID            `json:"id"`
	Name           string               `json:"name"`
	EventType      EventType            `json:"event_type"`
	SourceEndpoint uuid.UUID            `json:"source_endpoint_id"`
	SourceConfig   TemplateSourceConfig `json:"source_config"`
	FilePattern    string               `json:"file_pattern"`
	DestEndpointID uuid.UUID            `json:"dest_endpoint_id"`
	DestTemplate   string               `json:"dest_template"`
	ChainRules     []ChainRule          `json:"chain_rules,omitempty"`
	IsActive       bool                 `json:"is_active"`
	TotalTriggers  int64                `json:"total_triggers"`
	LastTriggered  *time.Time           `json:"last_triggered,omitempty"`
}
