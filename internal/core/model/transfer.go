package model

import (
	"time"

	"github.com/google/uuid"
)

// Transfer is one file-level (or rule-level, for non per-file templates)
// leg of a Job's execution, as reported by the copy engine adapter.
type Transfer struct {
	ID               uuid.UUID      `json:"id"`
	JobID            uuid.UUID      `json:"job_id"`
	SourcePath       string         `json:"source_path"`
	DestPath         string         `json:"dest_path"`
	Status           TransferStatus `json:"status"`
	BytesTransferred int64          `json:"bytes_transferred"`
	FilesTransferred int64          `json:"files_transferred"`
	Speed            int64          `json:"speed_bytes_per_sec,omitempty"`
	ETASeconds       int64          `json:"eta_seconds,omitempty"`
	Error            string         `json:"error,omitempty"`
	ParentTransferID *uuid.UUID     `json:"parent_transfer_id,omitempty"`
	ChainIndex       int            `json:"chain_index,omitempty"`
	ChainRule        string         `json:"chain_rule,omitempty"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}
