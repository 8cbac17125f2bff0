package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/core/errs"
	"github.com/orbit-sync/transferd/internal/core/logger"
	"github.com/orbit-sync/transferd/internal/core/model"
)

// TransferStore persists model.Transfer rows.
type TransferStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTransferStore creates a new TransferStore.
func NewTransferStore(db *sql.DB) *TransferStore {
	return &TransferStore{db: db, logger: logger.Named("store.transfer")}
}

// Create inserts a new transfer.
func (s *TransferStore) Create(ctx context.Context, t *model.Transfer) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = model.TransferStatusPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfers
			(id, job_id, source_path, dest_path, status, bytes_transferred,
			 files_transferred, speed_bytes_per_sec, eta_seconds, error,
			 parent_transfer_id, chain_index, chain_rule, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.JobID.String(), t.SourcePath, t.DestPath, string(t.Status),
		t.BytesTransferred, t.FilesTransferred, t.Speed, t.ETASeconds, t.Error,
		nullUUID(t.ParentTransferID), t.ChainIndex, t.ChainRule,
		nullTime(t.StartedAt), nullTime(t.CompletedAt),
	)
	if err != nil {
		return errors.Join(errs.ErrSystem, err)
	}
	return nil
}

// ListByJob returns every transfer belonging to a job.
func (s *TransferStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Transfer, error) {
	rows, err := s.db.QueryContext(ctx, transferSelect+` WHERE job_id = ?`, jobID.String())
	if err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}
	defer rows.Close()

	var out []*model.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateDestPath records the resolved destination path for a transfer once
// the worker has expanded its template, before any bytes start moving.
func (s *TransferStore) UpdateDestPath(ctx context.Context, id uuid.UUID, destPath string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE transfers SET dest_path = ? WHERE id = ?`, destPath, id.String())
	if err != nil {
		return errors.Join(errs.ErrSystem, err)
	}
	return checkRowsAffected(res)
}

// UpdateProgress records the latest progress snapshot reported by the copy
// engine adapter for one transfer.
func (s *TransferStore) UpdateProgress(ctx context.Context, id uuid.UUID, bytes, files, speed, eta int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transfers SET bytes_transferred = ?, files_transferred = ?,
		       speed_bytes_per_sec = ?, eta_seconds = ? WHERE id = ?`,
		bytes, files, speed, eta, id.String())
	if err != nil {
		return errors.Join(errs.ErrSystem, err)
	}
	return checkRowsAffected(res)
}

// Finish marks a transfer terminal, stamping CompletedAt.
func (s *TransferStore) Finish(ctx context.Context, id uuid.UUID, status model.TransferStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transfers SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now(), id.String())
	if err != nil {
		return errors.Join(errs.ErrSystem, err)
	}
	return checkRowsAffected(res)
}

const transferSelect = `
	SELECT id, job_id, source_path, dest_path, status, bytes_transferred,
	       files_transferred, speed_bytes_per_sec, eta_seconds, error,
	       parent_transfer_id, chain_index, chain_rule, started_at, completed_at
	FROM transfers`

func scanTransfer(rows *sql.Rows) (*model.Transfer, error) {
	var (
		idStr, jobIDStr, sourcePath, destPath, status, errMsg, chainRule string
		bytesTransferred, filesTransferred, speed, eta                  int64
		chainIndex                                                      int
		parentTransferID                                                sql.NullString
		startedAt, completedAt                                          sql.NullTime
	)
	if err := rows.Scan(&idStr, &jobIDStr, &sourcePath, &destPath, &status, &bytesTransferred,
		&filesTransferred, &speed, &eta, &errMsg, &parentTransferID, &chainIndex, &chainRule,
		&startedAt, &completedAt); err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}
	jobID, err := uuid.Parse(jobIDStr)
	if err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}

	t := &model.Transfer{
		ID:               id,
		JobID:            jobID,
		SourcePath:       sourcePath,
		DestPath:         destPath,
		Status:           model.TransferStatus(status),
		BytesTransferred: bytesTransferred,
		FilesTransferred: filesTransferred,
		Speed:            speed,
		ETASeconds:       eta,
		Error:            errMsg,
		ChainIndex:       chainIndex,
		ChainRule:        chainRule,
	}
	if parentTransferID.Valid {
		parsed, err := uuid.Parse(parentTransferID.String)
		if err == nil {
			t.ParentTransferID = &parsed
		}
	}
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return t, nil
}

func nullUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}
