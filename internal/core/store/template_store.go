package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/core/errs"
	"github.com/orbit-sync/transferd/internal/core/logger"
	"github.com/orbit-sync/transferd/internal/core/model"
)

// TemplateStore persists model.TransferTemplate rows.
type TemplateStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTemplateStore creates a new TemplateStore.
func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db, logger: logger.Named("store.template")}
}

// Create inserts a new transfer template.
func (s *TemplateStore) Create(ctx context.Context, t *model.TransferTemplate) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	srcCfg, err := json.Marshal(t.SourceConfig)
	if err != nil {
		return errors.Join(errs.ErrInvalidInput, err)
	}
	chainRules, err := json.Marshal(t.ChainRules)
	if err != nil {
		return errors.Join(errs.ErrInvalidInput, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transfer_templates
			(id, name, event_type, source_endpoint_id, source_config, file_pattern,
			 dest_endpoint_id, dest_template, chain_rules, is_active, total_triggers, last_triggered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Name, string(t.EventType), t.SourceEndpoint.String(), string(srcCfg),
		t.FilePattern, t.DestEndpointID.String(), t.DestTemplate, string(chainRules),
		boolToInt(t.IsActive), t.TotalTriggers, nullTime(t.LastTriggered),
	)
	if err != nil {
		return errors.Join(errs.ErrSystem, err)
	}
	return nil
}

// Get fetches a template by ID.
func (s *TemplateStore) Get(ctx context.Context, id uuid.UUID) (*model.TransferTemplate, error) {
	row := s.db.QueryRowContext(ctx, templateSelect+` WHERE id = ?`, id.String())
	return scanTemplate(row)
}

// ListActiveByEventType returns every active template whose EventType
// matches, the set an event monitor dispatches an incoming event against.
func (s *TemplateStore) ListActiveByEventType(ctx context.Context, eventType model.EventType) ([]*model.TransferTemplate, error) {
	rows, err := s.db.QueryContext(ctx, templateSelect+` WHERE event_type = ? AND is_active = 1`, string(eventType))
	if err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}
	defer rows.Close()

	var out []*model.TransferTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecordTrigger increments TotalTriggers and sets LastTriggered to now.
func (s *TemplateStore) RecordTrigger(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transfer_templates SET total_triggers = total_triggers + 1, last_triggered = ?
		WHERE id = ?`, at, id.String())
	if err != nil {
		return errors.Join(errs.ErrSystem, err)
	}
	return checkRowsAffected(res)
}

const templateSelect = `
	SELECT id, name, event_type, source_endpoint_id, source_config, file_pattern,
	       dest_endpoint_id, dest_template, chain_rules, is_active, total_triggers, last_triggered
	FROM transfer_templates`

func scanTemplate(row rowScanner) (*model.TransferTemplate, error) {
	var (
		idStr, srcEndpointStr, destEndpointStr string
		eventType, srcCfgStr, filePattern      string
		destTemplate, chainRulesStr            string
		name                                   string
		isActive                               int
		totalTriggers                          int64
		lastTriggered                          sql.NullTime
	)
	if err := row.Scan(&idStr, &name, &eventType, &srcEndpointStr, &srcCfgStr, &filePattern,
		&destEndpointStr, &destTemplate, &chainRulesStr, &isActive, &totalTriggers, &lastTriggered); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, errors.Join(errs.ErrSystem, err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}
	srcEndpoint, err := uuid.Parse(srcEndpointStr)
	if err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}
	destEndpoint, err := uuid.Parse(destEndpointStr)
	if err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}
	var srcCfg model.TemplateSourceConfig
	if err := json.Unmarshal([]byte(srcCfgStr), &srcCfg); err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}
	var chainRules []model.ChainRule
	if err := json.Unmarshal([]byte(chainRulesStr), &chainRules); err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}

	t := &model.TransferTemplate{
		ID:             id,
		Name:           name,
		EventType:      model.EventType(eventType),
		SourceEndpoint: srcEndpoint,
		SourceConfig:   srcCfg,
		FilePattern:    filePattern,
		DestEndpointID: destEndpoint,
		DestTemplate:   destTemplate,
		ChainRules:     chainRules,
		IsActive:       isActive != 0,
		TotalTriggers:  totalTriggers,
	}
	if lastTriggered.Valid {
		t.LastTriggered = &lastTriggered.Time
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
