// Package store provides hand-written database/sql repositories over the
// persistence layer, replacing a code-generated ORM with narrow, typed
// queries that return the domain structs in internal/core/model.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/core/errs"
	"github.com/orbit-sync/transferd/internal/core/logger"
	"github.com/orbit-sync/transferd/internal/core/model"
)

// EndpointStore persists model.Endpoint rows.
type EndpointStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEndpointStore creates a new EndpointStore.
func NewEndpointStore(db *sql.DB) *EndpointStore {
	return &EndpointStore{db: db, logger: logger.Named("store.endpoint")}
}

// Create inserts a new endpoint, assigning it an ID if it doesn't have one.
func (s *EndpointStore) Create(ctx context.Context, e *model.Endpoint) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	cfg, err := json.Marshal(e.Config)
	if err != nil {
		return errors.Join(errs.ErrInvalidInput, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO endpoints (id, name, kind, config, concurrent_limit)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID.String(), e.Name, string(e.Kind), string(cfg), e.ConcurrentLimit,
	)
	if err != nil {
		return errors.Join(errs.ErrSystem, err)
	}
	return nil
}

// Get fetches an endpoint by ID.
func (s *EndpointStore) Get(ctx context.Context, id uuid.UUID) (*model.Endpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, kind, config, concurrent_limit
		FROM endpoints WHERE id = ?`, id.String())
	return scanEndpoint(row)
}

// EndpointLimit satisfies throttle.Limits by resolving an endpoint's
// configured concurrency ceiling.
func (s *EndpointStore) EndpointLimit(ctx context.Context, id uuid.UUID) (int, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return e.ConcurrentLimit, nil
}

// GetByName fetches an endpoint by its unique name.
func (s *EndpointStore) GetByName(ctx context.Context, name string) (*model.Endpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, kind, config, concurrent_limit
		FROM endpoints WHERE name = ?`, name)
	return scanEndpoint(row)
}

// List returns every endpoint.
func (s *EndpointStore) List(ctx context.Context) ([]*model.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, config, concurrent_limit FROM endpoints`)
	if err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}
	defer rows.Close()

	var out []*model.Endpoint
	for rows.Next() {
		e, err := scanEndpointRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Update overwrites an existing endpoint's mutable fields.
func (s *EndpointStore) Update(ctx context.Context, e *model.Endpoint) error {
	cfg, err := json.Marshal(e.Config)
	if err != nil {
		return errors.Join(errs.ErrInvalidInput, err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE endpoints SET name = ?, kind = ?, config = ?, concurrent_limit = ?
		WHERE id = ?`,
		e.Name, string(e.Kind), string(cfg), e.ConcurrentLimit, e.ID.String(),
	)
	if err != nil {
		return errors.Join(errs.ErrSystem, err)
	}
	return checkRowsAffected(res)
}

// Delete removes an endpoint by ID.
func (s *EndpointStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM endpoints WHERE id = ?`, id.String())
	if err != nil {
		return errors.Join(errs.ErrSystem, err)
	}
	return checkRowsAffected(res)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEndpoint(row *sql.Row) (*model.Endpoint, error) {
	return scanEndpointScanner(row)
}

func scanEndpointRows(rows *sql.Rows) (*model.Endpoint, error) {
	return scanEndpointScanner(rows)
}

func scanEndpointScanner(row rowScanner) (*model.Endpoint, error) {
	var (
		idStr, kindStr, cfgStr, name string
		limit                        int
	)
	if err := row.Scan(&idStr, &name, &kindStr, &cfgStr, &limit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrEndpointNotFound
		}
		return nil, errors.Join(errs.ErrSystem, err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, errors.Join(errs.ErrSystem, fmt.Errorf("corrupt endpoint id %q: %w", idStr, err))
	}
	var cfg model.EndpointConfig
	if err := json.Unmarshal([]byte(cfgStr), &cfg); err != nil {
		return nil, errors.Join(errs.ErrSystem, err)
	}
	return &model.Endpoint{
		ID:              id,
		Name:            name,
		Kind:            model.EndpointKind(kindStr),
		Config:          cfg,
		ConcurrentLimit: limit,
	}, nil
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Join(errs.ErrSystem, err)
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}
