// Package db provides database initialization, connection management and
// schema migration for the persistence layer.
package db

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/core/config"
	"github.com/orbit-sync/transferd/internal/core/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

func log() *zap.Logger {
	return logger.Named("core.db")
}

// FileSDN builds a file-backed SQLite DSN with WAL journaling, a 5s busy
// timeout and foreign keys enabled, suitable for a single-process writer
// with many concurrent readers.
func FileSDN(path string) string {
	return fmt.Sprintf(
		"file:%s?_fk=1&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL",
		path,
	)
}

// InMemoryDSN builds an in-memory SQLite DSN, shared across connections in
// the same process (for tests).
func InMemoryDSN() string {
	return "file::memory:?cache=shared&_fk=1&_busy_timeout=5000"
}

// InitDBOptions configures InitDB.
type InitDBOptions struct {
	DSN           string
	MigrationMode MigrationMode
	EnableDebug   bool
	Environment   string
}

// InitDB opens the SQLite connection described by opts and brings the
// schema up to date according to opts.MigrationMode.
func InitDB(opts InitDBOptions) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed opening connection to sqlite: %w", err)
	}
	// sqlite3 only supports a single writer at a time; serialize access so
	// busy_timeout, rather than driver-level pooling, governs contention.
	conn.SetMaxOpenConns(1)

	if opts.MigrationMode == MigrationModeAuto {
		if err := autoMigrate(conn); err != nil {
			conn.Close()
			return nil, err
		}
	} else if err := Migrate(conn, opts.Environment); err != nil {
		conn.Close()
		return nil, err
	}

	LogMigrationStatus(conn)
	if opts.EnableDebug {
		log().Debug("database initialized with debug logging enabled")
	}
	return conn, nil
}

// Open opens the database connection configured via config.Cfg.Database.
func Open() (*sql.DB, error) {
	return InitDB(InitDBOptions{
		DSN:           FileSDN(config.Cfg.Database.Path),
		MigrationMode: ParseMigrationMode(config.Cfg.Database.MigrationMode),
		EnableDebug:   config.Cfg.App.Environment == "development",
		Environment:   config.Cfg.App.Environment,
	})
}

// autoMigrate applies every embedded "up" migration directly, idempotently,
// for local/dev use without running the versioned migrator.
func autoMigrate(conn *sql.DB) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed reading embedded migrations: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || len(name) < 7 || name[len(name)-7:] != ".up.sql" {
			continue
		}
		contents, err := migrations.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed reading migration %s: %w", name, err)
		}
		if _, err := conn.Exec(string(contents)); err != nil {
			return fmt.Errorf("failed applying migration %s: %w", name, err)
		}
	}
	return nil
}

// CloseDB closes the database connection. Safe to call with nil.
func CloseDB(conn *sql.DB) {
	if conn != nil {
		_ = conn.Close()
	}
}
