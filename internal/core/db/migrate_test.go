package db

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbit-sync/transferd/internal/core/config"
	"github.com/orbit-sync/transferd/internal/core/logger"
)

func init() {
	config.Cfg.App.Environment = "test"
	logger.InitLogger(logger.EnvironmentDevelopment, logger.LogLevelDebug, nil)
}

func createTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "migrate_test_*.db")
	require.NoError(t, err)
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	conn, err := sql.Open("sqlite3", tmpPath+"?_fk=1")
	require.NoError(t, err)

	cleanup := func() {
		conn.Close()
		os.Remove(tmpPath)
	}

	return conn, cleanup
}

func TestMigrate_FreshDatabase(t *testing.T) {
	conn, cleanup := createTestDB(t)
	defer cleanup()

	err := Migrate(conn, "test")
	require.NoError(t, err)

	tables := []string{"endpoints", "transfer_templates", "jobs", "transfers", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "Table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_NoChange(t *testing.T) {
	conn, cleanup := createTestDB(t)
	defer cleanup()

	require.NoError(t, Migrate(conn, "test"))
	require.NoError(t, Migrate(conn, "test"))
}

func TestGetMigrationStatus_FreshDatabase(t *testing.T) {
	conn, cleanup := createTestDB(t)
	defer cleanup()

	status, err := GetMigrationStatus(conn)
	require.NoError(t, err)
	assert.Equal(t, uint(0), status.Version)
	assert.False(t, status.Dirty)
}

func TestGetMigrationStatus_AfterMigration(t *testing.T) {
	conn, cleanup := createTestDB(t)
	defer cleanup()

	require.NoError(t, Migrate(conn, "test"))

	status, err := GetMigrationStatus(conn)
	require.NoError(t, err)
	assert.True(t, status.Version > 0, "version should be greater than 0 after migration")
	assert.False(t, status.Dirty)
}

func TestGetPendingMigrations_FreshDatabase(t *testing.T) {
	conn, cleanup := createTestDB(t)
	defer cleanup()

	pending, err := GetPendingMigrations(conn)
	require.NoError(t, err)
	assert.True(t, len(pending) > 0, "should have pending migrations on a fresh database")
}

func TestGetPendingMigrations_AfterMigration(t *testing.T) {
	conn, cleanup := createTestDB(t)
	defer cleanup()

	require.NoError(t, Migrate(conn, "test"))

	pending, err := GetPendingMigrations(conn)
	require.NoError(t, err)
	assert.Equal(t, 0, len(pending), "should have no pending migrations after migration")
}

func TestLogMigrationStatus(t *testing.T) {
	conn, cleanup := createTestDB(t)
	defer cleanup()

	require.NoError(t, Migrate(conn, "test"))

	// This should not panic.
	LogMigrationStatus(conn)
}

func TestParseMigrationMode(t *testing.T) {
	tests := []struct {
		input    string
		expected MigrationMode
	}{
		{"versioned", MigrationModeVersioned},
		{"auto", MigrationModeAuto},
		{"", MigrationModeVersioned},
		{"unknown", MigrationModeVersioned},
		{"VERSIONED", MigrationModeVersioned},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseMigrationMode(tc.input))
		})
	}
}

func TestMigrationModeConstants(t *testing.T) {
	assert.Equal(t, MigrationMode("versioned"), MigrationModeVersioned)
	assert.Equal(t, MigrationMode("auto"), MigrationModeAuto)
}
