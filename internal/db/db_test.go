package db

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "cache.db")

	first, err := Bootstrap(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Bootstrap(ctx, dbPath)
	require.NoError(t, err)
	defer second.Close()

	version, err := SchemaVersion(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	var tables int
	require.NoError(t, second.QueryRowContext(
		ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'histcache'",
	).Scan(&tables))
	assert.Equal(t, 1, tables)
}

func TestOpenAppliesConnectionPragmas(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	database, err := Open(ctx, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer database.Close()

	var journalMode string
	require.NoError(t, database.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var synchronous int
	require.NoError(t, database.QueryRowContext(ctx, "PRAGMA synchronous").Scan(&synchronous))
	assert.Equal(t, 2, synchronous, "synchronous should be FULL")

	var busyTimeout int
	require.NoError(t, database.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)
}

func TestOpenRejectsQueryCharacter(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "what?.db"))
	require.Error(t, err)
}

func TestBootstrapRejectsNewerSchema(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	database, err := Open(ctx, dbPath)
	require.NoError(t, err)
	_, err = database.ExecContext(ctx, "PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, database.Close())

	_, err = Bootstrap(ctx, dbPath)
	require.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestLoadMigrations(t *testing.T) {
	t.Parallel()

	migrations, err := loadMigrations(fstest.MapFS{
		"migrations/002_index.sql": {Data: []byte("CREATE INDEX i ON t(x);")},
		"migrations/001_table.sql": {Data: []byte("CREATE TABLE t(x);")},
	})
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].version)
	assert.Equal(t, "CREATE TABLE t(x);", migrations[0].body)
	assert.Equal(t, 2, migrations[1].version)

	_, err = loadMigrations(fstest.MapFS{
		"migrations/001_table.sql": {Data: []byte("CREATE TABLE t(x);")},
		"migrations/003_gap.sql":   {Data: []byte("SELECT 1;")},
	})
	assert.Error(t, err)

	_, err = loadMigrations(fstest.MapFS{
		"migrations/table.sql": {Data: []byte("CREATE TABLE t(x);")},
	})
	assert.Error(t, err)

	_, err = loadMigrations(fstest.MapFS{})
	assert.Error(t, err)
}
