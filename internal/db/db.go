// Package db opens the sqlite file behind the histogram cache and keeps its
// schema current.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// connectionPragmas are applied by the driver to every connection it opens.
// synchronous(FULL) makes each committed cache row survive power loss, not
// only a process crash.
var connectionPragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(FULL)",
}

func Bootstrap(ctx context.Context, dbPath string) (*sql.DB, error) {
	database, err := Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, database); err != nil {
		database.Close()
		return nil, err
	}

	return database, nil
}

// Open opens the sqlite file at dbPath. The pool is limited to one
// connection: the cache has a single writer and relies on per-connection
// temporary tables.
func Open(ctx context.Context, dbPath string) (*sql.DB, error) {
	name, err := dataSourceName(dbPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	database, err := sql.Open("sqlite", name)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	database.SetMaxOpenConns(1)

	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", dbPath, err)
	}

	return database, nil
}

// dataSourceName appends the connection pragmas as driver query parameters.
// The driver cuts the file name at the first '?', so such paths are refused.
func dataSourceName(dbPath string) (string, error) {
	if strings.Contains(dbPath, "?") {
		return "", fmt.Errorf("db path %q must not contain '?'", dbPath)
	}

	query := url.Values{}
	for _, pragma := range connectionPragmas {
		query.Add("_pragma", pragma)
	}

	return dbPath + "?" + query.Encode(), nil
}
