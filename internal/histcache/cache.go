// Package histcache persists computed histograms keyed by file path so that
// unchanged inputs are not decoded again on the next run.
//
// Entries are identified by path only. A file rewritten in place keeps its
// cached histogram until it leaves the working set or is refreshed by watch
// mode.
package histcache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gojson "github.com/goccy/go-json"

	"imgcluster/internal/db"
	"imgcluster/internal/palette"
)

// Cache is the persistent histogram store. A Cache opened without a location
// is a no-op: lookups return nothing and writes are discarded.
//
// Cache is not safe for concurrent use; it is owned by the orchestrating
// goroutine.
type Cache struct {
	db *sql.DB
}

func Open(ctx context.Context, location string) (*Cache, error) {
	if location == "" {
		return &Cache{}, nil
	}

	database, err := db.Bootstrap(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("open histogram cache %s: %w", location, err)
	}

	return &Cache{db: database}, nil
}

func (c *Cache) Enabled() bool {
	return c != nil && c.db != nil
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}

	return c.db.Close()
}

// Prune deletes every entry whose path is not part of workingSet and returns
// the number of deleted entries.
func (c *Cache) Prune(ctx context.Context, workingSet []string) (int, error) {
	if !c.Enabled() {
		return 0, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "CREATE TEMPORARY TABLE IF NOT EXISTS wantfiles(path TEXT PRIMARY KEY)"); err != nil {
		return 0, fmt.Errorf("create wantfiles: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM wantfiles"); err != nil {
		return 0, fmt.Errorf("clear wantfiles: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO wantfiles(path) VALUES (?)")
	if err != nil {
		return 0, fmt.Errorf("prepare wantfiles insert: %w", err)
	}
	defer insert.Close()

	for _, path := range workingSet {
		if _, err := insert.ExecContext(ctx, path); err != nil {
			return 0, fmt.Errorf("insert wantfile %s: %w", path, err)
		}
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM histcache WHERE path NOT IN (SELECT path FROM wantfiles)")
	if err != nil {
		return 0, fmt.Errorf("delete stale histograms: %w", err)
	}

	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count stale histograms: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE wantfiles"); err != nil {
		return 0, fmt.Errorf("drop wantfiles: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune tx: %w", err)
	}

	return int(pruned), nil
}

func (c *Cache) All(ctx context.Context) (map[string]palette.Histogram, error) {
	histograms := make(map[string]palette.Histogram)
	if !c.Enabled() {
		return histograms, nil
	}

	rows, err := c.db.QueryContext(ctx, "SELECT path, histogram FROM histcache")
	if err != nil {
		return nil, fmt.Errorf("list histograms: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var path string
		var payload []byte
		if err := rows.Scan(&path, &payload); err != nil {
			return nil, fmt.Errorf("scan histogram row: %w", err)
		}

		histogram, err := decodeHistogram(payload)
		if err != nil {
			// Undecodable rows are left out; the file is recomputed and the row
			// overwritten by Put.
			continue
		}
		histograms[path] = histogram
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate histogram rows: %w", err)
	}

	return histograms, nil
}

// Put stores histogram for path. The write is committed before Put returns.
func (c *Cache) Put(ctx context.Context, path string, histogram palette.Histogram) error {
	if !c.Enabled() {
		return nil
	}

	payload, err := encodeHistogram(histogram)
	if err != nil {
		return fmt.Errorf("encode histogram %s: %w", path, err)
	}

	if _, err := c.db.ExecContext(
		ctx,
		`INSERT INTO histcache(path, histogram, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			histogram = excluded.histogram,
			updated_at = excluded.updated_at`,
		path,
		payload,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("upsert histogram %s: %w", path, err)
	}

	return nil
}

func (c *Cache) Delete(ctx context.Context, path string) error {
	if !c.Enabled() {
		return nil
	}

	if _, err := c.db.ExecContext(ctx, "DELETE FROM histcache WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete histogram %s: %w", path, err)
	}

	return nil
}

func encodeHistogram(histogram palette.Histogram) ([]byte, error) {
	return gojson.Marshal([]float64(histogram))
}

func decodeHistogram(payload []byte) (palette.Histogram, error) {
	var values []float64
	if err := gojson.Unmarshal(payload, &values); err != nil {
		return nil, err
	}

	return palette.Histogram(values), nil
}
