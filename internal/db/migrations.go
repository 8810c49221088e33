package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrSchemaTooNew is returned when the file was written by a build that
// knows more migrations than this one.
var ErrSchemaTooNew = errors.New("cache schema is newer than this build")

type migration struct {
	version int
	name    string
	body    string
}

// RunMigrations applies every embedded migration above the file's
// user_version, one transaction each. user_version records the last one
// applied.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		return err
	}

	current, err := SchemaVersion(ctx, database)
	if err != nil {
		return err
	}

	latest := migrations[len(migrations)-1].version
	if current > latest {
		return fmt.Errorf("%w: file is at version %d, this build knows %d", ErrSchemaTooNew, current, latest)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(ctx, database, m); err != nil {
			return err
		}
	}

	return nil
}

func SchemaVersion(ctx context.Context, database *sql.DB) (int, error) {
	var version int
	if err := database.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	return version, nil
}

func applyMigration(ctx context.Context, database *sql.DB, m migration) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start migration tx %s: %w", m.name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.body); err != nil {
		return fmt.Errorf("execute migration %s: %w", m.name, err)
	}

	// PRAGMA takes no bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("record migration %s: %w", m.name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.name, err)
	}

	return nil
}

// loadMigrations reads NNN_name.sql files. Versions must run 1, 2, 3, ...
// without gaps so user_version alone identifies the applied set.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	names, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	migrations := make([]migration, 0, len(names))
	for _, name := range names {
		prefix, _, ok := strings.Cut(path.Base(name), "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: missing version prefix", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: parse version: %w", name, err)
		}

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}

		migrations = append(migrations, migration{version: version, name: name, body: string(body)})
	}

	if len(migrations) == 0 {
		return nil, errors.New("no migrations embedded")
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})
	for index, m := range migrations {
		if m.version != index+1 {
			return nil, fmt.Errorf("migration %s: expected version %d", m.name, index+1)
		}
	}

	return migrations, nil
}
