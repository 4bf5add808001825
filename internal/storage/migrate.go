package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const versionTable = `CREATE TABLE IF NOT EXISTS schema_version (version TEXT PRIMARY KEY)`

// MigrateUp applies every embedded migration not yet recorded in
// schema_version, oldest first.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, versionTable); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	names, err := migrationNames(".up.sql")
	if err != nil {
		return err
	}
	for _, name := range names {
		version := versionOf(name, ".up.sql")
		if applied[version] {
			continue
		}
		if err := runMigration(ctx, db, name, `INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
			return err
		}
	}
	return nil
}

// MigrateDown reverts the applied migrations, newest first.
func MigrateDown(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, versionTable); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	names, err := migrationNames(".down.sql")
	if err != nil {
		return err
	}
	for i := len(names) - 1; i >= 0; i-- {
		version := versionOf(names[i], ".down.sql")
		if !applied[version] {
			continue
		}
		if err := runMigration(ctx, db, names[i], `DELETE FROM schema_version WHERE version = ?`, version); err != nil {
			return err
		}
	}
	return nil
}

func migrationNames(suffix string) ([]string, error) {
	names, err := fs.Glob(migrationFiles, "migrations/*"+suffix)
	if err != nil {
		return nil, fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func versionOf(name, suffix string) string {
	return strings.TrimSuffix(path.Base(name), suffix)
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return nil, fmt.Errorf("read schema_version: %w", err)
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

// runMigration executes one file and its bookkeeping statement in a single
// transaction.
func runMigration(ctx context.Context, db *sql.DB, name, record, version string) error {
	body, err := migrationFiles.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	return tx.Commit()
}
