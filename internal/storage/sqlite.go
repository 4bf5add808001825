package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteTimeLayout = time.RFC3339Nano

type SQLiteAdapter struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteAdapter(db *sql.DB) (*SQLiteAdapter, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	return &SQLiteAdapter{db: db, now: time.Now}, nil
}

// OpenSQLite opens path and applies the embedded migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteAdapter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := MigrateUp(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	a, err := NewSQLiteAdapter(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *SQLiteAdapter) Close() error {
	return a.db.Close()
}

func (a *SQLiteAdapter) Save(ctx context.Context, key string, value []byte) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, a.now().UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (a *SQLiteAdapter) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := a.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return value, nil
}

// UpdatedAt reports when key was last saved.
func (a *SQLiteAdapter) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	var raw string
	err := a.db.QueryRowContext(ctx, `SELECT updated_at FROM kv WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, err
	}
	return time.Parse(sqliteTimeLayout, raw)
}
