package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgAdapter keeps the same key/value layout in a Postgres table.
type PgAdapter struct {
	pool *pgxpool.Pool
}

func NewPgAdapter(pool *pgxpool.Pool) *PgAdapter {
	return &PgAdapter{pool: pool}
}

// OpenPostgres connects to dsn and makes sure the table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PgAdapter, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a := NewPgAdapter(pool)
	if err := a.EnsureTable(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure table: %w", err)
	}
	return a, nil
}

// EnsureTable creates the dayplan_kv table if it doesn't exist.
func (a *PgAdapter) EnsureTable(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS dayplan_kv (
			key        TEXT PRIMARY KEY,
			value      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (a *PgAdapter) Save(ctx context.Context, key string, value []byte) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO dayplan_kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, string(value),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (a *PgAdapter) Load(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := a.pool.QueryRow(ctx, `SELECT value::text FROM dayplan_kv WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return []byte(value), nil
}

func (a *PgAdapter) Close() error {
	a.pool.Close()
	return nil
}
