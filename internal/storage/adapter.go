// Package storage persists planner state as independent JSON values under
// fixed keys.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/config"
)

var ErrNotFound = errors.New("storage: not found")

const (
	KeyTaskGroups         = "task_groups"
	KeyQueueManual        = "queue_manual"
	KeyQueueAutomatic     = "queue_automatic"
	KeyDailyPlans         = "daily_plans"
	KeyRecurringTemplates = "recurring_templates"
)

// Adapter stores opaque values by key. Load returns ErrNotFound for a key
// that was never saved.
type Adapter interface {
	Save(ctx context.Context, key string, value []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// Open returns the adapter selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Storage) (Adapter, error) {
	const op = "storage.Open"
	switch cfg.Driver {
	case config.DriverSQLite:
		a, err := OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, apperr.Wrapf(apperr.KindConfiguration, op, err, "open sqlite storage")
		}
		return a, nil
	case config.DriverPostgres:
		a, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, apperr.Wrapf(apperr.KindConfiguration, op, err, "open postgres storage")
		}
		return a, nil
	case config.DriverFile:
		a, err := NewFileAdapter(cfg.Path)
		if err != nil {
			return nil, apperr.Wrapf(apperr.KindConfiguration, op, err, "open file storage")
		}
		return a, nil
	case config.DriverMemory:
		return NewMemoryAdapter(), nil
	default:
		return nil, apperr.New(apperr.KindConfiguration, op, fmt.Sprintf("unknown driver %q", cfg.Driver))
	}
}
