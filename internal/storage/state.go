package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/store"
)

// State is everything persisted between runs.
type State struct {
	Groups    []model.TaskGroup
	Manual    []model.Task
	Automatic []model.Task
	Plans     map[string][]model.PlannedTask
	Templates []model.RecurringTemplate
}

// Capture copies the current store contents.
func Capture(tasks *store.TaskStore, plans *store.DailyPlanStore, templates []model.RecurringTemplate) State {
	snap := tasks.Snapshot()
	return State{
		Groups:    snap.Groups,
		Manual:    snap.Manual,
		Automatic: snap.Automatic,
		Plans:     plans.Snapshot(),
		Templates: append([]model.RecurringTemplate(nil), templates...),
	}
}

func (s State) values() map[string]any {
	return map[string]any{
		KeyTaskGroups:         nonNil(s.Groups),
		KeyQueueManual:        nonNil(s.Manual),
		KeyQueueAutomatic:     nonNil(s.Automatic),
		KeyDailyPlans:         nonNilMap(s.Plans),
		KeyRecurringTemplates: nonNil(s.Templates),
	}
}

// SaveState writes each key on its own. A failing key does not stop the
// others; the failures are joined.
func SaveState(ctx context.Context, a Adapter, s State) error {
	var errs []error
	values := s.values()
	for _, key := range orderedKeys {
		payload, err := json.Marshal(values[key])
		if err != nil {
			errs = append(errs, fmt.Errorf("encode %s: %w", key, err))
			continue
		}
		if err := a.Save(ctx, key, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var orderedKeys = []string{KeyTaskGroups, KeyQueueManual, KeyQueueAutomatic, KeyDailyPlans, KeyRecurringTemplates}

// LoadState reads every key. A missing or unreadable key leaves that part
// of the state empty and is logged; it never fails the whole load.
func LoadState(ctx context.Context, a Adapter, logger *slog.Logger) State {
	if logger == nil {
		logger = slog.Default()
	}
	var s State
	load := func(key string, dst any) {
		raw, err := a.Load(ctx, key)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				logger.Warn("state key unreadable, starting empty", "key", key, "error", err)
			}
			return
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			logger.Warn("state key corrupt, starting empty", "key", key, "error", err)
			_ = json.Unmarshal([]byte("null"), dst)
		}
	}

	load(KeyTaskGroups, &s.Groups)
	load(KeyQueueManual, &s.Manual)
	load(KeyQueueAutomatic, &s.Automatic)

	plans := make(map[string][]model.PlannedTask)
	load(KeyDailyPlans, &plans)
	if plans == nil {
		plans = make(map[string][]model.PlannedTask)
	}
	s.Plans = plans
	load(KeyRecurringTemplates, &s.Templates)
	return s
}

// Restore loads s into the stores. Duplicates and misplaced queue entries
// are repaired by the task store's conflict scan.
func (s State) Restore(tasks *store.TaskStore, plans *store.DailyPlanStore) store.ConflictReport {
	report := tasks.Restore(store.Snapshot{Groups: s.Groups, Manual: s.Manual, Automatic: s.Automatic})
	plans.Restore(s.Plans)
	return report
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func nonNilMap(in map[string][]model.PlannedTask) map[string][]model.PlannedTask {
	if in == nil {
		return map[string][]model.PlannedTask{}
	}
	return in
}
