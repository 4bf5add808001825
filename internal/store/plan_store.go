package store

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

// DailyPlanStore keeps accepted plan entries per day. Entries are addressed
// by PlannedTask.Key, so id-less blocks are still unique within a day.
type DailyPlanStore struct {
	mu        sync.RWMutex
	days      map[string][]model.PlannedTask
	observers observers
	logger    *slog.Logger
}

func NewDailyPlanStore(logger *slog.Logger) *DailyPlanStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyPlanStore{
		days:   make(map[string][]model.PlannedTask),
		logger: logger.With("component", "daily_plan_store"),
	}
}

func (s *DailyPlanStore) Subscribe(fn Observer) func() {
	return s.observers.add(fn)
}

// Replace swaps the whole plan for day. Entries are stamped with the day and
// later copies of a key are dropped.
func (s *DailyPlanStore) Replace(day time.Time, entries []model.PlannedTask) {
	key := timemath.DayKey(day)
	out := make([]model.PlannedTask, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		e.Day = key
		k := e.Key()
		if _, dup := seen[k]; dup {
			s.logger.Debug("dropped duplicate plan entry", "day", key, "entry", k)
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
		ids = append(ids, k)
	}

	s.mu.Lock()
	if len(out) == 0 {
		delete(s.days, key)
	} else {
		s.days[key] = out
	}
	s.mu.Unlock()

	s.observers.notify(Change{Op: OpBatch, IDs: ids})
}

// Upsert replaces the entry with the same key or appends it.
func (s *DailyPlanStore) Upsert(day time.Time, entry model.PlannedTask) model.PlannedTask {
	key := timemath.DayKey(day)
	entry.Day = key
	k := entry.Key()

	s.mu.Lock()
	list := s.days[key]
	replaced := false
	for i := range list {
		if list[i].Key() == k {
			list[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, entry)
	}
	s.days[key] = list
	s.mu.Unlock()

	op := OpAdd
	if replaced {
		op = OpUpdate
	}
	s.observers.notify(Change{Op: op, IDs: []string{k}})
	return entry
}

func (s *DailyPlanStore) Entries(day time.Time) []model.PlannedTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.PlannedTask(nil), s.days[timemath.DayKey(day)]...)
}

func (s *DailyPlanStore) Entry(day time.Time, id string) (model.PlannedTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.days[timemath.DayKey(day)] {
		if e.Key() == id {
			return e, true
		}
	}
	return model.PlannedTask{}, false
}

func (s *DailyPlanStore) Remove(day time.Time, id string) bool {
	key := timemath.DayKey(day)
	s.mu.Lock()
	list := s.days[key]
	idx := -1
	for i := range list {
		if list[i].Key() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	list = append(list[:idx:idx], list[idx+1:]...)
	if len(list) == 0 {
		delete(s.days, key)
	} else {
		s.days[key] = list
	}
	s.mu.Unlock()

	s.observers.notify(Change{Op: OpRemove, IDs: []string{id}})
	return true
}

func (s *DailyPlanStore) Clear(day time.Time) int {
	key := timemath.DayKey(day)
	s.mu.Lock()
	n := len(s.days[key])
	delete(s.days, key)
	s.mu.Unlock()

	if n > 0 {
		s.observers.notify(Change{Op: OpRemove})
	}
	return n
}

func (s *DailyPlanStore) SetCompleted(day time.Time, id string, done bool) bool {
	key := timemath.DayKey(day)
	s.mu.Lock()
	list := s.days[key]
	found := false
	for i := range list {
		if list[i].Key() == id {
			list[i].Completed = done
			found = true
			break
		}
	}
	s.mu.Unlock()

	if found {
		s.observers.notify(Change{Op: OpComplete, IDs: []string{id}})
	}
	return found
}

// Progress counts completed and total entries for day.
func (s *DailyPlanStore) Progress(day time.Time) (done int, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.days[timemath.DayKey(day)] {
		total++
		if e.Completed {
			done++
		}
	}
	return done, total
}

// Days returns the day keys with at least one entry, ascending.
func (s *DailyPlanStore) Days() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.days))
	for k := range s.days {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *DailyPlanStore) Snapshot() map[string][]model.PlannedTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]model.PlannedTask, len(s.days))
	for k, v := range s.days {
		out[k] = append([]model.PlannedTask(nil), v...)
	}
	return out
}

// Restore loads a snapshot. Keys that are not valid day keys are skipped.
func (s *DailyPlanStore) Restore(snap map[string][]model.PlannedTask) {
	next := make(map[string][]model.PlannedTask, len(snap))
	for k, v := range snap {
		day, err := timemath.ParseDayKey(k, time.Local)
		if err != nil {
			s.logger.Warn("skipping plan with bad day key", "day", k, "error", err)
			continue
		}
		key := timemath.DayKey(day)
		seen := make(map[string]struct{}, len(v))
		for _, e := range v {
			e.Day = key
			if _, dup := seen[e.Key()]; dup {
				continue
			}
			seen[e.Key()] = struct{}{}
			next[key] = append(next[key], e)
		}
	}

	s.mu.Lock()
	s.days = next
	s.mu.Unlock()

	s.observers.notify(Change{Op: OpRestore})
}
