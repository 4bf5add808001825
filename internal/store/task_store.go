// Package store holds the authoritative task groups, the two reschedule
// queues and the per-day plans. Every mutation is applied to a private copy
// of the state and committed in one step, so observers never see a
// half-applied change.
package store

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

// DefaultGroupName is used when AddTask finds no groups.
const DefaultGroupName = "Tasks"

type Op string

const (
	OpAdd      Op = "add"
	OpUpdate   Op = "update"
	OpRemove   Op = "remove"
	OpComplete Op = "complete"
	OpQueue    Op = "queue"
	OpResolve  Op = "resolve"
	OpBatch    Op = "batch"
	OpRestore  Op = "restore"
	OpScan     Op = "scan"
)

// Change describes a committed mutation.
type Change struct {
	Op  Op
	IDs []string
}

type Observer func(Change)

type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
}

type TaskStore struct {
	mu        sync.RWMutex
	st        state
	observers observers
	logger    *slog.Logger
	now       func() time.Time
}

func NewTaskStore(opts Options) *TaskStore {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &TaskStore{logger: logger.With("component", "task_store"), now: now}
}

// Subscribe registers fn and returns a function that removes it.
func (s *TaskStore) Subscribe(fn Observer) func() {
	return s.observers.add(fn)
}

// Batch runs fn against a copy of the state. The copy replaces the live
// state only when fn returns nil; observers get a single OpBatch change.
func (s *TaskStore) Batch(fn func(*Batch) error) error {
	_, err := s.apply(OpBatch, func(b *Batch) error { return fn(b) })
	return err
}

func (s *TaskStore) apply(op Op, fn func(*Batch) error) (*Batch, error) {
	s.mu.Lock()
	b := newBatch(s.st.clone(), s.now(), s.logger)
	if err := fn(b); err != nil {
		s.mu.Unlock()
		return b, err
	}
	if len(b.changed) > 0 {
		s.st = *b.st
	}
	s.mu.Unlock()

	if len(b.changed) > 0 {
		s.observers.notify(Change{Op: op, IDs: b.changed})
	}
	return b, nil
}

func (s *TaskStore) AddTask(task model.Task) (model.Task, error) {
	var out model.Task
	_, err := s.apply(OpAdd, func(b *Batch) error {
		var err error
		out, err = b.AddTask(task)
		return err
	})
	return out, err
}

func (s *TaskStore) AddTaskToDate(task model.Task, day time.Time) (model.Task, error) {
	var out model.Task
	_, err := s.apply(OpAdd, func(b *Batch) error {
		var err error
		out, err = b.AddTaskToDate(task, day)
		return err
	})
	return out, err
}

func (s *TaskStore) AddTaskToGroup(group string, task model.Task) (model.Task, error) {
	var out model.Task
	_, err := s.apply(OpAdd, func(b *Batch) error {
		var err error
		out, err = b.AddTaskToGroup(group, task)
		return err
	})
	return out, err
}

// UpdateTask replaces the stored copy. It reports false, without error,
// when no task has that id.
func (s *TaskStore) UpdateTask(task model.Task) (bool, error) {
	var ok bool
	_, err := s.apply(OpUpdate, func(b *Batch) error {
		var err error
		ok, err = b.UpdateTask(task)
		return err
	})
	return ok, err
}

func (s *TaskStore) RemoveTask(id string) bool {
	var ok bool
	_, _ = s.apply(OpRemove, func(b *Batch) error {
		ok = b.RemoveTask(id)
		return nil
	})
	return ok
}

func (s *TaskStore) CompleteTask(id string) bool {
	var ok bool
	_, _ = s.apply(OpComplete, func(b *Batch) error {
		ok = b.CompleteTask(id)
		return nil
	})
	return ok
}

// MoveToQueue flags a task for attention. The task stays in its group.
func (s *TaskStore) MoveToQueue(id string, kind model.QueueKind) (bool, error) {
	var ok bool
	_, err := s.apply(OpQueue, func(b *Batch) error {
		var err error
		ok, err = b.MoveToQueue(id, kind)
		return err
	})
	return ok, err
}

func (s *TaskStore) ResolveQueued(id string) bool {
	var ok bool
	_, _ = s.apply(OpResolve, func(b *Batch) error {
		ok = b.ResolveQueued(id)
		return nil
	})
	return ok
}

func (s *TaskStore) Task(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.task(id)
}

// GroupOf returns the name of the group holding id.
func (s *TaskStore) GroupOf(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gi, _, ok := s.st.locate(id)
	if !ok {
		return "", false
	}
	return s.st.groups[gi].Name, true
}

func (s *TaskStore) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, 0)
	for _, g := range s.st.groups {
		out = append(out, g.Tasks...)
	}
	return out
}

func (s *TaskStore) Groups() []model.TaskGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TaskGroup, 0, len(s.st.groups))
	for _, g := range s.st.groups {
		out = append(out, g.Clone())
	}
	return out
}

func (s *TaskStore) Group(name string) (model.TaskGroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if gi := s.st.groupIndex(name); gi >= 0 {
		return s.st.groups[gi].Clone(), true
	}
	return model.TaskGroup{}, false
}

func (s *TaskStore) Queue(kind model.QueueKind) []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := s.st.queue(kind)
	if q == nil {
		return nil
	}
	return append([]model.Task(nil), (*q)...)
}

func (s *TaskStore) QueueOf(id string) (model.QueueKind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.queueOf(id)
}

// DueOn lists active, unqueued tasks dated on day, either by their Date or
// by living in that day's date group.
func (s *TaskStore) DueOn(day time.Time) []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name := timemath.LongDate(day)
	out := make([]model.Task, 0)
	for _, g := range s.st.groups {
		inDateGroup := g.Kind == model.GroupDate && g.Name == name
		for _, t := range g.Tasks {
			if t.Status != model.StatusActive {
				continue
			}
			if _, queued := s.st.queueOf(t.ID); queued {
				continue
			}
			if inDateGroup || t.OnDay(day) {
				out = append(out, t)
			}
		}
	}
	return out
}

// Snapshot is the serializable form of the store.
type Snapshot struct {
	Groups    []model.TaskGroup `json:"groups"`
	Manual    []model.Task      `json:"manual"`
	Automatic []model.Task      `json:"automatic"`
}

func (s *TaskStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.st.clone()
	return Snapshot{Groups: c.groups, Manual: c.manual, Automatic: c.automatic}
}

// Restore replaces the whole state and runs the conflict scan.
func (s *TaskStore) Restore(snap Snapshot) ConflictReport {
	next := state{groups: snap.Groups, manual: snap.Manual, automatic: snap.Automatic}.clone()
	report := scan(&next)

	s.mu.Lock()
	s.st = next
	s.mu.Unlock()

	report.log(s.logger)
	s.observers.notify(Change{Op: OpRestore, IDs: report.IDs()})
	return report
}

// ScanConflicts repairs duplicate ids and stale queue flags in place.
func (s *TaskStore) ScanConflicts() ConflictReport {
	s.mu.Lock()
	next := s.st.clone()
	report := scan(&next)
	if !report.Empty() {
		s.st = next
	}
	s.mu.Unlock()

	report.log(s.logger)
	if !report.Empty() {
		s.observers.notify(Change{Op: OpScan, IDs: report.IDs()})
	}
	return report
}

type observers struct {
	mu   sync.Mutex
	next int
	fns  map[int]Observer
}

func (o *observers) add(fn Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[int]Observer)
	}
	id := o.next
	o.next++
	o.fns[id] = fn
	return func() {
		o.mu.Lock()
		delete(o.fns, id)
		o.mu.Unlock()
	}
}

func (o *observers) notify(c Change) {
	o.mu.Lock()
	ids := make([]int, 0, len(o.fns))
	for id := range o.fns {
		ids = append(ids, id)
	}
	fns := make([]Observer, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, o.fns[id])
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
