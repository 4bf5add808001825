package store

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

type state struct {
	groups    []model.TaskGroup
	manual    []model.Task
	automatic []model.Task
}

func (s state) clone() state {
	out := state{
		groups:    make([]model.TaskGroup, 0, len(s.groups)),
		manual:    append([]model.Task(nil), s.manual...),
		automatic: append([]model.Task(nil), s.automatic...),
	}
	for _, g := range s.groups {
		out.groups = append(out.groups, g.Clone())
	}
	return out
}

func (s *state) locate(id string) (int, int, bool) {
	for gi := range s.groups {
		if ti := s.groups[gi].IndexOf(id); ti >= 0 {
			return gi, ti, true
		}
	}
	return -1, -1, false
}

func (s *state) task(id string) (model.Task, bool) {
	gi, ti, ok := s.locate(id)
	if !ok {
		return model.Task{}, false
	}
	return s.groups[gi].Tasks[ti], true
}

func (s *state) groupIndex(name string) int {
	for i := range s.groups {
		if s.groups[i].Name == name {
			return i
		}
	}
	return -1
}

func (s *state) queue(kind model.QueueKind) *[]model.Task {
	switch kind {
	case model.QueueManual:
		return &s.manual
	case model.QueueAutomatic:
		return &s.automatic
	default:
		return nil
	}
}

func (s *state) queueOf(id string) (model.QueueKind, bool) {
	for _, kind := range []model.QueueKind{model.QueueManual, model.QueueAutomatic} {
		for _, t := range *s.queue(kind) {
			if t.ID == id {
				return kind, true
			}
		}
	}
	return "", false
}

func (s *state) removeFromGroups(id string) bool {
	found := false
	for gi := range s.groups {
		kept := s.groups[gi].Tasks[:0]
		for _, t := range s.groups[gi].Tasks {
			if t.ID == id {
				found = true
				continue
			}
			kept = append(kept, t)
		}
		s.groups[gi].Tasks = kept
	}
	return found
}

func (s *state) removeFromQueues(id string) bool {
	found := false
	for _, kind := range []model.QueueKind{model.QueueManual, model.QueueAutomatic} {
		q := s.queue(kind)
		kept := (*q)[:0]
		for _, t := range *q {
			if t.ID == id {
				found = true
				continue
			}
			kept = append(kept, t)
		}
		*q = kept
	}
	return found
}

// Batch is a mutable view over a private copy of the store state. It is
// only valid inside the function passed to TaskStore.Batch.
type Batch struct {
	st      *state
	now     time.Time
	logger  *slog.Logger
	changed []string
	seen    map[string]struct{}
}

func newBatch(st state, now time.Time, logger *slog.Logger) *Batch {
	return &Batch{st: &st, now: now, logger: logger, seen: make(map[string]struct{})}
}

func (b *Batch) mark(id string) {
	if _, ok := b.seen[id]; ok {
		return
	}
	b.seen[id] = struct{}{}
	b.changed = append(b.changed, id)
}

// Changed lists the ids touched so far, in first-touch order.
func (b *Batch) Changed() []string {
	return append([]string(nil), b.changed...)
}

func (b *Batch) prepare(task model.Task, op string) (model.Task, error) {
	if strings.TrimSpace(task.ID) == "" {
		task.ID = model.NewID()
	}
	if task.Status == "" {
		task.Status = model.StatusActive
	}
	if task.Sensitivity == "" {
		task.Sensitivity = model.SensitivityNone
	}
	if task.Urgency == "" {
		task.Urgency = model.UrgencyMedium
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = b.now
	}
	task.UpdatedAt = b.now
	if err := task.Validate(); err != nil {
		return model.Task{}, apperr.Wrap(apperr.KindValidation, op, err)
	}
	return task, nil
}

// AddTask appends to the first group, creating the default group when the
// store is empty.
func (b *Batch) AddTask(task model.Task) (model.Task, error) {
	name := DefaultGroupName
	if len(b.st.groups) > 0 {
		name = b.st.groups[0].Name
	}
	return b.insert(name, model.GroupTopic, task, "store.AddTask")
}

// AddTaskToDate files the task under the long-date group for day.
func (b *Batch) AddTaskToDate(task model.Task, day time.Time) (model.Task, error) {
	d := timemath.StartOfDay(day)
	task.Date = &d
	return b.insert(timemath.LongDate(day), model.GroupDate, task, "store.AddTaskToDate")
}

func (b *Batch) AddTaskToGroup(group string, task model.Task) (model.Task, error) {
	name := strings.TrimSpace(group)
	if name == "" {
		return model.Task{}, apperr.New(apperr.KindValidation, "store.AddTaskToGroup", "group name is required")
	}
	kind := model.GroupTopic
	if _, err := timemath.ParseLongDate(name, time.Local); err == nil {
		kind = model.GroupDate
	}
	return b.insert(name, kind, task, "store.AddTaskToGroup")
}

func (b *Batch) insert(group string, kind model.GroupKind, task model.Task, op string) (model.Task, error) {
	task, err := b.prepare(task, op)
	if err != nil {
		return model.Task{}, err
	}
	if b.st.removeFromGroups(task.ID) {
		b.logger.Debug("superseding existing task", "task_id", task.ID, "group", group)
	}
	task = b.syncQueues(task)

	gi := b.st.groupIndex(group)
	if gi < 0 {
		b.st.groups = append(b.st.groups, model.TaskGroup{Name: group, Kind: kind})
		gi = len(b.st.groups) - 1
	}
	b.st.groups[gi].Tasks = append(b.st.groups[gi].Tasks, task)
	b.mark(task.ID)
	return task, nil
}

// syncQueues keeps a queued copy in step with the group copy.
func (b *Batch) syncQueues(task model.Task) model.Task {
	kind, ok := b.st.queueOf(task.ID)
	if !ok {
		if task.Status == model.StatusQueued {
			task.Status = model.StatusActive
		}
		return task
	}
	if task.Status == model.StatusCompleted {
		b.st.removeFromQueues(task.ID)
		return task
	}
	task.Status = model.StatusQueued
	q := b.st.queue(kind)
	for i := range *q {
		if (*q)[i].ID == task.ID {
			(*q)[i] = task
		}
	}
	return task
}

func (b *Batch) UpdateTask(task model.Task) (bool, error) {
	gi, ti, ok := b.st.locate(task.ID)
	if !ok {
		b.logger.Debug("update ignored for unknown task", "task_id", task.ID)
		return false, nil
	}
	prev := b.st.groups[gi].Tasks[ti]
	if task.CreatedAt.IsZero() {
		task.CreatedAt = prev.CreatedAt
	}
	task, err := b.prepare(task, "store.UpdateTask")
	if err != nil {
		return false, err
	}
	task = b.syncQueues(task)
	b.st.groups[gi].Tasks[ti] = task
	b.mark(task.ID)
	return true, nil
}

func (b *Batch) RemoveTask(id string) bool {
	inGroups := b.st.removeFromGroups(id)
	inQueues := b.st.removeFromQueues(id)
	if !inGroups && !inQueues {
		return false
	}
	b.mark(id)
	return true
}

func (b *Batch) CompleteTask(id string) bool {
	gi, ti, ok := b.st.locate(id)
	if !ok {
		return false
	}
	t := &b.st.groups[gi].Tasks[ti]
	t.Status = model.StatusCompleted
	t.UpdatedAt = b.now
	b.st.removeFromQueues(id)
	b.mark(id)
	return true
}

// MoveToQueue places id in exactly one queue. A task already in the other
// queue is moved, not copied.
func (b *Batch) MoveToQueue(id string, kind model.QueueKind) (bool, error) {
	if !kind.IsValid() {
		return false, apperr.New(apperr.KindValidation, "store.MoveToQueue", fmt.Sprintf("unknown queue %q", kind))
	}
	gi, ti, ok := b.st.locate(id)
	if !ok {
		b.logger.Debug("queue request ignored for unknown task", "task_id", id, "queue", kind)
		return false, nil
	}
	t := &b.st.groups[gi].Tasks[ti]
	if t.Status == model.StatusCompleted {
		return false, apperr.New(apperr.KindValidation, "store.MoveToQueue", "completed tasks cannot be queued")
	}
	t.Status = model.StatusQueued
	t.UpdatedAt = b.now

	b.st.removeFromQueues(id)
	q := b.st.queue(kind)
	*q = append(*q, *t)
	b.mark(id)
	return true, nil
}

// ResolveQueued drops id from both queues and makes it active again.
func (b *Batch) ResolveQueued(id string) bool {
	if !b.st.removeFromQueues(id) {
		return false
	}
	if gi, ti, ok := b.st.locate(id); ok {
		t := &b.st.groups[gi].Tasks[ti]
		if t.Status == model.StatusQueued {
			t.Status = model.StatusActive
			t.UpdatedAt = b.now
		}
	}
	b.mark(id)
	return true
}

func (b *Batch) Task(id string) (model.Task, bool) {
	return b.st.task(id)
}

func (b *Batch) QueueOf(id string) (model.QueueKind, bool) {
	return b.st.queueOf(id)
}

// QueuedTask returns the queue copy of id, for tasks that only survive in
// a queue.
func (b *Batch) QueuedTask(id string) (model.Task, bool) {
	kind, ok := b.st.queueOf(id)
	if !ok {
		return model.Task{}, false
	}
	for _, t := range *b.st.queue(kind) {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

func (b *Batch) GroupOf(id string) (string, bool) {
	gi, _, ok := b.st.locate(id)
	if !ok {
		return "", false
	}
	return b.st.groups[gi].Name, true
}

func (b *Batch) Tasks() []model.Task {
	out := make([]model.Task, 0)
	for _, g := range b.st.groups {
		out = append(out, g.Tasks...)
	}
	return out
}
