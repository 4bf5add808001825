// Package reconcile moves accepted plans into the task store and keeps the
// task groups, the day plans and the reschedule queues consistent.
package reconcile

import (
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/store"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

type Reconciler struct {
	tasks  *store.TaskStore
	plans  *store.DailyPlanStore
	logger *slog.Logger
	now    func() time.Time
	tokens atomic.Uint64
}

func New(tasks *store.TaskStore, plans *store.DailyPlanStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		tasks:  tasks,
		plans:  plans,
		logger: logger.With("component", "reconciler"),
		now:    time.Now,
	}
}

// SetClock replaces the time source.
func (r *Reconciler) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// Outcome summarises what Accept changed.
type Outcome struct {
	Scheduled []string
	PlanOnly  []string
	Queued    []string
}

// Accept commits entries for day. Entries whose id names a live task replace
// that task with a scheduled copy in the day's date group. Other entries are kept
// in the day plan only. Originals the planner left out go to the automatic
// queue. The task store changes in one batch, so a failure leaves it as it
// was and the day plan untouched.
func (r *Reconciler) Accept(day time.Time, entries []model.PlannedTask, originals []model.Task) (Outcome, error) {
	const op = "reconcile.Accept"
	day = timemath.StartOfDay(day)

	var out Outcome
	var planOnly []model.PlannedTask
	matched := make(map[string]bool)
	dateGroup := timemath.LongDate(day)

	err := r.tasks.Batch(func(b *store.Batch) error {
		out, planOnly = Outcome{}, nil
		for _, e := range entries {
			id := strings.TrimSpace(e.ID)
			current, ok := lookup(b, id)
			if !ok {
				planOnly = append(planOnly, e)
				continue
			}
			if matched[id] {
				r.logger.Debug("duplicate plan entry for task ignored", "task_id", id)
				continue
			}
			matched[id] = true

			next := synthesize(current, e, day)
			if err := place(b, next, day, dateGroup); err != nil {
				return apperr.Wrapf(apperr.KindValidation, op, err, "task %s", id)
			}
			out.Scheduled = append(out.Scheduled, id)
		}

		for _, t := range originals {
			if matched[t.ID] {
				continue
			}
			live, ok := lookup(b, t.ID)
			if !ok || live.Completed() {
				continue
			}
			if kind, queued := b.QueueOf(t.ID); queued && kind == model.QueueAutomatic {
				continue
			}
			ok, err := b.MoveToQueue(t.ID, model.QueueAutomatic)
			if err != nil {
				r.logger.Debug("left-out task not queued", "task_id", t.ID, "error", err)
				continue
			}
			if ok {
				out.Queued = append(out.Queued, t.ID)
			}
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	for _, id := range out.Scheduled {
		r.plans.Remove(day, id)
	}
	for _, e := range planOnly {
		saved := r.plans.Upsert(day, e)
		out.PlanOnly = append(out.PlanOnly, saved.Key())
	}
	r.logger.Info("plan accepted", "day", timemath.DayKey(day),
		"scheduled", len(out.Scheduled), "plan_only", len(out.PlanOnly), "queued", len(out.Queued))
	return out, nil
}

// lookup reads the task as it is now. The originals handed to Accept may be
// stale by the time the plan is accepted.
func lookup(b *store.Batch, id string) (model.Task, bool) {
	if id == "" {
		return model.Task{}, false
	}
	if t, ok := b.Task(id); ok {
		return t, true
	}
	return b.QueuedTask(id)
}

// synthesize lays the entry's slot over the live task. Title, urgency and
// location fall back to the task when the entry leaves them empty. A
// completed task stays completed.
func synthesize(current model.Task, e model.PlannedTask, day time.Time) model.Task {
	t := current
	if title := strings.TrimSpace(e.Title); title != "" {
		t.Title = title
	}
	if e.Urgency != "" {
		t.Urgency = e.Urgency
	}
	if loc := strings.TrimSpace(e.Location); loc != "" && loc != t.Location {
		t.Location = loc
		t.LocationSensitive = model.LocationSensitiveFor(loc)
	}
	if e.Duration > 0 && t.Sensitivity != model.SensitivityBusyFromTo {
		t.Duration = e.Duration
	}
	d := day
	t.Date = &d
	if !t.Completed() {
		t.Status = model.StatusActive
	}
	t.ScheduledStart, t.ScheduledEnd = nil, nil
	if start, err := timemath.ClockOnDay(day, e.StartTime); err == nil {
		t.ScheduledStart = &start
		if end, err := timemath.ClockOnDay(day, e.EndTime); err == nil {
			if end.Before(start) {
				end = end.Add(24 * time.Hour)
			}
			t.ScheduledEnd = &end
		}
	}
	return t
}

// place writes next so that re-accepting the same plan leaves the store as
// it is: an identical copy already in the date group is not touched.
func place(b *store.Batch, next model.Task, day time.Time, dateGroup string) error {
	current, inGroups := b.Task(next.ID)
	_, queued := b.QueueOf(next.ID)
	if inGroups && !queued && current.Date != nil && timemath.SameDay(*current.Date, day) && equivalent(current, next) {
		return nil
	}
	if queued {
		b.ResolveQueued(next.ID)
	}
	if inGroups {
		if grp, ok := b.GroupOf(next.ID); ok && grp == dateGroup {
			_, err := b.UpdateTask(next)
			return err
		}
	}
	b.RemoveTask(next.ID)
	_, err := b.AddTaskToDate(next, day)
	return err
}

func equivalent(a, c model.Task) bool {
	return a.ID == c.ID &&
		a.Title == c.Title &&
		a.Duration == c.Duration &&
		a.Urgency == c.Urgency &&
		a.Sensitivity == c.Sensitivity &&
		a.Location == c.Location &&
		a.LocationSensitive == c.LocationSensitive &&
		a.Category == c.Category &&
		a.TemplateID == c.TemplateID &&
		a.Status == c.Status &&
		sameInstant(a.ExactTime, c.ExactTime) &&
		sameInstant(a.StartTime, c.StartTime) &&
		sameInstant(a.EndTime, c.EndTime) &&
		sameInstant(a.ScheduledStart, c.ScheduledStart) &&
		sameInstant(a.ScheduledEnd, c.ScheduledEnd)
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
