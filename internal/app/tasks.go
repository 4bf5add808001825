package app

import (
	"context"
	"strings"
	"time"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/store"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

// CreateTask adds task. A dated task goes to its date group, otherwise to
// group, or to the first group when group is empty.
func (a *App) CreateTask(ctx context.Context, task model.Task, group string) (model.Task, error) {
	if task.Location != "" && !task.LocationSensitive {
		task.LocationSensitive = model.LocationSensitiveFor(task.Location)
	}
	var saved model.Task
	err := a.apply(ctx, "create_task", func() error {
		var err error
		switch {
		case task.Date != nil:
			saved, err = a.tasks.AddTaskToDate(task, *task.Date)
		case strings.TrimSpace(group) != "":
			saved, err = a.tasks.AddTaskToGroup(group, task)
		default:
			saved, err = a.tasks.AddTask(task)
		}
		return err
	})
	if err != nil {
		return model.Task{}, err
	}
	a.logger.Info("task created", "task_id", saved.ID, "title", saved.Title)
	return saved, nil
}

// UpdateTask replaces the stored task with the same id. An unknown id is a
// silent no-op and reports false.
func (a *App) UpdateTask(ctx context.Context, task model.Task) (bool, error) {
	var ok bool
	err := a.apply(ctx, "update_task", func() error {
		var err error
		ok, err = a.tasks.UpdateTask(task)
		return err
	})
	if err != nil {
		return false, err
	}
	if !ok {
		a.logger.Debug("update for unknown task ignored", "task_id", task.ID)
	}
	return ok, nil
}

// EditTask loads the task, applies fn to a copy and stores the result.
func (a *App) EditTask(ctx context.Context, id string, fn func(*model.Task) error) (model.Task, error) {
	var out model.Task
	err := a.apply(ctx, "edit_task", func() error {
		current, ok := a.tasks.Task(id)
		if !ok {
			return apperr.New(apperr.KindNotFound, "app.EditTask", "no task "+id)
		}
		if err := fn(&current); err != nil {
			return err
		}
		if _, err := a.tasks.UpdateTask(current); err != nil {
			return err
		}
		out, _ = a.tasks.Task(id)
		return nil
	})
	return out, err
}

func (a *App) DeleteTask(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := a.apply(ctx, "delete_task", func() error {
		ok = a.tasks.RemoveTask(id)
		return nil
	})
	return ok, err
}

// CompleteTask marks a task done. For a plan-only block on day the plan
// entry is marked instead.
func (a *App) CompleteTask(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := a.apply(ctx, "complete_task", func() error {
		if a.tasks.CompleteTask(id) {
			ok = true
			return nil
		}
		ok = a.plans.SetCompleted(a.now(), id, true)
		return nil
	})
	return ok, err
}

// SetPlanEntryCompleted toggles completion on a plan-only block.
func (a *App) SetPlanEntryCompleted(ctx context.Context, day time.Time, id string, done bool) (bool, error) {
	var ok bool
	err := a.apply(ctx, "complete_entry", func() error {
		ok = a.plans.SetCompleted(day, id, done)
		return nil
	})
	return ok, err
}

// RequestReschedule moves a task into a reschedule queue, leaving any other
// queue.
func (a *App) RequestReschedule(ctx context.Context, id string, kind model.QueueKind) (bool, error) {
	if kind == "" {
		kind = model.QueueManual
	}
	var ok bool
	err := a.apply(ctx, "reschedule", func() error {
		var err error
		ok, err = a.tasks.MoveToQueue(id, kind)
		return err
	})
	return ok, err
}

// ResolveQueued takes a task out of whichever queue holds it.
func (a *App) ResolveQueued(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := a.apply(ctx, "resolve_queued", func() error {
		ok = a.tasks.ResolveQueued(id)
		return nil
	})
	return ok, err
}

// Today is the merged day view for day.
func (a *App) Today(day time.Time) []model.PlannedTask {
	return a.rec.DayView(day)
}

// Progress counts completed rows in the day view.
func (a *App) Progress(day time.Time) (done int, total int) {
	for _, row := range a.rec.DayView(day) {
		total++
		if row.Completed {
			done++
		}
	}
	return done, total
}

// SweepOverdue queues tasks whose day or deadline has passed.
func (a *App) SweepOverdue(ctx context.Context) ([]string, error) {
	var moved []string
	err := a.apply(ctx, "sweep_overdue", func() error {
		var err error
		moved, err = a.rec.SweepOverdue()
		return err
	})
	return moved, err
}

// ScanConflicts runs the duplicate repair on demand.
func (a *App) ScanConflicts(ctx context.Context) (store.ConflictReport, error) {
	var report store.ConflictReport
	err := a.apply(ctx, "scan_conflicts", func() error {
		report = a.rec.ScanConflicts()
		return nil
	})
	return report, err
}

// FindTask resolves a full id, an unambiguous id prefix or an exact title
// (case-insensitive).
func (a *App) FindTask(ref string) (model.Task, error) {
	const op = "app.FindTask"
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Task{}, apperr.New(apperr.KindValidation, op, "task reference is empty")
	}
	if t, ok := a.tasks.Task(ref); ok {
		return t, nil
	}
	var matches []model.Task
	for _, t := range a.tasks.Tasks() {
		if strings.HasPrefix(t.ID, ref) || strings.EqualFold(t.Title, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return model.Task{}, apperr.New(apperr.KindNotFound, op, "no task matches "+ref)
	case 1:
		return matches[0], nil
	default:
		return model.Task{}, apperr.New(apperr.KindValidation, op, "more than one task matches "+ref)
	}
}

func (a *App) today() time.Time {
	return timemath.StartOfDay(a.now())
}
