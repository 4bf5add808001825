package reconcile

import (
	"sort"
	"time"

	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

// DayView lists what happens on day: tasks scheduled or dated on it and the
// plan-only blocks, ordered by start time. Queued tasks are left out. Rows
// backed by a task carry its id in TaskID.
func (r *Reconciler) DayView(day time.Time) []model.PlannedTask {
	key := timemath.DayKey(day)
	rows := make([]model.PlannedTask, 0)
	for _, t := range r.tasks.Tasks() {
		if t.Status == model.StatusQueued || !onDay(t, day) {
			continue
		}
		rows = append(rows, taskRow(t, key))
	}
	rows = append(rows, r.plans.Entries(day)...)

	sort.SliceStable(rows, func(i, j int) bool {
		return startMinutes(rows[i]) < startMinutes(rows[j])
	})
	return rows
}

func onDay(t model.Task, day time.Time) bool {
	if t.ScheduledStart != nil {
		return timemath.SameDay(*t.ScheduledStart, day)
	}
	return t.OnDay(day)
}

func taskRow(t model.Task, key string) model.PlannedTask {
	row := model.PlannedTask{
		ID:          t.ID,
		TaskID:      t.ID,
		Title:       t.Title,
		Day:         key,
		Completed:   t.Completed(),
		Duration:    t.EffectiveDuration(),
		Urgency:     t.Urgency,
		Sensitivity: t.Sensitivity,
		Location:    t.Location,
	}
	start, end := t.ScheduledStart, t.ScheduledEnd
	if start == nil {
		start = t.AssumedStart()
		if start != nil {
			e := start.Add(time.Duration(t.EffectiveDuration()) * time.Minute)
			end = &e
		}
	}
	if start != nil {
		row.StartTime = timemath.FormatClock(*start)
	}
	if end != nil {
		row.EndTime = timemath.FormatClock(*end)
	}
	return row
}

// startMinutes sorts rows without a parseable start last.
func startMinutes(p model.PlannedTask) int {
	h, m, err := timemath.ParseClock(p.StartTime)
	if err != nil {
		return 24 * 60
	}
	return h*60 + m
}
