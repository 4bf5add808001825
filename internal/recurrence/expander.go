// Package recurrence turns a recurring template into dated task instances.
package recurrence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

// DefaultHorizon is the number of instances generated per template.
const DefaultHorizon = 60

// Sink receives each instance as soon as it is built. *store.TaskStore
// satisfies it.
type Sink interface {
	AddTaskToDate(task model.Task, day time.Time) (model.Task, error)
}

// ExpandError reports the instance the sink rejected. Instances before
// Index are already in the sink.
type ExpandError struct {
	Index int
	Date  time.Time
	Err   error
}

func (e *ExpandError) Error() string {
	return fmt.Sprintf("recurrence: instance %d (%s) rejected: %v", e.Index+1, timemath.DayKey(e.Date), e.Err)
}

func (e *ExpandError) Unwrap() error { return e.Err }

type Expander struct {
	Horizon int
	Now     func() time.Time
	NewID   func() string
	Logger  *slog.Logger
}

func (e Expander) horizon() int {
	if e.Horizon <= 0 {
		return DefaultHorizon
	}
	return e.Horizon
}

func (e Expander) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e Expander) newID() string {
	if e.NewID == nil {
		return model.NewID()
	}
	return e.NewID()
}

func (e Expander) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Instances builds the instances without side effects. Instance i falls on
// today advanced by i interval steps.
func (e Expander) Instances(tpl model.RecurringTemplate) ([]model.Task, error) {
	if err := tpl.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "recurrence.Instances", err)
	}
	today := timemath.StartOfDay(e.now())
	created := e.now()

	out := make([]model.Task, 0, e.horizon())
	for i := 0; i < e.horizon(); i++ {
		date, err := tpl.Interval.Advance(today, i)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "recurrence.Instances", err)
		}
		out = append(out, e.instance(tpl, date, created))
	}
	return out, nil
}

func (e Expander) instance(tpl model.RecurringTemplate, date time.Time, created time.Time) model.Task {
	day := timemath.StartOfDay(date)
	t := model.Task{
		ID:                e.newID(),
		Title:             tpl.Title,
		Duration:          tpl.Duration,
		Urgency:           tpl.Urgency,
		Sensitivity:       tpl.Sensitivity,
		Location:          tpl.Location,
		LocationSensitive: model.LocationSensitiveFor(tpl.Location),
		Category:          tpl.Category,
		Date:              &day,
		TemplateID:        tpl.ID,
		Status:            model.StatusActive,
		CreatedAt:         created,
		UpdatedAt:         created,
	}
	switch tpl.Sensitivity {
	case model.SensitivityDueBy, model.SensitivityStartsAt:
		if tpl.ExactTime != nil {
			at := model.WithClock(day, *tpl.ExactTime)
			t.ExactTime = &at
		}
	case model.SensitivityBusyFromTo:
		if tpl.StartTime != nil && tpl.EndTime != nil {
			start := model.WithClock(day, *tpl.StartTime)
			end := model.WithClock(day, *tpl.EndTime)
			t.StartTime, t.EndTime = &start, &end
			t.Duration = t.EffectiveDuration()
		}
	}
	return t
}

// Expand builds every instance first, so an unknown interval fails before
// anything reaches the sink, then appends them one at a time. On a sink
// failure the already-added instances are returned with an *ExpandError.
func (e Expander) Expand(tpl model.RecurringTemplate, sink Sink) ([]model.Task, error) {
	instances, err := e.Instances(tpl)
	if err != nil {
		return nil, err
	}
	committed := make([]model.Task, 0, len(instances))
	for i, inst := range instances {
		added, err := sink.AddTaskToDate(inst, *inst.Date)
		if err != nil {
			e.logger().Warn("recurrence expansion stopped",
				"template_id", tpl.ID, "instance", i+1, "committed", len(committed), "error", err)
			return committed, &ExpandError{Index: i, Date: *inst.Date, Err: err}
		}
		committed = append(committed, added)
	}
	e.logger().Debug("recurrence expanded", "template_id", tpl.ID, "instances", len(committed), "interval", tpl.Interval)
	return committed, nil
}
