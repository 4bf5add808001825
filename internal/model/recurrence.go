package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidInterval = errors.New("model: invalid recurrence interval")
	ErrNegativeSteps   = errors.New("model: recurrence steps must not be negative")
)

type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

func (i Interval) IsValid() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly, IntervalYearly:
		return true
	default:
		return false
	}
}

func ParseInterval(s string) (Interval, error) {
	v := Interval(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case "day":
		v = IntervalDaily
	case "week":
		v = IntervalWeekly
	case "month":
		v = IntervalMonthly
	case "year", "annually":
		v = IntervalYearly
	}
	if !v.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidInterval, s)
	}
	return v, nil
}

// Advance moves base forward by n interval steps. Month and year steps are
// computed from base rather than chained, and clamp to the last day of the
// target month, so Jan 31 + 1 month is Feb 28 (or 29) and + 2 months is
// Mar 31.
func (i Interval) Advance(base time.Time, n int) (time.Time, error) {
	if n < 0 {
		return time.Time{}, fmt.Errorf("%w: %d", ErrNegativeSteps, n)
	}
	switch i {
	case IntervalDaily:
		return base.AddDate(0, 0, n), nil
	case IntervalWeekly:
		return base.AddDate(0, 0, 7*n), nil
	case IntervalMonthly:
		return addMonthsClamped(base, n), nil
	case IntervalYearly:
		return addMonthsClamped(base, 12*n), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidInterval, i)
	}
}

func addMonthsClamped(base time.Time, months int) time.Time {
	y, m, d := base.Date()
	target := time.Date(y, m, 1, 0, 0, 0, 0, base.Location()).AddDate(0, months, 0)
	ty, tm, _ := target.Date()
	if last := lastDayOf(ty, tm, base.Location()); d > last {
		d = last
	}
	return time.Date(ty, tm, d, base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), base.Location())
}

func lastDayOf(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}

// WithClock keeps the calendar date of date and the wall clock of clock.
func WithClock(date time.Time, clock time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), clock.Second(), 0, date.Location())
}

// RecurringTemplate describes a repeating task. Its time fields only carry a
// time of day; the date part is ignored.
type RecurringTemplate struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Duration    int         `json:"duration"`
	Urgency     Urgency     `json:"urgency"`
	Sensitivity Sensitivity `json:"time_sensitivity"`
	ExactTime   *time.Time  `json:"exact_time,omitempty"`
	StartTime   *time.Time  `json:"start_time,omitempty"`
	EndTime     *time.Time  `json:"end_time,omitempty"`
	Location    string      `json:"location,omitempty"`
	Category    string      `json:"category,omitempty"`
	Interval    Interval    `json:"interval"`
}

func (r RecurringTemplate) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("model: template id is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("model: template title is required")
	}
	if r.Duration < 0 {
		return fmt.Errorf("model: template duration must not be negative: %d", r.Duration)
	}
	if !r.Interval.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidInterval, r.Interval)
	}
	if !r.Urgency.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidUrgency, r.Urgency)
	}
	if !r.Sensitivity.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidSensitivity, r.Sensitivity)
	}
	switch r.Sensitivity {
	case SensitivityDueBy, SensitivityStartsAt:
		if r.ExactTime == nil {
			return fmt.Errorf("%w: %s", ErrMissingTime, r.Sensitivity)
		}
	case SensitivityBusyFromTo:
		if r.StartTime == nil || r.EndTime == nil {
			return fmt.Errorf("%w: %s", ErrMissingTime, r.Sensitivity)
		}
		if clockMinutes(*r.EndTime) < clockMinutes(*r.StartTime) {
			return ErrInvalidTimeWindow
		}
	}
	return nil
}

func clockMinutes(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
