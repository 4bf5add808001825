// Package timemath parses and formats the human time strings used by plans
// ("9:00 AM") and does the day/duration arithmetic shared by the planner,
// the recurrence expander and the stores.
package timemath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	ClockLayout    = "3:04 PM"
	DayKeyLayout   = "2006-01-02"
	LongDateLayout = "Monday, January 2, 2006"
)

var ErrInvalidClock = errors.New("timemath: invalid clock string")

// ParseClock reads a time of day. Accepted forms: "9:00 AM", "9:00AM",
// "9 am", "09:00", "21:15".
func ParseClock(s string) (hour int, minute int, err error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	if raw == "" {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	raw = strings.ReplaceAll(raw, ".", "")

	meridiem := ""
	switch {
	case strings.HasSuffix(raw, "AM"):
		meridiem = "AM"
	case strings.HasSuffix(raw, "PM"):
		meridiem = "PM"
	}
	if meridiem != "" {
		raw = strings.TrimSpace(strings.TrimSuffix(raw, meridiem))
	}

	hourPart, minutePart := raw, "0"
	if idx := strings.Index(raw, ":"); idx >= 0 {
		hourPart, minutePart = raw[:idx], raw[idx+1:]
	}
	hour, err = strconv.Atoi(strings.TrimSpace(hourPart))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	minute, err = strconv.Atoi(strings.TrimSpace(minutePart))
	if err != nil || len(strings.TrimSpace(minutePart)) > 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}

	switch meridiem {
	case "AM", "PM":
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
		if hour == 12 {
			hour = 0
		}
		if meridiem == "PM" {
			hour += 12
		}
	default:
		if hour < 0 || hour > 23 {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
	}
	return hour, minute, nil
}

// FormatClock renders t as "3:04 PM".
func FormatClock(t time.Time) string {
	return t.Format(ClockLayout)
}

// NormalizeClock re-renders a parseable clock string in ClockLayout and
// returns the input unchanged otherwise.
func NormalizeClock(s string) string {
	h, m, err := ParseClock(s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return FormatClock(time.Date(2000, 1, 1, h, m, 0, 0, time.UTC))
}

// CalculateDuration returns the minutes between two clock strings. It never
// fails: an unparseable input yields 0 and an end earlier than the start is
// read as crossing midnight.
func CalculateDuration(start, end string) int {
	sh, sm, err := ParseClock(start)
	if err != nil {
		return 0
	}
	eh, em, err := ParseClock(end)
	if err != nil {
		return 0
	}
	mins := (eh*60 + em) - (sh*60 + sm)
	if mins < 0 {
		mins += 24 * 60
	}
	return mins
}

// OnDay places the clock reading of clock onto the calendar date of day,
// in day's location.
func OnDay(day time.Time, clock time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, day.Location())
}

// ClockOnDay parses a clock string and anchors it on day.
func ClockOnDay(day time.Time, clock string) (time.Time, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := day.Date()
	return time.Date(y, mo, d, h, m, 0, 0, day.Location()), nil
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

func ParseDayKey(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DayKeyLayout, strings.TrimSpace(s), loc)
}

// LongDate is the name used for implicit per-date task groups.
func LongDate(t time.Time) string {
	return t.Format(LongDateLayout)
}

func ParseLongDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(LongDateLayout, strings.TrimSpace(s), loc)
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// MinutesBetween is end-start in whole minutes, clamped at zero.
func MinutesBetween(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start) / time.Minute)
}

// FormatMinutes renders 90 as "1h 30m" and 45 as "45m".
func FormatMinutes(total int) string {
	if total <= 0 {
		return "0m"
	}
	h, m := total/60, total%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}
