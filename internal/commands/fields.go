package commands

import (
	"strconv"
	"strings"
	"time"

	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

// TaskFields are the key:value options accepted by add, edit and repeat.
// Nil or empty members were not given.
type TaskFields struct {
	Duration    *int
	Urgency     *model.Urgency
	Sensitivity *model.Sensitivity
	At          string
	From        string
	To          string
	Location    *string
	Category    *string
	Date        string
	Group       string
}

func (f TaskFields) IsZero() bool {
	return f.Duration == nil && f.Urgency == nil && f.Sensitivity == nil &&
		f.At == "" && f.From == "" && f.To == "" &&
		f.Location == nil && f.Category == nil && f.Date == "" && f.Group == ""
}

// option splits "key:value". Keys are lower-case letters only, so titles
// such as "Call: mom" stay words.
func option(arg string) (string, string, bool) {
	key, value, ok := strings.Cut(arg, ":")
	if !ok || key == "" || value == "" {
		return "", "", false
	}
	key = strings.ToLower(key)
	for _, r := range key {
		if r < 'a' || r > 'z' {
			return "", "", false
		}
	}
	return key, value, true
}

// splitOptions separates known options from title words. Unknown keys are
// kept as words. Underscores in location, category and group values stand
// for spaces.
func splitOptions(args []string) ([]string, TaskFields, error) {
	var words []string
	var f TaskFields
	for _, arg := range args {
		key, value, ok := option(arg)
		if !ok {
			words = append(words, arg)
			continue
		}
		switch key {
		case "dur", "duration":
			mins, err := parseMinutes(value)
			if err != nil {
				return nil, TaskFields{}, err
			}
			f.Duration = &mins
		case "urg", "urgency":
			u, err := model.ParseUrgency(value)
			if err != nil {
				return nil, TaskFields{}, invalid("%v", err)
			}
			f.Urgency = &u
		case "kind":
			s, err := model.ParseSensitivity(strings.ReplaceAll(value, "_", " "))
			if err != nil {
				return nil, TaskFields{}, invalid("%v", err)
			}
			f.Sensitivity = &s
		case "at", "from", "to":
			if _, _, err := timemath.ParseClock(value); err != nil {
				return nil, TaskFields{}, invalid("%s: %v", key, err)
			}
			switch key {
			case "at":
				f.At = value
			case "from":
				f.From = value
			default:
				f.To = value
			}
		case "loc", "location":
			loc := spaced(value)
			f.Location = &loc
		case "cat", "category":
			cat := spaced(value)
			f.Category = &cat
		case "date":
			if !isDateWord(value) {
				return nil, TaskFields{}, invalid("unknown date %q", value)
			}
			f.Date = value
		case "group":
			f.Group = spaced(value)
		default:
			words = append(words, arg)
		}
	}
	return words, f, nil
}

func spaced(v string) string {
	return strings.TrimSpace(strings.ReplaceAll(v, "_", " "))
}

// parseMinutes accepts "45", "45m", "1h" and "1h30m".
func parseMinutes(v string) (int, error) {
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 {
			return 0, invalid("duration must not be negative")
		}
		return n, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, invalid("invalid duration %q", v)
	}
	return int(d / time.Minute), nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

func isDateWord(s string) bool {
	_, err := ResolveDate(s, time.Now())
	return err == nil
}

// ResolveDate understands today, tomorrow, weekday names (the next such
// day, today included) and YYYY-MM-DD. The result is midnight in now's
// location.
func ResolveDate(s string, now time.Time) (time.Time, error) {
	today := timemath.StartOfDay(now)
	word := strings.ToLower(strings.TrimSpace(s))
	switch word {
	case "", "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	}
	if wd, ok := weekdays[word]; ok {
		ahead := (int(wd) - int(today.Weekday()) + 7) % 7
		return today.AddDate(0, 0, ahead), nil
	}
	day, err := timemath.ParseDayKey(word, now.Location())
	if err != nil {
		return time.Time{}, invalid("unknown date %q", s)
	}
	return day, nil
}

// Apply writes the given fields onto t. Clock options are anchored on the
// task's date, or today when it has none. Giving at: on an untimed task
// makes it starts_at; giving from:/to: makes it busy_from_to.
func (f TaskFields) Apply(t *model.Task, now time.Time) error {
	if f.Duration != nil {
		t.Duration = *f.Duration
	}
	if f.Urgency != nil {
		t.Urgency = *f.Urgency
	}
	if f.Category != nil {
		t.Category = *f.Category
	}
	if f.Location != nil {
		t.Location = *f.Location
		t.LocationSensitive = model.LocationSensitiveFor(*f.Location)
	}
	if f.Date != "" {
		day, err := ResolveDate(f.Date, now)
		if err != nil {
			return err
		}
		t.Date = &day
		t.ExactTime = reanchor(day, t.ExactTime)
		t.StartTime = reanchor(day, t.StartTime)
		t.EndTime = reanchor(day, t.EndTime)
	}

	day := timemath.StartOfDay(now)
	if t.Date != nil {
		day = *t.Date
	}

	kind := t.Sensitivity
	switch {
	case f.Sensitivity != nil:
		kind = *f.Sensitivity
	case f.At != "" && kind == model.SensitivityNone:
		kind = model.SensitivityStartsAt
	case (f.From != "" || f.To != "") && kind == model.SensitivityNone:
		kind = model.SensitivityBusyFromTo
	}

	set := func(dst **time.Time, clock string) error {
		if clock == "" {
			return nil
		}
		at, err := timemath.ClockOnDay(day, clock)
		if err != nil {
			return invalid("%v", err)
		}
		*dst = &at
		return nil
	}
	if err := set(&t.ExactTime, f.At); err != nil {
		return err
	}
	if err := set(&t.StartTime, f.From); err != nil {
		return err
	}
	if err := set(&t.EndTime, f.To); err != nil {
		return err
	}

	t.Sensitivity = kind
	switch kind {
	case model.SensitivityNone:
		t.ExactTime, t.StartTime, t.EndTime = nil, nil, nil
	case model.SensitivityDueBy, model.SensitivityStartsAt:
		t.StartTime, t.EndTime = nil, nil
	case model.SensitivityBusyFromTo:
		t.ExactTime = nil
		if t.StartTime != nil && t.EndTime != nil && f.Duration == nil {
			t.Duration = timemath.MinutesBetween(*t.StartTime, *t.EndTime)
		}
	}
	return nil
}

func reanchor(day time.Time, at *time.Time) *time.Time {
	if at == nil {
		return nil
	}
	moved := timemath.OnDay(day, *at)
	return &moved
}
