package planner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

var (
	ErrNoStructuredPlan = errors.New("no structured plan found")
	ErrNotArray         = errors.New("response is not a JSON array")
)

// ExtractArray returns the text between the first '[' and the last ']'.
func ExtractArray(raw string) (string, bool) {
	open := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if open < 0 || end < 0 || end < open {
		return "", false
	}
	return raw[open : end+1], true
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// flexMinutes accepts 30, 30.0 or "30".
type flexMinutes struct {
	set   bool
	value int
}

func (f *flexMinutes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "min"))
		if text == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("duration must be a number of minutes, got %s", data)
	}
	f.set = true
	f.value = int(v)
	return nil
}

type wireEntry struct {
	ID          flexString  `json:"id"`
	Title       *string     `json:"title"`
	StartTime   *string     `json:"start_time"`
	EndTime     *string     `json:"end_time"`
	Duration    flexMinutes `json:"duration"`
	Urgency     string      `json:"urgency"`
	Sensitivity string      `json:"time_sensitivity"`
	Location    string      `json:"location"`
	Notes       string      `json:"notes"`
	Reason      string      `json:"reason"`
	Date        string      `json:"date"`
}

// Parse decodes a model response into plan entries for day. Surrounding text
// and code fences are ignored. One bad element rejects the whole response.
func Parse(raw string, day time.Time) ([]model.PlannedTask, error) {
	const op = "planner.Parse"
	body, ok := ExtractArray(raw)
	if !ok {
		return nil, &apperr.Error{Kind: apperr.KindUpstreamFormat, Op: op, Message: ErrNoStructuredPlan.Error(), Raw: raw, Err: ErrNoStructuredPlan}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(body), &elems); err != nil {
		return nil, &apperr.Error{Kind: apperr.KindUpstreamFormat, Op: op, Message: ErrNotArray.Error(), Raw: raw, Err: err}
	}

	key := timemath.DayKey(day)
	out := make([]model.PlannedTask, 0, len(elems))
	for i, elem := range elems {
		entry, err := decodeEntry(elem)
		if err != nil {
			return nil, &apperr.Error{Kind: apperr.KindValidation, Op: op, Message: fmt.Sprintf("entry %d", i), Raw: raw, Err: err}
		}
		entry.Day = key
		out = append(out, entry)
	}
	return out, nil
}

func decodeEntry(data json.RawMessage) (model.PlannedTask, error) {
	if t := bytes.TrimSpace(data); len(t) == 0 || t[0] != '{' {
		return model.PlannedTask{}, errors.New("element is not an object")
	}
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return model.PlannedTask{}, err
	}
	if w.StartTime == nil || strings.TrimSpace(*w.StartTime) == "" {
		return model.PlannedTask{}, errors.New("missing start_time")
	}
	if w.EndTime == nil || strings.TrimSpace(*w.EndTime) == "" {
		return model.PlannedTask{}, errors.New("missing end_time")
	}
	title := ""
	if w.Title != nil {
		title = strings.TrimSpace(*w.Title)
	}
	// Entries that point at a task may leave the title to the task.
	if title == "" && w.ID == "" {
		return model.PlannedTask{}, errors.New("missing title")
	}

	p := model.PlannedTask{
		ID:        string(w.ID),
		Title:     title,
		StartTime: timemath.NormalizeClock(*w.StartTime),
		EndTime:   timemath.NormalizeClock(*w.EndTime),
		Location:  strings.TrimSpace(w.Location),
		Notes:     strings.TrimSpace(w.Notes),
		Reason:    strings.TrimSpace(w.Reason),
	}
	if strings.TrimSpace(w.Urgency) != "" {
		u, err := model.ParseUrgency(w.Urgency)
		if err != nil {
			return model.PlannedTask{}, err
		}
		p.Urgency = u
	}
	if strings.TrimSpace(w.Sensitivity) != "" {
		s, err := model.ParseSensitivity(w.Sensitivity)
		if err != nil {
			return model.PlannedTask{}, err
		}
		p.Sensitivity = s
	}
	if w.Duration.set {
		if w.Duration.value < 0 {
			return model.PlannedTask{}, fmt.Errorf("negative duration %d", w.Duration.value)
		}
		p.Duration = w.Duration.value
	} else {
		p.Duration = timemath.CalculateDuration(p.StartTime, p.EndTime)
	}
	return p, nil
}
