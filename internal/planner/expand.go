package planner

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

const expansionPrompt = `Turn the user's note into a list of concrete tasks.
Reply with a JSON array only. Each element:
{
  "title": "<short imperative title>",
  "duration": <minutes, integer>,
  "urgency": "low" | "medium" | "high",
  "time_sensitivity": "none" | "due_by" | "starts_at" | "busy_from_to",
  "exact_time": "<h:mm AM/PM, for due_by and starts_at>",
  "start_time": "<h:mm AM/PM, for busy_from_to>",
  "end_time": "<h:mm AM/PM, for busy_from_to>",
  "date": "<YYYY-MM-DD or \"\">",
  "location": "<place, \"Home\", \"Anywhere\" or \"\">",
  "category": "<one word>"
}`

// BuildExpansion renders the request that expands free text into tasks.
func BuildExpansion(text string, now time.Time) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.New(apperr.KindValidation, "planner.BuildExpansion", "text is required")
	}
	var b strings.Builder
	b.WriteString(expansionPrompt)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Today is %s (%s). Resolve relative dates against it.\n\n", timemath.LongDate(now), timemath.DayKey(now))
	b.WriteString("NOTE\n")
	b.WriteString(text)
	b.WriteString("\n")
	return b.String(), nil
}

type wireDraft struct {
	Title       string      `json:"title"`
	Duration    flexMinutes `json:"duration"`
	Urgency     string      `json:"urgency"`
	Sensitivity string      `json:"time_sensitivity"`
	ExactTime   string      `json:"exact_time"`
	StartTime   string      `json:"start_time"`
	EndTime     string      `json:"end_time"`
	Date        string      `json:"date"`
	Location    string      `json:"location"`
	Category    string      `json:"category"`
}

// ParseExpansion decodes expansion drafts. Drafts have no id; the store
// assigns one when they are added.
func ParseExpansion(raw string, now time.Time) ([]model.Task, error) {
	const op = "planner.ParseExpansion"
	body, ok := ExtractArray(raw)
	if !ok {
		return nil, &apperr.Error{Kind: apperr.KindUpstreamFormat, Op: op, Message: ErrNoStructuredPlan.Error(), Raw: raw, Err: ErrNoStructuredPlan}
	}
	var drafts []wireDraft
	if err := json.Unmarshal([]byte(body), &drafts); err != nil {
		return nil, &apperr.Error{Kind: apperr.KindValidation, Op: op, Message: "draft does not match schema", Raw: raw, Err: err}
	}

	out := make([]model.Task, 0, len(drafts))
	for i, d := range drafts {
		t, err := draftTask(d, now)
		if err != nil {
			return nil, &apperr.Error{Kind: apperr.KindValidation, Op: op, Message: fmt.Sprintf("draft %d", i), Raw: raw, Err: err}
		}
		out = append(out, t)
	}
	return out, nil
}

func draftTask(d wireDraft, now time.Time) (model.Task, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return model.Task{}, fmt.Errorf("missing title")
	}
	urgency, err := model.ParseUrgency(d.Urgency)
	if err != nil {
		return model.Task{}, err
	}
	kind, err := model.ParseSensitivity(d.Sensitivity)
	if err != nil {
		return model.Task{}, err
	}

	day := timemath.StartOfDay(now)
	var date *time.Time
	if strings.TrimSpace(d.Date) != "" {
		parsed, err := timemath.ParseDayKey(d.Date, now.Location())
		if err != nil {
			return model.Task{}, fmt.Errorf("bad date %q", d.Date)
		}
		day = parsed
		date = &parsed
	}

	t := model.Task{
		Title:             title,
		Duration:          d.Duration.value,
		Urgency:           urgency,
		Sensitivity:       kind,
		Location:          strings.TrimSpace(d.Location),
		LocationSensitive: model.LocationSensitiveFor(d.Location),
		Category:          strings.TrimSpace(d.Category),
		Date:              date,
		Status:            model.StatusActive,
	}
	switch kind {
	case model.SensitivityDueBy, model.SensitivityStartsAt:
		at, err := timemath.ClockOnDay(day, d.ExactTime)
		if err != nil {
			return model.Task{}, fmt.Errorf("exact_time: %w", err)
		}
		t.ExactTime = &at
	case model.SensitivityBusyFromTo:
		start, err := timemath.ClockOnDay(day, d.StartTime)
		if err != nil {
			return model.Task{}, fmt.Errorf("start_time: %w", err)
		}
		end, err := timemath.ClockOnDay(day, d.EndTime)
		if err != nil {
			return model.Task{}, fmt.Errorf("end_time: %w", err)
		}
		if end.Before(start) {
			return model.Task{}, model.ErrInvalidTimeWindow
		}
		t.StartTime, t.EndTime = &start, &end
		t.Duration = t.EffectiveDuration()
	}
	if t.Duration < 0 {
		return model.Task{}, fmt.Errorf("negative duration %d", t.Duration)
	}
	return t, nil
}
