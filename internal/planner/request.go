// Package planner renders planning requests for a language model and decodes
// its answers back into plan entries.
package planner

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

// TravelHint is a pre-computed route estimate between two task locations.
type TravelHint struct {
	From           string
	To             string
	Mode           string
	Minutes        int
	DepartureLabel string
}

type RequestInput struct {
	Day             time.Time
	Tasks           []model.Task
	Deadlines       map[string]time.Time
	Committed       []model.CommittedEvent
	WindowStart     time.Time
	WindowEnd       time.Time
	CurrentLocation string
	HomeAddress     string
	TransportMode   string
	Now             time.Time
	Notes           []string
	Travel          []TravelHint
}

// Request is the rendered document plus what it was built from.
type Request struct {
	Day      time.Time
	Document string
	TaskIDs  []string
}

const systemRules = `You are a careful personal day planner. You arrange the user's tasks into a single-day itinerary around their existing commitments.`

// constraintBlock is emitted verbatim for every request, whatever the task count.
const constraintBlock = `NON-NEGOTIABLE RULES
1. Every entry must include a "reason" explaining why it is placed at that time.
2. Tasks with a time sensitivity (Due By, Starts At, Busy From-To) keep their times. Move one only when two fixed times truly collide, and say so in its reason.
3. Never overlap a committed event.
4. Travel between two different locations is its own entry, with an empty id and a title starting with "Travel".
5. Any gap of 30 minutes or more between entries is its own entry titled "Free time" with an empty id.
6. Only low-urgency tasks may be left out, and only when there is no room for them. Medium and high urgency tasks must all appear.
7. Keep every task id exactly as given.`

const outputSchema = `OUTPUT FORMAT
Reply with a JSON array only, ordered by start time. Each element:
{
  "id": "<task id from the list, or \"\" for travel and free time>",
  "title": "<task title>",
  "start_time": "<h:mm AM/PM>",
  "end_time": "<h:mm AM/PM>",
  "duration": <minutes, integer>,
  "urgency": "low" | "medium" | "high",
  "time_sensitivity": "none" | "due_by" | "starts_at" | "busy_from_to",
  "location": "<location or \"\">",
  "notes": "<optional>",
  "reason": "<why this slot>"
}`

// Build renders the planning document. It is a pure function of in.
func Build(in RequestInput) (Request, error) {
	const op = "planner.Build"
	if in.Day.IsZero() {
		return Request{}, apperr.New(apperr.KindValidation, op, "day is required")
	}
	start, end := window(in)
	if !end.After(start) {
		return Request{}, apperr.New(apperr.KindValidation, op, "planning window end must be after its start")
	}

	var b strings.Builder
	ids := make([]string, 0, len(in.Tasks))

	b.WriteString(systemRules)
	b.WriteString("\n\n")

	b.WriteString("CONTEXT\n")
	fmt.Fprintf(&b, "Date: %s\n", timemath.LongDate(in.Day))
	fmt.Fprintf(&b, "Planning window: %s to %s\n", timemath.FormatClock(start), timemath.FormatClock(end))
	if !in.Now.IsZero() {
		fmt.Fprintf(&b, "Current time: %s\n", timemath.FormatClock(in.Now))
	}
	fmt.Fprintf(&b, "Current location: %s\n", orUnknown(in.CurrentLocation))
	fmt.Fprintf(&b, "Home address: %s\n", orUnknown(in.HomeAddress))
	fmt.Fprintf(&b, "Transportation: %s\n", orUnknown(in.TransportMode))
	b.WriteString("\n")

	fmt.Fprintf(&b, "TASKS (%d)\n", len(in.Tasks))
	if len(in.Tasks) == 0 {
		b.WriteString("- none\n")
	}
	for _, t := range in.Tasks {
		ids = append(ids, t.ID)
		b.WriteString(taskLine(t, in.Deadlines))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	committed := append([]model.CommittedEvent(nil), in.Committed...)
	sort.SliceStable(committed, func(i, j int) bool {
		if committed[i].Start.Equal(committed[j].Start) {
			return committed[i].Title < committed[j].Title
		}
		return committed[i].Start.Before(committed[j].Start)
	})
	fmt.Fprintf(&b, "COMMITTED EVENTS (%d), do not double-book\n", len(committed))
	if len(committed) == 0 {
		b.WriteString("- none\n")
	}
	for _, ev := range committed {
		fmt.Fprintf(&b, "- %s to %s: %s\n", timemath.FormatClock(ev.Start), timemath.FormatClock(ev.End), ev.Title)
	}
	b.WriteString("\n")

	if len(in.Travel) > 0 {
		b.WriteString("TRAVEL ESTIMATES\n")
		for _, h := range in.Travel {
			fmt.Fprintf(&b, "- %s -> %s by %s: %d min", h.From, h.To, orUnknown(h.Mode), h.Minutes)
			if h.DepartureLabel != "" {
				fmt.Fprintf(&b, " (leave by %s)", h.DepartureLabel)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	notes := cleanNotes(in.Notes)
	if len(notes) > 0 {
		b.WriteString("USER NOTES\n")
		for _, n := range notes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
		b.WriteString("\n")
	}

	b.WriteString(constraintBlock)
	b.WriteString("\n\n")
	b.WriteString(outputSchema)
	b.WriteString("\n")

	return Request{Day: timemath.StartOfDay(in.Day), Document: b.String(), TaskIDs: ids}, nil
}

func window(in RequestInput) (time.Time, time.Time) {
	start, end := in.WindowStart, in.WindowEnd
	if start.IsZero() {
		start = timemath.StartOfDay(in.Day).Add(8 * time.Hour)
	}
	if end.IsZero() {
		end = timemath.StartOfDay(in.Day).Add(22 * time.Hour)
	}
	return start, end
}

func taskLine(t model.Task, deadlines map[string]time.Time) string {
	parts := []string{
		"id: " + t.ID,
		fmt.Sprintf("title: %q", t.Title),
		fmt.Sprintf("duration: %d min", t.EffectiveDuration()),
		"urgency: " + string(t.Urgency),
		"time sensitivity: " + t.Sensitivity.Label(),
	}
	switch t.Sensitivity {
	case model.SensitivityDueBy, model.SensitivityStartsAt:
		if t.ExactTime != nil {
			parts = append(parts, "time: "+timemath.FormatClock(*t.ExactTime))
		}
	case model.SensitivityBusyFromTo:
		if t.StartTime != nil && t.EndTime != nil {
			parts = append(parts, "busy: "+timemath.FormatClock(*t.StartTime)+" to "+timemath.FormatClock(*t.EndTime))
		}
	}
	if at := t.AssumedStart(); at != nil {
		parts = append(parts, "assumed start: "+timemath.FormatClock(*at))
	}
	if d, ok := deadlines[t.ID]; ok {
		parts = append(parts, "hard deadline: "+timemath.FormatClock(d))
	}
	if t.LocationSensitive && t.Location != "" {
		parts = append(parts, "location: "+t.Location)
	}
	if t.Category != "" {
		parts = append(parts, "category: "+t.Category)
	}
	return "- " + strings.Join(parts, " | ")
}

func cleanNotes(notes []string) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return strings.TrimSpace(s)
}
