package model

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrInvalidPlannedTask = errors.New("model: invalid planned task")

// PlannedTask is one line of a day's itinerary. Start and end are display
// strings ("2:00 PM"); travel and free-time blocks have no backing Task.
type PlannedTask struct {
	ID          string      `json:"id"`
	StartTime   string      `json:"start_time"`
	EndTime     string      `json:"end_time"`
	Title       string      `json:"title"`
	Notes       string      `json:"notes,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	Day         string      `json:"day"`
	Completed   bool        `json:"completed"`
	Duration    int         `json:"duration"`
	Urgency     Urgency     `json:"urgency,omitempty"`
	Sensitivity Sensitivity `json:"time_sensitivity,omitempty"`
	Location    string      `json:"location,omitempty"`
	TaskID      string      `json:"task_id,omitempty"`
}

func (p PlannedTask) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return errors.New("model: planned task title is required")
	}
	if strings.TrimSpace(p.StartTime) == "" || strings.TrimSpace(p.EndTime) == "" {
		return errors.New("model: planned task needs start_time and end_time")
	}
	if p.Duration < 0 {
		return errors.New("model: planned task duration must not be negative")
	}
	if p.Urgency != "" && !p.Urgency.IsValid() {
		return ErrInvalidUrgency
	}
	if p.Sensitivity != "" && !p.Sensitivity.IsValid() {
		return ErrInvalidSensitivity
	}
	return nil
}

// IsBlock reports an entry with no backing task.
func (p PlannedTask) IsBlock() bool {
	return p.TaskID == ""
}

// Key is the id used to address the entry inside a day's plan.
func (p PlannedTask) Key() string {
	if strings.TrimSpace(p.ID) != "" {
		return p.ID
	}
	return BlockID(p.StartTime, p.EndTime, p.Title)
}

// BlockID derives a stable id for entries the model returned without one.
func BlockID(start, end, title string) string {
	h := sha1.New()
	for _, part := range []string{start, end, title} {
		h.Write([]byte(strings.ToLower(strings.TrimSpace(part))))
		h.Write([]byte{0})
	}
	return "block-" + hex.EncodeToString(h.Sum(nil))[:12]
}
