package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidUrgency     = errors.New("model: invalid task urgency")
	ErrInvalidSensitivity = errors.New("model: invalid time sensitivity")
	ErrInvalidStatus      = errors.New("model: invalid task status")
	ErrInvalidTimeWindow  = errors.New("model: end time precedes start time")
	ErrMissingTime        = errors.New("model: time sensitivity requires a time")
)

const (
	LocationHome     = "Home"
	LocationAnywhere = "Anywhere"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	default:
		return false
	}
}

// Rank orders urgencies low < medium < high.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyHigh:
		return 3
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 1
	default:
		return 0
	}
}

// ParseUrgency is case-insensitive; empty input means medium.
func ParseUrgency(s string) (Urgency, error) {
	v := Urgency(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return UrgencyMedium, nil
	}
	if !v.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidUrgency, s)
	}
	return v, nil
}

type Sensitivity string

const (
	SensitivityNone       Sensitivity = "none"
	SensitivityDueBy      Sensitivity = "due_by"
	SensitivityStartsAt   Sensitivity = "starts_at"
	SensitivityBusyFromTo Sensitivity = "busy_from_to"
)

func (s Sensitivity) IsValid() bool {
	switch s {
	case SensitivityNone, SensitivityDueBy, SensitivityStartsAt, SensitivityBusyFromTo:
		return true
	default:
		return false
	}
}

// UsesExactTime reports whether the kind is expressed as a single instant.
func (s Sensitivity) UsesExactTime() bool {
	return s == SensitivityDueBy || s == SensitivityStartsAt
}

// Label is the human form used in planning requests.
func (s Sensitivity) Label() string {
	switch s {
	case SensitivityDueBy:
		return "Due By"
	case SensitivityStartsAt:
		return "Starts At"
	case SensitivityBusyFromTo:
		return "Busy From-To"
	default:
		return "None"
	}
}

// ParseSensitivity accepts the stored form and the display forms a model
// tends to echo back ("Due By", "starts-at", "Busy From-To").
func ParseSensitivity(s string) (Sensitivity, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch norm {
	case "", "none", "no":
		return SensitivityNone, nil
	case "due_by", "due":
		return SensitivityDueBy, nil
	case "starts_at", "start_at", "starts":
		return SensitivityStartsAt, nil
	case "busy_from_to", "busy", "busy_from":
		return SensitivityBusyFromTo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSensitivity, s)
	}
}

// Status separates "done" from "waiting in a reschedule queue"; a queued
// task keeps its data in its group.
type Status string

const (
	StatusActive    Status = "active"
	StatusQueued    Status = "queued"
	StatusCompleted Status = "completed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusQueued, StatusCompleted:
		return true
	default:
		return false
	}
}

type Task struct {
	ID                string      `json:"id"`
	Title             string      `json:"title"`
	Duration          int         `json:"duration"`
	Urgency           Urgency     `json:"urgency"`
	Sensitivity       Sensitivity `json:"time_sensitivity"`
	ExactTime         *time.Time  `json:"exact_time,omitempty"`
	StartTime         *time.Time  `json:"start_time,omitempty"`
	EndTime           *time.Time  `json:"end_time,omitempty"`
	LocationSensitive bool        `json:"location_sensitive"`
	Location          string      `json:"location,omitempty"`
	Category          string      `json:"category,omitempty"`
	Date              *time.Time  `json:"date,omitempty"`
	TemplateID        string      `json:"template_id,omitempty"`
	Status            Status      `json:"status"`
	ScheduledStart    *time.Time  `json:"scheduled_start,omitempty"`
	ScheduledEnd      *time.Time  `json:"scheduled_end,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewTask fills identity, defaults and timestamps.
func NewTask(title string, duration int, urgency Urgency) Task {
	now := time.Now()
	return Task{
		ID:          NewID(),
		Title:       strings.TrimSpace(title),
		Duration:    duration,
		Urgency:     urgency,
		Sensitivity: SensitivityNone,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("model: task id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("model: task title is required")
	}
	if t.Duration < 0 {
		return fmt.Errorf("model: task duration must not be negative: %d", t.Duration)
	}
	if !t.Urgency.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidUrgency, t.Urgency)
	}
	if !t.Sensitivity.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidSensitivity, t.Sensitivity)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	if err := validateTimes(t.Sensitivity, t.ExactTime, t.StartTime, t.EndTime); err != nil {
		return err
	}
	if t.ScheduledStart != nil && t.ScheduledEnd != nil && t.ScheduledEnd.Before(*t.ScheduledStart) {
		return fmt.Errorf("%w: scheduled slot", ErrInvalidTimeWindow)
	}
	return nil
}

func validateTimes(kind Sensitivity, exact, start, end *time.Time) error {
	switch kind {
	case SensitivityDueBy, SensitivityStartsAt:
		if exact == nil {
			return fmt.Errorf("%w: %s", ErrMissingTime, kind)
		}
	case SensitivityBusyFromTo:
		if start == nil || end == nil {
			return fmt.Errorf("%w: %s", ErrMissingTime, kind)
		}
		if end.Before(*start) {
			return ErrInvalidTimeWindow
		}
	}
	return nil
}

func (t Task) Completed() bool { return t.Status == StatusCompleted }

func (t Task) Queued() bool { return t.Status == StatusQueued }

// EffectiveDuration derives busy-from-to durations from the window.
func (t Task) EffectiveDuration() int {
	if t.Sensitivity == SensitivityBusyFromTo && t.StartTime != nil && t.EndTime != nil {
		if mins := int(t.EndTime.Sub(*t.StartTime) / time.Minute); mins >= 0 {
			return mins
		}
		return 0
	}
	if t.Duration < 0 {
		return 0
	}
	return t.Duration
}

// AssumedStart is where a time-sensitive task has to begin: deadline minus
// duration for due-by, the exact time for starts-at, the window start for
// busy-from-to. Nil for unconstrained tasks.
func (t Task) AssumedStart() *time.Time {
	switch t.Sensitivity {
	case SensitivityDueBy:
		if t.ExactTime == nil {
			return nil
		}
		at := t.ExactTime.Add(-time.Duration(t.EffectiveDuration()) * time.Minute)
		return &at
	case SensitivityStartsAt:
		if t.ExactTime == nil {
			return nil
		}
		at := *t.ExactTime
		return &at
	case SensitivityBusyFromTo:
		if t.StartTime == nil {
			return nil
		}
		at := *t.StartTime
		return &at
	default:
		return nil
	}
}

// Touch bumps UpdatedAt; duplicate resolution keeps the newest copy.
func (t *Task) Touch(now time.Time) {
	t.UpdatedAt = now
}

func (t Task) OnDay(day time.Time) bool {
	if t.Date == nil {
		return false
	}
	y1, m1, d1 := t.Date.Date()
	y2, m2, d2 := day.In(t.Date.Location()).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// IsSentinelLocation reports the non-geocoded placeholders.
func IsSentinelLocation(loc string) bool {
	l := strings.TrimSpace(loc)
	return strings.EqualFold(l, LocationHome) || strings.EqualFold(l, LocationAnywhere)
}

// LocationSensitiveFor is false for an empty location and for Home.
func LocationSensitiveFor(loc string) bool {
	l := strings.TrimSpace(loc)
	return l != "" && !strings.EqualFold(l, LocationHome)
}

type GroupKind string

const (
	GroupTopic GroupKind = "topic"
	GroupDate  GroupKind = "date"
)

type TaskGroup struct {
	Name  string    `json:"name"`
	Kind  GroupKind `json:"kind"`
	Tasks []Task    `json:"tasks"`
}

func (g TaskGroup) Clone() TaskGroup {
	out := g
	out.Tasks = append([]Task(nil), g.Tasks...)
	return out
}

func (g TaskGroup) IndexOf(id string) int {
	for i := range g.Tasks {
		if g.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

type QueueKind string

const (
	QueueManual    QueueKind = "manual"
	QueueAutomatic QueueKind = "automatic"
)

func (q QueueKind) IsValid() bool {
	return q == QueueManual || q == QueueAutomatic
}

// CommittedEvent is something already on the calendar for the planning window.
type CommittedEvent struct {
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Source string    `json:"source,omitempty"`
}
