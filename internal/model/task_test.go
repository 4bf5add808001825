package model

import (
	"errors"
	"testing"
	"time"
)

func at(h, m int) *time.Time {
	t := time.Date(2026, 2, 9, h, m, 0, 0, time.UTC)
	return &t
}

func TestTaskValidateSuccess(t *testing.T) {
	task := NewTask("Write weekly report", 45, UrgencyHigh)
	if err := task.Validate(); err != nil {
		t.Fatalf("expected valid task, got error: %v", err)
	}
	if task.Status != StatusActive || task.Sensitivity != SensitivityNone {
		t.Fatalf("unexpected defaults: %+v", task)
	}
}

func TestTaskValidateBusyWindow(t *testing.T) {
	task := NewTask("Standup", 0, UrgencyMedium)
	task.Sensitivity = SensitivityBusyFromTo
	task.StartTime = at(14, 30)
	task.EndTime = at(14, 0)
	if err := task.Validate(); !errors.Is(err, ErrInvalidTimeWindow) {
		t.Fatalf("expected ErrInvalidTimeWindow, got %v", err)
	}

	task.EndTime = nil
	if err := task.Validate(); !errors.Is(err, ErrMissingTime) {
		t.Fatalf("expected ErrMissingTime, got %v", err)
	}
}

func TestTaskValidateRejectsBadEnums(t *testing.T) {
	task := NewTask("Gym", 60, "urgent")
	if err := task.Validate(); !errors.Is(err, ErrInvalidUrgency) {
		t.Fatalf("expected ErrInvalidUrgency, got %v", err)
	}
	task.Urgency = UrgencyLow
	task.Status = "parked"
	if err := task.Validate(); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	task.Status = StatusActive
	task.Duration = -5
	if err := task.Validate(); err == nil {
		t.Fatal("expected negative duration error")
	}
}

func TestEffectiveDurationAndAssumedStart(t *testing.T) {
	busy := NewTask("Meeting", 0, UrgencyMedium)
	busy.Sensitivity = SensitivityBusyFromTo
	busy.StartTime = at(14, 0)
	busy.EndTime = at(14, 30)
	if got := busy.EffectiveDuration(); got != 30 {
		t.Fatalf("expected 30 minute busy window, got %d", got)
	}
	if got := busy.AssumedStart(); got == nil || !got.Equal(*at(14, 0)) {
		t.Fatalf("unexpected busy assumed start: %v", got)
	}

	due := NewTask("Submit form", 20, UrgencyHigh)
	due.Sensitivity = SensitivityDueBy
	due.ExactTime = at(17, 0)
	if got := due.AssumedStart(); got == nil || !got.Equal(*at(16, 40)) {
		t.Fatalf("unexpected due-by assumed start: %v", got)
	}

	starts := NewTask("Call mom", 15, UrgencyLow)
	starts.Sensitivity = SensitivityStartsAt
	starts.ExactTime = at(9, 0)
	if got := starts.AssumedStart(); got == nil || !got.Equal(*at(9, 0)) {
		t.Fatalf("unexpected starts-at assumed start: %v", got)
	}

	free := NewTask("Read", 30, UrgencyLow)
	if free.AssumedStart() != nil {
		t.Fatal("unconstrained task should have no assumed start")
	}
}

func TestParseEnums(t *testing.T) {
	if u, err := ParseUrgency(""); err != nil || u != UrgencyMedium {
		t.Fatalf("empty urgency should default to medium: %v %v", u, err)
	}
	if u, err := ParseUrgency("HIGH"); err != nil || u != UrgencyHigh {
		t.Fatalf("unexpected urgency parse: %v %v", u, err)
	}
	cases := map[string]Sensitivity{
		"Due By":       SensitivityDueBy,
		"starts-at":    SensitivityStartsAt,
		"Busy From-To": SensitivityBusyFromTo,
		"":             SensitivityNone,
	}
	for in, want := range cases {
		got, err := ParseSensitivity(in)
		if err != nil || got != want {
			t.Fatalf("ParseSensitivity(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseSensitivity("sometimes"); !errors.Is(err, ErrInvalidSensitivity) {
		t.Fatalf("expected ErrInvalidSensitivity, got %v", err)
	}
}

func TestLocationSentinels(t *testing.T) {
	if LocationSensitiveFor("") || LocationSensitiveFor("home") {
		t.Fatal("empty and Home locations are not location sensitive")
	}
	if !LocationSensitiveFor("123 Main St") || !LocationSensitiveFor(LocationAnywhere) {
		t.Fatal("expected location sensitivity for real and Anywhere locations")
	}
	if !IsSentinelLocation(" anywhere ") || IsSentinelLocation("Office") {
		t.Fatal("unexpected sentinel classification")
	}
}

func TestGroupIndexAndClone(t *testing.T) {
	g := TaskGroup{Name: "Errands", Kind: GroupTopic, Tasks: []Task{{ID: "a"}, {ID: "b"}}}
	if g.IndexOf("b") != 1 || g.IndexOf("z") != -1 {
		t.Fatal("unexpected IndexOf result")
	}
	c := g.Clone()
	c.Tasks[0].ID = "changed"
	if g.Tasks[0].ID != "a" {
		t.Fatal("clone must not share task storage")
	}
}
