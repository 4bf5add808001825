package model

import (
	"errors"
	"testing"
	"time"
)

func TestIntervalAdvance(t *testing.T) {
	base := time.Date(2026, 1, 31, 9, 30, 0, 0, time.UTC)
	cases := []struct {
		interval Interval
		steps    int
		want     string
	}{
		{IntervalDaily, 0, "2026-01-31 09:30"},
		{IntervalDaily, 3, "2026-02-03 09:30"},
		{IntervalWeekly, 2, "2026-02-14 09:30"},
		{IntervalMonthly, 1, "2026-02-28 09:30"},
		{IntervalMonthly, 2, "2026-03-31 09:30"},
		{IntervalMonthly, 3, "2026-04-30 09:30"},
		{IntervalYearly, 1, "2027-01-31 09:30"},
	}
	for _, tc := range cases {
		got, err := tc.interval.Advance(base, tc.steps)
		if err != nil {
			t.Fatalf("%s advance %d failed: %v", tc.interval, tc.steps, err)
		}
		if got.Format("2006-01-02 15:04") != tc.want {
			t.Fatalf("%s advance %d: got %s want %s", tc.interval, tc.steps, got.Format("2006-01-02 15:04"), tc.want)
		}
	}
}

func TestIntervalAdvanceLeapDay(t *testing.T) {
	base := time.Date(2028, 2, 29, 8, 0, 0, 0, time.UTC)
	got, err := IntervalYearly.Advance(base, 1)
	if err != nil {
		t.Fatalf("yearly advance failed: %v", err)
	}
	if got.Format("2006-01-02") != "2029-02-28" {
		t.Fatalf("unexpected clamped leap day: %s", got.Format("2006-01-02"))
	}
	got, _ = IntervalYearly.Advance(base, 4)
	if got.Format("2006-01-02") != "2032-02-29" {
		t.Fatalf("expected leap day to return: %s", got.Format("2006-01-02"))
	}
}

func TestIntervalAdvanceMonthEndInZone(t *testing.T) {
	zone := time.FixedZone("UTC-8", -8*60*60)
	base := time.Date(2026, 1, 31, 23, 15, 0, 0, zone)
	cases := []struct {
		steps int
		want  string
	}{
		{1, "2026-02-28 23:15 -0800"},
		{3, "2026-04-30 23:15 -0800"},
		{13, "2027-02-28 23:15 -0800"},
	}
	for _, tc := range cases {
		got, err := IntervalMonthly.Advance(base, tc.steps)
		if err != nil {
			t.Fatalf("monthly advance %d failed: %v", tc.steps, err)
		}
		if got.Format("2006-01-02 15:04 -0700") != tc.want {
			t.Fatalf("monthly advance %d: got %s want %s", tc.steps, got.Format("2006-01-02 15:04 -0700"), tc.want)
		}
		if got.Location() != zone {
			t.Fatalf("monthly advance %d left the zone: %v", tc.steps, got.Location())
		}
	}
}

func TestIntervalAdvanceRejectsUnknown(t *testing.T) {
	if _, err := Interval("fortnightly").Advance(time.Now(), 1); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	if _, err := IntervalDaily.Advance(time.Now(), -1); !errors.Is(err, ErrNegativeSteps) {
		t.Fatalf("expected ErrNegativeSteps, got %v", err)
	}
	if v, err := ParseInterval("Week"); err != nil || v != IntervalWeekly {
		t.Fatalf("unexpected ParseInterval result: %v %v", v, err)
	}
}

func TestRecurringTemplateValidate(t *testing.T) {
	tpl := RecurringTemplate{
		ID:          "tpl-1",
		Title:       "Water plants",
		Duration:    10,
		Urgency:     UrgencyLow,
		Sensitivity: SensitivityStartsAt,
		Interval:    IntervalWeekly,
	}
	if err := tpl.Validate(); !errors.Is(err, ErrMissingTime) {
		t.Fatalf("expected ErrMissingTime, got %v", err)
	}
	tpl.ExactTime = at(8, 0)
	if err := tpl.Validate(); err != nil {
		t.Fatalf("expected valid template, got %v", err)
	}
	tpl.Interval = "hourly"
	if err := tpl.Validate(); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestWithClock(t *testing.T) {
	date := time.Date(2026, 5, 4, 23, 59, 0, 0, time.UTC)
	clock := time.Date(1, 1, 1, 6, 15, 0, 0, time.UTC)
	if got := WithClock(date, clock); got.Format("2006-01-02 15:04") != "2026-05-04 06:15" {
		t.Fatalf("unexpected WithClock result: %s", got)
	}
}
