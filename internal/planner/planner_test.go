package planner

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/model"
)

var planDay = time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

func on(h, m int) time.Time { return time.Date(2026, 3, 4, h, m, 0, 0, time.UTC) }

func ptr(t time.Time) *time.Time { return &t }

func sampleInput() RequestInput {
	dentist := model.Task{ID: "t-dentist", Title: "Dentist", Duration: 45, Urgency: model.UrgencyHigh,
		Sensitivity: model.SensitivityStartsAt, ExactTime: ptr(on(10, 0)),
		LocationSensitive: true, Location: "123 Main St", Category: "health"}
	report := model.Task{ID: "t-report", Title: "Expense report", Duration: 30, Urgency: model.UrgencyMedium,
		Sensitivity: model.SensitivityDueBy, ExactTime: ptr(on(17, 0))}
	meeting := model.Task{ID: "t-sync", Title: "Sync", Urgency: model.UrgencyMedium,
		Sensitivity: model.SensitivityBusyFromTo, StartTime: ptr(on(14, 0)), EndTime: ptr(on(14, 30))}
	return RequestInput{
		Day:   planDay,
		Tasks: []model.Task{dentist, report, meeting},
		Committed: []model.CommittedEvent{
			{Title: "Lunch with Sam", Start: on(12, 0), End: on(13, 0)},
			{Title: "School run", Start: on(8, 15), End: on(8, 45)},
		},
		WindowStart:     on(8, 0),
		WindowEnd:       on(20, 0),
		CurrentLocation: "Downtown",
		HomeAddress:     "9 Elm Rd",
		TransportMode:   "driving",
		Now:             on(7, 30),
		Notes:           []string{"  ", "keep the evening free"},
		Travel:          []TravelHint{{From: "9 Elm Rd", To: "123 Main St", Mode: "driving", Minutes: 18, DepartureLabel: "9:42 AM"}},
	}
}

func TestBuildIsDeterministicAndComplete(t *testing.T) {
	in := sampleInput()
	first, err := Build(in)
	require.NoError(t, err)
	second, err := Build(in)
	require.NoError(t, err)
	assert.Equal(t, first.Document, second.Document)
	assert.Equal(t, []string{"t-dentist", "t-report", "t-sync"}, first.TaskIDs)

	doc := first.Document
	assert.Contains(t, doc, "Date: Wednesday, March 4, 2026")
	assert.Contains(t, doc, "Planning window: 8:00 AM to 8:00 PM")
	assert.Contains(t, doc, `id: t-dentist | title: "Dentist" | duration: 45 min | urgency: high | time sensitivity: Starts At | time: 10:00 AM | assumed start: 10:00 AM`)
	assert.Contains(t, doc, "assumed start: 4:30 PM", "due-by assumed start is deadline minus duration")
	assert.Contains(t, doc, "duration: 30 min | urgency: medium | time sensitivity: Busy From-To | busy: 2:00 PM to 2:30 PM | assumed start: 2:00 PM")
	assert.Contains(t, doc, "location: 123 Main St")
	assert.Contains(t, doc, "- 9 Elm Rd -> 123 Main St by driving: 18 min (leave by 9:42 AM)")
	assert.Contains(t, doc, "- keep the evening free")

	school := strings.Index(doc, "School run")
	lunch := strings.Index(doc, "Lunch with Sam")
	require.True(t, school > 0 && lunch > 0)
	assert.Less(t, school, lunch, "committed events are sorted by start")

	assert.Contains(t, doc, constraintBlock)
	assert.Contains(t, doc, outputSchema)
}

func TestBuildConstraintsDoNotDependOnTaskCount(t *testing.T) {
	in := sampleInput()
	in.Tasks = nil
	in.Committed = nil
	req, err := Build(in)
	require.NoError(t, err)
	assert.Contains(t, req.Document, "TASKS (0)\n- none")
	assert.Contains(t, req.Document, constraintBlock)
	assert.Contains(t, req.Document, "gap of 30 minutes or more")
	assert.Contains(t, req.Document, "Only low-urgency tasks may be left out")
}

func TestBuildDeadlinesAndWindowValidation(t *testing.T) {
	in := sampleInput()
	in.Deadlines = map[string]time.Time{"t-report": on(16, 0)}
	req, err := Build(in)
	require.NoError(t, err)
	assert.Contains(t, req.Document, "hard deadline: 4:00 PM")

	in.WindowEnd = on(7, 0)
	_, err = Build(in)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = Build(RequestInput{})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

const bareArray = `[{"id":"t-dentist","title":"Dentist","start_time":"10:00 AM","end_time":"10:45 AM","duration":45,"urgency":"high","time_sensitivity":"starts_at","location":"123 Main St","reason":"fixed appointment"},{"id":"","title":"Travel home","start_time":"10:45 AM","end_time":"11:05 AM","reason":"drive back"}]`

func TestParseToleratesCodeFences(t *testing.T) {
	fenced := "Here you go:\n```json\n" + bareArray + "\n```\nLet me know if you want changes."

	fromFence, err := Parse(fenced, planDay)
	require.NoError(t, err)
	fromBare, err := Parse(bareArray, planDay)
	require.NoError(t, err)
	assert.Equal(t, fromBare, fromFence)

	require.Len(t, fromBare, 2)
	assert.Equal(t, "t-dentist", fromBare[0].ID)
	assert.Equal(t, model.SensitivityStartsAt, fromBare[0].Sensitivity)
	assert.Equal(t, 20, fromBare[1].Duration, "missing duration derives from start/end")
	assert.True(t, fromBare[1].IsBlock())
}

func TestParseNoStructuredPlan(t *testing.T) {
	raw := "I could not build a plan for today."
	_, err := Parse(raw, planDay)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUpstreamFormat))
	assert.ErrorIs(t, err, ErrNoStructuredPlan)
	assert.Contains(t, err.Error(), "no structured plan found")
	assert.Equal(t, raw, apperr.RawOf(err))
}

func TestParseRejectsWholeBatchOnOneBadElement(t *testing.T) {
	raw := `[{"id":"a","title":"Gym","start_time":"9:00 AM","end_time":"10:00 AM"},{"id":"b","title":"Read","end_time":"11:00 AM"}]`
	entries, err := Parse(raw, planDay)
	assert.Nil(t, entries)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = Parse(`[{"title":"x","start_time":"1:00 PM","end_time":"2:00 PM","urgency":"critical"}]`, planDay)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = Parse(`[1, 2]`, planDay)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = Parse(`[not json]`, planDay)
	assert.True(t, apperr.IsKind(err, apperr.KindUpstreamFormat))
}

func TestParseDurationDerivationAndDayStamp(t *testing.T) {
	raw := `[
	  {"id": 42, "title": "Sync", "start_time": "2:00 PM", "end_time": "2:30 PM", "date": "1999-12-31"},
	  {"id": "x", "title": "Odd", "start_time": "whenever", "end_time": "2:30 PM"},
	  {"id": "y", "title": "Stringy", "start_time": "3:00 PM", "end_time": "3:10 PM", "duration": "15"}
	]`
	entries, err := Parse(raw, planDay)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "42", entries[0].ID, "numeric ids are accepted")
	assert.Equal(t, 30, entries[0].Duration)
	assert.Equal(t, 0, entries[1].Duration, "unparseable times give a zero duration")
	assert.Equal(t, 15, entries[2].Duration, "explicit duration wins")
	for _, e := range entries {
		assert.Equal(t, "2026-03-04", e.Day)
	}
}

func TestParseIDOnlyEntryMayOmitTitle(t *testing.T) {
	entries, err := Parse(`[{"id":"t-1","start_time":"9:00","end_time":"9:30"}]`, planDay)
	require.NoError(t, err)
	assert.Equal(t, "", entries[0].Title)
	assert.Equal(t, "9:00 AM", entries[0].StartTime)

	_, err = Parse(`[{"id":"","start_time":"9:00","end_time":"9:30"}]`, planDay)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestBusyTaskEndToEndDuration(t *testing.T) {
	busy := model.Task{ID: "t-sync", Title: "Sync", Urgency: model.UrgencyMedium,
		Sensitivity: model.SensitivityBusyFromTo, StartTime: ptr(on(14, 0)), EndTime: ptr(on(14, 30))}
	require.Equal(t, 30, busy.EffectiveDuration())

	entries, err := Parse(`[{"id":"t-sync","title":"Sync","start_time":"2:00 PM","end_time":"2:30 PM","reason":"fixed"}]`, planDay)
	require.NoError(t, err)
	assert.Equal(t, 30, entries[0].Duration)
}

func TestExpansionRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	doc, err := BuildExpansion("dentist thursday 3pm, buy milk", now)
	require.NoError(t, err)
	assert.Contains(t, doc, "Today is Wednesday, March 4, 2026 (2026-03-04)")
	assert.Contains(t, doc, "dentist thursday 3pm, buy milk")

	_, err = BuildExpansion("   ", now)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	raw := "```json\n[" +
		`{"title":"Dentist","duration":60,"urgency":"high","time_sensitivity":"starts_at","exact_time":"3:00 PM","date":"2026-03-05","location":"Clinic","category":"health"},` +
		`{"title":"Buy milk","duration":"10","location":"Home"}` +
		"]\n```"
	drafts, err := ParseExpansion(raw, now)
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	assert.Equal(t, "2026-03-05 15:00", drafts[0].ExactTime.Format("2006-01-02 15:04"))
	assert.True(t, drafts[0].LocationSensitive)
	assert.Equal(t, model.UrgencyMedium, drafts[1].Urgency)
	assert.Equal(t, 10, drafts[1].Duration)
	assert.False(t, drafts[1].LocationSensitive)
	assert.Nil(t, drafts[1].Date)

	_, err = ParseExpansion(`[{"title":"Call","time_sensitivity":"due_by"}]`, now)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
