package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/planner"
	"github.com/sandeepkv93/dayplan/internal/store"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

var day = time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

type fixture struct {
	tasks *store.TaskStore
	plans *store.DailyPlanStore
	rec   *Reconciler
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2026, 3, 4, 7, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }
	f.tasks = store.NewTaskStore(store.Options{Now: clock})
	f.plans = store.NewDailyPlanStore(nil)
	f.rec = New(f.tasks, f.plans, nil)
	f.rec.SetClock(clock)
	return f
}

func (f *fixture) add(t *testing.T, task model.Task) model.Task {
	t.Helper()
	added, err := f.tasks.AddTaskToGroup("Inbox", task)
	require.NoError(t, err)
	return added
}

func dentist() model.Task {
	return model.Task{ID: "t-dentist", Title: "Dentist", Duration: 45, Urgency: model.UrgencyHigh,
		Sensitivity: model.SensitivityNone, LocationSensitive: true, Location: "123 Main St", Status: model.StatusActive}
}

func TestAcceptDentistScenario(t *testing.T) {
	f := newFixture(t)
	orig := f.add(t, dentist())

	entries, err := planner.Parse(`[
	  {"id":"t-dentist","title":"Dentist","start_time":"10:00 AM","end_time":"10:45 AM","reason":"only opening"},
	  {"id":"","title":"Travel to 123 Main St","start_time":"9:40 AM","end_time":"10:00 AM","reason":"drive"}
	]`, day)
	require.NoError(t, err)

	out, err := f.rec.Accept(day, entries, []model.Task{orig})
	require.NoError(t, err)
	assert.Equal(t, []string{"t-dentist"}, out.Scheduled)
	require.Len(t, out.PlanOnly, 1)
	assert.Empty(t, out.Queued)

	all := f.tasks.Tasks()
	require.Len(t, all, 1, "no duplicate tasks")
	got := all[0]
	assert.Equal(t, model.UrgencyHigh, got.Urgency)
	assert.Equal(t, "123 Main St", got.Location)
	require.NotNil(t, got.ScheduledStart)
	assert.Equal(t, "2026-03-04 10:00", got.ScheduledStart.Format("2006-01-02 15:04"))
	assert.Equal(t, "2026-03-04 10:45", got.ScheduledEnd.Format("2006-01-02 15:04"))

	group, ok := f.tasks.GroupOf("t-dentist")
	require.True(t, ok)
	assert.Equal(t, timemath.LongDate(day), group)

	plan := f.plans.Entries(day)
	require.Len(t, plan, 1)
	assert.Equal(t, "Travel to 123 Main St", plan[0].Title)
	assert.True(t, plan[0].IsBlock())
}

func TestAcceptIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.add(t, dentist())
	b := f.add(t, model.Task{ID: "t-gym", Title: "Gym", Duration: 60, Urgency: model.UrgencyMedium, Status: model.StatusActive})
	c := f.add(t, model.Task{ID: "t-read", Title: "Read", Duration: 30, Urgency: model.UrgencyLow, Status: model.StatusActive})

	entries := []model.PlannedTask{
		{ID: "t-gym", StartTime: "7:00 AM", EndTime: "8:00 AM", Duration: 60},
		{ID: "t-dentist", Title: "Dentist", StartTime: "10:00 AM", EndTime: "10:45 AM", Duration: 45},
		{Title: "Free time", StartTime: "11:00 AM", EndTime: "12:00 PM", Duration: 60},
	}
	originals := []model.Task{a, b, c}

	_, err := f.rec.Accept(day, entries, originals)
	require.NoError(t, err)
	tasksOnce := f.tasks.Snapshot()
	plansOnce := f.plans.Snapshot()

	f.now = f.now.Add(time.Hour)
	_, err = f.rec.Accept(day, entries, originals)
	require.NoError(t, err)

	assert.Equal(t, tasksOnce, f.tasks.Snapshot())
	assert.Equal(t, plansOnce, f.plans.Snapshot())

	gym, _ := f.tasks.Task("t-gym")
	assert.Equal(t, "Gym", gym.Title, "title falls back to the original")
	kind, queued := f.tasks.QueueOf("t-read")
	assert.True(t, queued)
	assert.Equal(t, model.QueueAutomatic, kind, "left-out task goes to the automatic queue")
}

func TestAcceptFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	good := f.add(t, dentist())
	f.plans.Upsert(day, model.PlannedTask{ID: "t-dentist", Title: "Dentist", StartTime: "9:00 AM", EndTime: "9:45 AM"})

	gym := f.add(t, model.Task{ID: "t-gym", Title: "Gym", Duration: 60, Urgency: model.UrgencyMedium, Status: model.StatusActive})

	tasksBefore := f.tasks.Snapshot()
	plansBefore := f.plans.Snapshot()

	_, err := f.rec.Accept(day, []model.PlannedTask{
		{ID: "t-dentist", StartTime: "10:00 AM", EndTime: "10:45 AM"},
		{ID: "t-gym", Urgency: model.Urgency("critical"), StartTime: "1:00 PM", EndTime: "2:00 PM"},
		{Title: "Travel", StartTime: "9:40 AM", EndTime: "10:00 AM"},
	}, []model.Task{good, gym})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	assert.Equal(t, tasksBefore, f.tasks.Snapshot())
	assert.Equal(t, plansBefore, f.plans.Snapshot())
}

func TestAcceptResolvesQueuedTask(t *testing.T) {
	f := newFixture(t)
	orig := f.add(t, dentist())
	_, err := f.tasks.MoveToQueue(orig.ID, model.QueueManual)
	require.NoError(t, err)

	_, err = f.rec.Accept(day, []model.PlannedTask{{ID: orig.ID, StartTime: "3:00 PM", EndTime: "3:45 PM"}}, nil)
	require.NoError(t, err)

	_, queued := f.tasks.QueueOf(orig.ID)
	assert.False(t, queued)
	got, _ := f.tasks.Task(orig.ID)
	assert.Equal(t, model.StatusActive, got.Status)
	assert.Len(t, f.tasks.Tasks(), 1)
}

func TestAcceptTaskDeletedAfterGenerate(t *testing.T) {
	f := newFixture(t)
	orig := f.add(t, dentist())
	require.True(t, f.tasks.RemoveTask(orig.ID))

	out, err := f.rec.Accept(day, []model.PlannedTask{
		{ID: orig.ID, Title: "Dentist", StartTime: "10:00 AM", EndTime: "10:45 AM"},
	}, []model.Task{orig})
	require.NoError(t, err)

	assert.Empty(t, out.Scheduled)
	assert.Empty(t, out.Queued)
	assert.Len(t, out.PlanOnly, 1)
	assert.Empty(t, f.tasks.Tasks(), "a deleted task is not brought back")
	require.Len(t, f.plans.Entries(day), 1)
}

func TestAcceptKeepsEditsMadeAfterGenerate(t *testing.T) {
	f := newFixture(t)
	orig := f.add(t, dentist())

	edited := orig
	edited.Category = "health"
	edited.Urgency = model.UrgencyLow
	_, err := f.tasks.UpdateTask(edited)
	require.NoError(t, err)

	_, err = f.rec.Accept(day, []model.PlannedTask{
		{ID: orig.ID, StartTime: "10:00 AM", EndTime: "10:45 AM"},
	}, []model.Task{orig})
	require.NoError(t, err)

	got, ok := f.tasks.Task(orig.ID)
	require.True(t, ok)
	assert.Equal(t, "health", got.Category)
	assert.Equal(t, model.UrgencyLow, got.Urgency)
	require.NotNil(t, got.ScheduledStart)
	assert.Equal(t, "10:00", got.ScheduledStart.Format("15:04"))
}

func TestAcceptKeepsCompletedTaskCompleted(t *testing.T) {
	f := newFixture(t)
	orig := f.add(t, dentist())
	other := f.add(t, model.Task{ID: "t-read", Title: "Read", Duration: 30, Urgency: model.UrgencyLow, Status: model.StatusActive})
	require.True(t, f.tasks.CompleteTask(orig.ID))
	require.True(t, f.tasks.CompleteTask(other.ID))

	_, err := f.rec.Accept(day, []model.PlannedTask{
		{ID: orig.ID, StartTime: "10:00 AM", EndTime: "10:45 AM"},
	}, []model.Task{orig, other})
	require.NoError(t, err)

	got, ok := f.tasks.Task(orig.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Empty(t, f.tasks.DueOn(day))

	_, queued := f.tasks.QueueOf(other.ID)
	assert.False(t, queued, "a completed task left out of the plan is not queued")
	read, _ := f.tasks.Task(other.ID)
	assert.Equal(t, model.StatusCompleted, read.Status)
}

func TestRegenerateKeepsTasksAndAccumulatesNotes(t *testing.T) {
	f := newFixture(t)
	orig := f.add(t, dentist())
	before := f.tasks.Snapshot()

	s1, err := f.rec.Begin(planner.RequestInput{Day: day, Tasks: []model.Task{orig}, Notes: []string{"no mornings"}})
	require.NoError(t, err)
	_, err = s1.Propose(`[{"id":"t-dentist","title":"Dentist","start_time":"10:00 AM","end_time":"10:45 AM"}]`)
	require.NoError(t, err)

	s2, err := f.rec.Regenerate(s1, "after lunch please")
	require.NoError(t, err)

	assert.Greater(t, s2.Token, s1.Token)
	assert.Nil(t, s2.Proposal)
	assert.Empty(t, s2.Raw)
	assert.Equal(t, []string{"no mornings", "after lunch please"}, s2.Input.Notes)
	assert.Equal(t, []string{"no mornings"}, s1.Input.Notes, "previous session is not modified")
	assert.Equal(t, s1.Request.TaskIDs, s2.Request.TaskIDs)
	assert.Contains(t, s2.Request.Document, "- after lunch please")
	assert.Equal(t, before, f.tasks.Snapshot())
	assert.Empty(t, f.plans.Days())
}

func TestProposeKeepsRawOnFailure(t *testing.T) {
	f := newFixture(t)
	s, err := f.rec.Begin(planner.RequestInput{Day: day})
	require.NoError(t, err)

	_, err = s.Propose("nothing useful")
	assert.True(t, apperr.IsKind(err, apperr.KindUpstreamFormat))
	assert.Equal(t, "nothing useful", s.Raw)
	assert.Nil(t, s.Proposal)
}

func TestSweepOverdue(t *testing.T) {
	f := newFixture(t)
	f.now = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	yesterday := day.AddDate(0, 0, -1)
	_, err := f.tasks.AddTaskToDate(model.Task{ID: "old", Title: "Old", Duration: 10, Urgency: model.UrgencyLow}, yesterday)
	require.NoError(t, err)
	pastDue := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	f.add(t, model.Task{ID: "late", Title: "Late", Duration: 10, Urgency: model.UrgencyHigh,
		Sensitivity: model.SensitivityDueBy, ExactTime: &pastDue})
	_, err = f.tasks.AddTaskToDate(model.Task{ID: "today", Title: "Today", Duration: 10, Urgency: model.UrgencyLow}, day)
	require.NoError(t, err)
	_, err = f.tasks.AddTaskToDate(model.Task{ID: "done", Title: "Done", Duration: 10, Urgency: model.UrgencyLow}, yesterday)
	require.NoError(t, err)
	f.tasks.CompleteTask("done")

	moved, err := f.rec.SweepOverdue()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"old", "late"}, moved)

	again, err := f.rec.SweepOverdue()
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestScanConflictsRepairsDuplicateQueues(t *testing.T) {
	f := newFixture(t)
	a := dentist()
	f.tasks.Restore(store.Snapshot{
		Groups: []model.TaskGroup{{Name: "Inbox", Tasks: []model.Task{a}}},
	})
	report := f.rec.ScanConflicts()
	assert.True(t, report.Empty())
}

func TestDayViewMergesTasksAndBlocks(t *testing.T) {
	f := newFixture(t)
	orig := f.add(t, dentist())
	gym := f.add(t, model.Task{ID: "t-gym", Title: "Gym", Duration: 60, Urgency: model.UrgencyMedium, Status: model.StatusActive})
	_, err := f.rec.Accept(day, []model.PlannedTask{
		{ID: orig.ID, StartTime: "10:00 AM", EndTime: "10:45 AM"},
		{ID: gym.ID, StartTime: "7:00 AM", EndTime: "8:00 AM"},
		{Title: "Travel", StartTime: "9:40 AM", EndTime: "10:00 AM"},
	}, []model.Task{orig, gym})
	require.NoError(t, err)

	callAt := time.Date(2026, 3, 4, 13, 0, 0, 0, time.UTC)
	_, err = f.tasks.AddTaskToDate(model.Task{ID: "t-call", Title: "Call", Duration: 15, Urgency: model.UrgencyLow,
		Sensitivity: model.SensitivityStartsAt, ExactTime: &callAt}, day)
	require.NoError(t, err)
	_, err = f.tasks.AddTaskToDate(model.Task{ID: "t-q", Title: "Queued", Duration: 15, Urgency: model.UrgencyLow}, day)
	require.NoError(t, err)
	_, err = f.tasks.MoveToQueue("t-q", model.QueueManual)
	require.NoError(t, err)

	rows := f.rec.DayView(day)
	titles := make([]string, 0, len(rows))
	for _, r := range rows {
		titles = append(titles, r.Title)
	}
	assert.Equal(t, []string{"Gym", "Travel", "Dentist", "Call"}, titles)
	assert.Equal(t, "t-gym", rows[0].TaskID)
	assert.True(t, rows[1].IsBlock())
	assert.Equal(t, "1:00 PM", rows[3].StartTime)
	assert.Equal(t, "1:15 PM", rows[3].EndTime)
}
