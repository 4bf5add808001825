package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/calendar"
	"github.com/sandeepkv93/dayplan/internal/config"
	"github.com/sandeepkv93/dayplan/internal/geo"
	"github.com/sandeepkv93/dayplan/internal/llm"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/storage"
)

var (
	testNow = time.Date(2026, 3, 4, 7, 0, 0, 0, time.UTC)
	testDay = time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
)

const dentistPlan = `Sure, here is the plan:
[
  {"id":"t-dentist","title":"Dentist","start_time":"10:00 AM","end_time":"10:45 AM","urgency":"high","reason":"only opening"},
  {"id":"","title":"Travel to 123 Main St","start_time":"9:40 AM","end_time":"10:00 AM","reason":"drive"}
]`

type recorder struct {
	mu   sync.Mutex
	docs []string
}

func (r *recorder) client(reply string) llm.Client {
	return llm.Func(func(_ context.Context, doc string, _ llm.Params) (string, error) {
		r.mu.Lock()
		r.docs = append(r.docs, doc)
		r.mu.Unlock()
		return reply, nil
	})
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.docs) == 0 {
		return ""
	}
	return r.docs[len(r.docs)-1]
}

type fixedRoute struct{ minutes int }

func (f fixedRoute) EstimateDuration(_ context.Context, q geo.RouteQuery) (geo.RouteEstimate, error) {
	return geo.RouteEstimate{Minutes: f.minutes, DepartureLabel: "9:40 AM"}, nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Planner.AutosaveDelayMillis = 5
	cfg.Planner.HomeAddress = "1 Home Rd"
	cfg.Planner.HorizonDays = 5
	return cfg
}

func newTestApp(t *testing.T, opts Options) *App {
	t.Helper()
	if opts.Config.Planner.DayStart == "" {
		opts.Config = testConfig()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	a := New(opts)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func addDentist(t *testing.T, a *App) model.Task {
	t.Helper()
	d := testDay
	task, err := a.CreateTask(context.Background(), model.Task{
		ID: "t-dentist", Title: "Dentist", Duration: 45, Urgency: model.UrgencyHigh,
		Location: "123 Main St", Date: &d,
	}, "")
	require.NoError(t, err)
	return task
}

func TestCreateTaskDefaultsAndPlacement(t *testing.T) {
	a := newTestApp(t, Options{})
	ctx := context.Background()

	task := addDentist(t, a)
	assert.True(t, task.LocationSensitive)
	assert.Equal(t, model.StatusActive, task.Status)
	group, ok := a.Tasks().GroupOf(task.ID)
	require.True(t, ok)
	assert.Equal(t, "Wednesday, March 4, 2026", group)

	inbox, err := a.CreateTask(ctx, model.Task{Title: "Read book", Duration: 20}, "Reading")
	require.NoError(t, err)
	assert.NotEmpty(t, inbox.ID)
	group, _ = a.Tasks().GroupOf(inbox.ID)
	assert.Equal(t, "Reading", group)

	_, err = a.CreateTask(ctx, model.Task{Title: "  ", Duration: 5}, "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestUpdateUnknownTaskIsSilentNoOp(t *testing.T) {
	a := newTestApp(t, Options{})
	ok, err := a.UpdateTask(context.Background(), model.Task{ID: "missing", Title: "x", Urgency: model.UrgencyLow,
		Sensitivity: model.SensitivityNone, Status: model.StatusActive})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRescheduleAndResolve(t *testing.T) {
	a := newTestApp(t, Options{})
	ctx := context.Background()
	task := addDentist(t, a)

	ok, err := a.RequestReschedule(ctx, task.ID, "")
	require.NoError(t, err)
	require.True(t, ok)
	kind, queued := a.Tasks().QueueOf(task.ID)
	require.True(t, queued)
	assert.Equal(t, model.QueueManual, kind)
	assert.Empty(t, a.Today(testDay), "queued tasks leave the day view")

	ok, err = a.RequestReschedule(ctx, task.ID, model.QueueAutomatic)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, a.Tasks().Queue(model.QueueManual), 0)
	assert.Len(t, a.Tasks().Queue(model.QueueAutomatic), 1)

	ok, err = a.ResolveQueued(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	_, queued = a.Tasks().QueueOf(task.ID)
	assert.False(t, queued)
}

func TestGenerateAndAcceptDentistPlan(t *testing.T) {
	rec := &recorder{}
	a := newTestApp(t, Options{
		LLM:      rec.client(dentistPlan),
		Routes:   fixedRoute{minutes: 20},
		Calendar: calendar.StaticSource{Name: "work", Items: []model.CommittedEvent{{Title: "Standup", Start: testDay.Add(9 * time.Hour), End: testDay.Add(9*time.Hour + 15*time.Minute)}}},
		Location: geo.StaticLocation("1 Home Rd"),
	})
	ctx := context.Background()
	addDentist(t, a)

	p, err := a.GeneratePlan(ctx, PlanRequest{Date: testDay, Notes: "no meetings before 9"})
	require.NoError(t, err)
	require.Len(t, p.Entries, 2)
	assert.Equal(t, "2026-03-04", p.Entries[0].Day)

	doc := rec.last()
	assert.Contains(t, doc, "Standup")
	assert.Contains(t, doc, "123 Main St by driving: 20 min")
	assert.Contains(t, doc, "no meetings before 9")

	out, err := a.AcceptPlan(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"t-dentist"}, out.Scheduled)
	assert.Len(t, out.PlanOnly, 1)

	tasks := a.Tasks().Tasks()
	require.Len(t, tasks, 1)
	got := tasks[0]
	assert.Equal(t, model.UrgencyHigh, got.Urgency)
	assert.Equal(t, "123 Main St", got.Location)
	require.NotNil(t, got.ScheduledStart)
	assert.Equal(t, 10, got.ScheduledStart.Hour())
	assert.Len(t, a.Plans().Entries(testDay), 1)

	_, ok := a.ActiveProposal()
	assert.False(t, ok, "accept closes the session")
	_, err = a.AcceptPlan(ctx, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestActiveProposalAfterCloseIsNotOK(t *testing.T) {
	a := newTestApp(t, Options{LLM: llm.Func(func(context.Context, string, llm.Params) (string, error) {
		return dentistPlan, nil
	})})
	addDentist(t, a)

	_, err := a.GeneratePlan(context.Background(), PlanRequest{Date: testDay})
	require.NoError(t, err)
	_, ok := a.ActiveProposal()
	require.True(t, ok)

	require.NoError(t, a.Close(context.Background()))
	p, ok := a.ActiveProposal()
	assert.False(t, ok, "a stopped loop cannot serve the proposal")
	assert.Empty(t, p.Entries)
}

func TestStaleResponseIsDropped(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	client := llm.Func(func(ctx context.Context, doc string, _ llm.Params) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return dentistPlan, nil
	})
	a := newTestApp(t, Options{LLM: client})
	addDentist(t, a)

	slow := make(chan error, 1)
	go func() {
		_, err := a.GeneratePlan(context.Background(), PlanRequest{Date: testDay})
		slow <- err
	}()
	<-started

	fresh, err := a.GeneratePlan(context.Background(), PlanRequest{Date: testDay})
	require.NoError(t, err)
	close(release)

	select {
	case err := <-slow:
		assert.True(t, apperr.IsKind(err, apperr.KindStale), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("slow response never returned")
	}

	active, ok := a.ActiveProposal()
	require.True(t, ok)
	assert.Equal(t, fresh.Token, active.Token)
	assert.Len(t, active.Entries, 2)
}

func TestLateRegenerateAfterAcceptIsStale(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	client := llm.Func(func(ctx context.Context, doc string, _ llm.Params) (string, error) {
		if calls.Add(1) == 2 {
			close(started)
			<-release
		}
		return dentistPlan, nil
	})
	a := newTestApp(t, Options{LLM: client})
	ctx := context.Background()
	addDentist(t, a)

	first, err := a.GeneratePlan(ctx, PlanRequest{Date: testDay})
	require.NoError(t, err)

	regen := make(chan error, 1)
	go func() {
		_, err := a.RegeneratePlan(ctx, "later please")
		regen <- err
	}()
	<-started
	_, err = a.AcceptPlan(ctx, first.Entries)
	require.NoError(t, err)
	close(release)

	err = <-regen
	assert.True(t, apperr.IsKind(err, apperr.KindStale), "got %v", err)
	require.Len(t, a.Tasks().Tasks(), 1)
	assert.NotNil(t, a.Tasks().Tasks()[0].ScheduledStart)
}

func TestRegenerateAccumulatesNotes(t *testing.T) {
	rec := &recorder{}
	a := newTestApp(t, Options{LLM: rec.client(dentistPlan)})
	ctx := context.Background()
	addDentist(t, a)

	_, err := a.GeneratePlan(ctx, PlanRequest{Date: testDay, Notes: "gym after work"})
	require.NoError(t, err)
	p, err := a.RegeneratePlan(ctx, "dentist moved to afternoon")
	require.NoError(t, err)

	assert.Equal(t, []string{"gym after work", "dentist moved to afternoon"}, p.Notes)
	doc := rec.last()
	assert.Contains(t, doc, "- gym after work")
	assert.Contains(t, doc, "- dentist moved to afternoon")
	assert.Len(t, a.Tasks().Tasks(), 1, "regenerating never touches the store")
	assert.Nil(t, a.Tasks().Tasks()[0].ScheduledStart)
}

func TestMalformedResponseKeepsSession(t *testing.T) {
	var calls atomic.Int32
	client := llm.Func(func(context.Context, string, llm.Params) (string, error) {
		if calls.Add(1) == 1 {
			return "I could not build a plan today.", nil
		}
		return dentistPlan, nil
	})
	a := newTestApp(t, Options{LLM: client})
	ctx := context.Background()
	addDentist(t, a)

	_, err := a.GeneratePlan(ctx, PlanRequest{Date: testDay})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUpstreamFormat))
	assert.Equal(t, "I could not build a plan today.", apperr.RawOf(err))

	p, err := a.RegeneratePlan(ctx, "try again")
	require.NoError(t, err)
	assert.Len(t, p.Entries, 2)
}

func TestModelFailuresSurface(t *testing.T) {
	a := newTestApp(t, Options{})
	addDentist(t, a)
	_, err := a.GeneratePlan(context.Background(), PlanRequest{Date: testDay})
	assert.True(t, apperr.IsKind(err, apperr.KindConfiguration), "disabled model: %v", err)

	b := newTestApp(t, Options{LLM: llm.Func(func(context.Context, string, llm.Params) (string, error) {
		return "", apperr.Wrap(apperr.KindTransport, "llm.Generate", errors.New("connection reset"))
	})})
	addDentist(t, b)
	_, err = b.GeneratePlan(context.Background(), PlanRequest{Date: testDay})
	assert.True(t, apperr.IsKind(err, apperr.KindTransport))
}

func TestGeneratePlanNeedsTasks(t *testing.T) {
	a := newTestApp(t, Options{LLM: (&recorder{}).client(dentistPlan)})
	_, err := a.GeneratePlan(context.Background(), PlanRequest{Date: testDay})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = a.GeneratePlan(context.Background(), PlanRequest{Group: "Nope"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation) || apperr.IsKind(err, apperr.KindNotFound))
}

func TestExpandRecurringTask(t *testing.T) {
	a := newTestApp(t, Options{})
	created, err := a.ExpandRecurringTask(context.Background(), model.RecurringTemplate{
		Title: "Gym", Duration: 60, Urgency: model.UrgencyMedium, Sensitivity: model.SensitivityNone,
		Location: "Home", Interval: model.IntervalDaily,
	})
	require.NoError(t, err)
	require.Len(t, created, 5)
	for i, task := range created {
		require.NotNil(t, task.Date)
		assert.True(t, testDay.AddDate(0, 0, i).Equal(*task.Date), "instance %d on %v", i, task.Date)
		assert.False(t, task.LocationSensitive)
	}
	require.Len(t, a.Templates(), 1)
	assert.Equal(t, created[0].TemplateID, a.Templates()[0].ID)

	_, err = a.ExpandRecurringTask(context.Background(), model.RecurringTemplate{Title: "Bad", Interval: "fortnightly",
		Urgency: model.UrgencyLow, Sensitivity: model.SensitivityNone})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Len(t, a.Tasks().Tasks(), 5)
}

func TestExpandFreeTextAndAddDrafts(t *testing.T) {
	reply := `[{"title":"Buy groceries","duration":45,"urgency":"medium","location":"Market"},
	           {"title":"Call mom","duration":15,"urgency":"high","date":"2026-03-05"}]`
	a := newTestApp(t, Options{LLM: (&recorder{}).client(reply)})
	ctx := context.Background()

	drafts, err := a.ExpandFreeText(ctx, "groceries and call mom tomorrow")
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Empty(t, a.Tasks().Tasks(), "drafts are not stored yet")

	added, err := a.AddDrafts(ctx, drafts, "Errands")
	require.NoError(t, err)
	require.Len(t, added, 2)
	g, _ := a.Tasks().GroupOf(added[0].ID)
	assert.Equal(t, "Errands", g)
	assert.True(t, added[0].LocationSensitive)
	g, _ = a.Tasks().GroupOf(added[1].ID)
	assert.Equal(t, "Thursday, March 5, 2026", g)
}

func TestSweepOverdue(t *testing.T) {
	a := newTestApp(t, Options{})
	ctx := context.Background()
	yesterday := testDay.AddDate(0, 0, -1)
	old, err := a.CreateTask(ctx, model.Task{Title: "Old", Duration: 10, Date: &yesterday}, "")
	require.NoError(t, err)
	addDentist(t, a)

	moved, err := a.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{old.ID}, moved)
	kind, ok := a.Tasks().QueueOf(old.ID)
	require.True(t, ok)
	assert.Equal(t, model.QueueAutomatic, kind)
}

func TestAutosaveAndLoad(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	a := newTestApp(t, Options{Storage: mem})
	ctx := context.Background()
	addDentist(t, a)
	_, err := a.ExpandRecurringTask(ctx, model.RecurringTemplate{Title: "Gym", Duration: 60,
		Urgency: model.UrgencyMedium, Sensitivity: model.SensitivityNone, Interval: model.IntervalWeekly})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		raw, err := mem.Load(ctx, storage.KeyTaskGroups)
		return err == nil && strings.Contains(string(raw), "Dentist")
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, a.Save(ctx))

	b := newTestApp(t, Options{Storage: mem})
	report, err := b.Load(ctx)
	require.NoError(t, err)
	assert.True(t, report.Empty())
	assert.Len(t, b.Tasks().Tasks(), 6)
	assert.Len(t, b.Templates(), 1)
	_, ok := b.Tasks().Task("t-dentist")
	assert.True(t, ok)
}

func TestExecuteCommandLines(t *testing.T) {
	a := newTestApp(t, Options{LLM: (&recorder{}).client(dentistPlan)})
	ctx := context.Background()

	res, err := a.Execute(ctx, "/add Buy milk dur:15 urg:low date:today")
	require.NoError(t, err)
	assert.Contains(t, res.Message, "added Buy milk")

	res, err = a.Execute(ctx, "edit Buy_milk dur:20")
	require.Error(t, err, "titles with underscores do not match")

	res, err = a.Execute(ctx, `edit buy milk`)
	require.Error(t, err)

	milk, err := a.FindTask("buy milk")
	require.NoError(t, err)
	res, err = a.Execute(ctx, "edit "+milk.ID+" dur:20 loc:Corner_Shop")
	require.NoError(t, err)
	assert.Contains(t, res.Message, "updated Buy milk")
	milk, _ = a.Tasks().Task(milk.ID)
	assert.Equal(t, 20, milk.Duration)
	assert.Equal(t, "Corner Shop", milk.Location)

	res, err = a.Execute(ctx, "show tasks")
	require.NoError(t, err)
	assert.Contains(t, res.Message, "Buy milk")

	_, err = a.Execute(ctx, "reschedule "+milk.ID)
	require.NoError(t, err)
	res, err = a.Execute(ctx, "show queue")
	require.NoError(t, err)
	assert.Contains(t, res.Message, "manual (1)")

	_, err = a.Execute(ctx, "done "+milk.ID)
	require.NoError(t, err)
	milk, _ = a.Tasks().Task(milk.ID)
	assert.True(t, milk.Completed())

	res, err = a.Execute(ctx, "repeat Stretch every:daily dur:10")
	require.NoError(t, err)
	assert.Contains(t, res.Message, "5 instances")

	_, err = a.Execute(ctx, "frobnicate")
	require.Error(t, err)
}
