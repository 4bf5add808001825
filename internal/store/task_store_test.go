package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) tick() { c.t = c.t.Add(time.Minute) }

func newTestStore(t *testing.T) (*TaskStore, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	return NewTaskStore(Options{Now: c.now}), c
}

func task(id, title string) model.Task {
	return model.Task{ID: id, Title: title, Duration: 30, Urgency: model.UrgencyMedium, Status: model.StatusActive}
}

func TestAddTaskCreatesDefaultGroup(t *testing.T) {
	s, _ := newTestStore(t)

	added, err := s.AddTask(task("a", "Laundry"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, added.Status)

	groups := s.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, DefaultGroupName, groups[0].Name)

	_, err = s.AddTaskToGroup("Errands", task("b", "Groceries"))
	require.NoError(t, err)
	_, err = s.AddTask(task("c", "Dishes"))
	require.NoError(t, err)

	g, ok := s.Group(DefaultGroupName)
	require.True(t, ok)
	assert.Len(t, g.Tasks, 2, "AddTask keeps using the first group")
}

func TestAddTaskAssignsIDAndValidates(t *testing.T) {
	s, _ := newTestStore(t)

	added, err := s.AddTask(model.Task{Title: "No id yet", Duration: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, model.UrgencyMedium, added.Urgency)

	_, err = s.AddTask(model.Task{Title: "", Duration: 10})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Len(t, s.Tasks(), 1)
}

func TestAddTaskToDateUsesLongDateGroup(t *testing.T) {
	s, _ := newTestStore(t)
	day := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)

	added, err := s.AddTaskToDate(task("a", "Dentist"), day)
	require.NoError(t, err)
	require.NotNil(t, added.Date)
	assert.True(t, added.Date.Equal(timemath.StartOfDay(day)))

	g, ok := s.Group("Wednesday, March 4, 2026")
	require.True(t, ok)
	assert.Equal(t, model.GroupDate, g.Kind)
	assert.Len(t, s.DueOn(day), 1)
}

func TestAddExistingIDSupersedes(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AddTaskToGroup("Home", task("a", "Old title"))
	require.NoError(t, err)

	_, err = s.AddTaskToGroup("Work", task("a", "New title"))
	require.NoError(t, err)

	all := s.Tasks()
	require.Len(t, all, 1)
	assert.Equal(t, "New title", all[0].Title)
	name, ok := s.GroupOf("a")
	require.True(t, ok)
	assert.Equal(t, "Work", name)
}

func TestUpdateTaskInPlaceAndMissingIsNoop(t *testing.T) {
	s, c := newTestStore(t)
	_, err := s.AddTask(task("a", "Draft"))
	require.NoError(t, err)
	_, err = s.AddTask(task("b", "Other"))
	require.NoError(t, err)

	c.tick()
	upd := task("a", "Final")
	ok, err := s.UpdateTask(upd)
	require.NoError(t, err)
	assert.True(t, ok)

	all := s.Tasks()
	assert.Equal(t, "Final", all[0].Title, "update keeps position")
	assert.Equal(t, c.t, all[0].UpdatedAt)

	ok, err = s.UpdateTask(task("zzz", "Ghost"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, s.Tasks(), 2)
}

func TestQueueExclusivity(t *testing.T) {
	s, _ := newTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		_, err := s.AddTask(task(id, "Task "+id))
		require.NoError(t, err)
	}

	steps := []struct {
		id   string
		kind model.QueueKind
	}{
		{"a", model.QueueManual},
		{"a", model.QueueAutomatic},
		{"b", model.QueueAutomatic},
		{"a", model.QueueManual},
		{"b", model.QueueAutomatic},
		{"c", model.QueueManual},
	}
	for _, st := range steps {
		ok, err := s.MoveToQueue(st.id, st.kind)
		require.NoError(t, err)
		require.True(t, ok)
		assertExclusive(t, s)
	}
	assert.True(t, s.ResolveQueued("c"))
	assertExclusive(t, s)

	kind, ok := s.QueueOf("a")
	require.True(t, ok)
	assert.Equal(t, model.QueueManual, kind)
	_, ok = s.QueueOf("c")
	assert.False(t, ok)

	got, _ := s.Task("c")
	assert.Equal(t, model.StatusActive, got.Status)
}

func assertExclusive(t *testing.T, s *TaskStore) {
	t.Helper()
	counts := map[string]int{}
	for _, q := range []model.QueueKind{model.QueueManual, model.QueueAutomatic} {
		for _, task := range s.Queue(q) {
			counts[task.ID]++
		}
	}
	for id, n := range counts {
		assert.Equal(t, 1, n, "task %s appears in %d queue slots", id, n)
	}
}

func TestQueuedTaskStaysInGroupButLeavesDueView(t *testing.T) {
	s, _ := newTestStore(t)
	day := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	_, err := s.AddTaskToDate(task("a", "Call bank"), day)
	require.NoError(t, err)

	ok, err := s.MoveToQueue("a", model.QueueManual)
	require.NoError(t, err)
	require.True(t, ok)

	got, found := s.Task("a")
	require.True(t, found)
	assert.Equal(t, model.StatusQueued, got.Status)
	assert.Empty(t, s.DueOn(day))

	ok, err = s.MoveToQueue("missing", model.QueueManual)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.MoveToQueue("a", "later")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCompleteTaskLeavesQueues(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AddTask(task("a", "Pay rent"))
	require.NoError(t, err)
	_, err = s.MoveToQueue("a", model.QueueAutomatic)
	require.NoError(t, err)

	assert.True(t, s.CompleteTask("a"))
	assert.Empty(t, s.Queue(model.QueueAutomatic))
	got, _ := s.Task("a")
	assert.True(t, got.Completed())
	assert.False(t, s.CompleteTask("nope"))
}

func TestUpdateRefreshesQueueCopy(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AddTask(task("a", "Before"))
	require.NoError(t, err)
	_, err = s.MoveToQueue("a", model.QueueManual)
	require.NoError(t, err)

	_, err = s.UpdateTask(task("a", "After"))
	require.NoError(t, err)

	q := s.Queue(model.QueueManual)
	require.Len(t, q, 1)
	assert.Equal(t, "After", q[0].Title)
	got, _ := s.Task("a")
	assert.Equal(t, model.StatusQueued, got.Status)
}

func TestBatchIsAtomic(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AddTask(task("a", "Keep me"))
	require.NoError(t, err)

	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })

	boom := errors.New("boom")
	err = s.Batch(func(b *Batch) error {
		b.RemoveTask("a")
		if _, err := b.AddTask(task("b", "Half done")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Len(t, s.Tasks(), 1)
	_, ok := s.Task("a")
	assert.True(t, ok)
	assert.Empty(t, changes, "failed batch must not notify")

	err = s.Batch(func(b *Batch) error {
		b.RemoveTask("a")
		_, err := b.AddTask(task("b", "Done"))
		return err
	})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, OpBatch, changes[0].Op)
	assert.Equal(t, []string{"a", "b"}, changes[0].IDs)
}

func TestObserversRunAfterCommit(t *testing.T) {
	s, _ := newTestStore(t)
	var seen int
	unsubscribe := s.Subscribe(func(c Change) {
		// Reading inside the callback must not deadlock and must see the commit.
		seen = len(s.Tasks())
	})
	_, err := s.AddTask(task("a", "One"))
	require.NoError(t, err)
	assert.Equal(t, 1, seen)

	unsubscribe()
	_, err = s.AddTask(task("b", "Two"))
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}

func TestRestoreDeduplicates(t *testing.T) {
	s, _ := newTestStore(t)
	older := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	a1 := task("a", "Stale copy")
	a1.UpdatedAt = older
	a2 := task("a", "Fresh copy")
	a2.UpdatedAt = newer
	b := task("b", "Queued twice")
	b.UpdatedAt = older
	c := task("c", "Flagged but not queued")
	c.Status = model.StatusQueued

	report := s.Restore(Snapshot{
		Groups: []model.TaskGroup{
			{Name: "Inbox", Kind: model.GroupTopic, Tasks: []model.Task{a1, b, c}},
			{Name: "Later", Kind: model.GroupTopic, Tasks: []model.Task{a2}},
		},
		Manual:    []model.Task{b, b},
		Automatic: []model.Task{b},
	})

	all := s.Tasks()
	require.Len(t, all, 3)
	got, _ := s.Task("a")
	assert.Equal(t, "Fresh copy", got.Title, "newest copy wins")

	assert.Len(t, s.Queue(model.QueueManual), 1)
	assert.Empty(t, s.Queue(model.QueueAutomatic), "manual queue wins ties")

	gotB, _ := s.Task("b")
	assert.Equal(t, model.StatusQueued, gotB.Status)
	gotC, _ := s.Task("c")
	assert.Equal(t, model.StatusActive, gotC.Status)

	assert.Len(t, report.Duplicates, 3)
	assert.ElementsMatch(t, []string{"b"}, report.Requeued)
	assert.ElementsMatch(t, []string{"c"}, report.Released)

	again := s.ScanConflicts()
	assert.True(t, again.Empty(), "restored state is already clean")
}

func TestEqualTimestampsKeepEarliestCopy(t *testing.T) {
	s, _ := newTestStore(t)
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	first := task("a", "First")
	first.UpdatedAt = at
	second := task("a", "Second")
	second.UpdatedAt = at

	s.Restore(Snapshot{Groups: []model.TaskGroup{{Name: "Inbox", Tasks: []model.Task{first, second}}}})
	got, _ := s.Task("a")
	assert.Equal(t, "First", got.Title)
}

func TestAutomaticCopyWinsWhenNewer(t *testing.T) {
	s, _ := newTestStore(t)
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	m := task("a", "Manual")
	m.UpdatedAt = at
	a := task("a", "Automatic")
	a.UpdatedAt = at.Add(time.Minute)

	s.Restore(Snapshot{
		Groups:    []model.TaskGroup{{Name: "Inbox", Tasks: []model.Task{a}}},
		Manual:    []model.Task{m},
		Automatic: []model.Task{a},
	})
	assert.Empty(t, s.Queue(model.QueueManual))
	assert.Len(t, s.Queue(model.QueueAutomatic), 1)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AddTaskToGroup("Errands", task("a", "Post office"))
	require.NoError(t, err)
	_, err = s.AddTaskToGroup("Errands", task("b", "Pharmacy"))
	require.NoError(t, err)
	_, err = s.MoveToQueue("b", model.QueueManual)
	require.NoError(t, err)

	snap := s.Snapshot()
	other, _ := newTestStore(t)
	report := other.Restore(snap)

	assert.True(t, report.Empty())
	assert.Equal(t, s.Groups(), other.Groups())
	assert.Equal(t, s.Queue(model.QueueManual), other.Queue(model.QueueManual))
}
