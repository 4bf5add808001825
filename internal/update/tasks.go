package update

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/timemath"
	"github.com/sandeepkv93/dayplan/internal/views"
)

// allTasks flattens the groups in display order.
func (m Model) allTasks() []model.Task {
	var out []model.Task
	for _, g := range m.App.Tasks().Groups() {
		out = append(out, g.Tasks...)
	}
	return out
}

func (m Model) queued() []model.Task {
	tasks := m.App.Tasks()
	return append(tasks.Queue(model.QueueManual), tasks.Queue(model.QueueAutomatic)...)
}

func selectedTask(tasks []model.Task, cursor int) (model.Task, bool) {
	if cursor < 0 || cursor >= len(tasks) {
		return model.Task{}, false
	}
	return tasks[cursor], true
}

func (m Model) handleTasksKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	tasks := m.allTasks()
	switch msg.String() {
	case "j", "down":
		m.Cursor++
	case "k", "up":
		m.Cursor--
	case "x", " ":
		if t, ok := selectedTask(tasks, m.Cursor); ok {
			if t.Completed() {
				m.Status = StatusBar{Text: t.Title + " is already done"}
				return m, nil
			}
			return m, m.completeCmd(t.ID, t.Title)
		}
	case "r":
		if t, ok := selectedTask(tasks, m.Cursor); ok {
			return m, m.rescheduleCmd(t.ID, t.Title)
		}
	case "d":
		if t, ok := selectedTask(tasks, m.Cursor); ok {
			a, ctx := m.App, m.ctx
			return m, actionCmd("removed "+t.Title, func() error {
				ok, err := a.DeleteTask(ctx, t.ID)
				if err == nil && !ok {
					err = apperr.New(apperr.KindNotFound, "update.delete", "no task "+t.Title)
				}
				return err
			})
		}
	}
	m.clampCursor()
	return m, nil
}

func (m Model) handleQueueKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		m.Cursor++
	case "k", "up":
		m.Cursor--
	case "enter":
		if t, ok := selectedTask(m.queued(), m.Cursor); ok {
			a, ctx := m.App, m.ctx
			return m, actionCmd("resolved "+t.Title, func() error {
				_, err := a.ResolveQueued(ctx, t.ID)
				return err
			})
		}
	}
	m.clampCursor()
	return m, nil
}

func (m Model) renderTasksView() string {
	data := views.TasksPanelData{SelectedID: m.SelectedID}
	for _, g := range m.App.Tasks().Groups() {
		group := views.TaskGroupData{Name: g.Name}
		for _, t := range g.Tasks {
			group.Tasks = append(group.Tasks, taskRowData(t))
		}
		data.Groups = append(data.Groups, group)
	}
	return views.RenderTasksPanel(data)
}

func (m Model) renderQueueView() string {
	tasks := m.App.Tasks()
	data := views.QueuePanelData{SelectedID: m.SelectedID}
	for _, t := range tasks.Queue(model.QueueManual) {
		data.Manual = append(data.Manual, taskRowData(t))
	}
	for _, t := range tasks.Queue(model.QueueAutomatic) {
		data.Automatic = append(data.Automatic, taskRowData(t))
	}
	return views.RenderQueuePanel(data)
}

func taskRowData(t model.Task) views.TaskRowData {
	status := " "
	switch t.Status {
	case model.StatusCompleted:
		status = "x"
	case model.StatusQueued:
		status = "~"
	}
	row := views.TaskRowData{
		ID:       t.ID,
		Title:    t.Title,
		Status:   status,
		Duration: timemath.FormatMinutes(t.EffectiveDuration()),
		When:     dayLabel(t.Date),
	}
	if t.ScheduledStart != nil {
		row.When = timemath.DayKey(*t.ScheduledStart) + " " + timemath.FormatClock(*t.ScheduledStart)
	}
	return row
}
