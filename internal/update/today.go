package update

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/app"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/timemath"
	"github.com/sandeepkv93/dayplan/internal/views"
)

func (m Model) todayRows() []model.PlannedTask {
	return m.App.Today(m.Day)
}

func (m Model) handleTodayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.todayRows()
	switch msg.String() {
	case "j", "down":
		m.Cursor++
	case "k", "up":
		m.Cursor--
	case "h", "left":
		m.Day = m.Day.AddDate(0, 0, -1)
		m.Cursor = 0
	case "l", "right":
		m.Day = m.Day.AddDate(0, 0, 1)
		m.Cursor = 0
	case "t":
		m.Day = timemath.StartOfDay(m.App.Now())
		m.Cursor = 0
	case "x", " ":
		row, ok := selectedRow(rows, m.Cursor)
		if !ok {
			return m, nil
		}
		return m, m.toggleRow(row)
	case "r":
		row, ok := selectedRow(rows, m.Cursor)
		if !ok || row.IsBlock() {
			m.Status = StatusBar{Text: "only tasks can be rescheduled", IsError: true}
			return m, nil
		}
		return m, m.rescheduleCmd(row.TaskID, row.Title)
	case "p":
		m = m.switchView(ViewProposal)
		next, cmd := m.startBusy("planning "+timemath.LongDate(m.Day), generatePlanCmd(m.ctx, m.App, app.PlanRequest{Date: m.Day}))
		return next, cmd
	}
	m.clampCursor()
	return m, nil
}

// toggleRow completes a task row, or flips a plan-only block.
func (m Model) toggleRow(row model.PlannedTask) tea.Cmd {
	a, ctx, day := m.App, m.ctx, m.Day
	if row.IsBlock() {
		done := !row.Completed
		text := "reopened " + row.Title
		if done {
			text = "completed " + row.Title
		}
		return actionCmd(text, func() error {
			ok, err := a.SetPlanEntryCompleted(ctx, day, row.Key(), done)
			if err == nil && !ok {
				err = apperr.New(apperr.KindNotFound, "update.toggleRow", "plan entry is gone: "+row.Title)
			}
			return err
		})
	}
	if row.Completed {
		return func() tea.Msg { return SetStatusMsg{Text: row.Title + " is already done"} }
	}
	return m.completeCmd(row.TaskID, row.Title)
}

func (m Model) completeCmd(id, title string) tea.Cmd {
	a, ctx := m.App, m.ctx
	return actionCmd("completed "+title, func() error {
		ok, err := a.CompleteTask(ctx, id)
		if err == nil && !ok {
			err = apperr.New(apperr.KindNotFound, "update.complete", "no task "+title)
		}
		return err
	})
}

func (m Model) rescheduleCmd(id, title string) tea.Cmd {
	a, ctx := m.App, m.ctx
	return actionCmd(title+" moved to the manual queue", func() error {
		_, err := a.RequestReschedule(ctx, id, model.QueueManual)
		return err
	})
}

func selectedRow(rows []model.PlannedTask, cursor int) (model.PlannedTask, bool) {
	if cursor < 0 || cursor >= len(rows) {
		return model.PlannedTask{}, false
	}
	return rows[cursor], true
}

func (m Model) renderTodayView() string {
	rows := m.todayRows()
	data := views.DayPanelData{
		Date:   timemath.LongDate(m.Day),
		Rows:   dayRows(rows),
		Cursor: m.Cursor,
	}
	for _, row := range rows {
		data.Total++
		if row.Completed {
			data.Done++
		}
	}
	if data.Total > 0 {
		data.ProgressView = m.dayProgress.ViewAs(float64(data.Done) / float64(data.Total))
	}
	return views.RenderDayPanel(data)
}

func dayRows(rows []model.PlannedTask) []views.DayRowData {
	out := make([]views.DayRowData, 0, len(rows))
	for _, row := range rows {
		out = append(out, views.DayRowData{
			Key:       row.Key(),
			Start:     row.StartTime,
			End:       row.EndTime,
			Title:     row.Title,
			Location:  row.Location,
			Completed: row.Completed,
			Block:     row.IsBlock(),
		})
	}
	return out
}

func (m *Model) clampCursor() {
	n := m.rowCount()
	if m.Cursor >= n {
		m.Cursor = n - 1
	}
	if m.Cursor < 0 {
		m.Cursor = 0
	}
	m.SelectedID = ""
	switch m.CurrentView {
	case ViewToday:
		if row, ok := selectedRow(m.todayRows(), m.Cursor); ok {
			m.SelectedID = row.Key()
		}
	case ViewTasks:
		if t, ok := selectedTask(m.allTasks(), m.Cursor); ok {
			m.SelectedID = t.ID
		}
	case ViewQueue:
		if t, ok := selectedTask(m.queued(), m.Cursor); ok {
			m.SelectedID = t.ID
		}
	}
}

func (m Model) rowCount() int {
	switch m.CurrentView {
	case ViewToday:
		return len(m.todayRows())
	case ViewTasks:
		return len(m.allTasks())
	case ViewQueue:
		return len(m.queued())
	default:
		return 0
	}
}

func dayLabel(t *time.Time) string {
	if t == nil {
		return ""
	}
	return timemath.DayKey(*t)
}
