package update

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/timemath"
	"github.com/sandeepkv93/dayplan/internal/views"
)

func (m Model) Init() tea.Cmd {
	return sweepCmd(m.ctx, m.App)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = typed.Width
		m.proposalView.Width = views.PaneWidth(typed.Width) - 2
		if typed.Height > 12 {
			m.proposalView.Height = typed.Height - 10
		}
		m.renderProposal()
		return m, nil
	case tea.KeyMsg:
		if m.Palette.Active {
			return m.handlePaletteKey(typed)
		}
		keyStr := typed.String()
		switch keyStr {
		case "/":
			m.Palette.Active = true
			m.Palette.Input = ""
			m.commandInput.SetValue("")
			m.commandInput.Focus()
			m.Status = StatusBar{Text: "command palette active"}
			return m, nil
		case m.Keys.Today:
			return m.switchView(ViewToday), nil
		case m.Keys.Tasks:
			return m.switchView(ViewTasks), nil
		case m.Keys.Queue:
			return m.switchView(ViewQueue), nil
		case m.Keys.Proposal:
			return m.switchView(ViewProposal), nil
		case m.Keys.Help:
			m.HelpVisible = !m.HelpVisible
			return m, nil
		case "ctrl+c", m.Keys.Quit:
			m.Quitting = true
			return m, tea.Quit
		}
		switch m.CurrentView {
		case ViewToday:
			return m.handleTodayKey(typed)
		case ViewTasks:
			return m.handleTasksKey(typed)
		case ViewQueue:
			return m.handleQueueKey(typed)
		case ViewProposal:
			return m.handleProposalKey(typed)
		}
	case spinner.TickMsg:
		if m.Busy {
			var cmd tea.Cmd
			m.planSpinner, cmd = m.planSpinner.Update(typed)
			return m, cmd
		}
	case SwitchViewMsg:
		if isKnownView(typed.View) {
			m = m.switchView(typed.View)
		}
		return m, nil
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
		}
		return m, nil
	case CommandDoneMsg:
		m.Busy = false
		m.refreshProposal()
		if typed.Err != nil {
			return m.fail(typed.Err), nil
		}
		m.LastResult = typed.Result.Message
		m.Status = StatusBar{Text: "done: " + typed.Line}
		if m.proposalToken != 0 && strings.HasPrefix(strings.TrimSpace(typed.Line), "plan") {
			m = m.switchView(ViewProposal)
		}
		m.clampCursor()
		return m, nil
	case ProposalMsg:
		m.Busy = false
		if typed.Err != nil {
			if apperr.IsKind(typed.Err, apperr.KindStale) {
				m.Status = StatusBar{Text: "older plan response ignored"}
				return m, nil
			}
			m.refreshProposal()
			return m.fail(typed.Err), nil
		}
		m.refreshProposal()
		m.Status = StatusBar{Text: fmt.Sprintf("plan ready: %d entries", len(typed.Proposal.Entries))}
		return m, nil
	case AcceptedMsg:
		m.Busy = false
		m.refreshProposal()
		if typed.Err != nil {
			return m.fail(typed.Err), nil
		}
		m.Status = StatusBar{Text: fmt.Sprintf("plan accepted: %d scheduled, %d blocks, %d queued",
			len(typed.Outcome.Scheduled), len(typed.Outcome.PlanOnly), len(typed.Outcome.Queued))}
		m = m.switchView(ViewToday)
		return m, nil
	case ActionDoneMsg:
		if typed.Err != nil {
			return m.fail(typed.Err), nil
		}
		m.Status = StatusBar{Text: typed.Text}
		m.clampCursor()
		return m, nil
	}

	return m, nil
}

func (m Model) fail(err error) Model {
	m.LastError = err
	m.Status = StatusBar{Text: err.Error(), IsError: true}
	return m
}

func (m Model) switchView(v View) Model {
	if m.CurrentView != v {
		m.Cursor = 0
		m.SelectedID = ""
	}
	m.CurrentView = v
	m.clampCursor()
	return m
}

// startBusy shows the spinner while cmd runs.
func (m Model) startBusy(text string, cmd tea.Cmd) (Model, tea.Cmd) {
	m.Busy = true
	m.Status = StatusBar{Text: text}
	return m, tea.Batch(m.planSpinner.Tick, cmd)
}

func (m Model) View() string {
	status := ""
	if m.Status.Text != "" {
		if m.Status.IsError {
			status = fmt.Sprintf("status: error: %s", m.Status.Text)
		} else {
			status = fmt.Sprintf("status: %s", m.Status.Text)
		}
	}
	left := ""
	switch m.CurrentView {
	case ViewToday:
		left = m.renderTodayView()
	case ViewTasks:
		left = m.renderTasksView()
	case ViewQueue:
		left = m.renderQueueView()
	case ViewProposal:
		left = m.renderProposalView()
	}
	right := views.RenderResult(m.LastResult)
	if m.HelpVisible {
		right = m.renderHelpView()
	}

	return views.RenderApp(views.AppData{
		Header:     fmt.Sprintf("dayplan | view: %s | day: %s", m.CurrentView, timemath.LongDate(m.Day)),
		LeftPane:   left,
		RightPane:  right,
		StatusLine: status,
		IsError:    m.Status.IsError,
		Palette:    views.RenderCommandPalette(m.Palette.Active, m.commandInput.Value()),
		Width:      m.Width,
		Footer: fmt.Sprintf("keys: %s today | %s tasks | %s queue | %s plan | / cmd | %s help | %s quit",
			m.Keys.Today, m.Keys.Tasks, m.Keys.Queue, m.Keys.Proposal, m.Keys.Help, m.Keys.Quit),
	})
}

func isKnownView(v View) bool {
	switch v {
	case ViewToday, ViewTasks, ViewQueue, ViewProposal:
		return true
	default:
		return false
	}
}
