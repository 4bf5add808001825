package update

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandeepkv93/dayplan/internal/app"
	"github.com/sandeepkv93/dayplan/internal/timemath"
	"github.com/sandeepkv93/dayplan/internal/views"
)

func (m Model) handleProposalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.Busy {
		return m, nil
	}
	switch msg.String() {
	case "a":
		if m.proposalToken == 0 {
			m.Status = StatusBar{Text: "no plan to accept", IsError: true}
			return m, nil
		}
		next, cmd := m.startBusy("accepting plan", acceptPlanCmd(m.ctx, m.App))
		return next, cmd
	case "g":
		if m.proposalToken == 0 {
			m.Status = StatusBar{Text: "no plan to regenerate", IsError: true}
			return m, nil
		}
		next, cmd := m.startBusy("regenerating plan", regeneratePlanCmd(m.ctx, m.App, ""))
		return next, cmd
	case "esc":
		m.App.DiscardPlan()
		m.refreshProposal()
		m.Status = StatusBar{Text: "plan discarded"}
		return m, nil
	}
	var cmd tea.Cmd
	m.proposalView, cmd = m.proposalView.Update(msg)
	return m, cmd
}

// refreshProposal reloads the active session from the app.
func (m *Model) refreshProposal() {
	p, ok := m.App.ActiveProposal()
	if !ok {
		m.proposalToken = 0
		m.proposal = app.Proposal{}
		m.proposalView.SetContent("")
		return
	}
	m.proposalToken = p.Token
	m.proposal = p
	m.renderProposal()
}

func (m *Model) renderProposal() {
	if m.proposalToken == 0 {
		return
	}
	md := views.ProposalMarkdown(m.proposalData())
	m.proposalView.SetContent(views.RenderMarkdown(md, m.proposalView.Width))
	m.proposalView.GotoTop()
}

func (m Model) proposalData() views.ProposalPanelData {
	data := views.ProposalPanelData{
		Token:       m.proposalToken,
		Busy:        m.Busy,
		SpinnerView: m.planSpinner.View(),
	}
	if m.proposalToken != 0 {
		data.Day = timemath.LongDate(m.proposal.Day)
		data.Notes = m.proposal.Notes
		data.Rows = dayRows(m.proposal.Entries)
	}
	return data
}

func (m Model) renderProposalView() string {
	data := m.proposalData()
	if m.proposalToken != 0 {
		data.BodyView = strings.TrimRight(m.proposalView.View(), "\n ")
	}
	return views.RenderProposalPanel(data)
}
