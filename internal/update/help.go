package update

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/sandeepkv93/dayplan/internal/views"
)

type KeyBinding struct {
	Key    string
	Action string
}

type helpKeyMap struct {
	short []key.Binding
	full  [][]key.Binding
}

func (k helpKeyMap) ShortHelp() []key.Binding  { return k.short }
func (k helpKeyMap) FullHelp() [][]key.Binding { return k.full }

func (m Model) renderHelpView() string {
	var plain []string
	for _, kb := range m.viewBindings() {
		plain = append(plain, fmt.Sprintf("- %s: %s", kb.Key, kb.Action))
	}
	bindings := m.helpBindings()
	return views.RenderHelpPanel(views.HelpPanelData{
		CurrentView: string(m.CurrentView),
		Bindings:    plain,
		HelpView: m.helpModel.View(helpKeyMap{
			short: bindings,
			full:  [][]key.Binding{bindings},
		}),
	})
}

func (m Model) globalBindings() []KeyBinding {
	return []KeyBinding{
		{Key: m.Keys.Today, Action: "today"},
		{Key: m.Keys.Tasks, Action: "tasks"},
		{Key: m.Keys.Queue, Action: "queue"},
		{Key: m.Keys.Proposal, Action: "plan"},
		{Key: "/", Action: "command"},
		{Key: m.Keys.Help, Action: "help"},
		{Key: m.Keys.Quit, Action: "quit"},
	}
}

func (m Model) viewBindings() []KeyBinding {
	switch m.CurrentView {
	case ViewToday:
		return []KeyBinding{
			{Key: "j/k", Action: "move selection"},
			{Key: "h/l/t", Action: "previous / next day / today"},
			{Key: "x", Action: "complete selected row"},
			{Key: "r", Action: "send task to the manual queue"},
			{Key: "p", Action: "plan this day"},
		}
	case ViewTasks:
		return []KeyBinding{
			{Key: "j/k", Action: "move selection"},
			{Key: "x/r/d", Action: "complete / reschedule / delete"},
		}
	case ViewQueue:
		return []KeyBinding{
			{Key: "j/k", Action: "move selection"},
			{Key: "enter", Action: "take task out of the queue"},
		}
	case ViewProposal:
		return []KeyBinding{
			{Key: "a", Action: "accept plan"},
			{Key: "g", Action: "ask again"},
			{Key: "esc", Action: "discard plan"},
			{Key: "j/k", Action: "scroll"},
		}
	default:
		return []KeyBinding{{Key: "-", Action: "no contextual bindings"}}
	}
}

func (m Model) helpBindings() []key.Binding {
	out := make([]key.Binding, 0, len(m.globalBindings()))
	for _, kb := range m.globalBindings() {
		out = append(out, key.NewBinding(key.WithKeys(kb.Key), key.WithHelp(kb.Key, kb.Action)))
	}
	return out
}
