package update

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) handlePaletteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m = m.closePalette()
		m.Status = StatusBar{Text: "command palette closed"}
		return m, nil
	case "enter":
		line := strings.TrimSpace(m.commandInput.Value())
		m = m.closePalette()
		if line == "" {
			return m, nil
		}
		next, cmd := m.startBusy("running: "+line, runCommandCmd(m.ctx, m.App, line))
		return next, cmd
	case "ctrl+c":
		m.Quitting = true
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.commandInput, cmd = m.commandInput.Update(msg)
	m.Palette.Input = m.commandInput.Value()
	return m, cmd
}

func (m Model) closePalette() Model {
	m.Palette.Active = false
	m.Palette.Input = ""
	m.commandInput.SetValue("")
	m.commandInput.Blur()
	return m
}
