package views

import (
	"fmt"
	"strings"
)

type DayRowData struct {
	Key       string
	Start     string
	End       string
	Title     string
	Location  string
	Completed bool
	Block     bool
}

type DayPanelData struct {
	Date         string
	Rows         []DayRowData
	Cursor       int
	ProgressView string
	Done         int
	Total        int
}

type TaskRowData struct {
	ID       string
	Title    string
	Status   string
	Duration string
	When     string
}

type TaskGroupData struct {
	Name  string
	Tasks []TaskRowData
}

type TasksPanelData struct {
	Groups     []TaskGroupData
	SelectedID string
}

type QueuePanelData struct {
	Manual     []TaskRowData
	Automatic  []TaskRowData
	SelectedID string
}

type ProposalPanelData struct {
	Day         string
	Token       uint64
	Notes       []string
	Rows        []DayRowData
	Busy        bool
	SpinnerView string
	BodyView    string
}

type HelpPanelData struct {
	CurrentView string
	Bindings    []string
	HelpView    string
}

func RenderDayPanel(data DayPanelData) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("today: %s\n", data.Date))
	b.WriteString("actions: [j/k]move [x]done [r]reschedule [h/l]day [p]plan\n")
	if data.Total > 0 {
		b.WriteString(fmt.Sprintf("progress: %s %d/%d\n", data.ProgressView, data.Done, data.Total))
	}
	if len(data.Rows) == 0 {
		b.WriteString("(nothing scheduled)")
		return b.String()
	}
	for i, row := range data.Rows {
		cursor := " "
		if i == data.Cursor {
			cursor = ">"
		}
		b.WriteString(cursor + " " + dayRow(row) + "\n")
	}
	return strings.TrimSpace(b.String())
}

func dayRow(row DayRowData) string {
	mark := "[ ]"
	if row.Completed {
		mark = "[x]"
	}
	line := fmt.Sprintf("%s %8s-%-8s %s", mark, row.Start, row.End, row.Title)
	if row.Location != "" {
		line += " @ " + row.Location
	}
	if row.Block {
		line += " (block)"
	}
	return line
}

func RenderTasksPanel(data TasksPanelData) string {
	var b strings.Builder
	b.WriteString("tasks:\n")
	b.WriteString("actions: [j/k]move [x]done [r]reschedule [d]delete\n")
	if len(data.Groups) == 0 {
		b.WriteString("(no tasks)")
		return b.String()
	}
	for _, g := range data.Groups {
		b.WriteString(fmt.Sprintf("\n%s:\n", g.Name))
		if len(g.Tasks) == 0 {
			b.WriteString("  (empty)\n")
		}
		for _, t := range g.Tasks {
			b.WriteString(taskRow(t, data.SelectedID) + "\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func RenderQueuePanel(data QueuePanelData) string {
	var b strings.Builder
	b.WriteString("reschedule queue:\n")
	b.WriteString("actions: [j/k]move [enter]resolve\n")
	for _, section := range []struct {
		name  string
		items []TaskRowData
	}{{"manual", data.Manual}, {"automatic", data.Automatic}} {
		b.WriteString(fmt.Sprintf("\n%s (%d):\n", section.name, len(section.items)))
		for _, t := range section.items {
			b.WriteString(taskRow(t, data.SelectedID) + "\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func taskRow(t TaskRowData, selected string) string {
	cursor := " "
	if t.ID == selected {
		cursor = ">"
	}
	line := fmt.Sprintf("%s [%s] %s", cursor, t.Status, t.Title)
	if t.Duration != "" {
		line += " (" + t.Duration + ")"
	}
	if t.When != "" {
		line += " " + t.When
	}
	return line
}

func RenderProposalPanel(data ProposalPanelData) string {
	var b strings.Builder
	b.WriteString("proposal:\n")
	if data.Busy {
		b.WriteString(fmt.Sprintf("%s asking the planner...\n", data.SpinnerView))
	}
	if data.Token == 0 && !data.Busy {
		b.WriteString("(no plan in progress, press [p] on Today)")
		return b.String()
	}
	if data.Token != 0 {
		b.WriteString("actions: [a]accept [g]regenerate [esc]discard\n")
	}
	if data.BodyView != "" {
		b.WriteString(data.BodyView)
	}
	return strings.TrimSpace(b.String())
}

// ProposalMarkdown is the proposal as a markdown document for the preview
// pane.
func ProposalMarkdown(data ProposalPanelData) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("## Plan for %s\n\n", data.Day))
	if len(data.Rows) == 0 {
		b.WriteString("_empty plan_\n")
	} else {
		b.WriteString("| Start | End | Task |\n|---|---|---|\n")
		for _, row := range data.Rows {
			title := strings.ReplaceAll(row.Title, "|", "/")
			if row.Location != "" {
				title += " @ " + strings.ReplaceAll(row.Location, "|", "/")
			}
			if row.Block {
				title = "_" + title + "_"
			}
			b.WriteString(fmt.Sprintf("| %s | %s | %s |\n", row.Start, row.End, title))
		}
	}
	if len(data.Notes) > 0 {
		b.WriteString("\n**Notes**\n\n")
		for _, n := range data.Notes {
			b.WriteString("- " + n + "\n")
		}
	}
	return b.String()
}

func RenderHelpPanel(data HelpPanelData) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("help (%s):\n", data.CurrentView))
	for _, line := range data.Bindings {
		b.WriteString(line + "\n")
	}
	if data.HelpView != "" {
		b.WriteString("\n" + data.HelpView)
	}
	return strings.TrimSpace(b.String())
}

func RenderCommandPalette(active bool, input string) string {
	if !active {
		return ""
	}
	return fmt.Sprintf("command: /%s", input)
}

func RenderResult(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return "last result:\n" + text
}
