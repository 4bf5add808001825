package update

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandeepkv93/dayplan/internal/app"
	"github.com/sandeepkv93/dayplan/internal/commands"
	"github.com/sandeepkv93/dayplan/internal/reconcile"
)

type SwitchViewMsg struct {
	View View
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

// CommandDoneMsg carries the result of a palette command.
type CommandDoneMsg struct {
	Line   string
	Result commands.Result
	Err    error
}

// ProposalMsg arrives when a generate or regenerate call returns.
type ProposalMsg struct {
	Proposal app.Proposal
	Err      error
}

type AcceptedMsg struct {
	Outcome reconcile.Outcome
	Err     error
}

// ActionDoneMsg reports a single-key action.
type ActionDoneMsg struct {
	Text string
	Err  error
}

func runCommandCmd(ctx context.Context, a *app.App, line string) tea.Cmd {
	return func() tea.Msg {
		res, err := a.Execute(ctx, line)
		return CommandDoneMsg{Line: line, Result: res, Err: err}
	}
}

func generatePlanCmd(ctx context.Context, a *app.App, req app.PlanRequest) tea.Cmd {
	return func() tea.Msg {
		p, err := a.GeneratePlan(ctx, req)
		return ProposalMsg{Proposal: p, Err: err}
	}
}

func regeneratePlanCmd(ctx context.Context, a *app.App, note string) tea.Cmd {
	return func() tea.Msg {
		p, err := a.RegeneratePlan(ctx, note)
		return ProposalMsg{Proposal: p, Err: err}
	}
}

func acceptPlanCmd(ctx context.Context, a *app.App) tea.Cmd {
	return func() tea.Msg {
		out, err := a.AcceptPlan(ctx, nil)
		return AcceptedMsg{Outcome: out, Err: err}
	}
}

func sweepCmd(ctx context.Context, a *app.App) tea.Cmd {
	return func() tea.Msg {
		moved, err := a.SweepOverdue(ctx)
		if err != nil {
			return ActionDoneMsg{Err: err}
		}
		if len(moved) == 0 {
			return ActionDoneMsg{Text: "ready"}
		}
		return ActionDoneMsg{Text: fmt.Sprintf("%d overdue task(s) moved to the automatic queue", len(moved))}
	}
}

func actionCmd(text string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return ActionDoneMsg{Err: err}
		}
		return ActionDoneMsg{Text: text}
	}
}
