package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/commands"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

// DefaultDuration is used for new tasks given without dur:.
const DefaultDuration = 30

// Handlers binds the text command surface to a. Calls made through them use
// ctx.
func (a *App) Handlers(ctx context.Context) commands.Handlers {
	return commands.Handlers{
		Add: func(args commands.AddArgs) (commands.Result, error) {
			t := model.NewTask(args.Title, 0, model.UrgencyMedium)
			if err := args.Fields.Apply(&t, a.now()); err != nil {
				return commands.Result{}, err
			}
			if t.Duration == 0 && args.Fields.Duration == nil {
				t.Duration = DefaultDuration
			}
			saved, err := a.CreateTask(ctx, t, args.Fields.Group)
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: fmt.Sprintf("added %s (%s)", saved.Title, shortID(saved.ID))}, nil
		},
		Edit: func(args commands.EditArgs) (commands.Result, error) {
			target, err := a.FindTask(args.Target)
			if err != nil {
				return commands.Result{}, err
			}
			saved, err := a.EditTask(ctx, target.ID, func(t *model.Task) error {
				if args.Title != "" {
					t.Title = args.Title
				}
				return args.Fields.Apply(t, a.now())
			})
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: "updated " + saved.Title}, nil
		},
		Remove: func(args commands.TargetArgs) (commands.Result, error) {
			target, err := a.FindTask(args.Target)
			if err != nil {
				return commands.Result{}, err
			}
			if _, err := a.DeleteTask(ctx, target.ID); err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: "removed " + target.Title}, nil
		},
		Done: func(args commands.TargetArgs) (commands.Result, error) {
			id := args.Target
			if t, err := a.FindTask(args.Target); err == nil {
				id = t.ID
			}
			ok, err := a.CompleteTask(ctx, id)
			if err != nil {
				return commands.Result{}, err
			}
			if !ok {
				return commands.Result{}, apperr.New(apperr.KindNotFound, "app.Done", "nothing to complete for "+args.Target)
			}
			return commands.Result{Message: "completed " + args.Target}, nil
		},
		Reschedule: func(args commands.RescheduleArgs) (commands.Result, error) {
			target, err := a.FindTask(args.Target)
			if err != nil {
				return commands.Result{}, err
			}
			if _, err := a.RequestReschedule(ctx, target.ID, args.Queue); err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: fmt.Sprintf("%s moved to the %s queue", target.Title, args.Queue)}, nil
		},
		Plan: func(args commands.PlanArgs) (commands.Result, error) {
			day, err := commands.ResolveDate(args.Date, a.now())
			if err != nil {
				return commands.Result{}, err
			}
			p, err := a.GeneratePlan(ctx, PlanRequest{Group: args.Group, Date: day, TransportMode: args.TransportMode, Notes: args.Notes})
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: FormatEntries(p.Entries)}, nil
		},
		Accept: func() (commands.Result, error) {
			out, err := a.AcceptPlan(ctx, nil)
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: fmt.Sprintf("accepted: %d scheduled, %d blocks, %d queued",
				len(out.Scheduled), len(out.PlanOnly), len(out.Queued))}, nil
		},
		Regen: func(args commands.RegenArgs) (commands.Result, error) {
			p, err := a.RegeneratePlan(ctx, args.Note)
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: FormatEntries(p.Entries)}, nil
		},
		Repeat: func(args commands.RepeatArgs) (commands.Result, error) {
			tpl, err := templateFrom(args, a)
			if err != nil {
				return commands.Result{}, err
			}
			created, err := a.ExpandRecurringTask(ctx, tpl)
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: fmt.Sprintf("%s repeats %s: %d instances added", tpl.Title, tpl.Interval, len(created))}, nil
		},
		Expand: func(args commands.ExpandArgs) (commands.Result, error) {
			drafts, err := a.ExpandFreeText(ctx, args.Text)
			if err != nil {
				return commands.Result{}, err
			}
			added, err := a.AddDrafts(ctx, drafts, "")
			if err != nil {
				return commands.Result{}, err
			}
			titles := make([]string, 0, len(added))
			for _, t := range added {
				titles = append(titles, t.Title)
			}
			return commands.Result{Message: fmt.Sprintf("added %d tasks: %s", len(added), strings.Join(titles, ", "))}, nil
		},
		Show: func(args commands.ShowArgs) (commands.Result, error) {
			day, err := commands.ResolveDate(args.Date, a.now())
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: a.show(args.Subject, day)}, nil
		},
	}
}

func templateFrom(args commands.RepeatArgs, a *App) (model.RecurringTemplate, error) {
	probe := model.NewTask(args.Title, DefaultDuration, model.UrgencyMedium)
	if err := args.Fields.Apply(&probe, a.now()); err != nil {
		return model.RecurringTemplate{}, err
	}
	return model.RecurringTemplate{
		ID:          model.NewID(),
		Title:       probe.Title,
		Duration:    probe.Duration,
		Urgency:     probe.Urgency,
		Sensitivity: probe.Sensitivity,
		ExactTime:   probe.ExactTime,
		StartTime:   probe.StartTime,
		EndTime:     probe.EndTime,
		Location:    probe.Location,
		Category:    probe.Category,
		Interval:    args.Interval,
	}, nil
}

// Execute parses line and runs it against a.
func (a *App) Execute(ctx context.Context, line string) (commands.Result, error) {
	cmd, err := commands.Parse(line)
	if err != nil {
		return commands.Result{}, err
	}
	return commands.Execute(cmd, a.Handlers(ctx))
}

func (a *App) show(subject string, day time.Time) string {
	switch subject {
	case "tasks":
		var b strings.Builder
		for _, g := range a.tasks.Groups() {
			fmt.Fprintf(&b, "%s\n", g.Name)
			for _, t := range g.Tasks {
				fmt.Fprintf(&b, "  %s %s  %s  %s\n", statusMark(t.Status), shortID(t.ID), t.Title, timemath.FormatMinutes(t.EffectiveDuration()))
			}
		}
		if b.Len() == 0 {
			return "no tasks"
		}
		return strings.TrimRight(b.String(), "\n")
	case "queue":
		var b strings.Builder
		for _, kind := range []model.QueueKind{model.QueueManual, model.QueueAutomatic} {
			q := a.tasks.Queue(kind)
			fmt.Fprintf(&b, "%s (%d)\n", kind, len(q))
			for _, t := range q {
				fmt.Fprintf(&b, "  %s  %s\n", shortID(t.ID), t.Title)
			}
		}
		return strings.TrimRight(b.String(), "\n")
	case "plan":
		p, ok := a.ActiveProposal()
		if !ok {
			return "no plan in progress"
		}
		return FormatEntries(p.Entries)
	default:
		rows := a.Today(day)
		if len(rows) == 0 {
			return "nothing on " + timemath.LongDate(day)
		}
		return timemath.LongDate(day) + "\n" + FormatEntries(rows)
	}
}

// FormatEntries renders plan rows one per line.
func FormatEntries(entries []model.PlannedTask) string {
	if len(entries) == 0 {
		return "empty plan"
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		mark := " "
		if e.Completed {
			mark = "x"
		}
		fmt.Fprintf(&b, "[%s] %8s - %-8s %s", mark, e.StartTime, e.EndTime, e.Title)
		if e.Location != "" {
			fmt.Fprintf(&b, " @ %s", e.Location)
		}
	}
	return b.String()
}

func statusMark(s model.Status) string {
	switch s {
	case model.StatusCompleted:
		return "[x]"
	case model.StatusQueued:
		return "[~]"
	default:
		return "[ ]"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}
