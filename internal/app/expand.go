package app

import (
	"context"
	"errors"
	"strings"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/planner"
	"github.com/sandeepkv93/dayplan/internal/recurrence"
	"github.com/sandeepkv93/dayplan/internal/store"
)

// ExpandRecurringTask remembers tpl and adds its instances to the date
// groups. When the store rejects an instance the ones before it stay and
// are returned with the error.
func (a *App) ExpandRecurringTask(ctx context.Context, tpl model.RecurringTemplate) ([]model.Task, error) {
	const op = "app.ExpandRecurringTask"
	if strings.TrimSpace(tpl.ID) == "" {
		tpl.ID = model.NewID()
	}
	if err := tpl.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, err)
	}

	var created []model.Task
	err := a.apply(ctx, "expand_recurring", func() error {
		var err error
		created, err = a.expander().Expand(tpl, a.tasks)
		if len(created) > 0 {
			a.rememberTemplate(tpl)
		}
		return err
	})
	var expandErr *recurrence.ExpandError
	if errors.As(err, &expandErr) {
		a.logger.Warn("recurring expansion stopped early", "template_id", tpl.ID, "created", len(created), "error", err)
		return created, apperr.Wrap(apperr.KindValidation, op, err)
	}
	if err != nil {
		return nil, err
	}
	a.logger.Info("recurring task expanded", "template_id", tpl.ID, "instances", len(created))
	return created, nil
}

func (a *App) rememberTemplate(tpl model.RecurringTemplate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.templates {
		if a.templates[i].ID == tpl.ID {
			a.templates[i] = tpl
			return
		}
	}
	a.templates = append(a.templates, tpl)
}

// ExpandFreeText asks the model to turn text into task drafts. Nothing is
// stored until AddDrafts.
func (a *App) ExpandFreeText(ctx context.Context, text string) ([]model.Task, error) {
	now := a.now()
	doc, err := planner.BuildExpansion(text, now)
	if err != nil {
		return nil, err
	}
	raw, err := a.llm.Generate(ctx, doc, a.params)
	if err != nil {
		return nil, err
	}
	drafts, err := planner.ParseExpansion(raw, now)
	if err != nil {
		a.logger.Warn("expansion response rejected", "error", err)
		return nil, err
	}
	return drafts, nil
}

// AddDrafts stores accepted drafts in one batch: dated ones in their date
// group, the rest in group (or the first group).
func (a *App) AddDrafts(ctx context.Context, drafts []model.Task, group string) ([]model.Task, error) {
	var added []model.Task
	err := a.apply(ctx, "add_drafts", func() error {
		added = nil
		return a.tasks.Batch(func(b *store.Batch) error {
			for _, d := range drafts {
				if d.Location != "" && !d.LocationSensitive {
					d.LocationSensitive = model.LocationSensitiveFor(d.Location)
				}
				var t model.Task
				var err error
				switch {
				case d.Date != nil:
					t, err = b.AddTaskToDate(d, *d.Date)
				case strings.TrimSpace(group) != "":
					t, err = b.AddTaskToGroup(group, d)
				default:
					t, err = b.AddTask(d)
				}
				if err != nil {
					return err
				}
				added = append(added, t)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	a.logger.Info("drafts added", "count", len(added))
	return added, nil
}
