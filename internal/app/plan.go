package app

import (
	"context"
	"strings"
	"time"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/geo"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/planner"
	"github.com/sandeepkv93/dayplan/internal/reconcile"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

// PlanRequest selects what to plan. An empty Group plans the tasks due on
// Date; a zero Date means today.
type PlanRequest struct {
	Group         string
	Date          time.Time
	TransportMode string
	Notes         string
}

// Proposal is the model's current answer for the active session.
type Proposal struct {
	Token    uint64
	Day      time.Time
	Entries  []model.PlannedTask
	Document string
	Raw      string
	Notes    []string
}

func proposalOf(s *reconcile.Session) Proposal {
	return Proposal{
		Token:    s.Token,
		Day:      s.Request.Day,
		Entries:  append([]model.PlannedTask(nil), s.Proposal...),
		Document: s.Request.Document,
		Raw:      s.Raw,
		Notes:    append([]string(nil), s.Input.Notes...),
	}
}

// GeneratePlan opens a new planning session, which supersedes any earlier
// one, and asks the model for a proposal.
func (a *App) GeneratePlan(ctx context.Context, req PlanRequest) (Proposal, error) {
	in, err := a.requestInput(ctx, req)
	if err != nil {
		return Proposal{}, err
	}
	sess, err := a.rec.Begin(in)
	if err != nil {
		return Proposal{}, err
	}
	a.activate(sess)
	a.logger.Info("plan requested", "token", sess.Token, "day", timemath.DayKey(in.Day), "tasks", len(in.Tasks))
	return a.propose(ctx, sess)
}

// RegeneratePlan discards the current proposal, adds notes to the session
// and asks again for the same tasks.
func (a *App) RegeneratePlan(ctx context.Context, notes string) (Proposal, error) {
	prev := a.active()
	if prev == nil {
		return Proposal{}, apperr.New(apperr.KindValidation, "app.RegeneratePlan", "no plan to regenerate")
	}
	sess, err := a.rec.Regenerate(prev, notes)
	if err != nil {
		return Proposal{}, err
	}
	a.activate(sess)
	return a.propose(ctx, sess)
}

// AcceptPlan commits entries, or the current proposal when entries is nil,
// and closes the session. A response still in flight for it is dropped.
func (a *App) AcceptPlan(ctx context.Context, entries []model.PlannedTask) (reconcile.Outcome, error) {
	const op = "app.AcceptPlan"
	var out reconcile.Outcome
	err := a.apply(ctx, "accept_plan", func() error {
		sess := a.active()
		if sess == nil {
			return apperr.New(apperr.KindValidation, op, "no plan to accept")
		}
		if entries == nil {
			entries = sess.Proposal
		}
		if len(entries) == 0 {
			return apperr.New(apperr.KindValidation, op, "plan has no entries")
		}
		var err error
		out, err = a.rec.Accept(sess.Request.Day, entries, sess.Originals())
		if err != nil {
			return err
		}
		a.deactivate(sess.Token)
		return nil
	})
	return out, err
}

// DiscardPlan closes the session without changing anything.
func (a *App) DiscardPlan() {
	if sess := a.active(); sess != nil {
		a.deactivate(sess.Token)
	}
}

// ActiveProposal reports the current session, if any.
func (a *App) ActiveProposal() (Proposal, bool) {
	sess := a.active()
	if sess == nil {
		return Proposal{}, false
	}
	var p Proposal
	// The proposal is written on the loop; read it there too.
	err := a.engine.Do(context.Background(), "read_proposal", func() error {
		p = proposalOf(sess)
		return nil
	})
	if err != nil {
		return Proposal{}, false
	}
	return p, true
}

// propose calls the model outside the loop and applies the answer on it.
// If another session became active meanwhile, the answer is stale.
func (a *App) propose(ctx context.Context, sess *reconcile.Session) (Proposal, error) {
	const op = "app.propose"
	raw, genErr := a.llm.Generate(ctx, sess.Request.Document, a.params)

	var out Proposal
	err := a.apply(ctx, "apply_proposal", func() error {
		if !a.isActive(sess.Token) {
			a.logger.Debug("stale plan response dropped", "token", sess.Token)
			return apperr.New(apperr.KindStale, op, "plan response was superseded")
		}
		if genErr != nil {
			return genErr
		}
		if _, err := sess.Propose(raw); err != nil {
			a.logger.Warn("plan response rejected", "token", sess.Token, "error", err)
			return err
		}
		out = proposalOf(sess)
		return nil
	})
	if err != nil {
		return Proposal{}, err
	}
	a.logger.Info("plan proposed", "token", sess.Token, "entries", len(out.Entries))
	return out, nil
}

func (a *App) activate(s *reconcile.Session) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
}

func (a *App) deactivate(token uint64) {
	a.mu.Lock()
	if a.session != nil && a.session.Token == token {
		a.session = nil
	}
	a.mu.Unlock()
}

func (a *App) active() *reconcile.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *App) isActive(token uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil && a.session.Token == token
}

// requestInput gathers the tasks, commitments, location and travel hints
// for a planning request. Calendar, location and route failures only lose
// context; they do not fail the request.
func (a *App) requestInput(ctx context.Context, req PlanRequest) (planner.RequestInput, error) {
	const op = "app.GeneratePlan"
	now := a.now()
	day := timemath.StartOfDay(now)
	if !req.Date.IsZero() {
		day = timemath.StartOfDay(req.Date)
	}

	tasks, err := a.planTasks(req.Group, day)
	if err != nil {
		return planner.RequestInput{}, err
	}
	if len(tasks) == 0 {
		return planner.RequestInput{}, apperr.New(apperr.KindValidation, op, "nothing to plan")
	}

	start, end := a.window(day, now)
	mode := strings.TrimSpace(req.TransportMode)
	if mode == "" {
		mode = a.cfg.Planner.TransportMode
	}

	in := planner.RequestInput{
		Day:           day,
		Tasks:         tasks,
		Deadlines:     deadlines(tasks),
		Committed:     a.committed(ctx, start, end),
		WindowStart:   start,
		WindowEnd:     end,
		HomeAddress:   a.cfg.Planner.HomeAddress,
		TransportMode: mode,
		Now:           now,
	}
	if note := strings.TrimSpace(req.Notes); note != "" {
		in.Notes = []string{note}
	}
	in.CurrentLocation = a.currentLocation(ctx)
	in.Travel = a.travelHints(ctx, in.CurrentLocation, mode, tasks)
	return in, nil
}

func (a *App) planTasks(group string, day time.Time) ([]model.Task, error) {
	group = strings.TrimSpace(group)
	if group == "" {
		return a.tasks.DueOn(day), nil
	}
	g, ok := a.tasks.Group(group)
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "app.GeneratePlan", "no group named "+group)
	}
	out := make([]model.Task, 0, len(g.Tasks))
	for _, t := range g.Tasks {
		if t.Status == model.StatusActive {
			out = append(out, t)
		}
	}
	return out, nil
}

// window is the configured day span, starting no earlier than now on the
// current day.
func (a *App) window(day, now time.Time) (time.Time, time.Time) {
	start, err := timemath.ClockOnDay(day, a.cfg.Planner.DayStart)
	if err != nil {
		start = day.Add(8 * time.Hour)
	}
	end, err := timemath.ClockOnDay(day, a.cfg.Planner.DayEnd)
	if err != nil {
		end = day.Add(22 * time.Hour)
	}
	if timemath.SameDay(day, now) && now.After(start) && now.Before(end) {
		start = now.Truncate(time.Minute)
	}
	return start, end
}

func deadlines(tasks []model.Task) map[string]time.Time {
	out := make(map[string]time.Time)
	for _, t := range tasks {
		if t.Sensitivity == model.SensitivityDueBy && t.ExactTime != nil {
			out[t.ID] = *t.ExactTime
		}
	}
	return out
}

func (a *App) committed(ctx context.Context, start, end time.Time) []model.CommittedEvent {
	if a.calendar == nil {
		return nil
	}
	events, err := a.calendar.Events(ctx, start, end)
	if err != nil {
		a.logger.Warn("calendar unavailable, planning without it", "error", err)
	}
	return events
}

func (a *App) currentLocation(ctx context.Context) string {
	if a.location == nil {
		return a.cfg.Planner.HomeAddress
	}
	loc, err := geo.FetchLocation(ctx, a.location, a.cfg.Planner.LocationTimeout())
	if err != nil {
		a.logger.Warn("location unavailable, assuming home", "error", err)
		return a.cfg.Planner.HomeAddress
	}
	return loc
}

// travelHints estimates the trip from the current location to each
// location-sensitive task.
func (a *App) travelHints(ctx context.Context, origin, mode string, tasks []model.Task) []planner.TravelHint {
	if a.routes == nil || strings.TrimSpace(origin) == "" {
		return nil
	}
	var hints []planner.TravelHint
	seen := make(map[string]bool)
	for _, t := range tasks {
		dest := strings.TrimSpace(t.Location)
		if !t.LocationSensitive || dest == "" || seen[strings.ToLower(dest)] {
			continue
		}
		seen[strings.ToLower(dest)] = true
		q := geo.RouteQuery{Origin: origin, Destination: dest, Mode: mode}
		if at := t.AssumedStart(); at != nil {
			q.ArriveBy = *at
		}
		est, err := a.routes.EstimateDuration(ctx, q)
		if err != nil {
			a.logger.Warn("route estimate failed", "task_id", t.ID, "destination", dest, "error", err)
			continue
		}
		hints = append(hints, planner.TravelHint{
			From:           origin,
			To:             dest,
			Mode:           mode,
			Minutes:        est.Minutes,
			DepartureLabel: est.DepartureLabel,
		})
	}
	return hints
}
