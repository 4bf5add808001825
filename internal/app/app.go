// Package app is the command surface used by the terminal UI and the CLI.
// Every state change runs on a single scheduler loop; model and route calls
// happen outside it and hand their results back through it.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/calendar"
	"github.com/sandeepkv93/dayplan/internal/config"
	"github.com/sandeepkv93/dayplan/internal/geo"
	"github.com/sandeepkv93/dayplan/internal/llm"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/recurrence"
	"github.com/sandeepkv93/dayplan/internal/reconcile"
	"github.com/sandeepkv93/dayplan/internal/scheduler"
	"github.com/sandeepkv93/dayplan/internal/storage"
	"github.com/sandeepkv93/dayplan/internal/store"
)

const autosaveKey = "autosave"

// Options wires the collaborators. Only Config is required; nil stores are
// created, a nil model client fails every model call with a configuration
// error, and nil route, calendar and location sources are skipped.
type Options struct {
	Config   config.Config
	Tasks    *store.TaskStore
	Plans    *store.DailyPlanStore
	Storage  storage.Adapter
	LLM      llm.Client
	Routes   geo.RouteClient
	Calendar calendar.Source
	Location geo.LocationProvider
	Logger   *slog.Logger
	Now      func() time.Time
}

type App struct {
	cfg      config.Config
	tasks    *store.TaskStore
	plans    *store.DailyPlanStore
	rec      *reconcile.Reconciler
	storage  storage.Adapter
	llm      llm.Client
	params   llm.Params
	routes   geo.RouteClient
	calendar calendar.Source
	location geo.LocationProvider
	engine   *scheduler.Engine
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	session   *reconcile.Session
	templates []model.RecurringTemplate

	loading     atomic.Bool
	unsubscribe []func()
	closeOnce   sync.Once
}

func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	tasks := opts.Tasks
	if tasks == nil {
		tasks = store.NewTaskStore(store.Options{Logger: logger, Now: now})
	}
	plans := opts.Plans
	if plans == nil {
		plans = store.NewDailyPlanStore(logger)
	}
	client := opts.LLM
	if client == nil {
		client = llm.Disabled{}
	}

	rec := reconcile.New(tasks, plans, logger)
	rec.SetClock(now)

	a := &App{
		cfg:      opts.Config,
		tasks:    tasks,
		plans:    plans,
		rec:      rec,
		storage:  opts.Storage,
		llm:      client,
		params:   llm.DefaultParams(opts.Config.LLM),
		routes:   opts.Routes,
		calendar: opts.Calendar,
		location: opts.Location,
		engine:   scheduler.NewEngine(opts.Config.Planner.SchedulerBuffer, logger),
		logger:   logger.With("component", "app"),
		now:      now,
	}
	a.engine.Start()
	go a.drainApplied()

	if a.storage != nil {
		a.unsubscribe = append(a.unsubscribe,
			tasks.Subscribe(func(store.Change) { a.scheduleSave() }),
			plans.Subscribe(func(store.Change) { a.scheduleSave() }),
		)
	}
	return a
}

func (a *App) Tasks() *store.TaskStore      { return a.tasks }
func (a *App) Plans() *store.DailyPlanStore { return a.plans }
func (a *App) Config() config.Config        { return a.cfg }

// Now is the app's clock.
func (a *App) Now() time.Time { return a.now() }

// drainApplied keeps the engine's notice channel from filling up.
func (a *App) drainApplied() {
	for n := range a.engine.C() {
		if n.Err != nil {
			a.logger.Debug("job finished with error", "job", n.Name, "error", n.Err)
		}
	}
}

// apply runs fn on the scheduler loop and waits for it.
func (a *App) apply(ctx context.Context, name string, fn func() error) error {
	err := a.engine.Do(ctx, name, fn)
	if errors.Is(err, scheduler.ErrStopped) {
		return apperr.Wrap(apperr.KindConfiguration, "app."+name, err)
	}
	return err
}

func (a *App) scheduleSave() {
	if a.storage == nil || a.loading.Load() {
		return
	}
	err := a.engine.Debounce(autosaveKey, a.cfg.Planner.AutosaveDelay(), func() error {
		return a.save(context.Background())
	})
	if err != nil && !errors.Is(err, scheduler.ErrStopped) {
		a.logger.Warn("autosave not scheduled", "error", err)
	}
}

// Load restores persisted state. Unreadable keys start empty; duplicates
// found while restoring are repaired and reported.
func (a *App) Load(ctx context.Context) (store.ConflictReport, error) {
	if a.storage == nil {
		return store.ConflictReport{}, nil
	}
	st := storage.LoadState(ctx, a.storage, a.logger)
	var report store.ConflictReport
	err := a.apply(ctx, "load", func() error {
		a.loading.Store(true)
		defer a.loading.Store(false)
		report = st.Restore(a.tasks, a.plans)
		a.mu.Lock()
		a.templates = st.Templates
		a.mu.Unlock()
		return nil
	})
	if err != nil {
		return store.ConflictReport{}, err
	}
	a.logger.Info("state loaded", "tasks", len(a.tasks.Tasks()), "days", len(a.plans.Days()), "templates", len(st.Templates))
	return report, nil
}

// Save writes the current state now.
func (a *App) Save(ctx context.Context) error {
	if a.storage == nil {
		return nil
	}
	return a.apply(ctx, "save", func() error { return a.save(ctx) })
}

func (a *App) save(ctx context.Context) error {
	a.mu.Lock()
	templates := append([]model.RecurringTemplate(nil), a.templates...)
	a.mu.Unlock()
	if err := storage.SaveState(ctx, a.storage, storage.Capture(a.tasks, a.plans, templates)); err != nil {
		a.logger.Warn("save failed", "error", err)
		return err
	}
	a.logger.Debug("state saved")
	return nil
}

// Close saves once more and stops the loop.
func (a *App) Close(ctx context.Context) error {
	var err error
	a.closeOnce.Do(func() {
		for _, fn := range a.unsubscribe {
			fn()
		}
		err = a.Save(ctx)
		a.engine.Stop()
	})
	return err
}

// Templates lists the recurring templates expanded so far.
func (a *App) Templates() []model.RecurringTemplate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.RecurringTemplate(nil), a.templates...)
}

func (a *App) expander() recurrence.Expander {
	return recurrence.Expander{Horizon: a.cfg.Planner.HorizonDays, Now: a.now, Logger: a.logger}
}
