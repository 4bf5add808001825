package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/dayplan/internal/app"
	"github.com/sandeepkv93/dayplan/internal/calendar"
	"github.com/sandeepkv93/dayplan/internal/config"
	"github.com/sandeepkv93/dayplan/internal/geo"
	"github.com/sandeepkv93/dayplan/internal/llm"
	"github.com/sandeepkv93/dayplan/internal/storage"
)

// runtime owns everything opened for one invocation.
type runtime struct {
	app     *app.App
	storage storage.Adapter
	logger  *slog.Logger
	logOut  io.Closer
}

func openRuntime(ctx context.Context, flags *rootFlags) (*runtime, error) {
	cfg, err := config.Load(flags.configPath, flags.envFile)
	if err != nil {
		return nil, err
	}

	rt := &runtime{}
	var logOut io.Writer = os.Stderr
	if flags.logFile != "" {
		f, err := os.OpenFile(flags.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logOut = f
		rt.logOut = f
	}
	logger := cfg.Log.NewLogger(logOut)
	rt.logger = logger

	adapter, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		rt.closeLog()
		return nil, err
	}
	rt.storage = adapter

	client, err := llm.Open(ctx, cfg.LLM, logger)
	if err != nil {
		logger.Warn("model client unavailable, planning disabled", "provider", cfg.LLM.Provider, "error", err)
		client = llm.Disabled{}
	}

	opts := app.Options{
		Config:  cfg,
		Storage: adapter,
		LLM:     client,
		Logger:  logger,
	}
	if cfg.Maps.APIKey != "" {
		routes, err := geo.NewDistanceMatrixClient(cfg.Maps.APIKey, logger)
		if err != nil {
			logger.Warn("route estimates disabled", "error", err)
		} else {
			opts.Routes = geo.NewCachedClient(routes, cfg.Planner.HomeAddress, cfg.Maps.CacheSize, cfg.Maps.CacheTTL(), logger)
		}
	}
	if cfg.Calendar.Enabled {
		src, err := calendar.NewGoogleSource(ctx, cfg.Calendar, logger)
		if err != nil {
			logger.Warn("calendar disabled", "error", err)
		} else {
			opts.Calendar = src
		}
	}
	if flags.location != "" {
		opts.Location = geo.StaticLocation(flags.location)
	}

	rt.app = app.New(opts)
	report, err := rt.app.Load(ctx)
	if err != nil {
		rt.close()
		return nil, err
	}
	if !report.Empty() {
		logger.Info("stored state repaired on load", "duplicates", len(report.Duplicates))
	}
	return rt, nil
}

// exec runs one command line and prints its result.
func (rt *runtime) exec(cmd *cobra.Command, line string) error {
	res, err := rt.app.Execute(cmd.Context(), line)
	if err != nil {
		return err
	}
	if res.Message != "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	}
	return nil
}

func (rt *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if rt.app != nil {
		if err := rt.app.Close(ctx); err != nil {
			rt.logger.Error("final save failed", "error", err)
		}
	}
	if rt.storage != nil {
		if err := rt.storage.Close(); err != nil {
			rt.logger.Warn("storage close failed", "error", err)
		}
	}
	rt.closeLog()
}

func (rt *runtime) closeLog() {
	if rt.logOut != nil {
		_ = rt.logOut.Close()
	}
}
