package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/dayplan/internal/config"
	"github.com/sandeepkv93/dayplan/internal/update"
)

var Version = "dev"

type rootFlags struct {
	configPath string
	envFile    string
	logFile    string
	location   string
}

func main() {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           "dayplan",
		Short:         "dayplan - tasks, recurring chores and model-built day plans",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, flags)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "dayplan.yaml", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env", ".env", "dotenv file loaded before the environment")
	rootCmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "write logs here instead of stderr")
	rootCmd.PersistentFlags().StringVar(&flags.location, "at", "", "current location used for travel estimates")

	rootCmd.AddCommand(tuiCmd(flags))
	rootCmd.AddCommand(todayCmd(flags))
	rootCmd.AddCommand(planCmd(flags))
	rootCmd.AddCommand(doCmd(flags))
	rootCmd.AddCommand(expandCmd(flags))
	rootCmd.AddCommand(sweepCmd(flags))
	rootCmd.AddCommand(initConfigCmd(flags))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "dayplan:", err)
		os.Exit(1)
	}
}

func tuiCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, flags)
		},
	}
}

func runTUI(cmd *cobra.Command, flags *rootFlags) error {
	if flags.logFile == "" {
		flags.logFile = "dayplan.log"
	}
	rt, err := openRuntime(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer rt.close()

	program := tea.NewProgram(update.NewModel(cmd.Context(), rt.app), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("tui failed: %w", err)
	}
	return nil
}

func todayCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "today [date]",
		Short: "Print the day view (today, tomorrow, a weekday or YYYY-MM-DD)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := "show today"
			if len(args) == 1 {
				line += " date:" + args[0]
			}
			return runLine(cmd, flags, line)
		},
	}
}

func planCmd(flags *rootFlags) *cobra.Command {
	var accept bool
	cmd := &cobra.Command{
		Use:   "plan [date] [group:NAME] [mode:MODE] [notes...]",
		Short: "Ask the model for a day plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.exec(cmd, "plan "+strings.Join(args, " ")); err != nil {
				return err
			}
			if accept {
				return rt.exec(cmd, "accept")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&accept, "accept", false, "accept the proposal right away")
	return cmd
}

func doCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "do <command...>",
		Short: "Run one command line, e.g. dayplan do add Call mom dur:15 date:tomorrow",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLine(cmd, flags, strings.Join(args, " "))
		},
	}
}

func expandCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "expand <text...>",
		Short: "Turn free text into tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLine(cmd, flags, "expand "+strings.Join(args, " "))
		},
	}
}

func sweepCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Queue overdue tasks and repair duplicate entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer rt.close()

			moved, err := rt.app.SweepOverdue(cmd.Context())
			if err != nil {
				return err
			}
			report, err := rt.app.ScanConflicts(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "overdue queued: %d\n", len(moved))
			fmt.Fprintf(out, "duplicates removed: %d\n", len(report.Duplicates))
			return nil
		},
	}
}

func initConfigCmd(flags *rootFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(flags.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force)", flags.configPath)
			}
			if err := config.Save(flags.configPath, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", flags.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func runLine(cmd *cobra.Command, flags *rootFlags, line string) error {
	rt, err := openRuntime(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer rt.close()
	return rt.exec(cmd, line)
}
