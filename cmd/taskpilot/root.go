package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/copyleftdev/taskpilot/internal/auth"
	"github.com/copyleftdev/taskpilot/internal/browser"
	"github.com/copyleftdev/taskpilot/internal/config"
	"github.com/copyleftdev/taskpilot/internal/observability"
	"github.com/copyleftdev/taskpilot/internal/tasks"
	"github.com/copyleftdev/taskpilot/internal/taskstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfgFile string

// errRunFailed signals a task that ran but did not succeed. The result has
// already been printed, so Execute does not log it again.
var errRunFailed = errors.New("task run failed")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskpilot",
		Short:         "Run declarative browser automation tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newLoginCmd())
	return root
}

// Execute runs the root command with ctx, which is cancelled on SIGINT/SIGTERM.
func Execute(ctx context.Context) error {
	err := newRootCmd().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errRunFailed) && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// app holds the components shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *taskstore.Store
}

func loadApp() (*app, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := observability.NewLogger(cfg.Log)
	return &app{
		cfg:    cfg,
		logger: logger,
		store:  taskstore.New(cfg.Tasks.Directory, logger),
	}, nil
}

func (a *app) close() {
	observability.Sync(a.logger)
}

// startEngine launches the browser and builds the runner on top of it.
func (a *app) startEngine() (*browser.Manager, *tasks.Runner, error) {
	sessions := browser.NewManager(a.cfg, a.logger)
	if err := sessions.Start(); err != nil {
		return nil, nil, err
	}

	opts := []tasks.RunnerOption{tasks.WithBuiltins(auth.Builtins(a.cfg.Auth.TOTPSecret))}
	if a.cfg.Debug.SnapshotDir != "" {
		opts = append(opts, tasks.WithSnapshotDir(a.cfg.Debug.SnapshotDir))
	}
	return sessions, tasks.NewRunner(sessions, a.logger, opts...), nil
}

func (a *app) shutdownEngine(sessions *browser.Manager) {
	if err := sessions.Shutdown(); err != nil {
		a.logger.Error("Browser shutdown failed", zap.Error(err))
	}
}
