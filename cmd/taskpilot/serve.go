package main

import (
	"context"
	"errors"

	"github.com/copyleftdev/taskpilot/internal/server"
	"github.com/copyleftdev/taskpilot/internal/tasks"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the task API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()
			return serve(cmd.Context(), a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	sessions, runner, err := a.startEngine()
	if err != nil {
		return err
	}
	defer a.shutdownEngine(sessions)

	manager := tasks.NewManager(a.cfg, runner, a.logger)
	srv := server.NewServer(ctx, a.cfg, a.store, manager, a.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Browser.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("Runs still in flight at shutdown", zap.Error(err))
	}
	return errors.Join(errs...)
}
