package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/copyleftdev/taskpilot/internal/tasks"
	"github.com/copyleftdev/taskpilot/internal/taskstore"
	"github.com/copyleftdev/taskpilot/internal/taskstypes"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		varFlags []string
		file     string
	)
	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Run one task and print its result",
		Long: "Run a task by name from the task directory, or from a file with --file.\n" +
			"Exits with status 1 when the task fails.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseVars(varFlags)
			if err != nil {
				return err
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()

			task, err := resolveTask(a.store, args, file)
			if err != nil {
				return err
			}

			sessions, runner, err := a.startEngine()
			if err != nil {
				return err
			}
			defer a.shutdownEngine(sessions)

			manager := tasks.NewManager(a.cfg, runner, a.logger)
			result := manager.Execute(cmd.Context(), task, overrides)

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if !result.Success {
				return errRunFailed
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&varFlags, "var", nil, "variable override as key=value (repeatable)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "run the task defined in this file")
	return cmd
}

func resolveTask(store *taskstore.Store, args []string, file string) (*taskstypes.Task, error) {
	switch {
	case file != "" && len(args) > 0:
		return nil, fmt.Errorf("give either a task name or --file, not both")
	case file != "":
		return taskstore.Load(file)
	case len(args) == 1:
		return store.Get(args[0])
	default:
		return nil, fmt.Errorf("a task name or --file is required")
	}
}

// parseVars turns repeated key=value flags into an override map. Later
// flags win; values may contain '='.
func parseVars(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q, want key=value", p)
		}
		out[key] = value
	}
	return out, nil
}
