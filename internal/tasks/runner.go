package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/copyleftdev/taskpilot/internal/browser"
	"github.com/copyleftdev/taskpilot/internal/dom"
	"github.com/copyleftdev/taskpilot/internal/taskstypes"
	"github.com/copyleftdev/taskpilot/internal/vars"
	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

const successMessage = "execution succeeded"

var errNilTask = errors.New("no task to run")

// Sessions hands out browsing contexts and persists their session state.
// browser.Manager is the production implementation.
type Sessions interface {
	NewContext() (playwright.BrowserContext, error)
	NewPage(ctx playwright.BrowserContext) (playwright.Page, error)
	SaveState(ctx playwright.BrowserContext)
}

// Compile-time check to ensure browser.Manager implements the interface
var _ Sessions = (*browser.Manager)(nil)

// BuiltinsFunc supplies variables with the lowest precedence (task defaults
// and overrides both win over them).
type BuiltinsFunc func() (map[string]string, error)

type RunnerOption func(*Runner)

func WithBuiltins(fn BuiltinsFunc) RunnerOption {
	return func(r *Runner) { r.builtins = fn }
}

// WithSnapshotDir makes failed runs dump a simplified DOM of the page into dir.
func WithSnapshotDir(dir string) RunnerOption {
	return func(r *Runner) { r.snapshotDir = dir }
}

// Runner executes tasks one at a time per call. It is safe for concurrent use;
// each call gets its own browsing context.
type Runner struct {
	sessions    Sessions
	logger      *zap.Logger
	builtins    BuiltinsFunc
	snapshotDir string
}

func NewRunner(sessions Sessions, logger *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		sessions: sessions,
		logger:   logger.Named("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes task with overrides layered over its default variables. It
// never panics and always returns a result; ctx is only expected to be
// cancelled on process shutdown.
func (r *Runner) Run(ctx context.Context, task *taskstypes.Task, overrides map[string]string) taskstypes.TaskResult {
	return r.run(ctx, uuid.NewString(), task, overrides)
}

func (r *Runner) run(ctx context.Context, runID string, task *taskstypes.Task, overrides map[string]string) (result taskstypes.TaskResult) {
	start := time.Now()
	if task == nil {
		r.logger.Error("Run requested without a task", zap.String("runId", runID))
		return failure("", runID, start, &StepError{Kind: KindInternal, Err: errNilTask})
	}
	logger := r.logger.With(zap.String("task", task.Name), zap.String("runId", runID))

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Task panicked", zap.Any("panic", rec))
			result = failure(task.Name, runID, start, &StepError{Kind: KindInternal, Err: fmt.Errorf("internal error: %v", rec)})
		}
	}()

	logger.Info("Starting task")
	variables := r.variables(logger, task, overrides)
	logger.Debug("Task variables", zap.Any("variables", variables))

	if err := r.drive(ctx, logger, runID, task, variables); err != nil {
		var stepErr *StepError
		if !errors.As(err, &stepErr) {
			stepErr = &StepError{Kind: KindInternal, Err: err}
		}
		logger.Error("Task failed", zap.String("reason", stepErr.describe()), zap.Error(stepErr.Err), zap.Duration("elapsed", time.Since(start)))
		return failure(task.Name, runID, start, stepErr)
	}

	duration := time.Since(start)
	logger.Info("Task completed", zap.Duration("duration", duration))
	return taskstypes.TaskResult{
		Success:    true,
		TaskName:   task.Name,
		Message:    successMessage,
		DurationMs: duration.Milliseconds(),
		RunID:      runID,
	}
}

func (r *Runner) variables(logger *zap.Logger, task *taskstypes.Task, overrides map[string]string) map[string]string {
	var builtins map[string]string
	if r.builtins != nil {
		b, err := r.builtins()
		if err != nil {
			logger.Warn("Builtin variables unavailable", zap.Error(err))
		} else {
			builtins = b
		}
	}
	return vars.Merge(vars.Merge(builtins, task.Variables), overrides)
}

// drive owns the context and page for one run. The deferred closes run on
// every exit path, panics included: page first, then context.
func (r *Runner) drive(ctx context.Context, logger *zap.Logger, runID string, task *taskstypes.Task, variables map[string]string) error {
	bctx, err := r.sessions.NewContext()
	if err != nil {
		return &StepError{Kind: KindSession, Err: err}
	}
	defer func() {
		if err := bctx.Close(); err != nil {
			logger.Warn("Failed to close browser context", zap.Error(err))
		}
	}()

	page, err := r.sessions.NewPage(bctx)
	if err != nil {
		return &StepError{Kind: KindSession, Err: err}
	}
	defer func() {
		if err := page.Close(); err != nil {
			logger.Warn("Failed to close page", zap.Error(err))
		}
	}()

	url := vars.Interpolate(task.URL, variables)
	logger.Info("Navigating", zap.String("url", url))
	if _, err := page.Goto(url); err != nil {
		r.snapshot(logger, page, task.Name+"-"+runID)
		return &StepError{Kind: classify(err, true), Err: err}
	}

	total := len(task.Steps)
	for i, action := range task.Steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Kind: KindCancelled, Step: i + 1, Action: action.Type, Err: err}
		}
		logger.Info("Executing step",
			zap.Int("step", i+1),
			zap.Int("total", total),
			zap.String("action", string(action.Type)),
			zap.String("description", action.Label()),
		)
		if err := browser.Execute(ctx, page, action, variables, logger); err != nil {
			r.snapshot(logger, page, task.Name+"-"+runID)
			navigation := action.Type.Normalize() == taskstypes.ActionNavigate
			return &StepError{Kind: classify(err, navigation), Step: i + 1, Action: action.Type, Err: err}
		}
	}

	if task.RequireAuth {
		r.sessions.SaveState(bctx)
	}
	return nil
}

// snapshot is best effort; errors are only logged.
func (r *Runner) snapshot(logger *zap.Logger, page playwright.Page, name string) {
	if r.snapshotDir == "" {
		return
	}
	html, err := page.Content()
	if err != nil {
		logger.Warn("Failed to read page content for snapshot", zap.Error(err))
		return
	}
	path, err := dom.WriteSnapshot(r.snapshotDir, name, html)
	if err != nil {
		logger.Warn("Failed to write DOM snapshot", zap.Error(err))
		return
	}
	logger.Info("DOM snapshot written", zap.String("path", path))
}

// failure reports the elapsed time up to the failure rather than zero.
func failure(taskName, runID string, start time.Time, err *StepError) taskstypes.TaskResult {
	return taskstypes.TaskResult{
		Success:    false,
		TaskName:   taskName,
		Message:    err.Error(),
		DurationMs: time.Since(start).Milliseconds(),
		RunID:      runID,
		ErrorKind:  string(err.Kind),
		FailedStep: err.Step,
	}
}
