package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/copyleftdev/taskpilot/internal/taskstypes"
	"github.com/playwright-community/playwright-go"
)

// ErrorKind classifies why a run failed. Only fatal failures get a kind;
// swallowed conditions (unknown actions, state-save errors) never reach a
// TaskResult.
type ErrorKind string

const (
	KindNavigation ErrorKind = "navigation_failure"
	KindTimeout    ErrorKind = "action_timeout"
	KindAction     ErrorKind = "action_failure"
	KindSession    ErrorKind = "session_failure"
	KindCancelled  ErrorKind = "cancelled"
	KindInternal   ErrorKind = "internal"
)

var ErrRunNotFound = errors.New("run not found")

// StepError carries the failure kind and the 1-based step index alongside
// the engine error. Step is 0 for failures outside the step loop.
type StepError struct {
	Kind   ErrorKind
	Step   int
	Action taskstypes.ActionType
	Err    error
}

// Error is the engine's own message so TaskResult.Message shows it verbatim.
func (e *StepError) Error() string {
	return e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func (e *StepError) describe() string {
	if e.Step == 0 {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s at step %d (%s)", e.Kind, e.Step, e.Action)
}

func classify(err error, navigation bool) ErrorKind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case navigation:
		return KindNavigation
	case errors.Is(err, playwright.ErrTimeout):
		return KindTimeout
	default:
		return KindAction
	}
}
