package taskstypes

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTimeoutMs is applied to any action that does not declare a timeout.
const DefaultTimeoutMs int64 = 30000

// DefaultScreenshotPath is used by screenshot actions without a value.
const DefaultScreenshotPath = "screenshot.png"

// Action type constants
type ActionType string

const (
	ActionNavigate    ActionType = "navigate"
	ActionClick       ActionType = "click"
	ActionFill        ActionType = "fill"
	ActionTypeText    ActionType = "type"
	ActionWaitVisible ActionType = "wait_visible"
	ActionWait        ActionType = "wait" // alias of wait_visible
	ActionWaitHidden  ActionType = "wait_hidden"
	ActionSelect      ActionType = "select"
	ActionCheck       ActionType = "check"
	ActionUncheck     ActionType = "uncheck"
	ActionScreenshot  ActionType = "screenshot"
	ActionSleep       ActionType = "sleep"
)

// Normalize lower-cases the kind for matching.
func (t ActionType) Normalize() ActionType {
	return ActionType(strings.ToLower(strings.TrimSpace(string(t))))
}

// Known reports whether t (after normalization) is part of the action vocabulary.
func (t ActionType) Known() bool {
	_, ok := requirements[t.Normalize()]
	return ok
}

// requirement lists which fields an action kind needs.
type requirement struct {
	selector bool
	value    bool
}

var requirements = map[ActionType]requirement{
	ActionNavigate:    {value: true},
	ActionClick:       {selector: true},
	ActionFill:        {selector: true, value: true},
	ActionTypeText:    {selector: true, value: true},
	ActionWaitVisible: {selector: true},
	ActionWait:        {selector: true},
	ActionWaitHidden:  {selector: true},
	ActionSelect:      {selector: true, value: true},
	ActionCheck:       {selector: true},
	ActionUncheck:     {selector: true},
	ActionScreenshot:  {},
	ActionSleep:       {},
}

// Action represents one declarative browser operation.
type Action struct {
	Type        ActionType `json:"action" yaml:"action"`
	Selector    string     `json:"selector,omitempty" yaml:"selector,omitempty"`
	Value       string     `json:"value,omitempty" yaml:"value,omitempty"`
	TimeoutMs   int64      `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// Timeout returns the action timeout, falling back to DefaultTimeoutMs.
func (a Action) Timeout() time.Duration {
	if a.TimeoutMs <= 0 {
		return time.Duration(DefaultTimeoutMs) * time.Millisecond
	}
	return time.Duration(a.TimeoutMs) * time.Millisecond
}

// TimeoutMillis is Timeout in the float milliseconds playwright expects.
func (a Action) TimeoutMillis() float64 {
	return float64(a.Timeout().Milliseconds())
}

// Label is what run logs show for a step: its description, else its selector.
func (a Action) Label() string {
	if a.Description != "" {
		return a.Description
	}
	return a.Selector
}

// Validate checks the per-kind selector/value requirements. Unknown kinds are
// accepted here; they are skipped with a warning at run time.
func (a Action) Validate() error {
	req, ok := requirements[a.Type.Normalize()]
	if !ok {
		return nil
	}
	if req.selector && a.Selector == "" {
		return fmt.Errorf("%s action requires a selector", a.Type)
	}
	if req.value && a.Value == "" {
		return fmt.Errorf("%s action requires a value", a.Type)
	}
	if a.TimeoutMs < 0 {
		return fmt.Errorf("%s action has negative timeout %d", a.Type, a.TimeoutMs)
	}
	return nil
}

// Task is a named automation unit: a URL, default variables and ordered steps.
type Task struct {
	Name        string            `json:"name" yaml:"name"`
	URL         string            `json:"url" yaml:"url"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	RequireAuth bool              `json:"requireAuth" yaml:"requireAuth"`
	Variables   map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
	Steps       []Action          `json:"steps" yaml:"steps"`
}

// NewTask returns a Task with the declared defaults applied.
func NewTask(name, url string, steps ...Action) *Task {
	return &Task{
		Name:        name,
		URL:         url,
		RequireAuth: true,
		Steps:       steps,
	}
}

// Validate is meant for load boundaries (task files, HTTP bodies).
func (t *Task) Validate() error {
	var errs []error
	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, errors.New("task name is required"))
	}
	if strings.TrimSpace(t.URL) == "" {
		errs = append(errs, errors.New("task url is required"))
	}
	for i, step := range t.Steps {
		if err := step.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

// taskFields avoids recursion in the custom decoders below.
type taskFields Task

// UnmarshalYAML applies requireAuth=true and the default step timeout before
// decoding so absent fields keep their defaults.
func (t *Task) UnmarshalYAML(node *yaml.Node) error {
	fields := taskFields{RequireAuth: true}
	if err := node.Decode(&fields); err != nil {
		return err
	}
	*t = Task(fields)
	t.applyStepDefaults()
	return nil
}

func (t *Task) UnmarshalJSON(data []byte) error {
	fields := taskFields{RequireAuth: true}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*t = Task(fields)
	t.applyStepDefaults()
	return nil
}

func (t *Task) applyStepDefaults() {
	for i := range t.Steps {
		if t.Steps[i].TimeoutMs == 0 {
			t.Steps[i].TimeoutMs = DefaultTimeoutMs
		}
	}
}

// TaskResult is the outcome of one task execution.
type TaskResult struct {
	Success    bool   `json:"success"`
	TaskName   string `json:"taskName"`
	Message    string `json:"message"`
	DurationMs int64  `json:"durationMs"`
	RunID      string `json:"runId,omitempty"`
	ErrorKind  string `json:"errorKind,omitempty"`
	FailedStep int    `json:"failedStep,omitempty"`
}

// Duration is DurationMs as a time.Duration.
func (r TaskResult) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}
