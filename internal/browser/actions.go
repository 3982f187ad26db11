package browser

import (
	"context"
	"time"

	"github.com/copyleftdev/taskpilot/internal/taskstypes"
	"github.com/copyleftdev/taskpilot/internal/vars"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// step is one action with its selector and value already interpolated.
type step struct {
	selector string
	value    string
	timeout  float64 // milliseconds
	sleep    time.Duration
}

type handler func(ctx context.Context, page playwright.Page, s step) error

// handlers is the whole action vocabulary. Adding a kind means adding a row.
var handlers = map[taskstypes.ActionType]handler{
	taskstypes.ActionClick:       click,
	taskstypes.ActionFill:        fill,
	taskstypes.ActionTypeText:    typeText,
	taskstypes.ActionWaitVisible: waitVisible,
	taskstypes.ActionWait:        waitVisible,
	taskstypes.ActionWaitHidden:  waitHidden,
	taskstypes.ActionNavigate:    navigate,
	taskstypes.ActionScreenshot:  screenshot,
	taskstypes.ActionSleep:       sleep,
	taskstypes.ActionSelect:      selectOption,
	taskstypes.ActionCheck:       check,
	taskstypes.ActionUncheck:     uncheck,
}

// Execute performs one action against page. Selector and value are
// interpolated with vars first. Errors from playwright are returned untouched;
// an unknown action kind is logged and skipped.
func Execute(ctx context.Context, page playwright.Page, action taskstypes.Action, variables map[string]string, logger *zap.Logger) error {
	kind := action.Type.Normalize()
	h, ok := handlers[kind]
	if !ok {
		logger.Warn("Unknown action type, skipping", zap.String("action", string(action.Type)))
		return nil
	}

	return h(ctx, page, step{
		selector: vars.Interpolate(action.Selector, variables),
		value:    vars.Interpolate(action.Value, variables),
		timeout:  action.TimeoutMillis(),
		sleep:    action.Timeout(),
	})
}

func click(_ context.Context, page playwright.Page, s step) error {
	return page.Click(s.selector, playwright.PageClickOptions{Timeout: playwright.Float(s.timeout)})
}

func fill(_ context.Context, page playwright.Page, s step) error {
	return page.Fill(s.selector, s.value, playwright.PageFillOptions{Timeout: playwright.Float(s.timeout)})
}

func typeText(_ context.Context, page playwright.Page, s step) error {
	return page.Type(s.selector, s.value, playwright.PageTypeOptions{Timeout: playwright.Float(s.timeout)})
}

func waitVisible(_ context.Context, page playwright.Page, s step) error {
	_, err := page.WaitForSelector(s.selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(s.timeout),
	})
	return err
}

func waitHidden(_ context.Context, page playwright.Page, s step) error {
	_, err := page.WaitForSelector(s.selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateHidden,
		Timeout: playwright.Float(s.timeout),
	})
	return err
}

func navigate(_ context.Context, page playwright.Page, s step) error {
	_, err := page.Goto(s.value)
	return err
}

func screenshot(_ context.Context, page playwright.Page, s step) error {
	path := s.value
	if path == "" {
		path = taskstypes.DefaultScreenshotPath
	}
	_, err := page.Screenshot(playwright.PageScreenshotOptions{Path: playwright.String(path)})
	return err
}

// sleep only ends early when the process-level context is cancelled.
func sleep(ctx context.Context, _ playwright.Page, s step) error {
	timer := time.NewTimer(s.sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func selectOption(_ context.Context, page playwright.Page, s step) error {
	_, err := page.SelectOption(s.selector, playwright.SelectOptionValues{
		Values: &[]string{s.value},
	}, playwright.PageSelectOptionOptions{Timeout: playwright.Float(s.timeout)})
	return err
}

func check(_ context.Context, page playwright.Page, s step) error {
	return page.Check(s.selector, playwright.PageCheckOptions{Timeout: playwright.Float(s.timeout)})
}

func uncheck(_ context.Context, page playwright.Page, s step) error {
	return page.Uncheck(s.selector, playwright.PageUncheckOptions{Timeout: playwright.Float(s.timeout)})
}
