// Package mocks provides in-memory stand-ins for the playwright Browser,
// BrowserContext and Page interfaces. Each fake embeds the interface it
// replaces, so only the methods taskpilot calls are implemented; calling any
// other method panics on the nil embedded value.
package mocks

import (
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Call records one browser primitive invoked on a FakePage.
type Call struct {
	Method    string
	Selector  string
	Value     string
	TimeoutMs float64
	State     string
}

// TimeoutError builds an error shaped like the ones playwright returns when a
// locator times out.
func TimeoutError(selector string, timeoutMs int) error {
	return fmt.Errorf("%w: Timeout %dms exceeded while waiting for locator(%q)", playwright.ErrTimeout, timeoutMs, selector)
}

type FakePage struct {
	playwright.Page

	mu sync.Mutex
	// Errors keyed by selector (or by URL for Goto) are returned by the
	// matching call.
	Errors  map[string]error
	HTML    string
	calls   []Call
	closed  int
	current string
}

func NewFakePage() *FakePage {
	return &FakePage{Errors: make(map[string]error)}
}

func (p *FakePage) record(c Call) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, c)
	key := c.Selector
	if c.Method == "Goto" {
		key = c.Value
	}
	return p.Errors[key]
}

// Calls returns a copy of the recorded calls.
func (p *FakePage) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// CloseCount reports how many times Close was called.
func (p *FakePage) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func timeoutOf(t *float64) float64 {
	if t == nil {
		return 0
	}
	return *t
}

func (p *FakePage) Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error) {
	if err := p.record(Call{Method: "Goto", Value: url}); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.current = url
	p.mu.Unlock()
	return nil, nil
}

func (p *FakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *FakePage) Click(selector string, options ...playwright.PageClickOptions) error {
	c := Call{Method: "Click", Selector: selector}
	if len(options) > 0 {
		c.TimeoutMs = timeoutOf(options[0].Timeout)
	}
	return p.record(c)
}

func (p *FakePage) Fill(selector, value string, options ...playwright.PageFillOptions) error {
	c := Call{Method: "Fill", Selector: selector, Value: value}
	if len(options) > 0 {
		c.TimeoutMs = timeoutOf(options[0].Timeout)
	}
	return p.record(c)
}

func (p *FakePage) Type(selector, text string, options ...playwright.PageTypeOptions) error {
	c := Call{Method: "Type", Selector: selector, Value: text}
	if len(options) > 0 {
		c.TimeoutMs = timeoutOf(options[0].Timeout)
	}
	return p.record(c)
}

func (p *FakePage) WaitForSelector(selector string, options ...playwright.PageWaitForSelectorOptions) (playwright.ElementHandle, error) {
	c := Call{Method: "WaitForSelector", Selector: selector}
	if len(options) > 0 {
		c.TimeoutMs = timeoutOf(options[0].Timeout)
		if options[0].State != nil {
			c.State = string(*options[0].State)
		}
	}
	return nil, p.record(c)
}

func (p *FakePage) Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error) {
	c := Call{Method: "Screenshot"}
	if len(options) > 0 && options[0].Path != nil {
		c.Value = *options[0].Path
	}
	return []byte{}, p.record(c)
}

func (p *FakePage) SelectOption(selector string, values playwright.SelectOptionValues, options ...playwright.PageSelectOptionOptions) ([]string, error) {
	c := Call{Method: "SelectOption", Selector: selector}
	if values.Values != nil && len(*values.Values) > 0 {
		c.Value = (*values.Values)[0]
	}
	if len(options) > 0 {
		c.TimeoutMs = timeoutOf(options[0].Timeout)
	}
	if err := p.record(c); err != nil {
		return nil, err
	}
	return []string{c.Value}, nil
}

func (p *FakePage) Check(selector string, options ...playwright.PageCheckOptions) error {
	c := Call{Method: "Check", Selector: selector}
	if len(options) > 0 {
		c.TimeoutMs = timeoutOf(options[0].Timeout)
	}
	return p.record(c)
}

func (p *FakePage) Uncheck(selector string, options ...playwright.PageUncheckOptions) error {
	c := Call{Method: "Uncheck", Selector: selector}
	if len(options) > 0 {
		c.TimeoutMs = timeoutOf(options[0].Timeout)
	}
	return p.record(c)
}

func (p *FakePage) Content() (string, error) {
	return p.HTML, nil
}

func (p *FakePage) Close(options ...playwright.PageCloseOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

type FakeContext struct {
	playwright.BrowserContext

	mu sync.Mutex
	// Page is handed out by NewPage; a fresh FakePage is created when nil.
	Page         *FakePage
	NewPageErr   error
	StorageErr   error
	StoragePaths []string
	closed       int
}

func NewFakeContext() *FakeContext {
	return &FakeContext{Page: NewFakePage()}
}

func (c *FakeContext) NewPage() (playwright.Page, error) {
	if c.NewPageErr != nil {
		return nil, c.NewPageErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Page == nil {
		c.Page = NewFakePage()
	}
	return c.Page, nil
}

func (c *FakeContext) StorageState(path ...string) (*playwright.StorageState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StoragePaths = append(c.StoragePaths, path...)
	if c.StorageErr != nil {
		return nil, c.StorageErr
	}
	return &playwright.StorageState{}, nil
}

func (c *FakeContext) Close(options ...playwright.BrowserContextCloseOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

// CloseCount reports how many times Close was called.
func (c *FakeContext) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type FakeBrowser struct {
	playwright.Browser

	mu           sync.Mutex
	Connected    bool
	ContextOpts  []playwright.BrowserNewContextOptions
	NewContextFn func() (playwright.BrowserContext, error)
	closed       int
}

func NewFakeBrowser() *FakeBrowser {
	return &FakeBrowser{Connected: true}
}

func (b *FakeBrowser) NewContext(options ...playwright.BrowserNewContextOptions) (playwright.BrowserContext, error) {
	b.mu.Lock()
	if len(options) > 0 {
		b.ContextOpts = append(b.ContextOpts, options[0])
	} else {
		b.ContextOpts = append(b.ContextOpts, playwright.BrowserNewContextOptions{})
	}
	fn := b.NewContextFn
	b.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return NewFakeContext(), nil
}

func (b *FakeBrowser) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Connected
}

func (b *FakeBrowser) Close(options ...playwright.BrowserCloseOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	b.Connected = false
	return nil
}

// CloseCount reports how many times Close was called.
func (b *FakeBrowser) CloseCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
