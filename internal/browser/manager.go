package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/copyleftdev/taskpilot/internal/config"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// ErrNotStarted is returned when a browser is requested before Start.
var ErrNotStarted = errors.New("browser manager not started")

var errCorruptState = errors.New("session state is not valid JSON")

// Manager owns the playwright driver and one cached browser shared by every
// run. Each run gets its own BrowserContext, so cookies and storage never leak
// between concurrent runs.
type Manager struct {
	cfg         config.BrowserConfig
	storagePath string
	logger      *zap.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser

	// launch is swapped out in tests.
	launch func() (playwright.Browser, error)
}

func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:         cfg.Browser,
		storagePath: cfg.Auth.StoragePath,
		logger:      logger.Named("browser"),
	}
	m.launch = m.launchBrowser
	return m
}

// Start boots the playwright driver, installing it first when configured to.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pw != nil {
		return nil
	}

	opts := &playwright.RunOptions{
		Browsers: []string{m.cfg.Type},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if m.cfg.InstallDriver {
		m.logger.Info("Installing playwright driver", zap.String("browser", m.cfg.Type))
		if err := playwright.Install(opts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}
	m.pw = pw
	m.logger.Info("Playwright started")
	return nil
}

// Browser returns the cached browser, relaunching it when it was never
// started or has disconnected.
func (m *Manager) Browser() (playwright.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil && m.browser.IsConnected() {
		return m.browser, nil
	}
	if m.browser != nil {
		m.logger.Warn("Cached browser disconnected, relaunching")
	}

	b, err := m.launch()
	if err != nil {
		return nil, err
	}
	m.browser = b
	return b, nil
}

func (m *Manager) launchBrowser() (playwright.Browser, error) {
	if m.pw == nil {
		return nil, ErrNotStarted
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.cfg.Headless),
		SlowMo:   playwright.Float(float64(m.cfg.SlowMo)),
		Args:     []string{"--start-maximized"},
	}

	var browserType playwright.BrowserType
	switch m.cfg.Type {
	case config.BrowserFirefox:
		browserType = m.pw.Firefox
	case config.BrowserWebKit:
		browserType = m.pw.WebKit
	default:
		browserType = m.pw.Chromium
	}

	m.logger.Info("Launching browser",
		zap.String("type", m.cfg.Type),
		zap.Bool("headless", m.cfg.Headless),
		zap.Int("slowMoMs", m.cfg.SlowMo),
	)
	b, err := browserType.Launch(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", m.cfg.Type, err)
	}
	return b, nil
}

// NewContext creates an isolated context, seeded from the session-state file
// when one exists. The viewport is left unset so pages use the maximized
// window size.
func (m *Manager) NewContext() (playwright.BrowserContext, error) {
	b, err := m.Browser()
	if err != nil {
		return nil, err
	}

	opts := playwright.BrowserNewContextOptions{
		NoViewport: playwright.Bool(true),
	}
	if m.hasSavedState() {
		m.logger.Info("Loading session state", zap.String("path", m.storagePath))
		opts.StorageStatePath = playwright.String(m.storagePath)
	}
	return b.NewContext(opts)
}

// hasSavedState reports whether the state file holds a usable session. A file
// that cannot be read or is not valid JSON is logged and treated as no prior
// session.
func (m *Manager) hasSavedState() bool {
	info, err := os.Stat(m.storagePath)
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	if err == nil && info.IsDir() {
		m.logger.Warn("Session state path is a directory, starting fresh", zap.String("path", m.storagePath))
		return false
	}
	if err == nil {
		var data []byte
		data, err = os.ReadFile(m.storagePath)
		if err == nil && !json.Valid(data) {
			err = errCorruptState
		}
	}
	if err != nil {
		m.logger.Warn("Session state unreadable, starting fresh", zap.String("path", m.storagePath), zap.Error(err))
		return false
	}
	return true
}

// NewPage opens a page in ctx.
func (m *Manager) NewPage(ctx playwright.BrowserContext) (playwright.Page, error) {
	return ctx.NewPage()
}

// OpenPage creates a transient context and opens a page in it. Closing the
// returned context is the caller's job.
func (m *Manager) OpenPage() (playwright.BrowserContext, playwright.Page, error) {
	ctx, err := m.NewContext()
	if err != nil {
		return nil, nil, err
	}
	page, err := ctx.NewPage()
	if err != nil {
		_ = ctx.Close()
		return nil, nil, err
	}
	return ctx, page, nil
}

// SaveState writes the context's cookies and storage to the configured path.
// Failures are logged and swallowed: a run never fails because of them.
func (m *Manager) SaveState(ctx playwright.BrowserContext) {
	if err := m.saveState(ctx); err != nil {
		m.logger.Error("Failed to save session state", zap.String("path", m.storagePath), zap.Error(err))
		return
	}
	m.logger.Info("Session state saved", zap.String("path", m.storagePath))
}

func (m *Manager) saveState(ctx playwright.BrowserContext) error {
	if dir := filepath.Dir(m.storagePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
	}
	if _, err := ctx.StorageState(m.storagePath); err != nil {
		return err
	}
	return nil
}

// StoragePath is the session-state file this manager reads and writes.
func (m *Manager) StoragePath() string {
	return m.storagePath
}

// Shutdown closes the browser and then the driver. Safe to call repeatedly.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Shutting down browser manager...")
	var errs []error
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		m.browser = nil
	}
	if m.pw != nil {
		if err := m.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
		m.pw = nil
	}
	m.logger.Info("Browser manager shutdown complete.")
	return errors.Join(errs...)
}
