package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/copyleftdev/taskpilot/internal/config"
	"github.com/copyleftdev/taskpilot/internal/mcp"
	"github.com/copyleftdev/taskpilot/internal/taskstypes"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	defaultRunHistory = 500
	callbackTimeout   = 10 * time.Second
)

var (
	ErrShuttingDown    = errors.New("run manager is shutting down")
	ErrInvalidCallback = errors.New("callback url must be an absolute http(s) url")
)

// Manager bounds how many tasks drive the browser at once and keeps a short
// history of runs for status lookups.
type Manager struct {
	runner *Runner
	logger *zap.Logger
	sem    *semaphore.Weighted
	client *http.Client

	mu         sync.RWMutex
	runs       map[uuid.UUID]*Run
	order      []uuid.UUID
	maxHistory int
	closed     bool

	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewManager(cfg *config.Config, runner *Runner, logger *zap.Logger) *Manager {
	limit := int64(cfg.Browser.MaxSessions)
	if limit <= 0 {
		limit = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		runner:     runner,
		logger:     logger.Named("manager"),
		sem:        semaphore.NewWeighted(limit),
		client:     &http.Client{Timeout: callbackTimeout},
		runs:       make(map[uuid.UUID]*Run),
		maxHistory: defaultRunHistory,
		baseCtx:    ctx,
		cancel:     cancel,
	}
}

// Execute runs task synchronously and returns its result. The run is
// recorded and can be looked up afterwards with Get.
func (m *Manager) Execute(ctx context.Context, task *taskstypes.Task, overrides map[string]string) taskstypes.TaskResult {
	run := newRun(task.Name, "")
	m.track(run)
	result := m.execute(ctx, run, task, overrides)
	m.finish(run, result)
	return result
}

// Submit starts task in the background and returns immediately. When
// callbackURL is set the final result is POSTed to it as an MCP message.
func (m *Manager) Submit(task *taskstypes.Task, overrides map[string]string, callbackURL string) (*Run, error) {
	if callbackURL != "" {
		u, err := url.Parse(callbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, ErrInvalidCallback
		}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	run := newRun(task.Name, callbackURL)
	m.trackLocked(run)
	m.wg.Add(1)
	snapshot := run.snapshot()
	m.mu.Unlock()

	m.logger.Info("Run submitted", zap.String("runId", run.ID.String()), zap.String("task", task.Name))

	go func() {
		defer m.wg.Done()
		result := m.execute(m.baseCtx, run, task, overrides)
		final := m.finish(run, result)
		if final.CallbackURL != "" {
			m.notifyCallback(final)
		}
	}()
	return snapshot, nil
}

// Get returns a copy of the run with the given id.
func (m *Manager) Get(id string) (*Run, error) {
	runID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrRunNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run.snapshot(), nil
}

// Shutdown stops accepting submissions and waits for background runs. If ctx
// ends first, in-flight runs are cancelled and ctx's error is returned.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		m.logger.Info("Run manager shut down")
		return nil
	case <-ctx.Done():
		m.cancel()
		m.logger.Warn("Shutdown deadline reached, cancelling in-flight runs")
		return ctx.Err()
	}
}

func (m *Manager) execute(ctx context.Context, run *Run, task *taskstypes.Task, overrides map[string]string) taskstypes.TaskResult {
	start := time.Now()
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return failure(task.Name, run.ID.String(), start, &StepError{Kind: KindCancelled, Err: err})
	}
	defer m.sem.Release(1)

	m.mu.Lock()
	run.updateStatus(StatusRunning)
	m.mu.Unlock()

	return m.runner.run(ctx, run.ID.String(), task, overrides)
}

func (m *Manager) track(run *Run) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackLocked(run)
}

// trackLocked records run and evicts the oldest finished runs beyond the
// history limit. Unfinished runs are never evicted.
func (m *Manager) trackLocked(run *Run) {
	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)

	excess := len(m.order) - m.maxHistory
	if excess <= 0 {
		return
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if excess > 0 && m.runs[id].Terminal() {
			delete(m.runs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

func (m *Manager) finish(run *Run, result taskstypes.TaskResult) *Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.setResult(result)
	return run.snapshot()
}

func (m *Manager) notifyCallback(run *Run) {
	logger := m.logger.With(zap.String("runId", run.ID.String()), zap.String("callback", run.CallbackURL))

	payload, err := mcp.FormatResult(run.ID.String(), *run.Result)
	if err != nil {
		logger.Error("Failed to format callback payload", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, run.CallbackURL, bytes.NewReader(payload))
	if err != nil {
		logger.Error("Failed to create callback request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		logger.Warn("Callback delivery failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("Callback rejected", zap.Error(fmt.Errorf("status %s", resp.Status)))
		return
	}
	logger.Info("Callback delivered", zap.Int("status", resp.StatusCode))
}
