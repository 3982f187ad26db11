package tasks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/copyleftdev/taskpilot/internal/config"
	"github.com/copyleftdev/taskpilot/internal/taskstypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T, maxSessions int) (*Manager, *fixture) {
	t.Helper()
	f := newFixture()
	cfg := &config.Config{Browser: config.BrowserConfig{MaxSessions: maxSessions}}
	m := NewManager(cfg, f.runner(), zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m, f
}

func simpleTask(steps ...taskstypes.Action) *taskstypes.Task {
	return &taskstypes.Task{Name: "simple", URL: "https://example.com", Steps: steps}
}

func TestManager_ExecuteRecordsRun(t *testing.T) {
	m, _ := newTestManager(t, 2)

	result := m.Execute(context.Background(), simpleTask(taskstypes.Action{Type: taskstypes.ActionClick, Selector: "#a"}), nil)
	require.True(t, result.Success)

	run, err := m.Get(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, "simple", run.TaskName)
	require.NotNil(t, run.Result)
	assert.Equal(t, result, *run.Result)
}

func TestManager_ExecuteFailureMarksRunFailed(t *testing.T) {
	m, f := newTestManager(t, 1)
	f.page.Errors["#gone"] = assert.AnError

	result := m.Execute(context.Background(), simpleTask(taskstypes.Action{Type: taskstypes.ActionClick, Selector: "#gone"}), nil)
	require.False(t, result.Success)

	run, err := m.Get(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
}

func TestManager_GetUnknownRun(t *testing.T) {
	m, _ := newTestManager(t, 1)

	_, err := m.Get("not-a-uuid")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = m.Get("6b1f8a0e-8d38-4a5b-9a55-0c1f3c1d9e11")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestManager_ExecuteWaitsForFreeSession(t *testing.T) {
	m, _ := newTestManager(t, 1)
	require.NoError(t, m.sem.Acquire(context.Background(), 1))
	defer m.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := m.Execute(ctx, simpleTask(), nil)

	assert.False(t, result.Success)
	assert.Equal(t, string(KindCancelled), result.ErrorKind)
	assert.NotEmpty(t, result.RunID)
}

func TestManager_SubmitDeliversCallback(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m, _ := newTestManager(t, 1)

	run, err := m.Submit(simpleTask(), nil, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "simple", run.TaskName)
	assert.Equal(t, srv.URL, run.CallbackURL)

	var body []byte
	select {
	case body = <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("callback not delivered")
	}

	var msg struct {
		TaskID  string `json:"task_id"`
		Context struct {
			Content struct {
				Data taskstypes.TaskResult `json:"data"`
			} `json:"content"`
		} `json:"context"`
	}
	require.NoError(t, json.Unmarshal(body, &msg))
	assert.Equal(t, run.ID.String(), msg.TaskID)
	assert.True(t, msg.Context.Content.Data.Success)
	assert.Equal(t, run.ID.String(), msg.Context.Content.Data.RunID)

	final, err := m.Get(run.ID.String())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
}

func TestManager_SubmitRejectsBadCallback(t *testing.T) {
	m, _ := newTestManager(t, 1)

	for _, cb := range []string{"ftp://example.com/hook", "/relative", "http://"} {
		_, err := m.Submit(simpleTask(), nil, cb)
		assert.ErrorIs(t, err, ErrInvalidCallback, cb)
	}
}

func TestManager_ShutdownWaitsForRuns(t *testing.T) {
	m, _ := newTestManager(t, 1)

	run, err := m.Submit(simpleTask(taskstypes.Action{Type: taskstypes.ActionSleep, TimeoutMs: 50}), nil, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	final, err := m.Get(run.ID.String())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)

	_, err = m.Submit(simpleTask(), nil, "")
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestManager_ShutdownDeadlineCancelsRuns(t *testing.T) {
	m, _ := newTestManager(t, 1)

	run, err := m.Submit(simpleTask(taskstypes.Action{Type: taskstypes.ActionSleep, TimeoutMs: 60000}), nil, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Shutdown(ctx), context.DeadlineExceeded)

	require.Eventually(t, func() bool {
		r, err := m.Get(run.ID.String())
		return err == nil && r.Status == StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	final, _ := m.Get(run.ID.String())
	assert.Equal(t, string(KindCancelled), final.Result.ErrorKind)
}

func TestManager_HistoryEvictsOldestFinished(t *testing.T) {
	m, _ := newTestManager(t, 1)
	m.maxHistory = 2

	first := m.Execute(context.Background(), simpleTask(), nil)
	second := m.Execute(context.Background(), simpleTask(), nil)
	third := m.Execute(context.Background(), simpleTask(), nil)

	_, err := m.Get(first.RunID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	for _, id := range []string{second.RunID, third.RunID} {
		_, err := m.Get(id)
		assert.NoError(t, err)
	}
}
