package observability

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/copyleftdev/taskpilot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func TestNewLogger_Level(t *testing.T) {
	logger := NewLogger(config.LogConfig{Level: "warn", Format: "console"})
	require.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
}

func TestNewLogger_BadLevelFallsBackToInfo(t *testing.T) {
	logger := NewLogger(config.LogConfig{Level: "chatty"})
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewLogger_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "taskpilot.log")
	logger := NewLogger(config.LogConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1})

	logger.Info("run finished", zap.String("task", "login-check"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"task":"login-check"`)
	assert.Contains(t, string(data), `"level":"INFO"`)
}

func TestSyncFailures_IgnoresTerminalErrors(t *testing.T) {
	stderrErr := &fs.PathError{Op: "sync", Path: "/dev/stderr", Err: syscall.EINVAL}
	ttyErr := &fs.PathError{Op: "sync", Path: "/dev/stdout", Err: syscall.ENOTTY}
	diskErr := errors.New("disk full")

	assert.Empty(t, syncFailures(nil))
	assert.Empty(t, syncFailures(stderrErr))
	assert.Empty(t, syncFailures(multierr.Combine(stderrErr, ttyErr)))
	assert.Equal(t, []error{diskErr}, syncFailures(multierr.Combine(stderrErr, diskErr)))
}
