package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/copyleftdev/taskpilot/internal/taskstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseVars(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]string
		wantErr bool
	}{
		{name: "none", in: nil, want: nil},
		{name: "pairs", in: []string{"username=alice", "env=prod"}, want: map[string]string{"username": "alice", "env": "prod"}},
		{name: "value with equals", in: []string{"query=a=b"}, want: map[string]string{"query": "a=b"}},
		{name: "empty value", in: []string{"token="}, want: map[string]string{"token": ""}},
		{name: "later wins", in: []string{"a=1", "a=2"}, want: map[string]string{"a": "2"}},
		{name: "missing equals", in: []string{"username"}, wantErr: true},
		{name: "empty key", in: []string{"=x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVars(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveTask(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "open.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: open\nurl: https://example.com\n"), 0o644))
	store := taskstore.New(dir, zap.NewNop())

	task, err := resolveTask(store, []string{"open"}, "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", task.URL)

	task, err = resolveTask(store, nil, path)
	require.NoError(t, err)
	assert.Equal(t, "open", task.Name)

	_, err = resolveTask(store, []string{"missing"}, "")
	assert.ErrorIs(t, err, taskstore.ErrTaskNotFound)

	_, err = resolveTask(store, nil, "")
	assert.Error(t, err)

	_, err = resolveTask(store, []string{"open"}, path)
	assert.Error(t, err)
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "run", "list", "login"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}
