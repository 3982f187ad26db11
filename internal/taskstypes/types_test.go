package taskstypes

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestTaskYAMLDefaults(t *testing.T) {
	doc := `
name: login-check
url: https://example.com/${path}
variables:
  path: login
steps:
  - action: fill
    selector: "#user"
    value: ${username}
  - action: click
    selector: "#submit"
    timeout: 5000
`
	var task Task
	require.NoError(t, yaml.Unmarshal([]byte(doc), &task))

	assert.Equal(t, "login-check", task.Name)
	assert.True(t, task.RequireAuth, "requireAuth defaults to true")
	assert.Equal(t, map[string]string{"path": "login"}, task.Variables)
	require.Len(t, task.Steps, 2)
	assert.Equal(t, ActionFill, task.Steps[0].Type)
	assert.Equal(t, "${username}", task.Steps[0].Value)
	assert.Equal(t, DefaultTimeoutMs, task.Steps[0].TimeoutMs)
	assert.Equal(t, int64(5000), task.Steps[1].TimeoutMs)
	assert.NoError(t, task.Validate())
}

func TestTaskYAMLExplicitRequireAuthFalse(t *testing.T) {
	var task Task
	require.NoError(t, yaml.Unmarshal([]byte("name: a\nurl: https://a\nrequireAuth: false\n"), &task))
	assert.False(t, task.RequireAuth)
	assert.Empty(t, task.Steps)
	assert.NoError(t, task.Validate(), "a task without steps is valid")
}

func TestTaskJSONDefaults(t *testing.T) {
	var task Task
	err := json.Unmarshal([]byte(`{"name":"a","url":"https://a","steps":[{"action":"sleep"}]}`), &task)
	require.NoError(t, err)

	assert.True(t, task.RequireAuth)
	assert.Equal(t, DefaultTimeoutMs, task.Steps[0].TimeoutMs)
}

func TestActionValidate(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr bool
	}{
		{"fill ok", Action{Type: ActionFill, Selector: "#u", Value: "x"}, false},
		{"fill missing value", Action{Type: ActionFill, Selector: "#u"}, true},
		{"fill missing selector", Action{Type: ActionFill, Value: "x"}, true},
		{"click ok", Action{Type: ActionClick, Selector: "#b"}, false},
		{"click missing selector", Action{Type: ActionClick}, true},
		{"navigate needs value", Action{Type: ActionNavigate}, true},
		{"sleep needs nothing", Action{Type: ActionSleep, TimeoutMs: 10}, false},
		{"screenshot needs nothing", Action{Type: ActionScreenshot}, false},
		{"upper-case kind", Action{Type: "CLICK"}, true},
		{"unknown kind passes", Action{Type: "hover"}, false},
		{"negative timeout", Action{Type: ActionSleep, TimeoutMs: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTaskValidate_CollectsErrors(t *testing.T) {
	task := Task{Steps: []Action{{Type: ActionClick}}}
	err := task.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "url is required")
	assert.Contains(t, err.Error(), "step 1")
}

func TestActionTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, Action{}.Timeout())
	assert.Equal(t, 50*time.Millisecond, Action{TimeoutMs: 50}.Timeout())
	assert.Equal(t, float64(50), Action{TimeoutMs: 50}.TimeoutMillis())
}

func TestActionTypeKnown(t *testing.T) {
	assert.True(t, ActionType("Wait_Visible").Known())
	assert.True(t, ActionWait.Known())
	assert.False(t, ActionType("hover").Known())
	assert.Equal(t, ActionClick, ActionType(" Click ").Normalize())
}

func TestActionLabel(t *testing.T) {
	assert.Equal(t, "submit form", Action{Selector: "#b", Description: "submit form"}.Label())
	assert.Equal(t, "#b", Action{Selector: "#b"}.Label())
}

func TestNewTask(t *testing.T) {
	task := NewTask("n", "https://n", Action{Type: ActionClick, Selector: "#x"})
	assert.True(t, task.RequireAuth)
	assert.Len(t, task.Steps, 1)
}
