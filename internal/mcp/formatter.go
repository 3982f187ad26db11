package mcp

import (
	"encoding/json"

	"github.com/copyleftdev/taskpilot/internal/taskstypes"
)

// SourceURI names the task a message is about.
func SourceURI(taskName string) string {
	return "taskpilot://tasks/" + taskName
}

// FormatResult wraps a finished run's result for delivery to a callback URL.
func FormatResult(runID string, result taskstypes.TaskResult) ([]byte, error) {
	status := "completed"
	if !result.Success {
		status = "failed"
	}

	msg := newMessage(runID, result.TaskName)
	msg.Context.Metadata.Custom = map[string]interface{}{"status": status}
	msg.Context.Content = Content{MIMEType: "application/json", Data: result}
	return json.Marshal(msg)
}
