package mcp

import (
	"time"
)

const MCPVersion = "2025-03-26"

const agentID = "taskpilot-runner"

// Message is the envelope POSTed to a run's callback URL. TaskID carries the
// run id.
type Message struct {
	MCPVersion string   `json:"mcp_version"`
	TaskID     string   `json:"task_id"`
	Context    Envelope `json:"context"`
}

type Envelope struct {
	Metadata Metadata `json:"metadata"`
	Actors   []Actor  `json:"actors"`
	Content  Content  `json:"content"`
}

// Metadata.Custom holds the run status ("completed" or "failed").
type Metadata struct {
	SourceURI string                 `json:"source_uri"`
	Timestamp time.Time              `json:"timestamp"`
	Custom    map[string]interface{} `json:"custom,omitempty"`
}

type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type Content struct {
	MIMEType string      `json:"mime_type"`
	Data     interface{} `json:"data"`
}

func newMessage(runID, taskName string) Message {
	return Message{
		MCPVersion: MCPVersion,
		TaskID:     runID,
		Context: Envelope{
			Metadata: Metadata{
				SourceURI: SourceURI(taskName),
				Timestamp: time.Now().UTC(),
			},
			Actors: []Actor{{ID: agentID, Role: "browser_automation_tool"}},
		},
	}
}
