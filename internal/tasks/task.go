package tasks

import (
	"time"

	"github.com/copyleftdev/taskpilot/internal/taskstypes"
	"github.com/google/uuid"
)

type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Run tracks one execution of a task submitted to the Manager.
type Run struct {
	ID          uuid.UUID              `json:"id"`
	TaskName    string                 `json:"taskName"`
	Status      RunStatus              `json:"status"`
	Result      *taskstypes.TaskResult `json:"result,omitempty"`
	CallbackURL string                 `json:"callbackUrl,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

func newRun(taskName, callbackURL string) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:          uuid.New(),
		TaskName:    taskName,
		Status:      StatusPending,
		CallbackURL: callbackURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Terminal reports whether the run has finished.
func (r *Run) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// The methods below must be called with the Manager's lock held.

func (r *Run) updateStatus(status RunStatus) {
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
}

func (r *Run) setResult(result taskstypes.TaskResult) {
	r.Result = &result
	if result.Success {
		r.updateStatus(StatusCompleted)
	} else {
		r.updateStatus(StatusFailed)
	}
}

func (r *Run) snapshot() *Run {
	c := *r
	if r.Result != nil {
		res := *r.Result
		c.Result = &res
	}
	return &c
}
