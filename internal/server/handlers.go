package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/copyleftdev/taskpilot/internal/tasks"
	"github.com/copyleftdev/taskpilot/internal/taskstore"
	"github.com/copyleftdev/taskpilot/internal/taskstypes"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// TaskSource is the slice of taskstore.Store the API needs.
type TaskSource interface {
	List() ([]*taskstypes.Task, error)
	Get(name string) (*taskstypes.Task, error)
	Save(task *taskstypes.Task) (string, error)
}

// RunService is the slice of tasks.Manager the API needs.
type RunService interface {
	Execute(ctx context.Context, task *taskstypes.Task, overrides map[string]string) taskstypes.TaskResult
	Submit(task *taskstypes.Task, overrides map[string]string, callbackURL string) (*tasks.Run, error)
	Get(id string) (*tasks.Run, error)
}

var (
	_ TaskSource = (*taskstore.Store)(nil)
	_ RunService = (*tasks.Manager)(nil)
)

type APIHandler struct {
	runCtx context.Context
	store  TaskSource
	runs   RunService
	logger *zap.Logger
}

func NewAPIHandler(runCtx context.Context, store TaskSource, runs RunService, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		runCtx: runCtx,
		store:  store,
		runs:   runs,
		logger: logger,
	}
}

type ExecuteRequest struct {
	Variables map[string]string `json:"variables,omitempty"`
}

type SubmitRunRequest struct {
	Variables   map[string]string `json:"variables,omitempty"`
	CallbackURL string            `json:"callbackUrl,omitempty"`
}

type SubmitRunResponse struct {
	RunID  string          `json:"runId"`
	Status tasks.RunStatus `json:"status"`
}

type SaveTaskResponse struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (h *APIHandler) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List()
	if err != nil {
		h.logger.Error("Failed to list tasks", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to list tasks")
		return
	}
	if list == nil {
		list = []*taskstypes.Task{}
	}
	h.respondJSON(w, http.StatusOK, list)
}

func (h *APIHandler) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.lookupTask(w, chi.URLParam(r, "name"))
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, task)
}

func (h *APIHandler) HandleSaveTask(w http.ResponseWriter, r *http.Request) {
	var task taskstypes.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: %v", err)
		return
	}
	defer r.Body.Close()

	path, err := h.store.Save(&task)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "%v", err)
		return
	}
	h.respondJSON(w, http.StatusCreated, SaveTaskResponse{Name: task.Name, Path: path})
}

// HandleExecuteTask runs a stored task and waits for the result. A failed run
// answers 400 with the TaskResult as body.
func (h *APIHandler) HandleExecuteTask(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	task, ok := h.lookupTask(w, chi.URLParam(r, "name"))
	if !ok {
		return
	}
	h.respondResult(w, h.runs.Execute(h.runCtx, task, req.Variables))
}

// HandleExecuteInline runs a task definition from the request body without
// saving it.
func (h *APIHandler) HandleExecuteInline(w http.ResponseWriter, r *http.Request) {
	var task taskstypes.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: %v", err)
		return
	}
	defer r.Body.Close()

	if err := task.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, "%v", err)
		return
	}
	h.respondResult(w, h.runs.Execute(h.runCtx, &task, nil))
}

func (h *APIHandler) HandleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req SubmitRunRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	task, ok := h.lookupTask(w, chi.URLParam(r, "name"))
	if !ok {
		return
	}

	run, err := h.runs.Submit(task, req.Variables, req.CallbackURL)
	switch {
	case errors.Is(err, tasks.ErrInvalidCallback):
		h.respondError(w, http.StatusBadRequest, "%v", err)
		return
	case errors.Is(err, tasks.ErrShuttingDown):
		h.respondError(w, http.StatusServiceUnavailable, "%v", err)
		return
	case err != nil:
		h.logger.Error("Failed to submit run", zap.String("task", task.Name), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to submit run")
		return
	}
	h.respondJSON(w, http.StatusAccepted, SubmitRunResponse{RunID: run.ID.String(), Status: run.Status})
}

func (h *APIHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(chi.URLParam(r, "runID"))
	if errors.Is(err, tasks.ErrRunNotFound) {
		h.respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get run", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}
	h.respondJSON(w, http.StatusOK, run)
}

// --- Helper Functions ---

func (h *APIHandler) lookupTask(w http.ResponseWriter, name string) (*taskstypes.Task, bool) {
	task, err := h.store.Get(name)
	if errors.Is(err, taskstore.ErrTaskNotFound) {
		h.respondError(w, http.StatusNotFound, "Task not found: %s", name)
		return nil, false
	}
	if err != nil {
		h.logger.Error("Failed to load task", zap.String("task", name), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to load task")
		return nil, false
	}
	return task, true
}

// decodeOptional decodes a JSON body into v; an empty body leaves v untouched.
func (h *APIHandler) decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	h.respondError(w, http.StatusBadRequest, "Invalid request body: %v", err)
	return false
}

func (h *APIHandler) respondResult(w http.ResponseWriter, result taskstypes.TaskResult) {
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	h.respondJSON(w, status, result)
}

func (h *APIHandler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Error marshalling JSON response", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to marshal JSON response")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		h.logger.Warn("Error writing JSON response", zap.Error(err))
	}
}

func (h *APIHandler) respondError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	errorMessage := fmt.Sprintf(format, args...)
	jsonResponse, err := json.Marshal(map[string]string{"error": errorMessage})
	if err != nil {
		h.logger.Error("Error marshalling JSON error response", zap.Error(err))
		jsonResponse = []byte(`{"error":"internal error"}`)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(jsonResponse); err != nil {
		h.logger.Warn("Error writing error response", zap.Error(err))
	}
}
