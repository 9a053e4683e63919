package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/usecase"
)

type TaskHandler struct {
	taskService *usecase.TaskService
	logger      *zap.Logger
}

func NewTaskHandler(taskService *usecase.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{taskService: taskService, logger: logger}
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req entity.CreateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), &req, ActorFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r)
	if !ok {
		badRequest(w, "invalid task id")
		return
	}

	task, err := h.taskService.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	shotID, ok := queryUUID(r, "shotId")
	if !ok || shotID == nil {
		badRequest(w, "shotId query parameter is required")
		return
	}

	tasks, err := h.taskService.ListTasks(r.Context(), *shotID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r)
	if !ok {
		badRequest(w, "invalid task id")
		return
	}

	var patch entity.TaskPatch
	if err := decodeJSON(r, &patch); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	task, err := h.taskService.UpdateTask(r.Context(), id, patch, ActorFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r)
	if !ok {
		badRequest(w, "invalid task id")
		return
	}

	if err := h.taskService.DeleteTask(r.Context(), id, ActorFrom(r)); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
