package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/usecase"
)

type FeedbackHandler struct {
	feedbackService *usecase.FeedbackService
	logger          *zap.Logger
}

func NewFeedbackHandler(feedbackService *usecase.FeedbackService, logger *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService, logger: logger}
}

func (h *FeedbackHandler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	var req entity.CreateFeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	fb, err := h.feedbackService.CreateFeedback(r.Context(), &req, ActorFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}

func (h *FeedbackHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	taskID, ok := queryUUID(r, "taskId")
	if !ok || taskID == nil {
		badRequest(w, "taskId query parameter is required")
		return
	}

	items, err := h.feedbackService.ListFeedback(r.Context(), *taskID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *FeedbackHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r)
	if !ok {
		badRequest(w, "invalid feedback id")
		return
	}

	fb, err := h.feedbackService.GetFeedback(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

func (h *FeedbackHandler) UpdateFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r)
	if !ok {
		badRequest(w, "invalid feedback id")
		return
	}

	var patch entity.FeedbackPatch
	if err := decodeJSON(r, &patch); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	fb, err := h.feedbackService.UpdateFeedback(r.Context(), id, patch, ActorFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

func (h *FeedbackHandler) DeleteFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r)
	if !ok {
		badRequest(w, "invalid feedback id")
		return
	}

	if err := h.feedbackService.DeleteFeedback(r.Context(), id, ActorFrom(r)); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
