package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/usecase"
)

type ShotHandler struct {
	shotService *usecase.ShotService
	logger      *zap.Logger
}

func NewShotHandler(shotService *usecase.ShotService, logger *zap.Logger) *ShotHandler {
	return &ShotHandler{shotService: shotService, logger: logger}
}

func (h *ShotHandler) CreateShot(w http.ResponseWriter, r *http.Request) {
	var req entity.CreateShotRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	shot, err := h.shotService.CreateShot(r.Context(), &req, ActorFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, shot)
}

func (h *ShotHandler) ListShots(w http.ResponseWriter, r *http.Request) {
	showID, ok := queryUUID(r, "showId")
	if !ok || showID == nil {
		badRequest(w, "showId query parameter is required")
		return
	}

	shots, err := h.shotService.ListShots(r.Context(), *showID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shots)
}

func (h *ShotHandler) GetShot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r)
	if !ok {
		badRequest(w, "invalid shot id")
		return
	}

	shot, err := h.shotService.GetShot(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shot)
}

func (h *ShotHandler) UpdateShot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r)
	if !ok {
		badRequest(w, "invalid shot id")
		return
	}

	var patch entity.ShotPatch
	if err := decodeJSON(r, &patch); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	shot, err := h.shotService.UpdateShot(r.Context(), id, patch, ActorFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shot)
}

func (h *ShotHandler) DeleteShot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r)
	if !ok {
		badRequest(w, "invalid shot id")
		return
	}

	if err := h.shotService.DeleteShot(r.Context(), id, ActorFrom(r)); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
