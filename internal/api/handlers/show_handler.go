package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/usecase"
)

type ShowHandler struct {
	showService *usecase.ShowService
	logger      *zap.Logger
}

func NewShowHandler(showService *usecase.ShowService, logger *zap.Logger) *ShowHandler {
	return &ShowHandler{showService: showService, logger: logger}
}

func (h *ShowHandler) CreateShow(w http.ResponseWriter, r *http.Request) {
	var req entity.CreateShowRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	show, err := h.showService.CreateShow(r.Context(), &req, ActorFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, show)
}

func (h *ShowHandler) ListShows(w http.ResponseWriter, r *http.Request) {
	shows, err := h.showService.ListShows(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shows)
}

func (h *ShowHandler) GetShow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r)
	if !ok {
		badRequest(w, "invalid show id")
		return
	}

	show, err := h.showService.GetShow(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, show)
}

func (h *ShowHandler) UpdateShow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r)
	if !ok {
		badRequest(w, "invalid show id")
		return
	}

	var patch entity.ShowPatch
	if err := decodeJSON(r, &patch); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	show, err := h.showService.UpdateShow(r.Context(), id, patch, ActorFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, show)
}

// DeleteShow removes the show and everything below it.
func (h *ShowHandler) DeleteShow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r)
	if !ok {
		badRequest(w, "invalid show id")
		return
	}

	if err := h.showService.DeleteShow(r.Context(), id, ActorFrom(r)); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
