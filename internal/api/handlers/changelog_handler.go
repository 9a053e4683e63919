package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/usecase"
)

type ChangeLogHandler struct {
	logService *usecase.ChangeLogService
	undo       *usecase.UndoEngine
	logger     *zap.Logger
}

func NewChangeLogHandler(logService *usecase.ChangeLogService, undo *usecase.UndoEngine, logger *zap.Logger) *ChangeLogHandler {
	return &ChangeLogHandler{logService: logService, undo: undo, logger: logger}
}

type undoRequest struct {
	LogEntryID    *int64 `json:"logEntryId"`
	ActivityLogID *int64 `json:"activityLogId"`
}

type undoResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Result  *usecase.UndoResult `json:"result,omitempty"`
}

func (h *ChangeLogHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	var filter entity.ChangeLogFilter
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("entityType")); raw != "" {
		t, err := entity.ParseEntityType(raw)
		if err != nil {
			badRequest(w, "unsupported entityType")
			return
		}
		filter.EntityType = &t
	}
	id, ok := queryUUID(r, "entityId")
	if !ok {
		badRequest(w, "invalid entityId")
		return
	}
	filter.EntityID = id
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			badRequest(w, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	entries, err := h.logService.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *ChangeLogHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid entry id")
		return
	}

	entry, err := h.logService.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Undo accepts the entry id as logEntryId or, for older clients,
// activityLogId.
func (h *ChangeLogHandler) Undo(w http.ResponseWriter, r *http.Request) {
	var req undoRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	id := req.LogEntryID
	if id == nil {
		id = req.ActivityLogID
	}
	if id == nil {
		badRequest(w, "logEntryId is required")
		return
	}
	h.undoEntry(w, r, *id)
}

func (h *ChangeLogHandler) UndoByPath(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid entry id")
		return
	}
	h.undoEntry(w, r, id)
}

func (h *ChangeLogHandler) undoEntry(w http.ResponseWriter, r *http.Request, id int64) {
	result, err := h.undo.Undo(r.Context(), id, ActorFrom(r))
	if err != nil {
		status := StatusFor(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			h.logger.Error("undo failed", zap.Int64("entry_id", id), zap.Error(err))
			msg = "internal server error"
		}
		writeJSON(w, status, undoResponse{Success: false, Message: msg})
		return
	}
	writeJSON(w, http.StatusOK, undoResponse{Success: true, Message: result.Message(), Result: result})
}
