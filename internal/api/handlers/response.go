package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/St1cky1/vfx-tracker/internal/entity"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserName = "X-User-Name"
)

type errorResponse struct {
	Success bool                `json:"success"`
	Error   string              `json:"error"`
	Allowed []entity.TaskStatus `json:"allowed,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps a domain error onto an HTTP status.
func StatusFor(err error) int {
	var transition *entity.InvalidTransitionError
	switch {
	case errors.As(err, &transition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrSerialization):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrValidation),
		errors.Is(err, entity.ErrNoFieldsToUpdate),
		errors.Is(err, entity.ErrUnsupportedEntityType):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrAlreadyReversed), errors.Is(err, entity.ErrEntityExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, logger *zap.Logger, r *http.Request, err error) {
	status := StatusFor(err)
	resp := errorResponse{Error: err.Error()}
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		resp.Error = "internal server error"
	}
	var transition *entity.InvalidTransitionError
	if errors.As(err, &transition) {
		resp.Allowed = transition.Allowed
	}
	writeJSON(w, status, resp)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func pathUUID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

func queryUUID(r *http.Request, key string) (*uuid.UUID, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// ActorFrom reads the attribution headers set by the auth proxy. Requests
// without them are recorded as System.
func ActorFrom(r *http.Request) entity.Actor {
	actor := entity.Actor{Name: strings.TrimSpace(r.Header.Get(HeaderUserName))}
	if id := strings.TrimSpace(r.Header.Get(HeaderUserID)); id != "" {
		actor.ID = &id
	}
	return actor
}
