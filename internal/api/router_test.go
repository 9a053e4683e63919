package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/repository/memory"
	"github.com/St1cky1/vfx-tracker/internal/usecase"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := memory.NewStore().Repositories()
	rec := usecase.NewRecorder(store.ChangeLog, nil, nil)
	return NewRouter(Services{
		Shows:     usecase.NewShowService(store, rec),
		Shots:     usecase.NewShotService(store, rec),
		Tasks:     usecase.NewTaskService(store.Tasks, store.Shots, rec),
		Feedback:  usecase.NewFeedbackService(store.Feedback, rec),
		ChangeLog: usecase.NewChangeLogService(store, 0, 0),
		Undo:      usecase.NewUndoEngine(store, rec, nil, nil),
	}, nil)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "u-7")
	req.Header.Set("X-User-Name", "Ira Producer")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

type undoBody struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Result  usecase.UndoResult `json:"result"`
}

func seedTask(t *testing.T, h http.Handler) entity.Task {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/api/v1/shows", map[string]any{"name": "Nebula", "client": "Orbit"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	show := decode[entity.Show](t, rr)

	rr = do(t, h, http.MethodPost, "/api/v1/shots", map[string]any{"showId": show.ID, "name": "NEB_010"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	shot := decode[entity.Shot](t, rr)

	rr = do(t, h, http.MethodPost, "/api/v1/tasks", map[string]any{"shotId": shot.ID, "department": "Comp", "status": "WIP"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[entity.Task](t, rr)
}

func TestTaskUpdateAndUndoFlow(t *testing.T) {
	h := newTestRouter(t)
	task := seedTask(t, h)

	rr := do(t, h, http.MethodPatch, "/api/v1/tasks/"+task.ID.String(), map[string]any{"status": "AWF"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[entity.Task](t, rr)
	assert.Equal(t, "v001", *updated.DeliveredVersion)

	rr = do(t, h, http.MethodGet, "/api/v1/changelog?entityType=Task&entityId="+task.ID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	entries := decode[[]entity.EnrichedEntry](t, rr)
	require.Len(t, entries, 4)
	assert.Equal(t, "deliveredDate", *entries[0].FieldName)
	assert.Equal(t, "NEB_010", *entries[0].ShotName)
	assert.Equal(t, "Ira Producer", *entries[0].UserName)
	assert.Equal(t, "u-7", *entries[0].UserID)

	statusEntry := entries[2]
	require.Equal(t, "status", *statusEntry.FieldName)

	rr = do(t, h, http.MethodPost, "/api/v1/changelog/undo", map[string]any{"logEntryId": statusEntry.ID})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode[undoBody](t, rr)
	assert.True(t, body.Success)
	assert.Equal(t, usecase.OutcomeReverted, body.Result.Outcome)
	assert.NotEmpty(t, body.Message)

	rr = do(t, h, http.MethodPost, "/api/v1/changelog/undo", map[string]any{"activityLogId": statusEntry.ID})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.False(t, decode[undoBody](t, rr).Success)

	rr = do(t, h, http.MethodGet, "/api/v1/tasks/"+task.ID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, entity.StatusWIP, decode[entity.Task](t, rr).Status)
}

func TestInvalidTransitionResponse(t *testing.T) {
	h := newTestRouter(t)
	task := seedTask(t, h)

	rr := do(t, h, http.MethodPatch, "/api/v1/tasks/"+task.ID.String(), map[string]any{"status": "CAPP"})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Contains(t, body["error"], "WIP -> CAPP")
	assert.ElementsMatch(t, []any{"IntApp", "AWF", "OMIT", "HOLD"}, body["allowed"])
}

func TestDeleteAndRestoreShowByPath(t *testing.T) {
	h := newTestRouter(t)
	task := seedTask(t, h)

	rr := do(t, h, http.MethodGet, "/api/v1/tasks/"+task.ID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/v1/shows", nil)
	shows := decode[[]entity.Show](t, rr)
	require.Len(t, shows, 1)

	rr = do(t, h, http.MethodDelete, "/api/v1/shows/"+shows[0].ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/v1/tasks/"+task.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/v1/changelog?entityType=Show&limit=1", nil)
	entries := decode[[]entity.EnrichedEntry](t, rr)
	require.Len(t, entries, 1)
	require.Equal(t, entity.ActionDelete, entries[0].ActionType)

	rr = do(t, h, http.MethodPost, "/api/v1/changelog/"+itoa(entries[0].ID)+"/undo", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode[undoBody](t, rr)
	assert.Equal(t, usecase.OutcomeRestored, body.Result.Outcome)
	assert.Len(t, body.Result.Restored, 3)

	rr = do(t, h, http.MethodGet, "/api/v1/tasks/"+task.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequestErrors(t *testing.T) {
	h := newTestRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/tasks/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/shows/00000000-0000-0000-0000-000000000001", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/changelog?entityType=Vendor", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/changelog/undo", map[string]any{}).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/v1/changelog/77/undo", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/shows", map[string]any{"name": ""}).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/metrics", nil).Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestHealthz(t *testing.T) {
	h := newTestRouter(t)
	rr := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	down := NewRouter(Services{
		Health: func(context.Context) error { return errors.New("connection refused") },
	}, nil)
	rr = do(t, down, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
