package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/repository"
	"github.com/St1cky1/vfx-tracker/internal/repository/memory"
)

var editor = entity.Actor{Name: "Dana Lead"}

// MockPublisher - records published change events
type MockPublisher struct {
	PublishChangeFunc func(ctx context.Context, event *entity.ChangeEvent) error
	Events            []entity.ChangeEvent
}

func (m *MockPublisher) PublishChange(ctx context.Context, event *entity.ChangeEvent) error {
	m.Events = append(m.Events, *event)
	if m.PublishChangeFunc != nil {
		return m.PublishChangeFunc(ctx, event)
	}
	return nil
}

// MockChangeLogRepository - wraps a real change log and lets tests fail calls
type MockChangeLogRepository struct {
	repository.IChangeLogRepository
	CreateFunc       func(ctx context.Context, e *entity.ChangeLogEntry) error
	MarkReversedFunc func(ctx context.Context, id int64) (bool, error)
}

func (m *MockChangeLogRepository) Create(ctx context.Context, e *entity.ChangeLogEntry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, e)
	}
	return m.IChangeLogRepository.Create(ctx, e)
}

func (m *MockChangeLogRepository) MarkReversed(ctx context.Context, id int64) (bool, error) {
	if m.MarkReversedFunc != nil {
		return m.MarkReversedFunc(ctx, id)
	}
	return m.IChangeLogRepository.MarkReversed(ctx, id)
}

// MockTaskRepository - wraps a real task repository and lets tests fail creates
type MockTaskRepository struct {
	repository.ITaskRepository
	CreateFunc func(ctx context.Context, task *entity.Task) error
}

func (m *MockTaskRepository) Create(ctx context.Context, task *entity.Task) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, task)
	}
	return m.ITaskRepository.Create(ctx, task)
}

type harness struct {
	mem       *memory.Store
	store     repository.Store
	publisher *MockPublisher
	recorder  *Recorder
	shows     *ShowService
	shots     *ShotService
	tasks     *TaskService
	feedback  *FeedbackService
	undo      *UndoEngine
	log       *ChangeLogService
}

func newHarness(t *testing.T, wrap ...func(*repository.Store)) *harness {
	t.Helper()
	mem := memory.NewStore()
	store := mem.Repositories()
	for _, w := range wrap {
		w(&store)
	}
	pub := &MockPublisher{}
	rec := NewRecorder(store.ChangeLog, pub, nil)
	return &harness{
		mem:       mem,
		store:     store,
		publisher: pub,
		recorder:  rec,
		shows:     NewShowService(store, rec),
		shots:     NewShotService(store, rec),
		tasks:     NewTaskService(store.Tasks, store.Shots, rec),
		feedback:  NewFeedbackService(store.Feedback, rec),
		undo:      NewUndoEngine(store, rec, NewKeyedMutex(), nil),
		log:       NewChangeLogService(store, 0, 0),
	}
}

// entriesSince returns the entries written after the first n.
func (h *harness) entriesSince(n int) []entity.ChangeLogEntry {
	return h.mem.Entries()[n:]
}

func (h *harness) mustShow(t *testing.T, name string) *entity.Show {
	t.Helper()
	show, err := h.shows.CreateShow(context.Background(), &entity.CreateShowRequest{Name: name, Client: "Orbit"}, editor)
	require.NoError(t, err)
	return show
}

func (h *harness) mustShot(t *testing.T, show *entity.Show, name string) *entity.Shot {
	t.Helper()
	shot, err := h.shots.CreateShot(context.Background(), &entity.CreateShotRequest{ShowID: show.ID, Name: name}, editor)
	require.NoError(t, err)
	return shot
}

func (h *harness) mustTask(t *testing.T, shot *entity.Shot, department string, status entity.TaskStatus) *entity.Task {
	t.Helper()
	task, err := h.tasks.CreateTask(context.Background(), &entity.CreateTaskRequest{
		ShotID:     shot.ID,
		Department: department,
		Status:     status,
	}, editor)
	require.NoError(t, err)
	return task
}

func ptr[T any](v T) *T { return &v }

var errBoom = errors.New("boom")
