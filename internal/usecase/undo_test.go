package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/repository"
	"github.com/St1cky1/vfx-tracker/internal/snapshot"
)

var reviewer = entity.Actor{ID: ptr("u-42"), Name: "Sam Supervisor"}

func lastEntry(h *harness) entity.ChangeLogEntry {
	entries := h.mem.Entries()
	return entries[len(entries)-1]
}

func entryByID(t *testing.T, h *harness, id int64) *entity.ChangeLogEntry {
	t.Helper()
	e, err := h.store.ChangeLog.GetByID(context.Background(), id)
	require.NoError(t, err)
	return e
}

func TestUndoUpdateRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	show := h.mustShow(t, "Nebula")

	_, err := h.shows.UpdateShow(ctx, show.ID, entity.ShowPatch{Client: ptr("Apex")}, editor)
	require.NoError(t, err)
	update := lastEntry(h)
	assert.Equal(t, "Orbit", *update.OldValue)
	assert.Equal(t, "Apex", *update.NewValue)
	mark := len(h.mem.Entries())

	result, err := h.undo.Undo(ctx, update.ID, reviewer)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReverted, result.Outcome)
	require.NotNil(t, result.CompensatingEntryID)

	stored, err := h.shows.GetShow(ctx, show.ID)
	require.NoError(t, err)
	assert.Equal(t, "Orbit", stored.Client)

	entries := h.entriesSince(mark)
	require.Len(t, entries, 1)
	comp := entries[0]
	assert.Equal(t, *result.CompensatingEntryID, comp.ID)
	assert.Equal(t, entity.ActionUpdate, comp.ActionType)
	assert.Equal(t, "client", *comp.FieldName)
	assert.Equal(t, "Apex", *comp.OldValue)
	assert.Equal(t, "Orbit", *comp.NewValue)
	require.NotNil(t, comp.ReversesEntryID)
	assert.Equal(t, update.ID, *comp.ReversesEntryID)
	assert.Equal(t, reviewer.Name, *comp.UserName)
	assert.Equal(t, "u-42", *comp.UserID)

	assert.True(t, entryByID(t, h, update.ID).IsReversed)
	assert.False(t, entryByID(t, h, comp.ID).IsReversed)
}

func TestUndoTwiceFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	show := h.mustShow(t, "Nebula")
	_, err := h.shows.UpdateShow(ctx, show.ID, entity.ShowPatch{Status: ptr("Wrapped")}, editor)
	require.NoError(t, err)
	update := lastEntry(h)

	_, err = h.undo.Undo(ctx, update.ID, reviewer)
	require.NoError(t, err)
	mark := len(h.mem.Entries())

	_, err = h.undo.Undo(ctx, update.ID, reviewer)
	assert.ErrorIs(t, err, entity.ErrAlreadyReversed)
	assert.Empty(t, h.entriesSince(mark))
}

func TestUndoConcurrentCallsReverseOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	show := h.mustShow(t, "Nebula")
	_, err := h.shows.UpdateShow(ctx, show.ID, entity.ShowPatch{Name: ptr("Nebula II")}, editor)
	require.NoError(t, err)
	update := lastEntry(h)
	mark := len(h.mem.Entries())

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.undo.Undo(ctx, update.ID, reviewer)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, entity.ErrAlreadyReversed)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, h.entriesSince(mark), 1)
}

// sessionLocker holds one session from a small pool of its own for as long
// as a lock is held, the way the advisory locker pins a connection.
type sessionLocker struct {
	keys     *KeyedMutex
	sessions chan struct{}
	held     atomic.Int32
	peak     atomic.Int32
}

func newSessionLocker(size int) *sessionLocker {
	return &sessionLocker{keys: NewKeyedMutex(), sessions: make(chan struct{}, size)}
}

func (l *sessionLocker) Lock(ctx context.Context, entryID int64) (func(), error) {
	select {
	case l.sessions <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	unlock, err := l.keys.Lock(ctx, entryID)
	if err != nil {
		<-l.sessions
		return nil, err
	}
	n := l.held.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return func() {
		l.held.Add(-1)
		unlock()
		<-l.sessions
	}, nil
}

func TestUndoWithBoundedLockSessions(t *testing.T) {
	h := newHarness(t)
	locker := newSessionLocker(2)
	engine := NewUndoEngine(h.store, h.recorder, locker, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	shot := h.mustShot(t, h.mustShow(t, "Nebula"), "NEB_010")
	const entries = 12
	ids := make([]int64, 0, entries)
	for i := 0; i < entries; i++ {
		task := h.mustTask(t, shot, "Comp", entity.StatusWIP)
		_, err := h.tasks.UpdateTask(ctx, task.ID, entity.TaskPatch{LeadName: ptr("Kai")}, editor)
		require.NoError(t, err)
		ids = append(ids, lastEntry(h).ID)
	}

	// two callers per entry
	var wg sync.WaitGroup
	var succeeded atomic.Int32
	errs := make(chan error, 2*entries)
	for _, id := range append(append([]int64{}, ids...), ids...) {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := engine.Undo(ctx, id, reviewer); err != nil {
				errs <- err
				return
			}
			succeeded.Add(1)
		}(id)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, entity.ErrAlreadyReversed)
	}
	assert.Equal(t, int32(entries), succeeded.Load())
	assert.LessOrEqual(t, locker.peak.Load(), int32(2))
	assert.Zero(t, locker.held.Load())
	assert.Empty(t, locker.sessions)
	for _, id := range ids {
		assert.True(t, entryByID(t, h, id).IsReversed)
	}
}

func TestUndoLostCompareAndSet(t *testing.T) {
	h := newHarness(t, func(s *repository.Store) {
		s.ChangeLog = &MockChangeLogRepository{
			IChangeLogRepository: s.ChangeLog,
			MarkReversedFunc:     func(context.Context, int64) (bool, error) { return false, nil },
		}
	})
	ctx := context.Background()
	show := h.mustShow(t, "Nebula")
	_, err := h.shows.UpdateShow(ctx, show.ID, entity.ShowPatch{Name: ptr("Nebula II")}, editor)
	require.NoError(t, err)
	mark := len(h.mem.Entries())

	_, err = h.undo.Undo(ctx, lastEntry(h).ID, reviewer)
	assert.ErrorIs(t, err, entity.ErrAlreadyReversed)
	assert.Empty(t, h.entriesSince(mark))
}

func TestUndoMissingEntry(t *testing.T) {
	h := newHarness(t)

	_, err := h.undo.Undo(context.Background(), 999, reviewer)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestUndoUpdateBypassesTransitionTable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	shot := h.mustShot(t, h.mustShow(t, "Nebula"), "NEB_010")
	task := h.mustTask(t, shot, "Comp", entity.StatusAWF)

	_, err := h.tasks.UpdateTask(ctx, task.ID, entity.TaskPatch{
		Status:  ptr(entity.StatusCAPP),
		BidDays: ptr(3.0),
	}, editor)
	require.NoError(t, err)
	entries := h.mem.Entries()
	statusEntry := entries[len(entries)-2]
	bidEntry := entries[len(entries)-1]
	require.Equal(t, "status", *statusEntry.FieldName)
	require.Equal(t, "bidDays", *bidEntry.FieldName)

	_, err = h.undo.Undo(ctx, statusEntry.ID, reviewer)
	require.NoError(t, err)
	_, err = h.undo.Undo(ctx, bidEntry.ID, reviewer)
	require.NoError(t, err)

	stored, err := h.tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAWF, stored.Status)
	assert.Nil(t, stored.BidDays)
}

func TestUndoUpdateOfDeletedEntity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	show := h.mustShow(t, "Nebula")
	_, err := h.shows.UpdateShow(ctx, show.ID, entity.ShowPatch{Name: ptr("Nebula II")}, editor)
	require.NoError(t, err)
	update := lastEntry(h)
	require.NoError(t, h.shows.DeleteShow(ctx, show.ID, editor))

	_, err = h.undo.Undo(ctx, update.ID, reviewer)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.False(t, entryByID(t, h, update.ID).IsReversed)
}

func TestUndoDeleteRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	taskID := uuid.New()
	fb, err := h.feedback.CreateFeedback(ctx, &entity.CreateFeedbackRequest{
		TaskID:  &taskID,
		Author:  "Client",
		Body:    "Sky needs more contrast",
		Version: ptr("v003"),
	}, editor)
	require.NoError(t, err)
	require.NoError(t, h.feedback.DeleteFeedback(ctx, fb.ID, editor))
	deleted := lastEntry(h)

	result, err := h.undo.Undo(ctx, deleted.ID, reviewer)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRestored, result.Outcome)
	require.Len(t, result.Restored, 1)

	restored, err := h.feedback.GetFeedback(ctx, fb.ID)
	require.NoError(t, err)
	assert.Equal(t, fb.Fields(), restored.Fields())
	assert.True(t, fb.CreatedAt.Equal(restored.CreatedAt))

	comp := lastEntry(h)
	assert.Equal(t, entity.ActionCreate, comp.ActionType)
	assert.Equal(t, deleted.ID, *comp.ReversesEntryID)
	assert.Equal(t, *deleted.OldValue, *comp.NewValue)
	assert.Nil(t, comp.OldValue)
}

func TestUndoTaskDeleteFromSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	shot := h.mustShot(t, h.mustShow(t, "Nebula"), "NEB_010")

	t1 := uuid.MustParse("00000000-0000-0000-0000-0000000000f1")
	blob, err := snapshot.Marshal(&snapshot.TaskSnapshot{Task: entity.Task{
		ID:         t1,
		ShotID:     shot.ID,
		Department: "Comp",
		Status:     entity.StatusWIP,
	}})
	require.NoError(t, err)
	entry := &entity.ChangeLogEntry{
		EntityType:     entity.EntityTask,
		EntityID:       t1,
		ActionType:     entity.ActionDelete,
		OldValue:       ptr("Comp"),
		FullEntityData: blob,
	}
	require.NoError(t, h.store.ChangeLog.Create(ctx, entry))
	mark := len(h.mem.Entries())

	_, err = h.undo.Undo(ctx, entry.ID, reviewer)
	require.NoError(t, err)

	task, err := h.tasks.GetTask(ctx, t1)
	require.NoError(t, err)
	assert.Equal(t, t1, task.ID)
	assert.Equal(t, "Comp", task.Department)
	assert.Equal(t, entity.StatusWIP, task.Status)

	entries := h.entriesSince(mark)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.ActionCreate, entries[0].ActionType)
	assert.Equal(t, t1, entries[0].EntityID)
}

func TestUndoDeleteWhenEntityExists(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	shot := h.mustShot(t, h.mustShow(t, "Nebula"), "NEB_010")
	task := h.mustTask(t, shot, "Comp", entity.StatusWIP)
	require.NoError(t, h.tasks.DeleteTask(ctx, task.ID, editor))
	deleted := lastEntry(h)

	_, err := h.tasks.CreateTask(ctx, &entity.CreateTaskRequest{ID: &task.ID, ShotID: shot.ID, Department: "Comp"}, editor)
	require.NoError(t, err)

	_, err = h.undo.Undo(ctx, deleted.ID, reviewer)
	assert.ErrorIs(t, err, entity.ErrEntityExists)
	assert.False(t, entryByID(t, h, deleted.ID).IsReversed)
}

func TestUndoDeleteCorruptSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	entry := &entity.ChangeLogEntry{
		EntityType:     entity.EntityShot,
		EntityID:       uuid.New(),
		ActionType:     entity.ActionDelete,
		FullEntityData: json.RawMessage(`{"schemaVersion":1,"entityType":"Shot","data":{"shot":{"id":"zzz"}}}`),
	}
	require.NoError(t, h.store.ChangeLog.Create(ctx, entry))
	mark := len(h.mem.Entries())

	_, err := h.undo.Undo(ctx, entry.ID, reviewer)
	assert.ErrorIs(t, err, entity.ErrSerialization)
	assert.False(t, entryByID(t, h, entry.ID).IsReversed)
	assert.Empty(t, h.entriesSince(mark))
}

func TestUndoUnsupportedEntityType(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	entry := &entity.ChangeLogEntry{EntityType: "Vendor", EntityID: uuid.New(), ActionType: entity.ActionCreate}
	require.NoError(t, h.store.ChangeLog.Create(ctx, entry))

	_, err := h.undo.Undo(ctx, entry.ID, reviewer)
	assert.ErrorIs(t, err, entity.ErrUnsupportedEntityType)
}

func TestUndoShowDeleteRestoresTree(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	show := h.mustShow(t, "Nebula")
	shotA := h.mustShot(t, show, "NEB_010")
	shotB := h.mustShot(t, show, "NEB_020")
	taskA := h.mustTask(t, shotA, "Comp", entity.StatusWIP)
	taskB := h.mustTask(t, shotB, "Roto", entity.StatusAWF)
	mark := len(h.mem.Entries())
	require.NoError(t, h.shows.DeleteShow(ctx, show.ID, editor))
	root := h.mem.Entries()[mark]
	mark = len(h.mem.Entries())

	result, err := h.undo.Undo(ctx, root.ID, reviewer)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRestored, result.Outcome)
	assert.Len(t, result.Restored, 5)
	assert.Empty(t, result.Failures)
	assert.Nil(t, result.PartialFailure())

	for _, id := range []uuid.UUID{shotA.ID, shotB.ID} {
		_, err := h.shots.GetShot(ctx, id)
		assert.NoError(t, err)
	}
	restored, err := h.tasks.GetTask(ctx, taskB.ID)
	require.NoError(t, err)
	assert.Equal(t, taskB.Fields(), restored.Fields())
	_, err = h.tasks.GetTask(ctx, taskA.ID)
	assert.NoError(t, err)

	entries := h.entriesSince(mark)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.EntityShow, entries[0].EntityType)
	assert.Equal(t, entity.ActionCreate, entries[0].ActionType)
}

func TestUndoShowDeletePartialFailure(t *testing.T) {
	var tasks *MockTaskRepository
	h := newHarness(t, func(s *repository.Store) {
		tasks = &MockTaskRepository{ITaskRepository: s.Tasks}
		s.Tasks = tasks
	})
	ctx := context.Background()
	show := h.mustShow(t, "Nebula")
	shotA := h.mustShot(t, show, "NEB_010")
	shotB := h.mustShot(t, show, "NEB_020")
	broken := h.mustTask(t, shotA, "Comp", entity.StatusWIP)
	sibling := h.mustTask(t, shotA, "Lighting", entity.StatusWIP)
	other := h.mustTask(t, shotB, "Roto", entity.StatusWIP)
	mark := len(h.mem.Entries())
	require.NoError(t, h.shows.DeleteShow(ctx, show.ID, editor))
	root := h.mem.Entries()[mark]

	tasks.CreateFunc = func(ctx context.Context, task *entity.Task) error {
		if task.ID == broken.ID {
			return errBoom
		}
		return tasks.ITaskRepository.Create(ctx, task)
	}

	result, err := h.undo.Undo(ctx, root.ID, reviewer)
	require.NoError(t, err)
	assert.Len(t, result.Restored, 5)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, broken.ID.String(), result.Failures[0].EntityID)
	assert.Equal(t, entity.EntityTask, result.Failures[0].EntityType)
	require.NotNil(t, result.PartialFailure())
	assert.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Message(), "could not be restored")

	for _, id := range []uuid.UUID{sibling.ID, other.ID} {
		_, err := h.tasks.GetTask(ctx, id)
		assert.NoError(t, err)
	}
	_, err = h.tasks.GetTask(ctx, broken.ID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.True(t, entryByID(t, h, root.ID).IsReversed)
}

func TestUndoShotDeleteRestoresTasks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	show := h.mustShow(t, "Nebula")
	shot := h.mustShot(t, show, "NEB_010")
	task := h.mustTask(t, shot, "Comp", entity.StatusWIP)
	mark := len(h.mem.Entries())
	require.NoError(t, h.shots.DeleteShot(ctx, shot.ID, editor))
	root := h.mem.Entries()[mark]

	result, err := h.undo.Undo(ctx, root.ID, reviewer)
	require.NoError(t, err)
	assert.Len(t, result.Restored, 2)

	restored, err := h.tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, shot.ID, restored.ShotID)
}

func TestUndoShotDeleteRejectsUnknownChildStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	show := h.mustShow(t, "Nebula")
	shot := entity.Shot{ID: uuid.New(), ShowID: show.ID, Name: "NEB_030"}
	good := entity.Task{ID: uuid.New(), ShotID: shot.ID, Department: "Comp", Status: entity.StatusWIP}
	bogus := entity.Task{ID: uuid.New(), ShotID: shot.ID, Department: "Roto", Status: "BOGUS"}
	blob, err := snapshot.Marshal(&snapshot.ShotSnapshot{Shot: shot, Tasks: []entity.Task{bogus, good}})
	require.NoError(t, err)

	entry := &entity.ChangeLogEntry{
		EntityType:     entity.EntityShot,
		EntityID:       shot.ID,
		ActionType:     entity.ActionDelete,
		FullEntityData: blob,
	}
	require.NoError(t, h.store.ChangeLog.Create(ctx, entry))

	result, err := h.undo.Undo(ctx, entry.ID, reviewer)
	require.NoError(t, err)
	assert.Len(t, result.Restored, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, bogus.ID.String(), result.Failures[0].EntityID)
	assert.Contains(t, result.Failures[0].Error, "BOGUS")

	_, err = h.tasks.GetTask(ctx, bogus.ID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	_, err = h.tasks.GetTask(ctx, good.ID)
	assert.NoError(t, err)
}

func TestUndoCreateDeletesEntity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	show := h.mustShow(t, "Nebula")
	create := lastEntry(h)
	shot := h.mustShot(t, show, "NEB_010")
	h.mustTask(t, shot, "Comp", entity.StatusWIP)
	mark := len(h.mem.Entries())

	result, err := h.undo.Undo(ctx, create.ID, reviewer)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, result.Outcome)
	assert.Len(t, result.Deleted, 3)

	_, err = h.shows.GetShow(ctx, show.ID)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	entries := h.entriesSince(mark)
	require.Len(t, entries, 1)
	comp := entries[0]
	assert.Equal(t, entity.ActionDelete, comp.ActionType)
	assert.Equal(t, "Nebula", *comp.OldValue)
	decoded, err := snapshot.Unmarshal(comp.FullEntityData, entity.EntityShow)
	require.NoError(t, err)
	assert.Len(t, decoded.(*snapshot.ShowSnapshot).Shots, 1)
}

func TestUndoCreateOfMissingEntityIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fb, err := h.feedback.CreateFeedback(ctx, &entity.CreateFeedbackRequest{Author: "Client", Body: "Looks great"}, editor)
	require.NoError(t, err)
	create := lastEntry(h)
	require.NoError(t, h.feedback.DeleteFeedback(ctx, fb.ID, editor))

	result, err := h.undo.Undo(ctx, create.ID, reviewer)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, result.Outcome)

	comp := lastEntry(h)
	assert.Equal(t, entity.ActionDelete, comp.ActionType)
	assert.JSONEq(t, string(create.FullEntityData), string(comp.FullEntityData))
	assert.True(t, entryByID(t, h, create.ID).IsReversed)
}

func TestUndoCompensationFailureIsWarning(t *testing.T) {
	var logRepo *MockChangeLogRepository
	h := newHarness(t, func(s *repository.Store) {
		logRepo = &MockChangeLogRepository{IChangeLogRepository: s.ChangeLog}
		s.ChangeLog = logRepo
	})
	ctx := context.Background()
	show := h.mustShow(t, "Nebula")
	_, err := h.shows.UpdateShow(ctx, show.ID, entity.ShowPatch{Name: ptr("Nebula II")}, editor)
	require.NoError(t, err)
	update := lastEntry(h)

	logRepo.CreateFunc = func(context.Context, *entity.ChangeLogEntry) error { return errBoom }

	result, err := h.undo.Undo(ctx, update.ID, reviewer)
	require.NoError(t, err)
	assert.Nil(t, result.CompensatingEntryID)
	assert.NotEmpty(t, result.Warnings)
	assert.True(t, entryByID(t, h, update.ID).IsReversed)
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	locks := NewKeyedMutex()
	unlock, err := locks.Lock(context.Background(), 7)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locks.Lock(ctx, 7)
	assert.ErrorIs(t, err, context.Canceled)

	other, err := locks.Lock(context.Background(), 8)
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	again, err := locks.Lock(context.Background(), 7)
	require.NoError(t, err)
	again()
	assert.Empty(t, locks.locks)
}
