package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/metrics"
	"github.com/St1cky1/vfx-tracker/internal/repository"
	"github.com/St1cky1/vfx-tracker/internal/snapshot"
)

type UndoOutcome string

const (
	OutcomeDeleted  UndoOutcome = "deleted"
	OutcomeNoop     UndoOutcome = "noop"
	OutcomeReverted UndoOutcome = "reverted"
	OutcomeRestored UndoOutcome = "restored"
)

// EntityRef names one row touched by an undo.
type EntityRef struct {
	EntityType entity.EntityType `json:"entityType"`
	EntityID   uuid.UUID         `json:"entityId"`
	Name       string            `json:"name"`
}

func refOf(t entity.Tracked) EntityRef {
	return EntityRef{EntityType: t.EntityType(), EntityID: t.EntityID(), Name: t.DisplayName()}
}

// UndoResult describes what reversing one entry did to the entity store.
type UndoResult struct {
	EntryID             int64                 `json:"entryId"`
	EntityType          entity.EntityType     `json:"entityType"`
	EntityID            uuid.UUID             `json:"entityId"`
	ActionType          entity.ActionType     `json:"actionType"`
	FieldName           *string               `json:"fieldName,omitempty"`
	Outcome             UndoOutcome           `json:"outcome"`
	Restored            []EntityRef           `json:"restored,omitempty"`
	Skipped             []EntityRef           `json:"skipped,omitempty"`
	Deleted             []EntityRef           `json:"deleted,omitempty"`
	Failures            []entity.ChildFailure `json:"failures,omitempty"`
	CompensatingEntryID *int64                `json:"compensatingEntryId,omitempty"`
	Warnings            []string              `json:"warnings,omitempty"`
}

// PartialFailure returns the descendant failures of a hierarchical restore,
// or nil when every child came back.
func (r *UndoResult) PartialFailure() *entity.PartialCascadeFailure {
	if len(r.Failures) == 0 {
		return nil
	}
	return &entity.PartialCascadeFailure{Failures: r.Failures}
}

func (r *UndoResult) Message() string {
	switch r.Outcome {
	case OutcomeNoop:
		return fmt.Sprintf("%s %s no longer exists, nothing to delete", r.EntityType, r.EntityID)
	case OutcomeDeleted:
		return fmt.Sprintf("Undid creation of %s (%d row(s) deleted)", r.EntityType, len(r.Deleted))
	case OutcomeReverted:
		field := ""
		if r.FieldName != nil {
			field = *r.FieldName
		}
		return fmt.Sprintf("Reverted %s on %s", field, r.EntityType)
	case OutcomeRestored:
		msg := fmt.Sprintf("Restored %s (%d row(s) recreated", r.EntityType, len(r.Restored))
		if len(r.Skipped) > 0 {
			msg += fmt.Sprintf(", %d already present", len(r.Skipped))
		}
		msg += ")"
		if p := r.PartialFailure(); p != nil {
			msg += "; " + p.Error()
		}
		return msg
	}
	return "Undo complete"
}

// reversal is what an entity handler did, plus the snapshot the compensating
// entry carries.
type reversal struct {
	outcome      UndoOutcome
	restored     []EntityRef
	skipped      []EntityRef
	deleted      []EntityRef
	failures     []entity.ChildFailure
	compensation json.RawMessage
}

// reverser undoes the three actions for one entity type.
type reverser interface {
	reverseCreate(ctx context.Context, actor entity.Actor, e *entity.ChangeLogEntry) (*reversal, error)
	reverseUpdate(ctx context.Context, actor entity.Actor, e *entity.ChangeLogEntry) (*reversal, error)
	reverseDelete(ctx context.Context, actor entity.Actor, e *entity.ChangeLogEntry) (*reversal, error)
}

type reverseFunc func(ctx context.Context, actor entity.Actor, e *entity.ChangeLogEntry) (*reversal, error)

type dispatchKey struct {
	entityType entity.EntityType
	action     entity.ActionType
}

// UndoEngine reverses individual change log entries. Each entry is reversed at
// most once: the per-entry lock serializes concurrent callers and
// MarkReversed is a compare-and-set.
type UndoEngine struct {
	logRepo  repository.IChangeLogRepository
	recorder *Recorder
	locker   EntryLocker
	logger   *zap.Logger
	table    map[dispatchKey]reverseFunc
}

func NewUndoEngine(store repository.Store, recorder *Recorder, locker EntryLocker, logger *zap.Logger) *UndoEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewKeyedMutex()
	}
	base := restorer{store: store, cascade: NewCascadeLogger(recorder)}
	handlers := map[entity.EntityType]reverser{
		entity.EntityShow:     showReverser{base},
		entity.EntityShot:     shotReverser{base},
		entity.EntityTask:     taskReverser{base},
		entity.EntityFeedback: feedbackReverser{base},
	}

	table := make(map[dispatchKey]reverseFunc, len(handlers)*3)
	for t, h := range handlers {
		table[dispatchKey{t, entity.ActionCreate}] = h.reverseCreate
		table[dispatchKey{t, entity.ActionUpdate}] = h.reverseUpdate
		table[dispatchKey{t, entity.ActionDelete}] = h.reverseDelete
	}

	return &UndoEngine{
		logRepo:  store.ChangeLog,
		recorder: recorder,
		locker:   locker,
		logger:   logger,
		table:    table,
	}
}

func undoOutcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, entity.ErrAlreadyReversed):
		return "already_reversed"
	case errors.Is(err, entity.ErrNotFound):
		return "not_found"
	case errors.Is(err, entity.ErrSerialization):
		return "serialization"
	case errors.Is(err, entity.ErrUnsupportedEntityType):
		return "unsupported"
	}
	return "failed"
}

// Undo reverses the entry with the given id on behalf of actor.
func (u *UndoEngine) Undo(ctx context.Context, entryID int64, actor entity.Actor) (result *UndoResult, err error) {
	start := time.Now()
	var entityType, action string
	defer func() {
		outcome := undoOutcomeLabel(err)
		if err == nil && result.PartialFailure() != nil {
			outcome = "partial"
		}
		metrics.ObserveUndo(entityType, action, outcome, time.Since(start))
	}()

	unlock, err := u.locker.Lock(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("lock entry %d: %w", entryID, err)
	}
	defer unlock()

	// 1. Load and guard
	entry, err := u.logRepo.GetByID(ctx, entryID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, entity.NotFoundf("change log entry %d", entryID)
		}
		return nil, err
	}
	entityType, action = string(entry.EntityType), string(entry.ActionType)
	if entry.IsReversed {
		return nil, entity.ErrAlreadyReversed
	}

	// 2. Dispatch
	reverse, ok := u.table[dispatchKey{entry.EntityType, entry.ActionType}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", entity.ErrUnsupportedEntityType, entry.EntityType, entry.ActionType)
	}
	rev, err := reverse(ctx, actor, entry)
	if err != nil {
		return nil, err
	}

	// 3. Mark reversed
	marked, err := u.logRepo.MarkReversed(ctx, entry.ID)
	if err != nil {
		u.logger.Error("entry reversed in store but flag not set",
			zap.Int64("entry_id", entry.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("mark entry %d reversed: %w", entry.ID, err)
	}
	if !marked {
		u.logger.Error("entry reversed concurrently", zap.Int64("entry_id", entry.ID))
		return nil, entity.ErrAlreadyReversed
	}

	result = &UndoResult{
		EntryID:    entry.ID,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		ActionType: entry.ActionType,
		FieldName:  entry.FieldName,
		Outcome:    rev.outcome,
		Restored:   rev.restored,
		Skipped:    rev.skipped,
		Deleted:    rev.deleted,
		Failures:   rev.failures,
	}

	// 4. Compensating entry
	comp := u.recorder.RecordCompensation(ctx, actor, entry, rev.compensation)
	if comp != nil {
		id := comp.ID
		result.CompensatingEntryID = &id
	} else {
		result.Warnings = append(result.Warnings, "compensating change log entry could not be written")
	}
	if p := result.PartialFailure(); p != nil {
		u.logger.Warn("partial cascade restore",
			zap.Int64("entry_id", entry.ID),
			zap.Int("failures", len(p.Failures)),
		)
		result.Warnings = append(result.Warnings, p.Error())
	}

	u.logger.Info("change log entry reversed",
		zap.Int64("entry_id", entry.ID),
		zap.String("entity_type", entityType),
		zap.String("action", action),
		zap.String("outcome", string(rev.outcome)),
	)
	return result, nil
}

// decode reads the snapshot of e and checks it describes the logged entity.
func decode[T snapshot.Snapshot](e *entity.ChangeLogEntry) (T, error) {
	var zero T
	snap, err := snapshot.Unmarshal(e.FullEntityData, e.EntityType)
	if err != nil {
		return zero, err
	}
	typed, ok := snap.(T)
	if !ok {
		return zero, &entity.SerializationError{EntityType: e.EntityType, Err: fmt.Errorf("unexpected snapshot %T", snap)}
	}
	if id := typed.Root().EntityID(); id != e.EntityID {
		return zero, &entity.SerializationError{
			EntityType: e.EntityType,
			Err:        fmt.Errorf("snapshot holds %s, entry refers to %s", id, e.EntityID),
		}
	}
	return typed, nil
}

// revertField writes the entry's old value back into its field. Status
// changes skip the transition table.
func revertField(t entity.Tracked, e *entity.ChangeLogEntry) error {
	if e.FieldName == nil || *e.FieldName == entity.FieldMultiple || *e.FieldName == entity.FieldCascadeFrom {
		return entity.Validationf("entry %d does not name a single field", e.ID)
	}
	return t.SetField(*e.FieldName, e.OldValue)
}

// present reports whether a lookup found the row. Errors other than not found
// are returned.
func present(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if repository.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func childFailure(t entity.EntityType, id uuid.UUID, err error) entity.ChildFailure {
	return entity.ChildFailure{EntityType: t, EntityID: id.String(), Error: err.Error()}
}

func removedRefs(removed []removal) []EntityRef {
	refs := make([]EntityRef, 0, len(removed))
	for _, rm := range removed {
		refs = append(refs, refOf(rm.snap.Root()))
	}
	return refs
}

// restorer holds the store operations shared by every entity handler.
type restorer struct {
	store   repository.Store
	cascade *CascadeLogger
}

// restoreTasks recreates tasks one by one. A task with an unknown status is
// not recreated. A failure is recorded and the next task is still attempted.
func (r restorer) restoreTasks(ctx context.Context, tasks []entity.Task, rev *reversal) {
	for i := range tasks {
		task := tasks[i]
		if !task.Status.Valid() {
			rev.failures = append(rev.failures, childFailure(entity.EntityTask, task.ID,
				entity.Validationf("unknown task status %q", task.Status)))
			continue
		}
		_, err := r.store.Tasks.GetByID(ctx, task.ID)
		found, err := present(err)
		if err != nil {
			rev.failures = append(rev.failures, childFailure(entity.EntityTask, task.ID, err))
			continue
		}
		if found {
			rev.skipped = append(rev.skipped, refOf(&task))
			continue
		}
		if err := r.store.Tasks.Create(ctx, &task); err != nil {
			rev.failures = append(rev.failures, childFailure(entity.EntityTask, task.ID, err))
			continue
		}
		rev.restored = append(rev.restored, refOf(&task))
	}
}

// restoreChildShot recreates a shot below a restored show. When the shot
// itself cannot be recreated its tasks are reported as failed too.
func (r restorer) restoreChildShot(ctx context.Context, snap *snapshot.ShotSnapshot, rev *reversal) {
	shot := snap.Shot
	_, err := r.store.Shots.GetByID(ctx, shot.ID)
	found, err := present(err)
	if err == nil && !found {
		err = r.store.Shots.Create(ctx, &shot)
	}
	if err != nil {
		rev.failures = append(rev.failures, childFailure(entity.EntityShot, shot.ID, err))
		for _, task := range snap.Tasks {
			rev.failures = append(rev.failures, childFailure(entity.EntityTask, task.ID,
				fmt.Errorf("parent shot %s not restored", shot.ID)))
		}
		return
	}
	if found {
		rev.skipped = append(rev.skipped, refOf(&shot))
	} else {
		rev.restored = append(rev.restored, refOf(&shot))
	}
	r.restoreTasks(ctx, snap.Tasks, rev)
}

func exists(t entity.EntityType, id uuid.UUID, err error) error {
	found, err := present(err)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: %s %s", entity.ErrEntityExists, t, id)
	}
	return nil
}

func missing(e *entity.ChangeLogEntry, err error) error {
	if repository.IsNotFound(err) {
		return entity.NotFoundf("%s %s no longer exists", e.EntityType, e.EntityID)
	}
	return err
}

func noop(e *entity.ChangeLogEntry) *reversal {
	return &reversal{outcome: OutcomeNoop, compensation: e.FullEntityData}
}

type showReverser struct{ restorer }

func (r showReverser) reverseCreate(ctx context.Context, actor entity.Actor, e *entity.ChangeLogEntry) (*reversal, error) {
	show, err := r.store.Shows.GetByID(ctx, e.EntityID)
	if repository.IsNotFound(err) {
		return noop(e), nil
	}
	if err != nil {
		return nil, err
	}
	snap, err := snapshot.CaptureShow(ctx, treeSource{shots: r.store.Shots, tasks: r.store.Tasks}, show)
	if err != nil {
		return nil, fmt.Errorf("capture show %s: %w", show.ID, err)
	}
	blob, err := snapshot.Marshal(snap)
	if err != nil {
		return nil, err
	}
	removed, err := treeRemover{store: r.store}.removeShow(ctx, snap)
	if err != nil {
		r.cascade.logPartial(ctx, actor, removed)
		return nil, err
	}
	return &reversal{
		outcome:      OutcomeDeleted,
		deleted:      append(removedRefs(removed), refOf(show)),
		compensation: blob,
	}, nil
}

func (r showReverser) reverseUpdate(ctx context.Context, _ entity.Actor, e *entity.ChangeLogEntry) (*reversal, error) {
	show, err := r.store.Shows.GetByID(ctx, e.EntityID)
	if err != nil {
		return nil, missing(e, err)
	}
	if err := revertField(show, e); err != nil {
		return nil, err
	}
	if err := r.store.Shows.Update(ctx, show); err != nil {
		return nil, fmt.Errorf("revert show %s: %w", show.ID, err)
	}
	return &reversal{outcome: OutcomeReverted}, nil
}

func (r showReverser) reverseDelete(ctx context.Context, _ entity.Actor, e *entity.ChangeLogEntry) (*reversal, error) {
	snap, err := decode[*snapshot.ShowSnapshot](e)
	if err != nil {
		return nil, err
	}
	show := snap.Show
	_, err = r.store.Shows.GetByID(ctx, show.ID)
	if err := exists(entity.EntityShow, show.ID, err); err != nil {
		return nil, err
	}
	if err := r.store.Shows.Create(ctx, &show); err != nil {
		return nil, fmt.Errorf("restore show %s: %w", show.ID, err)
	}

	rev := &reversal{outcome: OutcomeRestored, restored: []EntityRef{refOf(&show)}, compensation: e.FullEntityData}
	for i := range snap.Shots {
		r.restoreChildShot(ctx, &snap.Shots[i], rev)
	}
	return rev, nil
}

type shotReverser struct{ restorer }

func (r shotReverser) reverseCreate(ctx context.Context, actor entity.Actor, e *entity.ChangeLogEntry) (*reversal, error) {
	shot, err := r.store.Shots.GetByID(ctx, e.EntityID)
	if repository.IsNotFound(err) {
		return noop(e), nil
	}
	if err != nil {
		return nil, err
	}
	snap, err := snapshot.CaptureShot(ctx, treeSource{shots: r.store.Shots, tasks: r.store.Tasks}, shot)
	if err != nil {
		return nil, fmt.Errorf("capture shot %s: %w", shot.ID, err)
	}
	blob, err := snapshot.Marshal(snap)
	if err != nil {
		return nil, err
	}
	lineage := ""
	if show, err := r.store.Shows.GetByID(ctx, shot.ShowID); err == nil {
		lineage = showLineage(show.Name)
	}
	removed, err := treeRemover{store: r.store}.removeShot(ctx, snap, lineage)
	if err != nil {
		r.cascade.logPartial(ctx, actor, removed)
		return nil, err
	}
	return &reversal{
		outcome:      OutcomeDeleted,
		deleted:      append(removedRefs(removed), refOf(shot)),
		compensation: blob,
	}, nil
}

func (r shotReverser) reverseUpdate(ctx context.Context, _ entity.Actor, e *entity.ChangeLogEntry) (*reversal, error) {
	shot, err := r.store.Shots.GetByID(ctx, e.EntityID)
	if err != nil {
		return nil, missing(e, err)
	}
	if err := revertField(shot, e); err != nil {
		return nil, err
	}
	if err := r.store.Shots.Update(ctx, shot); err != nil {
		return nil, fmt.Errorf("revert shot %s: %w", shot.ID, err)
	}
	return &reversal{outcome: OutcomeReverted}, nil
}

func (r shotReverser) reverseDelete(ctx context.Context, _ entity.Actor, e *entity.ChangeLogEntry) (*reversal, error) {
	snap, err := decode[*snapshot.ShotSnapshot](e)
	if err != nil {
		return nil, err
	}
	shot := snap.Shot
	_, err = r.store.Shots.GetByID(ctx, shot.ID)
	if err := exists(entity.EntityShot, shot.ID, err); err != nil {
		return nil, err
	}
	if err := r.store.Shots.Create(ctx, &shot); err != nil {
		return nil, fmt.Errorf("restore shot %s: %w", shot.ID, err)
	}

	rev := &reversal{outcome: OutcomeRestored, restored: []EntityRef{refOf(&shot)}, compensation: e.FullEntityData}
	r.restoreTasks(ctx, snap.Tasks, rev)
	return rev, nil
}

type taskReverser struct{ restorer }

func (r taskReverser) reverseCreate(ctx context.Context, _ entity.Actor, e *entity.ChangeLogEntry) (*reversal, error) {
	task, err := r.store.Tasks.GetByID(ctx, e.EntityID)
	if repository.IsNotFound(err) {
		return noop(e), nil
	}
	if err != nil {
		return nil, err
	}
	blob, err := snapshot.Marshal(&snapshot.TaskSnapshot{Task: *task})
	if err != nil {
		return nil, err
	}
	if err := r.store.Tasks.Delete(ctx, task.ID); err != nil {
		if repository.IsNotFound(err) {
			return noop(e), nil
		}
		return nil, fmt.Errorf("delete task %s: %w", task.ID, err)
	}
	return &reversal{outcome: OutcomeDeleted, deleted: []EntityRef{refOf(task)}, compensation: blob}, nil
}

func (r taskReverser) reverseUpdate(ctx context.Context, _ entity.Actor, e *entity.ChangeLogEntry) (*reversal, error) {
	task, err := r.store.Tasks.GetByID(ctx, e.EntityID)
	if err != nil {
		return nil, missing(e, err)
	}
	if err := revertField(task, e); err != nil {
		return nil, err
	}
	if err := r.store.Tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("revert task %s: %w", task.ID, err)
	}
	return &reversal{outcome: OutcomeReverted}, nil
}

func (r taskReverser) reverseDelete(ctx context.Context, _ entity.Actor, e *entity.ChangeLogEntry) (*reversal, error) {
	snap, err := decode[*snapshot.TaskSnapshot](e)
	if err != nil {
		return nil, err
	}
	task := snap.Task
	_, err = r.store.Tasks.GetByID(ctx, task.ID)
	if err := exists(entity.EntityTask, task.ID, err); err != nil {
		return nil, err
	}
	if err := r.store.Tasks.Create(ctx, &task); err != nil {
		return nil, fmt.Errorf("restore task %s: %w", task.ID, err)
	}
	return &reversal{outcome: OutcomeRestored, restored: []EntityRef{refOf(&task)}, compensation: e.FullEntityData}, nil
}

type feedbackReverser struct{ restorer }

func (r feedbackReverser) reverseCreate(ctx context.Context, _ entity.Actor, e *entity.ChangeLogEntry) (*reversal, error) {
	fb, err := r.store.Feedback.GetByID(ctx, e.EntityID)
	if repository.IsNotFound(err) {
		return noop(e), nil
	}
	if err != nil {
		return nil, err
	}
	blob, err := snapshot.Marshal(&snapshot.FeedbackSnapshot{Feedback: *fb})
	if err != nil {
		return nil, err
	}
	if err := r.store.Feedback.Delete(ctx, fb.ID); err != nil {
		if repository.IsNotFound(err) {
			return noop(e), nil
		}
		return nil, fmt.Errorf("delete feedback %s: %w", fb.ID, err)
	}
	return &reversal{outcome: OutcomeDeleted, deleted: []EntityRef{refOf(fb)}, compensation: blob}, nil
}

func (r feedbackReverser) reverseUpdate(ctx context.Context, _ entity.Actor, e *entity.ChangeLogEntry) (*reversal, error) {
	fb, err := r.store.Feedback.GetByID(ctx, e.EntityID)
	if err != nil {
		return nil, missing(e, err)
	}
	if err := revertField(fb, e); err != nil {
		return nil, err
	}
	if err := r.store.Feedback.Update(ctx, fb); err != nil {
		return nil, fmt.Errorf("revert feedback %s: %w", fb.ID, err)
	}
	return &reversal{outcome: OutcomeReverted}, nil
}

func (r feedbackReverser) reverseDelete(ctx context.Context, _ entity.Actor, e *entity.ChangeLogEntry) (*reversal, error) {
	snap, err := decode[*snapshot.FeedbackSnapshot](e)
	if err != nil {
		return nil, err
	}
	fb := snap.Feedback
	_, err = r.store.Feedback.GetByID(ctx, fb.ID)
	if err := exists(entity.EntityFeedback, fb.ID, err); err != nil {
		return nil, err
	}
	if err := r.store.Feedback.Create(ctx, &fb); err != nil {
		return nil, fmt.Errorf("restore feedback %s: %w", fb.ID, err)
	}
	return &reversal{outcome: OutcomeRestored, restored: []EntityRef{refOf(&fb)}, compensation: e.FullEntityData}, nil
}
