package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/metrics"
	"github.com/St1cky1/vfx-tracker/internal/repository"
	"github.com/St1cky1/vfx-tracker/internal/snapshot"
)

// ChangePublisher fans persisted entries out to the change feed.
type ChangePublisher interface {
	PublishChange(ctx context.Context, event *entity.ChangeEvent) error
}

// FieldChange is one differing field between two versions of an entity.
type FieldChange struct {
	Name string
	Old  *string
	New  *string
}

// Diff compares the stringified fields of before and after by value and
// returns one change per differing field, in field order.
func Diff(before, after entity.Tracked) []FieldChange {
	afterFields := after.Fields()
	var changes []FieldChange
	for i, f := range before.Fields() {
		next := afterFields[i]
		if equalValues(f.Value, next.Value) {
			continue
		}
		changes = append(changes, FieldChange{Name: f.Name, Old: f.Value, New: next.Value})
	}
	return changes
}

func equalValues(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Recorder writes change log entries. Writes are best effort: a failure is
// logged and counted but never surfaces to the mutation that triggered it.
type Recorder struct {
	logRepo   repository.IChangeLogRepository
	publisher ChangePublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewRecorder(logRepo repository.IChangeLogRepository, publisher ChangePublisher, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		logRepo:   logRepo,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *Recorder) newEntry(actor entity.Actor, t entity.EntityType, id uuid.UUID, action entity.ActionType) *entity.ChangeLogEntry {
	name := actor.DisplayName()
	return &entity.ChangeLogEntry{
		EntityType: t,
		EntityID:   id,
		ActionType: action,
		UserName:   &name,
		UserID:     actor.ID,
		Timestamp:  r.now(),
	}
}

// write persists e and publishes it. It reports whether the entry was stored.
func (r *Recorder) write(ctx context.Context, e *entity.ChangeLogEntry) bool {
	if err := r.logRepo.Create(ctx, e); err != nil {
		metrics.IncChangeLogWriteFailure(string(e.EntityType))
		r.logger.Error("change log write failed",
			zap.String("entity_type", string(e.EntityType)),
			zap.String("entity_id", e.EntityID.String()),
			zap.String("action", string(e.ActionType)),
			zap.Error(err),
		)
		return false
	}
	metrics.IncChangeLogEntry(string(e.EntityType), string(e.ActionType))

	if r.publisher != nil {
		if err := r.publisher.PublishChange(ctx, entity.NewChangeEvent(e)); err != nil {
			r.logger.Warn("change feed publish failed",
				zap.Int64("entry_id", e.ID),
				zap.Error(err),
			)
		}
	}
	return true
}

func (r *Recorder) encode(t entity.EntityType, snap snapshot.Snapshot) json.RawMessage {
	blob, err := snapshot.Marshal(snap)
	if err != nil {
		r.logger.Error("snapshot encode failed", zap.String("entity_type", string(t)), zap.Error(err))
		return nil
	}
	return blob
}

// RecordCreate writes a single CREATE entry carrying the full snapshot.
func (r *Recorder) RecordCreate(ctx context.Context, actor entity.Actor, snap snapshot.Snapshot) *entity.ChangeLogEntry {
	root := snap.Root()
	e := r.newEntry(actor, root.EntityType(), root.EntityID(), entity.ActionCreate)
	name := root.DisplayName()
	e.NewValue = &name
	e.FullEntityData = r.encode(root.EntityType(), snap)
	if !r.write(ctx, e) {
		return nil
	}
	return e
}

// RecordUpdate writes one UPDATE entry per changed field.
func (r *Recorder) RecordUpdate(ctx context.Context, actor entity.Actor, before, after entity.Tracked) []entity.ChangeLogEntry {
	changes := Diff(before, after)
	written := make([]entity.ChangeLogEntry, 0, len(changes))
	for _, c := range changes {
		e := r.newEntry(actor, after.EntityType(), after.EntityID(), entity.ActionUpdate)
		field := c.Name
		e.FieldName = &field
		e.OldValue = c.Old
		e.NewValue = c.New
		if r.write(ctx, e) {
			written = append(written, *e)
		}
	}
	return written
}

// DeleteOptions describe where a DELETE entry sits in a cascade. Both are nil
// for a directly deleted entity.
type DeleteOptions struct {
	Lineage       *string
	ParentEntryID *int64
}

// RecordDelete writes a DELETE entry with the full snapshot. A DELETE entry
// without a snapshot is never written.
func (r *Recorder) RecordDelete(ctx context.Context, actor entity.Actor, snap snapshot.Snapshot, opts DeleteOptions) *entity.ChangeLogEntry {
	root := snap.Root()
	e := r.newEntry(actor, root.EntityType(), root.EntityID(), entity.ActionDelete)
	e.FullEntityData = r.encode(root.EntityType(), snap)
	if e.FullEntityData == nil {
		metrics.IncChangeLogWriteFailure(string(root.EntityType()))
		return nil
	}
	if opts.Lineage != nil {
		field := entity.FieldCascadeFrom
		e.FieldName = &field
		e.OldValue = opts.Lineage
	} else {
		name := root.DisplayName()
		e.OldValue = &name
	}
	e.ParentEntryID = opts.ParentEntryID
	if !r.write(ctx, e) {
		return nil
	}
	return e
}

// RecordCompensation writes the entry that documents an undo of original.
// Old and new values are swapped and the action is inverted.
func (r *Recorder) RecordCompensation(ctx context.Context, actor entity.Actor, original *entity.ChangeLogEntry, fullData json.RawMessage) *entity.ChangeLogEntry {
	e := r.newEntry(actor, original.EntityType, original.EntityID, original.ActionType.Inverse())
	e.FieldName = original.FieldName
	e.OldValue = original.NewValue
	e.NewValue = original.OldValue
	e.FullEntityData = fullData
	id := original.ID
	e.ReversesEntryID = &id
	if !r.write(ctx, e) {
		return nil
	}
	return e
}
