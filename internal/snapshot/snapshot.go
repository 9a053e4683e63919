// Package snapshot encodes entities, and the subtrees under them, into the
// versioned blobs stored on DELETE and CREATE change log entries.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/St1cky1/vfx-tracker/internal/entity"
)

// SchemaVersion is written into every envelope. Blobs with a newer version
// are refused rather than partially decoded.
const SchemaVersion = 1

type envelope struct {
	SchemaVersion int               `json:"schemaVersion"`
	EntityType    entity.EntityType `json:"entityType"`
	Data          json.RawMessage   `json:"data"`
}

// Snapshot is a restorable copy of one entity plus its descendants.
type Snapshot interface {
	EntityType() entity.EntityType
	Root() entity.Tracked
}

type ShowSnapshot struct {
	Show  entity.Show    `json:"show"`
	Shots []ShotSnapshot `json:"shots"`
}

type ShotSnapshot struct {
	Shot  entity.Shot   `json:"shot"`
	Tasks []entity.Task `json:"tasks"`
}

type TaskSnapshot struct {
	Task entity.Task `json:"task"`
}

type FeedbackSnapshot struct {
	Feedback entity.Feedback `json:"feedback"`
}

func (s *ShowSnapshot) EntityType() entity.EntityType     { return entity.EntityShow }
func (s *ShowSnapshot) Root() entity.Tracked              { return &s.Show }
func (s *ShotSnapshot) EntityType() entity.EntityType     { return entity.EntityShot }
func (s *ShotSnapshot) Root() entity.Tracked              { return &s.Shot }
func (s *TaskSnapshot) EntityType() entity.EntityType     { return entity.EntityTask }
func (s *TaskSnapshot) Root() entity.Tracked              { return &s.Task }
func (s *FeedbackSnapshot) EntityType() entity.EntityType { return entity.EntityFeedback }
func (s *FeedbackSnapshot) Root() entity.Tracked          { return &s.Feedback }

// Source supplies the children walked when capturing a hierarchy.
type Source interface {
	ShotsByShow(ctx context.Context, showID uuid.UUID) ([]entity.Shot, error)
	TasksByShot(ctx context.Context, shotID uuid.UUID) ([]entity.Task, error)
}

// CaptureShow snapshots a show with every shot and, transitively, every task.
func CaptureShow(ctx context.Context, src Source, show *entity.Show) (*ShowSnapshot, error) {
	shots, err := src.ShotsByShow(ctx, show.ID)
	if err != nil {
		return nil, fmt.Errorf("list shots of show %s: %w", show.ID, err)
	}
	snap := &ShowSnapshot{Show: *show, Shots: make([]ShotSnapshot, 0, len(shots))}
	for i := range shots {
		shotSnap, err := CaptureShot(ctx, src, &shots[i])
		if err != nil {
			return nil, err
		}
		snap.Shots = append(snap.Shots, *shotSnap)
	}
	return snap, nil
}

// CaptureShot snapshots a shot with its tasks.
func CaptureShot(ctx context.Context, src Source, shot *entity.Shot) (*ShotSnapshot, error) {
	tasks, err := src.TasksByShot(ctx, shot.ID)
	if err != nil {
		return nil, fmt.Errorf("list tasks of shot %s: %w", shot.ID, err)
	}
	if tasks == nil {
		tasks = []entity.Task{}
	}
	return &ShotSnapshot{Shot: *shot, Tasks: tasks}, nil
}

// Marshal wraps s in a versioned envelope.
func Marshal(s Snapshot) (json.RawMessage, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, &entity.SerializationError{EntityType: s.EntityType(), Err: err}
	}
	blob, err := json.Marshal(envelope{SchemaVersion: SchemaVersion, EntityType: s.EntityType(), Data: data})
	if err != nil {
		return nil, &entity.SerializationError{EntityType: s.EntityType(), Err: err}
	}
	return blob, nil
}

// Unmarshal decodes blob into a snapshot of type t. Envelope-less blobs are
// read as the flat legacy layout where children are nested under "shots" and
// "tasks" keys of the entity itself.
func Unmarshal(blob []byte, t entity.EntityType) (Snapshot, error) {
	if _, err := entity.ParseEntityType(string(t)); err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, &entity.SerializationError{EntityType: t, Err: errors.New("empty snapshot")}
	}

	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, &entity.SerializationError{EntityType: t, Err: err}
	}

	var (
		snap Snapshot
		err  error
	)
	switch {
	case env.SchemaVersion == 0:
		snap, err = decodeLegacy(blob, t)
	case env.SchemaVersion > SchemaVersion:
		err = fmt.Errorf("schema version %d is newer than supported %d", env.SchemaVersion, SchemaVersion)
	case env.EntityType != t:
		err = fmt.Errorf("snapshot holds %s, want %s", env.EntityType, t)
	default:
		snap, err = decodeCurrent(env.Data, t)
	}
	if err != nil {
		return nil, &entity.SerializationError{EntityType: t, Err: err}
	}
	if err := validate(snap); err != nil {
		return nil, &entity.SerializationError{EntityType: t, Err: err}
	}
	return snap, nil
}

func decodeCurrent(data json.RawMessage, t entity.EntityType) (Snapshot, error) {
	var snap Snapshot
	switch t {
	case entity.EntityShow:
		snap = &ShowSnapshot{}
	case entity.EntityShot:
		snap = &ShotSnapshot{}
	case entity.EntityTask:
		snap = &TaskSnapshot{}
	case entity.EntityFeedback:
		snap = &FeedbackSnapshot{}
	}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

type legacyShot struct {
	entity.Shot
	Tasks []entity.Task `json:"tasks"`
}

type legacyShow struct {
	entity.Show
	Shots []legacyShot `json:"shots"`
}

func decodeLegacy(blob []byte, t entity.EntityType) (Snapshot, error) {
	switch t {
	case entity.EntityShow:
		var raw legacyShow
		if err := json.Unmarshal(blob, &raw); err != nil {
			return nil, err
		}
		snap := &ShowSnapshot{Show: raw.Show}
		for _, s := range raw.Shots {
			snap.Shots = append(snap.Shots, ShotSnapshot{Shot: s.Shot, Tasks: s.Tasks})
		}
		return snap, nil
	case entity.EntityShot:
		var raw legacyShot
		if err := json.Unmarshal(blob, &raw); err != nil {
			return nil, err
		}
		return &ShotSnapshot{Shot: raw.Shot, Tasks: raw.Tasks}, nil
	case entity.EntityTask:
		snap := &TaskSnapshot{}
		if err := json.Unmarshal(blob, &snap.Task); err != nil {
			return nil, err
		}
		return snap, nil
	default:
		snap := &FeedbackSnapshot{}
		if err := json.Unmarshal(blob, &snap.Feedback); err != nil {
			return nil, err
		}
		return snap, nil
	}
}

func validate(s Snapshot) error {
	if s.Root().EntityID() == uuid.Nil {
		return errors.New("snapshot has no entity id")
	}
	switch v := s.(type) {
	case *ShowSnapshot:
		for _, shot := range v.Shots {
			if shot.Shot.ID == uuid.Nil {
				return errors.New("nested shot has no id")
			}
			if shot.Shot.ShowID != v.Show.ID {
				return fmt.Errorf("nested shot %s belongs to show %s", shot.Shot.ID, shot.Shot.ShowID)
			}
		}
	case *ShotSnapshot:
		for _, task := range v.Tasks {
			if task.ID == uuid.Nil {
				return errors.New("nested task has no id")
			}
			if task.ShotID != v.Shot.ID {
				return fmt.Errorf("nested task %s belongs to shot %s", task.ID, task.ShotID)
			}
		}
	case *TaskSnapshot:
		if !v.Task.Status.Valid() {
			return fmt.Errorf("task status %q is not a known status", v.Task.Status)
		}
	}
	return nil
}
