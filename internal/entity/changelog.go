package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EntityType string

const (
	EntityShow     EntityType = "Show"
	EntityShot     EntityType = "Shot"
	EntityTask     EntityType = "Task"
	EntityFeedback EntityType = "Feedback"
)

func ParseEntityType(raw string) (EntityType, error) {
	switch t := EntityType(raw); t {
	case EntityShow, EntityShot, EntityTask, EntityFeedback:
		return t, nil
	}
	return "", ErrUnsupportedEntityType
}

type ActionType string

const (
	ActionCreate ActionType = "CREATE"
	ActionUpdate ActionType = "UPDATE"
	ActionDelete ActionType = "DELETE"
)

// Inverse returns the action a compensating entry records.
func (a ActionType) Inverse() ActionType {
	switch a {
	case ActionCreate:
		return ActionDelete
	case ActionDelete:
		return ActionCreate
	}
	return a
}

func ParseActionType(raw string) (ActionType, error) {
	switch a := ActionType(raw); a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return a, nil
	}
	return "", Validationf("unknown action type %q", raw)
}

// Sentinel field names for entries that are not a single-field change.
const (
	FieldMultiple    = "multiple"
	FieldCascadeFrom = "cascadeFrom"
)

// ChangeLogEntry is one immutable audit record. Only IsReversed ever changes,
// and only from false to true.
type ChangeLogEntry struct {
	ID              int64           `json:"id"`
	EntityType      EntityType      `json:"entityType"`
	EntityID        uuid.UUID       `json:"entityId"`
	ActionType      ActionType      `json:"actionType"`
	FieldName       *string         `json:"fieldName"`
	OldValue        *string         `json:"oldValue"`
	NewValue        *string         `json:"newValue"`
	FullEntityData  json.RawMessage `json:"fullEntityData,omitempty"`
	ParentEntryID   *int64          `json:"parentEntryId,omitempty"`
	ReversesEntryID *int64          `json:"reversesEntryId,omitempty"`
	UserName        *string         `json:"userName"`
	UserID          *string         `json:"userId"`
	Timestamp       time.Time       `json:"timestamp"`
	IsReversed      bool            `json:"isReversed"`
}

// EnrichedEntry adds display names resolved from the entity store.
type EnrichedEntry struct {
	ChangeLogEntry
	ShowName *string `json:"showName"`
	ShotName *string `json:"shotName"`
}

// Actor attributes a change. A zero Actor is recorded as "System".
type Actor struct {
	ID   *string
	Name string
}

const SystemUserName = "System"

func (a Actor) DisplayName() string {
	if a.Name == "" {
		return SystemUserName
	}
	return a.Name
}

// ChangeLogFilter narrows a change log listing.
type ChangeLogFilter struct {
	EntityType *EntityType
	EntityID   *uuid.UUID
	Limit      int
}

// ChangeEvent is the message published to the change feed after an entry is
// persisted.
type ChangeEvent struct {
	EntryID         int64      `json:"entryId"`
	EntityType      EntityType `json:"entityType"`
	EntityID        uuid.UUID  `json:"entityId"`
	ActionType      ActionType `json:"actionType"`
	FieldName       *string    `json:"fieldName,omitempty"`
	ReversesEntryID *int64     `json:"reversesEntryId,omitempty"`
	UserName        *string    `json:"userName,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
}

func NewChangeEvent(e *ChangeLogEntry) *ChangeEvent {
	return &ChangeEvent{
		EntryID:         e.ID,
		EntityType:      e.EntityType,
		EntityID:        e.EntityID,
		ActionType:      e.ActionType,
		FieldName:       e.FieldName,
		ReversesEntryID: e.ReversesEntryID,
		UserName:        e.UserName,
		Timestamp:       e.Timestamp,
	}
}
