package entity

import (
	"time"

	"github.com/google/uuid"
)

type FeedbackStatus string

const (
	FeedbackOpen      FeedbackStatus = "Open"
	FeedbackAddressed FeedbackStatus = "Addressed"
)

// Feedback is a client or supervisor note. TaskID is a plain reference, not a
// foreign key, so it stays valid across a task delete and restore.
type Feedback struct {
	ID        uuid.UUID      `json:"id"`
	TaskID    *uuid.UUID     `json:"taskId,omitempty"`
	Author    string         `json:"author"`
	Body      string         `json:"body"`
	Status    FeedbackStatus `json:"status"`
	Version   *string        `json:"version,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

var _ Tracked = (*Feedback)(nil)

func (f *Feedback) EntityType() EntityType { return EntityFeedback }
func (f *Feedback) EntityID() uuid.UUID    { return f.ID }

func (f *Feedback) DisplayName() string {
	if len(f.Body) > 40 {
		return f.Author + ": " + f.Body[:40] + "..."
	}
	return f.Author + ": " + f.Body
}

func (f *Feedback) Fields() []Field {
	return []Field{
		{Name: "taskId", Kind: KindRef, Value: refValue(f.TaskID)},
		{Name: "author", Kind: KindString, Value: strValue(f.Author)},
		{Name: "body", Kind: KindString, Value: strValue(f.Body)},
		{Name: "status", Kind: KindString, Value: strValue(string(f.Status))},
		{Name: "version", Kind: KindString, Value: optStrValue(f.Version)},
	}
}

func (f *Feedback) SetField(name string, value *string) error {
	var err error
	switch name {
	case "taskId":
		f.TaskID, err = parseRef(value)
	case "author":
		f.Author, err = requireValue(name, value)
	case "body":
		f.Body, err = requireValue(name, value)
	case "status":
		var s string
		if s, err = requireValue(name, value); err == nil {
			f.Status = FeedbackStatus(s)
		}
	case "version":
		f.Version = optStrValue(value)
	default:
		return unknownField(EntityFeedback, name)
	}
	return err
}

type CreateFeedbackRequest struct {
	ID      *uuid.UUID     `json:"id,omitempty"`
	TaskID  *uuid.UUID     `json:"taskId,omitempty"`
	Author  string         `json:"author"`
	Body    string         `json:"body"`
	Status  FeedbackStatus `json:"status"`
	Version *string        `json:"version,omitempty"`
}

type FeedbackPatch struct {
	TaskID  *uuid.UUID      `json:"taskId,omitempty"`
	Body    *string         `json:"body,omitempty"`
	Status  *FeedbackStatus `json:"status,omitempty"`
	Version *string         `json:"version,omitempty"`
}

func (p FeedbackPatch) Empty() bool {
	return p.TaskID == nil && p.Body == nil && p.Status == nil && p.Version == nil
}
