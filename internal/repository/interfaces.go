package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/St1cky1/vfx-tracker/internal/entity"
)

// ErrNotFound is returned by Get/Delete when no row has the requested id.
var ErrNotFound = entity.ErrNotFound

// ErrDuplicate is returned by Create when the id is already taken.
var ErrDuplicate = entity.ErrEntityExists

// IsNotFound reports whether err means the row is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IShowRepository - Show persistence. Create keeps a non-nil ID as given so
// restored shows come back under their original identifier.
type IShowRepository interface {
	Create(ctx context.Context, show *entity.Show) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Show, error)
	Update(ctx context.Context, show *entity.Show) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]entity.Show, error)
}

// IShotRepository - Shot persistence.
type IShotRepository interface {
	Create(ctx context.Context, shot *entity.Shot) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Shot, error)
	Update(ctx context.Context, shot *entity.Shot) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByShow(ctx context.Context, showID uuid.UUID) ([]entity.Shot, error)
}

// ITaskRepository - Task persistence.
type ITaskRepository interface {
	Create(ctx context.Context, task *entity.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Task, error)
	Update(ctx context.Context, task *entity.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByShot(ctx context.Context, shotID uuid.UUID) ([]entity.Task, error)
}

// IFeedbackRepository - Feedback persistence.
type IFeedbackRepository interface {
	Create(ctx context.Context, feedback *entity.Feedback) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Feedback, error)
	Update(ctx context.Context, feedback *entity.Feedback) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]entity.Feedback, error)
}

// IChangeLogRepository - append-only change log. MarkReversed is a
// compare-and-set: it returns false when the entry was already reversed.
type IChangeLogRepository interface {
	Create(ctx context.Context, e *entity.ChangeLogEntry) error
	GetByID(ctx context.Context, id int64) (*entity.ChangeLogEntry, error)
	List(ctx context.Context, filter entity.ChangeLogFilter) ([]entity.ChangeLogEntry, error)
	MarkReversed(ctx context.Context, id int64) (bool, error)
}

// Store groups the repositories that make up the entity store.
type Store struct {
	Shows     IShowRepository
	Shots     IShotRepository
	Tasks     ITaskRepository
	Feedback  IFeedbackRepository
	ChangeLog IChangeLogRepository
}
