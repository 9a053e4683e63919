// Package memory provides an in-memory implementation of the entity store and
// change log used by tests and ephemeral environments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/repository"
)

// Store keeps every entity in maps guarded by one mutex. Reads return copies.
type Store struct {
	mu       sync.RWMutex
	shows    map[uuid.UUID]entity.Show
	shots    map[uuid.UUID]entity.Shot
	tasks    map[uuid.UUID]entity.Task
	feedback map[uuid.UUID]entity.Feedback
	entries  []entity.ChangeLogEntry
	seq      int64
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		shows:    make(map[uuid.UUID]entity.Show),
		shots:    make(map[uuid.UUID]entity.Shot),
		tasks:    make(map[uuid.UUID]entity.Task),
		feedback: make(map[uuid.UUID]entity.Feedback),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Store {
	return repository.Store{
		Shows:     showRepo{s},
		Shots:     shotRepo{s},
		Tasks:     taskRepo{s},
		Feedback:  feedbackRepo{s},
		ChangeLog: changeLogRepo{s},
	}
}

// Entries returns every change log entry in insertion order.
func (s *Store) Entries() []entity.ChangeLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.ChangeLogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func stamp(created *time.Time, updated *time.Time, now time.Time) {
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

type showRepo struct{ s *Store }

var _ repository.IShowRepository = showRepo{}

func (r showRepo) Create(_ context.Context, show *entity.Show) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if show.ID == uuid.Nil {
		show.ID = uuid.New()
	}
	if _, ok := r.s.shows[show.ID]; ok {
		return repository.ErrDuplicate
	}
	stamp(&show.CreatedAt, &show.UpdatedAt, r.s.now())
	r.s.shows[show.ID] = *show
	return nil
}

func (r showRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Show, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	show, ok := r.s.shows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &show, nil
}

func (r showRepo) Update(_ context.Context, show *entity.Show) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.shows[show.ID]; !ok {
		return repository.ErrNotFound
	}
	show.UpdatedAt = r.s.now()
	r.s.shows[show.ID] = *show
	return nil
}

func (r showRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.shows[id]; !ok {
		return repository.ErrNotFound
	}
	for _, shot := range r.s.shots {
		if shot.ShowID == id {
			return entity.Validationf("show %s still has shots", id)
		}
	}
	delete(r.s.shows, id)
	return nil
}

func (r showRepo) List(_ context.Context) ([]entity.Show, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.Show, 0, len(r.s.shows))
	for _, show := range r.s.shows {
		out = append(out, show)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type shotRepo struct{ s *Store }

var _ repository.IShotRepository = shotRepo{}

func (r shotRepo) Create(_ context.Context, shot *entity.Shot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if shot.ID == uuid.Nil {
		shot.ID = uuid.New()
	}
	if _, ok := r.s.shots[shot.ID]; ok {
		return repository.ErrDuplicate
	}
	if _, ok := r.s.shows[shot.ShowID]; !ok {
		return entity.Validationf("show %s does not exist", shot.ShowID)
	}
	stamp(&shot.CreatedAt, &shot.UpdatedAt, r.s.now())
	r.s.shots[shot.ID] = *shot
	return nil
}

func (r shotRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Shot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	shot, ok := r.s.shots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &shot, nil
}

func (r shotRepo) Update(_ context.Context, shot *entity.Shot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.shots[shot.ID]; !ok {
		return repository.ErrNotFound
	}
	shot.UpdatedAt = r.s.now()
	r.s.shots[shot.ID] = *shot
	return nil
}

func (r shotRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.shots[id]; !ok {
		return repository.ErrNotFound
	}
	for _, task := range r.s.tasks {
		if task.ShotID == id {
			return entity.Validationf("shot %s still has tasks", id)
		}
	}
	delete(r.s.shots, id)
	return nil
}

func (r shotRepo) ListByShow(_ context.Context, showID uuid.UUID) ([]entity.Shot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []entity.Shot
	for _, shot := range r.s.shots {
		if shot.ShowID == showID {
			out = append(out, shot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type taskRepo struct{ s *Store }

var _ repository.ITaskRepository = taskRepo{}

func (r taskRepo) Create(_ context.Context, task *entity.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if _, ok := r.s.tasks[task.ID]; ok {
		return repository.ErrDuplicate
	}
	if _, ok := r.s.shots[task.ShotID]; !ok {
		return entity.Validationf("shot %s does not exist", task.ShotID)
	}
	stamp(&task.CreatedAt, &task.UpdatedAt, r.s.now())
	r.s.tasks[task.ID] = *task
	return nil
}

func (r taskRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	task, ok := r.s.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &task, nil
}

func (r taskRepo) Update(_ context.Context, task *entity.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tasks[task.ID]; !ok {
		return repository.ErrNotFound
	}
	task.UpdatedAt = r.s.now()
	r.s.tasks[task.ID] = *task
	return nil
}

func (r taskRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tasks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

func (r taskRepo) ListByShot(_ context.Context, shotID uuid.UUID) ([]entity.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []entity.Task
	for _, task := range r.s.tasks {
		if task.ShotID == shotID {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Department != out[j].Department {
			return out[i].Department < out[j].Department
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

type feedbackRepo struct{ s *Store }

var _ repository.IFeedbackRepository = feedbackRepo{}

func (r feedbackRepo) Create(_ context.Context, f *entity.Feedback) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if _, ok := r.s.feedback[f.ID]; ok {
		return repository.ErrDuplicate
	}
	stamp(&f.CreatedAt, &f.UpdatedAt, r.s.now())
	r.s.feedback[f.ID] = *f
	return nil
}

func (r feedbackRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Feedback, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f, ok := r.s.feedback[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (r feedbackRepo) Update(_ context.Context, f *entity.Feedback) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.feedback[f.ID]; !ok {
		return repository.ErrNotFound
	}
	f.UpdatedAt = r.s.now()
	r.s.feedback[f.ID] = *f
	return nil
}

func (r feedbackRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.feedback[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.feedback, id)
	return nil
}

func (r feedbackRepo) ListByTask(_ context.Context, taskID uuid.UUID) ([]entity.Feedback, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []entity.Feedback
	for _, f := range r.s.feedback {
		if f.TaskID != nil && *f.TaskID == taskID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type changeLogRepo struct{ s *Store }

var _ repository.IChangeLogRepository = changeLogRepo{}

func (r changeLogRepo) Create(_ context.Context, e *entity.ChangeLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.seq++
	e.ID = r.s.seq
	if e.Timestamp.IsZero() {
		e.Timestamp = r.s.now()
	}
	r.s.entries = append(r.s.entries, *e)
	return nil
}

func (r changeLogRepo) GetByID(_ context.Context, id int64) (*entity.ChangeLogEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.entries {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r changeLogRepo) List(_ context.Context, filter entity.ChangeLogFilter) ([]entity.ChangeLogEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.ChangeLogEntry, 0)
	for i := len(r.s.entries) - 1; i >= 0; i-- {
		e := r.s.entries[i]
		if filter.EntityType != nil && e.EntityType != *filter.EntityType {
			continue
		}
		if filter.EntityID != nil && e.EntityID != *filter.EntityID {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r changeLogRepo) MarkReversed(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.entries {
		if r.s.entries[i].ID != id {
			continue
		}
		if r.s.entries[i].IsReversed {
			return false, nil
		}
		r.s.entries[i].IsReversed = true
		return true, nil
	}
	return false, repository.ErrNotFound
}
