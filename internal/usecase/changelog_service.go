package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/repository"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ChangeLogService is the read side of the change log. Entries are enriched
// with show and shot names where those rows still exist.
type ChangeLogService struct {
	store        repository.Store
	defaultLimit int
	maxLimit     int
}

func NewChangeLogService(store repository.Store, defaultLimit, maxLimit int) *ChangeLogService {
	if defaultLimit <= 0 {
		defaultLimit = DefaultListLimit
	}
	if maxLimit <= 0 {
		maxLimit = MaxListLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &ChangeLogService{store: store, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

func (s *ChangeLogService) normalizeLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}

// List returns entries newest first.
func (s *ChangeLogService) List(ctx context.Context, filter entity.ChangeLogFilter) ([]entity.EnrichedEntry, error) {
	filter.Limit = s.normalizeLimit(filter.Limit)
	entries, err := s.store.ChangeLog.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	names := newNameResolver(s.store)
	out := make([]entity.EnrichedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, names.enrich(ctx, e))
	}
	return out, nil
}

func (s *ChangeLogService) Get(ctx context.Context, id int64) (*entity.EnrichedEntry, error) {
	e, err := s.store.ChangeLog.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, entity.NotFoundf("change log entry %d", id)
		}
		return nil, err
	}
	enriched := newNameResolver(s.store).enrich(ctx, *e)
	return &enriched, nil
}

// nameResolver caches lookups for the duration of one listing. Lookup errors
// leave the name nil.
type nameResolver struct {
	store repository.Store
	shows map[uuid.UUID]*entity.Show
	shots map[uuid.UUID]*entity.Shot
	tasks map[uuid.UUID]*entity.Task
}

func newNameResolver(store repository.Store) *nameResolver {
	return &nameResolver{
		store: store,
		shows: make(map[uuid.UUID]*entity.Show),
		shots: make(map[uuid.UUID]*entity.Shot),
		tasks: make(map[uuid.UUID]*entity.Task),
	}
}

func (n *nameResolver) show(ctx context.Context, id uuid.UUID) *entity.Show {
	if v, ok := n.shows[id]; ok {
		return v
	}
	v, err := n.store.Shows.GetByID(ctx, id)
	if err != nil {
		v = nil
	}
	n.shows[id] = v
	return v
}

func (n *nameResolver) shot(ctx context.Context, id uuid.UUID) *entity.Shot {
	if v, ok := n.shots[id]; ok {
		return v
	}
	v, err := n.store.Shots.GetByID(ctx, id)
	if err != nil {
		v = nil
	}
	n.shots[id] = v
	return v
}

func (n *nameResolver) task(ctx context.Context, id uuid.UUID) *entity.Task {
	if v, ok := n.tasks[id]; ok {
		return v
	}
	v, err := n.store.Tasks.GetByID(ctx, id)
	if err != nil {
		v = nil
	}
	n.tasks[id] = v
	return v
}

func (n *nameResolver) fromShot(ctx context.Context, out *entity.EnrichedEntry, shotID uuid.UUID) {
	shot := n.shot(ctx, shotID)
	if shot == nil {
		return
	}
	name := shot.Name
	out.ShotName = &name
	if show := n.show(ctx, shot.ShowID); show != nil {
		showName := show.Name
		out.ShowName = &showName
	}
}

func (n *nameResolver) enrich(ctx context.Context, e entity.ChangeLogEntry) entity.EnrichedEntry {
	out := entity.EnrichedEntry{ChangeLogEntry: e}
	switch e.EntityType {
	case entity.EntityShow:
		if show := n.show(ctx, e.EntityID); show != nil {
			name := show.Name
			out.ShowName = &name
		}
	case entity.EntityShot:
		n.fromShot(ctx, &out, e.EntityID)
	case entity.EntityTask:
		if task := n.task(ctx, e.EntityID); task != nil {
			n.fromShot(ctx, &out, task.ShotID)
		}
	case entity.EntityFeedback:
		fb, err := n.store.Feedback.GetByID(ctx, e.EntityID)
		if err != nil || fb.TaskID == nil {
			break
		}
		if task := n.task(ctx, *fb.TaskID); task != nil {
			n.fromShot(ctx, &out, task.ShotID)
		}
	}
	return out
}
