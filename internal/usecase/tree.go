package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/repository"
	"github.com/St1cky1/vfx-tracker/internal/snapshot"
)

// treeSource adapts the shot and task repositories to snapshot.Source.
type treeSource struct {
	shots repository.IShotRepository
	tasks repository.ITaskRepository
}

func (s treeSource) ShotsByShow(ctx context.Context, showID uuid.UUID) ([]entity.Shot, error) {
	return s.shots.ListByShow(ctx, showID)
}

func (s treeSource) TasksByShot(ctx context.Context, shotID uuid.UUID) ([]entity.Task, error) {
	return s.tasks.ListByShot(ctx, shotID)
}

// removal is one row actually deleted from the store during a cascade.
type removal struct {
	snap    snapshot.Snapshot
	lineage string
}

// treeRemover deletes hierarchies bottom-up. When a delete fails part way it
// reports what it already removed so those rows can still be logged.
type treeRemover struct {
	store repository.Store
}

func (r treeRemover) removeShot(ctx context.Context, snap *snapshot.ShotSnapshot, lineage string) ([]removal, error) {
	var removed []removal
	taskLineage := shotLineage(lineage, snap.Shot.Name)
	for i := range snap.Tasks {
		task := snap.Tasks[i]
		if err := r.store.Tasks.Delete(ctx, task.ID); err != nil && !repository.IsNotFound(err) {
			return removed, fmt.Errorf("delete task %s: %w", task.ID, err)
		}
		removed = append(removed, removal{snap: &snapshot.TaskSnapshot{Task: task}, lineage: taskLineage})
	}
	if err := r.store.Shots.Delete(ctx, snap.Shot.ID); err != nil {
		return removed, fmt.Errorf("delete shot %s: %w", snap.Shot.ID, err)
	}
	return removed, nil
}

func (r treeRemover) removeShow(ctx context.Context, snap *snapshot.ShowSnapshot) ([]removal, error) {
	var removed []removal
	lineage := showLineage(snap.Show.Name)
	for i := range snap.Shots {
		shotSnap := &snap.Shots[i]
		tasks, err := r.removeShot(ctx, shotSnap, lineage)
		removed = append(removed, tasks...)
		if err != nil {
			return removed, err
		}
		removed = append(removed, removal{snap: shotSnap, lineage: lineage})
	}
	if err := r.store.Shows.Delete(ctx, snap.Show.ID); err != nil {
		return removed, fmt.Errorf("delete show %s: %w", snap.Show.ID, err)
	}
	return removed, nil
}

// logPartial records rows removed by an interrupted cascade. There is no
// parent entry because the parent still exists.
func (c *CascadeLogger) logPartial(ctx context.Context, actor entity.Actor, removed []removal) {
	for _, rm := range removed {
		l := rm.lineage
		c.recorder.RecordDelete(ctx, actor, rm.snap, DeleteOptions{Lineage: &l})
	}
}
