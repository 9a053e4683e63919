package usecase

import (
	"context"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/snapshot"
)

// CascadeLogger records a hierarchical delete: the parent entry first, with the
// whole nested snapshot, then one cascadeFrom entry per descendant carrying
// its own snapshot and a descriptive lineage string.
type CascadeLogger struct {
	recorder *Recorder
}

func NewCascadeLogger(recorder *Recorder) *CascadeLogger {
	return &CascadeLogger{recorder: recorder}
}

func showLineage(name string) string {
	return "Show: " + name
}

func shotLineage(prefix, name string) string {
	if prefix == "" {
		return "Shot: " + name
	}
	return prefix + " > Shot: " + name
}

func entryID(e *entity.ChangeLogEntry) *int64 {
	if e == nil {
		return nil
	}
	id := e.ID
	return &id
}

// LogShowDelete writes 1 + len(shots) + len(all tasks) entries.
func (c *CascadeLogger) LogShowDelete(ctx context.Context, actor entity.Actor, snap *snapshot.ShowSnapshot) []entity.ChangeLogEntry {
	var written []entity.ChangeLogEntry
	parent := c.recorder.RecordDelete(ctx, actor, snap, DeleteOptions{})
	if parent != nil {
		written = append(written, *parent)
	}
	lineage := showLineage(snap.Show.Name)
	for i := range snap.Shots {
		written = append(written, c.logShot(ctx, actor, &snap.Shots[i], lineage, entryID(parent))...)
	}
	return written
}

// LogShotDelete records a directly deleted shot. showName, when known, is used
// as the lineage prefix of the task entries.
func (c *CascadeLogger) LogShotDelete(ctx context.Context, actor entity.Actor, snap *snapshot.ShotSnapshot, showName string) []entity.ChangeLogEntry {
	var written []entity.ChangeLogEntry
	parent := c.recorder.RecordDelete(ctx, actor, snap, DeleteOptions{})
	if parent != nil {
		written = append(written, *parent)
	}
	prefix := ""
	if showName != "" {
		prefix = showLineage(showName)
	}
	written = append(written, c.logTasks(ctx, actor, snap, shotLineage(prefix, snap.Shot.Name), entryID(parent))...)
	return written
}

func (c *CascadeLogger) logShot(ctx context.Context, actor entity.Actor, snap *snapshot.ShotSnapshot, lineage string, parentID *int64) []entity.ChangeLogEntry {
	var written []entity.ChangeLogEntry
	l := lineage
	shotEntry := c.recorder.RecordDelete(ctx, actor, snap, DeleteOptions{Lineage: &l, ParentEntryID: parentID})
	if shotEntry != nil {
		written = append(written, *shotEntry)
	}
	written = append(written, c.logTasks(ctx, actor, snap, shotLineage(lineage, snap.Shot.Name), entryID(shotEntry))...)
	return written
}

func (c *CascadeLogger) logTasks(ctx context.Context, actor entity.Actor, snap *snapshot.ShotSnapshot, lineage string, parentID *int64) []entity.ChangeLogEntry {
	var written []entity.ChangeLogEntry
	for i := range snap.Tasks {
		l := lineage
		e := c.recorder.RecordDelete(ctx, actor, &snapshot.TaskSnapshot{Task: snap.Tasks[i]}, DeleteOptions{Lineage: &l, ParentEntryID: parentID})
		if e != nil {
			written = append(written, *e)
		}
	}
	return written
}
