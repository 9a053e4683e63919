package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/repository"
)

func TestCreateKeepsGivenID(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()

	id := uuid.New()
	show := &entity.Show{ID: id, Name: "Nebula"}
	require.NoError(t, repos.Shows.Create(ctx, show))
	assert.Equal(t, id, show.ID)
	assert.False(t, show.CreatedAt.IsZero())

	err := repos.Shows.Create(ctx, &entity.Show{ID: id, Name: "Again"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestChildRequiresParent(t *testing.T) {
	repos := NewStore().Repositories()

	err := repos.Shots.Create(context.Background(), &entity.Shot{ShowID: uuid.New(), Name: "NEB_010"})
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestDeleteRefusesParentWithChildren(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()

	show := &entity.Show{Name: "Nebula"}
	require.NoError(t, repos.Shows.Create(ctx, show))
	require.NoError(t, repos.Shots.Create(ctx, &entity.Shot{ShowID: show.ID, Name: "NEB_010"}))

	assert.ErrorIs(t, repos.Shows.Delete(ctx, show.ID), entity.ErrValidation)
	assert.ErrorIs(t, repos.Shows.Delete(ctx, uuid.New()), repository.ErrNotFound)
}

func TestChangeLogListNewestFirstAndCAS(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	target := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, repos.ChangeLog.Create(ctx, &entity.ChangeLogEntry{
			EntityType: entity.EntityTask, EntityID: target, ActionType: entity.ActionUpdate,
		}))
	}
	require.NoError(t, repos.ChangeLog.Create(ctx, &entity.ChangeLogEntry{
		EntityType: entity.EntityShow, EntityID: uuid.New(), ActionType: entity.ActionCreate,
	}))

	taskType := entity.EntityTask
	entries, err := repos.ChangeLog.List(ctx, entity.ChangeLogFilter{EntityType: &taskType, Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(3), entries[0].ID)
	assert.Equal(t, int64(2), entries[1].ID)

	ok, err := repos.ChangeLog.MarkReversed(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repos.ChangeLog.MarkReversed(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repos.ChangeLog.MarkReversed(ctx, 99)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
