package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/repository"
	"github.com/St1cky1/vfx-tracker/internal/snapshot"
)

const defaultShotStatus = "Active"

type ShotService struct {
	store    repository.Store
	recorder *Recorder
	cascade  *CascadeLogger
}

func NewShotService(store repository.Store, recorder *Recorder) *ShotService {
	return &ShotService{
		store:    store,
		recorder: recorder,
		cascade:  NewCascadeLogger(recorder),
	}
}

func validateFrames(in, out *float64) error {
	if in != nil && *in < 0 {
		return entity.Validationf("frameIn cannot be negative")
	}
	if in != nil && out != nil && *out < *in {
		return entity.Validationf("frameOut is before frameIn")
	}
	return nil
}

func (s *ShotService) CreateShot(ctx context.Context, req *entity.CreateShotRequest, actor entity.Actor) (*entity.Shot, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, entity.Validationf("shot name is required")
	}
	if err := validateFrames(req.FrameIn, req.FrameOut); err != nil {
		return nil, err
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = defaultShotStatus
	}

	if _, err := s.store.Shows.GetByID(ctx, req.ShowID); err != nil {
		if repository.IsNotFound(err) {
			return nil, entity.NotFoundf("show %s", req.ShowID)
		}
		return nil, err
	}

	shot := &entity.Shot{
		ShowID:        req.ShowID,
		Name:          name,
		Description:   req.Description,
		FrameIn:       req.FrameIn,
		FrameOut:      req.FrameOut,
		Status:        status,
		ClientDueDate: req.ClientDueDate,
	}
	if req.ID != nil {
		shot.ID = *req.ID
	}
	if err := s.store.Shots.Create(ctx, shot); err != nil {
		return nil, err
	}

	s.recorder.RecordCreate(ctx, actor, &snapshot.ShotSnapshot{Shot: *shot, Tasks: []entity.Task{}})
	return shot, nil
}

func (s *ShotService) GetShot(ctx context.Context, id uuid.UUID) (*entity.Shot, error) {
	shot, err := s.store.Shots.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, entity.NotFoundf("shot %s", id)
		}
		return nil, err
	}
	return shot, nil
}

func (s *ShotService) ListShots(ctx context.Context, showID uuid.UUID) ([]entity.Shot, error) {
	return s.store.Shots.ListByShow(ctx, showID)
}

func (s *ShotService) UpdateShot(ctx context.Context, id uuid.UUID, patch entity.ShotPatch, actor entity.Actor) (*entity.Shot, error) {
	if patch.Empty() {
		return nil, entity.ErrNoFieldsToUpdate
	}
	before, err := s.GetShot(ctx, id)
	if err != nil {
		return nil, err
	}
	after := *before

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, entity.Validationf("shot name cannot be empty")
		}
		after.Name = name
	}
	if patch.Description != nil {
		after.Description = *patch.Description
	}
	if patch.FrameIn != nil {
		after.FrameIn = patch.FrameIn
	}
	if patch.FrameOut != nil {
		after.FrameOut = patch.FrameOut
	}
	if err := validateFrames(after.FrameIn, after.FrameOut); err != nil {
		return nil, err
	}
	if patch.Status != nil {
		status := strings.TrimSpace(*patch.Status)
		if status == "" {
			return nil, entity.Validationf("shot status cannot be empty")
		}
		after.Status = status
	}
	if patch.ClientDueDate != nil {
		after.ClientDueDate = patch.ClientDueDate
	}

	if len(Diff(before, &after)) == 0 {
		return before, nil
	}
	if err := s.store.Shots.Update(ctx, &after); err != nil {
		return nil, fmt.Errorf("update shot %s: %w", id, err)
	}
	s.recorder.RecordUpdate(ctx, actor, before, &after)
	return &after, nil
}

// DeleteShot removes the shot and its tasks. Task entries are logged with the
// owning show in their lineage when the show can still be read.
func (s *ShotService) DeleteShot(ctx context.Context, id uuid.UUID, actor entity.Actor) error {
	shot, err := s.GetShot(ctx, id)
	if err != nil {
		return err
	}

	snap, err := snapshot.CaptureShot(ctx, treeSource{shots: s.store.Shots, tasks: s.store.Tasks}, shot)
	if err != nil {
		return fmt.Errorf("capture shot %s: %w", id, err)
	}

	showName := ""
	if show, err := s.store.Shows.GetByID(ctx, shot.ShowID); err == nil {
		showName = show.Name
	}
	prefix := ""
	if showName != "" {
		prefix = showLineage(showName)
	}

	removed, err := treeRemover{store: s.store}.removeShot(ctx, snap, prefix)
	if err != nil {
		s.cascade.logPartial(ctx, actor, removed)
		return err
	}

	s.cascade.LogShotDelete(ctx, actor, snap, showName)
	return nil
}
