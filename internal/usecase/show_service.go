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

const defaultShowStatus = "Active"

type ShowService struct {
	store    repository.Store
	recorder *Recorder
	cascade  *CascadeLogger
}

func NewShowService(store repository.Store, recorder *Recorder) *ShowService {
	return &ShowService{
		store:    store,
		recorder: recorder,
		cascade:  NewCascadeLogger(recorder),
	}
}

func (s *ShowService) CreateShow(ctx context.Context, req *entity.CreateShowRequest, actor entity.Actor) (*entity.Show, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, entity.Validationf("show name is required")
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = defaultShowStatus
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, entity.Validationf("endDate is before startDate")
	}

	show := &entity.Show{
		Name:      name,
		Client:    strings.TrimSpace(req.Client),
		Status:    status,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if req.ID != nil {
		show.ID = *req.ID
	}
	if err := s.store.Shows.Create(ctx, show); err != nil {
		return nil, err
	}

	s.recorder.RecordCreate(ctx, actor, &snapshot.ShowSnapshot{Show: *show, Shots: []snapshot.ShotSnapshot{}})
	return show, nil
}

func (s *ShowService) GetShow(ctx context.Context, id uuid.UUID) (*entity.Show, error) {
	show, err := s.store.Shows.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, entity.NotFoundf("show %s", id)
		}
		return nil, err
	}
	return show, nil
}

func (s *ShowService) ListShows(ctx context.Context) ([]entity.Show, error) {
	return s.store.Shows.List(ctx)
}

func (s *ShowService) UpdateShow(ctx context.Context, id uuid.UUID, patch entity.ShowPatch, actor entity.Actor) (*entity.Show, error) {
	if patch.Empty() {
		return nil, entity.ErrNoFieldsToUpdate
	}
	before, err := s.GetShow(ctx, id)
	if err != nil {
		return nil, err
	}
	after := *before

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, entity.Validationf("show name cannot be empty")
		}
		after.Name = name
	}
	if patch.Client != nil {
		after.Client = strings.TrimSpace(*patch.Client)
	}
	if patch.Status != nil {
		status := strings.TrimSpace(*patch.Status)
		if status == "" {
			return nil, entity.Validationf("show status cannot be empty")
		}
		after.Status = status
	}
	if patch.StartDate != nil {
		after.StartDate = patch.StartDate
	}
	if patch.EndDate != nil {
		after.EndDate = patch.EndDate
	}
	if after.StartDate != nil && after.EndDate != nil && after.EndDate.Before(*after.StartDate) {
		return nil, entity.Validationf("endDate is before startDate")
	}

	if len(Diff(before, &after)) == 0 {
		return before, nil
	}
	if err := s.store.Shows.Update(ctx, &after); err != nil {
		return nil, fmt.Errorf("update show %s: %w", id, err)
	}
	s.recorder.RecordUpdate(ctx, actor, before, &after)
	return &after, nil
}

// DeleteShow removes the show with all of its shots and tasks. The full tree
// is captured before anything is removed so the log can restore it.
func (s *ShowService) DeleteShow(ctx context.Context, id uuid.UUID, actor entity.Actor) error {
	show, err := s.GetShow(ctx, id)
	if err != nil {
		return err
	}

	snap, err := snapshot.CaptureShow(ctx, treeSource{shots: s.store.Shots, tasks: s.store.Tasks}, show)
	if err != nil {
		return fmt.Errorf("capture show %s: %w", id, err)
	}

	removed, err := treeRemover{store: s.store}.removeShow(ctx, snap)
	if err != nil {
		s.cascade.logPartial(ctx, actor, removed)
		return err
	}

	s.cascade.LogShowDelete(ctx, actor, snap)
	return nil
}
