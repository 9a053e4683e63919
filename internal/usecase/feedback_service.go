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

type FeedbackService struct {
	feedbackRepo repository.IFeedbackRepository
	recorder     *Recorder
}

func NewFeedbackService(feedbackRepo repository.IFeedbackRepository, recorder *Recorder) *FeedbackService {
	return &FeedbackService{feedbackRepo: feedbackRepo, recorder: recorder}
}

func validFeedbackStatus(s entity.FeedbackStatus) bool {
	return s == entity.FeedbackOpen || s == entity.FeedbackAddressed
}

func (s *FeedbackService) CreateFeedback(ctx context.Context, req *entity.CreateFeedbackRequest, actor entity.Actor) (*entity.Feedback, error) {
	author := strings.TrimSpace(req.Author)
	if author == "" {
		author = actor.DisplayName()
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, entity.Validationf("feedback body is required")
	}
	status := req.Status
	if status == "" {
		status = entity.FeedbackOpen
	}
	if !validFeedbackStatus(status) {
		return nil, entity.Validationf("unknown feedback status %q", status)
	}

	fb := &entity.Feedback{
		TaskID:  req.TaskID,
		Author:  author,
		Body:    body,
		Status:  status,
		Version: req.Version,
	}
	if req.ID != nil {
		fb.ID = *req.ID
	}
	if err := s.feedbackRepo.Create(ctx, fb); err != nil {
		return nil, err
	}

	s.recorder.RecordCreate(ctx, actor, &snapshot.FeedbackSnapshot{Feedback: *fb})
	return fb, nil
}

func (s *FeedbackService) GetFeedback(ctx context.Context, id uuid.UUID) (*entity.Feedback, error) {
	fb, err := s.feedbackRepo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, entity.NotFoundf("feedback %s", id)
		}
		return nil, err
	}
	return fb, nil
}

func (s *FeedbackService) ListFeedback(ctx context.Context, taskID uuid.UUID) ([]entity.Feedback, error) {
	return s.feedbackRepo.ListByTask(ctx, taskID)
}

func (s *FeedbackService) UpdateFeedback(ctx context.Context, id uuid.UUID, patch entity.FeedbackPatch, actor entity.Actor) (*entity.Feedback, error) {
	if patch.Empty() {
		return nil, entity.ErrNoFieldsToUpdate
	}
	before, err := s.GetFeedback(ctx, id)
	if err != nil {
		return nil, err
	}
	after := *before

	if patch.TaskID != nil {
		taskID := *patch.TaskID
		after.TaskID = &taskID
	}
	if patch.Body != nil {
		body := strings.TrimSpace(*patch.Body)
		if body == "" {
			return nil, entity.Validationf("feedback body cannot be empty")
		}
		after.Body = body
	}
	if patch.Status != nil {
		if !validFeedbackStatus(*patch.Status) {
			return nil, entity.Validationf("unknown feedback status %q", *patch.Status)
		}
		after.Status = *patch.Status
	}
	if patch.Version != nil {
		v := strings.TrimSpace(*patch.Version)
		if v == "" {
			after.Version = nil
		} else {
			after.Version = &v
		}
	}

	if len(Diff(before, &after)) == 0 {
		return before, nil
	}
	if err := s.feedbackRepo.Update(ctx, &after); err != nil {
		return nil, fmt.Errorf("update feedback %s: %w", id, err)
	}
	s.recorder.RecordUpdate(ctx, actor, before, &after)
	return &after, nil
}

func (s *FeedbackService) DeleteFeedback(ctx context.Context, id uuid.UUID, actor entity.Actor) error {
	fb, err := s.GetFeedback(ctx, id)
	if err != nil {
		return err
	}
	if err := s.feedbackRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete feedback %s: %w", id, err)
	}
	s.recorder.RecordDelete(ctx, actor, &snapshot.FeedbackSnapshot{Feedback: *fb}, DeleteOptions{})
	return nil
}
