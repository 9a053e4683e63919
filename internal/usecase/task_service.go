package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/repository"
	"github.com/St1cky1/vfx-tracker/internal/snapshot"
	"github.com/St1cky1/vfx-tracker/internal/workflow"
)

type TaskService struct {
	taskRepo repository.ITaskRepository
	shotRepo repository.IShotRepository
	recorder *Recorder
	now      func() time.Time
}

func NewTaskService(
	taskRepo repository.ITaskRepository,
	shotRepo repository.IShotRepository,
	recorder *Recorder,
) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		shotRepo: shotRepo,
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *TaskService) CreateTask(ctx context.Context, req *entity.CreateTaskRequest, actor entity.Actor) (*entity.Task, error) {
	department := strings.TrimSpace(req.Department)
	if department == "" {
		return nil, entity.Validationf("department is required")
	}
	status := req.Status
	if status == "" {
		status = entity.StatusYTS
	}
	if !status.Valid() {
		return nil, entity.Validationf("unknown task status %q", status)
	}

	// 1. Parent shot must exist
	if _, err := s.shotRepo.GetByID(ctx, req.ShotID); err != nil {
		if repository.IsNotFound(err) {
			return nil, entity.NotFoundf("shot %s", req.ShotID)
		}
		return nil, err
	}

	task := &entity.Task{
		ShotID:          req.ShotID,
		Department:      department,
		Status:          status,
		LeadName:        req.LeadName,
		BidDays:         req.BidDays,
		InternalDueDate: req.InternalDueDate,
		ClientDueDate:   req.ClientDueDate,
		Notes:           req.Notes,
	}
	if req.ID != nil {
		task.ID = *req.ID
	}

	// 2. Persist
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}

	// 3. Log
	s.recorder.RecordCreate(ctx, actor, &snapshot.TaskSnapshot{Task: *task})

	return task, nil
}

func (s *TaskService) GetTask(ctx context.Context, id uuid.UUID) (*entity.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, entity.NotFoundf("task %s", id)
		}
		return nil, err
	}
	return task, nil
}

// UpdateTask applies a partial update. A status change is checked against the
// transition table before anything is written; entering AWF also bumps the
// delivered version and stamps the delivery date. Every changed field gets
// its own UPDATE entry.
func (s *TaskService) UpdateTask(ctx context.Context, id uuid.UUID, patch entity.TaskPatch, actor entity.Actor) (*entity.Task, error) {
	if patch.Empty() {
		return nil, entity.ErrNoFieldsToUpdate
	}

	// 1. Current state
	before, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	after := *before

	// 2. Status transition and its side effects
	versionHandled := false
	if patch.Status != nil && *patch.Status != before.Status {
		if err := workflow.Validate(before.Status, *patch.Status); err != nil {
			return nil, err
		}
		fx := workflow.Apply(before, *patch.Status, patch.DeliveredVersion, s.now())
		after.Status = *patch.Status
		if fx.DeliveredVersion != nil {
			after.DeliveredVersion = fx.DeliveredVersion
			versionHandled = true
		}
		if fx.DeliveredDate != nil {
			after.DeliveredDate = fx.DeliveredDate
		}
	}

	// 3. Remaining fields
	if patch.DeliveredVersion != nil && !versionHandled {
		v := strings.TrimSpace(*patch.DeliveredVersion)
		if v == "" {
			after.DeliveredVersion = nil
		} else {
			after.DeliveredVersion = &v
		}
	}
	if patch.LeadName != nil {
		lead := strings.TrimSpace(*patch.LeadName)
		if lead == "" {
			after.LeadName = nil
		} else {
			after.LeadName = &lead
		}
	}
	if patch.BidDays != nil {
		if *patch.BidDays < 0 {
			return nil, entity.Validationf("bidDays cannot be negative")
		}
		after.BidDays = patch.BidDays
	}
	if patch.InternalDueDate != nil {
		after.InternalDueDate = patch.InternalDueDate
	}
	if patch.ClientDueDate != nil {
		after.ClientDueDate = patch.ClientDueDate
	}
	if patch.Notes != nil {
		after.Notes = *patch.Notes
	}

	if len(Diff(before, &after)) == 0 {
		return before, nil
	}

	// 4. Persist, then log per field
	if err := s.taskRepo.Update(ctx, &after); err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	s.recorder.RecordUpdate(ctx, actor, before, &after)

	return &after, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, id uuid.UUID, actor entity.Actor) error {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if err := s.taskRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}

	s.recorder.RecordDelete(ctx, actor, &snapshot.TaskSnapshot{Task: *task}, DeleteOptions{})
	return nil
}

func (s *TaskService) ListTasks(ctx context.Context, shotID uuid.UUID) ([]entity.Task, error) {
	return s.taskRepo.ListByShot(ctx, shotID)
}
