package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/St1cky1/vfx-tracker/internal/entity"
)

type TaskRepository struct {
	db *pgxpool.Pool
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{
		db: db,
	}
}

var _ ITaskRepository = (*TaskRepository)(nil)

const taskColumns = `id, shot_id, department, status, lead_name, bid_days, internal_due_date, client_due_date,
	delivered_version, delivered_date, notes, created_at, updated_at`

func scanTask(src scanTarget) (*entity.Task, error) {
	var t entity.Task
	var status string
	err := src.Scan(
		&t.ID,
		&t.ShotID,
		&t.Department,
		&status,
		&t.LeadName,
		&t.BidDays,
		&t.InternalDueDate,
		&t.ClientDueDate,
		&t.DeliveredVersion,
		&t.DeliveredDate,
		&t.Notes,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	t.Status = entity.TaskStatus(status)
	return &t, nil
}

func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	query := `
	INSERT INTO tasks (id, shot_id, department, status, lead_name, bid_days, internal_due_date, client_due_date,
		delivered_version, delivered_date, notes, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, CURRENT_TIMESTAMP))
	RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		task.ID,
		task.ShotID,
		task.Department,
		string(task.Status),
		task.LeadName,
		task.BidDays,
		task.InternalDueDate,
		task.ClientDueDate,
		task.DeliveredVersion,
		task.DeliveredDate,
		task.Notes,
		nullableTime(task.CreatedAt),
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	return translateError(err)
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Task, error) {
	return scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// Update writes every tracked column of the task.
func (r *TaskRepository) Update(ctx context.Context, task *entity.Task) error {
	query := `
	UPDATE tasks
	SET department = $2, status = $3, lead_name = $4, bid_days = $5, internal_due_date = $6,
	    client_due_date = $7, delivered_version = $8, delivered_date = $9, notes = $10,
	    updated_at = CURRENT_TIMESTAMP
	WHERE id = $1
	RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		task.ID,
		task.Department,
		string(task.Status),
		task.LeadName,
		task.BidDays,
		task.InternalDueDate,
		task.ClientDueDate,
		task.DeliveredVersion,
		task.DeliveredDate,
		task.Notes,
	).Scan(&task.UpdatedAt)
	return translateError(err)
}

func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	return ensureAffected(tag)
}

func (r *TaskRepository) ListByShot(ctx context.Context, shotID uuid.UUID) ([]entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE shot_id = $1 ORDER BY department, created_at`
	rows, err := r.db.Query(ctx, query, shotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []entity.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}
