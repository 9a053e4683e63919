package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/St1cky1/vfx-tracker/internal/entity"
)

type FeedbackRepository struct {
	db *pgxpool.Pool
}

func NewFeedbackRepository(db *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

var _ IFeedbackRepository = (*FeedbackRepository)(nil)

const feedbackColumns = `id, task_id, author, body, status, version, created_at, updated_at`

func scanFeedback(src scanTarget) (*entity.Feedback, error) {
	var f entity.Feedback
	var status string
	if err := src.Scan(&f.ID, &f.TaskID, &f.Author, &f.Body, &status, &f.Version, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, translateError(err)
	}
	f.Status = entity.FeedbackStatus(status)
	return &f, nil
}

func (r *FeedbackRepository) Create(ctx context.Context, f *entity.Feedback) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	query := `
	INSERT INTO feedback (id, task_id, author, body, status, version, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, CURRENT_TIMESTAMP))
	RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		f.ID, f.TaskID, f.Author, f.Body, string(f.Status), f.Version, nullableTime(f.CreatedAt),
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	return translateError(err)
}

func (r *FeedbackRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Feedback, error) {
	return scanFeedback(r.db.QueryRow(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE id = $1`, id))
}

func (r *FeedbackRepository) Update(ctx context.Context, f *entity.Feedback) error {
	query := `
	UPDATE feedback
	SET task_id = $2, author = $3, body = $4, status = $5, version = $6, updated_at = CURRENT_TIMESTAMP
	WHERE id = $1
	RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, f.ID, f.TaskID, f.Author, f.Body, string(f.Status), f.Version).Scan(&f.UpdatedAt)
	return translateError(err)
}

func (r *FeedbackRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM feedback WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	return ensureAffected(tag)
}

func (r *FeedbackRepository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]entity.Feedback, error) {
	rows, err := r.db.Query(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE task_id = $1 ORDER BY created_at`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Feedback
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}
