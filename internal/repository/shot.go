package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/St1cky1/vfx-tracker/internal/entity"
)

type ShotRepository struct {
	db *pgxpool.Pool
}

func NewShotRepository(db *pgxpool.Pool) *ShotRepository {
	return &ShotRepository{db: db}
}

var _ IShotRepository = (*ShotRepository)(nil)

const shotColumns = `id, show_id, name, description, frame_in, frame_out, status, client_due_date, created_at, updated_at`

func scanShot(src scanTarget) (*entity.Shot, error) {
	var s entity.Shot
	err := src.Scan(&s.ID, &s.ShowID, &s.Name, &s.Description, &s.FrameIn, &s.FrameOut,
		&s.Status, &s.ClientDueDate, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	return &s, nil
}

func (r *ShotRepository) Create(ctx context.Context, shot *entity.Shot) error {
	if shot.ID == uuid.Nil {
		shot.ID = uuid.New()
	}
	query := `
	INSERT INTO shots (id, show_id, name, description, frame_in, frame_out, status, client_due_date, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, CURRENT_TIMESTAMP))
	RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		shot.ID, shot.ShowID, shot.Name, shot.Description, shot.FrameIn, shot.FrameOut,
		shot.Status, shot.ClientDueDate, nullableTime(shot.CreatedAt),
	).Scan(&shot.CreatedAt, &shot.UpdatedAt)
	return translateError(err)
}

func (r *ShotRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Shot, error) {
	return scanShot(r.db.QueryRow(ctx, `SELECT `+shotColumns+` FROM shots WHERE id = $1`, id))
}

func (r *ShotRepository) Update(ctx context.Context, shot *entity.Shot) error {
	query := `
	UPDATE shots
	SET name = $2, description = $3, frame_in = $4, frame_out = $5, status = $6,
	    client_due_date = $7, updated_at = CURRENT_TIMESTAMP
	WHERE id = $1
	RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		shot.ID, shot.Name, shot.Description, shot.FrameIn, shot.FrameOut, shot.Status, shot.ClientDueDate,
	).Scan(&shot.UpdatedAt)
	return translateError(err)
}

func (r *ShotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM shots WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	return ensureAffected(tag)
}

func (r *ShotRepository) ListByShow(ctx context.Context, showID uuid.UUID) ([]entity.Shot, error) {
	rows, err := r.db.Query(ctx, `SELECT `+shotColumns+` FROM shots WHERE show_id = $1 ORDER BY name`, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shots []entity.Shot
	for rows.Next() {
		s, err := scanShot(rows)
		if err != nil {
			return nil, err
		}
		shots = append(shots, *s)
	}
	return shots, rows.Err()
}
