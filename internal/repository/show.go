package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/St1cky1/vfx-tracker/internal/entity"
)

type ShowRepository struct {
	db *pgxpool.Pool
}

func NewShowRepository(db *pgxpool.Pool) *ShowRepository {
	return &ShowRepository{db: db}
}

var _ IShowRepository = (*ShowRepository)(nil)

const showColumns = `id, name, client, status, start_date, end_date, created_at, updated_at`

func scanShow(src scanTarget) (*entity.Show, error) {
	var s entity.Show
	if err := src.Scan(&s.ID, &s.Name, &s.Client, &s.Status, &s.StartDate, &s.EndDate, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, translateError(err)
	}
	return &s, nil
}

func (r *ShowRepository) Create(ctx context.Context, show *entity.Show) error {
	if show.ID == uuid.Nil {
		show.ID = uuid.New()
	}
	query := `
	INSERT INTO shows (id, name, client, status, start_date, end_date, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, CURRENT_TIMESTAMP))
	RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		show.ID, show.Name, show.Client, show.Status, show.StartDate, show.EndDate, nullableTime(show.CreatedAt),
	).Scan(&show.CreatedAt, &show.UpdatedAt)
	return translateError(err)
}

func (r *ShowRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Show, error) {
	query := `SELECT ` + showColumns + ` FROM shows WHERE id = $1`
	return scanShow(r.db.QueryRow(ctx, query, id))
}

func (r *ShowRepository) Update(ctx context.Context, show *entity.Show) error {
	query := `
	UPDATE shows
	SET name = $2, client = $3, status = $4, start_date = $5, end_date = $6, updated_at = CURRENT_TIMESTAMP
	WHERE id = $1
	RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		show.ID, show.Name, show.Client, show.Status, show.StartDate, show.EndDate,
	).Scan(&show.UpdatedAt)
	return translateError(err)
}

func (r *ShowRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM shows WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	return ensureAffected(tag)
}

func (r *ShowRepository) List(ctx context.Context) ([]entity.Show, error) {
	rows, err := r.db.Query(ctx, `SELECT `+showColumns+` FROM shows ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shows []entity.Show
	for rows.Next() {
		s, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		shows = append(shows, *s)
	}
	return shows, rows.Err()
}
