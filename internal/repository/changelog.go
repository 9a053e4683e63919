package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/St1cky1/vfx-tracker/internal/entity"
)

const changeLogDefaultLimit = 50

type ChangeLogRepository struct {
	db *pgxpool.Pool
}

func NewChangeLogRepository(db *pgxpool.Pool) *ChangeLogRepository {
	return &ChangeLogRepository{db: db}
}

var _ IChangeLogRepository = (*ChangeLogRepository)(nil)

const changeLogColumns = `
	id,
	entity_type,
	entity_id,
	action_type,
	field_name,
	old_value,
	new_value,
	full_entity_data,
	parent_entry_id,
	reverses_entry_id,
	user_name,
	user_id,
	created_at,
	is_reversed
`

func (r *ChangeLogRepository) Create(ctx context.Context, e *entity.ChangeLogEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var fullData []byte
	if len(e.FullEntityData) > 0 {
		fullData = e.FullEntityData
	}

	query := `
		INSERT INTO change_log (
			entity_type,
			entity_id,
			action_type,
			field_name,
			old_value,
			new_value,
			full_entity_data,
			parent_entry_id,
			reverses_entry_id,
			user_name,
			user_id,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	return r.db.QueryRow(
		ctx,
		query,
		string(e.EntityType),
		e.EntityID,
		string(e.ActionType),
		e.FieldName,
		e.OldValue,
		e.NewValue,
		fullData,
		e.ParentEntryID,
		e.ReversesEntryID,
		e.UserName,
		e.UserID,
		e.Timestamp,
	).Scan(&e.ID)
}

func (r *ChangeLogRepository) GetByID(ctx context.Context, id int64) (*entity.ChangeLogEntry, error) {
	query := `SELECT ` + changeLogColumns + ` FROM change_log WHERE id = $1`
	return scanChangeLogEntry(r.db.QueryRow(ctx, query, id))
}

func (r *ChangeLogRepository) List(ctx context.Context, filter entity.ChangeLogFilter) ([]entity.ChangeLogEntry, error) {
	args := make([]any, 0, 3)
	conditions := make([]string, 0, 2)

	if filter.EntityType != nil {
		args = append(args, string(*filter.EntityType))
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if filter.EntityID != nil {
		args = append(args, *filter.EntityID)
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", len(args)))
	}

	var builder strings.Builder
	builder.WriteString("SELECT ")
	builder.WriteString(changeLogColumns)
	builder.WriteString(" FROM change_log")
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}

	args = append(args, normalizeLimit(filter.Limit))
	builder.WriteString(fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args)))

	rows, err := r.db.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]entity.ChangeLogEntry, 0)
	for rows.Next() {
		e, err := scanChangeLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// MarkReversed flips is_reversed in a single conditional update so two
// concurrent undo calls cannot both claim the entry.
func (r *ChangeLogRepository) MarkReversed(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE change_log SET is_reversed = TRUE WHERE id = $1 AND is_reversed = FALSE`, id)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM change_log WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

func scanChangeLogEntry(src scanTarget) (*entity.ChangeLogEntry, error) {
	e := &entity.ChangeLogEntry{}
	var entityType, actionType string
	var fullData []byte

	err := src.Scan(
		&e.ID,
		&entityType,
		&e.EntityID,
		&actionType,
		&e.FieldName,
		&e.OldValue,
		&e.NewValue,
		&fullData,
		&e.ParentEntryID,
		&e.ReversesEntryID,
		&e.UserName,
		&e.UserID,
		&e.Timestamp,
		&e.IsReversed,
	)
	if err != nil {
		return nil, translateError(err)
	}

	e.EntityType = entity.EntityType(entityType)
	e.ActionType = entity.ActionType(actionType)
	if len(fullData) > 0 {
		e.FullEntityData = fullData
	}
	return e, nil
}

// normalizeLimit defaults an unset page size. The upper bound is the
// caller's, configured through changelog.max_limit.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return changeLogDefaultLimit
	}
	return limit
}
