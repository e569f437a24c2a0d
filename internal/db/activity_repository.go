package db

import (
	"context"
	"database/sql"

	"github.com/chepyr/go-task-board/shared/models"
	"github.com/google/uuid"
)

type ActivityRepositoryInterface interface {
	Insert(ctx context.Context, activity *models.Activity) error
	ListRecent(ctx context.Context, limit int) ([]*models.Activity, error)
}

// ActivityRepository is append-only: there is no update or delete.
type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Insert(ctx context.Context, a *models.Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	query := `INSERT INTO activities
	 (id, action, task_id, task_title, user_id, user_name, details, resolution, created_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Action, a.TaskID, a.TaskTitle, a.UserID, a.UserName, a.Details, a.Resolution, a.Timestamp)
	return err
}

func (r *ActivityRepository) ListRecent(ctx context.Context, limit int) ([]*models.Activity, error) {
	query := `SELECT id, action, task_id, task_title, user_id, user_name, details, resolution, created_at
	 FROM activities ORDER BY created_at DESC, id LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []*models.Activity
	for rows.Next() {
		a := &models.Activity{}
		if err := rows.Scan(
			&a.ID, &a.Action, &a.TaskID, &a.TaskTitle, &a.UserID, &a.UserName,
			&a.Details, &a.Resolution, &a.Timestamp,
		); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return activities, nil
}
