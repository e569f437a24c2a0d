package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/chepyr/go-task-board/shared/models"
	"github.com/google/uuid"
)

// TaskFilter narrows List. Zero value lists every task.
type TaskFilter struct {
	AssignedTo string
	Statuses   []models.TaskStatus
}

// defines methods for task db operations
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id string) (*models.Task, error)
	FindByTitle(ctx context.Context, title string) (*models.Task, error)
	UpdateIfVersion(ctx context.Context, task *models.Task, expectedVersion int64) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter TaskFilter) ([]*models.Task, error)
}

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, title, description, status, priority, assigned_to, assigned_to_name,
 created_by, created_at, updated_at, version`

// Create inserts the task and fills in task.ID when it is empty.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	query := `INSERT INTO tasks (` + taskColumns + `)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(
		ctx, query, task.ID, task.Title, task.Description, task.Status, task.Priority,
		task.AssignedTo, task.AssignedToName, task.CreatedBy, task.CreatedAt, task.UpdatedAt, task.Version)
	if isUniqueViolation(err) {
		return ErrDuplicateTitle
	}
	return err
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return task, err
}

// FindByTitle returns nil, nil when no task carries the title.
func (r *TaskRepository) FindByTitle(ctx context.Context, title string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE title = $1`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, title))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return task, err
}

// UpdateIfVersion writes every mutable field of task, but only while the
// stored version still equals expectedVersion. task.Version must already
// hold the new version.
func (r *TaskRepository) UpdateIfVersion(ctx context.Context, task *models.Task, expectedVersion int64) error {
	query := `UPDATE tasks SET title = $1, description = $2, status = $3, priority = $4,
	 assigned_to = $5, assigned_to_name = $6, updated_at = $7, version = $8
	 WHERE id = $9 AND version = $10`
	res, err := r.db.ExecContext(ctx, query,
		task.Title, task.Description, task.Status, task.Priority,
		task.AssignedTo, task.AssignedToName, task.UpdatedAt, task.Version,
		task.ID, expectedVersion)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTitle
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// nothing matched: either the row is gone or its version moved on
	var exists bool
	err = r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1)`, task.ID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionMismatch
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns matching tasks, newest first.
func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]*models.Task, error) {
	var (
		conds []string
		args  []any
	)
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		conds = append(conds, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			args = append(args, s)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		conds = append(conds, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	err := row.Scan(
		&task.ID, &task.Title, &task.Description, &task.Status, &task.Priority,
		&task.AssignedTo, &task.AssignedToName, &task.CreatedBy,
		&task.CreatedAt, &task.UpdatedAt, &task.Version,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}
