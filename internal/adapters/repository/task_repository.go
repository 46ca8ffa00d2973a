package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/database"
	"github.com/taskmaster/tracker/internal/ports"
)

const taskColumns = `id, owner_id, title, description, status, priority, progress, due_date,
	estimated_hours, total_time_spent, tags, progress_history, time_entries, daily_updates,
	created_at, updated_at, completed_at`

// TaskRepositoryImpl implements the TaskRepository interface on PostgreSQL.
// History collections live in JSONB columns next to the task row.
type TaskRepositoryImpl struct {
	db *database.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *database.DB) ports.TaskRepository {
	return &TaskRepositoryImpl{db: db}
}

func (r *TaskRepositoryImpl) Create(ctx context.Context, task *entities.Task) error {
	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (:id, :owner_id, :title, :description, :status, :priority, :progress, :due_date,
			:estimated_hours, :total_time_spent, :tags, :progress_history, :time_entries,
			:daily_updates, :created_at, :updated_at, :completed_at)`

	if _, err := r.db.DB.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	return nil
}

func (r *TaskRepositoryImpl) GetForOwner(ctx context.Context, id, ownerID uuid.UUID) (*entities.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND owner_id = $2`

	var task entities.Task
	if err := r.db.DB.GetContext(ctx, &task, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	return &task, nil
}

func (r *TaskRepositoryImpl) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entities.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 ORDER BY seq ASC`

	tasks := []*entities.Task{}
	if err := r.db.DB.SelectContext(ctx, &tasks, query, ownerID); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, nil
}

func (r *TaskRepositoryImpl) UpdateFunc(ctx context.Context, id, ownerID uuid.UUID, fn func(task *entities.Task) error) (*entities.Task, error) {
	var updated entities.Task

	err := r.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND owner_id = $2 FOR UPDATE`
		if err := tx.GetContext(ctx, &updated, query, id, ownerID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return entities.ErrTaskNotFound
			}
			return fmt.Errorf("lock task: %w", err)
		}

		if err := fn(&updated); err != nil {
			return err
		}

		update := `
			UPDATE tasks
			SET title = :title, description = :description, status = :status, priority = :priority,
				progress = :progress, due_date = :due_date, estimated_hours = :estimated_hours,
				total_time_spent = :total_time_spent, tags = :tags, progress_history = :progress_history,
				time_entries = :time_entries, daily_updates = :daily_updates, updated_at = :updated_at,
				completed_at = :completed_at
			WHERE id = :id AND owner_id = :owner_id`
		if _, err := tx.NamedExecContext(ctx, update, &updated); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

func (r *TaskRepositoryImpl) Delete(ctx context.Context, id, ownerID uuid.UUID) (*entities.Task, error) {
	query := `DELETE FROM tasks WHERE id = $1 AND owner_id = $2 RETURNING ` + taskColumns

	var task entities.Task
	if err := r.db.DB.GetContext(ctx, &task, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("delete task: %w", err)
	}

	return &task, nil
}
