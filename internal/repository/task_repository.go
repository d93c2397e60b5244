package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mkawase/classtask-api/internal/models"
)

const taskColumns = `id, class_id, created_by, title, category, deadline, ai_policy,
       is_archived, archived_at, archived_by, allow_student_view_when_archived,
       is_deleted, deleted_at, deleted_by, created_at, updated_at`

// TaskRepository persists tasks and their operation history. History lives in
// a separate append-only table keyed by task id; a lifecycle transition writes
// the task row and the history row in one transaction so they never diverge.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs the repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create stores a new task in its active state.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	const query = `INSERT INTO tasks
	(id, class_id, created_by, title, category, deadline, ai_policy,
	 is_archived, archived_at, archived_by, allow_student_view_when_archived,
	 is_deleted, deleted_at, deleted_by, created_at, updated_at)
	VALUES (:id, :class_id, :created_by, :title, :category, :deadline, :ai_policy,
	 :is_archived, :archived_at, :archived_by, :allow_student_view_when_archived,
	 :is_deleted, :deleted_at, :deleted_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetByID retrieves one task row.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListByOwner returns the owner's tasks for one lifecycle view. Deletion
// dominates: active and archived listings always exclude deleted tasks.
func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE created_by = $1`
	switch filter.State {
	case models.TaskStateDeleted:
		query += ` AND is_deleted = true ORDER BY deleted_at DESC`
	case models.TaskStateArchived:
		query += ` AND is_deleted = false AND is_archived = true ORDER BY archived_at DESC`
	default:
		query += ` AND is_deleted = false AND is_archived = false ORDER BY created_at DESC`
	}
	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, ownerID); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListOwnedIDs returns the subset of the requested ids owned by ownerID.
func (r *TaskRepository) ListOwnedIDs(ctx context.Context, ownerID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id FROM tasks WHERE created_by = ? AND id IN (?)`, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("build owned ids query: %w", err)
	}
	query = r.db.Rebind(query)
	var owned []string
	if err := r.db.SelectContext(ctx, &owned, query, args...); err != nil {
		return nil, fmt.Errorf("list owned task ids: %w", err)
	}
	return owned, nil
}

// ApplyTransition writes the task's lifecycle fields and appends the history
// entry in a single transaction.
func (r *TaskRepository) ApplyTransition(ctx context.Context, task *models.Task, entry *models.OperationEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	task.UpdatedAt = time.Now().UTC()
	const update = `UPDATE tasks SET
	 is_archived = :is_archived, archived_at = :archived_at, archived_by = :archived_by,
	 allow_student_view_when_archived = :allow_student_view_when_archived,
	 is_deleted = :is_deleted, deleted_at = :deleted_at, deleted_by = :deleted_by,
	 updated_at = :updated_at
	WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, update, task)
	if err != nil {
		return fmt.Errorf("update task lifecycle: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check task update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = task.UpdatedAt
	}
	const insert = `INSERT INTO task_operation_history
	(id, task_id, action, performed_by, performed_at, details)
	VALUES (:id, :task_id, :action, :performed_by, :performed_at, :details)`
	if _, err := tx.NamedExecContext(ctx, insert, entry); err != nil {
		return fmt.Errorf("append operation history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition tx: %w", err)
	}
	return nil
}

// HardDelete permanently removes the task row and its history. Dependent
// submissions must be removed by the caller before this is invoked.
func (r *TaskRepository) HardDelete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin hard delete tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_operation_history WHERE task_id = $1`, id); err != nil {
		return fmt.Errorf("delete operation history: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check task delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit hard delete tx: %w", err)
	}
	return nil
}

// ListExpiredDeleted returns soft-deleted tasks whose retention window
// elapsed before the cutoff.
func (r *TaskRepository) ListExpiredDeleted(ctx context.Context, cutoff time.Time, limit int) ([]models.Task, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + taskColumns + ` FROM tasks
	WHERE is_deleted = true AND deleted_at < $1
	ORDER BY deleted_at ASC LIMIT $2`
	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list expired tasks: %w", err)
	}
	return tasks, nil
}

// ListHistory returns the task's operation history oldest-first.
func (r *TaskRepository) ListHistory(ctx context.Context, taskID string) ([]models.OperationEntry, error) {
	const query = `SELECT id, task_id, action, performed_by, performed_at, details
	FROM task_operation_history WHERE task_id = $1 ORDER BY performed_at ASC`
	var entries []models.OperationEntry
	if err := r.db.SelectContext(ctx, &entries, query, taskID); err != nil {
		return nil, fmt.Errorf("list operation history: %w", err)
	}
	return entries, nil
}
