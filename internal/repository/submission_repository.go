package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mkawase/classtask-api/internal/models"
)

// SubmissionRepository persists student submissions. The lifecycle core uses
// it as the cascade collaborator: hard deletion of a task removes its
// submission rows here first, so no orphan ever references a dead task.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create stores a submission.
func (r *SubmissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions (id, task_id, student_id, content, file_path, submitted_at)
	VALUES (:id, :task_id, :student_id, :content, :file_path, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// CountByTask returns the number of submissions referencing the task.
func (r *SubmissionRepository) CountByTask(ctx context.Context, taskID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM submissions WHERE task_id = $1`, taskID); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return count, nil
}

// DeleteByTask removes every submission for the task and returns the file
// blob paths that were attached, so the caller can schedule their purge.
func (r *SubmissionRepository) DeleteByTask(ctx context.Context, taskID string) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin submission delete tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var paths []string
	if err := tx.SelectContext(ctx, &paths,
		`SELECT file_path FROM submissions WHERE task_id = $1 AND file_path IS NOT NULL`, taskID); err != nil {
		return nil, fmt.Errorf("list submission files: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE task_id = $1`, taskID); err != nil {
		return nil, fmt.Errorf("delete submissions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submission delete tx: %w", err)
	}
	return paths, nil
}
