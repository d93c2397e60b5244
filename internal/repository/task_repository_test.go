package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/mkawase/classtask-api/internal/models"
)

func newTaskRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

var taskRows = []string{
	"id", "class_id", "created_by", "title", "category", "deadline", "ai_policy",
	"is_archived", "archived_at", "archived_by", "allow_student_view_when_archived",
	"is_deleted", "deleted_at", "deleted_by", "created_at", "updated_at",
}

func TestTaskRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewTaskRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	task := &models.Task{
		ClassID:   "class-1",
		CreatedBy: "teacher-1",
		Title:     "Essay",
		Category:  "homework",
	}
	require.NoError(t, repo.Create(context.Background(), task))
	require.NotEmpty(t, task.ID)
	require.False(t, task.CreatedAt.IsZero())

	now := time.Now()
	rows := sqlmock.NewRows(taskRows).
		AddRow(task.ID, task.ClassID, task.CreatedBy, task.Title, task.Category, nil, "",
			false, nil, nil, true, false, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, class_id, created_by")).
		WithArgs(task.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	require.Equal(t, task.Title, found.Title)
	require.True(t, found.AllowStudentViewWhenArchived)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryListByOwnerViews(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewTaskRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("is_deleted = false AND is_archived = false ORDER BY created_at DESC")).
		WithArgs("teacher-1").
		WillReturnRows(sqlmock.NewRows(taskRows).
			AddRow("task-1", "class-1", "teacher-1", "Essay", "", nil, "", false, nil, nil, true, false, nil, nil, now, now))
	active, err := repo.ListByOwner(context.Background(), "teacher-1", models.TaskFilter{State: models.TaskStateActive})
	require.NoError(t, err)
	require.Len(t, active, 1)

	mock.ExpectQuery(regexp.QuoteMeta("is_deleted = false AND is_archived = true ORDER BY archived_at DESC")).
		WithArgs("teacher-1").
		WillReturnRows(sqlmock.NewRows(taskRows))
	archived, err := repo.ListByOwner(context.Background(), "teacher-1", models.TaskFilter{State: models.TaskStateArchived})
	require.NoError(t, err)
	require.Empty(t, archived)

	mock.ExpectQuery(regexp.QuoteMeta("is_deleted = true ORDER BY deleted_at DESC")).
		WithArgs("teacher-1").
		WillReturnRows(sqlmock.NewRows(taskRows).
			AddRow("task-2", "class-1", "teacher-1", "Quiz", "", nil, "", false, nil, nil, true, true, now, "teacher-1", now, now))
	deleted, err := repo.ListByOwner(context.Background(), "teacher-1", models.TaskFilter{State: models.TaskStateDeleted})
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	require.True(t, deleted[0].IsDeleted)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryListOwnedIDs(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewTaskRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM tasks WHERE created_by = $1 AND id IN ($2, $3)")).
		WithArgs("teacher-1", "task-1", "task-2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("task-1"))

	owned, err := repo.ListOwnedIDs(context.Background(), "teacher-1", []string{"task-1", "task-2"})
	require.NoError(t, err)
	require.Equal(t, []string{"task-1"}, owned)

	owned, err = repo.ListOwnedIDs(context.Background(), "teacher-1", nil)
	require.NoError(t, err)
	require.Empty(t, owned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryApplyTransition(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewTaskRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO task_operation_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	now := time.Now().UTC()
	task := &models.Task{ID: "task-1", IsArchived: true, ArchivedAt: &now}
	entry := &models.OperationEntry{
		TaskID:      "task-1",
		Action:      models.ActionArchive,
		PerformedBy: "teacher-1",
		PerformedAt: now,
		Details:     "task archived, student view enabled",
	}
	require.NoError(t, repo.ApplyTransition(context.Background(), task, entry))
	require.NotEmpty(t, entry.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryApplyTransitionMissingTask(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewTaskRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	task := &models.Task{ID: "missing"}
	entry := &models.OperationEntry{TaskID: "missing", Action: models.ActionArchive, PerformedBy: "teacher-1"}
	err := repo.ApplyTransition(context.Background(), task, entry)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryHardDelete(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewTaskRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM task_operation_history WHERE task_id = $1")).
		WithArgs("task-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE id = $1")).
		WithArgs("task-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.HardDelete(context.Background(), "task-1"))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM task_operation_history WHERE task_id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.HardDelete(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryListExpiredDeleted(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewTaskRepository(db)
	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	deletedAt := cutoff.Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("is_deleted = true AND deleted_at < $1")).
		WithArgs(cutoff, 100).
		WillReturnRows(sqlmock.NewRows(taskRows).
			AddRow("task-1", "class-1", "teacher-1", "Essay", "", nil, "", false, nil, nil, true, true, deletedAt, "teacher-1", deletedAt, deletedAt))

	tasks, err := repo.ListExpiredDeleted(context.Background(), cutoff, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryListHistory(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewTaskRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "task_id", "action", "performed_by", "performed_at", "details"}).
		AddRow("op-1", "task-1", "archive", "teacher-1", now.Add(-time.Hour), "task archived, student view enabled").
		AddRow("op-2", "task-1", "soft_delete", "teacher-1", now, "task moved to trash")
	mock.ExpectQuery(regexp.QuoteMeta("FROM task_operation_history WHERE task_id = $1 ORDER BY performed_at ASC")).
		WithArgs("task-1").
		WillReturnRows(rows)

	entries, err := repo.ListHistory(context.Background(), "task-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, models.ActionArchive, entries[0].Action)
	require.Equal(t, models.ActionSoftDelete, entries[1].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}
