package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/mkawase/classtask-api/internal/models"
)

func TestSubmissionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sub := &models.Submission{TaskID: "task-1", StudentID: "student-1", Content: "answer"}
	require.NoError(t, repo.Create(context.Background(), sub))
	require.NotEmpty(t, sub.ID)
	require.False(t, sub.SubmittedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryDeleteByTaskReturnsFilePaths(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT file_path FROM submissions WHERE task_id = $1 AND file_path IS NOT NULL")).
		WithArgs("task-1").
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}).
			AddRow("submissions/a.pdf").
			AddRow("submissions/b.pdf"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM submissions WHERE task_id = $1")).
		WithArgs("task-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	paths, err := repo.DeleteByTask(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, []string{"submissions/a.pdf", "submissions/b.pdf"}, paths)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryDeleteByTaskEmpty(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT file_path FROM submissions")).
		WithArgs("task-1").
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM submissions WHERE task_id = $1")).
		WithArgs("task-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	paths, err := repo.DeleteByTask(context.Background(), "task-1")
	require.NoError(t, err)
	require.Empty(t, paths)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryCountByTask(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM submissions WHERE task_id = $1")).
		WithArgs("task-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountByTask(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
