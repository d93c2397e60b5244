package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/mkawase/classtask-api/internal/models"
)

func TestRosterRepositoryGetClassTeacher(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewRosterRepository(db)
	classQuery := regexp.QuoteMeta("SELECT id, name, teacher_id, created_at FROM classes WHERE id = $1")
	mock.ExpectQuery(classQuery).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "teacher_id", "created_at"}).
			AddRow("class-1", "Math 7A", "teacher-1", time.Now().UTC()))

	teacherID, err := repo.GetClassTeacher(context.Background(), "class-1")
	require.NoError(t, err)
	require.Equal(t, "teacher-1", teacherID)

	mock.ExpectQuery(classQuery).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetClassTeacher(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryGetClass(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewRosterRepository(db)
	created := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, teacher_id, created_at FROM classes WHERE id = $1")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "teacher_id", "created_at"}).
			AddRow("class-1", "Math 7A", "teacher-1", created))

	class, err := repo.GetClass(context.Background(), "class-1")
	require.NoError(t, err)
	require.Equal(t, "class-1", class.ID)
	require.Equal(t, "Math 7A", class.Name)
	require.Equal(t, "teacher-1", class.TeacherID)
	require.Equal(t, created, class.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryApplyChange(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewRosterRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE roster_entries SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO roster_modification_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	now := time.Now().UTC()
	entry := &models.RosterEntry{ID: "entry-1", ClassID: "class-1", StudentID: "student-1", IsRemoved: true, RemovedAt: &now}
	mod := &models.RosterModification{
		EntryID:     "entry-1",
		Action:      models.RosterActionRemove,
		PerformedBy: "teacher-1",
		Details:     "student removed from roster",
	}
	require.NoError(t, repo.ApplyChange(context.Background(), entry, mod))
	require.NotEmpty(t, mod.ID)
	require.False(t, mod.PerformedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryApplyChangeMissingEntry(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewRosterRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE roster_entries SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	entry := &models.RosterEntry{ID: "gone"}
	mod := &models.RosterModification{EntryID: "gone", Action: models.RosterActionRemove, PerformedBy: "teacher-1"}
	err := repo.ApplyChange(context.Background(), entry, mod)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryHardDeleteEntry(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewRosterRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM roster_modification_history WHERE entry_id = $1")).
		WithArgs("entry-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM roster_entries WHERE id = $1")).
		WithArgs("entry-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.HardDeleteEntry(context.Background(), "entry-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryListExpiredRemoved(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewRosterRepository(db)
	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	removedAt := cutoff.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"id", "class_id", "student_id", "joined_at", "is_removed", "removed_at", "removed_by"}).
		AddRow("entry-1", "class-1", "student-1", removedAt.Add(-time.Hour*100), true, removedAt, "teacher-1")
	mock.ExpectQuery(regexp.QuoteMeta("is_removed = true AND removed_at < $1")).
		WithArgs(cutoff, 100).
		WillReturnRows(rows)

	entries, err := repo.ListExpiredRemoved(context.Background(), cutoff, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, entries[0].IsRemoved)
	require.NoError(t, mock.ExpectationsWereMet())
}
