package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkawase/classtask-api/internal/models"
	appErrors "github.com/mkawase/classtask-api/pkg/errors"
)

type rosterStoreStub struct {
	teachers map[string]string
	entries  map[string]*models.RosterEntry
	mods     []models.RosterModification
}

func newRosterStoreStub() *rosterStoreStub {
	return &rosterStoreStub{
		teachers: make(map[string]string),
		entries:  make(map[string]*models.RosterEntry),
	}
}

func rosterKey(classID, studentID string) string {
	return classID + "|" + studentID
}

func (s *rosterStoreStub) GetClassTeacher(ctx context.Context, classID string) (string, error) {
	teacher, ok := s.teachers[classID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return teacher, nil
}

func (s *rosterStoreStub) GetEntry(ctx context.Context, classID, studentID string) (*models.RosterEntry, error) {
	entry, ok := s.entries[rosterKey(classID, studentID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *entry
	return &copy, nil
}

func (s *rosterStoreStub) ApplyChange(ctx context.Context, entry *models.RosterEntry, mod *models.RosterModification) error {
	key := rosterKey(entry.ClassID, entry.StudentID)
	if _, ok := s.entries[key]; !ok {
		return sql.ErrNoRows
	}
	copy := *entry
	s.entries[key] = &copy
	recorded := *mod
	recorded.ID = fmt.Sprintf("mod-%d", len(s.mods)+1)
	s.mods = append(s.mods, recorded)
	return nil
}

func rosterFixture() *rosterStoreStub {
	store := newRosterStoreStub()
	store.teachers["class-1"] = "teacher-1"
	store.entries[rosterKey("class-1", "student-1")] = &models.RosterEntry{
		ID:        "entry-1",
		ClassID:   "class-1",
		StudentID: "student-1",
	}
	return store
}

func TestRosterServiceRemoveStudent(t *testing.T) {
	store := rosterFixture()
	svc := NewRosterService(store, nil)

	entry, err := svc.RemoveStudent(context.Background(), "class-1", "student-1", "teacher-1", "transferred")
	require.NoError(t, err)
	require.True(t, entry.IsRemoved)
	require.NotNil(t, entry.RemovedAt)
	require.NotNil(t, entry.RemovedBy)

	require.Len(t, store.mods, 1)
	require.Equal(t, models.RosterActionRemove, store.mods[0].Action)
	require.Equal(t, "teacher-1", store.mods[0].PerformedBy)
	require.Contains(t, store.mods[0].Details, "transferred")

	_, err = svc.RemoveStudent(context.Background(), "class-1", "student-1", "teacher-1", "")
	require.ErrorIs(t, err, appErrors.ErrStudentRemoved)
}

func TestRosterServiceRestoreStudent(t *testing.T) {
	store := rosterFixture()
	removedAt := time.Now().UTC().Add(-time.Hour)
	entry := store.entries[rosterKey("class-1", "student-1")]
	entry.IsRemoved = true
	entry.RemovedAt = &removedAt
	entry.RemovedBy = stringPtr("teacher-1")
	svc := NewRosterService(store, nil)

	restored, err := svc.RestoreStudent(context.Background(), "class-1", "student-1", "teacher-1")
	require.NoError(t, err)
	require.False(t, restored.IsRemoved)
	require.Nil(t, restored.RemovedAt)
	require.Nil(t, restored.RemovedBy)
	require.Len(t, store.mods, 1)
	require.Equal(t, models.RosterActionRestore, store.mods[0].Action)

	_, err = svc.RestoreStudent(context.Background(), "class-1", "student-1", "teacher-1")
	require.ErrorIs(t, err, appErrors.ErrStudentActive)
}

func TestRosterServiceOwnershipBeforeEntryLookup(t *testing.T) {
	store := rosterFixture()
	svc := NewRosterService(store, nil)

	// A non-owner gets the ownership error whether or not the student exists,
	// so roster membership cannot be probed.
	_, err := svc.RemoveStudent(context.Background(), "class-1", "student-1", "teacher-2", "")
	require.Equal(t, appErrors.ErrNotOwner.Code, appErrors.FromError(err).Code)

	_, err = svc.RemoveStudent(context.Background(), "class-1", "nobody", "teacher-2", "")
	require.Equal(t, appErrors.ErrNotOwner.Code, appErrors.FromError(err).Code)

	_, err = svc.RemoveStudent(context.Background(), "class-1", "nobody", "teacher-1", "")
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.RemoveStudent(context.Background(), "no-class", "student-1", "teacher-1", "")
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	require.Empty(t, store.mods)
}
