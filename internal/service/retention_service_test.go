package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkawase/classtask-api/internal/models"
)

type retentionTaskStub struct {
	expired    map[string]models.Task
	deleteErrs map[string]error
	deleted    []string
}

func newRetentionTaskStub(tasks ...models.Task) *retentionTaskStub {
	s := &retentionTaskStub{
		expired:    make(map[string]models.Task),
		deleteErrs: make(map[string]error),
	}
	for _, t := range tasks {
		s.expired[t.ID] = t
	}
	return s
}

func (s *retentionTaskStub) ListExpiredDeleted(ctx context.Context, cutoff time.Time, limit int) ([]models.Task, error) {
	var out []models.Task
	for _, t := range s.expired {
		if t.DeletedAt != nil && t.DeletedAt.Before(cutoff) {
			out = append(out, t)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *retentionTaskStub) HardDelete(ctx context.Context, id string) error {
	if err, ok := s.deleteErrs[id]; ok {
		return err
	}
	if _, ok := s.expired[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.expired, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type retentionRosterStub struct {
	expired map[string]models.RosterEntry
	deleted []string
}

func (s *retentionRosterStub) ListExpiredRemoved(ctx context.Context, cutoff time.Time, limit int) ([]models.RosterEntry, error) {
	var out []models.RosterEntry
	for _, e := range s.expired {
		if e.RemovedAt != nil && e.RemovedAt.Before(cutoff) {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *retentionRosterStub) HardDeleteEntry(ctx context.Context, entryID string) error {
	if _, ok := s.expired[entryID]; !ok {
		return sql.ErrNoRows
	}
	delete(s.expired, entryID)
	s.deleted = append(s.deleted, entryID)
	return nil
}

type sweepRecorderStub struct {
	tasks    int
	roster   int
	failures int
	calls    int
}

func (s *sweepRecorderStub) RecordSweep(tasksDeleted, rosterDeleted, failures int) {
	s.tasks += tasksDeleted
	s.roster += rosterDeleted
	s.failures += failures
	s.calls++
}

func deletedTask(id string, deletedAt time.Time) models.Task {
	return models.Task{ID: id, CreatedBy: "teacher-1", IsDeleted: true, DeletedAt: &deletedAt}
}

func TestRetentionServiceSweepsExpiredTasks(t *testing.T) {
	now := time.Now().UTC()
	window := 30 * 24 * time.Hour
	tasks := newRetentionTaskStub(
		deletedTask("old", now.Add(-window-time.Second)),
		deletedTask("fresh", now.Add(-29*24*time.Hour)),
	)
	subs := &submissionStub{paths: map[string][]string{"old": {"submissions/a.pdf"}}}
	purge := &purgeStub{}
	rec := &sweepRecorderStub{}
	svc := NewRetentionService(tasks, nil, subs, purge, nil, rec, nil, window)

	result := svc.Sweep(context.Background())
	require.Equal(t, 1, result.TasksDeleted)
	require.Equal(t, 0, result.Failures)
	require.Equal(t, []string{"old"}, tasks.deleted)
	require.Contains(t, tasks.expired, "fresh")
	require.Equal(t, []string{"old"}, subs.deleted)
	require.Len(t, purge.jobs, 1)
	require.Equal(t, 1, rec.tasks)
}

func TestRetentionServiceSweepIsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	window := 30 * 24 * time.Hour
	tasks := newRetentionTaskStub(deletedTask("old", now.Add(-31*24*time.Hour)))
	svc := NewRetentionService(tasks, nil, nil, nil, nil, nil, nil, window)

	first := svc.Sweep(context.Background())
	require.Equal(t, 1, first.TasksDeleted)

	second := svc.Sweep(context.Background())
	require.Equal(t, 0, second.TasksDeleted)
	require.Equal(t, 0, second.Failures)
}

func TestRetentionServiceFailureDoesNotBlockSweep(t *testing.T) {
	now := time.Now().UTC()
	window := 30 * 24 * time.Hour
	tasks := newRetentionTaskStub(
		deletedTask("stuck", now.Add(-40*24*time.Hour)),
		deletedTask("ok", now.Add(-40*24*time.Hour)),
	)
	tasks.deleteErrs["stuck"] = errors.New("constraint violation")
	rec := &sweepRecorderStub{}
	svc := NewRetentionService(tasks, nil, nil, nil, nil, rec, nil, window)

	result := svc.Sweep(context.Background())
	require.Equal(t, 1, result.TasksDeleted)
	require.Equal(t, 1, result.Failures)
	require.Equal(t, []string{"ok"}, tasks.deleted)
	// The stuck record stays for the next run instead of looping forever.
	require.Contains(t, tasks.expired, "stuck")
	require.Equal(t, 1, rec.calls)
}

func TestRetentionServiceSweepsRosterEntries(t *testing.T) {
	now := time.Now().UTC()
	window := 30 * 24 * time.Hour
	removedAt := now.Add(-31 * 24 * time.Hour)
	keptAt := now.Add(-2 * 24 * time.Hour)
	roster := &retentionRosterStub{expired: map[string]models.RosterEntry{
		"entry-old":  {ID: "entry-old", IsRemoved: true, RemovedAt: &removedAt},
		"entry-kept": {ID: "entry-kept", IsRemoved: true, RemovedAt: &keptAt},
	}}
	svc := NewRetentionService(newRetentionTaskStub(), roster, nil, nil, nil, nil, nil, window)

	result := svc.Sweep(context.Background())
	require.Equal(t, 1, result.RosterDeleted)
	require.Equal(t, []string{"entry-old"}, roster.deleted)
	require.Contains(t, roster.expired, "entry-kept")
}

func TestDaysLeft(t *testing.T) {
	window := 30 * 24 * time.Hour
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	require.Equal(t, 30, DaysLeft(now, now, window))
	require.Equal(t, 29, DaysLeft(now.Add(-25*time.Hour), now, window))
	require.Equal(t, 1, DaysLeft(now.Add(-29*24*time.Hour), now, window))
	require.Equal(t, 0, DaysLeft(now.Add(-30*24*time.Hour), now, window))
	require.Equal(t, 0, DaysLeft(now.Add(-45*24*time.Hour), now, window))
}
