package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mkawase/classtask-api/internal/models"
	appErrors "github.com/mkawase/classtask-api/pkg/errors"
)

type rosterStore interface {
	GetClassTeacher(ctx context.Context, classID string) (string, error)
	GetEntry(ctx context.Context, classID, studentID string) (*models.RosterEntry, error)
	ApplyChange(ctx context.Context, entry *models.RosterEntry, mod *models.RosterModification) error
}

// RosterService applies the roster-entry analog of the task lifecycle:
// soft removal with a restore window, owner-gated, with an append-only
// modification log written atomically with the entry.
type RosterService struct {
	roster rosterStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRosterService constructs the service.
func NewRosterService(roster rosterStore, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{roster: roster, logger: logger, now: time.Now}
}

// RemoveStudent soft-removes a student from the class roster.
func (s *RosterService) RemoveStudent(ctx context.Context, classID, studentID, actorID, reason string) (*models.RosterEntry, error) {
	entry, err := s.loadOwnedEntry(ctx, classID, studentID, actorID)
	if err != nil {
		return nil, err
	}
	if entry.IsRemoved {
		return nil, appErrors.ErrStudentRemoved
	}

	now := s.now().UTC()
	entry.IsRemoved = true
	entry.RemovedAt = &now
	entry.RemovedBy = &actorID

	details := "student removed from roster"
	if reason != "" {
		details = "student removed from roster: " + reason
	}
	return s.applyChange(ctx, entry, models.RosterActionRemove, actorID, details)
}

// RestoreStudent clears a roster entry's removal within the retention window.
func (s *RosterService) RestoreStudent(ctx context.Context, classID, studentID, actorID string) (*models.RosterEntry, error) {
	entry, err := s.loadOwnedEntry(ctx, classID, studentID, actorID)
	if err != nil {
		return nil, err
	}
	if !entry.IsRemoved {
		return nil, appErrors.ErrStudentActive
	}

	entry.IsRemoved = false
	entry.RemovedAt = nil
	entry.RemovedBy = nil

	return s.applyChange(ctx, entry, models.RosterActionRestore, actorID, "student restored to roster")
}

// loadOwnedEntry checks class ownership before touching the entry, so a
// non-owner cannot learn whether a student is enrolled.
func (s *RosterService) loadOwnedEntry(ctx context.Context, classID, studentID, actorID string) (*models.RosterEntry, error) {
	teacherID, err := s.roster.GetClassTeacher(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if teacherID != actorID {
		return nil, appErrors.Clone(appErrors.ErrNotOwner, "only the class teacher may modify the roster")
	}

	entry, err := s.roster.GetEntry(ctx, classID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not on the class roster")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster entry")
	}
	return entry, nil
}

func (s *RosterService) applyChange(ctx context.Context, entry *models.RosterEntry, action, actorID, details string) (*models.RosterEntry, error) {
	mod := &models.RosterModification{
		EntryID:     entry.ID,
		Action:      action,
		PerformedBy: actorID,
		PerformedAt: s.now().UTC(),
		Details:     details,
	}
	if err := s.roster.ApplyChange(ctx, entry, mod); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "roster entry no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist roster change")
	}
	return entry, nil
}
