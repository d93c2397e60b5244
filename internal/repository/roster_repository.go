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

const rosterColumns = `id, class_id, student_id, joined_at, is_removed, removed_at, removed_by`

// RosterRepository persists class roster entries and their modification log.
// Entries carry the same soft-removal lifecycle as tasks; the modification
// log is append-only and written in the same transaction as the entry.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// GetClass loads a class by id.
func (r *RosterRepository) GetClass(ctx context.Context, classID string) (*models.Class, error) {
	var class models.Class
	if err := r.db.GetContext(ctx, &class, `SELECT id, name, teacher_id, created_at FROM classes WHERE id = $1`, classID); err != nil {
		return nil, err
	}
	return &class, nil
}

// GetClassTeacher resolves the owning teacher of a class.
func (r *RosterRepository) GetClassTeacher(ctx context.Context, classID string) (string, error) {
	class, err := r.GetClass(ctx, classID)
	if err != nil {
		return "", err
	}
	return class.TeacherID, nil
}

// GetEntry returns the roster entry for a student in a class.
func (r *RosterRepository) GetEntry(ctx context.Context, classID, studentID string) (*models.RosterEntry, error) {
	query := `SELECT ` + rosterColumns + ` FROM roster_entries WHERE class_id = $1 AND student_id = $2`
	var entry models.RosterEntry
	if err := r.db.GetContext(ctx, &entry, query, classID, studentID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// AddEntry enrolls a student.
func (r *RosterRepository) AddEntry(ctx context.Context, entry *models.RosterEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.JoinedAt.IsZero() {
		entry.JoinedAt = time.Now().UTC()
	}
	const query = `INSERT INTO roster_entries (id, class_id, student_id, joined_at, is_removed, removed_at, removed_by)
	VALUES (:id, :class_id, :student_id, :joined_at, :is_removed, :removed_at, :removed_by)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("add roster entry: %w", err)
	}
	return nil
}

// ApplyChange writes the entry's removal fields and appends the modification
// log row in one transaction.
func (r *RosterRepository) ApplyChange(ctx context.Context, entry *models.RosterEntry, mod *models.RosterModification) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster change tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const update = `UPDATE roster_entries SET
	 is_removed = :is_removed, removed_at = :removed_at, removed_by = :removed_by
	WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, update, entry)
	if err != nil {
		return fmt.Errorf("update roster entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check roster update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if mod.ID == "" {
		mod.ID = uuid.NewString()
	}
	if mod.PerformedAt.IsZero() {
		mod.PerformedAt = time.Now().UTC()
	}
	const insert = `INSERT INTO roster_modification_history
	(id, entry_id, action, performed_by, performed_at, details)
	VALUES (:id, :entry_id, :action, :performed_by, :performed_at, :details)`
	if _, err := tx.NamedExecContext(ctx, insert, mod); err != nil {
		return fmt.Errorf("append roster modification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roster change tx: %w", err)
	}
	return nil
}

// ListExpiredRemoved returns removed entries past the retention cutoff.
func (r *RosterRepository) ListExpiredRemoved(ctx context.Context, cutoff time.Time, limit int) ([]models.RosterEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + rosterColumns + ` FROM roster_entries
	WHERE is_removed = true AND removed_at < $1
	ORDER BY removed_at ASC LIMIT $2`
	var entries []models.RosterEntry
	if err := r.db.SelectContext(ctx, &entries, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list expired roster entries: %w", err)
	}
	return entries, nil
}

// HardDeleteEntry permanently strikes the entry and its modification log.
func (r *RosterRepository) HardDeleteEntry(ctx context.Context, entryID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster delete tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM roster_modification_history WHERE entry_id = $1`, entryID); err != nil {
		return fmt.Errorf("delete roster modifications: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM roster_entries WHERE id = $1`, entryID)
	if err != nil {
		return fmt.Errorf("delete roster entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check roster delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roster delete tx: %w", err)
	}
	return nil
}
