package models

import "time"

// RosterEntry is one student's membership in a class roster. Removal follows
// the same soft-delete lifecycle as tasks, scoped to the entry.
type RosterEntry struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"classId"`
	StudentID string    `db:"student_id" json:"studentId"`
	JoinedAt  time.Time `db:"joined_at" json:"joinedAt"`

	IsRemoved bool       `db:"is_removed" json:"isRemoved"`
	RemovedAt *time.Time `db:"removed_at" json:"removedAt,omitempty"`
	RemovedBy *string    `db:"removed_by" json:"removedBy,omitempty"`
}

// RosterModification is one row of a roster entry's append-only change log,
// kept separately from the removal flags themselves.
type RosterModification struct {
	ID          string    `db:"id" json:"id"`
	EntryID     string    `db:"entry_id" json:"entryId"`
	Action      string    `db:"action" json:"action"`
	PerformedBy string    `db:"performed_by" json:"performedBy"`
	PerformedAt time.Time `db:"performed_at" json:"performedAt"`
	Details     string    `db:"details" json:"details"`
}

const (
	RosterActionRemove  = "remove"
	RosterActionRestore = "restore"
)
