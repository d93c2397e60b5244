package models

import "time"

// TaskState selects a lifecycle view for listings. Deletion dominates: a task
// that is both archived and deleted only appears in the deleted listing.
type TaskState string

const (
	TaskStateActive   TaskState = "active"
	TaskStateArchived TaskState = "archived"
	TaskStateDeleted  TaskState = "deleted"
)

// LifecycleAction names a recorded lifecycle transition.
type LifecycleAction string

const (
	ActionArchive           LifecycleAction = "archive"
	ActionUnarchive         LifecycleAction = "unarchive"
	ActionUpdateStudentView LifecycleAction = "update_student_view"
	ActionSoftDelete        LifecycleAction = "soft_delete"
	ActionRestore           LifecycleAction = "restore"
	ActionHardDelete        LifecycleAction = "hard_delete"
)

// Task represents one teacher-authored assignment. The archived and deleted
// flags are independent booleans: soft deletion never clears archive fields,
// and the combined state is reachable.
type Task struct {
	ID        string     `db:"id" json:"id"`
	ClassID   string     `db:"class_id" json:"classId"`
	CreatedBy string     `db:"created_by" json:"createdBy"`
	Title     string     `db:"title" json:"title"`
	Category  string     `db:"category" json:"category"`
	Deadline  *time.Time `db:"deadline" json:"deadline,omitempty"`

	// AIPolicy is opaque payload to the lifecycle core; it governs whether
	// students may attach AI-assistant transcripts to submissions.
	AIPolicy string `db:"ai_policy" json:"aiPolicy"`

	IsArchived                   bool       `db:"is_archived" json:"isArchived"`
	ArchivedAt                   *time.Time `db:"archived_at" json:"archivedAt,omitempty"`
	ArchivedBy                   *string    `db:"archived_by" json:"archivedBy,omitempty"`
	AllowStudentViewWhenArchived bool       `db:"allow_student_view_when_archived" json:"allowStudentViewWhenArchived"`

	IsDeleted bool       `db:"is_deleted" json:"isDeleted"`
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
	DeletedBy *string    `db:"deleted_by" json:"deletedBy,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// OperationEntry is one row of a task's append-only operation history.
type OperationEntry struct {
	ID          string          `db:"id" json:"id"`
	TaskID      string          `db:"task_id" json:"taskId"`
	Action      LifecycleAction `db:"action" json:"action"`
	PerformedBy string          `db:"performed_by" json:"performedBy"`
	PerformedAt time.Time       `db:"performed_at" json:"performedAt"`
	Details     string          `db:"details" json:"details"`
}

// TaskFilter narrows owner listings to one lifecycle view.
type TaskFilter struct {
	State TaskState
}
