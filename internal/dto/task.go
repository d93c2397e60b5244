package dto

import (
	"time"

	"github.com/mkawase/classtask-api/internal/models"
)

// CreateTaskRequest creates a new assignment in its active state.
type CreateTaskRequest struct {
	ClassID  string     `json:"classId" validate:"required"`
	Title    string     `json:"title" validate:"required"`
	Category string     `json:"category"`
	Deadline *time.Time `json:"deadline"`
	AIPolicy string     `json:"aiPolicy"`
}

// ArchiveTaskRequest carries the single option the archive transition reads.
// AllowStudentViewWhenArchived defaults to true when omitted.
type ArchiveTaskRequest struct {
	AllowStudentViewWhenArchived *bool `json:"allowStudentViewWhenArchived"`
}

// StudentViewRequest updates archived-view visibility for students.
type StudentViewRequest struct {
	AllowStudentViewWhenArchived *bool `json:"allowStudentViewWhenArchived" validate:"required"`
}

// BatchTaskRequest applies one named lifecycle operation to many tasks.
type BatchTaskRequest struct {
	TaskIDs   []string           `json:"taskIds" validate:"required,min=1"`
	Operation string             `json:"operation" validate:"required"`
	Options   ArchiveTaskRequest `json:"options"`
}

// BatchItemResult reports one task's outcome inside a batch.
type BatchItemResult struct {
	TaskID  string `json:"taskId"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// BatchTaskResponse summarises a batch run. A batch with failed items is still
// a successful call; callers inspect Results for per-item outcomes.
type BatchTaskResponse struct {
	SuccessCount int               `json:"successCount"`
	TotalCount   int               `json:"totalCount"`
	Results      []BatchItemResult `json:"results"`
}

// DeletedTaskItem decorates a soft-deleted task with its derived retention
// countdown. DaysLeft and WillBeDeletedAt are computed at read time, never
// stored.
type DeletedTaskItem struct {
	models.Task
	DaysLeft        int       `json:"daysLeft"`
	WillBeDeletedAt time.Time `json:"willBeDeletedAt"`
}

// HistoryExportResponse returns a signed URL for a rendered history export.
type HistoryExportResponse struct {
	DownloadURL string    `json:"downloadUrl"`
	Format      string    `json:"format"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
