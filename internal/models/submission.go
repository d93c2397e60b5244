package models

import "time"

// Submission is a student's answer to a task. The lifecycle core only cares
// about the task reference and the optional file blob path: hard deletion of
// a task must leave no submissions behind.
type Submission struct {
	ID          string    `db:"id" json:"id"`
	TaskID      string    `db:"task_id" json:"taskId"`
	StudentID   string    `db:"student_id" json:"studentId"`
	Content     string    `db:"content" json:"content"`
	FilePath    *string   `db:"file_path" json:"filePath,omitempty"`
	SubmittedAt time.Time `db:"submitted_at" json:"submittedAt"`
}
