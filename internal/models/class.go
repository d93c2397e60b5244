package models

import "time"

// Class groups a teacher's tasks and roster.
type Class struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	TeacherID string    `db:"teacher_id" json:"teacherId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
