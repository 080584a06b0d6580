package models

import "time"

// Task statuses form a closed set; transitions are unconstrained except that
// completion stamps CompletedAt.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// Task is a unit of work inside a project, optionally assigned to a user.
type Task struct {
	BaseModel

	ProjectID   string  `gorm:"type:uuid;index;not null" json:"project_id"`
	Title       string  `gorm:"not null" json:"title"`
	Description string  `json:"description"`
	Status      string  `gorm:"type:varchar(32);default:'todo';index" json:"status"`
	AssigneeID  *string `gorm:"type:uuid;index" json:"assignee_id"`
	CreatedBy   string  `gorm:"type:uuid" json:"created_by"`

	DueAt       *time.Time `json:"due_at"`
	CompletedAt *time.Time `json:"completed_at"`
}
