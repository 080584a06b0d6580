package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification represents an in-app notification owned by exactly one user.
// Fan-out creates one row per recipient rather than a shared row.
type Notification struct {
	BaseModel

	UserID  string `gorm:"type:uuid;index;not null" json:"user_id"`
	Type    string `gorm:"type:varchar(64);not null" json:"type"`
	ActorID string `gorm:"type:uuid" json:"actor_id"`

	Title string `gorm:"type:varchar(255);not null;index" json:"title"`
	Body  string `gorm:"type:text" json:"body"`

	// RefID holds the highest-priority contextual reference
	// (task, thread, message, then project).
	RefID       string         `gorm:"type:uuid" json:"ref_id,omitempty"`
	WorkspaceID string         `gorm:"type:uuid;index" json:"workspace_id,omitempty"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}
