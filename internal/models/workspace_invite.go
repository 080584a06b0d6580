package models

import "time"

// WorkspaceInvite represents an invitation for an email address to join a workspace.
type WorkspaceInvite struct {
	BaseModel

	WorkspaceID string     `gorm:"type:uuid;index;not null" json:"workspace_id"`
	Email       string     `gorm:"not null;index" json:"email"`
	TokenHash   string     `gorm:"not null;uniqueIndex" json:"-"`
	InvitedBy   string     `gorm:"type:uuid" json:"invited_by"`
	ExpiresAt   time.Time  `gorm:"index" json:"expires_at"`
	AcceptedAt  *time.Time `json:"accepted_at"`

	Workspace *Workspace `gorm:"constraint:OnDelete:CASCADE" json:"workspace,omitempty"`
}
