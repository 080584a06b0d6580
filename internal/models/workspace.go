package models

import "gorm.io/datatypes"

// Workspace is the top-level collaboration container.
type Workspace struct {
	BaseModel

	Name        string         `gorm:"not null" json:"name"`
	Description string         `json:"description"`
	OwnerID     string         `gorm:"type:uuid;index;not null" json:"owner_id"`
	Settings    datatypes.JSON `json:"settings"`

	Members  []WorkspaceMember `gorm:"foreignKey:WorkspaceID" json:"members,omitempty"`
	Projects []Project         `gorm:"foreignKey:WorkspaceID" json:"projects,omitempty"`
}

// Workspace member roles.
const (
	WorkspaceRoleOwner  = "owner"
	WorkspaceRoleMember = "member"
)

// WorkspaceMember links a user to a workspace with a role.
type WorkspaceMember struct {
	BaseModel

	WorkspaceID string `gorm:"type:uuid;index:idx_workspace_user,unique;not null" json:"workspace_id"`
	UserID      string `gorm:"type:uuid;index:idx_workspace_user,unique;not null" json:"user_id"`
	Role        string `gorm:"type:varchar(32);default:'member'" json:"role"`

	User *User `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
}
