package models

// Project groups tasks inside a workspace.
type Project struct {
	BaseModel

	WorkspaceID string `gorm:"type:uuid;index;not null" json:"workspace_id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	CreatedBy   string `gorm:"type:uuid" json:"created_by"`

	Tasks []Task `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
}
