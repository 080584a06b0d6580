package models

// Thread is a named conversation inside a workspace.
type Thread struct {
	BaseModel

	WorkspaceID string `gorm:"type:uuid;index;not null" json:"workspace_id"`
	Title       string `gorm:"not null" json:"title"`
	CreatedBy   string `gorm:"type:uuid" json:"created_by"`

	Messages []Message `gorm:"foreignKey:ThreadID" json:"messages,omitempty"`
}

// Message is a single post inside a thread.
type Message struct {
	BaseModel

	ThreadID string `gorm:"type:uuid;index;not null" json:"thread_id"`
	AuthorID string `gorm:"type:uuid;index;not null" json:"author_id"`
	Content  string `gorm:"type:text;not null" json:"content"`
}
