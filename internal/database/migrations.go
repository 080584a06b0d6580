package database

import (
	"gorm.io/gorm"

	"github.com/huddleapp/huddle/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.WorkspaceMember{},
		&models.WorkspaceInvite{},
		&models.Project{},
		&models.Task{},
		&models.Thread{},
		&models.Message{},
		&models.Notification{},
	)
}
