package database

import (
	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.WorkspaceRole{},
		&models.WorkspaceMember{},
		&models.Task{},
		&models.Problem{},
		&models.ConfirmationToken{},
		&models.PasswordResetToken{},
		&models.WorkspaceInvitation{},
	)
}

// SeedData is a hook for start-up fixtures. Workspace roles are created per
// member rather than from a catalogue, so there is nothing to seed today.
func SeedData(db *gorm.DB) error {
	return nil
}
