package models

import "time"

// WorkspaceInvitation invites an email address into a workspace. The row is
// deleted inside the acceptance transaction to prevent replay.
type WorkspaceInvitation struct {
	BaseModel

	Email       string    `gorm:"not null;index" json:"email"`
	TokenHash   string    `gorm:"uniqueIndex;not null" json:"-"`
	WorkspaceID string    `gorm:"type:uuid;not null;index" json:"workspace_id"`
	ExpiresAt   time.Time `gorm:"index" json:"expires_at"`

	Workspace *Workspace `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE" json:"-"`
}
