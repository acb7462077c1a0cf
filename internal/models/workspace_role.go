package models

// Workspace role names assigned to members. Owners get RoleOwner on
// workspace creation; invited users join as RoleWorker.
const (
	RoleOwner   = "OWNER"
	RoleManager = "MANAGER"
	RoleMentor  = "MENTOR"
	RoleWorker  = "WORKER"
)

// WorkspaceRole is a per-user role record referenced by a membership row.
type WorkspaceRole struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	Name   string `gorm:"not null" json:"name"`
}
