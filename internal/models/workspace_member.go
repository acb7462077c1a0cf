package models

// WorkspaceMember links an account to a workspace with a role.
type WorkspaceMember struct {
	BaseModel

	UserID          string `gorm:"type:uuid;not null;uniqueIndex:idx_workspace_user" json:"user_id"`
	WorkspaceID     string `gorm:"type:uuid;not null;uniqueIndex:idx_workspace_user" json:"workspace_id"`
	WorkspaceRoleID string `gorm:"type:uuid;not null" json:"workspace_role_id"`

	User      *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Workspace *Workspace     `gorm:"foreignKey:WorkspaceID" json:"-"`
	Role      *WorkspaceRole `gorm:"foreignKey:WorkspaceRoleID" json:"role,omitempty"`
}
