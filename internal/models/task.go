package models

import "time"

// Task status values.
const (
	TaskStatusHelpNeeded = "HELP_NEEDED"
	TaskStatusTodo       = "TODO"
	TaskStatusInProgress = "IN_PROGRESS"
	TaskStatusCompleted  = "COMPLETED"
	TaskStatusCanceled   = "CANCELED"
)

// Task importance values.
const (
	TaskImportanceLow    = "LOW"
	TaskImportanceMedium = "MEDIUM"
	TaskImportanceHigh   = "HIGH"
)

// Task is a unit of work assigned between two workspace members.
type Task struct {
	BaseModel

	WorkspaceID string  `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Title       string  `gorm:"not null" json:"title"`
	Description *string `json:"description,omitempty"`
	MediaPath   *string `json:"media_path,omitempty"`

	DueDate    *time.Time `json:"due_date,omitempty"`
	Status     string     `gorm:"not null;default:TODO" json:"status"`
	Importance string     `gorm:"not null;default:MEDIUM" json:"importance"`
	Category   *string    `json:"category,omitempty"`

	AssignerID string `gorm:"type:uuid;not null;index" json:"assigner_id"`
	AssigneeID string `gorm:"type:uuid;not null;index" json:"assignee_id"`

	Assigner *User `gorm:"foreignKey:AssignerID" json:"assigner,omitempty"`
	Assignee *User `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
}

// ValidTaskStatus reports whether the supplied status is one of the known values.
func ValidTaskStatus(status string) bool {
	switch status {
	case TaskStatusHelpNeeded, TaskStatusTodo, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCanceled:
		return true
	}
	return false
}

// ValidTaskImportance reports whether the supplied importance is known.
func ValidTaskImportance(importance string) bool {
	switch importance {
	case TaskImportanceLow, TaskImportanceMedium, TaskImportanceHigh:
		return true
	}
	return false
}
