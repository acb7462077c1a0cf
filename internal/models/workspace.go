package models

import (
	"time"

	"gorm.io/datatypes"
)

// Workspace is the tenancy unit: every task, problem, and membership is
// scoped to exactly one workspace.
type Workspace struct {
	BaseModel

	Name         string          `gorm:"not null;index" json:"name"`
	OwnerID      string          `gorm:"type:uuid;not null;index" json:"owner_id"`
	Geolocation  *string         `json:"geolocation,omitempty"`
	PlanFileName *string         `json:"plan_file_name,omitempty"`
	StartDate    time.Time       `gorm:"not null" json:"start_date"`
	FinishDate   *datatypes.Date `json:"finish_date,omitempty"`

	Owner   *User             `gorm:"foreignKey:OwnerID" json:"-"`
	Members []WorkspaceMember `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE" json:"-"`
}
