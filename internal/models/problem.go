package models

// Problem records an issue raised by a worker and routed to a mentor.
type Problem struct {
	BaseModel

	WorkspaceID string  `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Description *string `json:"description,omitempty"`
	MediaPath   *string `json:"media_path,omitempty"`

	WorkerID string `gorm:"type:uuid;not null;index" json:"worker_id"`
	MentorID string `gorm:"type:uuid;not null;index" json:"mentor_id"`

	Worker *User `gorm:"foreignKey:WorkerID" json:"worker,omitempty"`
	Mentor *User `gorm:"foreignKey:MentorID" json:"mentor,omitempty"`
}
