package models

import "time"

// ConfirmationToken stores account-verification tokens. Confirmed rows are
// kept in place (confirmed_at set) rather than deleted so redemption can be
// audited; expired rows are likewise left for audit.
type ConfirmationToken struct {
	BaseModel

	Email       string     `gorm:"not null;index" json:"email"`
	TokenHash   string     `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt   time.Time  `gorm:"index" json:"expires_at"`
	ConfirmedAt *time.Time `json:"confirmed_at"`
}
