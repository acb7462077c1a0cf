package models

import "time"

// PasswordResetToken authorises a single password change. The row is
// deleted when redeemed, so presence implies the token is still pending.
type PasswordResetToken struct {
	BaseModel

	Email     string    `gorm:"not null;index" json:"email"`
	TokenHash string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}
