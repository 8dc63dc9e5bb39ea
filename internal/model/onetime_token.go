package model

import (
	"time"

	"gorm.io/gorm"
)

// Purposes a one-time token can be issued for.
const (
	PurposePasswordReset = "password_reset"
	PurposeEmailVerify   = "email_verify"
)

// OneTimeToken is a narrowly scoped single-use credential (password reset,
// email verification). Unlike the stateless JWTs, these are persisted so
// consumption can be enforced exactly once.
type OneTimeToken struct {
	ID        string         `gorm:"primaryKey" json:"id"`
	Token     string         `json:"-" gorm:"uniqueIndex"` // Never expose the actual token in JSON responses
	UserID    uint           `json:"user_id" gorm:"index;not null"`
	Purpose   string         `json:"purpose" gorm:"type:varchar(50);not null"`
	ExpiresAt time.Time      `json:"expires_at"`
	Consumed  bool           `json:"consumed" gorm:"default:false"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook will be called before creating a new OneTimeToken record
func (t *OneTimeToken) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == "" {
		t.ID = generateSecureID("ott_")
	}
	if t.Token == "" {
		t.Token = generateSecureToken()
	}
	return nil
}

// IsExpired checks if the token is expired
func (t *OneTimeToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsValid checks if the token is still usable (not expired and not consumed)
func (t *OneTimeToken) IsValid() bool {
	return !t.Consumed && !t.IsExpired()
}
