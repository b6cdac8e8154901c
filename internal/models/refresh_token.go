package models

import "time"

// RefreshToken is one link in a user's session chain. Only the digest of the
// opaque token value is persisted.
type RefreshToken struct {
	Base
	UserID        string     `json:"user_id"        gorm:"type:char(36);index;not null"`
	TokenHash     string     `json:"-"              gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt     time.Time  `json:"expires_at"     gorm:"index;not null"`
	Revoked       bool       `json:"revoked"        gorm:"not null;default:false;index"`
	RevokedAt     *time.Time `json:"revoked_at"`
	RevokedReason string     `json:"revoked_reason" gorm:"size:64"`
	ReplacedByID  *string    `json:"replaced_by_id" gorm:"type:char(36)"`
	IP            string     `json:"ip"             gorm:"size:64"`
	UserAgent     string     `json:"user_agent"     gorm:"type:text"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// Expired reports whether the token's lifetime has elapsed at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Valid reports whether the token can still be exchanged.
func (t *RefreshToken) Valid(now time.Time) bool {
	return !t.Revoked && !t.Expired(now)
}
