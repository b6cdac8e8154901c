package models

import "time"

// User is an account. Users are deactivated, never hard-deleted.
type User struct {
	Base
	Email        string     `json:"email"         gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string     `json:"-"             gorm:"size:255;not null"`
	Active       bool       `json:"active"        gorm:"not null"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

func (User) TableName() string { return "users" }
