package models

import "time"

// Permission is the capability a share grants. Levels are ordered READ < WRITE < ADMIN.
type Permission string

const (
	PermissionRead  Permission = "READ"
	PermissionWrite Permission = "WRITE"
	PermissionAdmin Permission = "ADMIN"
)

// Valid reports whether p is one of the known permission levels.
func (p Permission) Valid() bool {
	switch p {
	case PermissionRead, PermissionWrite, PermissionAdmin:
		return true
	}
	return false
}

// Share grants one user a permission on one note. At most one share per
// (note, user) is active; inactive or expired shares are kept for audit.
type Share struct {
	Base
	NoteID       string     `json:"note_id"        gorm:"type:char(36);index:idx_share_note_user;not null"`
	SharedWithID string     `json:"shared_with_id" gorm:"type:char(36);index:idx_share_note_user;index;not null"`
	SharedByID   string     `json:"shared_by_id"   gorm:"type:char(36);not null"`
	Permission   Permission `json:"permission"     gorm:"size:16;not null"`
	ExpiresAt    *time.Time `json:"expires_at"     gorm:"index"`
	Active       bool       `json:"active"         gorm:"not null;index"`
	RevokedAt    *time.Time `json:"revoked_at"`
}

func (Share) TableName() string { return "shares" }

// Expired reports whether the share has an expiry at or before now.
func (s *Share) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// Usable reports whether the share currently grants access.
func (s *Share) Usable(now time.Time) bool {
	return s.Active && !s.Expired(now)
}
