package models

import "time"

// PublicLink is an unauthenticated, tokenized grant to read one note.
type PublicLink struct {
	Base
	NoteID         string     `json:"note_id"          gorm:"type:char(36);index;not null"`
	CreatedByID    string     `json:"created_by_id"    gorm:"type:char(36);not null"`
	Token          string     `json:"token"            gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt      *time.Time `json:"expires_at"       gorm:"index"`
	MaxAccessCount *int64     `json:"max_access_count"`
	AccessCount    int64      `json:"access_count"     gorm:"not null;default:0"`
	Active         bool       `json:"active"           gorm:"not null"`
	PasswordHash   string     `json:"-"                gorm:"size:255"`
	Description    string     `json:"description"      gorm:"size:255"`
	LastAccessedAt *time.Time `json:"last_accessed_at"`
}

func (PublicLink) TableName() string { return "public_links" }

// LinkState names why a link can or cannot be used.
type LinkState string

const (
	LinkUsable    LinkState = ""
	LinkInactive  LinkState = "inactive"
	LinkExpired   LinkState = "expired"
	LinkExhausted LinkState = "exhausted"
)

// State evaluates the link at now. Inactive wins over expired, expired over exhausted.
func (l *PublicLink) State(now time.Time) LinkState {
	switch {
	case !l.Active:
		return LinkInactive
	case l.ExpiresAt != nil && !now.Before(*l.ExpiresAt):
		return LinkExpired
	case l.MaxAccessCount != nil && l.AccessCount >= *l.MaxAccessCount:
		return LinkExhausted
	}
	return LinkUsable
}

// Remaining returns max - count when the link is capped.
func (l *PublicLink) Remaining() *int64 {
	if l.MaxAccessCount == nil {
		return nil
	}
	n := *l.MaxAccessCount - l.AccessCount
	if n < 0 {
		n = 0
	}
	return &n
}

// PasswordProtected reports whether resolving the link requires a password.
func (l *PublicLink) PasswordProtected() bool { return l.PasswordHash != "" }
