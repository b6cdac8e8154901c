package publiclink

import (
	"time"

	"github.com/mx-space/notes/internal/models"
)

// MaxAccessLimit is the largest access cap a link may carry.
const MaxAccessLimit = 10000

type CreateDTO struct {
	ExpiresAt      *time.Time `json:"expires_at"`
	MaxAccessCount *int64     `json:"max_access_count"`
	Password       string     `json:"password"`
	Description    string     `json:"description" binding:"max=255"`
}

// UpdateDTO replaces the link's expiry and cap; nil clears them. A nil
// Password keeps the current one and an empty Password removes protection.
type UpdateDTO struct {
	ExpiresAt      *time.Time `json:"expires_at"`
	MaxAccessCount *int64     `json:"max_access_count"`
	Password       *string    `json:"password"`
	Description    *string    `json:"description" binding:"omitempty,max=255"`
}

type verifyPasswordDTO struct {
	Password string `json:"password" binding:"required"`
}

// LinkView is the owner-facing rendering of a link.
type LinkView struct {
	ID                  string     `json:"id"`
	NoteID              string     `json:"note_id"`
	Token               string     `json:"token"`
	ExpiresAt           *time.Time `json:"expires_at"`
	MaxAccessCount      *int64     `json:"max_access_count"`
	AccessCount         int64      `json:"access_count"`
	RemainingAccess     *int64     `json:"remaining_access"`
	Active              bool       `json:"active"`
	IsPasswordProtected bool       `json:"is_password_protected"`
	IsValid             bool       `json:"is_valid"`
	State               string     `json:"state,omitempty"`
	Description         string     `json:"description"`
	LastAccessedAt      *time.Time `json:"last_accessed_at"`
	Created             time.Time  `json:"created"`
	Modified            time.Time  `json:"modified"`
}

// Info is what an anonymous visitor may learn about a link without using it.
type Info struct {
	IsPasswordProtected bool       `json:"is_password_protected"`
	ExpiresAt           *time.Time `json:"expires_at"`
	MaxAccessCount      *int64     `json:"max_access_count"`
	AccessCount         int64      `json:"access_count"`
	RemainingAccess     *int64     `json:"remaining_access"`
	IsValid             bool       `json:"is_valid"`
	Reason              string     `json:"reason,omitempty"`
	Description         string     `json:"description"`
}

// SharedNote is the note as seen through a link.
type SharedNote struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	ContentMD  string    `json:"content_md"`
	Tags       []string  `json:"tags"`
	OwnerEmail string    `json:"owner_email"`
	ViewCount  int64     `json:"view_count"`
	Created    time.Time `json:"created"`
	Modified   time.Time `json:"modified"`
}

// Access is the link state right after a successful resolve.
type Access struct {
	AccessCount     int64      `json:"access_count"`
	MaxAccessCount  *int64     `json:"max_access_count"`
	RemainingAccess *int64     `json:"remaining_access"`
	ExpiresAt       *time.Time `json:"expires_at"`
	AccessedAt      time.Time  `json:"accessed_at"`
}

// Snapshot is the result of resolving a link.
type Snapshot struct {
	Note   SharedNote `json:"note"`
	Access Access     `json:"access"`
}

func newLinkView(l *models.PublicLink, now time.Time) LinkView {
	state := l.State(now)
	return LinkView{
		ID:                  l.ID,
		NoteID:              l.NoteID,
		Token:               l.Token,
		ExpiresAt:           l.ExpiresAt,
		MaxAccessCount:      l.MaxAccessCount,
		AccessCount:         l.AccessCount,
		RemainingAccess:     l.Remaining(),
		Active:              l.Active,
		IsPasswordProtected: l.PasswordProtected(),
		IsValid:             state == models.LinkUsable,
		State:               string(state),
		Description:         l.Description,
		LastAccessedAt:      l.LastAccessedAt,
		Created:             l.CreatedAt,
		Modified:            l.UpdatedAt,
	}
}

func newInfo(l *models.PublicLink, now time.Time) Info {
	state := l.State(now)
	return Info{
		IsPasswordProtected: l.PasswordProtected(),
		ExpiresAt:           l.ExpiresAt,
		MaxAccessCount:      l.MaxAccessCount,
		AccessCount:         l.AccessCount,
		RemainingAccess:     l.Remaining(),
		IsValid:             state == models.LinkUsable,
		Reason:              string(state),
		Description:         l.Description,
	}
}

func tagLabels(tags []models.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Label
	}
	return out
}
