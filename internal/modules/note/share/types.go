package share

import (
	"time"

	"github.com/mx-space/notes/internal/models"
)

type CreateDTO struct {
	UserEmail  string            `json:"user_email" binding:"required,email"`
	Permission models.Permission `json:"permission" binding:"required"`
	ExpiresAt  *time.Time        `json:"expires_at"`
}

// UpdateDTO replaces the share's permission and expiry. A nil ExpiresAt
// removes the expiry.
type UpdateDTO struct {
	Permission models.Permission `json:"permission" binding:"required"`
	ExpiresAt  *time.Time        `json:"expires_at"`
}

type UserRef struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type View struct {
	ID         string            `json:"id"`
	NoteID     string            `json:"note_id"`
	NoteTitle  string            `json:"note_title,omitempty"`
	SharedWith UserRef           `json:"shared_with"`
	SharedBy   UserRef           `json:"shared_by"`
	Permission models.Permission `json:"permission"`
	ExpiresAt  *time.Time        `json:"expires_at"`
	Active     bool              `json:"active"`
	Expired    bool              `json:"expired"`
	RevokedAt  *time.Time        `json:"revoked_at"`
	Created    time.Time         `json:"created"`
	Modified   time.Time         `json:"modified"`
}

func newView(s *models.Share, users map[string]*models.User, now time.Time) View {
	v := View{
		ID:         s.ID,
		NoteID:     s.NoteID,
		SharedWith: userRef(s.SharedWithID, users),
		SharedBy:   userRef(s.SharedByID, users),
		Permission: s.Permission,
		ExpiresAt:  s.ExpiresAt,
		Active:     s.Active,
		Expired:    s.Expired(now),
		RevokedAt:  s.RevokedAt,
		Created:    s.CreatedAt,
		Modified:   s.UpdatedAt,
	}
	return v
}

func userRef(id string, users map[string]*models.User) UserRef {
	ref := UserRef{ID: id}
	if u := users[id]; u != nil {
		ref.Email = u.Email
	}
	return ref
}
