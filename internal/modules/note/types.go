package note

import (
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/modules/note/tag"
	"github.com/mx-space/notes/internal/pkg/markdown"
)

const MaxTitleLength = 255

type CreateDTO struct {
	Title      string            `json:"title"      binding:"required,max=255"`
	ContentMD  string            `json:"content_md"`
	Visibility models.Visibility `json:"visibility"`
	Tags       []string          `json:"tags"`
}

// UpdateDTO changes only the fields that are present. An empty tags array
// removes every tag; an absent one keeps them.
type UpdateDTO struct {
	Title      *string            `json:"title"      binding:"omitempty,max=255"`
	ContentMD  *string            `json:"content_md"`
	Visibility *models.Visibility `json:"visibility"`
	Tags       []string           `json:"tags"`
}

// Filter narrows Search. At most one criterion applies: Query first, then
// Tag, then Visibility.
type Filter struct {
	Query      string
	Tag        string
	Visibility models.Visibility
}

// View is the full rendering of a note returned by Get, Create and Update.
type View struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"owner_id"`
	OwnerEmail  string            `json:"owner_email"`
	Title       string            `json:"title"`
	ContentMD   string            `json:"content_md"`
	Visibility  models.Visibility `json:"visibility"`
	ViewCount   int64             `json:"view_count"`
	Favorite    bool              `json:"favorite"`
	Tags        []string          `json:"tags"`
	Permission  string            `json:"permission,omitempty"`
	Shares      []ShareSummary    `json:"shares,omitempty"`
	PublicLinks []LinkSummary     `json:"public_links,omitempty"`
	Created     time.Time         `json:"created"`
	Modified    time.Time         `json:"modified"`
}

// ListItem is a note in a paged listing. Content is reduced to a plain-text excerpt.
type ListItem struct {
	ID         string            `json:"id"`
	OwnerID    string            `json:"owner_id"`
	OwnerEmail string            `json:"owner_email"`
	Title      string            `json:"title"`
	Excerpt    string            `json:"excerpt"`
	Visibility models.Visibility `json:"visibility"`
	ViewCount  int64             `json:"view_count"`
	Favorite   bool              `json:"favorite"`
	Tags       []string          `json:"tags"`
	Created    time.Time         `json:"created"`
	Modified   time.Time         `json:"modified"`
}

// ShareSummary lists a share on the owner's note view.
type ShareSummary struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	UserEmail  string            `json:"user_email"`
	Permission models.Permission `json:"permission"`
	ExpiresAt  *time.Time        `json:"expires_at"`
	Active     bool              `json:"active"`
}

// LinkSummary lists a public link on the owner's note view.
type LinkSummary struct {
	ID                  string     `json:"id"`
	Token               string     `json:"token"`
	ExpiresAt           *time.Time `json:"expires_at"`
	MaxAccessCount      *int64     `json:"max_access_count"`
	AccessCount         int64      `json:"access_count"`
	IsPasswordProtected bool       `json:"is_password_protected"`
	IsValid             bool       `json:"is_valid"`
}

func newView(n *models.Note, ownerEmail string, tags []models.Tag) View {
	return View{
		ID:         n.ID,
		OwnerID:    n.OwnerID,
		OwnerEmail: ownerEmail,
		Title:      n.Title,
		ContentMD:  n.ContentMD,
		Visibility: n.Visibility,
		ViewCount:  n.ViewCount,
		Favorite:   n.Favorite,
		Tags:       tag.Labels(tags),
		Created:    n.CreatedAt,
		Modified:   n.UpdatedAt,
	}
}

func newListItem(n *models.Note, ownerEmail string, tags []models.Tag) ListItem {
	return ListItem{
		ID:         n.ID,
		OwnerID:    n.OwnerID,
		OwnerEmail: ownerEmail,
		Title:      n.Title,
		Excerpt:    markdown.Excerpt(n.ContentMD, markdown.DefaultExcerptLength),
		Visibility: n.Visibility,
		ViewCount:  n.ViewCount,
		Favorite:   n.Favorite,
		Tags:       tag.Labels(tags),
		Created:    n.CreatedAt,
		Modified:   n.UpdatedAt,
	}
}
