// Package store defines the persistence boundary used by the services.
//
// Lookups return (nil, nil) when a row does not exist; callers translate that
// into their own not-found errors. Conditional mutations report whether a row
// matched so callers can detect lost races without application-level locks.
// Every blocking call takes a context.
//
// Invariants spanning several rows are serialized per entity: callers take
// LockUser before replacing a user's refresh tokens and LockNote before
// creating a share, inside WithTx. SQL stores hold a row lock until the
// transaction ends; the memory store already runs transactions one at a time.
//
// Two implementations exist: gormstore (MySQL or PostgreSQL through GORM) and
// memory (process-local maps for development and tests).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/pkg/pagination"
)

var (
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrNotFound is returned by mutations whose target row does not exist.
	ErrNotFound = errors.New("store: not found")
)

// Store is the full persistence surface.
type Store interface {
	Users
	Notes
	Shares
	PublicLinks
	RefreshTokens
	Tags

	// WithTx runs fn in a single transaction. fn must only use the Store it is given.
	// A nested call joins the outer transaction; SQL stores scope it with a savepoint.
	WithTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
	Close() error
}

type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsUserByEmail(ctx context.Context, email string) (bool, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	TouchUserLogin(ctx context.Context, id string, at time.Time) error
	// LockUser blocks other LockUser calls on the same user until the
	// surrounding transaction ends. A missing user is not an error.
	LockUser(ctx context.Context, id string) error
}

// NoteFilter selects notes for listing. Zero-value fields do not filter.
type NoteFilter struct {
	OwnerID    string
	Visibility models.Visibility
	// Query matches title or content, case-insensitively.
	Query string
	// TagLabel restricts to notes linked to the tag.
	TagLabel string
	Favorite bool
	// SharedWith restricts to notes with an active share for this user.
	SharedWith string
	// AccessibleBy selects notes owned by, actively shared with, or public to this user.
	// It replaces OwnerID.
	AccessibleBy string
	// Now is the instant share expiry is evaluated at.
	Now time.Time
}

type Notes interface {
	CreateNote(ctx context.Context, n *models.Note) error
	GetNote(ctx context.Context, id string) (*models.Note, error)
	// LockNote is GetNote holding the row until the surrounding transaction ends.
	LockNote(ctx context.Context, id string) (*models.Note, error)
	UpdateNote(ctx context.Context, n *models.Note) error
	// DeleteNote removes the note with its shares, public links and tag links.
	DeleteNote(ctx context.Context, id string) (bool, error)
	// IncrementNoteViews atomically adds one view and returns the new count.
	IncrementNoteViews(ctx context.Context, id string) (int64, error)
	ListNotes(ctx context.Context, f NoteFilter, q pagination.Query) ([]models.Note, int64, error)
}

type Shares interface {
	CreateShare(ctx context.Context, s *models.Share) error
	GetShare(ctx context.Context, id string) (*models.Share, error)
	// FindActiveShare returns the active share for (note, user), expired or not.
	FindActiveShare(ctx context.Context, noteID, userID string) (*models.Share, error)
	ListSharesByNote(ctx context.Context, noteID string) ([]models.Share, error)
	// ListSharesReceived lists the user's active, unexpired shares.
	ListSharesReceived(ctx context.Context, userID string, now time.Time, q pagination.Query) ([]models.Share, int64, error)
	UpdateShare(ctx context.Context, s *models.Share) error
	// DeactivateShare flips an active share to inactive; false when it was not active.
	DeactivateShare(ctx context.Context, id string, at time.Time) (bool, error)
	DeactivateNoteShares(ctx context.Context, noteID string, at time.Time) (int64, error)
	DeleteShare(ctx context.Context, id string) (bool, error)
	DeleteSharesExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// LinkStats summarizes public links at a point in time.
type LinkStats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Expired   int64 `json:"expired"`
	Exhausted int64 `json:"exhausted"`
}

type PublicLinks interface {
	CreatePublicLink(ctx context.Context, l *models.PublicLink) error
	GetPublicLink(ctx context.Context, id string) (*models.PublicLink, error)
	GetPublicLinkByToken(ctx context.Context, token string) (*models.PublicLink, error)
	ListPublicLinksByNote(ctx context.Context, noteID string) ([]models.PublicLink, error)
	UpdatePublicLink(ctx context.Context, l *models.PublicLink) error
	// ConsumePublicLink locks the link, re-checks it at now and, when usable,
	// increments access_count. It returns the link state after the decision and
	// whether an access was admitted. A missing link yields (nil, false, nil).
	ConsumePublicLink(ctx context.Context, id string, now time.Time) (*models.PublicLink, bool, error)
	DeletePublicLink(ctx context.Context, id string) (bool, error)
	DeletePublicLinksExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	PublicLinkStats(ctx context.Context, now time.Time) (LinkStats, error)
}

// TokenPurge selects refresh tokens to delete.
type TokenPurge struct {
	ExpiredBefore time.Time
	RevokedBefore time.Time
	CreatedBefore time.Time
}

// TokenStats summarizes refresh tokens at a point in time.
type TokenStats struct {
	Total   int64 `json:"total"`
	Active  int64 `json:"active"`
	Revoked int64 `json:"revoked"`
	Expired int64 `json:"expired"`
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t *models.RefreshToken) error
	GetRefreshToken(ctx context.Context, id string) (*models.RefreshToken, error)
	GetRefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// RevokeRefreshToken revokes the token only if it is not revoked yet.
	RevokeRefreshToken(ctx context.Context, id, reason string, replacedBy *string, at time.Time) (bool, error)
	RevokeUserRefreshTokens(ctx context.Context, userID, reason string, at time.Time) (int64, error)
	ListActiveRefreshTokens(ctx context.Context, userID string, now time.Time) ([]models.RefreshToken, error)
	DeleteRefreshTokens(ctx context.Context, p TokenPurge) (int64, error)
	RefreshTokenStats(ctx context.Context, now time.Time) (TokenStats, error)
}

type Tags interface {
	// GetOrCreateTag returns the tag with the label, creating it when missing.
	GetOrCreateTag(ctx context.Context, label string) (*models.Tag, error)
	ListNoteTags(ctx context.Context, noteID string) ([]models.Tag, error)
	ListTagsForNotes(ctx context.Context, noteIDs []string) (map[string][]models.Tag, error)
	// SetNoteTags replaces the note's tags and adjusts usage counters.
	SetNoteTags(ctx context.Context, noteID string, tagIDs []string) error
	ListTags(ctx context.Context, query string, limit int) ([]models.Tag, error)
	DeleteUnusedTags(ctx context.Context) (int64, error)
}
