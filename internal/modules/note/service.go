// Package note manages notes and their tags. Reads go through the access
// engine; deletes and visibility changes are reserved for the owner.
package note

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/modules/note/tag"
	"github.com/mx-space/notes/internal/pkg/access"
	"github.com/mx-space/notes/internal/pkg/apperr"
	"github.com/mx-space/notes/internal/pkg/pagination"
	"github.com/mx-space/notes/internal/store"
	"go.uber.org/zap"
)

var (
	ErrTitleRequired     = apperr.Validation("title_required", "title is required")
	ErrTitleTooLong      = apperr.Validation("title_too_long", fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	ErrInvalidVisibility = apperr.Validation("invalid_visibility", "visibility must be PRIVATE, SHARED or PUBLIC")
)

type Service struct {
	store  store.Store
	access *access.Engine
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l.Named("NoteService") }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(s store.Store, engine *access.Engine, opts ...Option) *Service {
	svc := &Service{
		store:  s,
		access: engine,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) Create(ctx context.Context, principal string, dto CreateDTO) (*View, error) {
	title, err := validTitle(dto.Title)
	if err != nil {
		return nil, err
	}
	vis := dto.Visibility
	if vis == "" {
		vis = models.VisibilityPrivate
	}
	if !vis.Valid() {
		return nil, ErrInvalidVisibility
	}

	n := &models.Note{
		OwnerID:    principal,
		Title:      title,
		ContentMD:  dto.ContentMD,
		Visibility: vis,
	}
	var tags []models.Tag
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateNote(ctx, n); err != nil {
			return fmt.Errorf("create note: %w", err)
		}
		tags, err = tag.Resolve(ctx, tx, dto.Tags)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			return nil
		}
		if err := tx.SetNoteTags(ctx, n.ID, tag.IDs(tags)); err != nil {
			return fmt.Errorf("tag note: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("create note", err)
	}
	s.logger.Info("note created", zap.String("note_id", n.ID), zap.String("owner_id", principal))
	return s.render(ctx, n, principal, tags)
}

// Get returns the note when the principal may read it and counts the read.
// principal may be empty for anonymous readers.
func (s *Service) Get(ctx context.Context, id, principal string) (*View, error) {
	n, err := s.access.Authorize(ctx, id, principal, access.Read)
	if err != nil {
		return nil, err
	}
	views, err := s.store.IncrementNoteViews(ctx, n.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, access.ErrNoteNotFound
		}
		return nil, apperr.Internal("count view", err)
	}
	n.ViewCount = views

	tags, err := s.store.ListNoteTags(ctx, n.ID)
	if err != nil {
		return nil, apperr.Internal("load tags", err)
	}
	return s.render(ctx, n, principal, tags)
}

// Update needs WRITE for title, content and tags. Changing visibility is
// reserved for the owner.
func (s *Service) Update(ctx context.Context, id, principal string, dto UpdateDTO) (*View, error) {
	current, err := s.access.Authorize(ctx, id, principal, access.Write)
	if err != nil {
		return nil, err
	}
	if dto.Visibility != nil && *dto.Visibility != current.Visibility {
		if !dto.Visibility.Valid() {
			return nil, ErrInvalidVisibility
		}
		if current.OwnerID != principal {
			return nil, access.ErrNotOwner
		}
	}
	var title string
	if dto.Title != nil {
		if title, err = validTitle(*dto.Title); err != nil {
			return nil, err
		}
	}

	var n *models.Note
	var tags []models.Tag
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		n, err = tx.GetNote(ctx, id)
		if err != nil {
			return fmt.Errorf("load note: %w", err)
		}
		if n == nil {
			return access.ErrNoteNotFound
		}
		if dto.Title != nil {
			n.Title = title
		}
		if dto.ContentMD != nil {
			n.ContentMD = *dto.ContentMD
		}
		if dto.Visibility != nil {
			n.Visibility = *dto.Visibility
		}
		if err := tx.UpdateNote(ctx, n); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return access.ErrNoteNotFound
			}
			return fmt.Errorf("update note: %w", err)
		}

		if dto.Tags != nil {
			if tags, err = tag.Resolve(ctx, tx, dto.Tags); err != nil {
				return err
			}
			if err := tx.SetNoteTags(ctx, n.ID, tag.IDs(tags)); err != nil {
				return fmt.Errorf("tag note: %w", err)
			}
			return nil
		}
		tags, err = tx.ListNoteTags(ctx, n.ID)
		if err != nil {
			return fmt.Errorf("load tags: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("update note", err)
	}
	s.logger.Info("note updated", zap.String("note_id", n.ID), zap.String("by", principal))
	return s.render(ctx, n, principal, tags)
}

// Delete removes an owned note together with its shares, links and tag links.
func (s *Service) Delete(ctx context.Context, id, principal string) error {
	if _, err := s.access.RequireOwner(ctx, id, principal); err != nil {
		return err
	}
	ok, err := s.store.DeleteNote(ctx, id)
	if err != nil {
		return apperr.Internal("delete note", err)
	}
	if !ok {
		return access.ErrNoteNotFound
	}
	s.logger.Info("note deleted", zap.String("note_id", id))
	return nil
}

// Search lists notes for the principal. A query over PUBLIC searches every
// public note; any other query, tag or visibility filter stays within the
// principal's own notes, except that a bare PUBLIC filter lists all public
// notes. Without criteria it lists everything the principal can read.
func (s *Service) Search(ctx context.Context, principal string, f Filter, q pagination.Query) ([]ListItem, int64, error) {
	if f.Visibility != "" && !f.Visibility.Valid() {
		return nil, 0, ErrInvalidVisibility
	}
	query := strings.TrimSpace(f.Query)
	label := strings.Join(strings.Fields(f.Tag), " ")

	var nf store.NoteFilter
	switch {
	case query != "" && f.Visibility == models.VisibilityPublic:
		nf = store.NoteFilter{Visibility: models.VisibilityPublic, Query: query}
	case query != "":
		nf = store.NoteFilter{OwnerID: principal, Query: query}
	case label != "":
		nf = store.NoteFilter{OwnerID: principal, TagLabel: label}
	case f.Visibility == models.VisibilityPublic:
		nf = store.NoteFilter{Visibility: models.VisibilityPublic}
	case f.Visibility != "":
		nf = store.NoteFilter{OwnerID: principal, Visibility: f.Visibility}
	default:
		nf = store.NoteFilter{AccessibleBy: principal}
	}
	return s.list(ctx, nf, q)
}

// Favorites lists the principal's notes marked favorite.
func (s *Service) Favorites(ctx context.Context, principal string, q pagination.Query) ([]ListItem, int64, error) {
	return s.list(ctx, store.NoteFilter{OwnerID: principal, Favorite: true}, q)
}

// SharedWithMe lists notes other users actively share with the principal.
func (s *Service) SharedWithMe(ctx context.Context, principal string, q pagination.Query) ([]ListItem, int64, error) {
	return s.list(ctx, store.NoteFilter{SharedWith: principal}, q)
}

func (s *Service) Public(ctx context.Context, q pagination.Query) ([]ListItem, int64, error) {
	return s.list(ctx, store.NoteFilter{Visibility: models.VisibilityPublic}, q)
}

// ToggleFavorite flips the favorite flag of an owned note.
func (s *Service) ToggleFavorite(ctx context.Context, id, principal string) (*View, error) {
	n, err := s.access.RequireOwner(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	n.Favorite = !n.Favorite
	if err := s.store.UpdateNote(ctx, n); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, access.ErrNoteNotFound
		}
		return nil, apperr.Internal("toggle favorite", err)
	}
	tags, err := s.store.ListNoteTags(ctx, n.ID)
	if err != nil {
		return nil, apperr.Internal("load tags", err)
	}
	return s.render(ctx, n, principal, tags)
}

func (s *Service) list(ctx context.Context, f store.NoteFilter, q pagination.Query) ([]ListItem, int64, error) {
	f.Now = s.now()
	notes, total, err := s.store.ListNotes(ctx, f, q)
	if err != nil {
		return nil, 0, apperr.Internal("list notes", err)
	}
	ids := make([]string, len(notes))
	owners := make([]string, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
		owners[i] = n.OwnerID
	}
	tags, err := s.store.ListTagsForNotes(ctx, ids)
	if err != nil {
		return nil, 0, apperr.Internal("load tags", err)
	}
	users, err := s.store.GetUsersByIDs(ctx, owners)
	if err != nil {
		return nil, 0, apperr.Internal("load owners", err)
	}

	items := make([]ListItem, len(notes))
	for i := range notes {
		items[i] = newListItem(&notes[i], emailOf(users, notes[i].OwnerID), tags[notes[i].ID])
	}
	return items, total, nil
}

// render builds the full view. The owner also sees the note's shares and links.
func (s *Service) render(ctx context.Context, n *models.Note, principal string, tags []models.Tag) (*View, error) {
	owner, err := s.store.GetUser(ctx, n.OwnerID)
	if err != nil {
		return nil, apperr.Internal("load owner", err)
	}
	email := ""
	if owner != nil {
		email = owner.Email
	}
	view := newView(n, email, tags)

	capability, err := s.access.Effective(ctx, n, principal)
	if err != nil {
		return nil, err
	}
	view.Permission = capability.String()

	if principal == "" || principal != n.OwnerID {
		return &view, nil
	}
	if view.Shares, err = s.shareSummaries(ctx, n.ID); err != nil {
		return nil, err
	}
	if view.PublicLinks, err = s.linkSummaries(ctx, n.ID); err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *Service) shareSummaries(ctx context.Context, noteID string) ([]ShareSummary, error) {
	shares, err := s.store.ListSharesByNote(ctx, noteID)
	if err != nil {
		return nil, apperr.Internal("list shares", err)
	}
	ids := make([]string, len(shares))
	for i, sh := range shares {
		ids[i] = sh.SharedWithID
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("load users", err)
	}
	out := make([]ShareSummary, 0, len(shares))
	for _, sh := range shares {
		out = append(out, ShareSummary{
			ID:         sh.ID,
			UserID:     sh.SharedWithID,
			UserEmail:  emailOf(users, sh.SharedWithID),
			Permission: sh.Permission,
			ExpiresAt:  sh.ExpiresAt,
			Active:     sh.Active,
		})
	}
	return out, nil
}

func (s *Service) linkSummaries(ctx context.Context, noteID string) ([]LinkSummary, error) {
	links, err := s.store.ListPublicLinksByNote(ctx, noteID)
	if err != nil {
		return nil, apperr.Internal("list public links", err)
	}
	now := s.now()
	out := make([]LinkSummary, 0, len(links))
	for i := range links {
		l := &links[i]
		out = append(out, LinkSummary{
			ID:                  l.ID,
			Token:               l.Token,
			ExpiresAt:           l.ExpiresAt,
			MaxAccessCount:      l.MaxAccessCount,
			AccessCount:         l.AccessCount,
			IsPasswordProtected: l.PasswordProtected(),
			IsValid:             l.State(now) == models.LinkUsable,
		})
	}
	return out, nil
}

func emailOf(users map[string]*models.User, id string) string {
	if u, ok := users[id]; ok && u != nil {
		return u.Email
	}
	return ""
}

func validTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", ErrTitleTooLong
	}
	return title, nil
}

func wrap(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal(op, err)
}
