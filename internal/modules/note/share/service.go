// Package share grants individual users a permission on a note.
package share

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/pkg/access"
	"github.com/mx-space/notes/internal/pkg/apperr"
	"github.com/mx-space/notes/internal/pkg/pagination"
	"github.com/mx-space/notes/internal/store"
	"go.uber.org/zap"
)

const DefaultRetention = 30 * 24 * time.Hour

var (
	ErrShareNotFound     = apperr.NotFound("share not found")
	ErrUserNotFound      = apperr.NotFound("no user with this email")
	ErrSelfShare         = apperr.Validation("self_share", "you cannot share a note with yourself")
	ErrAlreadyShared     = apperr.Conflict("already_shared", "this note is already shared with this user")
	ErrInvalidPermission = apperr.Validation("invalid_permission", "permission must be READ, WRITE or ADMIN")
	ErrExpiryInPast      = apperr.Validation("expires_at_past", "expiry must be in the future")
)

type Service struct {
	store     store.Store
	access    *access.Engine
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l.Named("ShareService") }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

func NewService(s store.Store, engine *access.Engine, opts ...Option) *Service {
	svc := &Service{
		store:     s,
		access:    engine,
		retention: DefaultRetention,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create shares an owned note with the user behind dto.UserEmail. Sharing a
// private note makes it SHARED.
func (s *Service) Create(ctx context.Context, noteID, principal string, dto CreateDTO) (*View, error) {
	if !dto.Permission.Valid() {
		return nil, ErrInvalidPermission
	}
	now := s.now()
	if dto.ExpiresAt != nil && !dto.ExpiresAt.After(now) {
		return nil, ErrExpiryInPast
	}

	if _, err := s.access.RequireOwner(ctx, noteID, principal); err != nil {
		return nil, err
	}

	var created models.Share
	var users map[string]*models.User
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		// The note row lock serializes share creation per note.
		note, err := tx.LockNote(ctx, noteID)
		if err != nil {
			return fmt.Errorf("load note: %w", err)
		}
		if note == nil {
			return access.ErrNoteNotFound
		}
		target, err := tx.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(dto.UserEmail)))
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if target == nil || !target.Active {
			return ErrUserNotFound
		}
		if target.ID == principal {
			return ErrSelfShare
		}

		existing, err := tx.FindActiveShare(ctx, note.ID, target.ID)
		if err != nil {
			return fmt.Errorf("load share: %w", err)
		}
		if existing != nil {
			if existing.Usable(now) {
				return ErrAlreadyShared
			}
			if _, err := tx.DeactivateShare(ctx, existing.ID, now); err != nil {
				return fmt.Errorf("retire expired share: %w", err)
			}
		}

		created = models.Share{
			NoteID:       note.ID,
			SharedWithID: target.ID,
			SharedByID:   principal,
			Permission:   dto.Permission,
			ExpiresAt:    dto.ExpiresAt,
			Active:       true,
		}
		if err := tx.CreateShare(ctx, &created); err != nil {
			return fmt.Errorf("create share: %w", err)
		}
		if note.Visibility == models.VisibilityPrivate {
			note.Visibility = models.VisibilityShared
			if err := tx.UpdateNote(ctx, note); err != nil {
				return fmt.Errorf("promote note visibility: %w", err)
			}
		}
		users, err = tx.GetUsersByIDs(ctx, []string{target.ID, principal})
		if err != nil {
			return fmt.Errorf("load users: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("create share", err)
	}
	s.logger.Info("note shared",
		zap.String("note_id", created.NoteID),
		zap.String("shared_with", created.SharedWithID),
		zap.String("permission", string(created.Permission)),
	)
	view := newView(&created, users, now)
	return &view, nil
}

// ListForNote lists every share of an owned note, inactive ones included.
func (s *Service) ListForNote(ctx context.Context, noteID, principal string) ([]View, error) {
	if _, err := s.access.RequireOwner(ctx, noteID, principal); err != nil {
		return nil, err
	}
	shares, err := s.store.ListSharesByNote(ctx, noteID)
	if err != nil {
		return nil, apperr.Internal("list shares", err)
	}
	return s.views(ctx, shares, false)
}

// Received lists the live shares other users granted the principal.
func (s *Service) Received(ctx context.Context, principal string, q pagination.Query) ([]View, int64, error) {
	shares, total, err := s.store.ListSharesReceived(ctx, principal, s.now(), q)
	if err != nil {
		return nil, 0, apperr.Internal("list received shares", err)
	}
	views, err := s.views(ctx, shares, true)
	return views, total, err
}

func (s *Service) Update(ctx context.Context, id, principal string, dto UpdateDTO) (*View, error) {
	if !dto.Permission.Valid() {
		return nil, ErrInvalidPermission
	}
	now := s.now()
	if dto.ExpiresAt != nil && !dto.ExpiresAt.After(now) {
		return nil, ErrExpiryInPast
	}
	sh, err := s.owned(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	sh.Permission = dto.Permission
	sh.ExpiresAt = dto.ExpiresAt
	if err := s.store.UpdateShare(ctx, sh); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, apperr.Internal("update share", err)
	}
	views, err := s.views(ctx, []models.Share{*sh}, false)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Revoke deactivates a share. Revoking an inactive share is a no-op.
func (s *Service) Revoke(ctx context.Context, id, principal string) error {
	sh, err := s.owned(ctx, id, principal)
	if err != nil {
		return err
	}
	revoked, err := s.store.DeactivateShare(ctx, sh.ID, s.now())
	if err != nil {
		return apperr.Internal("revoke share", err)
	}
	if revoked {
		s.logger.Info("share revoked", zap.String("share_id", sh.ID))
	}
	return nil
}

// RevokeAll deactivates every share of an owned note.
func (s *Service) RevokeAll(ctx context.Context, noteID, principal string) (int64, error) {
	if _, err := s.access.RequireOwner(ctx, noteID, principal); err != nil {
		return 0, err
	}
	n, err := s.store.DeactivateNoteShares(ctx, noteID, s.now())
	if err != nil {
		return 0, apperr.Internal("revoke shares", err)
	}
	s.logger.Info("note shares revoked", zap.String("note_id", noteID), zap.Int64("count", n))
	return n, nil
}

func (s *Service) Delete(ctx context.Context, id, principal string) error {
	sh, err := s.owned(ctx, id, principal)
	if err != nil {
		return err
	}
	ok, err := s.store.DeleteShare(ctx, sh.ID)
	if err != nil {
		return apperr.Internal("delete share", err)
	}
	if !ok {
		return ErrShareNotFound
	}
	return nil
}

// Cleanup deletes shares that expired more than the retention window ago.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteSharesExpiredBefore(ctx, s.now().Add(-s.retention))
	if err != nil {
		return 0, apperr.Internal("purge shares", err)
	}
	if n > 0 {
		s.logger.Info("purged expired shares", zap.Int64("count", n))
	}
	return n, nil
}

// owned loads a share and checks the principal owns its note.
func (s *Service) owned(ctx context.Context, id, principal string) (*models.Share, error) {
	sh, err := s.store.GetShare(ctx, id)
	if err != nil {
		return nil, apperr.Internal("load share", err)
	}
	if sh == nil {
		return nil, ErrShareNotFound
	}
	if _, err := s.access.RequireOwner(ctx, sh.NoteID, principal); err != nil {
		return nil, err
	}
	return sh, nil
}

// views renders shares with user emails, and note titles when withTitles.
func (s *Service) views(ctx context.Context, shares []models.Share, withTitles bool) ([]View, error) {
	ids := make([]string, 0, 2*len(shares))
	for _, sh := range shares {
		ids = append(ids, sh.SharedWithID, sh.SharedByID)
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("load users", err)
	}

	now := s.now()
	titles := make(map[string]string)
	out := make([]View, len(shares))
	for i := range shares {
		out[i] = newView(&shares[i], users, now)
		if !withTitles {
			continue
		}
		noteID := shares[i].NoteID
		title, ok := titles[noteID]
		if !ok {
			note, err := s.store.GetNote(ctx, noteID)
			if err != nil {
				return nil, apperr.Internal("load note", err)
			}
			if note != nil {
				title = note.Title
			}
			titles[noteID] = title
		}
		out[i].NoteTitle = title
	}
	return out, nil
}

func wrap(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal(op, err)
}
