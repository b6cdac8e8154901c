// Package publiclink issues and resolves tokenized public links to notes.
//
// A link is usable while it is active, unexpired and below its access cap.
// Resolving a link consumes one access; the check and the increment happen
// under a row lock so a capped link is never admitted past its cap.
package publiclink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/pkg/access"
	"github.com/mx-space/notes/internal/pkg/apperr"
	"github.com/mx-space/notes/internal/pkg/hasher"
	"github.com/mx-space/notes/internal/pkg/tokengen"
	"github.com/mx-space/notes/internal/store"
	"go.uber.org/zap"
)

const (
	DefaultMaxTokenAttempts = 5
	DefaultRetention        = 7 * 24 * time.Hour
)

var (
	ErrLinkNotFound      = apperr.NotFound("public link not found")
	ErrInactive          = apperr.Gone(string(models.LinkInactive), "this link has been deactivated")
	ErrExpired           = apperr.Gone(string(models.LinkExpired), "this link has expired")
	ErrExhausted         = apperr.Gone(string(models.LinkExhausted), "this link has reached its access limit")
	ErrPasswordRequired  = apperr.Validation("password_required", "this link is password protected")
	ErrInvalidPassword   = apperr.Unauthorized("invalid_password", "wrong password")
	ErrTooManyAttempts   = apperr.New(apperr.KindTooManyRequests, "too_many_attempts", "too many wrong passwords, try again later")
	ErrExpiryInPast      = apperr.Validation("expires_at_past", "expiry must be in the future")
	ErrInvalidAccessCap  = apperr.Validation("invalid_max_access_count", fmt.Sprintf("max access count must be between 1 and %d", MaxAccessLimit))
	ErrCapBelowCount     = apperr.Validation("max_access_below_count", "max access count is below the current access count")
	ErrPasswordTooLong   = apperr.Validation("password_too_long", "password must be at most 72 bytes")
	ErrTokenSpaceCrowded = apperr.Conflict("token_collision", "could not allocate a unique link token")
)

type Service struct {
	store     store.Store
	access    *access.Engine
	hasher    hasher.Hasher
	tokens    tokengen.Generator
	attempts  int
	retention time.Duration
	throttle  Throttle
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l.Named("PublicLinkService") }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithGenerator(g tokengen.Generator) Option {
	return func(s *Service) { s.tokens = g }
}

func WithMaxTokenAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.attempts = n
		}
	}
}

func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithThrottle limits wrong password guesses. Without one guesses are unlimited.
func WithThrottle(t Throttle) Option {
	return func(s *Service) { s.throttle = t }
}

func NewService(s store.Store, engine *access.Engine, h hasher.Hasher, opts ...Option) *Service {
	svc := &Service{
		store:     s,
		access:    engine,
		hasher:    h,
		tokens:    tokengen.New(tokengen.DefaultBytes),
		attempts:  DefaultMaxTokenAttempts,
		retention: DefaultRetention,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create issues a new link on a note the principal owns.
func (s *Service) Create(ctx context.Context, noteID, principal string, dto CreateDTO) (*LinkView, error) {
	note, err := s.access.RequireOwner(ctx, noteID, principal)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if dto.ExpiresAt != nil && !dto.ExpiresAt.After(now) {
		return nil, ErrExpiryInPast
	}
	if err := checkCap(dto.MaxAccessCount); err != nil {
		return nil, err
	}
	hash, err := s.hashPassword(dto.Password)
	if err != nil {
		return nil, err
	}

	link := &models.PublicLink{
		NoteID:         note.ID,
		CreatedByID:    principal,
		ExpiresAt:      dto.ExpiresAt,
		MaxAccessCount: dto.MaxAccessCount,
		Active:         true,
		PasswordHash:   hash,
		Description:    strings.TrimSpace(dto.Description),
	}
	if err := s.insert(ctx, link); err != nil {
		return nil, err
	}
	s.logger.Info("public link created",
		zap.String("note_id", note.ID),
		zap.String("link_id", link.ID),
		zap.Bool("password", link.PasswordProtected()),
	)
	view := newLinkView(link, now)
	return &view, nil
}

// insert retries on token collisions. It must not run inside a transaction:
// a failed insert would abort it.
func (s *Service) insert(ctx context.Context, link *models.PublicLink) error {
	for attempt := 1; attempt <= s.attempts; attempt++ {
		token, err := s.tokens.Generate()
		if err != nil {
			return apperr.Internal("generate link token", err)
		}
		link.Token = token
		err = s.store.CreatePublicLink(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return apperr.Internal("create public link", err)
		}
		s.logger.Warn("public link token collision", zap.Int("attempt", attempt))
	}
	return ErrTokenSpaceCrowded
}

// Resolve consumes one access of the link and returns the note behind it.
func (s *Service) Resolve(ctx context.Context, token, password string) (*Snapshot, error) {
	link, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := stateError(link.State(s.now())); err != nil {
		return nil, err
	}
	if err := s.checkPassword(ctx, link, password); err != nil {
		return nil, err
	}

	var snap *Snapshot
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		now := s.now()
		consumed, admitted, err := tx.ConsumePublicLink(ctx, link.ID, now)
		if err != nil {
			return fmt.Errorf("consume public link: %w", err)
		}
		if consumed == nil {
			return ErrLinkNotFound
		}
		if !admitted {
			if err := stateError(consumed.State(now)); err != nil {
				return err
			}
			return ErrExhausted
		}

		note, err := tx.GetNote(ctx, consumed.NoteID)
		if err != nil {
			return fmt.Errorf("load note: %w", err)
		}
		if note == nil {
			return ErrLinkNotFound
		}
		views, err := tx.IncrementNoteViews(ctx, note.ID)
		if err != nil {
			return fmt.Errorf("count view: %w", err)
		}
		tags, err := tx.ListNoteTags(ctx, note.ID)
		if err != nil {
			return fmt.Errorf("load tags: %w", err)
		}
		owner, err := tx.GetUser(ctx, note.OwnerID)
		if err != nil {
			return fmt.Errorf("load owner: %w", err)
		}

		snap = &Snapshot{
			Note: SharedNote{
				ID:        note.ID,
				Title:     note.Title,
				ContentMD: note.ContentMD,
				Tags:      tagLabels(tags),
				ViewCount: views,
				Created:   note.CreatedAt,
				Modified:  note.UpdatedAt,
			},
			Access: Access{
				AccessCount:     consumed.AccessCount,
				MaxAccessCount:  consumed.MaxAccessCount,
				RemainingAccess: consumed.Remaining(),
				ExpiresAt:       consumed.ExpiresAt,
				AccessedAt:      now,
			},
		}
		if owner != nil {
			snap.Note.OwnerEmail = owner.Email
		}
		return nil
	})
	if err != nil {
		return nil, wrap("resolve public link", err)
	}
	return snap, nil
}

// Info describes a link without consuming an access.
func (s *Service) Info(ctx context.Context, token string) (*Info, error) {
	link, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	info := newInfo(link, s.now())
	return &info, nil
}

// VerifyPassword checks a password without consuming an access. Links
// without a password accept anything.
func (s *Service) VerifyPassword(ctx context.Context, token, password string) (bool, error) {
	link, err := s.lookup(ctx, token)
	if err != nil {
		return false, err
	}
	if !link.PasswordProtected() {
		return true, nil
	}
	err = s.checkPassword(ctx, link, password)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrInvalidPassword), errors.Is(err, ErrPasswordRequired):
		return false, nil
	}
	return false, err
}

func (s *Service) ListForNote(ctx context.Context, noteID, principal string) ([]LinkView, error) {
	if _, err := s.access.RequireOwner(ctx, noteID, principal); err != nil {
		return nil, err
	}
	links, err := s.store.ListPublicLinksByNote(ctx, noteID)
	if err != nil {
		return nil, apperr.Internal("list public links", err)
	}
	now := s.now()
	out := make([]LinkView, len(links))
	for i := range links {
		out[i] = newLinkView(&links[i], now)
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, id, principal string, dto UpdateDTO) (*LinkView, error) {
	link, err := s.owned(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if dto.ExpiresAt != nil && !dto.ExpiresAt.After(now) {
		return nil, ErrExpiryInPast
	}
	if err := checkCap(dto.MaxAccessCount); err != nil {
		return nil, err
	}
	if dto.MaxAccessCount != nil && *dto.MaxAccessCount < link.AccessCount {
		return nil, ErrCapBelowCount
	}

	link.ExpiresAt = dto.ExpiresAt
	link.MaxAccessCount = dto.MaxAccessCount
	if dto.Description != nil {
		link.Description = strings.TrimSpace(*dto.Description)
	}
	if dto.Password != nil {
		hash, err := s.hashPassword(*dto.Password)
		if err != nil {
			return nil, err
		}
		link.PasswordHash = hash
	}
	if err := s.store.UpdatePublicLink(ctx, link); err != nil {
		return nil, s.mutationError("update public link", err)
	}
	view := newLinkView(link, now)
	return &view, nil
}

func (s *Service) Deactivate(ctx context.Context, id, principal string) (*LinkView, error) {
	return s.setActive(ctx, id, principal, false)
}

// Reactivate turns a deactivated link back on. Expiry and cap still apply.
func (s *Service) Reactivate(ctx context.Context, id, principal string) (*LinkView, error) {
	return s.setActive(ctx, id, principal, true)
}

func (s *Service) setActive(ctx context.Context, id, principal string, active bool) (*LinkView, error) {
	link, err := s.owned(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	if link.Active != active {
		link.Active = active
		if err := s.store.UpdatePublicLink(ctx, link); err != nil {
			return nil, s.mutationError("update public link", err)
		}
		s.logger.Info("public link state changed", zap.String("link_id", link.ID), zap.Bool("active", active))
	}
	view := newLinkView(link, s.now())
	return &view, nil
}

func (s *Service) Delete(ctx context.Context, id, principal string) error {
	link, err := s.owned(ctx, id, principal)
	if err != nil {
		return err
	}
	return s.remove(ctx, link)
}

func (s *Service) DeleteByToken(ctx context.Context, token, principal string) error {
	link, err := s.lookup(ctx, token)
	if err != nil {
		return err
	}
	if _, err := s.access.RequireOwner(ctx, link.NoteID, principal); err != nil {
		return err
	}
	return s.remove(ctx, link)
}

func (s *Service) remove(ctx context.Context, link *models.PublicLink) error {
	ok, err := s.store.DeletePublicLink(ctx, link.ID)
	if err != nil {
		return apperr.Internal("delete public link", err)
	}
	if !ok {
		return ErrLinkNotFound
	}
	s.logger.Info("public link deleted", zap.String("link_id", link.ID))
	return nil
}

// Cleanup deletes links that expired more than the retention window ago.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.store.DeletePublicLinksExpiredBefore(ctx, s.now().Add(-s.retention))
	if err != nil {
		return 0, apperr.Internal("purge public links", err)
	}
	if n > 0 {
		s.logger.Info("purged expired public links", zap.Int64("count", n))
	}
	return n, nil
}

func (s *Service) Stats(ctx context.Context) (store.LinkStats, error) {
	stats, err := s.store.PublicLinkStats(ctx, s.now())
	if err != nil {
		return stats, apperr.Internal("public link stats", err)
	}
	return stats, nil
}

func (s *Service) lookup(ctx context.Context, token string) (*models.PublicLink, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrLinkNotFound
	}
	link, err := s.store.GetPublicLinkByToken(ctx, token)
	if err != nil {
		return nil, apperr.Internal("load public link", err)
	}
	if link == nil {
		return nil, ErrLinkNotFound
	}
	return link, nil
}

// owned loads a link by id and checks the principal owns its note.
func (s *Service) owned(ctx context.Context, id, principal string) (*models.PublicLink, error) {
	link, err := s.store.GetPublicLink(ctx, id)
	if err != nil {
		return nil, apperr.Internal("load public link", err)
	}
	if link == nil {
		return nil, ErrLinkNotFound
	}
	if _, err := s.access.RequireOwner(ctx, link.NoteID, principal); err != nil {
		return nil, err
	}
	return link, nil
}

func (s *Service) checkPassword(ctx context.Context, link *models.PublicLink, password string) error {
	if !link.PasswordProtected() {
		return nil
	}
	if password == "" {
		return ErrPasswordRequired
	}
	key := throttleKey(ctx, link.ID)
	if s.throttle != nil {
		blocked, err := s.throttle.Blocked(ctx, key)
		if err != nil {
			s.logger.Warn("password throttle unavailable", zap.Error(err))
		} else if blocked {
			return ErrTooManyAttempts
		}
	}
	if !s.hasher.Verify(link.PasswordHash, password) {
		if s.throttle != nil {
			if err := s.throttle.Fail(ctx, key); err != nil {
				s.logger.Warn("record failed password", zap.Error(err))
			}
		}
		return ErrInvalidPassword
	}
	return nil
}

// hashPassword returns "" for a blank password, which leaves the link unprotected.
func (s *Service) hashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", nil
	}
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, hasher.ErrTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", apperr.Internal("hash link password", err)
	}
	return hash, nil
}

func (s *Service) mutationError(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrLinkNotFound
	}
	return apperr.Internal(op, err)
}

func checkCap(max *int64) error {
	if max != nil && (*max < 1 || *max > MaxAccessLimit) {
		return ErrInvalidAccessCap
	}
	return nil
}

func stateError(state models.LinkState) error {
	switch state {
	case models.LinkInactive:
		return ErrInactive
	case models.LinkExpired:
		return ErrExpired
	case models.LinkExhausted:
		return ErrExhausted
	}
	return nil
}

func wrap(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal(op, err)
}
