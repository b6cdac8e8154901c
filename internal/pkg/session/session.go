// Package session is the refresh-token ledger. Every login starts a chain of
// single-use refresh tokens; rotating a token revokes it and links it to its
// successor. Only the BLAKE3 digest of a token value is persisted.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/pkg/apperr"
	"github.com/mx-space/notes/internal/pkg/tokengen"
	"github.com/mx-space/notes/internal/store"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
)

const (
	DefaultTTL       = 7 * 24 * time.Hour
	DefaultMaxAge    = 30 * 24 * time.Hour
	DefaultRetention = 7 * 24 * time.Hour

	ReasonRotation  = "rotation"
	ReasonLogout    = "logout"
	ReasonLogoutAll = "logout_all"

	maxCreateAttempts = 3
)

var (
	ErrTokenInvalid = apperr.Unauthorized("token_invalid", "refresh token is invalid")
	ErrTokenExpired = apperr.Gone("token_expired", "refresh token has expired")
	ErrTokenRevoked = apperr.Gone("token_revoked", "refresh token has been revoked")
)

// Device identifies the client presenting a token.
type Device struct {
	IP        string
	UserAgent string
}

// Issued is a freshly persisted token together with its plaintext value,
// which is never recoverable afterwards.
type Issued struct {
	Value string
	Token models.RefreshToken
}

type Ledger struct {
	store     store.Store
	tokens    tokengen.Generator
	ttl       time.Duration
	maxAge    time.Duration
	retention time.Duration
	now       func() time.Time
	log       *zap.Logger
}

type Option func(*Ledger)

func WithLogger(l *zap.Logger) Option {
	return func(led *Ledger) { led.log = l.Named("TokenLedger") }
}

func WithClock(now func() time.Time) Option {
	return func(led *Ledger) { led.now = now }
}

func WithGenerator(g tokengen.Generator) Option {
	return func(led *Ledger) { led.tokens = g }
}

func WithMaxAge(d time.Duration) Option {
	return func(led *Ledger) {
		if d > 0 {
			led.maxAge = d
		}
	}
}

func WithRetention(d time.Duration) Option {
	return func(led *Ledger) {
		if d > 0 {
			led.retention = d
		}
	}
}

func NewLedger(s store.Store, ttl time.Duration, opts ...Option) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l := &Ledger{
		store:     s,
		tokens:    tokengen.New(tokengen.DefaultBytes),
		ttl:       ttl,
		maxAge:    DefaultMaxAge,
		retention: DefaultRetention,
		now:       time.Now,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TTL is the lifetime of a newly issued token.
func (l *Ledger) TTL() time.Duration { return l.ttl }

// Digest is the at-rest form of a token value.
func Digest(value string) string {
	sum := blake3.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Issue starts a new chain for the user. Existing tokens of the user are
// revoked in the same transaction under the user's row lock, so a user holds
// at most one live chain even when logins race.
func (l *Ledger) Issue(ctx context.Context, userID string, d Device) (*Issued, error) {
	var issued *Issued
	err := l.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		now := l.now()
		if _, err := tx.RevokeUserRefreshTokens(ctx, userID, ReasonRotation, now); err != nil {
			return fmt.Errorf("revoke previous tokens: %w", err)
		}
		var err error
		issued, err = l.create(ctx, tx, userID, "", d, now)
		return err
	})
	if err != nil {
		return nil, wrap("issue refresh token", err)
	}
	return issued, nil
}

// Rotate exchanges a live token for its successor. Of two concurrent rotations
// of the same token exactly one succeeds; the other gets ErrTokenRevoked.
func (l *Ledger) Rotate(ctx context.Context, value string, d Device) (*Issued, error) {
	hash := Digest(value)
	var issued *Issued
	err := l.store.WithTx(ctx, func(tx store.Store) error {
		now := l.now()
		current, err := tx.GetRefreshTokenByHash(ctx, hash)
		if err != nil {
			return fmt.Errorf("load refresh token: %w", err)
		}
		if err := check(current, now); err != nil {
			return err
		}
		// Serializes against Issue and other rotations of the same user's chain.
		if err := tx.LockUser(ctx, current.UserID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		nextID := uuid.NewString()
		won, err := tx.RevokeRefreshToken(ctx, current.ID, ReasonRotation, &nextID, now)
		if err != nil {
			return fmt.Errorf("revoke rotated token: %w", err)
		}
		if !won {
			return ErrTokenRevoked
		}
		if _, err := tx.RevokeUserRefreshTokens(ctx, current.UserID, ReasonRotation, now); err != nil {
			return fmt.Errorf("revoke sibling tokens: %w", err)
		}
		l.warnOnDrift(current, d)

		issued, err = l.create(ctx, tx, current.UserID, nextID, d, now)
		return err
	})
	if err != nil {
		return nil, wrap("rotate refresh token", err)
	}
	return issued, nil
}

// Revoke ends the chain link for value. Unknown or already revoked values are a no-op.
func (l *Ledger) Revoke(ctx context.Context, value, reason string) error {
	current, err := l.store.GetRefreshTokenByHash(ctx, Digest(value))
	if err != nil {
		return apperr.Internal("load refresh token", err)
	}
	if current == nil || current.Revoked {
		return nil
	}
	if _, err := l.store.RevokeRefreshToken(ctx, current.ID, reason, nil, l.now()); err != nil {
		return apperr.Internal("revoke refresh token", err)
	}
	return nil
}

// RevokeAll revokes every live token of the user and returns how many were revoked.
func (l *Ledger) RevokeAll(ctx context.Context, userID, reason string) (int64, error) {
	n, err := l.store.RevokeUserRefreshTokens(ctx, userID, reason, l.now())
	if err != nil {
		return 0, apperr.Internal("revoke user refresh tokens", err)
	}
	l.log.Info("revoked all sessions", zap.String("user_id", userID), zap.String("reason", reason), zap.Int64("count", n))
	return n, nil
}

// Validate reports the token behind value, failing like Rotate without mutating anything.
func (l *Ledger) Validate(ctx context.Context, value string) (*models.RefreshToken, error) {
	current, err := l.store.GetRefreshTokenByHash(ctx, Digest(value))
	if err != nil {
		return nil, apperr.Internal("load refresh token", err)
	}
	if err := check(current, l.now()); err != nil {
		return nil, err
	}
	return current, nil
}

// SessionActive reports whether tokenID is a live token of userID. Access
// tokens carry the id of the refresh token they were minted with.
func (l *Ledger) SessionActive(ctx context.Context, userID, tokenID string) (bool, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return false, nil
	}
	t, err := l.store.GetRefreshToken(ctx, tokenID)
	if err != nil {
		return false, apperr.Internal("load refresh token", err)
	}
	return t != nil && t.UserID == userID && t.Valid(l.now()), nil
}

func (l *Ledger) ListActive(ctx context.Context, userID string) ([]models.RefreshToken, error) {
	tokens, err := l.store.ListActiveRefreshTokens(ctx, userID, l.now())
	if err != nil {
		return nil, apperr.Internal("list refresh tokens", err)
	}
	return tokens, nil
}

// Cleanup deletes tokens that expired or were revoked more than the retention
// window ago, and any token older than the maximum age.
func (l *Ledger) Cleanup(ctx context.Context) (int64, error) {
	now := l.now()
	n, err := l.store.DeleteRefreshTokens(ctx, store.TokenPurge{
		ExpiredBefore: now.Add(-l.retention),
		RevokedBefore: now.Add(-l.retention),
		CreatedBefore: now.Add(-l.maxAge),
	})
	if err != nil {
		return 0, apperr.Internal("purge refresh tokens", err)
	}
	if n > 0 {
		l.log.Info("purged refresh tokens", zap.Int64("count", n))
	}
	return n, nil
}

func (l *Ledger) Stats(ctx context.Context) (store.TokenStats, error) {
	stats, err := l.store.RefreshTokenStats(ctx, l.now())
	if err != nil {
		return stats, apperr.Internal("refresh token stats", err)
	}
	return stats, nil
}

func (l *Ledger) create(ctx context.Context, tx store.Store, userID, id string, d Device, now time.Time) (*Issued, error) {
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		value, err := l.tokens.Generate()
		if err != nil {
			return nil, err
		}
		t := models.RefreshToken{
			Base:      models.Base{ID: id},
			UserID:    userID,
			TokenHash: Digest(value),
			ExpiresAt: now.Add(l.ttl),
			IP:        truncate(strings.TrimSpace(d.IP), 64),
			UserAgent: strings.TrimSpace(d.UserAgent),
		}
		// A savepoint keeps a unique violation from poisoning the outer transaction.
		err = tx.WithTx(ctx, func(sp store.Store) error { return sp.CreateRefreshToken(ctx, &t) })
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("persist refresh token: %w", err)
		}
		return &Issued{Value: value, Token: t}, nil
	}
	return nil, fmt.Errorf("persist refresh token: %w after %d attempts", store.ErrDuplicate, maxCreateAttempts)
}

func (l *Ledger) warnOnDrift(t *models.RefreshToken, d Device) {
	ip := strings.TrimSpace(d.IP)
	ua := strings.TrimSpace(d.UserAgent)
	if (t.IP != "" && ip != "" && t.IP != ip) || (t.UserAgent != "" && ua != "" && t.UserAgent != ua) {
		l.log.Warn("refresh token presented from a different device",
			zap.String("user_id", t.UserID),
			zap.String("token_id", t.ID),
			zap.String("issued_ip", t.IP),
			zap.String("presented_ip", ip),
		)
	}
}

func check(t *models.RefreshToken, now time.Time) error {
	switch {
	case t == nil:
		return ErrTokenInvalid
	case t.Revoked:
		return ErrTokenRevoked
	case t.Expired(now):
		return ErrTokenExpired
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

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
