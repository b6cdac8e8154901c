// Package auth registers accounts and exchanges credentials for token pairs.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/pkg/apperr"
	"github.com/mx-space/notes/internal/pkg/hasher"
	"github.com/mx-space/notes/internal/pkg/jwt"
	"github.com/mx-space/notes/internal/pkg/session"
	"github.com/mx-space/notes/internal/store"
	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = apperr.Unauthorized("invalid_credentials", "email or password is incorrect")
	ErrEmailTaken         = apperr.Conflict("email_taken", "email is already registered")
	ErrInvalidEmail       = apperr.Validation("invalid_email", "email is invalid")
	ErrWeakPassword       = apperr.Validation("weak_password", "password must be at least 6 characters")
	ErrPasswordTooLong    = apperr.Validation("password_too_long", "password must be at most 72 bytes")
	ErrUserNotFound       = apperr.NotFound("user not found")
)

// dummySecret is hashed once so unknown emails cost the same as wrong passwords.
const dummySecret = "correct horse battery staple"

type Service struct {
	store     store.Store
	hasher    hasher.Hasher
	issuer    *jwt.Issuer
	ledger    *session.Ledger
	dummyHash string
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l.Named("AuthService") }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(s store.Store, h hasher.Hasher, issuer *jwt.Issuer, ledger *session.Ledger, opts ...Option) *Service {
	svc := &Service{
		store:  s,
		hasher: h,
		issuer: issuer,
		ledger: ledger,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if hash, err := h.Hash(dummySecret); err == nil {
		svc.dummyHash = hash
	} else {
		svc.logger.Warn("hash dummy secret", zap.Error(err))
	}
	return svc
}

func (s *Service) Register(ctx context.Context, dto RegisterDTO, d session.Device) (*AuthResponse, error) {
	email := NormalizeEmail(dto.Email)
	if email == "" || len(email) > 255 || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(dto.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := s.hasher.Hash(dto.Password)
	if errors.Is(err, hasher.ErrTooLong) {
		return nil, ErrPasswordTooLong
	}
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}

	user := &models.User{Email: email, PasswordHash: hash, Active: true}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, apperr.Internal("create user", err)
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return s.issue(ctx, user, d)
}

// Login fails identically for unknown emails, wrong passwords and
// deactivated accounts.
func (s *Service) Login(ctx context.Context, dto LoginDTO, d session.Device) (*AuthResponse, error) {
	user, err := s.store.GetUserByEmail(ctx, NormalizeEmail(dto.Email))
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	if user == nil || !user.Active {
		s.hasher.Verify(s.dummyHash, dto.Password)
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(user.PasswordHash, dto.Password) {
		s.logger.Info("login failed", zap.String("user_id", user.ID), zap.String("ip", d.IP))
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.store.TouchUserLogin(ctx, user.ID, now); err != nil {
		return nil, apperr.Internal("stamp login", err)
	}
	user.LastLoginAt = &now
	return s.issue(ctx, user, d)
}

// Refresh rotates the refresh token and mints a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string, d session.Device) (*AuthResponse, error) {
	issued, err := s.ledger.Rotate(ctx, refreshToken, d)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, issued.Token.UserID)
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	if user == nil || !user.Active {
		if err := s.ledger.Revoke(ctx, issued.Value, session.ReasonLogout); err != nil {
			s.logger.Warn("revoke token of inactive user", zap.Error(err))
		}
		return nil, session.ErrTokenInvalid
	}
	return s.respond(user, issued)
}

// Logout revokes one refresh token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.ledger.Revoke(ctx, refreshToken, session.ReasonLogout)
}

// LogoutAll revokes every refresh token of the user.
func (s *Service) LogoutAll(ctx context.Context, userID string) (int64, error) {
	return s.ledger.RevokeAll(ctx, userID, session.ReasonLogoutAll)
}

func (s *Service) Me(ctx context.Context, userID string) (*UserView, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	view := newUserView(user)
	return &view, nil
}

// CheckEmail reports whether an account exists for email.
func (s *Service) CheckEmail(ctx context.Context, email string) (bool, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return false, ErrInvalidEmail
	}
	exists, err := s.store.ExistsUserByEmail(ctx, email)
	if err != nil {
		return false, apperr.Internal("check email", err)
	}
	return exists, nil
}

// Sessions lists the user's live refresh tokens. currentID marks the one the
// caller is using.
func (s *Service) Sessions(ctx context.Context, userID, currentID string) ([]SessionView, error) {
	tokens, err := s.ledger.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]SessionView, len(tokens))
	for i, t := range tokens {
		out[i] = SessionView{
			ID:        t.ID,
			IP:        t.IP,
			UserAgent: t.UserAgent,
			Created:   t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
			Current:   t.ID == currentID,
		}
	}
	return out, nil
}

func (s *Service) issue(ctx context.Context, user *models.User, d session.Device) (*AuthResponse, error) {
	issued, err := s.ledger.Issue(ctx, user.ID, d)
	if err != nil {
		return nil, err
	}
	return s.respond(user, issued)
}

func (s *Service) respond(user *models.User, issued *session.Issued) (*AuthResponse, error) {
	access, expires, err := s.issuer.Sign(user.ID, user.Email, issued.Token.ID)
	if err != nil {
		return nil, apperr.Internal("sign access token", err)
	}
	ttl := s.issuer.TTL()
	return &AuthResponse{
		AccessToken:  access,
		RefreshToken: issued.Value,
		TokenType:    "Bearer",
		ExpiresIn:    int64(ttl / time.Second),
		UserID:       user.ID,
		Email:        user.Email,
		IssuedAt:     expires.Add(-ttl),
		ExpiresAt:    expires,
	}, nil
}
