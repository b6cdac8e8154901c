package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/notes/internal/pkg/jwt"
	"github.com/mx-space/notes/internal/pkg/response"
)

const (
	ContextKeyUserID = "user_id"
	ContextKeySID    = "session_id"
	ContextKeyEmail  = "email"
)

var errSessionEnded = errors.New("session expired or revoked")

// SessionChecker reports whether the refresh token an access token was
// minted with is still live.
type SessionChecker interface {
	SessionActive(ctx context.Context, userID, tokenID string) (bool, error)
}

// Authenticator validates bearer access tokens.
type Authenticator struct {
	issuer   *jwt.Issuer
	sessions SessionChecker
}

func NewAuthenticator(issuer *jwt.Issuer, sessions SessionChecker) *Authenticator {
	return &Authenticator{issuer: issuer, sessions: sessions}
}

// Auth returns a middleware that enforces access token authentication.
func Auth(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.Validate(c.Request.Context(), extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth sets the user ID if a valid token is present, but does not block the request.
func OptionalAuth(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := a.Validate(c.Request.Context(), extractToken(c)); err == nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}

// Validate parses an access token and checks its session is still live.
func (a *Authenticator) Validate(ctx context.Context, rawToken string) (*jwt.Claims, error) {
	token := NormalizeToken(rawToken)
	if token == "" {
		return nil, errors.New("token is required")
	}
	claims, err := a.issuer.Parse(token)
	if err != nil {
		return nil, err
	}
	if a.sessions != nil {
		active, err := a.sessions.SessionActive(ctx, claims.UserID, claims.SessionID)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, errSessionEnded
		}
	}
	return claims, nil
}

func setClaims(c *gin.Context, claims *jwt.Claims) {
	c.Set(ContextKeyUserID, claims.UserID)
	c.Set(ContextKeyEmail, claims.Email)
	if claims.SessionID != "" {
		c.Set(ContextKeySID, claims.SessionID)
	}
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// CurrentSessionID extracts the authenticated session ID from context.
func CurrentSessionID(c *gin.Context) string {
	return c.GetString(ContextKeySID)
}

// IsAuthenticated returns true if the request has a valid auth token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != ""
}

func extractToken(c *gin.Context) string {
	return NormalizeToken(c.GetHeader("Authorization"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
