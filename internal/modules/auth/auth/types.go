package auth

import (
	"strings"
	"time"

	"github.com/mx-space/notes/internal/models"
)

// MinPasswordLength is the shortest accepted account password.
const MinPasswordLength = 6

type RegisterDTO struct {
	Email    string `json:"email"    binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type LoginDTO struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshDTO struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type logoutDTO struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse is returned by register, login and refresh. The refresh token
// appears here and nowhere else.
type AuthResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type UserView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"last_login_at"`
	Created     time.Time  `json:"created"`
}

type SessionView struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Created   time.Time `json:"created"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current"`
}

func newUserView(u *models.User) UserView {
	return UserView{
		ID:          u.ID,
		Email:       u.Email,
		Active:      u.Active,
		LastLoginAt: u.LastLoginAt,
		Created:     u.CreatedAt,
	}
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
