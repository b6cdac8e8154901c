package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSignAndParse(t *testing.T) {
	issuer := NewIssuer(testSecret, "notes", 15*time.Minute)

	token, expires, err := issuer.Sign("user-1", "a@example.com", "session-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expires, 2*time.Second)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "session-1", claims.SessionID)
	assert.NotEmpty(t, claims.ID)
}

func TestParseRejects(t *testing.T) {
	issuer := NewIssuer(testSecret, "notes", time.Minute)
	token, _, err := issuer.Sign("user-1", "", "")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := issuer.WithClock(func() time.Time { return time.Now().Add(2 * time.Minute) })
		_, err := later.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.ErrorIs(t, err, jwtlib.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewIssuer("ffffffffffffffffffffffffffffffff", "notes", time.Minute)
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewIssuer(testSecret, "someone-else", time.Minute)
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		none := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, Claims{UserID: "user-1"})
		raw, err := none.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = issuer.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
