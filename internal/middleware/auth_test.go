package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/notes/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type sessionsFunc func(ctx context.Context, userID, tokenID string) (bool, error)

func (f sessionsFunc) SessionActive(ctx context.Context, userID, tokenID string) (bool, error) {
	return f(ctx, userID, tokenID)
}

const testSecret = "0123456789abcdef0123456789abcdef"

func whoami(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": CurrentUserID(c), "session": CurrentSessionID(c)})
}

func TestNormalizeToken(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"   ":             "",
		"abc":             "abc",
		"Bearer abc":      "abc",
		"bearer   abc ":   "abc",
		"  BEARER x.y.z ": "x.y.z",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeToken(in), "input %q", in)
	}
}

func TestAuth(t *testing.T) {
	issuer := jwt.NewIssuer(testSecret, "notes", time.Minute)
	live := map[string]bool{"s1": true}
	authn := NewAuthenticator(issuer, sessionsFunc(func(_ context.Context, userID, tokenID string) (bool, error) {
		if tokenID == "broken" {
			return false, errors.New("store down")
		}
		return userID == "u1" && live[tokenID], nil
	}))

	r := gin.New()
	r.GET("/me", Auth(authn), whoami)
	r.GET("/maybe", OptionalAuth(authn), whoami)

	sign := func(sid string) string {
		tok, _, err := issuer.Sign("u1", "u1@example.com", sid)
		require.NoError(t, err)
		return tok
	}
	call := func(path, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := call("/me", "Bearer "+sign("s1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"u1","session":"s1"}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call("/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call("/me", "Bearer garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, call("/me", "Bearer "+sign("s2")).Code)
	assert.Equal(t, http.StatusUnauthorized, call("/me", "Bearer "+sign("broken")).Code)

	other := jwt.NewIssuer("fedcba9876543210fedcba9876543210", "notes", time.Minute)
	forged, _, err := other.Sign("u1", "u1@example.com", "s1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call("/me", forged).Code)

	w = call("/maybe", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"","session":""}`, w.Body.String())

	w = call("/maybe", "Bearer "+sign("s2"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"","session":""}`, w.Body.String())

	w = call("/maybe", sign("s1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"u1","session":"s1"}`, w.Body.String())
}
