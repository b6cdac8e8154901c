package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestShouldSkipIdempotence(t *testing.T) {
	cases := []struct {
		method string
		path   string
		skip   bool
	}{
		{http.MethodGet, "/api/v1/notes", true},
		{http.MethodDelete, "/api/v1/notes/1", true},
		{http.MethodPost, "/api/v1/notes", false},
		{http.MethodPut, "/api/v1/notes/1", false},
		{http.MethodPost, "/api/v1/auth/login", true},
		{http.MethodPost, "/api/v1/auth/refresh/", true},
		{http.MethodPost, "/API/V1/AUTH/LOGOUT", true},
		{http.MethodPost, "/api/v1/p/abc/verify-password", true},
		{http.MethodPost, "/api/v1/auth/register", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.skip, shouldSkipIdempotence(tc.method, tc.path), "%s %s", tc.method, tc.path)
	}
}

func TestWindowStart(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, windowStart(base, time.Minute), windowStart(base.Add(59*time.Second), time.Minute))
	assert.NotEqual(t, windowStart(base, time.Minute), windowStart(base.Add(time.Minute), time.Minute))
	assert.Equal(t, windowStart(base, 0), windowStart(base, time.Minute))
}

func TestIdempotenceHeaderKeyIsPerCaller(t *testing.T) {
	key := func(auth, ip string) string {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/notes", strings.NewReader(`{"title":"x"}`))
		c.Request.RemoteAddr = ip + ":4000"
		c.Request.Header.Set(idempotenceHeader, "order-42")
		if auth != "" {
			c.Request.Header.Set("Authorization", "Bearer "+auth)
		}
		k, err := resolveIdempotenceKey(c)
		require.NoError(t, err)
		return k
	}

	alice := key("alice-token", "10.0.0.1")
	assert.NotEqual(t, "order-42", alice)
	assert.Equal(t, alice, key("alice-token", "10.0.0.2"))
	assert.NotEqual(t, alice, key("bob-token", "10.0.0.1"))

	anon := key("", "10.0.0.1")
	assert.Equal(t, anon, key("", "10.0.0.1"))
	assert.NotEqual(t, anon, key("", "10.0.0.2"))
	assert.NotEqual(t, anon, alice)
}

func TestIsCacheableResponse(t *testing.T) {
	h := http.Header{}
	assert.True(t, isCacheableResponse(http.StatusOK, h))
	assert.False(t, isCacheableResponse(http.StatusNotFound, h))

	h.Set("Cache-Control", privateCacheControl)
	assert.False(t, isCacheableResponse(http.StatusOK, h))
}

func TestMiddlewaresPassThroughWithoutRedis(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(nil, 1, time.Minute, zap.NewNop()))
	r.Use(Idempotence(nil, zap.NewNop()))
	r.GET("/cached", PublicCache(nil, 0), func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/write", func(c *gin.Context) { c.Status(http.StatusCreated) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cached", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-Cache"))

		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/write", strings.NewReader(`{"a":1}`)))
		assert.Equal(t, http.StatusCreated, w.Code)
	}
}
