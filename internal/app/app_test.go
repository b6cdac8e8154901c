package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mx-space/notes/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testConfig = `
env: test
database:
  driver: memory
redis:
  enable: false
auth:
  bcrypt_cost: 4
`

type client struct {
	t      *testing.T
	router http.Handler
}

func newTestApp(t *testing.T) *client {
	t.Helper()
	t.Setenv("NOTES_LOG_DIR", t.TempDir())
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)
	a, err := New(zap.NewNop(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)
	return &client{t: t, router: a.Router()}
}

func (c *client) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type account struct {
	access  string
	refresh string
	id      string
}

func (c *client) register(email string) account {
	c.t.Helper()
	w := c.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"email": email, "password": "secret-pass"})
	require.Equal(c.t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(c.t, w)
	return account{
		access:  body["access_token"].(string),
		refresh: body["refresh_token"].(string),
		id:      body["user_id"].(string),
	}
}

func TestPing(t *testing.T) {
	c := newTestApp(t)

	w := c.do(http.MethodGet, "/api/v1/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = c.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = c.do(http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSharingFlow(t *testing.T) {
	c := newTestApp(t)
	alice := c.register("alice@example.com")
	bob := c.register("bob@example.com")

	w := c.do(http.MethodPost, "/api/v1/notes", alice.access, map[string]any{
		"title":      "Roadmap",
		"content_md": "# Q3\n\nShip sharing.",
		"tags":       []string{"work"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	note := decode(t, w)
	noteID := note["id"].(string)
	assert.Equal(t, "PRIVATE", note["visibility"])

	w = c.do(http.MethodGet, "/api/v1/notes/"+noteID, bob.access, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = c.do(http.MethodPost, "/api/v1/notes/"+noteID+"/share/user", alice.access, map[string]any{
		"user_email": "bob@example.com",
		"permission": "READ",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	shareID := decode(t, w)["id"].(string)

	w = c.do(http.MethodGet, "/api/v1/notes/"+noteID, bob.access, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "READ", decode(t, w)["permission"])

	w = c.do(http.MethodPut, "/api/v1/notes/"+noteID, bob.access, map[string]any{"title": "Mine now"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = c.do(http.MethodPut, "/api/v1/shares/"+shareID, alice.access, map[string]any{"permission": "WRITE"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = c.do(http.MethodPut, "/api/v1/notes/"+noteID, bob.access, map[string]any{"title": "Roadmap v2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Roadmap v2", decode(t, w)["title"])

	w = c.do(http.MethodDelete, "/api/v1/notes/"+noteID, bob.access, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = c.do(http.MethodGet, "/api/v1/shares/received", bob.access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = c.do(http.MethodPost, "/api/v1/shares/"+shareID+"/revoke", alice.access, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = c.do(http.MethodGet, "/api/v1/notes/"+noteID, bob.access, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = c.do(http.MethodDelete, "/api/v1/notes/"+noteID, alice.access, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = c.do(http.MethodGet, "/api/v1/notes/"+noteID, alice.access, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTokenRotation(t *testing.T) {
	c := newTestApp(t)
	alice := c.register("alice@example.com")

	w := c.do(http.MethodGet, "/api/v1/auth/me", alice.access, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = c.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": alice.refresh})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rotated := decode(t, w)
	assert.NotEqual(t, alice.refresh, rotated["refresh_token"])

	// The previous access token was bound to the rotated refresh token.
	w = c.do(http.MethodGet, "/api/v1/auth/me", alice.access, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = c.do(http.MethodGet, "/api/v1/auth/me", rotated["access_token"].(string), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = c.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": alice.refresh})
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "token_revoked", decode(t, w)["reason"])

	w = c.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": "bogus"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = c.do(http.MethodPost, "/api/v1/auth/logout", "", map[string]string{"refresh_token": rotated["refresh_token"].(string)})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = c.do(http.MethodGet, "/api/v1/auth/me", rotated["access_token"].(string), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPublicLinkFlow(t *testing.T) {
	c := newTestApp(t)
	alice := c.register("alice@example.com")

	w := c.do(http.MethodPost, "/api/v1/notes", alice.access, map[string]any{"title": "Recipe", "content_md": "Flour, water."})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	noteID := decode(t, w)["id"].(string)

	w = c.do(http.MethodPost, "/api/v1/notes/"+noteID+"/share/public", alice.access, map[string]any{"max_access_count": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	capped := decode(t, w)["token"].(string)

	for i := 0; i < 2; i++ {
		w = c.do(http.MethodGet, "/api/v1/p/"+capped, "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w = c.do(http.MethodGet, "/api/v1/p/"+capped, "", nil)
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "exhausted", decode(t, w)["reason"])

	w = c.do(http.MethodPost, "/api/v1/notes/"+noteID+"/share/public", alice.access, map[string]any{"password": "hunter22"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	locked := decode(t, w)["token"].(string)

	w = c.do(http.MethodGet, "/api/v1/p/"+locked+"/info", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["is_password_protected"])

	w = c.do(http.MethodGet, "/api/v1/p/"+locked, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.do(http.MethodGet, "/api/v1/p/"+locked, "", nil, "X-Link-Password", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = c.do(http.MethodGet, "/api/v1/p/"+locked, "", nil, "X-Link-Password", "hunter22")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decode(t, w)
	assert.Equal(t, "Recipe", snap["note"].(map[string]any)["title"])
	assert.EqualValues(t, 1, snap["access"].(map[string]any)["access_count"])

	w = c.do(http.MethodDelete, "/api/v1/public-links/token/"+locked, alice.access, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = c.do(http.MethodGet, "/api/v1/p/"+locked, "", nil, "X-Link-Password", "hunter22")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
