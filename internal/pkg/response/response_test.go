package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/notes/internal/pkg/apperr"
	"github.com/mx-space/notes/internal/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(t *testing.T, fn gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)
	var body map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{"NotFound", apperr.NotFound("note not found"), http.StatusNotFound, "not_found"},
		{"Unauthorized", apperr.Unauthorized("invalid_credentials", "invalid email or password"), http.StatusUnauthorized, "invalid_credentials"},
		{"Forbidden", fmt.Errorf("update: %w", apperr.Forbidden("no write access")), http.StatusForbidden, "forbidden"},
		{"Gone", apperr.Gone("expired", "link expired"), http.StatusGone, "expired"},
		{"Conflict", apperr.Conflict("duplicate_share", "already shared"), http.StatusConflict, "duplicate_share"},
		{"Validation", apperr.Validation("password_required", "password required"), http.StatusBadRequest, "password_required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := serve(t, func(c *gin.Context) { response.Error(c, tc.err) })
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, float64(tc.status), body["code"])
			assert.Equal(t, tc.reason, body["reason"])
		})
	}
}

func TestErrorHidesInternalDetails(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		response.Error(c, errors.New("dial tcp 10.0.0.1:3306: connection refused"))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal Server Error", body["message"])
	assert.NotContains(t, body, "reason")
}

func TestOKWrapsSlices(t *testing.T) {
	_, body := serve(t, func(c *gin.Context) { response.OK(c, []string{"a"}) })
	assert.Equal(t, []interface{}{"a"}, body["data"])

	_, body = serve(t, func(c *gin.Context) { response.OK(c, gin.H{"id": "x"}) })
	assert.Equal(t, "x", body["id"])
}
