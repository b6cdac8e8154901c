package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/notes/internal/pkg/cron"
	"github.com/mx-space/notes/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type tokenStats struct{ s store.TokenStats }

func (t tokenStats) Stats(context.Context) (store.TokenStats, error) { return t.s, nil }

type linkStats struct{ s store.LinkStats }

func (l linkStats) Stats(context.Context) (store.LinkStats, error) { return l.s, nil }

func passAuth(c *gin.Context) { c.Next() }

func newRouter(db, redis Pinger, sched *cron.Scheduler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(db, redis, sched,
		tokenStats{store.TokenStats{Total: 3, Active: 1, Revoked: 2}},
		linkStats{store.LinkStats{Total: 1, Active: 1}},
	)
	h.RegisterRoutes(r.Group(""), passAuth)
	return r
}

func do(r http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestHealth(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("down") })

	w, body := do(newRouter(ok, nil, cron.New(nil)), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "redis")

	w, body = do(newRouter(ok, down, cron.New(nil)), http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, false, body["redis"])
	assert.Equal(t, true, body["database"])
}

func TestStats(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	w, body := do(newRouter(ok, nil, cron.New(nil)), http.MethodGet, "/health/stats")
	require.Equal(t, http.StatusOK, w.Code)

	tokens := body["refresh_tokens"].(map[string]any)
	assert.Equal(t, float64(3), tokens["total"])
	assert.Equal(t, float64(2), tokens["revoked"])
	links := body["public_links"].(map[string]any)
	assert.Equal(t, float64(1), links["active"])
}

func TestCronRoutes(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	sched := cron.New(nil)
	ran := make(chan struct{}, 1)
	sched.Register(cron.Job{Name: "cleanup_public_links", Interval: time.Hour, Fn: func(context.Context) (int64, error) {
		ran <- struct{}{}
		return 2, nil
	}})
	r := newRouter(ok, nil, sched)

	w, body := do(r, http.MethodGet, "/health/cron")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body, "cleanup_public_links")

	w, _ = do(r, http.MethodPost, "/health/cron/run/cleanup_public_links")
	require.Equal(t, http.StatusOK, w.Code)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job was not triggered")
	}

	require.Eventually(t, func() bool {
		_, body := do(r, http.MethodGet, "/health/cron/task/cleanup_public_links")
		return body["status"] == string(cron.StatusFulfill)
	}, time.Second, 5*time.Millisecond)

	w, _ = do(r, http.MethodPost, "/health/cron/run/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = do(r, http.MethodGet, "/health/cron/task/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
