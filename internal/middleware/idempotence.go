package middleware

import (
	"bytes"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	pkgredis "github.com/mx-space/notes/internal/pkg/redis"
	"github.com/mx-space/notes/internal/pkg/response"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
)

const (
	idempotenceHeader = "X-Idempotence"
	idempotenceTTL    = 60 * time.Second
)

// Idempotence rejects a repeated POST or PUT while the first one is running,
// and for a minute after it succeeded. Requests are identified by the
// X-Idempotence header, or by a digest of the method, URL, body and caller.
func Idempotence(rc *pkgredis.Client, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rc == nil || shouldSkipIdempotence(c.Request.Method, c.Request.URL.Path) {
			c.Next()
			return
		}

		key, err := resolveIdempotenceKey(c)
		if err != nil || key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		redisKey := rc.Key("idempotence", key)
		stored, err := rc.SetNX(ctx, redisKey, "0", idempotenceTTL)
		if err != nil {
			log.Warn("idempotence unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !stored {
			msg := "The same request can only succeed once per minute"
			if val, _ := rc.Get(ctx, redisKey); val == "0" {
				msg = "The same request is still being processed"
			}
			response.Conflict(c, msg)
			return
		}

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			_ = rc.Set(ctx, redisKey, "1", idempotenceTTL)
		} else {
			_ = rc.Del(ctx, redisKey)
		}
	}
}

// shouldSkipIdempotence exempts everything but POST and PUT, plus the auth
// endpoints that must be repeatable.
func shouldSkipIdempotence(method, path string) bool {
	switch method {
	case http.MethodPost, http.MethodPut:
	default:
		return true
	}

	p := strings.TrimRight(strings.ToLower(strings.TrimSpace(path)), "/")
	switch {
	case strings.HasSuffix(p, "/auth/login"),
		strings.HasSuffix(p, "/auth/refresh"),
		strings.HasSuffix(p, "/auth/logout"),
		strings.HasSuffix(p, "/verify-password"):
		return true
	}
	return false
}

// resolveIdempotenceKey returns the idempotence key for the current request.
// A client-supplied key is scoped to the caller's bearer token, or to the
// client IP when there is none.
func resolveIdempotenceKey(c *gin.Context) (string, error) {
	authToken := NormalizeToken(c.GetHeader("Authorization"))
	if hdr := strings.TrimSpace(c.GetHeader(idempotenceHeader)); hdr != "" {
		caller := authToken
		if caller == "" {
			caller = "ip:" + c.ClientIP()
		}
		h := blake3.Sum256([]byte(hdr + "|" + caller))
		return hex.EncodeToString(h[:]), nil
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

	ua := c.Request.UserAgent()
	ip := c.ClientIP()
	if len(body) == 0 && ua == "" && ip == "" && authToken == "" {
		return "", nil
	}

	raw := c.Request.Method + "|" + c.Request.URL.String() + "|" + string(body) + "|" + ua + "|" + ip + "|" + authToken
	h := blake3.Sum256([]byte(raw))
	return hex.EncodeToString(h[:]), nil
}
