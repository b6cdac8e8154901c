package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	pkgredis "github.com/mx-space/notes/internal/pkg/redis"
	"github.com/mx-space/notes/internal/pkg/response"
	"go.uber.org/zap"
)

// RateLimit returns a middleware that allows max requests per client IP in
// each fixed window. Redis failures let the request through.
func RateLimit(rc *pkgredis.Client, max int, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rc == nil || max <= 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		key := rc.Key("rate_limit", ip, windowStart(time.Now(), window))
		count, err := rc.Incr(c.Request.Context(), key, window+time.Second)
		if err != nil {
			log.Warn("rate limit unavailable", zap.Error(err))
			c.Next()
			return
		}
		if count > int64(max) {
			log.Warn("rate limited", zap.String("ip", ip), zap.String("path", c.Request.URL.Path))
			response.TooManyRequests(c, "Slow down a little, too many requests")
			return
		}
		c.Next()
	}
}

// windowStart names the fixed window containing now.
func windowStart(now time.Time, window time.Duration) string {
	if window <= 0 {
		window = time.Minute
	}
	return strconv.FormatInt(now.UnixNano()/int64(window), 10)
}
