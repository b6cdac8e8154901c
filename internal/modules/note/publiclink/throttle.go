package publiclink

import (
	"context"
	"time"

	pkgredis "github.com/mx-space/notes/internal/pkg/redis"
)

// Throttle counts wrong password guesses per key.
type Throttle interface {
	Blocked(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
}

type clientKey struct{}

// WithClient tags ctx with the caller's address so password guesses are
// counted per link and client.
func WithClient(ctx context.Context, client string) context.Context {
	return context.WithValue(ctx, clientKey{}, client)
}

func throttleKey(ctx context.Context, linkID string) string {
	if client, _ := ctx.Value(clientKey{}).(string); client != "" {
		return linkID + ":" + client
	}
	return linkID
}

// RedisThrottle keeps guess counters in redis with a fixed window.
type RedisThrottle struct {
	rc     *pkgredis.Client
	max    int64
	window time.Duration
}

func NewRedisThrottle(rc *pkgredis.Client, max int, window time.Duration) *RedisThrottle {
	return &RedisThrottle{rc: rc, max: int64(max), window: window}
}

func (t *RedisThrottle) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := t.rc.Int(ctx, t.rc.Key("link_password", key))
	if err != nil {
		return false, err
	}
	return n >= t.max, nil
}

func (t *RedisThrottle) Fail(ctx context.Context, key string) error {
	_, err := t.rc.Incr(ctx, t.rc.Key("link_password", key), t.window)
	return err
}
