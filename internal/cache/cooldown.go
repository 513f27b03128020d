package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"newsadvance/internal/observability"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Cooldown allows one call per (action, user) per window. Redis holds the
// shared state; when Redis is missing or failing, a per-process limiter takes
// over so throttling never silently disappears.
type Cooldown struct {
	rdb    *redis.Client
	window time.Duration

	mu    sync.Mutex
	local map[string]*localLimiter
	now   func() time.Time
}

type localLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewCooldown returns a limiter with the given window. A zero window disables throttling.
func NewCooldown(rdb *redis.Client, window time.Duration) *Cooldown {
	return &Cooldown{
		rdb:    rdb,
		window: window,
		local:  make(map[string]*localLimiter),
		now:    time.Now,
	}
}

// Key returns the Redis key guarding action for userID.
func Key(action string, userID uint) string {
	return fmt.Sprintf("rl:cooldown:%s:%d", action, userID)
}

// Allow reports whether userID may perform action now, and starts the cooldown
// if so. The check and the set are a single atomic SET NX PX.
func (c *Cooldown) Allow(ctx context.Context, action string, userID uint) (bool, error) {
	if c.window <= 0 {
		return true, nil
	}

	key := Key(action, userID)
	if c.rdb != nil {
		ctx, span := observability.TraceRedisOperation(ctx, "cooldown")
		ok, err := c.rdb.SetNX(ctx, key, 1, c.window).Result()
		span.End()
		if err == nil {
			return ok, nil
		}
		observability.Logger.WarnContext(ctx, "cooldown store unavailable, using local limiter",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}

	observability.CooldownFallbacks.Inc()
	return c.allowLocal(key), nil
}

func (c *Cooldown) allowLocal(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweep(now)

	l, ok := c.local[key]
	if !ok {
		l = &localLimiter{limiter: rate.NewLimiter(rate.Every(c.window), 1)}
		c.local[key] = l
	}
	l.lastSeen = now
	return l.limiter.AllowN(now, 1)
}

// sweep drops limiters idle for longer than a few windows. Caller holds mu.
func (c *Cooldown) sweep(now time.Time) {
	if len(c.local) < 1024 {
		return
	}
	for k, l := range c.local {
		if now.Sub(l.lastSeen) > 4*c.window {
			delete(c.local, k)
		}
	}
}
