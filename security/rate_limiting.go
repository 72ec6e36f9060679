package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"

	"ticketing/monitoring"
)

type RateLimiter struct {
	redis     *redis.Client
	perMinute int
}

func NewRateLimiter(redisClient *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{redis: redisClient, perMinute: perMinute}
}

// PublicLimit returns a middleware capping the request rate per client.
// Authenticated requests are counted per account, anonymous ones per IP.
// If Redis is unavailable the limiter fails open.
func (r *RateLimiter) PublicLimit() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		key := fmt.Sprintf("ratelimit:ip:%s", e.RealIP())
		if e.Auth != nil {
			key = fmt.Sprintf("ratelimit:user:%s", e.Auth.Id)
		}

		count, err := r.redis.Incr(e.Request.Context(), key).Result()
		if err == nil {
			if count == 1 {
				r.redis.Expire(e.Request.Context(), key, time.Minute)
			}
			if count > int64(r.perMinute) {
				monitoring.RateLimited(e.Request.URL.Path)
				return apis.NewApiError(429, "Too many requests. Please try again later.", nil)
			}
		}

		return e.Next()
	}
}

// BotGuard rejects requests from clients that announce themselves as
// automated scrapers. Ticket drops attract them.
func BotGuard() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		ua := strings.ToLower(e.Request.Header.Get("User-Agent"))
		for _, pattern := range []string{"bot", "crawler", "spider", "scraper"} {
			if strings.Contains(ua, pattern) {
				return apis.NewForbiddenError("Access denied", nil)
			}
		}
		return e.Next()
	}
}
