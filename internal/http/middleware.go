package http

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"medassist/internal/config"
	"medassist/internal/metrics"
	"medassist/internal/session"
)

const (
	sessionHeader      = "X-Session-Id"
	maxSessionKeyBytes = 128
)

// sessionKey identifies the caller for rate limiting and the busy guard:
// the X-Session-Id header when present, else the client IP.
func sessionKey(c *fiber.Ctx) string {
	if v := strings.TrimSpace(c.Get(sessionHeader)); v != "" {
		for len(v) > maxSessionKeyBytes {
			_, size := utf8.DecodeLastRuneInString(v)
			v = v[:len(v)-size]
		}
		return "sid:" + v
	}
	return "ip:" + c.IP()
}

// rateLimitMiddleware enforces a simple per-minute fixed-window rate limit
// per session using Redis. Like the session guard, it lets requests
// through when Redis is unavailable.
func rateLimitMiddleware(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := cfg.RateLimit.PerMinute
		if limit <= 0 {
			return c.Next()
		}

		now := time.Now().UTC()
		window := now.Format("200601021504") // YYYYMMDDHHMM minute window
		key := fmt.Sprintf("medassist:rl:%s:%s", sessionKey(c), window)

		ctx := c.Context()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate_limit_unavailable", "error", err)
			return c.Next()
		}
		if count == 1 {
			// First hit in this window; set TTL
			_ = rdb.Expire(ctx, key, time.Minute)
		}

		if count > int64(limit) {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Success: false,
				Code:    "RATE_LIMIT_EXCEEDED",
				Error:   "Rate limit exceeded, try again later",
			})
		}

		return c.Next()
	}
}

// sessionGuardMiddleware rejects a request with 409 while another request
// from the same session is still waiting on the model. Guard backend
// failures are logged and the request is let through.
func sessionGuardMiddleware(guard session.Guard, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		release, err := guard.Acquire(c.Context(), sessionKey(c))
		if err != nil {
			if errors.Is(err, session.ErrBusy) {
				metrics.RecordSessionBusy()
				_, _, werr := writeError(c, err)
				return werr
			}
			logger.Warn("session_guard_unavailable", "error", err)
			return c.Next()
		}
		defer release()

		return c.Next()
	}
}
