package middleware

import (
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/gofiber/fiber/v2"
)

// RateLimit throttles by client IP with a token bucket per address.
func RateLimit(limiter *shared.KeyedRateLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter.Allow(c.IP()) {
			return c.Next()
		}
		return reject(c, shared.NewRateLimitError("Too many requests, please try again later"))
	}
}
