package middleware

import (
	"errors"
	"time"

	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/gofiber/fiber/v2"
)

// Metrics records request count and latency per matched route.
func Metrics(metrics *shared.ServiceMetrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		route := c.Route().Path
		if route == "" || route == "/" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Method(), route, status, time.Since(start))
		return err
	}
}
