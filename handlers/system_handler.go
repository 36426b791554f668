package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const apiVersion = "2.0.0"

// HealthProbe reports whether a dependency is reachable
type HealthProbe func(ctx context.Context) error

type SystemHandler struct {
	Probes map[string]HealthProbe
}

func NewSystemHandler(probes map[string]HealthProbe) *SystemHandler {
	return &SystemHandler{Probes: probes}
}

func (h *SystemHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	checks := make(fiber.Map, len(h.Probes))
	healthy := true
	for name, probe := range h.Probes {
		if err := probe(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	body := fiber.Map{
		"status":    "OK",
		"message":   "IPO Tracker API is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if len(checks) > 0 {
		body["checks"] = checks
	}
	if !healthy {
		body["status"] = "DEGRADED"
		return c.Status(fiber.StatusServiceUnavailable).JSON(body)
	}
	return c.JSON(body)
}

func (h *SystemHandler) Index(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "IPO Tracker API",
		"version": apiVersion,
		"endpoints": fiber.Map{
			"ipo": fiber.Map{
				"getAll":       "GET /api/ipo",
				"getById":      "GET /api/ipo/:id",
				"create":       "POST /api/ipo (requires admin)",
				"update":       "PUT /api/ipo/:id (requires admin)",
				"delete":       "DELETE /api/ipo/:id (requires admin)",
				"subscription": "GET /api/ipo/:id/subscription",
			},
			"auth": fiber.Map{
				"register":      "POST /api/auth/register",
				"login":         "POST /api/auth/login",
				"profile":       "GET /api/auth/profile (requires token)",
				"updateProfile": "PUT /api/auth/profile (requires token)",
			},
			"applications": fiber.Map{
				"apply":          "POST /api/applications/apply (requires token)",
				"myApplications": "GET /api/applications/my-applications (requires token)",
				"getById":        "GET /api/applications/:id (requires token)",
				"updatePayment":  "PUT /api/applications/:id/payment (requires token)",
				"checkAllotment": "POST /api/applications/check-allotment",
			},
			"user": fiber.Map{
				"dashboard":      "GET /api/user/dashboard (requires token)",
				"stats":          "GET /api/user/stats (requires token)",
				"appliedIPOs":    "GET /api/user/applied-ipos (requires token)",
				"notifications":  "GET /api/user/notifications (requires token)",
				"addBankAccount": "POST /api/user/bank-account (requires token)",
				"addUPI":         "POST /api/user/upi (requires token)",
				"addDemat":       "POST /api/user/demat-account (requires token)",
				"deleteAccount":  "DELETE /api/user/account (requires token)",
			},
			"admin": fiber.Map{
				"decision":     "POST /api/admin/applications/:id/decision (requires admin)",
				"openingAlert": "POST /api/admin/alerts/opening (requires admin)",
				"cacheStats":   "GET /api/admin/cache (requires admin)",
				"clearCache":   "DELETE /api/admin/cache (requires admin)",
			},
		},
	})
}

// NotFound answers unmatched routes
func (h *SystemHandler) NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"success": false,
		"error":   "Route not found",
		"path":    c.Path(),
	})
}
