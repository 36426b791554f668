package handlers

import (
	"context"
	"time"

	"github.com/fenilmodi00/ipo-tracker/middleware"
	"github.com/fenilmodi00/ipo-tracker/services"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// AlertRunner triggers the opening alert job outside its schedule
type AlertRunner interface {
	RunOnce(ctx context.Context) (int, error)
}

type AdminHandler struct {
	Applications *services.ApplicationService
	Cache        *services.CacheService
	Alerts       AlertRunner
}

func NewAdminHandler(applications *services.ApplicationService, cache *services.CacheService, alerts AlertRunner) *AdminHandler {
	return &AdminHandler{
		Applications: applications,
		Cache:        cache,
		Alerts:       alerts,
	}
}

// RecordDecision applies an approval, rejection or allotment to an application
func (h *AdminHandler) RecordDecision(c *fiber.Ctx) error {
	id, err := pathID(c, "id", applicationNotFound)
	if err != nil {
		return respondError(c, err)
	}
	var input services.DecisionInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(c)
	}

	app, err := h.Applications.RecordDecision(c.UserContext(), middleware.UserID(c), id, input)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"message":     "Application decision recorded",
		"application": app,
	})
}

// TriggerOpeningAlerts runs the opening alert job now
func (h *AdminHandler) TriggerOpeningAlerts(c *fiber.Ctx) error {
	logrus.Info("Manual opening alert run triggered via admin endpoint")

	startTime := time.Now()
	queued, err := h.Alerts.RunOnce(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Opening alert job completed",
		"queued":    queued,
		"duration":  time.Since(startTime).String(),
		"timestamp": time.Now(),
	})
}

func (h *AdminHandler) CacheStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"size":    h.Cache.Size(),
	})
}

func (h *AdminHandler) ClearCache(c *fiber.Ctx) error {
	h.Cache.Clear()
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Cache cleared",
	})
}
