package handlers

import (
	"github.com/fenilmodi00/ipo-tracker/middleware"
	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/services"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	Dashboard *services.DashboardService
	Identity  *services.IdentityService
}

func NewUserHandler(dashboard *services.DashboardService, identity *services.IdentityService) *UserHandler {
	return &UserHandler{Dashboard: dashboard, Identity: identity}
}

func (h *UserHandler) GetDashboard(c *fiber.Ctx) error {
	dashboard, err := h.Dashboard.Dashboard(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":      true,
		"user":         dashboard.User,
		"applications": dashboard.Applications,
		"stats":        dashboard.Stats,
	})
}

func (h *UserHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.Dashboard.Stats(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"stats":   stats,
	})
}

func (h *UserHandler) GetAppliedIPOs(c *fiber.Ctx) error {
	applied, err := h.Dashboard.AppliedIPOs(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"count":       len(applied),
		"appliedIPOs": applied,
	})
}

func (h *UserHandler) GetNotifications(c *fiber.Ctx) error {
	notifications, err := h.Dashboard.Notifications(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":       true,
		"count":         len(notifications),
		"notifications": notifications,
	})
}

func (h *UserHandler) AddBankAccount(c *fiber.Ctx) error {
	var account models.BankAccount
	if err := c.BodyParser(&account); err != nil {
		return invalidBody(c)
	}
	user, err := h.Identity.AttachBankAccount(c.UserContext(), middleware.UserID(c), account)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Bank account added successfully",
		"user":    user.Profile(),
	})
}

func (h *UserHandler) AddUPIID(c *fiber.Ctx) error {
	var input services.UPIInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(c)
	}
	user, err := h.Identity.SetUPIID(c.UserContext(), middleware.UserID(c), input.UPIID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "UPI ID added successfully",
		"user":    user.Profile(),
	})
}

func (h *UserHandler) AddDematAccount(c *fiber.Ctx) error {
	var account models.DematAccount
	if err := c.BodyParser(&account); err != nil {
		return invalidBody(c)
	}
	user, err := h.Identity.AttachDematAccount(c.UserContext(), middleware.UserID(c), account)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Demat account added successfully",
		"user":    user.Profile(),
	})
}

func (h *UserHandler) DeleteAccount(c *fiber.Ctx) error {
	if err := h.Identity.Delete(c.UserContext(), middleware.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Account deleted successfully",
	})
}
