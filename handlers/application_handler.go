package handlers

import (
	"github.com/fenilmodi00/ipo-tracker/middleware"
	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/services"
	"github.com/gofiber/fiber/v2"
)

const applicationNotFound = "Application not found"

type ApplicationHandler struct {
	Applications *services.ApplicationService
}

func NewApplicationHandler(applications *services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{Applications: applications}
}

func (h *ApplicationHandler) Apply(c *fiber.Ctx) error {
	var input services.SubmitInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(c)
	}

	app, err := h.Applications.Submit(c.UserContext(), middleware.UserID(c), input)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":     true,
		"message":     "IPO application submitted successfully",
		"application": app,
	})
}

func (h *ApplicationHandler) MyApplications(c *fiber.Ctx) error {
	apps, err := h.Applications.ListForUser(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":      true,
		"count":        len(apps),
		"applications": apps,
	})
}

func (h *ApplicationHandler) GetApplication(c *fiber.Ctx) error {
	id, err := pathID(c, "id", applicationNotFound)
	if err != nil {
		return respondError(c, err)
	}
	app, err := h.Applications.Get(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"application": app,
	})
}

// CheckAllotment is public: it needs the application number and the PAN it was filed with
func (h *ApplicationHandler) CheckAllotment(c *fiber.Ctx) error {
	var query services.AllotmentQuery
	if err := c.BodyParser(&query); err != nil {
		return invalidBody(c)
	}

	view, err := h.Applications.CheckAllotment(c.UserContext(), query)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"application": view,
	})
}

type paymentRequest struct {
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
}

func (h *ApplicationHandler) UpdatePayment(c *fiber.Ctx) error {
	id, err := pathID(c, "id", applicationNotFound)
	if err != nil {
		return respondError(c, err)
	}
	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	app, err := h.Applications.UpdatePayment(c.UserContext(), id, middleware.UserID(c), req.PaymentStatus)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"message":     "Payment status updated",
		"application": app,
	})
}
