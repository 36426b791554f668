package handlers

import (
	"github.com/fenilmodi00/ipo-tracker/middleware"
	"github.com/fenilmodi00/ipo-tracker/services"
	"github.com/gofiber/fiber/v2"
)

type IPOHandler struct {
	Catalog *services.CatalogService
}

func NewIPOHandler(catalog *services.CatalogService) *IPOHandler {
	return &IPOHandler{Catalog: catalog}
}

func (h *IPOHandler) GetIPOs(c *fiber.Ctx) error {
	ipos, err := h.Catalog.List(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(ipos),
		"data":    ipos,
	})
}

func (h *IPOHandler) GetIPOByID(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "IPO not found")
	if err != nil {
		return respondError(c, err)
	}
	ipo, err := h.Catalog.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    ipo,
	})
}

// GetSubscription returns a fresh market reading, never the stored snapshot
func (h *IPOHandler) GetSubscription(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "IPO not found")
	if err != nil {
		return respondError(c, err)
	}
	ipo, live, err := h.Catalog.LiveSubscription(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":      true,
		"ipoName":      ipo.Name,
		"subscription": live,
	})
}

func (h *IPOHandler) CreateIPO(c *fiber.Ctx) error {
	var input services.CreateIPOInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(c)
	}

	ipo, err := h.Catalog.Create(c.UserContext(), middleware.UserID(c), input)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "IPO added successfully",
		"data":    ipo,
	})
}

func (h *IPOHandler) UpdateIPO(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "IPO not found")
	if err != nil {
		return respondError(c, err)
	}
	var patch services.IPOPatch
	if err := c.BodyParser(&patch); err != nil {
		return invalidBody(c)
	}

	ipo, err := h.Catalog.Update(c.UserContext(), middleware.UserID(c), id, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "IPO updated successfully",
		"data":    ipo,
	})
}

func (h *IPOHandler) DeleteIPO(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "IPO not found")
	if err != nil {
		return respondError(c, err)
	}
	ipo, err := h.Catalog.Delete(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "IPO deleted successfully",
		"data":    ipo,
	})
}
