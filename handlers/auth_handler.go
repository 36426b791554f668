package handlers

import (
	"github.com/fenilmodi00/ipo-tracker/middleware"
	"github.com/fenilmodi00/ipo-tracker/services"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	Identity *services.IdentityService
}

func NewAuthHandler(identity *services.IdentityService) *AuthHandler {
	return &AuthHandler{Identity: identity}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input services.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(c)
	}

	session, err := h.Identity.Register(c.UserContext(), input)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "User registered successfully",
		"token":   session.Token,
		"user":    session.User,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input services.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(c)
	}

	session, err := h.Identity.Login(c.UserContext(), input)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"token":   session.Token,
		"user":    session.User,
	})
}

func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	user, err := h.Identity.GetByID(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user":    user.Profile(),
	})
}

func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	var update services.ProfileUpdate
	if err := c.BodyParser(&update); err != nil {
		return invalidBody(c)
	}

	user, err := h.Identity.UpdateProfile(c.UserContext(), middleware.UserID(c), update)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated successfully",
		"user":    user.Profile(),
	})
}
