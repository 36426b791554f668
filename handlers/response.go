package handlers

import (
	"strconv"

	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// respondError writes the {success:false, error} envelope for err. Internal failures are
// logged here and reported with a generic message.
func respondError(c *fiber.Ctx, err error) error {
	status := shared.HTTPStatus(err)
	if status == fiber.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"component": "HTTP",
			"method":    c.Method(),
			"path":      c.Path(),
		}).WithError(err).Error("Request failed")
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   shared.PublicMessage(err),
	})
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   "Invalid request body",
	})
}

// pathID parses a positive integer route parameter. Malformed ids are reported with
// notFound since they cannot name an existing record.
func pathID(c *fiber.Ctx, name, notFound string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewNotFoundError(notFound)
	}
	return id, nil
}
