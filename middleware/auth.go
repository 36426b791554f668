package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/fenilmodi00/ipo-tracker/services"
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	claimsKey        = "claims"
	AdminTokenHeader = "X-Admin-Token"
)

// TokenVerifier is the part of the session issuer the middleware needs
type TokenVerifier interface {
	Verify(token string) (*services.Claims, error)
}

// Auth requires a valid bearer token and stores its claims on the request context.
func Auth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, found := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !found || token == "" {
			return reject(c, shared.NewAuthError("Access denied. No token provided."))
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"component": "AuthMiddleware",
				"path":      c.Path(),
			}).WithError(err).Debug("Rejected bearer token")
			return reject(c, shared.NewForbiddenError("Invalid or expired token"))
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// OptionalAuth attaches claims when a valid bearer token is present and never rejects.
func OptionalAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token, found := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "); found {
			if claims, err := verifier.Verify(strings.TrimSpace(token)); err == nil {
				c.Locals(claimsKey, claims)
			}
		}
		return c.Next()
	}
}

// ClaimsFrom returns the claims set by Auth, or nil.
func ClaimsFrom(c *fiber.Ctx) *services.Claims {
	claims, _ := c.Locals(claimsKey).(*services.Claims)
	return claims
}

// UserID returns the caller's id, 0 when unauthenticated.
func UserID(c *fiber.Ctx) int64 {
	if claims := ClaimsFrom(c); claims != nil {
		return claims.ID
	}
	return 0
}

// RequireAdmin admits callers whose token carries the admin role, or who present the
// configured admin token header. An empty adminToken disables the header path.
func RequireAdmin(adminToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if claims := ClaimsFrom(c); claims != nil && claims.IsAdmin() {
			return c.Next()
		}

		if presented := c.Get(AdminTokenHeader); adminToken != "" && presented != "" &&
			subtle.ConstantTimeCompare([]byte(presented), []byte(adminToken)) == 1 {
			return c.Next()
		}

		logrus.WithFields(logrus.Fields{
			"component": "AdminMiddleware",
			"path":      c.Path(),
			"user_id":   UserID(c),
		}).Warn("Rejected non-admin request")
		return reject(c, shared.NewForbiddenError("Admin access required"))
	}
}

// reject writes the {success:false, error} envelope for a middleware refusal
func reject(c *fiber.Ctx, err error) error {
	return c.Status(shared.HTTPStatus(err)).JSON(fiber.Map{
		"success": false,
		"error":   shared.PublicMessage(err),
	})
}
