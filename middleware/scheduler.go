package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jibzus/bluefleet-sub001/types"
)

// RequireSchedulerSecret guards internal triggers with a shared bearer secret.
// An empty secret closes the route.
func RequireSchedulerSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provided := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
				Message: "Invalid scheduler credentials",
				Status:  fiber.StatusUnauthorized,
			})
		}
		return c.Next()
	}
}
