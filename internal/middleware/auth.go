package middleware

import (
	"strings"

	"github.com/fraudshield/backend/internal/auth"
	"github.com/fraudshield/backend/internal/config"
	"github.com/fraudshield/backend/internal/rbac"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	CtxOfficerName = "officer_name"
	CtxRole        = "role"
)

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxOfficerName, claims.OfficerName)
		c.Locals(CtxRole, claims.Role)

		return c.Next()
	}
}

func GetOfficerName(c *fiber.Ctx) string {
	name, _ := c.Locals(CtxOfficerName).(string)
	return name
}

func GetRole(c *fiber.Ctx) string {
	role, _ := c.Locals(CtxRole).(string)
	return role
}

// GetCapabilities returns the capabilities of the authenticated officer's role.
func GetCapabilities(c *fiber.Ctx) []string {
	return rbac.CapabilitiesFor(GetRole(c))
}

// RequireCapability rejects officers whose role lacks capability.
func RequireCapability(capability string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rbac.HasCapability(GetCapabilities(c), capability) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": capability + " capability required"})
		}
		return c.Next()
	}
}
