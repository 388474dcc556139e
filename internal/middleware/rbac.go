package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gradebook-api/internal/utils"
)

const (
	localSubject = "user_subject"
	localRole    = "user_role"
)

func setPrincipal(c *fiber.Ctx, subject, role string) {
	c.Locals(localSubject, subject)
	if role = normalizeRole(role); role != "" {
		c.Locals(localRole, role)
	}
}

// CurrentSubject returns the authenticated principal name, or an empty string.
func CurrentSubject(c *fiber.Ctx) string {
	if value, ok := c.Locals(localSubject).(string); ok {
		return value
	}
	return ""
}

// CurrentRole returns the lower-cased role of the authenticated principal, or an empty string.
func CurrentRole(c *fiber.Ctx) string {
	if value, ok := c.Locals(localRole).(string); ok {
		return normalizeRole(value)
	}
	return ""
}

// RequireRole lets the request through only when the principal holds one of roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := normalizeRole(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := allowed[CurrentRole(c)]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
