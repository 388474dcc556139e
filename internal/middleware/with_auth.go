package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gradebook-api/internal/utils"
)

// Roles understood by WithAuth.
const (
	AuthRoleAny   = "any"
	AuthRoleAdmin = "admin"
)

// AuthOptions configures WithAuth.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth guards a single handler. It expects JWTProtected to run first; any role other than
// AuthRoleAny implies RequireUser.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := normalizeRole(opts.Role)
	if role == "" {
		role = AuthRoleAny
	}
	requireUser := opts.RequireUser || role != AuthRoleAny

	return func(c *fiber.Ctx) error {
		if requireUser && CurrentSubject(c) == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if role != AuthRoleAny && CurrentRole(c) != role {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
		}
		return handler(c)
	}
}
