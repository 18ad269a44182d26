package middleware

import (
	"slices"

	"turnover/internal/models"

	"github.com/gofiber/fiber/v2"
)

// RequireRole only lets team members with one of roles through. Services
// repeat their own checks; this only fails fast at the route.
func (m *Middleware) RequireRole(roles ...models.Role) fiber.Handler {
	log := m.log.Function("RequireRole")

	return func(c *fiber.Ctx) error {
		member := GetTeamMember(c)
		if member == nil {
			log.Info("team member not found in context")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		if !slices.Contains(roles, member.Role) {
			log.Info("role not allowed", "teamMemberID", member.ID, "role", member.Role)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Insufficient role",
			})
		}

		return c.Next()
	}
}

func (m *Middleware) RequireAdmin() fiber.Handler {
	return m.RequireRole(models.RoleAdmin)
}
