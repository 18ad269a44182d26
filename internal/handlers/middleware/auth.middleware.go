package middleware

import (
	"context"
	"strings"

	"turnover/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
)

// AuthContextKey is used to store auth info in context
type AuthContextKey string

const (
	TeamMemberKey      AuthContextKey = "teamMember"
	TeamMemberKeyFiber string         = "TeamMember"
)

// RequireAuth validates the bearer token and loads the team member it names.
func (m *Middleware) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		log := logger.New("middleware").TraceFromContext(c.UserContext()).Function("RequireAuth")

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			log.Info("missing authorization header")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" || tokenParts[1] == "" {
			log.Info("invalid authorization header format")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		teamMemberID, err := m.auth.ValidateToken(c.UserContext(), tokenParts[1])
		if err != nil {
			log.Info("token validation failed", "error", err.Error())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		member, err := m.teamMemberRepo.GetByID(c.UserContext(), teamMemberID)
		if err != nil {
			log.Info("team member not found", "teamMemberID", teamMemberID, "error", err.Error())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Team member not found",
			})
		}

		c.Locals(TeamMemberKeyFiber, member)

		// Keeps the trace id set by TraceID.
		ctx := context.WithValue(c.UserContext(), TeamMemberKey, member)
		c.SetUserContext(ctx)

		log.Debug("team member authenticated", "teamMemberID", member.ID, "role", member.Role)
		return c.Next()
	}
}

// GetTeamMember extracts the authenticated team member from Fiber context
func GetTeamMember(c *fiber.Ctx) *models.TeamMember {
	member, ok := c.Locals(TeamMemberKeyFiber).(*models.TeamMember)
	if !ok {
		return nil
	}
	return member
}
