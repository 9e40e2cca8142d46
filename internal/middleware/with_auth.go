package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/marking-hub-api/internal/utils"
)

// Auth role constants used by WithAuth and the route guards.
const (
	AuthRoleAny   = "any"
	AuthRoleAdmin = "admin"
	AuthRoleTutor = "tutor"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth wraps a handler with basic authentication/authorization guards.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireUser := opts.RequireUser
	if !requireUser && role != AuthRoleAny {
		requireUser = true
	}

	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id")
		if requireUser && userID == nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		if role == AuthRoleAny {
			if !requireUser || userID != nil {
				return handler(c)
			}
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		currentRole := normalizeRoleValue(c.Locals("user_role"))
		if currentRole != role && currentRole != AuthRoleAdmin {
			// Admins pass every role gate.
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}

		return handler(c)
	}
}

// TutorChecker reports whether a user holds the tutor role. The tutor
// repository satisfies it.
type TutorChecker interface {
	IsTutor(ctx context.Context, userID uint) (bool, error)
}

// RequireTutor admits platform admins and users with the tutor role. For
// non-admin tutors the user_role local is rewritten to "tutor" so downstream
// handlers can apply assignment-based visibility.
func RequireTutor(checker TutorChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(uint)
		if !ok || userID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		if normalizeRoleValue(c.Locals("user_role")) == AuthRoleAdmin {
			return c.Next()
		}

		isTutor, err := checker.IsTutor(c.Context(), userID)
		if err != nil {
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to verify tutor role")
		}
		if !isTutor {
			return utils.SendError(c, fiber.StatusForbidden, "tutor role required")
		}

		c.Locals("user_role", AuthRoleTutor)

		return c.Next()
	}
}
