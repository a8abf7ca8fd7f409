package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-escalation/internal/policy"
	apperrors "github.com/spec-kit/ticket-escalation/pkg/util"
)

// CapabilityCheck selects the capability a route needs.
type CapabilityCheck func(policy.Capabilities) bool

// RequireCapability ensures the caller's role grants the capability.
func RequireCapability(matrix *policy.Matrix, name string, check CapabilityCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := CurrentUser(c)
		if err != nil {
			return err
		}
		if !check(matrix.Capabilities(user.Role)) {
			return apperrors.NewAccessDenied("missing " + name)
		}
		return c.Next()
	}
}
