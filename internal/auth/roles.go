package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/service-desk/internal/domain"
	apperrors "github.com/deskflow/service-desk/pkg/util/errorutil"
)

// RequireCustomer ensures a customer is authenticated.
func RequireCustomer() fiber.Handler {
	return requireRole(domain.RoleCustomer, "customer account required")
}

// RequireAgent ensures an agent is authenticated.
func RequireAgent() fiber.Handler {
	return requireRole(domain.RoleAgent, "agent account required")
}

// RequireAnyRole ensures caller is authenticated (customer or agent).
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := IdentityFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

func requireRole(role domain.Role, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if identity.Role != role {
			return apperrors.NewForbidden(message)
		}
		return c.Next()
	}
}
