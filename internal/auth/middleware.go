package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/service-desk/internal/domain"
	apperrors "github.com/deskflow/service-desk/pkg/util/errorutil"
)

const (
	identityKey = "auth_identity"
	claimsKey   = "auth_claims"
)

// IdentityResolver turns token claims into a registered person.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, role domain.Role, id int64) (domain.Identity, error)
}

// AuthMiddleware validates bearer tokens and loads the caller identity.
type AuthMiddleware struct {
	tokens      *TokenManager
	revocations RevocationStore
	identities  IdentityResolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, revocations RevocationStore, identities IdentityResolver) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, revocations: revocations, identities: identities}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	ctx := c.UserContext()
	if m.revocations != nil {
		revoked, err := m.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return apperrors.NewStoreError(err)
		}
		if revoked {
			return apperrors.NewUnauthorized("session ended")
		}
	}

	identity, err := m.identities.ResolveIdentity(ctx, claims.Role, claims.SubjectID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return apperrors.NewUnauthorized("account not found")
		}
		return err
	}

	c.Locals(identityKey, identity)
	c.Locals(claimsKey, claims)
	return c.Next()
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	identity, ok := c.Locals(identityKey).(domain.Identity)
	return identity, ok
}

// ClaimsFromContext retrieves the claims of the presented token.
func ClaimsFromContext(c *fiber.Ctx) (*Claims, bool) {
	claims, ok := c.Locals(claimsKey).(*Claims)
	return claims, ok
}
