package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/repository"
	apperrors "github.com/spec-kit/ticket-escalation/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User *domain.User
}

// DenialRecorder receives denials of identified callers.
type DenialRecorder interface {
	Record(ctx context.Context, entry domain.AuditLogEntry)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
	audit  DenialRecorder
}

// NewAuthMiddleware constructs middleware. audit may be nil.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, audit DenialRecorder) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, audit: audit}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.UserContext(), claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}
	if !user.IsActive {
		m.recordInactive(c, user)
		return apperrors.NewUnauthorized("user is inactive")
	}

	c.Locals(principalKey, &Principal{User: user})
	return c.Next()
}

// recordInactive audits a deactivated user that still holds a valid token.
func (m *AuthMiddleware) recordInactive(c *fiber.Ctx, user *domain.User) {
	if m.audit == nil {
		return
	}
	actorID := user.ID
	role := user.Role
	m.audit.Record(c.UserContext(), domain.AuditLogEntry{
		ActorID:      &actorID,
		ActorRole:    &role,
		Action:       "authenticate",
		ResourceType: "route",
		ResourceID:   c.Method() + " " + c.Path(),
		UnitID:       &user.UnitID,
		Unauthorized: true,
		Reason:       "inactive_user",
	})
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok && principal.User != nil
}

// CurrentUser returns the authenticated user or an Unauthorized error.
func CurrentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal.User, nil
}
