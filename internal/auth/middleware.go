package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

const tenantKey = "auth_tenant"

// Middleware validates admin session bearer tokens.
type Middleware struct {
	tokens *TokenManager
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager) *Middleware {
	return &Middleware{tokens: tokens}
}

// Handle enforces authentication for protected routes and records the
// authenticated tenant on the request.
func (m *Middleware) Handle(c *fiber.Ctx) error {
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

	c.Locals(tenantKey, claims.TenantID)
	return c.Next()
}

// TenantFromContext retrieves the authenticated tenant id.
func TenantFromContext(c *fiber.Ctx) (string, bool) {
	val := c.Locals(tenantKey)
	if val == nil {
		return "", false
	}
	tenantID, ok := val.(string)
	return tenantID, ok
}

// RequireTenant ensures the session tenant matches the path tenant, so one
// tenant's session cannot touch another tenant's resources.
func RequireTenant(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenantID, ok := TenantFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if c.Params(param) != tenantID {
			return apperrors.NewForbidden("tenant mismatch")
		}
		return c.Next()
	}
}
