package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/btangonan/calm-productivity-app-sub002/internal/domain"
	apperrors "github.com/btangonan/calm-productivity-app-sub002/pkg/util"
)

const identityKey = "auth_identity"

// Middleware validates bearer tokens and stores the caller's identity in
// request locals for downstream handlers.
type Middleware struct {
	validator *Validator
}

// NewMiddleware constructs middleware.
func NewMiddleware(validator *Validator) *Middleware {
	return &Middleware{validator: validator}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	identity, err := m.validator.Validate(c.UserContext(), c.Get("Authorization"))
	if err != nil {
		return apperrors.NewUnauthorized("invalid or expired token")
	}

	c.Locals(identityKey, identity)
	return c.Next()
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (*domain.Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*domain.Identity)
	return identity, ok
}
