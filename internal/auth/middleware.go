package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ssoworks/sso-service/internal/domain"
	apperrors "github.com/ssoworks/sso-service/pkg/util"
)

const (
	callerKey         = "auth_caller"
	internalCallerKey = "auth_internal_caller"
)

// Caller is the authenticated principal together with the token it presented.
type Caller struct {
	Principal domain.Principal
	Token     *domain.Token
}

// TokenAuthenticator resolves a bearer value into the principal it was issued for.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, value string) (domain.Principal, *domain.Token, error)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens     TokenAuthenticator
	cookieName string
}

// NewAuthMiddleware constructs middleware. Tokens are read from the Authorization header
// and, failing that, from the session cookie.
func NewAuthMiddleware(tokens TokenAuthenticator, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, cookieName: cookieName}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	value, err := m.bearerValue(c)
	if err != nil {
		return err
	}

	principal, token, err := m.tokens.Authenticate(c.UserContext(), value)
	if err != nil {
		return err
	}

	c.Locals(callerKey, &Caller{Principal: principal, Token: token})
	return c.Next()
}

func (m *AuthMiddleware) bearerValue(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		if m.cookieName != "" {
			if cookie := c.Cookies(m.cookieName); cookie != "" {
				return cookie, nil
			}
		}
		return "", apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// CallerFromContext retrieves the authenticated entity.
func CallerFromContext(c *fiber.Ctx) (*Caller, bool) {
	val := c.Locals(callerKey)
	if val == nil {
		return nil, false
	}
	caller, ok := val.(*Caller)
	return caller, ok
}

// InternalCallerFromContext returns the claims of a verified internal service.
func InternalCallerFromContext(c *fiber.Ctx) (*Claims, bool) {
	claims, ok := c.Locals(internalCallerKey).(*Claims)
	return claims, ok
}
