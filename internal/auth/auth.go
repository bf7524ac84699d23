// Package auth defines the authentication collaborator contract. FormTrack
// does not manage identities or sessions itself -- an external identity
// service issues bearer tokens, and this package only verifies them and
// attaches the resulting principal to the request context.
package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/formtrack/formtrack/internal/apperror"
)

// Principal identifies the authenticated caller.
type Principal struct {
	// Subject is the caller's stable identifier.
	Subject string

	// Role is "trainer" or "manager".
	Role string
}

// TokenVerifier validates a bearer token and resolves its principal.
// Implementations are external collaborators (identity service client);
// StaticVerifier exists for development and service-to-service calls.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// principalContextKey is the Echo context key for the authenticated principal.
const principalContextKey = "auth_principal"

// GetPrincipal retrieves the authenticated principal from the request
// context, or nil on unauthenticated routes.
func GetPrincipal(c echo.Context) *Principal {
	p, _ := c.Get(principalContextKey).(*Principal)
	return p
}

// RequireAuth returns middleware that authenticates requests via bearer
// token. Requests without a valid token are rejected with 401.
func RequireAuth(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return apperror.NewUnauthorized("authentication required")
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader {
				// No "Bearer " prefix found.
				return apperror.NewUnauthorized("invalid authorization format, use: Bearer <token>")
			}

			principal, err := verifier.Verify(c.Request().Context(), token)
			if err != nil {
				return apperror.NewUnauthorized("invalid token")
			}

			c.Set(principalContextKey, principal)
			return next(c)
		}
	}
}

// StaticVerifier accepts a single configured token. Used in development and
// for trusted service-to-service calls behind the gateway.
type StaticVerifier struct {
	Token string
}

// Verify compares the presented token against the configured one in
// constant time.
func (v StaticVerifier) Verify(_ context.Context, token string) (*Principal, error) {
	if v.Token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(v.Token)) != 1 {
		return nil, apperror.NewUnauthorized("invalid token")
	}
	return &Principal{Subject: "service", Role: "manager"}, nil
}
