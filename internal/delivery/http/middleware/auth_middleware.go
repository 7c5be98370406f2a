package middleware

import (
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	deliverycontext "athfed/internal/delivery/context"
	"athfed/internal/domain/entity"
	domainerrors "athfed/internal/domain/errors"
	"athfed/internal/domain/service"
)

// AccessTokenCookie is the cookie carrying the access token for
// cookie-based clients.
const AccessTokenCookie = "access_token"

// AuthMiddleware validates access tokens and enforces role requirements.
type AuthMiddleware struct {
	tokenService service.TokenService
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(tokenService service.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokenService: tokenService}
}

// Authenticate validates the access token from the Authorization header
// or the access_token cookie and stores the claims on the context.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := m.extractToken(c)
		if token == "" {
			return domainerrors.ErrUnauthorized
		}

		claims, err := m.tokenService.Parse(token, service.TokenAccess)
		if errors.Is(err, service.ErrTokenExpired) {
			return domainerrors.ErrTokenExpired
		}
		if err != nil {
			return domainerrors.ErrUnauthorized
		}

		deliverycontext.SetClaims(c, claims)

		return next(c)
	}
}

// RequireRole restricts a route to the given roles. It must run after
// Authenticate.
func (m *AuthMiddleware) RequireRole(roles ...entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := deliverycontext.GetClaims(c)
			if claims == nil {
				return domainerrors.ErrUnauthorized
			}

			if !slices.Contains(roles, claims.Role) {
				return domainerrors.ErrForbidden
			}

			return next(c)
		}
	}
}

// extractToken prefers the Authorization header over the cookie.
func (m *AuthMiddleware) extractToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" {
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token != authHeader {
			return token
		}

		return ""
	}

	if cookie, err := c.Cookie(AccessTokenCookie); err == nil {
		return cookie.Value
	}

	return ""
}
