package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinovia/hospital-api/internal/utils"
)

// identityKey is the single context key under which the authenticated
// identity is stored.  Handlers never fish individual claims out of the
// context; they go through IdentityFrom.
const identityKey = "auth_identity"

// Identity is the request-scoped authentication context: everything a
// downstream guard or handler may rely on, extracted once from a verified
// access token.  No database round-trip happens after verification: the
// token is the source of truth for the request's authorization claims,
// which is why access tokens are short-lived.
type Identity struct {
	UserID      uint64   `json:"user_id"`
	TenantID    uint64   `json:"tenant_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// IdentityFrom returns the identity stored by JWTAuth, if any.
func IdentityFrom(c echo.Context) (Identity, bool) {
	ident, ok := c.Get(identityKey).(Identity)
	return ident, ok
}

// SetIdentity stores an identity in the context.  Exposed for tests that
// exercise guards without running JWTAuth.
func SetIdentity(c echo.Context, ident Identity) {
	c.Set(identityKey, ident)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the decoded identity into the request context.  Missing,
// malformed, expired and badly-signed tokens all produce the same generic
// 401 so the failure cause is never leaked.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "no authorization token provided"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims := utils.VerifyAccessToken(secret, raw)
			if claims == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			SetIdentity(c, Identity{
				UserID:      claims.UserID,
				TenantID:    claims.TenantID,
				Roles:       claims.Roles,
				Permissions: claims.Permissions,
			})
			return next(c)
		}
	}
}
