package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinovia/hospital-api/internal/utils"
)

// RequireAuth ensures an authenticated identity is present in context.  It
// is the lightest guard, for endpoints that need identity but no specific
// grant (e.g. reading one's own profile).
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, ok := IdentityFrom(c)
			if !ok || ident.UserID == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "no authorization token provided"})
			}
			return next(c)
		}
	}
}

// RequirePermission enforces that the identity's effective permission set
// grants resource:action.  Failures name the missing pair; identity is
// already established at this point, so naming it helps operators without
// aiding attackers.
func RequirePermission(resource, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, ok := IdentityFrom(c)
			if !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "no permissions found"})
			}
			if !utils.HasPermission(ident.Permissions, resource, action) {
				return c.JSON(http.StatusForbidden, echo.Map{
					"error": "missing permission: " + resource + ":" + action,
				})
			}
			return next(c)
		}
	}
}

// RequireAnyPermission passes when at least one of the required
// "RESOURCE:ACTION" pairs is granted.
func RequireAnyPermission(required ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, ok := IdentityFrom(c)
			if !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "no permissions found"})
			}
			if !utils.HasAnyPermission(ident.Permissions, required...) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient permissions"})
			}
			return next(c)
		}
	}
}

// RequireAdmin restricts a route to identities holding the global wildcard.
func RequireAdmin() echo.MiddlewareFunc {
	return RequireAnyPermission(utils.GlobalWildcard)
}
