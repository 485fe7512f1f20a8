package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/clinovia/hospital-api/internal/config"
	"github.com/clinovia/hospital-api/internal/handler"
	"github.com/clinovia/hospital-api/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check, used
// by load balancers and monitoring systems.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes under /api/auth.
// Login and forgot-password sit behind the Redis token bucket because they
// are the endpoints an attacker hammers: credential stuffing on the former,
// account enumeration probes on the latter.  Signup and change-password
// authenticate inside the handler with a refresh-token bearer, so no JWT
// middleware wraps them here.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, cfg config.Config, rdb *redis.Client) {
	limited := middleware.RateLimit(config.LoadRateLimitConfig(), rdb)

	g := e.Group("/api/auth")
	g.POST("/register-hospital", a.RegisterHospital)
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login, limited)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/forgot-password", a.ForgotPassword, limited)
	g.POST("/reset-password", a.ResetPassword)
	g.POST("/change-password", a.ChangePassword)

	// Access-token protected identity endpoint.
	me := e.Group("/api/auth")
	me.Use(middleware.JWTAuth(cfg.JWTSecret))
	me.Use(middleware.RequireAuth())
	me.GET("/me", a.Me)
}

// RegisterRoles registers role management under /api/roles.  Every route
// requires a verified access token plus the specific ROLE grant; the
// deletion guard for roles that still have assignments lives in the
// repository and applies regardless of the caller's permissions.
func RegisterRoles(e *echo.Echo, r *handler.RoleHandler, cfg config.Config) {
	g := e.Group("/api/roles")
	g.Use(middleware.JWTAuth(cfg.JWTSecret))

	g.GET("", r.List, middleware.RequirePermission("ROLE", "READ"))
	g.POST("", r.Create, middleware.RequirePermission("ROLE", "CREATE"))
	g.PUT("/:id", r.Update, middleware.RequirePermission("ROLE", "UPDATE"))
	g.DELETE("/:id", r.Delete, middleware.RequirePermission("ROLE", "DELETE"))
	g.POST("/:id/assign", r.Assign, middleware.RequirePermission("ROLE", "ASSIGN"))
	g.DELETE("/:id/assign", r.Unassign, middleware.RequirePermission("ROLE", "ASSIGN"))
}

// RegisterUsers registers staff account management under /api/users.
// Profile updates double as the soft-disable path (is_active=false), so
// both routes demand explicit USER grants.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, cfg config.Config) {
	g := e.Group("/api/users")
	g.Use(middleware.JWTAuth(cfg.JWTSecret))

	g.PUT("/:id", u.Update, middleware.RequirePermission("USER", "UPDATE"))
	g.DELETE("/:id", u.Delete, middleware.RequirePermission("USER", "DELETE"))
}

// RegisterTenants registers hospital administration under /api/tenants.
// Status transitions affect every user of the tenant, so the routes demand
// the global wildcard.
func RegisterTenants(e *echo.Echo, tn *handler.TenantHandler, cfg config.Config) {
	g := e.Group("/api/tenants")
	g.Use(middleware.JWTAuth(cfg.JWTSecret))
	g.Use(middleware.RequireAdmin())

	g.PUT("/:id/status", tn.SetStatus)
}
