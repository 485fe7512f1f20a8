package handler

import (
	"context"              // provides context with cancellation for DB calls
	"database/sql"         // SQL database interactions
	"log"                  // server-side logging of internal errors
	"net/http"             // HTTP status codes and primitives
	"strings"              // string manipulation utilities
	"time"                 // timeouts for DB calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/clinovia/hospital-api/internal/config"     // app configuration
	"github.com/clinovia/hospital-api/internal/middleware" // typed request identity
	"github.com/clinovia/hospital-api/internal/model"      // row structs
	"github.com/clinovia/hospital-api/internal/queue"      // event payloads
	"github.com/clinovia/hospital-api/internal/repository" // DB repositories
	queue_publisher "github.com/clinovia/hospital-api/internal/service"
	"github.com/clinovia/hospital-api/internal/utils" // hashing, token issuing
)

// systemAdminRoleSlug is the seeded system role granted to the first user of
// a newly registered hospital.  Registration fails hard if the seed is
// missing; that is an operational error, not a client one.
const systemAdminRoleSlug = "HOSPITAL_ADMIN"

// minPasswordLen applies to every endpoint that accepts a new password.
const minPasswordLen = 8

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg     config.Config
	Tenants *repository.TenantRepo
	Users   *repository.UserRepo
	Roles   *repository.RoleRepo
	Tokens  *repository.TokenRepo
	History *repository.HistoryRepo
	Resets  *repository.ResetTokenRepo
}

func NewAuthHandler(cfg config.Config, tn *repository.TenantRepo, u *repository.UserRepo,
	rl *repository.RoleRepo, tk *repository.TokenRepo, h *repository.HistoryRepo,
	rs *repository.ResetTokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Tenants: tn, Users: u, Roles: rl, Tokens: tk, History: h, Resets: rs}
}

// ----- DTOs -----

type registerHospitalReq struct {
	HospitalName  string `json:"hospital_name"`
	Slug          string `json:"slug"`
	AdminName     string `json:"admin_name"`
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
}
type signupReq struct {
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	Name           string  `json:"name"`
	RoleSlug       string  `json:"role_slug"`
	Department     *string `json:"department"`
	Specialization *string `json:"specialization"`
	Shift          *string `json:"shift"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type tenantPart struct {
	ID     uint64 `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Status string `json:"status"`
}
type userPart struct {
	ID                  uint64   `json:"id"`
	Email               string   `json:"email"`
	Name                string   `json:"name"`
	Roles               []string `json:"roles"`
	ForcePasswordChange bool     `json:"force_password_change"`
}
type authResp struct {
	Tenant  tenantPart `json:"tenant"`
	User    userPart   `json:"user"`
	Access  tokenPart  `json:"access"`
	Refresh tokenPart  `json:"refresh"`
}

// issueTokens mints an access token plus a persisted refresh credential for
// a user.  The opaque secret is stored hashed; the client receives the
// signed envelope carrying it.
func (h *AuthHandler) issueTokens(ctx context.Context, userID, tenantID uint64, roles, perms []string) (utils.AccessToken, utils.RefreshToken, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, tenantID, roles, perms, h.Cfg.AccessTTLMin)
	if err != nil {
		return utils.AccessToken{}, utils.RefreshToken{}, err
	}
	secret, err := utils.NewRefreshSecret()
	if err != nil {
		return utils.AccessToken{}, utils.RefreshToken{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.JWTSecret, userID, tenantID, secret, h.Cfg.RefreshTTLDays)
	if err != nil {
		return utils.AccessToken{}, utils.RefreshToken{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, userID, utils.HashRefreshSecret(secret), refresh.Exp); err != nil {
		return utils.AccessToken{}, utils.RefreshToken{}, err
	}
	return access, refresh, nil
}

// userFromRefreshBearer authenticates a request carrying a refresh token in
// the Authorization header.  The envelope signature is checked first, then
// the persisted row (revocation + expiry), then the account itself.
func (h *AuthHandler) userFromRefreshBearer(ctx context.Context, c echo.Context) (model.User, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return model.User{}, false
	}
	claims := utils.VerifyRefreshToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	if claims == nil {
		return model.User{}, false
	}
	userID, err := h.Tokens.ValidateRefresh(ctx, utils.HashRefreshSecret(claims.Secret))
	if err != nil {
		return model.User{}, false
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil || !u.IsActive {
		return model.User{}, false
	}
	return u, true
}

// RegisterHospital creates a tenant together with its first admin user and
// returns a ready-to-use session.
func (h *AuthHandler) RegisterHospital(c echo.Context) error {
	var req registerHospitalReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}
	req.HospitalName = strings.TrimSpace(req.HospitalName)
	req.AdminName = strings.TrimSpace(req.AdminName)
	req.AdminEmail = strings.ToLower(strings.TrimSpace(req.AdminEmail))
	if req.HospitalName == "" || req.AdminName == "" || req.AdminEmail == "" ||
		len(req.AdminPassword) < minPasswordLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = utils.Slugify(req.HospitalName)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tenantID, err := h.Tenants.Create(ctx, req.HospitalName, slug)
	if err != nil {
		if err == repository.ErrSlugExists {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "slug already taken"})
		}
		log.Printf("register-hospital: create tenant: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	adminRole, err := h.Roles.GetBySlug(ctx, systemAdminRoleSlug, tenantID)
	if err != nil || !adminRole.IsSystemRole {
		log.Printf("register-hospital: system role %s missing: %v", systemAdminRoleSlug, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	hash, err := utils.HashPassword(req.AdminPassword, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	uid, err := h.Users.Create(ctx, repository.NewUser{
		TenantID: tenantID, Email: req.AdminEmail, PasswordHash: hash, Name: req.AdminName,
	})
	if err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "admin email already exists"})
		}
		log.Printf("register-hospital: create user: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if err := h.Roles.Assign(ctx, uid, adminRole.ID); err != nil {
		log.Printf("register-hospital: assign role: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if err := h.History.Record(ctx, uid, hash); err != nil {
		log.Printf("register-hospital: record history: %v", err)
	}

	access, refresh, err := h.issueTokens(ctx, uid, tenantID,
		[]string{adminRole.Slug}, adminRole.Permissions)
	if err != nil {
		log.Printf("register-hospital: issue tokens: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	// Best effort; a lost welcome event must not fail registration.
	_ = queue_publisher.PublishHospitalRegistered(ctx, queue.HospitalRegisteredEvent{
		TenantID:     tenantID,
		Name:         req.HospitalName,
		Slug:         slug,
		AdminEmail:   req.AdminEmail,
		RegisteredAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, authResp{
		Tenant:  tenantPart{ID: tenantID, Name: req.HospitalName, Slug: slug, Status: model.TenantActive},
		User:    userPart{ID: uid, Email: req.AdminEmail, Name: req.AdminName, Roles: []string{adminRole.Slug}},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Token, Expires: refresh.Exp},
	})
}

// Signup provisions a staff account inside the caller's tenant.  The caller
// authenticates with a refresh token so admins can onboard staff from a
// long-lived session.
func (h *AuthHandler) Signup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	caller, ok := h.userFromRefreshBearer(ctx, c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
	}

	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	req.RoleSlug = strings.TrimSpace(req.RoleSlug)
	if req.Email == "" || req.Name == "" || req.RoleSlug == "" || len(req.Password) < minPasswordLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}

	role, err := h.Roles.GetBySlug(ctx, req.RoleSlug, caller.TenantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
		}
		log.Printf("signup: load role: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	uid, err := h.Users.Create(ctx, repository.NewUser{
		TenantID:       caller.TenantID,
		Email:          req.Email,
		PasswordHash:   hash,
		Name:           req.Name,
		Department:     req.Department,
		Specialization: req.Specialization,
		Shift:          req.Shift,
	})
	if err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "user already exists"})
		}
		log.Printf("signup: create user: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if err := h.Roles.Assign(ctx, uid, role.ID); err != nil {
		log.Printf("signup: assign role: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if err := h.History.Record(ctx, uid, hash); err != nil {
		log.Printf("signup: record history: %v", err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"user": userPart{ID: uid, Email: req.Email, Name: req.Name, Roles: []string{role.Slug}},
	})
}

// Login verifies credentials and returns a fresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		log.Printf("login: query user: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account is inactive"})
	}

	tenant, err := h.Tenants.GetByID(ctx, u.TenantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hospital not found"})
		}
		log.Printf("login: query tenant: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if tenant.Status != model.TenantActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "hospital is not active"})
	}

	slugs, perms, err := h.Roles.EffectivePermissions(ctx, u.ID)
	if err != nil {
		log.Printf("login: resolve permissions: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	access, refresh, err := h.issueTokens(ctx, u.ID, u.TenantID, slugs, perms)
	if err != nil {
		log.Printf("login: issue tokens: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	return c.JSON(http.StatusOK, authResp{
		Tenant: tenantPart{ID: tenant.ID, Name: tenant.Name, Slug: tenant.Slug, Status: tenant.Status},
		User: userPart{ID: u.ID, Email: u.Email, Name: u.Name, Roles: slugs,
			ForcePasswordChange: u.ForcePasswordChange},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Token, Expires: refresh.Exp},
	})
}

// Refresh exchanges a valid refresh token for a new access token.  The
// refresh token is not rotated; roles and permissions are re-resolved so a
// demotion takes effect at the next refresh rather than persisting for the
// envelope's full week.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}

	claims := utils.VerifyRefreshToken(h.Cfg.JWTSecret, strings.TrimSpace(req.RefreshToken))
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, utils.HashRefreshSecret(claims.Secret))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil || !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
	}

	slugs, perms, err := h.Roles.EffectivePermissions(ctx, u.ID)
	if err != nil {
		log.Printf("refresh: resolve permissions: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.TenantID, slugs, perms, h.Cfg.AccessTTLMin)
	if err != nil {
		log.Printf("refresh: issue access: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes the presented refresh token.  The operation is idempotent:
// unknown, expired and already-revoked tokens all yield the same 200.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)
	if raw == "" {
		return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
	}

	claims := utils.VerifyRefreshToken(h.Cfg.JWTSecret, raw)
	if claims == nil {
		return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshSecret(claims.Secret)); err != nil {
		log.Printf("logout: revoke: %v", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Me returns the authenticated identity from context.
func (h *AuthHandler) Me(c echo.Context) error {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "no authorization token provided"})
	}
	return c.JSON(http.StatusOK, ident)
}
