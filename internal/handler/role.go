package handler

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinovia/hospital-api/internal/middleware"
	"github.com/clinovia/hospital-api/internal/model"
	"github.com/clinovia/hospital-api/internal/repository"
	"github.com/clinovia/hospital-api/internal/utils"
)

// RoleHandler bundles dependencies for role management endpoints.
type RoleHandler struct {
	Roles *repository.RoleRepo
	Users *repository.UserRepo
}

func NewRoleHandler(rl *repository.RoleRepo, u *repository.UserRepo) *RoleHandler {
	return &RoleHandler{Roles: rl, Users: u}
}

type createRoleReq struct {
	Name           string   `json:"name"`
	Slug           string   `json:"slug"`
	Description    string   `json:"description"`
	Permissions    []string `json:"permissions"`
	HierarchyLevel int      `json:"hierarchy_level"`
}
type updateRoleReq struct {
	Name           *string  `json:"name"`
	Description    *string  `json:"description"`
	Permissions    []string `json:"permissions"`
	HierarchyLevel *int     `json:"hierarchy_level"`
}
type assignRoleReq struct {
	UserID uint64 `json:"user_id"`
}

type rolePart struct {
	ID             uint64   `json:"id"`
	Name           string   `json:"name"`
	Slug           string   `json:"slug"`
	Description    string   `json:"description"`
	Permissions    []string `json:"permissions"`
	IsSystemRole   bool     `json:"is_system_role"`
	HierarchyLevel int      `json:"hierarchy_level"`
}

func toRolePart(r model.Role) rolePart {
	perms := r.Permissions
	if perms == nil {
		perms = []string{}
	}
	return rolePart{
		ID: r.ID, Name: r.Name, Slug: r.Slug, Description: r.Description,
		Permissions: perms, IsSystemRole: r.IsSystemRole, HierarchyLevel: r.HierarchyLevel,
	}
}

// validPermission accepts "RESOURCE:ACTION", "RESOURCE:*" and "*:*".  A
// grant string without a colon would never match anything, so it is
// rejected at the door instead of stored as a dead entry.
func validPermission(p string) bool {
	resource, action, ok := strings.Cut(p, ":")
	return ok && resource != "" && action != ""
}

// List returns the caller's tenant roles plus the shared system roles.
func (h *RoleHandler) List(c echo.Context) error {
	ident, _ := middleware.IdentityFrom(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	roles, err := h.Roles.ListForTenant(ctx, ident.TenantID)
	if err != nil {
		log.Printf("roles: list: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	out := make([]rolePart, 0, len(roles))
	for _, r := range roles {
		out = append(out, toRolePart(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"roles": out})
}

// Create adds a custom role to the caller's tenant.  The hierarchy band at
// and above model.MaxCustomRoleHierarchy is reserved for system roles.
func (h *RoleHandler) Create(c echo.Context) error {
	ident, _ := middleware.IdentityFrom(c)

	var req createRoleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}
	if req.HierarchyLevel < 0 || req.HierarchyLevel >= model.MaxCustomRoleHierarchy {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hierarchy level must be below 80"})
	}
	for _, p := range req.Permissions {
		if !validPermission(p) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid permission: " + p})
		}
	}
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = utils.Slugify(req.Name)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Roles.Create(ctx, repository.NewRole{
		TenantID:       ident.TenantID,
		Name:           req.Name,
		Slug:           slug,
		Description:    req.Description,
		Permissions:    req.Permissions,
		HierarchyLevel: req.HierarchyLevel,
	})
	if err != nil {
		if err == repository.ErrSlugExists {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "role slug already exists"})
		}
		log.Printf("roles: create: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id, "slug": slug})
}

// Update mutates a custom role in the caller's tenant.
func (h *RoleHandler) Update(c echo.Context) error {
	ident, _ := middleware.IdentityFrom(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}

	var req updateRoleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}
	if req.HierarchyLevel != nil &&
		(*req.HierarchyLevel < 0 || *req.HierarchyLevel >= model.MaxCustomRoleHierarchy) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hierarchy level must be below 80"})
	}
	for _, p := range req.Permissions {
		if !validPermission(p) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid permission: " + p})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if !h.ownsRole(ctx, ident, id, c) {
		return nil // response already written
	}

	err = h.Roles.Update(ctx, id, repository.RoleUpdate{
		Name:           req.Name,
		Description:    req.Description,
		Permissions:    req.Permissions,
		HierarchyLevel: req.HierarchyLevel,
	})
	switch {
	case err == repository.ErrSystemRole:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "system roles cannot be modified"})
	case err == sql.ErrNoRows:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
	case err != nil:
		log.Printf("roles: update: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "role updated"})
}

// Delete removes a custom role.  Roles with assigned users are rejected no
// matter who asks.
func (h *RoleHandler) Delete(c echo.Context) error {
	ident, _ := middleware.IdentityFrom(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if !h.ownsRole(ctx, ident, id, c) {
		return nil
	}

	err = h.Roles.Delete(ctx, id)
	switch {
	case err == repository.ErrSystemRole:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "system roles cannot be deleted"})
	case err == repository.ErrRoleInUse:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role has assigned users"})
	case err == sql.ErrNoRows:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
	case err != nil:
		log.Printf("roles: delete: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "role deleted"})
}

// Assign grants a role to a user within the caller's tenant.
func (h *RoleHandler) Assign(c echo.Context) error {
	ident, _ := middleware.IdentityFrom(c)
	roleID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}
	var req assignRoleReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	role, err := h.Roles.GetByID(ctx, roleID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
		}
		log.Printf("roles: assign lookup: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	// System roles are assignable everywhere; custom roles only inside
	// their own tenant.
	if role.TenantID != nil && *role.TenantID != ident.TenantID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
	}
	target, err := h.Users.GetByID(ctx, req.UserID)
	if err != nil || target.TenantID != ident.TenantID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	switch err := h.Roles.Assign(ctx, req.UserID, roleID); {
	case err == repository.ErrAlreadyAssigned:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role already assigned"})
	case err != nil:
		log.Printf("roles: assign: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "role assigned"})
}

// Unassign removes a role from a user.  The same tenant checks as Assign
// apply; removing a role the user does not hold is a no-op 200.
func (h *RoleHandler) Unassign(c echo.Context) error {
	ident, _ := middleware.IdentityFrom(c)
	roleID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}
	var req assignRoleReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if !h.ownsRole(ctx, ident, roleID, c) {
		return nil
	}
	target, err := h.Users.GetByID(ctx, req.UserID)
	if err != nil || target.TenantID != ident.TenantID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	if err := h.Roles.Unassign(ctx, req.UserID, roleID); err != nil {
		log.Printf("roles: unassign: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "role unassigned"})
}

// ownsRole checks that the addressed role is visible to the caller's
// tenant, writing the error response itself when it is not.
func (h *RoleHandler) ownsRole(ctx context.Context, ident middleware.Identity, roleID uint64, c echo.Context) bool {
	role, err := h.Roles.GetByID(ctx, roleID)
	if err != nil {
		if err == sql.ErrNoRows {
			_ = c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
		} else {
			log.Printf("roles: lookup: %v", err)
			_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
		}
		return false
	}
	if role.TenantID != nil && *role.TenantID != ident.TenantID {
		_ = c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
		return false
	}
	return true
}
