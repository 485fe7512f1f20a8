package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinovia/hospital-api/internal/middleware"
	"github.com/clinovia/hospital-api/internal/repository"
)

// UserHandler bundles dependencies for staff account management.
type UserHandler struct {
	Users *repository.UserRepo
}

func NewUserHandler(u *repository.UserRepo) *UserHandler {
	return &UserHandler{Users: u}
}

type updateUserReq struct {
	Name           *string `json:"name"`
	Department     *string `json:"department"`
	Specialization *string `json:"specialization"`
	Shift          *string `json:"shift"`
	IsActive       *bool   `json:"is_active"`
	EmailVerified  *bool   `json:"email_verified"`
}

// Update writes the provided profile fields of a user in the caller's
// tenant.  Clearing is_active is the soft-disable path; the account keeps
// its data but can no longer log in or refresh.
func (h *UserHandler) Update(c echo.Context) error {
	ident, _ := middleware.IdentityFrom(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	target, err := h.Users.GetByID(ctx, id)
	if err != nil || target.TenantID != ident.TenantID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	err = h.Users.Update(ctx, id, repository.UserUpdate{
		Name:           req.Name,
		Department:     req.Department,
		Specialization: req.Specialization,
		Shift:          req.Shift,
		IsActive:       req.IsActive,
		EmailVerified:  req.EmailVerified,
	})
	if err != nil {
		log.Printf("users: update: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user updated"})
}

// Delete hard-deletes a user in the caller's tenant.  Role assignments and
// tokens cascade at the schema level.  Callers cannot delete themselves;
// deactivating the last admin by accident is bad enough without making it a
// one-request operation.
func (h *UserHandler) Delete(c echo.Context) error {
	ident, _ := middleware.IdentityFrom(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}
	if id == ident.UserID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot delete own account"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	target, err := h.Users.GetByID(ctx, id)
	if err != nil || target.TenantID != ident.TenantID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	if err := h.Users.Delete(ctx, id); err != nil {
		log.Printf("users: delete: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted"})
}
