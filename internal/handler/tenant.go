package handler

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinovia/hospital-api/internal/model"
	"github.com/clinovia/hospital-api/internal/repository"
)

// TenantHandler bundles dependencies for hospital administration.  Its
// routes sit behind the global wildcard, so only system administrators
// reach them.
type TenantHandler struct {
	Tenants *repository.TenantRepo
}

func NewTenantHandler(tn *repository.TenantRepo) *TenantHandler {
	return &TenantHandler{Tenants: tn}
}

type tenantStatusReq struct {
	Status string `json:"status"`
}

// SetStatus transitions a hospital between active, inactive and suspended.
// A non-active tenant blocks logins for all of its users; tenants are never
// hard-deleted.
func (h *TenantHandler) SetStatus(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}
	var req tenantStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}
	switch req.Status {
	case model.TenantActive, model.TenantInactive, model.TenantSuspended:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Tenants.GetByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hospital not found"})
		}
		log.Printf("tenants: lookup: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if err := h.Tenants.SetStatus(ctx, id, req.Status); err != nil {
		log.Printf("tenants: set status: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "hospital status updated"})
}
