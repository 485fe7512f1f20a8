package handler

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinovia/hospital-api/internal/queue"
	queue_publisher "github.com/clinovia/hospital-api/internal/service"
	"github.com/clinovia/hospital-api/internal/utils"
)

// forgotPasswordMsg is returned for every forgot-password request, whether
// or not the email exists, so the endpoint cannot be used to enumerate
// accounts.
const forgotPasswordMsg = "if the account exists, a reset link has been sent"

type forgotReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}
type changeReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ForgotPassword mints a single-use reset token for a known email and hands
// it to the notification queue.  The HTTP response is identical either way.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("forgot-password: query user: %v", err)
		}
		return c.JSON(http.StatusOK, echo.Map{"message": forgotPasswordMsg})
	}

	raw, err := utils.NewRefreshSecret()
	if err != nil {
		log.Printf("forgot-password: generate token: %v", err)
		return c.JSON(http.StatusOK, echo.Map{"message": forgotPasswordMsg})
	}
	exp := time.Now().UTC().Add(time.Duration(h.Cfg.ResetTTLMin) * time.Minute)
	if err := h.Resets.Store(ctx, u.ID, utils.HashRefreshSecret(raw), exp); err != nil {
		log.Printf("forgot-password: store token: %v", err)
		return c.JSON(http.StatusOK, echo.Map{"message": forgotPasswordMsg})
	}

	// The raw token leaves the process only through the notification queue;
	// it is never part of the HTTP response.
	_ = queue_publisher.PublishPasswordResetRequested(ctx, queue.PasswordResetRequestedEvent{
		UserID:      u.ID,
		TenantID:    u.TenantID,
		Email:       u.Email,
		Name:        u.Name,
		ResetToken:  raw,
		ExpiresAt:   exp.Format(time.RFC3339),
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"message": forgotPasswordMsg})
}

// ResetPassword consumes a reset token: the password is updated, the token
// marked used, and every refresh token the user holds is revoked so stolen
// sessions die with the old password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" ||
		len(req.NewPassword) < minPasswordLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tokenID, userID, err := h.Resets.Validate(ctx, utils.HashRefreshSecret(strings.TrimSpace(req.Token)))
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired reset token"})
		}
		log.Printf("reset-password: validate token: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	allowed, err := h.History.CheckHistory(ctx, userID, req.NewPassword)
	if err != nil {
		log.Printf("reset-password: check history: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if !allowed {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password was used recently"})
	}

	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if err := h.Users.UpdatePassword(ctx, userID, hash); err != nil {
		log.Printf("reset-password: update password: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if err := h.History.Record(ctx, userID, hash); err != nil {
		log.Printf("reset-password: record history: %v", err)
	}
	if err := h.Resets.MarkUsed(ctx, tokenID); err != nil {
		log.Printf("reset-password: mark used: %v", err)
	}
	if err := h.Tokens.RevokeAllForUser(ctx, userID); err != nil {
		log.Printf("reset-password: revoke sessions: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "password has been reset"})
}

// ChangePassword rotates the password of the session's user.  Like Signup,
// the caller authenticates with a refresh token; all other sessions are
// revoked afterwards.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, ok := h.userFromRefreshBearer(ctx, c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
	}

	var req changeReq
	if err := c.Bind(&req); err != nil || req.OldPassword == "" ||
		len(req.NewPassword) < minPasswordLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input data"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.OldPassword) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current password is incorrect"})
	}

	allowed, err := h.History.CheckHistory(ctx, u.ID, req.NewPassword)
	if err != nil {
		log.Printf("change-password: check history: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if !allowed {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password was used recently"})
	}

	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		log.Printf("change-password: update password: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if err := h.History.Record(ctx, u.ID, hash); err != nil {
		log.Printf("change-password: record history: %v", err)
	}
	// NOTE: there is no transaction spanning the password update and this
	// revocation; a refresh racing the change can briefly succeed.
	if err := h.Tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		log.Printf("change-password: revoke sessions: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}
