package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/team-task-board/internal/audit"
	"github.com/iliyamo/team-task-board/internal/middleware"
	"github.com/iliyamo/team-task-board/internal/model"
	"github.com/iliyamo/team-task-board/internal/repository"
	"github.com/iliyamo/team-task-board/internal/utils"
)

// AdminHandler is the user-management surface gated by the ADMIN global
// status.  An admin cannot ban themselves and cannot reset their own
// password through this path; both rules are enforced here, not in the
// authorization resolver.
type AdminHandler struct {
	Users      *repository.UserRepo
	Devices    *repository.DeviceRepo
	Sink       audit.Sink
	BcryptCost int
}

func NewAdminHandler(users *repository.UserRepo, devices *repository.DeviceRepo, sink audit.Sink, bcryptCost int) *AdminHandler {
	return &AdminHandler{Users: users, Devices: devices, Sink: sink, BcryptCost: bcryptCost}
}

func pathUserID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// UpdateStatus sets a user's global status.  Banning a user revokes all of
// their device sessions as a side effect so existing refresh tokens die
// with the account.
func (h *AdminHandler) UpdateStatus(c echo.Context) error {
	targetID, err := pathUserID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	var req struct {
		Status model.UserGlobalStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil || !model.ValidUserGlobalStatus(req.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	adminID := middleware.UserID(c)
	if adminID == targetID && req.Status == model.StatusBanned {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "admin cannot ban themselves"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.UpdateStatus(ctx, targetID, req.Status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	action := "ADMIN_USER_UNBANNED"
	if req.Status == model.StatusBanned {
		action = "ADMIN_USER_BANNED"
		if err := h.Devices.RevokeAllForUser(ctx, targetID); err != nil {
			h.Sink.Error(ctx, "ADMIN_BAN_REVOKE_FAILED", &adminID, nil, map[string]any{
				"target_user_id": targetID, "error": err.Error(),
			})
		}
	}
	h.Sink.Security(ctx, action, &adminID, nil, map[string]any{
		"target_user_id": targetID, "new_status": req.Status,
	})
	return c.JSON(http.StatusOK, toUserPart(u))
}

// ResetPassword sets a new password for another user.  The admin's own
// account must go through the regular password-update flow.
func (h *AdminHandler) ResetPassword(c echo.Context) error {
	targetID, err := pathUserID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	var req struct {
		NewPassword string `json:"newPassword"`
	}
	if err := c.Bind(&req); err != nil || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "newPassword is required"})
	}

	adminID := middleware.UserID(c)
	if adminID == targetID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "admin cannot reset their own password here"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	hash, err := utils.HashPassword(req.NewPassword, h.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reset password"})
	}
	if err := h.Users.UpdatePassword(ctx, targetID, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reset password"})
	}

	h.Sink.Security(ctx, "ADMIN_PASSWORD_RESET", &adminID, nil, map[string]any{"target_user_id": targetID})
	return c.JSON(http.StatusOK, toUserPart(u))
}
