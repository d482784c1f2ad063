package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/team-task-board/internal/auth"
	"github.com/iliyamo/team-task-board/internal/middleware"
	"github.com/iliyamo/team-task-board/internal/repository"
)

// UserHandler serves the authenticated user's own profile and password
// management.
type UserHandler struct {
	Users *repository.UserRepo
	Auth  *auth.Service
}

func NewUserHandler(users *repository.UserRepo, svc *auth.Service) *UserHandler {
	return &UserHandler{Users: users, Auth: svc}
}

// Me returns the current user from the database, not from token claims, so
// a status change is visible immediately.
func (h *UserHandler) Me(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, middleware.UserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}

// UpdatePassword changes the caller's password after verifying the old
// one.
func (h *UserHandler) UpdatePassword(c echo.Context) error {
	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.Bind(&req); err != nil || req.OldPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "oldPassword and newPassword are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	ip, _ := clientMeta(c)
	err := h.Auth.UpdatePassword(ctx, middleware.UserID(c), req.OldPassword, req.NewPassword, ip)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "incorrect old password"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update password"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}
