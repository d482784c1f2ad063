package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/team-task-board/internal/middleware"
	"github.com/iliyamo/team-task-board/internal/model"
	"github.com/iliyamo/team-task-board/internal/repository"
)

// NotificationHandler serves the notifications written by the queue
// consumer.  A user only ever sees their own rows.
type NotificationHandler struct {
	Notifications *repository.NotificationRepo
}

func NewNotificationHandler(notifications *repository.NotificationRepo) *NotificationHandler {
	return &NotificationHandler{Notifications: notifications}
}

type notificationResp struct {
	ID                uint64                   `json:"id"`
	Title             string                   `json:"title"`
	Body              string                   `json:"body"`
	Status            model.NotificationStatus `json:"status"`
	RelatedEntityID   uint64                   `json:"relatedEntityId"`
	RelatedEntityType string                   `json:"relatedEntityType"`
	CreatedAt         time.Time                `json:"createdAt"`
}

// List returns the caller's most recent notifications, newest first.
func (h *NotificationHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	notifs, err := h.Notifications.ListForUser(ctx, middleware.UserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]notificationResp, 0, len(notifs))
	for _, n := range notifs {
		out = append(out, notificationResp{
			ID: n.ID, Title: n.Title, Body: n.Body, Status: n.Status,
			RelatedEntityID: n.RelatedEntityID, RelatedEntityType: n.RelatedEntityType,
			CreatedAt: n.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// MarkSeen flips one of the caller's notifications to SEEN.  Marking an
// already-seen notification is a no-op success.
func (h *NotificationHandler) MarkSeen(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid notification id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Notifications.MarkSeen(ctx, id, middleware.UserID(c)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "notification not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update notification"})
	}
	return c.NoContent(http.StatusNoContent)
}
