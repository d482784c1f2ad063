package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/team-task-board/internal/audit"
	"github.com/iliyamo/team-task-board/internal/authz"
	"github.com/iliyamo/team-task-board/internal/events"
	"github.com/iliyamo/team-task-board/internal/middleware"
	"github.com/iliyamo/team-task-board/internal/model"
	"github.com/iliyamo/team-task-board/internal/repository"
)

// WorkspaceStore is the slice of the workspace repository the handler
// needs.  *repository.WorkspaceRepo satisfies this.
type WorkspaceStore interface {
	Create(ctx context.Context, creatorID uint64, name string) (model.Workspace, error)
	GetByID(ctx context.Context, id uint64) (model.Workspace, error)
	ListForUser(ctx context.Context, userID uint64) ([]model.Workspace, error)
	ListMembers(ctx context.Context, workspaceID uint64) ([]model.WorkspaceMember, error)
	AddMember(ctx context.Context, workspaceID, userID uint64, role model.WorkspaceRole) (model.WorkspaceMember, error)
	RemoveMember(ctx context.Context, workspaceID, userID uint64) error
	UpdateMemberRole(ctx context.Context, workspaceID, userID uint64, newRole model.WorkspaceRole) error
}

// WorkspaceHandler covers workspace CRUD, membership management and the
// per-workspace event stream.  Authorization decisions go through the
// resolver; the handler only translates its answers into status codes.
type WorkspaceHandler struct {
	Workspaces WorkspaceStore
	Authz      *authz.Resolver
	Broker     *events.Broker
	Sink       audit.Sink
}

func NewWorkspaceHandler(workspaces WorkspaceStore, resolver *authz.Resolver, broker *events.Broker, sink audit.Sink) *WorkspaceHandler {
	return &WorkspaceHandler{Workspaces: workspaces, Authz: resolver, Broker: broker, Sink: sink}
}

func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

type workspaceResp struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toWorkspaceResp(w model.Workspace) workspaceResp {
	return workspaceResp{ID: w.ID, Name: w.Name, CreatedAt: w.CreatedAt, UpdatedAt: w.UpdatedAt}
}

type memberResp struct {
	UserID uint64 `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Create makes a new workspace with the caller as its OWNER.
func (h *WorkspaceHandler) Create(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID := middleware.UserID(c)
	ws, err := h.Workspaces.Create(ctx, userID, req.Name)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create workspace"})
	}

	h.Sink.Activity(ctx, "WORKSPACE_CREATED", userID, map[string]any{"workspace_id": ws.ID, "name": ws.Name})
	return c.JSON(http.StatusCreated, toWorkspaceResp(ws))
}

// List returns every workspace the caller belongs to.
func (h *WorkspaceHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	wss, err := h.Workspaces.ListForUser(ctx, middleware.UserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]workspaceResp, 0, len(wss))
	for _, ws := range wss {
		out = append(out, toWorkspaceResp(ws))
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one workspace.  Non-members get 404 rather than 403 so the
// endpoint does not confirm the workspace exists.
func (h *WorkspaceHandler) Get(c echo.Context) error {
	wsID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid workspace id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ok, err := h.Authz.CanViewWorkspace(ctx, middleware.UserID(c), wsID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "workspace not found"})
	}

	ws, err := h.Workspaces.GetByID(ctx, wsID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "workspace not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toWorkspaceResp(ws))
}

// ListMembers returns the workspace roster.  Any member may read it.
func (h *WorkspaceHandler) ListMembers(c echo.Context) error {
	wsID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid workspace id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ok, err := h.Authz.CanViewWorkspace(ctx, middleware.UserID(c), wsID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "workspace not found"})
	}

	members, err := h.Workspaces.ListMembers(ctx, wsID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]memberResp, 0, len(members))
	for _, m := range members {
		out = append(out, memberResp{UserID: m.UserID, Email: m.Email, Role: string(m.Role)})
	}
	return c.JSON(http.StatusOK, out)
}

// AddMember invites a user into the workspace.  OWNER only; the OWNER role
// itself can never be granted.
func (h *WorkspaceHandler) AddMember(c echo.Context) error {
	wsID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid workspace id"})
	}

	var req struct {
		UserID uint64              `json:"userId"`
		Role   model.WorkspaceRole `json:"role"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId is required"})
	}
	if req.Role == model.RoleOwner || !model.ValidWorkspaceRole(req.Role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be MEMBER or VIEWER"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	actorID := middleware.UserID(c)
	ok, err := h.Authz.CanManageWorkspace(ctx, actorID, wsID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the workspace owner can manage members"})
	}

	m, err := h.Workspaces.AddMember(ctx, wsID, req.UserID, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateMember):
			return c.JSON(http.StatusConflict, echo.Map{"error": "user is already a member"})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add member"})
		}
	}

	h.Sink.Activity(ctx, "WORKSPACE_MEMBER_ADDED", actorID, map[string]any{
		"workspace_id": wsID, "user_id": req.UserID, "role": req.Role,
	})
	return c.JSON(http.StatusCreated, memberResp{UserID: m.UserID, Email: m.Email, Role: string(m.Role)})
}

// UpdateMemberRole changes a member's role.  The owner's own row is
// immutable until ownership transfer exists.
func (h *WorkspaceHandler) UpdateMemberRole(c echo.Context) error {
	wsID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid workspace id"})
	}
	memberID, err := pathID(c, "userId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	var req struct {
		Role model.WorkspaceRole `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Role == model.RoleOwner || !model.ValidWorkspaceRole(req.Role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be MEMBER or VIEWER"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	actorID := middleware.UserID(c)
	ok, err := h.Authz.CanManageWorkspace(ctx, actorID, wsID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the workspace owner can manage members"})
	}

	if err := h.Workspaces.UpdateMemberRole(ctx, wsID, memberID, req.Role); err != nil {
		switch {
		case errors.Is(err, repository.ErrOwnerImmutable):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "the owner's role cannot be changed"})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "member not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update member"})
		}
	}

	h.Sink.Activity(ctx, "WORKSPACE_MEMBER_ROLE_CHANGED", actorID, map[string]any{
		"workspace_id": wsID, "user_id": memberID, "role": req.Role,
	})
	return c.NoContent(http.StatusNoContent)
}

// RemoveMember removes a member from the workspace.  The owner cannot be
// removed.
func (h *WorkspaceHandler) RemoveMember(c echo.Context) error {
	wsID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid workspace id"})
	}
	memberID, err := pathID(c, "userId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	actorID := middleware.UserID(c)
	ok, err := h.Authz.CanManageWorkspace(ctx, actorID, wsID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the workspace owner can manage members"})
	}

	if err := h.Workspaces.RemoveMember(ctx, wsID, memberID); err != nil {
		switch {
		case errors.Is(err, repository.ErrOwnerImmutable):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "the owner cannot be removed"})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "member not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to remove member"})
		}
	}

	h.Sink.Activity(ctx, "WORKSPACE_MEMBER_REMOVED", actorID, map[string]any{
		"workspace_id": wsID, "user_id": memberID,
	})
	return c.NoContent(http.StatusNoContent)
}

// Events streams task status changes for one workspace as server-sent
// events.  Membership is checked once at connect time; a role revoked
// mid-stream takes effect on the next connection.
func (h *WorkspaceHandler) Events(c echo.Context) error {
	wsID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid workspace id"})
	}

	checkCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	ok, err := h.Authz.CanViewWorkspace(checkCtx, middleware.UserID(c), wsID)
	cancel()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "workspace not found"})
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	sub := h.Broker.Subscribe(wsID)
	defer h.Broker.Unsubscribe(sub)

	// Heartbeat comments keep intermediaries from timing the stream out.
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case ev, open := <-sub.C:
			if !open {
				return nil
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: task.status.changed\ndata: %s\n\n", payload); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
