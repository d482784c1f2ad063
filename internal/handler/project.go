package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/team-task-board/internal/audit"
	"github.com/iliyamo/team-task-board/internal/authz"
	"github.com/iliyamo/team-task-board/internal/middleware"
	"github.com/iliyamo/team-task-board/internal/model"
	"github.com/iliyamo/team-task-board/internal/repository"
)

// ProjectStore is the slice of the project repository the handlers need.
// *repository.ProjectRepo satisfies this.
type ProjectStore interface {
	Create(ctx context.Context, creatorID, workspaceID uint64, name string) (model.Project, error)
	GetByID(ctx context.Context, id uint64) (model.Project, error)
	ListInWorkspace(ctx context.Context, workspaceID uint64) ([]model.Project, error)
	Rename(ctx context.Context, id uint64, name string) (model.Project, error)
	Delete(ctx context.Context, id uint64) error
	MemberRole(ctx context.Context, projectID, userID uint64) (model.ProjectRole, error)
	ListMembers(ctx context.Context, projectID uint64) ([]model.ProjectMember, error)
	AddMember(ctx context.Context, projectID, userID uint64, role model.ProjectRole) (model.ProjectMember, error)
	RemoveMember(ctx context.Context, projectID, userID uint64) error
	UpdateMemberRole(ctx context.Context, projectID, userID uint64, newRole model.ProjectRole) error
}

// ProjectHandler covers project CRUD and project membership.  Workspace
// OWNERs and MEMBERs create and edit projects; membership inside a project
// is managed by its PROJECT_LEAD alone, and only workspace members may be
// added.
type ProjectHandler struct {
	Projects ProjectStore
	Authz    *authz.Resolver
	Sink     audit.Sink
}

func NewProjectHandler(projects ProjectStore, resolver *authz.Resolver, sink audit.Sink) *ProjectHandler {
	return &ProjectHandler{Projects: projects, Authz: resolver, Sink: sink}
}

type projectResp struct {
	ID          uint64    `json:"id"`
	WorkspaceID uint64    `json:"workspaceId"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toProjectResp(p model.Project) projectResp {
	return projectResp{ID: p.ID, WorkspaceID: p.WorkspaceID, Name: p.Name, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
}

// canTouchProject reports whether the user may rename or delete the
// project: its PROJECT_LEAD, or a workspace OWNER/MEMBER of the parent.
func (h *ProjectHandler) canTouchProject(ctx context.Context, userID uint64, p model.Project) (bool, error) {
	lead, err := h.Authz.CanManageProject(ctx, userID, p.ID)
	if err != nil || lead {
		return lead, err
	}
	return h.Authz.CanEditProjects(ctx, userID, p.WorkspaceID)
}

// Create makes a project inside a workspace with the caller as its lead.
func (h *ProjectHandler) Create(c echo.Context) error {
	wsID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid workspace id"})
	}

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
	ok, err := h.Authz.CanEditProjects(ctx, userID, wsID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "viewers cannot create projects"})
	}

	p, err := h.Projects.Create(ctx, userID, wsID, req.Name)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create project"})
	}

	h.Sink.Activity(ctx, "PROJECT_CREATED", userID, map[string]any{
		"workspace_id": wsID, "project_id": p.ID, "name": p.Name,
	})
	return c.JSON(http.StatusCreated, toProjectResp(p))
}

// List returns the projects of a workspace.  Any workspace member may read
// the list.
func (h *ProjectHandler) List(c echo.Context) error {
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

	projects, err := h.Projects.ListInWorkspace(ctx, wsID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]projectResp, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResp(p))
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one project.  Visible to project members and to any member
// of the parent workspace.
func (h *ProjectHandler) Get(c echo.Context) error {
	projectID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid project id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	userID := middleware.UserID(c)
	ok, err := h.Authz.CanViewProject(ctx, userID, projectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		ok, err = h.Authz.CanViewWorkspace(ctx, userID, p.WorkspaceID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
	}
	return c.JSON(http.StatusOK, toProjectResp(p))
}

// Rename changes the project name.
func (h *ProjectHandler) Rename(c echo.Context) error {
	projectID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid project id"})
	}

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

	p, err := h.Projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	userID := middleware.UserID(c)
	ok, err := h.canTouchProject(ctx, userID, p)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient role to edit this project"})
	}

	p, err = h.Projects.Rename(ctx, projectID, req.Name)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to rename project"})
	}

	h.Sink.Activity(ctx, "PROJECT_RENAMED", userID, map[string]any{"project_id": projectID, "name": req.Name})
	return c.JSON(http.StatusOK, toProjectResp(p))
}

// Delete removes a project and everything under it.
func (h *ProjectHandler) Delete(c echo.Context) error {
	projectID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid project id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	userID := middleware.UserID(c)
	ok, err := h.canTouchProject(ctx, userID, p)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient role to delete this project"})
	}

	if err := h.Projects.Delete(ctx, projectID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete project"})
	}

	h.Sink.Activity(ctx, "PROJECT_DELETED", userID, map[string]any{
		"workspace_id": p.WorkspaceID, "project_id": projectID,
	})
	return c.NoContent(http.StatusNoContent)
}

// ListMembers returns the project roster.
func (h *ProjectHandler) ListMembers(c echo.Context) error {
	projectID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid project id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ok, err := h.Authz.CanViewProject(ctx, middleware.UserID(c), projectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
	}

	members, err := h.Projects.ListMembers(ctx, projectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]memberResp, 0, len(members))
	for _, m := range members {
		out = append(out, memberResp{UserID: m.UserID, Email: m.Email, Role: string(m.Role)})
	}
	return c.JSON(http.StatusOK, out)
}

// AddMember adds a workspace member to the project.  Lead only; the
// PROJECT_LEAD role itself can never be granted.
func (h *ProjectHandler) AddMember(c echo.Context) error {
	projectID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid project id"})
	}

	var req struct {
		UserID uint64            `json:"userId"`
		Role   model.ProjectRole `json:"role"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId is required"})
	}
	if req.Role == model.RoleProjectLead || !model.ValidProjectRole(req.Role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be CONTRIBUTOR or PROJECT_VIEWER"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	actorID := middleware.UserID(c)
	ok, err := h.Authz.CanManageProject(ctx, actorID, projectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the project lead can manage members"})
	}

	m, err := h.Projects.AddMember(ctx, projectID, req.UserID, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotWorkspaceMember):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "user must join the workspace first"})
		case errors.Is(err, repository.ErrDuplicateMember):
			return c.JSON(http.StatusConflict, echo.Map{"error": "user is already a member"})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "project or user not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add member"})
		}
	}

	h.Sink.Activity(ctx, "PROJECT_MEMBER_ADDED", actorID, map[string]any{
		"project_id": projectID, "user_id": req.UserID, "role": req.Role,
	})
	return c.JSON(http.StatusCreated, memberResp{UserID: m.UserID, Email: m.Email, Role: string(m.Role)})
}

// UpdateMemberRole changes a project member's role.  The lead's own row is
// immutable until lead transfer exists.
func (h *ProjectHandler) UpdateMemberRole(c echo.Context) error {
	projectID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid project id"})
	}
	memberID, err := pathID(c, "userId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	var req struct {
		Role model.ProjectRole `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Role == model.RoleProjectLead || !model.ValidProjectRole(req.Role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be CONTRIBUTOR or PROJECT_VIEWER"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	actorID := middleware.UserID(c)
	ok, err := h.Authz.CanManageProject(ctx, actorID, projectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the project lead can manage members"})
	}

	if err := h.Projects.UpdateMemberRole(ctx, projectID, memberID, req.Role); err != nil {
		switch {
		case errors.Is(err, repository.ErrOwnerImmutable):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "the lead's role cannot be changed"})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "member not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update member"})
		}
	}

	h.Sink.Activity(ctx, "PROJECT_MEMBER_ROLE_CHANGED", actorID, map[string]any{
		"project_id": projectID, "user_id": memberID, "role": req.Role,
	})
	return c.NoContent(http.StatusNoContent)
}

// RemoveMember removes a member from the project.  The lead cannot be
// removed.
func (h *ProjectHandler) RemoveMember(c echo.Context) error {
	projectID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid project id"})
	}
	memberID, err := pathID(c, "userId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	actorID := middleware.UserID(c)
	ok, err := h.Authz.CanManageProject(ctx, actorID, projectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the project lead can manage members"})
	}

	if err := h.Projects.RemoveMember(ctx, projectID, memberID); err != nil {
		switch {
		case errors.Is(err, repository.ErrOwnerImmutable):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "the lead cannot be removed"})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "member not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to remove member"})
		}
	}

	h.Sink.Activity(ctx, "PROJECT_MEMBER_REMOVED", actorID, map[string]any{
		"project_id": projectID, "user_id": memberID,
	})
	return c.NoContent(http.StatusNoContent)
}
