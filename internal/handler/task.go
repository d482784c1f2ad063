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
	"github.com/iliyamo/team-task-board/internal/events"
	"github.com/iliyamo/team-task-board/internal/middleware"
	"github.com/iliyamo/team-task-board/internal/model"
	"github.com/iliyamo/team-task-board/internal/queue"
	"github.com/iliyamo/team-task-board/internal/repository"
	queue_publisher "github.com/iliyamo/team-task-board/internal/service"
)

// TaskStore is the slice of the task repository the handler needs.
// *repository.TaskRepo satisfies this.
type TaskStore interface {
	Create(ctx context.Context, creatorID, projectID uint64, title string, description *string, assigneeIDs []uint64) (model.Task, error)
	GetByID(ctx context.Context, id uint64) (model.Task, error)
	ListInProject(ctx context.Context, projectID uint64) ([]model.Task, error)
	Assignees(ctx context.Context, taskID uint64) ([]uint64, error)
	Update(ctx context.Context, id uint64, upd repository.TaskUpdate) (model.Task, error)
	Delete(ctx context.Context, id uint64) error
}

// TaskHandler covers the task board: create/list under a project and
// get/update/delete on single tasks.  The contributor narrowing rule is
// applied here: a CONTRIBUTOR may only touch tasks that are unassigned or
// assigned to them, while the PROJECT_LEAD touches everything.
type TaskHandler struct {
	Tasks    TaskStore
	Projects ProjectStore
	Authz    *authz.Resolver
	Broker   *events.Broker
	Sink     audit.Sink
}

func NewTaskHandler(tasks TaskStore, projects ProjectStore, resolver *authz.Resolver, broker *events.Broker, sink audit.Sink) *TaskHandler {
	return &TaskHandler{Tasks: tasks, Projects: projects, Authz: resolver, Broker: broker, Sink: sink}
}

type taskResp struct {
	ID          uint64           `json:"id"`
	ProjectID   uint64           `json:"projectId"`
	Title       string           `json:"title"`
	Description *string          `json:"description"`
	Status      model.TaskStatus `json:"status"`
	CreatedBy   uint64           `json:"createdBy"`
	AssigneeIDs []uint64         `json:"assigneeIds"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func (h *TaskHandler) toTaskResp(ctx context.Context, t model.Task) (taskResp, error) {
	assignees, err := h.Tasks.Assignees(ctx, t.ID)
	if err != nil {
		return taskResp{}, err
	}
	if assignees == nil {
		assignees = []uint64{}
	}
	return taskResp{
		ID: t.ID, ProjectID: t.ProjectID, Title: t.Title, Description: t.Description,
		Status: t.Status, CreatedBy: t.CreatedBy, AssigneeIDs: assignees,
		CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}, nil
}

// canViewBoard reports whether the user may read a project's board: any
// project member, or any member of the parent workspace.
func (h *TaskHandler) canViewBoard(ctx context.Context, userID uint64, p model.Project) (bool, error) {
	ok, err := h.Authz.CanViewProject(ctx, userID, p.ID)
	if err != nil || ok {
		return ok, err
	}
	return h.Authz.CanViewWorkspace(ctx, userID, p.WorkspaceID)
}

// validateAssignees checks that every proposed assignee is a project
// member.  Returns the first offending user id, or 0 when all are fine.
func (h *TaskHandler) validateAssignees(ctx context.Context, projectID uint64, assigneeIDs []uint64) (uint64, error) {
	for _, uid := range assigneeIDs {
		role, err := h.Projects.MemberRole(ctx, projectID, uid)
		if err != nil {
			return 0, err
		}
		if role == "" {
			return uid, nil
		}
	}
	return 0, nil
}

// publishStatusChange fans the event out to live board subscribers and to
// the message queue for notification delivery.  Queue failures are logged
// by the publisher and deliberately not surfaced to the client.
func (h *TaskHandler) publishStatusChange(t model.Task, workspaceID uint64, oldStatus model.TaskStatus, actorID uint64, assigneeIDs []uint64) {
	now := time.Now().UTC()
	h.Broker.Publish(events.TaskStatusChanged{
		TaskID:      t.ID,
		ProjectID:   t.ProjectID,
		WorkspaceID: workspaceID,
		Title:       t.Title,
		OldStatus:   oldStatus,
		NewStatus:   t.Status,
		ActorID:     actorID,
		AssigneeIDs: assigneeIDs,
		ChangedAt:   now,
	})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = queue_publisher.PublishTaskStatusChanged(ctx, queue.TaskStatusChangedEvent{
			TaskID:      t.ID,
			ProjectID:   t.ProjectID,
			WorkspaceID: workspaceID,
			Title:       t.Title,
			OldStatus:   string(oldStatus),
			NewStatus:   string(t.Status),
			ActorID:     actorID,
			AssigneeIDs: assigneeIDs,
			CreatedBy:   t.CreatedBy,
			ChangedAt:   now.Format(time.RFC3339),
		})
	}()
}

// Create adds a task to a project's board.  Leads and contributors may
// create; every assignee must already be a project member.
func (h *TaskHandler) Create(c echo.Context) error {
	projectID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid project id"})
	}

	var req struct {
		Title       string   `json:"title"`
		Description *string  `json:"description"`
		AssigneeIDs []uint64 `json:"assigneeIds"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID := middleware.UserID(c)
	ok, err := h.Authz.CanEditTask(ctx, userID, projectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "viewers cannot create tasks"})
	}

	if bad, err := h.validateAssignees(ctx, projectID, req.AssigneeIDs); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	} else if bad != 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "assignee is not a project member"})
	}

	t, err := h.Tasks.Create(ctx, userID, projectID, req.Title, req.Description, req.AssigneeIDs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create task"})
	}

	h.Sink.Activity(ctx, "TASK_CREATED", userID, map[string]any{
		"project_id": projectID, "task_id": t.ID, "title": t.Title,
	})
	resp, err := h.toTaskResp(ctx, t)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusCreated, resp)
}

// List returns a project's board.
func (h *TaskHandler) List(c echo.Context) error {
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

	ok, err := h.canViewBoard(ctx, middleware.UserID(c), p)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
	}

	tasks, err := h.Tasks.ListInProject(ctx, projectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]taskResp, 0, len(tasks))
	for _, t := range tasks {
		resp, err := h.toTaskResp(ctx, t)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		out = append(out, resp)
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns a single task.
func (h *TaskHandler) Get(c echo.Context) error {
	taskID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	t, err := h.Tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	p, err := h.Projects.GetByID(ctx, t.ProjectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	ok, err := h.canViewBoard(ctx, middleware.UserID(c), p)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
	}

	resp, err := h.toTaskResp(ctx, t)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Update modifies a task.  Lead edits anything; a contributor only a task
// that is unassigned or assigned to them.  A status change is broadcast to
// board subscribers and queued for notifications.
func (h *TaskHandler) Update(c echo.Context) error {
	taskID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task id"})
	}

	var req struct {
		Title       *string           `json:"title"`
		Description *string           `json:"description"`
		Status      *model.TaskStatus `json:"status"`
		AssigneeIDs *[]uint64         `json:"assigneeIds"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if trimmed == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "title cannot be empty"})
		}
		req.Title = &trimmed
	}
	if req.Status != nil && !model.ValidTaskStatus(*req.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be TODO, IN_PROGRESS or DONE"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	t, err := h.Tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	p, err := h.Projects.GetByID(ctx, t.ProjectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	userID := middleware.UserID(c)
	role, err := h.Authz.ProjectRole(ctx, userID, t.ProjectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	switch role {
	case model.RoleProjectLead:
	case model.RoleContributor:
		assignees, err := h.Tasks.Assignees(ctx, taskID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if !authz.ContributorCanTouchTask(assignees, userID) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "contributors can only edit tasks assigned to them"})
		}
	default:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient role to edit tasks"})
	}

	if req.AssigneeIDs != nil {
		if bad, err := h.validateAssignees(ctx, t.ProjectID, *req.AssigneeIDs); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		} else if bad != 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "assignee is not a project member"})
		}
	}

	oldStatus := t.Status
	updated, err := h.Tasks.Update(ctx, taskID, repository.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		AssigneeIDs: req.AssigneeIDs,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update task"})
	}

	resp, err := h.toTaskResp(ctx, updated)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	if req.Status != nil && *req.Status != oldStatus {
		h.publishStatusChange(updated, p.WorkspaceID, oldStatus, userID, resp.AssigneeIDs)
		h.Sink.Activity(ctx, "TASK_STATUS_CHANGED", userID, map[string]any{
			"task_id": taskID, "old_status": oldStatus, "new_status": updated.Status,
		})
	} else {
		h.Sink.Activity(ctx, "TASK_UPDATED", userID, map[string]any{"task_id": taskID})
	}
	return c.JSON(http.StatusOK, resp)
}

// Delete removes a task.  Allowed to the project lead or the workspace
// owner.
func (h *TaskHandler) Delete(c echo.Context) error {
	taskID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	t, err := h.Tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	p, err := h.Projects.GetByID(ctx, t.ProjectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	userID := middleware.UserID(c)
	ok, err := h.Authz.CanManageProject(ctx, userID, t.ProjectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		ok, err = h.Authz.CanManageWorkspace(ctx, userID, p.WorkspaceID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the project lead or workspace owner can delete tasks"})
	}

	if err := h.Tasks.Delete(ctx, taskID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete task"})
	}

	h.Sink.Activity(ctx, "TASK_DELETED", userID, map[string]any{
		"project_id": t.ProjectID, "task_id": taskID,
	})
	return c.NoContent(http.StatusNoContent)
}
