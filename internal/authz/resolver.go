// Package authz answers capability questions for the two-tier permission
// model: workspace roles (OWNER > MEMBER > VIEWER) and project roles
// (PROJECT_LEAD > CONTRIBUTOR > PROJECT_VIEWER).  It is a pure read-side
// evaluator; every "no" is a plain false, never an error.
package authz

import (
	"context"

	"github.com/iliyamo/team-task-board/internal/model"
)

// WorkspaceRoleSource looks up a user's role in a workspace; "" means no
// membership.  *repository.WorkspaceRepo satisfies this.
type WorkspaceRoleSource interface {
	MemberRole(ctx context.Context, workspaceID, userID uint64) (model.WorkspaceRole, error)
}

// ProjectRoleSource looks up a user's role in a project; "" means no
// membership.  *repository.ProjectRepo satisfies this.
type ProjectRoleSource interface {
	MemberRole(ctx context.Context, projectID, userID uint64) (model.ProjectRole, error)
}

// Resolver computes roles and derived capability predicates.
type Resolver struct {
	Workspaces WorkspaceRoleSource
	Projects   ProjectRoleSource
}

func NewResolver(w WorkspaceRoleSource, p ProjectRoleSource) *Resolver {
	return &Resolver{Workspaces: w, Projects: p}
}

// WorkspaceRole returns the user's workspace role, "" when not a member.
func (r *Resolver) WorkspaceRole(ctx context.Context, userID, workspaceID uint64) (model.WorkspaceRole, error) {
	return r.Workspaces.MemberRole(ctx, workspaceID, userID)
}

// ProjectRole returns the user's project role, "" when not a member.
func (r *Resolver) ProjectRole(ctx context.Context, userID, projectID uint64) (model.ProjectRole, error) {
	return r.Projects.MemberRole(ctx, projectID, userID)
}

// CanViewWorkspace: any membership role may view.
func (r *Resolver) CanViewWorkspace(ctx context.Context, userID, workspaceID uint64) (bool, error) {
	role, err := r.WorkspaceRole(ctx, userID, workspaceID)
	return role != "", err
}

// CanManageWorkspace: only the OWNER may add/remove members or change
// roles.  The owner's own row is rejected by the mutating layer regardless.
func (r *Resolver) CanManageWorkspace(ctx context.Context, userID, workspaceID uint64) (bool, error) {
	role, err := r.WorkspaceRole(ctx, userID, workspaceID)
	return role == model.RoleOwner, err
}

// CanEditProjects: OWNER and MEMBER may create/edit/delete projects inside
// the workspace; VIEWER may not.
func (r *Resolver) CanEditProjects(ctx context.Context, userID, workspaceID uint64) (bool, error) {
	role, err := r.WorkspaceRole(ctx, userID, workspaceID)
	return role == model.RoleOwner || role == model.RoleMember, err
}

// CanViewProject: any project membership role may view.
func (r *Resolver) CanViewProject(ctx context.Context, userID, projectID uint64) (bool, error) {
	role, err := r.ProjectRole(ctx, userID, projectID)
	return role != "", err
}

// CanManageProject: only the PROJECT_LEAD manages project membership.
func (r *Resolver) CanManageProject(ctx context.Context, userID, projectID uint64) (bool, error) {
	role, err := r.ProjectRole(ctx, userID, projectID)
	return role == model.RoleProjectLead, err
}

// CanEditTask: PROJECT_LEAD edits any task; CONTRIBUTOR may edit too but is
// narrowed per task by ContributorCanTouchTask.
func (r *Resolver) CanEditTask(ctx context.Context, userID, projectID uint64) (bool, error) {
	role, err := r.ProjectRole(ctx, userID, projectID)
	return role == model.RoleProjectLead || role == model.RoleContributor, err
}

// IsAdmin is the global override checked independently of any workspace or
// project role; it gates only the admin user-management surface.
func IsAdmin(status model.UserGlobalStatus) bool {
	return status == model.StatusAdmin
}

// ContributorCanTouchTask implements the contributor narrowing rule: a
// contributor may edit a task only when it is unassigned or they are among
// its assignees.  Callers apply it after CanEditTask for CONTRIBUTOR roles.
func ContributorCanTouchTask(assigneeIDs []uint64, userID uint64) bool {
	if len(assigneeIDs) == 0 {
		return true
	}
	for _, id := range assigneeIDs {
		if id == userID {
			return true
		}
	}
	return false
}
