package repository

import (
	"strings"

	"github.com/iliyamo/team-task-board/internal/model"
)

// guardWorkspaceMemberChange gates mutation of a workspace membership row:
// an absent row is ErrNotFound and the OWNER row is immutable until
// ownership transfer exists.
func guardWorkspaceMemberChange(role model.WorkspaceRole) error {
	switch role {
	case "":
		return ErrNotFound
	case model.RoleOwner:
		return ErrOwnerImmutable
	}
	return nil
}

// guardProjectMemberChange is the project-tier counterpart: the
// PROJECT_LEAD row is immutable until lead transfer exists.
func guardProjectMemberChange(role model.ProjectRole) error {
	switch role {
	case "":
		return ErrNotFound
	case model.RoleProjectLead:
		return ErrOwnerImmutable
	}
	return nil
}

// classifyMemberInsertErr maps the MySQL errors a membership INSERT can hit
// to repository sentinels: 1062 is a duplicate (workspace,user) or
// (project,user) key, 1452 a foreign key pointing at a nonexistent user.
func classifyMemberInsertErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "1062") {
		return ErrDuplicateMember
	}
	if strings.Contains(err.Error(), "1452") {
		return ErrNotFound
	}
	return err
}
