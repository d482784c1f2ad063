package model

import "time"

// WorkspaceRole is the role a user holds inside one workspace.
// Exactly one OWNER exists per workspace (its creator); ownership
// transfer is not implemented, so the owner's row is immutable.
type WorkspaceRole string

const (
	RoleOwner  WorkspaceRole = "OWNER"
	RoleMember WorkspaceRole = "MEMBER"
	RoleViewer WorkspaceRole = "VIEWER"
)

// ValidWorkspaceRole reports whether r is a known workspace role.
func ValidWorkspaceRole(r WorkspaceRole) bool {
	switch r {
	case RoleOwner, RoleMember, RoleViewer:
		return true
	}
	return false
}

// Workspace mirrors the `workspaces` table.
type Workspace struct {
	ID        uint64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WorkspaceMember mirrors `workspace_members`.  A (workspace, user) pair
// has at most one row.
type WorkspaceMember struct {
	ID          uint64
	WorkspaceID uint64
	UserID      uint64
	Role        WorkspaceRole
	Email       string // joined from users for listings
	CreatedAt   time.Time
}
