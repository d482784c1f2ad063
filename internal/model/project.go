package model

import "time"

// ProjectRole is the role a user holds inside one project.  The creator
// becomes PROJECT_LEAD; lead transfer is not implemented, so the lead's
// row is immutable.  A project member must already be a member of the
// parent workspace.
type ProjectRole string

const (
	RoleProjectLead   ProjectRole = "PROJECT_LEAD"
	RoleContributor   ProjectRole = "CONTRIBUTOR"
	RoleProjectViewer ProjectRole = "PROJECT_VIEWER"
)

// ValidProjectRole reports whether r is a known project role.
func ValidProjectRole(r ProjectRole) bool {
	switch r {
	case RoleProjectLead, RoleContributor, RoleProjectViewer:
		return true
	}
	return false
}

// Project mirrors the `projects` table.
type Project struct {
	ID          uint64
	WorkspaceID uint64
	Name        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectMember mirrors `project_members`.  A (project, user) pair has at
// most one row.
type ProjectMember struct {
	ID        uint64
	ProjectID uint64
	UserID    uint64
	Role      ProjectRole
	Email     string // joined from users for listings
	CreatedAt time.Time
}
