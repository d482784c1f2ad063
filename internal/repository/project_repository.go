package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/team-task-board/internal/model"
)

// ProjectRepo persists projects and their membership rows.
type ProjectRepo struct{ DB *sql.DB }

func NewProjectRepo(db *sql.DB) *ProjectRepo { return &ProjectRepo{DB: db} }

// Create inserts a project and its PROJECT_LEAD membership row for the
// creator in one transaction.
func (r *ProjectRepo) Create(ctx context.Context, creatorID, workspaceID uint64, name string) (model.Project, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Project{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO projects (workspace_id, name) VALUES (?,?)", workspaceID, name)
	if err != nil {
		return model.Project{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Project{}, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO project_members (project_id, user_id, role) VALUES (?,?,?)",
		id, creatorID, model.RoleProjectLead); err != nil {
		return model.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Project{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches a project by id; ErrNotFound when absent.
func (r *ProjectRepo) GetByID(ctx context.Context, id uint64) (model.Project, error) {
	var p model.Project
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, workspace_id, name, created_at, updated_at FROM projects WHERE id=? LIMIT 1", id).
		Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Project{}, ErrNotFound
	}
	return p, err
}

// ListInWorkspace returns all projects under one workspace.
func (r *ProjectRepo) ListInWorkspace(ctx context.Context, workspaceID uint64) ([]model.Project, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, workspace_id, name, created_at, updated_at
		 FROM projects WHERE workspace_id=? ORDER BY created_at`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Rename updates the project name; ErrNotFound when the project is absent.
func (r *ProjectRepo) Rename(ctx context.Context, id uint64, name string) (model.Project, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE projects SET name=?, updated_at=NOW() WHERE id=?", name, id)
	if err != nil {
		return model.Project{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return model.Project{}, err
		}
	}
	return r.GetByID(ctx, id)
}

// Delete removes a project (membership and task rows cascade).
func (r *ProjectRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM projects WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MemberRole returns the user's role in the project, or "" when the user is
// not a member.
func (r *ProjectRepo) MemberRole(ctx context.Context, projectID, userID uint64) (model.ProjectRole, error) {
	var role model.ProjectRole
	err := r.DB.QueryRowContext(ctx,
		"SELECT role FROM project_members WHERE project_id=? AND user_id=? LIMIT 1",
		projectID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return role, err
}

// ListMembers returns membership rows joined with the members' emails.
func (r *ProjectRepo) ListMembers(ctx context.Context, projectID uint64) ([]model.ProjectMember, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT pm.id, pm.project_id, pm.user_id, pm.role, u.email, pm.created_at
		 FROM project_members pm
		 JOIN users u ON u.id = pm.user_id
		 WHERE pm.project_id=?
		 ORDER BY pm.created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProjectMember
	for rows.Next() {
		var m model.ProjectMember
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.Email, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddMember inserts a membership row.  The target must already be a member
// of the parent workspace; this is checked inside the same transaction as
// the insert and fails with ErrNotWorkspaceMember otherwise.
func (r *ProjectRepo) AddMember(ctx context.Context, projectID, userID uint64, role model.ProjectRole) (model.ProjectMember, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.ProjectMember{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var workspaceID uint64
	if err := tx.QueryRowContext(ctx,
		"SELECT workspace_id FROM projects WHERE id=?", projectID).Scan(&workspaceID); err != nil {
		if err == sql.ErrNoRows {
			return model.ProjectMember{}, ErrNotFound
		}
		return model.ProjectMember{}, err
	}

	var one int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM workspace_members WHERE workspace_id=? AND user_id=?",
		workspaceID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return model.ProjectMember{}, ErrNotWorkspaceMember
	}
	if err != nil {
		return model.ProjectMember{}, err
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO project_members (project_id, user_id, role) VALUES (?,?,?)",
		projectID, userID, role)
	if err != nil {
		return model.ProjectMember{}, classifyMemberInsertErr(err)
	}
	id, _ := res.LastInsertId()
	if err := tx.Commit(); err != nil {
		return model.ProjectMember{}, err
	}
	return model.ProjectMember{ID: uint64(id), ProjectID: projectID, UserID: userID, Role: role}, nil
}

// RemoveMember deletes a membership row; the PROJECT_LEAD row is immutable.
func (r *ProjectRepo) RemoveMember(ctx context.Context, projectID, userID uint64) error {
	role, err := r.MemberRole(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if err := guardProjectMemberChange(role); err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"DELETE FROM project_members WHERE project_id=? AND user_id=?", projectID, userID)
	return err
}

// UpdateMemberRole changes a member's role; demoting the PROJECT_LEAD is
// rejected with ErrOwnerImmutable.
func (r *ProjectRepo) UpdateMemberRole(ctx context.Context, projectID, userID uint64, newRole model.ProjectRole) error {
	role, err := r.MemberRole(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if err := guardProjectMemberChange(role); err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE project_members SET role=? WHERE project_id=? AND user_id=?",
		newRole, projectID, userID)
	return err
}
