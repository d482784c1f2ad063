package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/team-task-board/internal/model"
)

// WorkspaceRepo persists workspaces and their membership rows.
type WorkspaceRepo struct{ DB *sql.DB }

func NewWorkspaceRepo(db *sql.DB) *WorkspaceRepo { return &WorkspaceRepo{DB: db} }

// Create inserts a workspace and its OWNER membership row for the creator
// in one transaction, so a workspace can never exist without an owner.
func (r *WorkspaceRepo) Create(ctx context.Context, creatorID uint64, name string) (model.Workspace, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Workspace{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "INSERT INTO workspaces (name) VALUES (?)", name)
	if err != nil {
		return model.Workspace{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Workspace{}, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO workspace_members (workspace_id, user_id, role) VALUES (?,?,?)",
		id, creatorID, model.RoleOwner); err != nil {
		return model.Workspace{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Workspace{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches a workspace by id; ErrNotFound when absent.
func (r *WorkspaceRepo) GetByID(ctx context.Context, id uint64) (model.Workspace, error) {
	var w model.Workspace
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM workspaces WHERE id=? LIMIT 1", id).
		Scan(&w.ID, &w.Name, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Workspace{}, ErrNotFound
	}
	return w, err
}

// ListForUser returns every workspace the user is a member of.
func (r *WorkspaceRepo) ListForUser(ctx context.Context, userID uint64) ([]model.Workspace, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT w.id, w.name, w.created_at, w.updated_at
		 FROM workspaces w
		 JOIN workspace_members wm ON wm.workspace_id = w.id
		 WHERE wm.user_id=?
		 ORDER BY w.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Workspace
	for rows.Next() {
		var w model.Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// MemberRole returns the user's role in the workspace, or "" when the user
// is not a member.
func (r *WorkspaceRepo) MemberRole(ctx context.Context, workspaceID, userID uint64) (model.WorkspaceRole, error) {
	var role model.WorkspaceRole
	err := r.DB.QueryRowContext(ctx,
		"SELECT role FROM workspace_members WHERE workspace_id=? AND user_id=? LIMIT 1",
		workspaceID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return role, err
}

// ListMembers returns membership rows joined with the members' emails.
func (r *WorkspaceRepo) ListMembers(ctx context.Context, workspaceID uint64) ([]model.WorkspaceMember, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT wm.id, wm.workspace_id, wm.user_id, wm.role, u.email, wm.created_at
		 FROM workspace_members wm
		 JOIN users u ON u.id = wm.user_id
		 WHERE wm.workspace_id=?
		 ORDER BY wm.created_at`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WorkspaceMember
	for rows.Next() {
		var m model.WorkspaceMember
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.Role, &m.Email, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddMember inserts a membership row.  ErrDuplicateMember when the user
// already belongs to the workspace, ErrNotFound when no such user exists.
func (r *WorkspaceRepo) AddMember(ctx context.Context, workspaceID, userID uint64, role model.WorkspaceRole) (model.WorkspaceMember, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO workspace_members (workspace_id, user_id, role) VALUES (?,?,?)",
		workspaceID, userID, role)
	if err != nil {
		return model.WorkspaceMember{}, classifyMemberInsertErr(err)
	}
	id, _ := res.LastInsertId()
	return model.WorkspaceMember{ID: uint64(id), WorkspaceID: workspaceID, UserID: userID, Role: role}, nil
}

// RemoveMember deletes a membership row.  The OWNER row is immutable:
// removal fails with ErrOwnerImmutable regardless of the caller.
func (r *WorkspaceRepo) RemoveMember(ctx context.Context, workspaceID, userID uint64) error {
	role, err := r.MemberRole(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if err := guardWorkspaceMemberChange(role); err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"DELETE FROM workspace_members WHERE workspace_id=? AND user_id=?",
		workspaceID, userID)
	return err
}

// UpdateMemberRole changes a member's role.  Changing the OWNER row is
// rejected with ErrOwnerImmutable (ownership transfer is not implemented).
func (r *WorkspaceRepo) UpdateMemberRole(ctx context.Context, workspaceID, userID uint64, newRole model.WorkspaceRole) error {
	role, err := r.MemberRole(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if err := guardWorkspaceMemberChange(role); err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE workspace_members SET role=? WHERE workspace_id=? AND user_id=?",
		newRole, workspaceID, userID)
	return err
}
