package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/team-task-board/internal/model"
)

// TaskRepo persists tasks and their assignee rows.
type TaskRepo struct{ DB *sql.DB }

func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{DB: db} }

const taskColumns = "id, project_id, title, description, status, created_by, created_at, updated_at"

// TaskUpdate carries the mutable task fields; nil means "leave unchanged".
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *model.TaskStatus
	AssigneeIDs *[]uint64 // full replacement of the assignee set
}

// Create inserts a task and its assignee rows in one transaction.
func (r *TaskRepo) Create(ctx context.Context, creatorID, projectID uint64, title string, description *string, assigneeIDs []uint64) (model.Task, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Task{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO tasks (project_id, title, description, created_by) VALUES (?,?,?,?)",
		projectID, title, description, creatorID)
	if err != nil {
		return model.Task{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Task{}, err
	}
	for _, uid := range assigneeIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO task_assignees (task_id, user_id) VALUES (?,?)", id, uid); err != nil {
			return model.Task{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Task{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches a task by id; ErrNotFound when absent.
func (r *TaskRepo) GetByID(ctx context.Context, id uint64) (model.Task, error) {
	var t model.Task
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id=? LIMIT 1", id).
		Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Task{}, ErrNotFound
	}
	return t, err
}

// ListInProject returns all tasks of one project.
func (r *TaskRepo) ListInProject(ctx context.Context, projectID uint64) ([]model.Task, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE project_id=? ORDER BY created_at", projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Assignees returns the user ids currently assigned to a task.
func (r *TaskRepo) Assignees(ctx context.Context, taskID uint64) ([]uint64, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT user_id FROM task_assignees WHERE task_id=? ORDER BY user_id", taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uint64
	for rows.Next() {
		var uid uint64
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}

// Update applies the non-nil fields of upd and, when AssigneeIDs is set,
// replaces the assignee set, all in one transaction.
func (r *TaskRepo) Update(ctx context.Context, id uint64, upd TaskUpdate) (model.Task, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Task{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if upd.Title != nil {
		if _, err := tx.ExecContext(ctx,
			"UPDATE tasks SET title=?, updated_at=NOW() WHERE id=?", *upd.Title, id); err != nil {
			return model.Task{}, err
		}
	}
	if upd.Description != nil {
		if _, err := tx.ExecContext(ctx,
			"UPDATE tasks SET description=?, updated_at=NOW() WHERE id=?", *upd.Description, id); err != nil {
			return model.Task{}, err
		}
	}
	if upd.Status != nil {
		if _, err := tx.ExecContext(ctx,
			"UPDATE tasks SET status=?, updated_at=NOW() WHERE id=?", *upd.Status, id); err != nil {
			return model.Task{}, err
		}
	}
	if upd.AssigneeIDs != nil {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM task_assignees WHERE task_id=?", id); err != nil {
			return model.Task{}, err
		}
		for _, uid := range *upd.AssigneeIDs {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO task_assignees (task_id, user_id) VALUES (?,?)", id, uid); err != nil {
				return model.Task{}, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Task{}, err
	}
	return r.GetByID(ctx, id)
}

// Delete removes a task (assignee rows cascade).
func (r *TaskRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM tasks WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
