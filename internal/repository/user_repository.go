package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/team-task-board/internal/model"
)

// UserRepo persists rows of the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,password_hash,global_status,created_at,updated_at"

// Create inserts a user with an already-computed password hash and returns
// the stored row.  Duplicate emails surface as ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash) VALUES (?,?)",
		email, passwordHash)
	if err != nil {
		// MySQL 1062 = duplicate entry for a unique index
		if strings.Contains(err.Error(), "1062") {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// UpdatePassword replaces a user's password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=NOW() WHERE id=?",
		passwordHash, id)
	return err
}

// UpdateStatus sets a user's global status and returns the updated row.
// ErrNotFound when no such user exists.
func (r *UserRepo) UpdateStatus(ctx context.Context, id uint64, status model.UserGlobalStatus) (model.User, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET global_status=?, updated_at=NOW() WHERE id=?",
		status, id)
	if err != nil {
		return model.User{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Distinguish "no such user" from "status unchanged".
		var exists int
		if scanErr := r.DB.QueryRowContext(ctx,
			"SELECT 1 FROM users WHERE id=?", id).Scan(&exists); scanErr == sql.ErrNoRows {
			return model.User{}, ErrNotFound
		}
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.GlobalStatus, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	return u, err
}
