package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/team-task-board/internal/model"
)

// ResetTokenRepo persists password reset tokens.  The policy is one live
// token per user: Replace deletes prior rows before inserting.
type ResetTokenRepo struct{ DB *sql.DB }

func NewResetTokenRepo(db *sql.DB) *ResetTokenRepo { return &ResetTokenRepo{DB: db} }

// Replace deletes any existing reset tokens of the user and stores a new
// hashed token in one transaction.
func (r *ResetTokenRepo) Replace(ctx context.Context, userID uint64, tokenHash string, expiresAt time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM password_reset_tokens WHERE user_id=?", userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO password_reset_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, expiresAt); err != nil {
		return err
	}
	return tx.Commit()
}

// ListLive returns all non-expired reset tokens.  The plaintext token is
// not indexable (only bcrypt hashes are stored), so consumption scans this
// list and hash-compares each row.
func (r *ResetTokenRepo) ListLive(ctx context.Context) ([]model.PasswordResetToken, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, created_at
		 FROM password_reset_tokens WHERE expires_at > UTC_TIMESTAMP()`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PasswordResetToken
	for rows.Next() {
		var t model.PasswordResetToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteForUser removes all reset tokens of a user, consuming the live one.
func (r *ResetTokenRepo) DeleteForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM password_reset_tokens WHERE user_id=?", userID)
	return err
}
