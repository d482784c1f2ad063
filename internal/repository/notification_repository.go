package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/team-task-board/internal/model"
)

// NotificationRepo persists rows of the `notifications` table.  Rows are
// written by the queue consumer and read back by the API.
type NotificationRepo struct{ DB *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

// Insert writes one notification row.
func (r *NotificationRepo) Insert(ctx context.Context, n model.Notification) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO notifications (recipient_id, title, body, related_entity_id, related_entity_type)
		 VALUES (?,?,?,?,?)`,
		n.RecipientID, n.Title, n.Body, n.RelatedEntityID, n.RelatedEntityType)
	return err
}

// ListForUser returns the recipient's notifications, newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID uint64) ([]model.Notification, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, recipient_id, title, body, status, related_entity_id, related_entity_type, created_at
		 FROM notifications WHERE recipient_id=? ORDER BY created_at DESC LIMIT 100`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Body, &n.Status,
			&n.RelatedEntityID, &n.RelatedEntityType, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkSeen flips one notification to SEEN; scoped to the recipient so one
// user cannot touch another's rows.
func (r *NotificationRepo) MarkSeen(ctx context.Context, id, userID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE notifications SET status=? WHERE id=? AND recipient_id=?",
		model.NotificationSeen, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Zero rows also happens when the row is already SEEN.
		var one int
		if scanErr := r.DB.QueryRowContext(ctx,
			"SELECT 1 FROM notifications WHERE id=? AND recipient_id=?", id, userID).Scan(&one); scanErr == sql.ErrNoRows {
			return ErrNotFound
		}
	}
	return nil
}
