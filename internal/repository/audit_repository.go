package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/team-task-board/internal/model"
)

// AuditRepo appends rows to the `audit_logs` table.  The table is an
// append-only sink; nothing in the application reads it back.
type AuditRepo struct{ DB *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{DB: db} }

// Insert writes one audit row.  Details are serialized as JSON; a nil map
// stores NULL.
func (r *AuditRepo) Insert(ctx context.Context, e model.AuditLog) error {
	var details any
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		details = string(b)
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO audit_logs (level, user_id, ip_address, action, details) VALUES (?,?,?,?,?)",
		e.Level, e.UserID, e.IPAddress, e.Action, details)
	return err
}
