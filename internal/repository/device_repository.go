package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/team-task-board/internal/model"
)

// DeviceRepo persists rows of the `user_devices` table: one row per
// logged-in client, the unit of refresh-token revocation.
type DeviceRepo struct{ DB *sql.DB }

func NewDeviceRepo(db *sql.DB) *DeviceRepo { return &DeviceRepo{DB: db} }

// Create inserts a new device/session row.  The uuid id is generated by the
// caller so the refresh token can embed it before the insert.
func (r *DeviceRepo) Create(ctx context.Context, d model.Device) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO user_devices (id, user_id, refresh_token_hash, ip_address, user_agent, expires_at)
		 VALUES (?,?,?,?,?,?)`,
		d.ID, d.UserID, d.RefreshTokenHash, d.IPAddress, d.UserAgent, d.ExpiresAt)
	return err
}

// FindActive returns the device row for (deviceID, userID) only when it is
// neither revoked nor expired; sql.ErrNoRows otherwise.
func (r *DeviceRepo) FindActive(ctx context.Context, deviceID string, userID uint64) (model.Device, error) {
	var d model.Device
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, refresh_token_hash, ip_address, user_agent, is_revoked, expires_at, created_at
		 FROM user_devices
		 WHERE id=? AND user_id=? AND is_revoked=FALSE AND expires_at > UTC_TIMESTAMP()
		 LIMIT 1`,
		deviceID, userID).
		Scan(&d.ID, &d.UserID, &d.RefreshTokenHash, &d.IPAddress, &d.UserAgent,
			&d.IsRevoked, &d.ExpiresAt, &d.CreatedAt)
	return d, err
}

// Rotate swaps in the new refresh-token hash and expiry in place, keeping
// the device id stable.  The update is keyed on the old hash: if another
// refresh rotated the row first, zero rows are affected and ok=false, which
// the auth service treats as token reuse.
func (r *DeviceRepo) Rotate(ctx context.Context, deviceID, oldHash, newHash string, newExpiry time.Time, ip, ua *string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE user_devices
		 SET refresh_token_hash=?, expires_at=?,
		     ip_address=COALESCE(?, ip_address), user_agent=COALESCE(?, user_agent)
		 WHERE id=? AND refresh_token_hash=? AND is_revoked=FALSE`,
		newHash, newExpiry, ip, ua, deviceID, oldHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Revoke marks a device as revoked and expires it immediately.  Idempotent:
// revoking an already-revoked device is not an error.
func (r *DeviceRepo) Revoke(ctx context.Context, userID uint64, deviceID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE user_devices SET is_revoked=TRUE, expires_at=UTC_TIMESTAMP() WHERE id=? AND user_id=?",
		deviceID, userID)
	return err
}

// RevokeAllForUser revokes every active session of one user, e.g. after an
// admin ban.
func (r *DeviceRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE user_devices SET is_revoked=TRUE, expires_at=UTC_TIMESTAMP() WHERE user_id=? AND is_revoked=FALSE",
		userID)
	return err
}
