package model

import "time"

// Device models a row in the `user_devices` table: one logged-in client
// instance and the unit of refresh-token revocation.  The plain refresh
// token is never stored; only its SHA-256 hash.  The device id is a uuid
// generated at login and embedded in every refresh token minted for this
// session, so it stays stable across rotations.
//
// Fields:
//  ID               – uuid primary key, doubles as the refresh token's
//                     device claim.
//  UserID           – owner of the session.
//  RefreshTokenHash – SHA-256 hex digest of the current refresh token.
//  IPAddress        – client IP recorded at login/rotation (nullable).
//  UserAgent        – client user agent recorded at login/rotation (nullable).
//  IsRevoked        – set on logout, theft detection or user invalidation.
//  ExpiresAt        – expiry of the current refresh token.
//  CreatedAt        – timestamp of the initial login.
type Device struct {
	ID               string
	UserID           uint64
	RefreshTokenHash string
	IPAddress        *string
	UserAgent        *string
	IsRevoked        bool
	ExpiresAt        time.Time
	CreatedAt        time.Time
}

// PasswordResetToken models a row in `password_reset_tokens`.  At most one
// live token exists per user; issuing a new one deletes any prior rows.
// Only a bcrypt hash of the token is stored, so lookups scan live rows and
// compare hashes.
type PasswordResetToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
