package model

import "time"

// UserGlobalStatus is the account-wide status stored in users.global_status.
// ADMIN is a global override independent of any workspace or project role.
type UserGlobalStatus string

const (
	StatusActive UserGlobalStatus = "ACTIVE"
	StatusBanned UserGlobalStatus = "BANNED"
	StatusAdmin  UserGlobalStatus = "ADMIN"
)

// ValidUserGlobalStatus reports whether s is one of the known status values.
func ValidUserGlobalStatus(s UserGlobalStatus) bool {
	switch s {
	case StatusActive, StatusBanned, StatusAdmin:
		return true
	}
	return false
}

// User mirrors the `users` table.  The password hash never leaves the
// repository/auth layers; handlers expose separate response types.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique, normalized (lower-cased) email address.
//  PasswordHash – bcrypt hashed password.
//  GlobalStatus – ACTIVE, BANNED or ADMIN.  Mutated only through the admin
//                 surface, never by the user themselves.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64
	Email        string
	PasswordHash string
	GlobalStatus UserGlobalStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
