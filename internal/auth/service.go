// Package auth implements the authentication protocol: register, login,
// refresh-token rotation with theft detection, logout and the password
// reset flow.  It orchestrates the token codec (internal/utils), the
// device/session registry and the user store, and reports every
// security-relevant outcome to the audit sink.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/team-task-board/internal/audit"
	"github.com/iliyamo/team-task-board/internal/config"
	"github.com/iliyamo/team-task-board/internal/model"
	"github.com/iliyamo/team-task-board/internal/utils"
)

// UserStore is the slice of the user repository the protocol needs.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) error
}

// DeviceStore is the device/session registry: one row per logged-in client.
type DeviceStore interface {
	Create(ctx context.Context, d model.Device) error
	FindActive(ctx context.Context, deviceID string, userID uint64) (model.Device, error)
	Rotate(ctx context.Context, deviceID, oldHash, newHash string, newExpiry time.Time, ip, ua *string) (bool, error)
	Revoke(ctx context.Context, userID uint64, deviceID string) error
}

// ResetTokenStore persists password reset tokens (one live row per user).
type ResetTokenStore interface {
	Replace(ctx context.Context, userID uint64, tokenHash string, expiresAt time.Time) error
	ListLive(ctx context.Context) ([]model.PasswordResetToken, error)
	DeleteForUser(ctx context.Context, userID uint64) error
}

// Service is the auth protocol state machine over users, devices and
// tokens.
type Service struct {
	cfg     config.Config
	users   UserStore
	devices DeviceStore
	resets  ResetTokenStore
	sink    audit.Sink
}

func NewService(cfg config.Config, users UserStore, devices DeviceStore, resets ResetTokenStore, sink audit.Sink) *Service {
	return &Service{cfg: cfg, users: users, devices: devices, resets: resets, sink: sink}
}

// Credentials is what a successful register/login/refresh hands back.
type Credentials struct {
	AccessToken  utils.AccessToken
	RefreshToken utils.RefreshToken
	DeviceID     string
	User         model.User
}

// Register creates a user and immediately runs the login issuance path for
// it.  Duplicate emails surface as repository.ErrEmailExists.
func (s *Service) Register(ctx context.Context, email, password string, ip, ua *string) (*Credentials, error) {
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Create(ctx, email, hash)
	if err != nil {
		return nil, err
	}
	creds, err := s.issueSession(ctx, user, ip, ua)
	if err != nil {
		return nil, err
	}
	s.sink.Info(ctx, "REGISTER_SUCCESS", &user.ID, ip, map[string]any{
		"email": user.Email, "device_id": creds.DeviceID,
	})
	return creds, nil
}

// Login verifies credentials and opens a new device session.  Other
// sessions of the same user are untouched (multi-device).  The access
// token's status claim is read from the row fetched here, never from an
// older token.
func (s *Service) Login(ctx context.Context, email, password string, ip, ua *string) (*Credentials, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil || !utils.VerifyPassword(user.PasswordHash, password) {
		var uid *uint64
		if err == nil {
			uid = &user.ID
		}
		s.sink.Security(ctx, "LOGIN_FAILURE", uid, ip, map[string]any{"email": email})
		return nil, ErrInvalidCredentials
	}
	if user.GlobalStatus == model.StatusBanned {
		s.sink.Security(ctx, "LOGIN_FAILURE_BANNED", &user.ID, ip, map[string]any{"email": email})
		return nil, ErrAccountBanned
	}
	creds, err := s.issueSession(ctx, user, ip, ua)
	if err != nil {
		return nil, err
	}
	s.sink.Activity(ctx, "LOGIN_SUCCESS", user.ID, map[string]any{"device_id": creds.DeviceID})
	return creds, nil
}

// issueSession mints the token pair for a fresh device id and persists the
// device row.  The refresh token embeds the device id before the insert, so
// the row's id and the token's claim always agree.
func (s *Service) issueSession(ctx context.Context, user model.User, ip, ua *string) (*Credentials, error) {
	deviceID := uuid.NewString()
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshSecret, user.ID, deviceID, s.cfg.RefreshTTLDays)
	if err != nil {
		return nil, err
	}
	if err := s.devices.Create(ctx, model.Device{
		ID:               deviceID,
		UserID:           user.ID,
		RefreshTokenHash: utils.HashTokenRaw(refresh.Token),
		IPAddress:        ip,
		UserAgent:        ua,
		ExpiresAt:        refresh.Exp,
	}); err != nil {
		return nil, err
	}
	access, err := utils.NewAccessToken(s.cfg.AccessSecret, user.ID, user.Email, user.GlobalStatus, s.cfg.AccessTTLMin)
	if err != nil {
		return nil, err
	}
	return &Credentials{AccessToken: access, RefreshToken: refresh, DeviceID: deviceID, User: user}, nil
}

// Refresh rotates a refresh token: same device id, new token, new hash.
// A presented token whose hash does not match the stored one is a reuse
// signal — the whole session is revoked.  Rotation is guarded by a
// conditional update keyed on the old hash, so of two concurrent refreshes
// only one wins; the loser is treated as reuse as well.
func (s *Service) Refresh(ctx context.Context, oldToken string, ip, ua *string) (*Credentials, error) {
	claims, ok := utils.VerifyRefreshToken(s.cfg.RefreshSecret, oldToken)
	if !ok {
		s.sink.Security(ctx, "REFRESH_TOKEN_INVALID", nil, ip, map[string]any{"reason": "malformed_or_expired"})
		return nil, ErrInvalidToken
	}

	device, err := s.devices.FindActive(ctx, claims.DeviceID, claims.UserID)
	if err != nil {
		s.sink.Security(ctx, "REFRESH_TOKEN_INVALID", &claims.UserID, ip, map[string]any{
			"reason": "not_found_or_revoked", "device_id": claims.DeviceID,
		})
		return nil, ErrSessionNotFound
	}

	if !utils.CompareTokenHash(oldToken, device.RefreshTokenHash) {
		return nil, s.flagReuse(ctx, claims.UserID, claims.DeviceID, ip, "hash_mismatch")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil || user.GlobalStatus == model.StatusBanned {
		_ = s.devices.Revoke(ctx, claims.UserID, claims.DeviceID)
		s.sink.Security(ctx, "REFRESH_TOKEN_FAILURE", &claims.UserID, ip, map[string]any{
			"reason": "user_not_found_or_banned", "device_id": claims.DeviceID,
		})
		return nil, ErrUserInvalid
	}

	newRefresh, err := utils.NewRefreshToken(s.cfg.RefreshSecret, user.ID, claims.DeviceID, s.cfg.RefreshTTLDays)
	if err != nil {
		return nil, err
	}
	rotated, err := s.devices.Rotate(ctx, claims.DeviceID,
		device.RefreshTokenHash, utils.HashTokenRaw(newRefresh.Token), newRefresh.Exp, ip, ua)
	if err != nil {
		return nil, err
	}
	if !rotated {
		// A concurrent refresh swapped the hash first.
		return nil, s.flagReuse(ctx, claims.UserID, claims.DeviceID, ip, "lost_rotation_race")
	}

	access, err := utils.NewAccessToken(s.cfg.AccessSecret, user.ID, user.Email, user.GlobalStatus, s.cfg.AccessTTLMin)
	if err != nil {
		return nil, err
	}
	s.sink.Activity(ctx, "TOKEN_REFRESH_SUCCESS", user.ID, map[string]any{"device_id": claims.DeviceID})
	return &Credentials{AccessToken: access, RefreshToken: newRefresh, DeviceID: claims.DeviceID, User: user}, nil
}

func (s *Service) flagReuse(ctx context.Context, userID uint64, deviceID string, ip *string, reason string) error {
	_ = s.devices.Revoke(ctx, userID, deviceID)
	s.sink.Security(ctx, "REFRESH_TOKEN_REUSE", &userID, ip, map[string]any{
		"reason": reason, "device_id": deviceID,
	})
	return ErrTokenReuse
}

// Logout revokes one device session.  Idempotent: revoking a device that is
// already revoked still succeeds.
func (s *Service) Logout(ctx context.Context, userID uint64, deviceID string, ip *string) error {
	if err := s.devices.Revoke(ctx, userID, deviceID); err != nil {
		return err
	}
	s.sink.Activity(ctx, "LOGOUT_SUCCESS", userID, map[string]any{"device_id": deviceID})
	return nil
}

// IssuePasswordReset creates a reset token for the account behind email.
// Returns ("", nil) silently when no such user exists so the API surface
// cannot be used for account enumeration.  Any prior token of the user is
// invalidated: at most one reset token is live per user.
func (s *Service) IssuePasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil
	}
	token := uuid.NewString()
	hash, err := utils.HashPassword(token, s.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	expires := time.Now().UTC().Add(time.Duration(s.cfg.ResetTTLMin) * time.Minute)
	if err := s.resets.Replace(ctx, user.ID, hash, expires); err != nil {
		return "", err
	}
	s.sink.Info(ctx, "PASSWORD_RESET_REQUEST", &user.ID, nil, map[string]any{"email": user.Email})
	return token, nil
}

// ConsumeResetToken redeems a reset token.  The plaintext is not indexable,
// so every live row is hash-compared; the first match updates the password
// and deletes the user's tokens.  Returns false when nothing matches.
func (s *Service) ConsumeResetToken(ctx context.Context, token, newPassword string) (bool, error) {
	live, err := s.resets.ListLive(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range live {
		if !utils.VerifyPassword(t.TokenHash, token) {
			continue
		}
		hash, err := utils.HashPassword(newPassword, s.cfg.BcryptCost)
		if err != nil {
			return false, err
		}
		if err := s.users.UpdatePassword(ctx, t.UserID, hash); err != nil {
			return false, err
		}
		if err := s.resets.DeleteForUser(ctx, t.UserID); err != nil {
			return false, err
		}
		s.sink.Activity(ctx, "PASSWORD_RESET_SUCCESS", t.UserID, nil)
		return true, nil
	}
	return false, nil
}

// UpdatePassword changes the password of an authenticated user after
// verifying the old one.
func (s *Service) UpdatePassword(ctx context.Context, userID uint64, oldPassword, newPassword string, ip *string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(user.PasswordHash, oldPassword) {
		s.sink.Security(ctx, "UPDATE_PASSWORD_FAILURE", &userID, ip, map[string]any{"reason": "incorrect old password"})
		return ErrInvalidCredentials
	}
	hash, err := utils.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	s.sink.Activity(ctx, "PASSWORD_UPDATE", userID, nil)
	return nil
}
