package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/team-task-board/internal/audit"
	"github.com/iliyamo/team-task-board/internal/auth"
	"github.com/iliyamo/team-task-board/internal/config"
	"github.com/iliyamo/team-task-board/internal/middleware"
	"github.com/iliyamo/team-task-board/internal/model"
	"github.com/iliyamo/team-task-board/internal/repository"
	"github.com/iliyamo/team-task-board/internal/utils"
)

// In-memory stores backing the real auth service so the handler tests
// exercise the full request path minus the database.

type memUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.User
}

func newMemUsers() *memUsers { return &memUsers{nextID: 1, byID: map[uint64]model.User{}} }

func (m *memUsers) Create(_ context.Context, email, passwordHash string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return model.User{}, repository.ErrEmailExists
		}
	}
	u := model.User{ID: m.nextID, Email: email, PasswordHash: passwordHash, GlobalStatus: model.StatusActive}
	m.byID[u.ID] = u
	m.nextID++
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id uint64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	m.byID[id] = u
	return nil
}

type memDevices struct {
	mu   sync.Mutex
	byID map[string]model.Device
}

func newMemDevices() *memDevices { return &memDevices{byID: map[string]model.Device{}} }

func (m *memDevices) Create(_ context.Context, d model.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[d.ID] = d
	return nil
}

func (m *memDevices) FindActive(_ context.Context, deviceID string, userID uint64) (model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[deviceID]
	if !ok || d.UserID != userID || d.IsRevoked || !d.ExpiresAt.After(time.Now().UTC()) {
		return model.Device{}, repository.ErrNotFound
	}
	return d, nil
}

func (m *memDevices) Rotate(_ context.Context, deviceID, oldHash, newHash string, newExpiry time.Time, ip, ua *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[deviceID]
	if !ok || d.IsRevoked || d.RefreshTokenHash != oldHash {
		return false, nil
	}
	d.RefreshTokenHash = newHash
	d.ExpiresAt = newExpiry
	m.byID[deviceID] = d
	return true, nil
}

func (m *memDevices) Revoke(_ context.Context, userID uint64, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[deviceID]
	if !ok || d.UserID != userID {
		return nil
	}
	d.IsRevoked = true
	m.byID[deviceID] = d
	return nil
}

func (m *memDevices) revoked(deviceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[deviceID].IsRevoked
}

type memResets struct {
	mu     sync.Mutex
	byUser map[uint64]model.PasswordResetToken
}

func newMemResets() *memResets { return &memResets{byUser: map[uint64]model.PasswordResetToken{}} }

func (m *memResets) Replace(_ context.Context, userID uint64, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUser[userID] = model.PasswordResetToken{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	return nil
}

func (m *memResets) ListLive(_ context.Context) ([]model.PasswordResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PasswordResetToken
	for _, t := range m.byUser {
		if t.ExpiresAt.After(time.Now().UTC()) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memResets) DeleteForUser(_ context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUser, userID)
	return nil
}

type authHarness struct {
	e       *echo.Echo
	h       *AuthHandler
	cfg     config.Config
	devices *memDevices
}

func newAuthHarness() *authHarness {
	cfg := config.Config{
		Env:            "test",
		AccessSecret:   "access-secret-for-tests",
		RefreshSecret:  "refresh-secret-for-tests",
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		ResetTTLMin:    60,
		BcryptCost:     4,
	}
	devices := newMemDevices()
	svc := auth.NewService(cfg, newMemUsers(), devices, newMemResets(), audit.NopSink{})
	return &authHarness{
		e:       echo.New(),
		h:       NewAuthHandler(cfg, svc, audit.NopSink{}),
		cfg:     cfg,
		devices: devices,
	}
}

func (a *authHarness) do(t *testing.T, fn echo.HandlerFunc, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, fn(a.e.NewContext(req, rec)))
	return rec
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == refreshCookieName {
			return ck
		}
	}
	t.Fatal("no refresh cookie in response")
	return nil
}

func (a *authHarness) register(t *testing.T, email string) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()
	rec := a.do(t, a.h.Register, `{"email":"`+email+`","password":"s3cret"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	return rec, refreshCookie(t, rec)
}

func TestRegisterSetsRefreshCookie(t *testing.T) {
	a := newAuthHarness()
	rec, ck := a.register(t, "alice@example.com")

	assert.Equal(t, "/v1/auth", ck.Path)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, ck.SameSite)
	assert.False(t, ck.Secure, "Secure only outside test/dev")
	assert.NotEmpty(t, ck.Value)

	var resp struct {
		AccessToken string `json:"accessToken"`
		User        struct {
			Email  string `json:"email"`
			Status string `json:"status"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, "ACTIVE", resp.User.Status)

	// The body must never contain the refresh token.
	assert.NotContains(t, rec.Body.String(), ck.Value)
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	a := newAuthHarness()
	a.register(t, "alice@example.com")

	rec := a.do(t, a.h.Register, `{"email":"alice@example.com","password":"other"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	a := newAuthHarness()
	a.register(t, "alice@example.com")

	rec := a.do(t, a.h.Login, `{"email":"alice@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLoginMissingFields(t *testing.T) {
	a := newAuthHarness()
	rec := a.do(t, a.h.Login, `{"email":"alice@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshWithoutCookie(t *testing.T) {
	a := newAuthHarness()
	rec := a.do(t, a.h.Refresh, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshRotatesCookie(t *testing.T) {
	a := newAuthHarness()
	_, ck := a.register(t, "alice@example.com")

	rec := a.do(t, a.h.Refresh, "", ck)
	require.Equal(t, http.StatusOK, rec.Code)
	next := refreshCookie(t, rec)
	assert.NotEqual(t, ck.Value, next.Value)
	assert.True(t, next.Expires.After(time.Now()))
}

func TestRefreshReplayForbiddenAndClearsCookie(t *testing.T) {
	a := newAuthHarness()
	_, ck := a.register(t, "alice@example.com")

	rec := a.do(t, a.h.Refresh, "", ck)
	require.Equal(t, http.StatusOK, rec.Code)

	// Present the superseded token again.
	rec = a.do(t, a.h.Refresh, "", ck)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	cleared := refreshCookie(t, rec)
	assert.Empty(t, cleared.Value)
	assert.True(t, cleared.Expires.Before(time.Now()))

	// Theft detection killed the session: the rotated token is dead too.
	claims, ok := utils.VerifyRefreshToken(a.cfg.RefreshSecret, ck.Value)
	require.True(t, ok)
	assert.True(t, a.devices.revoked(claims.DeviceID))
}

func TestRefreshGarbageCookie(t *testing.T) {
	a := newAuthHarness()
	rec := a.do(t, a.h.Refresh, "", &http.Cookie{Name: refreshCookieName, Value: "garbage"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// logoutCtx builds a context carrying the authenticated identity the JWT
// middleware would have injected.
func (a *authHarness) logout(t *testing.T, userID uint64, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := a.e.NewContext(req, rec)
	if userID != 0 {
		c.Set(middleware.CtxUserID, userID)
	}
	require.NoError(t, a.h.Logout(c))
	return rec
}

func TestLogoutRevokesSession(t *testing.T) {
	a := newAuthHarness()
	_, ck := a.register(t, "alice@example.com")
	claims, ok := utils.VerifyRefreshToken(a.cfg.RefreshSecret, ck.Value)
	require.True(t, ok)

	rec := a.logout(t, claims.UserID, ck)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, a.devices.revoked(claims.DeviceID))

	// The follow-up refresh must fail.
	rec = a.do(t, a.h.Refresh, "", ck)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogoutWithoutIdentity(t *testing.T) {
	a := newAuthHarness()
	rec := a.logout(t, 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutMismatchedCookie(t *testing.T) {
	a := newAuthHarness()
	_, aliceCk := a.register(t, "alice@example.com")
	_, bobCk := a.register(t, "bob@example.com")

	aliceClaims, ok := utils.VerifyRefreshToken(a.cfg.RefreshSecret, aliceCk.Value)
	require.True(t, ok)

	// Alice's bearer identity with Bob's cookie.
	rec := a.logout(t, aliceClaims.UserID, bobCk)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	bobClaims, ok := utils.VerifyRefreshToken(a.cfg.RefreshSecret, bobCk.Value)
	require.True(t, ok)
	assert.False(t, a.devices.revoked(bobClaims.DeviceID))
}

func TestLogoutMissingCookieStillSucceeds(t *testing.T) {
	a := newAuthHarness()
	rec, _ := a.register(t, "alice@example.com")

	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	claims, ok := utils.VerifyAccessToken(a.cfg.AccessSecret, resp.AccessToken)
	require.True(t, ok)

	out := a.logout(t, claims.UserID)
	assert.Equal(t, http.StatusOK, out.Code)
}

func TestForgotPasswordUniformResponse(t *testing.T) {
	a := newAuthHarness()
	a.register(t, "alice@example.com")

	known := a.do(t, a.h.ForgotPassword, `{"email":"alice@example.com"}`)
	unknown := a.do(t, a.h.ForgotPassword, `{"email":"nobody@example.com"}`)
	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
}

func TestResetPasswordBadToken(t *testing.T) {
	a := newAuthHarness()
	rec := a.do(t, a.h.ResetPassword, `{"token":"nope","newPassword":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
