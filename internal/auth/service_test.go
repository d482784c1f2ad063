package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/team-task-board/internal/audit"
	"github.com/iliyamo/team-task-board/internal/config"
	"github.com/iliyamo/team-task-board/internal/model"
	"github.com/iliyamo/team-task-board/internal/repository"
	"github.com/iliyamo/team-task-board/internal/utils"
)

// ----- in-memory stores -----

type fakeUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{nextID: 1, byID: map[uint64]model.User{}}
}

func (f *fakeUsers) Create(_ context.Context, email, passwordHash string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return model.User{}, repository.ErrEmailExists
		}
	}
	u := model.User{ID: f.nextID, Email: email, PasswordHash: passwordHash, GlobalStatus: model.StatusActive}
	f.byID[u.ID] = u
	f.nextID++
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id uint64, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) setStatus(id uint64, status model.UserGlobalStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID[id]
	u.GlobalStatus = status
	f.byID[id] = u
}

type fakeDevices struct {
	mu   sync.Mutex
	byID map[string]model.Device
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{byID: map[string]model.Device{}}
}

func (f *fakeDevices) Create(_ context.Context, d model.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[d.ID] = d
	return nil
}

func (f *fakeDevices) FindActive(_ context.Context, deviceID string, userID uint64) (model.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byID[deviceID]
	if !ok || d.UserID != userID || d.IsRevoked || !d.ExpiresAt.After(time.Now().UTC()) {
		return model.Device{}, repository.ErrNotFound
	}
	return d, nil
}

func (f *fakeDevices) Rotate(_ context.Context, deviceID, oldHash, newHash string, newExpiry time.Time, ip, ua *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byID[deviceID]
	if !ok || d.IsRevoked || d.RefreshTokenHash != oldHash {
		return false, nil
	}
	d.RefreshTokenHash = newHash
	d.ExpiresAt = newExpiry
	if ip != nil {
		d.IPAddress = ip
	}
	if ua != nil {
		d.UserAgent = ua
	}
	f.byID[deviceID] = d
	return true, nil
}

func (f *fakeDevices) Revoke(_ context.Context, userID uint64, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byID[deviceID]
	if !ok || d.UserID != userID {
		return nil
	}
	d.IsRevoked = true
	f.byID[deviceID] = d
	return nil
}

func (f *fakeDevices) get(deviceID string) (model.Device, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byID[deviceID]
	return d, ok
}

type fakeResets struct {
	mu     sync.Mutex
	byUser map[uint64]model.PasswordResetToken
}

func newFakeResets() *fakeResets {
	return &fakeResets{byUser: map[uint64]model.PasswordResetToken{}}
}

func (f *fakeResets) Replace(_ context.Context, userID uint64, tokenHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byUser[userID] = model.PasswordResetToken{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	return nil
}

func (f *fakeResets) ListLive(_ context.Context) ([]model.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PasswordResetToken
	now := time.Now().UTC()
	for _, t := range f.byUser {
		if t.ExpiresAt.After(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeResets) DeleteForUser(_ context.Context, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byUser, userID)
	return nil
}

// ----- harness -----

type harness struct {
	svc     *Service
	users   *fakeUsers
	devices *fakeDevices
	resets  *fakeResets
}

func testConfig() config.Config {
	return config.Config{
		Env:            "test",
		AccessSecret:   "access-secret-for-tests",
		RefreshSecret:  "refresh-secret-for-tests",
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		ResetTTLMin:    60,
		BcryptCost:     4, // bcrypt.MinCost keeps the suite fast
	}
}

func newHarness() *harness {
	users := newFakeUsers()
	devices := newFakeDevices()
	resets := newFakeResets()
	return &harness{
		svc:     NewService(testConfig(), users, devices, resets, audit.NopSink{}),
		users:   users,
		devices: devices,
		resets:  resets,
	}
}

// ----- tests -----

func TestRegisterThenLogin(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	creds, err := h.svc.Register(ctx, "alice@example.com", "s3cret", nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, creds.AccessToken.Token)
	assert.NotEmpty(t, creds.RefreshToken.Token)
	assert.NotEmpty(t, creds.DeviceID)

	// The refresh token must decode to the device row's id.
	claims, ok := utils.VerifyRefreshToken(testConfig().RefreshSecret, creds.RefreshToken.Token)
	require.True(t, ok)
	assert.Equal(t, creds.DeviceID, claims.DeviceID)

	again, err := h.svc.Login(ctx, "alice@example.com", "s3cret", nil, nil)
	require.NoError(t, err)
	// Multi-device: the second login opens a new session, the first stays live.
	assert.NotEqual(t, creds.DeviceID, again.DeviceID)
	_, err = h.devices.FindActive(ctx, creds.DeviceID, creds.User.ID)
	assert.NoError(t, err)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.Register(ctx, "alice@example.com", "s3cret", nil, nil)
	require.NoError(t, err)
	_, err = h.svc.Register(ctx, "alice@example.com", "other", nil, nil)
	assert.ErrorIs(t, err, repository.ErrEmailExists)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.Register(ctx, "alice@example.com", "s3cret", nil, nil)
	require.NoError(t, err)

	_, unknownErr := h.svc.Login(ctx, "nobody@example.com", "whatever", nil, nil)
	_, wrongPwErr := h.svc.Login(ctx, "alice@example.com", "wrong", nil, nil)
	assert.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	assert.ErrorIs(t, wrongPwErr, ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongPwErr.Error())
}

func TestLoginBanned(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	creds, err := h.svc.Register(ctx, "alice@example.com", "s3cret", nil, nil)
	require.NoError(t, err)
	h.users.setStatus(creds.User.ID, model.StatusBanned)

	_, err = h.svc.Login(ctx, "alice@example.com", "s3cret", nil, nil)
	assert.ErrorIs(t, err, ErrAccountBanned)
}

func TestRefreshRotatesAndPreservesDeviceID(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	creds, err := h.svc.Register(ctx, "alice@example.com", "s3cret", nil, nil)
	require.NoError(t, err)

	rotated, err := h.svc.Refresh(ctx, creds.RefreshToken.Token, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, creds.DeviceID, rotated.DeviceID)
	assert.NotEqual(t, creds.RefreshToken.Token, rotated.RefreshToken.Token)

	d, ok := h.devices.get(creds.DeviceID)
	require.True(t, ok)
	assert.Equal(t, utils.HashTokenRaw(rotated.RefreshToken.Token), d.RefreshTokenHash)
}

func TestRefreshReplayRevokesSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	creds, err := h.svc.Register(ctx, "alice@example.com", "s3cret", nil, nil)
	require.NoError(t, err)

	rotated, err := h.svc.Refresh(ctx, creds.RefreshToken.Token, nil, nil)
	require.NoError(t, err)

	// Replaying the superseded token is theft detection: the session dies.
	_, err = h.svc.Refresh(ctx, creds.RefreshToken.Token, nil, nil)
	assert.ErrorIs(t, err, ErrTokenReuse)

	d, ok := h.devices.get(creds.DeviceID)
	require.True(t, ok)
	assert.True(t, d.IsRevoked)

	// The revocation is permanent: even the latest token is now dead.
	_, err = h.svc.Refresh(ctx, rotated.RefreshToken.Token, nil, nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRefreshBannedUserRevokes(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	creds, err := h.svc.Register(ctx, "alice@example.com", "s3cret", nil, nil)
	require.NoError(t, err)
	h.users.setStatus(creds.User.ID, model.StatusBanned)

	_, err = h.svc.Refresh(ctx, creds.RefreshToken.Token, nil, nil)
	assert.ErrorIs(t, err, ErrUserInvalid)

	d, ok := h.devices.get(creds.DeviceID)
	require.True(t, ok)
	assert.True(t, d.IsRevoked)
}

func TestRefreshGarbageToken(t *testing.T) {
	h := newHarness()
	_, err := h.svc.Refresh(context.Background(), "not-a-jwt", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogoutIsIdempotent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	creds, err := h.svc.Register(ctx, "alice@example.com", "s3cret", nil, nil)
	require.NoError(t, err)

	require.NoError(t, h.svc.Logout(ctx, creds.User.ID, creds.DeviceID, nil))
	require.NoError(t, h.svc.Logout(ctx, creds.User.ID, creds.DeviceID, nil))

	_, err = h.svc.Refresh(ctx, creds.RefreshToken.Token, nil, nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.Register(ctx, "alice@example.com", "s3cret", nil, nil)
	require.NoError(t, err)

	// Unknown email: silent success, nothing issued.
	token, err := h.svc.IssuePasswordReset(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, token)

	first, err := h.svc.IssuePasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// Issuing again invalidates the first token: one live token per user.
	second, err := h.svc.IssuePasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)
	ok, err := h.svc.ConsumeResetToken(ctx, first, "newpass")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.svc.ConsumeResetToken(ctx, second, "newpass")
	require.NoError(t, err)
	require.True(t, ok)

	// The token is single-use.
	ok, err = h.svc.ConsumeResetToken(ctx, second, "again")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.svc.Login(ctx, "alice@example.com", "s3cret", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = h.svc.Login(ctx, "alice@example.com", "newpass", nil, nil)
	assert.NoError(t, err)
}

func TestUpdatePassword(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	creds, err := h.svc.Register(ctx, "alice@example.com", "s3cret", nil, nil)
	require.NoError(t, err)

	err = h.svc.UpdatePassword(ctx, creds.User.ID, "wrong", "newpass", nil)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, h.svc.UpdatePassword(ctx, creds.User.ID, "s3cret", "newpass", nil))
	_, err = h.svc.Login(ctx, "alice@example.com", "newpass", nil, nil)
	assert.NoError(t, err)
}
