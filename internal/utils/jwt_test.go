package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/team-task-board/internal/model"
)

const (
	testAccessSecret  = "access-secret-for-tests"
	testRefreshSecret = "refresh-secret-for-tests"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken(testAccessSecret, 42, "alice@example.com", model.StatusActive, 15)
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), tok.Exp, 5*time.Second)

	claims, ok := VerifyAccessToken(testAccessSecret, tok.Token)
	require.True(t, ok)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, model.StatusActive, claims.Status)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	tok, err := NewRefreshToken(testRefreshSecret, 42, "device-uuid-1", 7)
	require.NoError(t, err)

	claims, ok := VerifyRefreshToken(testRefreshSecret, tok.Token)
	require.True(t, ok)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "device-uuid-1", claims.DeviceID)
}

func TestExpiredTokensRejected(t *testing.T) {
	access, err := NewAccessToken(testAccessSecret, 1, "a@b.c", model.StatusActive, -1)
	require.NoError(t, err)
	_, ok := VerifyAccessToken(testAccessSecret, access.Token)
	assert.False(t, ok)

	refresh, err := NewRefreshToken(testRefreshSecret, 1, "dev", -1)
	require.NoError(t, err)
	_, ok = VerifyRefreshToken(testRefreshSecret, refresh.Token)
	assert.False(t, ok)
}

func TestTamperedTokenRejected(t *testing.T) {
	tok, err := NewAccessToken(testAccessSecret, 7, "a@b.c", model.StatusActive, 15)
	require.NoError(t, err)

	raw := tok.Token
	tampered := raw[:len(raw)-2] + "xx"
	_, ok := VerifyAccessToken(testAccessSecret, tampered)
	assert.False(t, ok)
}

func TestCrossSecretRejected(t *testing.T) {
	// An access token must not verify under the refresh secret and vice
	// versa; the secrets are required to differ at startup.
	access, err := NewAccessToken(testAccessSecret, 7, "a@b.c", model.StatusActive, 15)
	require.NoError(t, err)
	_, ok := VerifyAccessToken(testRefreshSecret, access.Token)
	assert.False(t, ok)

	refresh, err := NewRefreshToken(testRefreshSecret, 7, "dev", 7)
	require.NoError(t, err)
	_, ok = VerifyRefreshToken(testAccessSecret, refresh.Token)
	assert.False(t, ok)
}

func TestTokenHashCompare(t *testing.T) {
	raw := "some-refresh-jwt"
	stored := HashTokenRaw(raw)
	assert.Len(t, stored, 64)
	assert.True(t, CompareTokenHash(raw, stored))
	assert.False(t, CompareTokenHash("another-token", stored))
	assert.False(t, CompareTokenHash(raw, HashTokenRaw("another-token")))
}
