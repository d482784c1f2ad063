package utils

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/team-task-board/internal/model"
)

// AccessClaims is the payload of a short-lived access token: the user's
// identity plus a status snapshot taken at mint time.  The snapshot is not
// re-checked against the database on every request; login and refresh
// re-derive it.
type AccessClaims struct {
	UserID uint64                 `json:"uid"`
	Email  string                 `json:"email"`
	Status model.UserGlobalStatus `json:"status"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a long-lived refresh token.  DeviceID
// binds the token to one user_devices row; it is stable across rotations.
type RefreshClaims struct {
	UserID   uint64 `json:"uid"`
	DeviceID string `json:"did"`
	jwt.RegisteredClaims
}

// AccessToken pairs a signed access JWT with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken pairs a signed refresh JWT with its expiry.  Only the
// SHA-256 hash of Token is ever persisted.
type RefreshToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken signs an HS256 access token carrying the user's id, email
// and current global status.  TTL is in minutes.
func NewAccessToken(secret string, userID uint64, email string, status model.UserGlobalStatus, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := AccessClaims{
		UserID: userID,
		Email:  email,
		Status: status,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken signs an HS256 refresh token bound to one device id.
// TTL is in days.  Access and refresh tokens use distinct secrets so that
// compromise of one cannot forge the other.
func NewRefreshToken(secret string, userID uint64, deviceID string, ttlDays int) (RefreshToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlDays) * 24 * time.Hour)
	claims := RefreshClaims{
		UserID:   userID,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Token: signed, Exp: exp}, nil
}

// VerifyAccessToken parses and validates an access token.  It returns
// (nil, false) on any failure: bad signature, wrong algorithm, expiry.
// Callers decide whether a "no" answer is an error.
func VerifyAccessToken(secret, token string) (*AccessClaims, bool) {
	claims := &AccessClaims{}
	tok, err := jwt.ParseWithClaims(token, claims, hmacKeyFunc(secret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil, false
	}
	return claims, true
}

// VerifyRefreshToken parses and validates a refresh token under the refresh
// secret.  Same (claims, ok) contract as VerifyAccessToken.
func VerifyRefreshToken(secret, token string) (*RefreshClaims, bool) {
	claims := &RefreshClaims{}
	tok, err := jwt.ParseWithClaims(token, claims, hmacKeyFunc(secret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil, false
	}
	return claims, true
}

func hmacKeyFunc(secret string) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}
}

// HashTokenRaw returns the SHA-256 hex digest of a raw token.  The database
// only ever holds this digest, so a leaked user_devices table cannot be
// replayed.
func HashTokenRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CompareTokenHash compares a presented raw token against a stored digest
// in constant time.
func CompareTokenHash(raw, storedHex string) bool {
	sum := sha256.Sum256([]byte(raw))
	return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(storedHex)) == 1
}
