package middleware

// identity.go provides helpers shared across middleware files.  The rate
// limiter keys buckets by user where possible and falls back to "guest"
// for unauthenticated requests.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// identityKey returns a stable identifier for the requester: the
// authenticated user id when present, "guest" otherwise.
func identityKey(c echo.Context) string {
	if uid := UserID(c); uid != 0 {
		return strconv.FormatUint(uid, 10)
	}
	return "guest"
}
