package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/team-task-board/internal/config"
)

func cacheCtx(target string, routePattern string, userID uint64) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath(routePattern)
	if userID != 0 {
		c.Set(CtxUserID, userID)
	}
	return c
}

func TestCacheKeyIsStablePerUserAndPath(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}

	a := cacheKeyFrom(cfg, cacheCtx("/v1/workspaces/1/projects", "/v1/workspaces/:id/projects", 7))
	b := cacheKeyFrom(cfg, cacheCtx("/v1/workspaces/1/projects", "/v1/workspaces/:id/projects", 7))
	assert.Equal(t, a, b)
}

func TestCacheKeySeparatesUsers(t *testing.T) {
	// Board responses are membership-gated; one user's cached response must
	// never be keyed where another user's request can find it.
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}

	alice := cacheKeyFrom(cfg, cacheCtx("/v1/workspaces/1/projects", "/v1/workspaces/:id/projects", 1))
	mallory := cacheKeyFrom(cfg, cacheCtx("/v1/workspaces/1/projects", "/v1/workspaces/:id/projects", 2))
	guest := cacheKeyFrom(cfg, cacheCtx("/v1/workspaces/1/projects", "/v1/workspaces/:id/projects", 0))

	assert.NotEqual(t, alice, mallory)
	assert.NotEqual(t, alice, guest)
	assert.NotEqual(t, mallory, guest)
}

func TestCacheKeySeparatesConcretePaths(t *testing.T) {
	// Two requests sharing one route pattern but different path params are
	// different resources and must not share a cache slot.
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	pattern := "/v1/workspaces/:id/projects"

	ws1 := cacheKeyFrom(cfg, cacheCtx("/v1/workspaces/1/projects", pattern, 7))
	ws2 := cacheKeyFrom(cfg, cacheCtx("/v1/workspaces/2/projects", pattern, 7))
	assert.NotEqual(t, ws1, ws2)
}

func TestCacheKeySeparatesUsersUnderEveryStrategy(t *testing.T) {
	for _, strategy := range []string{"route", "method_route", "method_route_query", "route_query"} {
		cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: strategy}
		alice := cacheKeyFrom(cfg, cacheCtx("/v1/workspaces", "/v1/workspaces", 1))
		bob := cacheKeyFrom(cfg, cacheCtx("/v1/workspaces", "/v1/workspaces", 2))
		assert.NotEqual(t, alice, bob, "strategy %q", strategy)
	}
}

func TestCacheKeySeparatesQueries(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	plain := cacheKeyFrom(cfg, cacheCtx("/v1/workspaces", "/v1/workspaces", 7))
	filtered := cacheKeyFrom(cfg, cacheCtx("/v1/workspaces?page=2", "/v1/workspaces", 7))
	assert.NotEqual(t, plain, filtered)
}
