package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishebot/insight-hub/config"
	"github.com/ishebot/insight-hub/internal/interface/http/handlers"
)

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	cfg.EnableMetrics = false
	if mutate != nil {
		mutate(&cfg)
	}
	return NewServer(cfg, Dependencies{})
}

func TestServer_LivenessAndHeaders(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_RequestIDEchoed(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("X-Request-ID", "front-end-trace-42")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, "front-end-trace-42", rec.Header().Get("X-Request-ID"))
}

func TestServer_AdminRequiresAPIKey(t *testing.T) {
	hash, err := handlers.HashKey("sekrit")
	require.NoError(t, err)

	s := newTestServer(t, func(cfg *Config) {
		cfg.AdminKeyHashes = []string{hash}
	})

	// No key at all.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/import", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong key.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/import", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid key gets past authentication.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/import", nil)
	req.Header.Set("X-API-Key", "sekrit")
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_AdminClosedWithoutConfiguredKeys(t *testing.T) {
	s := newTestServer(t, nil)

	// No keys configured means every admin request is rejected, never
	// allowed through.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/backup", nil)
	req.Header.Set("X-API-Key", "anything")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	s := newTestServer(t, func(cfg *Config) {
		cfg.AllowedOrigins = []string{"https://dashboard.example"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/stats", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dashboard.example", rec.Header().Get("Access-Control-Allow-Origin"))

	// Unlisted origins get no CORS headers.
	req = httptest.NewRequest(http.MethodOptions, "/api/v1/stats", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWriteJSONError_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSONError(rec, http.StatusNotFound, "not_found", "no such student")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_found", resp.Error.Code)
	assert.Equal(t, "no such student", resp.Error.Message)
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	rl := &rateLimiter{
		buckets: make(map[string]*rateBucket),
		limit:   2,
		window:  40 * time.Millisecond,
	}

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))

	// Another client has its own budget.
	assert.True(t, rl.Allow("10.0.0.2"))

	// A new window resets the count.
	time.Sleep(50 * time.Millisecond)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", getClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.3")
	assert.Equal(t, "198.51.100.3", getClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.9:51234"
	assert.Equal(t, "192.0.2.9", getClientIP(req))
}

func TestQueryParamHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?class=7a&page=3&refresh=yes&bad=abc", nil)

	assert.Equal(t, "7a", getQueryParam(req, "class", ""))
	assert.Equal(t, "fallback", getQueryParam(req, "missing", "fallback"))
	assert.Equal(t, 3, getQueryParamInt(req, "page", 1))
	assert.Equal(t, 1, getQueryParamInt(req, "bad", 1))
	assert.True(t, getQueryParamBool(req, "refresh"))
	assert.False(t, getQueryParamBool(req, "missing"))
}

func TestServer_OriginAllowedWildcard(t *testing.T) {
	s := newTestServer(t, func(cfg *Config) {
		cfg.AllowedOrigins = []string{"*"}
	})
	assert.True(t, s.originAllowed("https://anything.example"))
}

func newFeatureTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	cfg.EnableMetrics = false
	return NewServer(cfg, Dependencies{Features: config.LoadFeatureFlags()})
}

func TestServer_InsightsGateClosedByEnv(t *testing.T) {
	t.Setenv("FEATURE_INSIGHTS_SEATING", "false")
	t.Setenv("FEATURE_INSIGHTS_RECOMMENDATIONS", "false")
	t.Setenv("FEATURE_INSIGHTS_CLASS_SUMMARY", "false")

	s := newFeatureTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "insights_disabled", resp.Error.Code)
}

func TestServer_InsightsGateOpenByDefault(t *testing.T) {
	s := newFeatureTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	// The gate lets the request through; with no query handler wired the
	// endpoint then reports itself unconfigured.
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServer_FeatureOverrideFlow(t *testing.T) {
	hash, err := handlers.HashKey("sekrit")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	cfg.EnableMetrics = false
	cfg.AdminKeyHashes = []string{hash}
	s := NewServer(cfg, Dependencies{Features: config.LoadFeatureFlags()})

	do := func(method, target, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, reader)
		req.Header.Set("X-API-Key", "sekrit")
		rec := httptest.NewRecorder()
		s.httpServer.Handler.ServeHTTP(rec, req)
		return rec
	}

	// Switch every insight surface off for one class.
	for _, feature := range []string{
		config.FeatureInsightsSeating,
		config.FeatureInsightsRecommendations,
		config.FeatureInsightsClassSummary,
	} {
		rec := do(http.MethodPost, "/api/v1/admin/features/override",
			`{"class":"7-1","feature":"`+feature+`","enabled":false}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// The overridden class is gated, the rest of the school is not.
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/insights/7-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/insights/7-2", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	// Clearing the overrides reopens the class.
	cleared := do(http.MethodDelete, "/api/v1/admin/features/override/7-1", "")
	require.Equal(t, http.StatusOK, cleared.Code)

	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/insights/7-1", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServer_FeatureOverrideRejectsUnknownFlag(t *testing.T) {
	hash, err := handlers.HashKey("sekrit")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	cfg.EnableMetrics = false
	cfg.AdminKeyHashes = []string{hash}
	s := NewServer(cfg, Dependencies{Features: config.LoadFeatureFlags()})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/features/override",
		strings.NewReader(`{"class":"7-1","feature":"no.such.flag","enabled":true}`))
	req.Header.Set("X-API-Key", "sekrit")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_AdminFeaturesListing(t *testing.T) {
	hash, err := handlers.HashKey("sekrit")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	cfg.EnableMetrics = false
	cfg.AdminKeyHashes = []string{hash}
	s := NewServer(cfg, Dependencies{Features: config.LoadFeatureFlags()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/features", nil)
	req.Header.Set("X-API-Key", "sekrit")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool             `json:"success"`
		Data    []config.Feature `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Data)
}
