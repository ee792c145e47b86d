package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth_AcceptsHashedKey(t *testing.T) {
	hash, err := HashKey("sekret-admin-key")
	require.NoError(t, err)

	auth := NewAPIKeyAuth("X-API-Key", []string{hash})
	require.True(t, auth.Enabled())
	handler := auth.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-API-Key", "sekret-admin-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_RejectsWrongKey(t *testing.T) {
	hash, err := HashKey("sekret-admin-key")
	require.NoError(t, err)

	auth := NewAPIKeyAuth("X-API-Key", []string{hash})
	handler := auth.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-API-Key", "guess")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyAuth_RejectsMissingKey(t *testing.T) {
	hash, err := HashKey("sekret-admin-key")
	require.NoError(t, err)

	auth := NewAPIKeyAuth("X-API-Key", []string{hash})
	handler := auth.Middleware(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyAuth_BearerToken(t *testing.T) {
	hash, err := HashKey("sekret-admin-key")
	require.NoError(t, err)

	auth := NewAPIKeyAuth("X-API-Key", []string{hash})
	handler := auth.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer sekret-admin-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_DropsPlaintextEntries(t *testing.T) {
	// A plaintext key in configuration is a mistake, not a valid credential.
	auth := NewAPIKeyAuth("X-API-Key", []string{"plaintext-key"})
	assert.False(t, auth.Enabled())
	assert.False(t, auth.IsValid("plaintext-key"))
}
