package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	reg := newTestRegistry(t)
	router := NewDefaultRouter(reg, nil, Config{APIKey: "sekret"})

	rec := doJSON(t, router, http.MethodGet, "/workers", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareAllowsHealthUnauthenticated(t *testing.T) {
	reg := newTestRegistry(t)
	router := NewDefaultRouter(reg, nil, Config{APIKey: "sekret"})

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	reg := newTestRegistry(t)
	secret := "sekret"
	router := NewDefaultRouter(reg, nil, Config{APIKey: secret})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/workers", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareDisabledWhenNoAPIKey(t *testing.T) {
	reg := newTestRegistry(t)
	router := NewDefaultRouter(reg, nil, Config{})

	rec := doJSON(t, router, http.MethodGet, "/workers", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDMiddlewareGeneratesIDWhenAbsent(t *testing.T) {
	reg := newTestRegistry(t)
	router := NewDefaultRouter(reg, nil, Config{})

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRequestIDMiddlewarePreservesCallerSuppliedID(t *testing.T) {
	reg := newTestRegistry(t)
	router := NewDefaultRouter(reg, nil, Config{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "TEST-fixed-id")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "TEST-fixed-id", rec.Header().Get("X-Request-Id"))
}
