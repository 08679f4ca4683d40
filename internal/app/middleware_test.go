package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quipu-erp/quipu-erp/internal/shared"
)

func TestIdentityMiddlewareRejectsMissingCompany(t *testing.T) {
	handler := IdentityMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Company-ID", "-3")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentityMiddlewareResolvesIdentity(t *testing.T) {
	var got shared.Identity
	handler := IdentityMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := shared.IdentityFromContext(r.Context())
		require.True(t, ok)
		got = id
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "7")
	req.Header.Set("X-Company-ID", "3")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, int64(7), got.UserID)
	require.Equal(t, int64(3), got.CompanyID)
}

func TestRouterHealthz(t *testing.T) {
	router := NewRouter(RouterParams{Logger: NewLogger(nil), Config: &Config{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouterAPIRequiresIdentity(t *testing.T) {
	router := NewRouter(RouterParams{Logger: NewLogger(nil), Config: &Config{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}