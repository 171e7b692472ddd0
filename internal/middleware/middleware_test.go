package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/auth"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/model"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func issueToken(t *testing.T, issuer *auth.TokenIssuer, role model.Role) string {
	t.Helper()
	token, err := issuer.Issue(&model.User{ID: "u1", Username: "jperez", Role: role})
	require.NoError(t, err)
	return token
}

func TestAuthenticate(t *testing.T) {
	issuer := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)

	var seen *auth.Claims
	h := Authenticate(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFromContext(r.Context())
	}))

	t.Run("no token passes through", func(t *testing.T) {
		seen = nil
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Nil(t, seen)
	})

	t.Run("valid token attaches claims", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+issueToken(t, issuer, model.RoleConductor))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.NotNil(t, seen)
		assert.Equal(t, "jperez", seen.Username)
		assert.Equal(t, model.RoleConductor, seen.Role)
	})

	t.Run("bad token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), `"ok":false`)
	})
}

func TestRequireAuth(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireAuth(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithClaims(req.Context(), &auth.Claims{UserID: "u1"}))
	rr = httptest.NewRecorder()
	RequireAuth(okHandler).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(model.RoleAdministrativo, model.RoleConductor)(okHandler)

	tests := []struct {
		role model.Role
		want int
	}{
		{model.RoleAdministrativo, http.StatusOK},
		{model.RoleConductor, http.StatusOK},
		{model.RoleAsistencial, http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.role != "" {
			req = req.WithContext(WithClaims(req.Context(), &auth.Claims{UserID: "u1", Role: tt.role}))
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, tt.want, rr.Code, "role %q", tt.role)
	}
}

func TestRateLimitPerIP(t *testing.T) {
	h := PerMinute(2)(okHandler)

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1002"), "ports on the same host share a budget")
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000"))
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(false)(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	rr = httptest.NewRecorder()
	SecurityHeaders(true)(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rr.Header().Get("Strict-Transport-Security"))
	assert.Empty(t, rr.Header().Get("Cache-Control"))
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
}
