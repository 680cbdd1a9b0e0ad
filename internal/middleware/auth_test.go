package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ukydev/gaadi-fleet/internal/auth"
	"github.com/ukydev/gaadi-fleet/internal/models"
)

func newTestMiddleware(t *testing.T) (*AuthMiddleware, *auth.Service) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	svc, err := auth.NewService()
	require.NoError(t, err)
	return NewAuthMiddleware(svc), svc
}

func testToken(t *testing.T, svc *auth.Service, username string, role models.Role) string {
	t.Helper()
	token, err := svc.GenerateToken(&models.User{
		ID:       primitive.NewObjectID(),
		Username: username,
		Role:     role,
	})
	require.NoError(t, err)
	return token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateMissingHeader(t *testing.T) {
	m, _ := newTestMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	rec := httptest.NewRecorder()

	m.Authenticate(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateSkipsPublicPaths(t *testing.T) {
	m, _ := newTestMiddleware(t)

	for _, path := range []string{"/api/auth/login", "/api/auth/register", "/health"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()

		m.Authenticate(okHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, "path %s should skip auth", path)
	}
}

func TestAuthenticateValidToken(t *testing.T) {
	m, svc := newTestMiddleware(t)

	token := testToken(t, svc, "ravi", models.RoleDriver)

	var got *models.Claims
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetUserFromContext(r.Context())
		require.True(t, ok)
		got = claims
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	m.Authenticate(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "ravi", got.Username)
	assert.Equal(t, models.RoleDriver, got.Role)
}

func TestAuthenticateInvalidToken(t *testing.T) {
	m, _ := newTestMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()

	m.Authenticate(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	m, svc := newTestMiddleware(t)

	tests := []struct {
		name     string
		role     models.Role
		required models.Role
		want     int
	}{
		{"matching role", models.RoleMechanic, models.RoleMechanic, http.StatusOK},
		{"admin passes any check", models.RoleAdmin, models.RoleMechanic, http.StatusOK},
		{"wrong role forbidden", models.RoleDriver, models.RoleMechanic, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := testToken(t, svc, "user", tt.role)

			req := httptest.NewRequest(http.MethodPost, "/api/emergencies/e1/status", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			chain := m.Authenticate(m.RequireRole(tt.required)(okHandler()))
			chain.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireRoleWithoutContext(t *testing.T) {
	m, _ := newTestMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	rec := httptest.NewRecorder()

	m.RequireRole(models.RoleDriver)(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequirePermission(t *testing.T) {
	m, svc := newTestMiddleware(t)

	token := testToken(t, svc, "ravi", models.RoleDriver)

	req := httptest.NewRequest(http.MethodPost, "/api/bookings/b1/accept", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	chain := m.Authenticate(m.RequirePermission("respond_booking")(okHandler()))
	chain.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/emergencies/e1/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	chain = m.Authenticate(m.RequirePermission("update_emergency")(okHandler()))
	chain.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimitMiddleware()
	handler := rl.RateLimit(3, 60)(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// a different client is not affected
	req = httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:9999"
	assert.Equal(t, "192.168.1.5", getClientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.2, 203.0.113.7")
	assert.Equal(t, "198.51.100.2", getClientIP(req))
}
