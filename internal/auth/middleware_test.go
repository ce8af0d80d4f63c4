package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/mobistudy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUserFetcher struct {
	GetByKeyFunc func(ctx context.Context, key string) (*models.User, error)
}

func (m *mockUserFetcher) GetByKey(ctx context.Context, key string) (*models.User, error) {
	return m.GetByKeyFunc(ctx, key)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func callerEcho(t *testing.T, got **models.Caller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = GetCallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	tm := newTestTokenManager()
	users := &mockUserFetcher{GetByKeyFunc: func(ctx context.Context, key string) (*models.User, error) {
		return &models.User{Key: key, Email: "a@b.com", Role: models.RoleAdmin}, nil
	}}

	token, err := tm.GenerateAccessToken(&models.User{Key: "u1", Email: "a@b.com", Role: models.RoleParticipant})
	require.NoError(t, err)

	var caller *models.Caller
	handler := AuthMiddleware(tm, users, discardLogger())(callerEcho(t, &caller))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, caller)
	assert.Equal(t, "u1", caller.UserKey)
	// role comes from the stored user, not the token
	assert.Equal(t, models.RoleAdmin, caller.Role)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tm := newTestTokenManager()
	token, err := tm.GenerateAccessToken(&models.User{Key: "gone", Role: models.RoleParticipant})
	require.NoError(t, err)

	users := &mockUserFetcher{GetByKeyFunc: func(ctx context.Context, key string) (*models.User, error) {
		return nil, models.ErrNotFound
	}}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer abc.def.ghi"},
		{"deleted user", "Bearer " + token},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := AuthMiddleware(tm, users, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.False(t, called)
		})
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := RequireRole(models.RoleAdmin)(ok)

	tests := []struct {
		name   string
		caller *models.Caller
		want   int
	}{
		{"admin", &models.Caller{UserKey: "a", Role: models.RoleAdmin}, http.StatusOK},
		{"researcher", &models.Caller{UserKey: "r", Role: models.RoleResearcher}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.caller != nil {
				req = req.WithContext(WithCaller(req.Context(), tt.caller))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
