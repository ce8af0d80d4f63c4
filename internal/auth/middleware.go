package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/BradenHooton/mobistudy/internal/models"
	pkghttp "github.com/BradenHooton/mobistudy/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// CallerContextKey is the key for storing the authenticated caller in context
	CallerContextKey contextKey = "caller"
)

// UserFetcher loads the user behind a token
type UserFetcher interface {
	GetByKey(ctx context.Context, key string) (*models.User, error)
}

// AuthMiddleware validates the bearer token, reloads the user so a deleted
// account or changed role takes effect immediately, and injects the caller
func AuthMiddleware(tm *TokenManager, users UserFetcher, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				pkghttp.WriteUnauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := tm.ValidateAccessToken(parts[1])
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			user, err := users.GetByKey(r.Context(), claims.UserKey)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteUnauthorized(w, "invalid or expired token")
					return
				}
				logger.Error("failed to load token user", slog.String("user_key", claims.UserKey), slog.String("error", err.Error()))
				pkghttp.WriteInternalError(w, "internal server error")
				return
			}

			caller := &models.Caller{UserKey: user.Key, Email: user.Email, Role: user.Role}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// RequireRole rejects callers whose role is not listed. Must run after AuthMiddleware.
func RequireRole(roles ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := GetCallerFromContext(r.Context())
			if caller == nil {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}
			if !slices.Contains(roles, caller.Role) {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithCaller(ctx context.Context, caller *models.Caller) context.Context {
	return context.WithValue(ctx, CallerContextKey, caller)
}

// GetCallerFromContext returns the authenticated caller, or nil
func GetCallerFromContext(ctx context.Context) *models.Caller {
	caller, ok := ctx.Value(CallerContextKey).(*models.Caller)
	if !ok {
		return nil
	}
	return caller
}
