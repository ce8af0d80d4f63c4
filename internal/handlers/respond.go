package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/BradenHooton/mobistudy/internal/auth"
	"github.com/BradenHooton/mobistudy/internal/models"
	pkghttp "github.com/BradenHooton/mobistudy/pkg/http"
)

// Authorizer decides whether a caller may perform an action
type Authorizer interface {
	Authorize(ctx context.Context, caller *models.Caller, action auth.Action, res auth.Resource) error
}

// authorize resolves the caller and checks action against the policy. On
// failure the error response is already written and ok is false.
func authorize(w http.ResponseWriter, r *http.Request, policy Authorizer, action auth.Action, res auth.Resource) (caller *models.Caller, ok bool) {
	caller = auth.GetCallerFromContext(r.Context())
	if caller == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return nil, false
	}

	if err := policy.Authorize(r.Context(), caller, action, res); err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return caller, true
}

// writeServiceError maps service and policy errors to HTTP responses.
// Internal details never reach the client.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case auth.IsTokenError(err):
		pkghttp.WriteBadRequest(w, "Invalid or expired token")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication required")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Forbidden: you cannot access this resource")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
