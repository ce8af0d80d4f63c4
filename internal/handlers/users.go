package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/BradenHooton/mobistudy/internal/auth"
	"github.com/BradenHooton/mobistudy/internal/models"
	pkghttp "github.com/BradenHooton/mobistudy/pkg/http"
	"github.com/go-chi/chi/v5"
)

// UserService defines the interface for user business logic
type UserService interface {
	Register(ctx context.Context, email, password, role string) (*models.User, error)
	GetUser(ctx context.Context, key string) (*models.User, error)
	ListUsers(ctx context.Context, caller *models.Caller, studyKey string) ([]*models.User, error)
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	service UserService
	policy  Authorizer
}

func NewUserHandler(service UserService, policy Authorizer) *UserHandler {
	return &UserHandler{service: service, policy: policy}
}

// CreateUserRequest represents the request body for registration
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=researcher participant"`
}

// CreateUser registers a new account. Admin accounts cannot be self-registered.
//
// @Summary Register a user
// @Accept json
// @Param request body CreateUserRequest true "Create user request"
// @Produce json
// @Success 200 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /users [post]
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	err := decodeRequest(r, &req)

	// the role is checked before anything else in the body
	if req.Role == models.RoleAdmin {
		pkghttp.WriteForbidden(w, "Admin accounts cannot be registered")
		return
	}
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "This email is already registered")
			return
		}
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// ListUsers returns the users visible to the caller. Participants get their
// own record as a single object.
//
// @Param studyKey query string false "Only participants of this study"
// @Router /users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	studyKey := r.URL.Query().Get("studyKey")

	caller, ok := authorize(w, r, h.policy, auth.ActionUserList, auth.Resource{StudyKey: studyKey})
	if !ok {
		return
	}

	if caller.IsParticipant() {
		user, err := h.service.GetUser(r.Context(), caller.UserKey)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, user)
		return
	}

	users, err := h.service.ListUsers(r.Context(), caller, studyKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, users)
}

// GetUser retrieves a user by key
//
// @Param userKey path string true "User key"
// @Success 200 {object} models.User
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{userKey} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userKey := chi.URLParam(r, "userKey")

	if _, ok := authorize(w, r, h.policy, auth.ActionUserRead, auth.Resource{UserKey: userKey}); !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), userKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, user)
}
