package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/mobistudy/internal/models"
	"github.com/BradenHooton/mobistudy/internal/services"
	pkghttp "github.com/BradenHooton/mobistudy/pkg/http"
)

// AuthServiceInterface defines the interface for login and password recovery
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*services.LoginResponse, error)
	SendResetPasswordEmail(ctx context.Context, email, baseURL string)
	ResetPassword(ctx context.Context, token, password string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service   AuthServiceInterface
	publicURL string
}

// NewAuthHandler builds the handler. publicURL is the base of links sent by
// email; when empty the request's own host is used, which is only safe in
// development.
func NewAuthHandler(service AuthServiceInterface, publicURL string) *AuthHandler {
	return &AuthHandler{service: service, publicURL: strings.TrimRight(publicURL, "/")}
}

// Request DTOs

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SendResetPasswordEmailRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} services.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeRequest(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Authentication failed")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// SendResetPasswordEmail always answers 200 so that registered emails
// cannot be discovered
// @Router /sendResetPasswordEmail [post]
func (h *AuthHandler) SendResetPasswordEmail(w http.ResponseWriter, r *http.Request) {
	var req SendResetPasswordEmailRequest
	if err := decodeRequest(r, &req); err == nil && strings.TrimSpace(req.Email) != "" {
		h.service.SendResetPasswordEmail(r.Context(), req.Email, h.baseURL(r))
	}
	pkghttp.WriteOK(w)
}

// ResetPassword sets a new password from a reset token
// @Accept json
// @Param request body ResetPasswordRequest true "Reset request"
// @Success 200
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /resetPassword [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeRequest(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "This email is not registered")
			return
		}
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w)
}

// baseURL returns the configured public URL. Without one it falls back to
// the connection's own scheme and Host; forwarded headers are never read.
func (h *AuthHandler) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
