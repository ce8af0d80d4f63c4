package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/BradenHooton/mobistudy/internal/auth"
	"github.com/BradenHooton/mobistudy/internal/models"
	pkgauth "github.com/BradenHooton/mobistudy/pkg/auth"
	pkglogger "github.com/BradenHooton/mobistudy/pkg/logger"
)

// Authenticator verifies login credentials. Implementations return
// models.ErrUnauthorized for bad credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// UserByEmailFetcher is the lookup needed by LocalAuthenticator
type UserByEmailFetcher interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// LocalAuthenticator checks an email and password against the stored bcrypt hash
type LocalAuthenticator struct {
	users  UserByEmailFetcher
	timing *auth.TimingDelay
	logger *slog.Logger
}

func NewLocalAuthenticator(users UserByEmailFetcher, timing *auth.TimingDelay, logger *slog.Logger) *LocalAuthenticator {
	return &LocalAuthenticator{users: users, timing: timing, logger: logger}
}

func (a *LocalAuthenticator) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	start := time.Now()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		a.timing.WaitFrom(ctx, start)
		return nil, models.ErrUnauthorized
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			a.logger.InfoContext(ctx, "login failed: invalid credentials")
			a.timing.WaitFrom(ctx, start)
			return nil, models.ErrUnauthorized
		}
		a.logger.ErrorContext(ctx, "failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.HashedPassword, password); err != nil {
		a.logger.InfoContext(ctx, "login failed: invalid credentials", slog.String("user_key", user.Key))
		a.timing.WaitFrom(ctx, start)
		return nil, models.ErrUnauthorized
	}

	return user, nil
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	Key   string `json:"_key"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Token string `json:"token"`
}

// AuthService handles login and password reset
type AuthService struct {
	authenticator Authenticator
	users         UserRepository
	tm            *auth.TokenManager
	mailer        EmailSender
	composer      *EmailComposer
	audit         Auditor
	timing        *auth.TimingDelay
	logger        *slog.Logger
}

func NewAuthService(
	authenticator Authenticator,
	users UserRepository,
	tm *auth.TokenManager,
	mailer EmailSender,
	composer *EmailComposer,
	audit Auditor,
	timing *auth.TimingDelay,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		users:         users,
		tm:            tm,
		mailer:        mailer,
		composer:      composer,
		audit:         audit,
		timing:        timing,
		logger:        logger,
	}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	user, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token, err := s.tm.GenerateAccessToken(user)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_key", user.Key))
	return &LoginResponse{Key: user.Key, Email: user.Email, Role: user.Role, Token: token}, nil
}

// SendResetPasswordEmail mails a reset link if the email is registered.
// It never reports whether the email exists, and its duration is padded so
// that the existence check cannot be timed. baseURL is scheme://host.
func (s *AuthService) SendResetPasswordEmail(ctx context.Context, email, baseURL string) {
	start := time.Now()
	defer s.timing.WaitFrom(ctx, start)

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
		} else {
			s.logger.ErrorContext(ctx, "failed to look up user for password reset", slog.Any("error", err))
		}
		return
	}

	token, err := s.tm.GenerateResetToken(user.Email)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate reset token", slog.Any("error", err))
		return
	}

	link := fmt.Sprintf("%s/resetPassword?email=%s&token=%s",
		strings.TrimRight(baseURL, "/"), url.QueryEscape(user.Email), url.QueryEscape(token))

	em, err := s.composer.ResetPassword(link, token)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to compose reset email", slog.Any("error", err))
		return
	}

	if err := s.mailer.SendEmail(ctx, user.Email, em.Title, em.Content); err != nil {
		s.logger.ErrorContext(ctx, "failed to send reset email", slog.String("user_key", user.Key), slog.Any("error", err))
		return
	}

	s.logger.InfoContext(ctx, "password reset email sent", slog.String("user_key", user.Key))
}

// ResetPassword sets a new password for the email embedded in token.
// Returns models.ErrTokenExpired or models.ErrTokenInvalid for bad tokens and
// models.ErrConflict when the email is no longer registered.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	email, err := s.tm.ValidateResetToken(token)
	if err != nil {
		s.logger.InfoContext(ctx, "password reset rejected", slog.Any("error", err))
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset for unregistered email",
				slog.String("email", pkglogger.SanitizedEmail(email)))
			return models.ErrConflict
		}
		s.logger.ErrorContext(ctx, "failed to look up user for password reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	hashed, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.users.UpdatePassword(ctx, user.Key, hashed); err != nil {
		s.logger.ErrorContext(ctx, "failed to update password", slog.String("user_key", user.Key), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.InfoContext(ctx, "password reset", slog.String("user_key", user.Key))
	s.audit.Log(ctx, AuditEntry{
		Event:   models.AuditEventPasswordReset,
		UserKey: user.Key,
		Message: "User has reset the password",
		RefData: models.AuditRefUsers,
		RefKey:  user.Key,
	})
	return nil
}
