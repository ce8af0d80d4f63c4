package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BradenHooton/mobistudy/internal/models"
	"github.com/BradenHooton/mobistudy/pkg/auth"
	"github.com/BradenHooton/mobistudy/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByKey(ctx context.Context, key string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, role string) ([]*models.User, error)
	ListByStudy(ctx context.Context, studyKey string) ([]*models.User, error)
	ListByResearcher(ctx context.Context, researcherKey string) ([]*models.User, error)
	UpdatePassword(ctx context.Context, key, hashedPassword string) error
	Delete(ctx context.Context, key string) error
}

// UserService handles user business logic
type UserService struct {
	repo   UserRepository
	audit  Auditor
	logger *slog.Logger
}

func NewUserService(repo UserRepository, audit Auditor, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		audit:  audit,
		logger: logger,
	}
}

// Register creates an account. Admin accounts cannot be self-registered.
func (s *UserService) Register(ctx context.Context, email, password, role string) (*models.User, error) {
	if role == models.RoleAdmin {
		s.logger.WarnContext(ctx, "attempt to register an admin account")
		return nil, models.ErrForbidden
	}

	email = strings.ToLower(strings.TrimSpace(email))

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		s.logger.InfoContext(ctx, "registration rejected, email already in use",
			slog.String("email", logger.SanitizedEmail(email)))
		return nil, models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.ErrorContext(ctx, "failed to check existing user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.repo.Create(ctx, &models.User{
		Email:          email,
		HashedPassword: hashedPassword,
		Role:           role,
	})
	if err != nil {
		// concurrent registration with the same email
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.InfoContext(ctx, "user created", slog.String("user_key", user.Key), slog.String("role", user.Role))
	s.audit.Log(ctx, AuditEntry{
		Event:   models.AuditEventUserCreated,
		UserKey: user.Key,
		Message: "New user with email " + logger.SanitizedEmail(user.Email) + " is created",
		RefData: models.AuditRefUsers,
		RefKey:  user.Key,
	})

	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, key string) (*models.User, error) {
	user, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.ErrorContext(ctx, "failed to get user", slog.String("user_key", key), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

// ListUsers returns the users visible to caller. Admins see everyone,
// researchers see the participants of their studies. studyKey narrows the
// result to the participants of one study.
func (s *UserService) ListUsers(ctx context.Context, caller *models.Caller, studyKey string) ([]*models.User, error) {
	var (
		users []*models.User
		err   error
	)

	switch {
	case studyKey != "" && (caller.IsAdmin() || caller.IsResearcher()):
		users, err = s.repo.ListByStudy(ctx, studyKey)
	case caller.IsAdmin():
		users, err = s.repo.List(ctx, "")
	case caller.IsResearcher():
		users, err = s.repo.ListByResearcher(ctx, caller.UserKey)
	default:
		return nil, models.ErrForbidden
	}

	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return users, nil
}
