package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BradenHooton/mobistudy/internal/models"
)

// StudyRepository defines the interface for study data access
type StudyRepository interface {
	Create(ctx context.Context, study *models.Study) (*models.Study, error)
	GetByKey(ctx context.Context, key string) (*models.Study, error)
	List(ctx context.Context) ([]*models.Study, error)
	ListByResearcher(ctx context.Context, researcherKey string) ([]*models.Study, error)
	ListByParticipant(ctx context.Context, userKey string) ([]*models.Study, error)
}

type StudyService struct {
	repo   StudyRepository
	teams  TeamRepository
	audit  Auditor
	logger *slog.Logger
}

func NewStudyService(repo StudyRepository, teams TeamRepository, audit Auditor, logger *slog.Logger) *StudyService {
	return &StudyService{repo: repo, teams: teams, audit: audit, logger: logger}
}

func (s *StudyService) Create(ctx context.Context, caller *models.Caller, study *models.Study) (*models.Study, error) {
	if _, err := s.teams.GetByKey(ctx, study.TeamKey); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrBadRequest
		}
		s.logger.ErrorContext(ctx, "failed to get team", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	study.Key = ""
	created, err := s.repo.Create(ctx, study)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create study", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Log(ctx, AuditEntry{
		Event:    models.AuditEventStudyCreated,
		UserKey:  caller.UserKey,
		StudyKey: created.Key,
		Message:  "Study " + created.Generalities.Title + " created",
		RefData:  models.AuditRefStudies,
		RefKey:   created.Key,
	})
	return created, nil
}

func (s *StudyService) Get(ctx context.Context, key string) (*models.Study, error) {
	study, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.ErrorContext(ctx, "failed to get study", slog.String("study_key", key), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return study, nil
}

// List returns all studies for admins, the team studies for researchers and
// the studies a participant is enrolled in
func (s *StudyService) List(ctx context.Context, caller *models.Caller) ([]*models.Study, error) {
	var (
		studies []*models.Study
		err     error
	)

	switch {
	case caller.IsAdmin():
		studies, err = s.repo.List(ctx)
	case caller.IsResearcher():
		studies, err = s.repo.ListByResearcher(ctx, caller.UserKey)
	default:
		studies, err = s.repo.ListByParticipant(ctx, caller.UserKey)
	}

	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list studies", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return studies, nil
}
