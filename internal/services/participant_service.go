package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/mobistudy/internal/models"
)

// ParticipantRepository defines the interface for participant data access
type ParticipantRepository interface {
	Create(ctx context.Context, p *models.Participant) (*models.Participant, error)
	GetByKey(ctx context.Context, key string) (*models.Participant, error)
	GetByUserKey(ctx context.Context, userKey string) (*models.Participant, error)
	List(ctx context.Context, currentStatus string) ([]*models.Participant, error)
	ListByStudy(ctx context.Context, studyKey, currentStatus string) ([]*models.Participant, error)
	ListByTeam(ctx context.Context, teamKey, currentStatus string) ([]*models.Participant, error)
	ListByResearcher(ctx context.Context, researcherKey, currentStatus string) ([]*models.Participant, error)
	UpdateProfile(ctx context.Context, userKey string, patch models.ProfilePatch) (*models.Participant, error)
	UpdateStudies(ctx context.Context, key string, studies []models.StudyStatus) (*models.Participant, error)
	Delete(ctx context.Context, key string) error
	StatusStats(ctx context.Context, studyKey string) ([]models.StatusCount, error)
}

// DataRepository removes one category of collected data
type DataRepository interface {
	Category() models.DataCategory
	DeleteByUserKey(ctx context.Context, userKey string) (int64, error)
}

// Transactor runs fn inside a database transaction carried by ctx
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ParticipantFilter narrows a participant listing. Empty fields are ignored.
type ParticipantFilter struct {
	TeamKey       string
	StudyKey      string
	CurrentStatus string
}

// ParticipantService handles participant profiles, study enrollment status
// and participant removal
type ParticipantService struct {
	participants ParticipantRepository
	users        UserRepository
	data         []DataRepository
	auditLogs    AuditLogRepository
	tx           Transactor
	mailer       EmailSender
	composer     *EmailComposer
	audit        Auditor
	logger       *slog.Logger
}

// NewParticipantService wires the service. data lists the collected-data
// repositories in the order they are purged on deletion.
func NewParticipantService(
	participants ParticipantRepository,
	users UserRepository,
	data []DataRepository,
	auditLogs AuditLogRepository,
	tx Transactor,
	mailer EmailSender,
	composer *EmailComposer,
	audit Auditor,
	logger *slog.Logger,
) *ParticipantService {
	return &ParticipantService{
		participants: participants,
		users:        users,
		data:         data,
		auditLogs:    auditLogs,
		tx:           tx,
		mailer:       mailer,
		composer:     composer,
		audit:        audit,
		logger:       logger,
	}
}

func (s *ParticipantService) internal(ctx context.Context, msg string, err error, attrs ...any) error {
	s.logger.ErrorContext(ctx, msg, append(attrs, slog.Any("error", err))...)
	return models.ErrInternalServer
}

func (s *ParticipantService) lookup(ctx context.Context, p *models.Participant, err error, attrs ...any) (*models.Participant, error) {
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, s.internal(ctx, "failed to get participant", err, attrs...)
	}
	return p, nil
}

func (s *ParticipantService) GetByKey(ctx context.Context, key string) (*models.Participant, error) {
	p, err := s.participants.GetByKey(ctx, key)
	return s.lookup(ctx, p, err, slog.String("participant_key", key))
}

func (s *ParticipantService) GetByUserKey(ctx context.Context, userKey string) (*models.Participant, error) {
	p, err := s.participants.GetByUserKey(ctx, userKey)
	return s.lookup(ctx, p, err, slog.String("user_key", userKey))
}

// List returns the participants visible to an admin or researcher. Authorization
// of the filter is done by the caller; researchers without a team or study
// filter get the participants of all their studies.
func (s *ParticipantService) List(ctx context.Context, caller *models.Caller, filter ParticipantFilter) ([]*models.Participant, error) {
	var (
		list []*models.Participant
		err  error
	)

	switch {
	case filter.StudyKey != "":
		list, err = s.participants.ListByStudy(ctx, filter.StudyKey, filter.CurrentStatus)
	case filter.TeamKey != "":
		list, err = s.participants.ListByTeam(ctx, filter.TeamKey, filter.CurrentStatus)
	case caller.IsResearcher():
		list, err = s.participants.ListByResearcher(ctx, caller.UserKey, filter.CurrentStatus)
	case caller.IsAdmin():
		list, err = s.participants.List(ctx, filter.CurrentStatus)
	default:
		return nil, models.ErrForbidden
	}

	if err != nil {
		return nil, s.internal(ctx, "failed to list participants", err)
	}
	return list, nil
}

// Create stores the caller's own participant profile
func (s *ParticipantService) Create(ctx context.Context, caller *models.Caller, p *models.Participant) (*models.Participant, error) {
	_, err := s.participants.GetByUserKey(ctx, caller.UserKey)
	if err == nil {
		return nil, models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, s.internal(ctx, "failed to check existing participant", err)
	}

	p.Key = ""
	p.UserKey = caller.UserKey
	p.CreatedTS = time.Now().UTC()
	p.UpdatedTS = nil
	if p.Studies == nil {
		p.Studies = []models.StudyStatus{}
	}

	created, err := s.participants.Create(ctx, p)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		return nil, s.internal(ctx, "failed to create participant", err)
	}

	s.logger.InfoContext(ctx, "participant created", slog.String("participant_key", created.Key))
	s.audit.Log(ctx, AuditEntry{
		Event:   models.AuditEventParticipantCreated,
		UserKey: caller.UserKey,
		Message: "New participant created",
		RefData: models.AuditRefParticipants,
		RefKey:  created.Key,
		Data:    created,
	})
	return created, nil
}

// UpdateProfile merges patch into the profile of the participant owned by userKey
func (s *ParticipantService) UpdateProfile(ctx context.Context, caller *models.Caller, userKey string, patch models.ProfilePatch) (*models.Participant, error) {
	updated, err := s.participants.UpdateProfile(ctx, userKey, patch)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, s.internal(ctx, "failed to update participant", err, slog.String("user_key", userKey))
	}

	s.logger.InfoContext(ctx, "participant profile updated", slog.String("participant_key", updated.Key))
	s.audit.Log(ctx, AuditEntry{
		Event:   models.AuditEventParticipantUpdated,
		UserKey: caller.UserKey,
		Message: "Participant profile updated",
		RefData: models.AuditRefParticipants,
		RefKey:  updated.Key,
		Data:    patch,
	})
	return updated, nil
}

// UpdateStudyStatus replaces (or appends) the participant's status entry for
// studyKey with status. When the status differs from the previous one a
// notification is mailed to the caller.
func (s *ParticipantService) UpdateStudyStatus(ctx context.Context, caller *models.Caller, userKey, studyKey string, status models.StudyStatus) (*models.Participant, error) {
	p, err := s.GetByUserKey(ctx, userKey)
	if err != nil {
		return nil, err
	}

	status.StudyKey = studyKey

	previous := ""
	studies := append([]models.StudyStatus(nil), p.Studies...)
	if i := p.StudyIndex(studyKey); i >= 0 {
		previous = studies[i].CurrentStatus
		studies[i] = status
	} else {
		studies = append(studies, status)
	}

	updated, err := s.participants.UpdateStudies(ctx, p.Key, studies)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, s.internal(ctx, "failed to update participant studies", err, slog.String("participant_key", p.Key))
	}

	if previous != status.CurrentStatus {
		s.notifyStatusChange(ctx, caller, studyKey, updated)
	}

	s.logger.InfoContext(ctx, "participant has changed study status",
		slog.String("participant_key", updated.Key),
		slog.String("study_key", studyKey),
		slog.String("status", status.CurrentStatus),
	)
	s.audit.Log(ctx, AuditEntry{
		Event:    models.AuditEventParticipantStudyUpdate,
		UserKey:  caller.UserKey,
		StudyKey: studyKey,
		Message:  "Participant has changed study status",
		RefData:  models.AuditRefParticipants,
		RefKey:   updated.Key,
		Data:     status,
	})
	return updated, nil
}

// notifyStatusChange is best effort: the status is already stored
func (s *ParticipantService) notifyStatusChange(ctx context.Context, caller *models.Caller, studyKey string, p *models.Participant) {
	em, err := s.composer.StudyStatusUpdate(ctx, studyKey, p)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to compose status email", slog.String("study_key", studyKey), slog.Any("error", err))
		return
	}
	if err := s.mailer.SendEmail(ctx, caller.Email, em.Title, em.Content); err != nil {
		s.logger.ErrorContext(ctx, "failed to send status email", slog.String("study_key", studyKey), slog.Any("error", err))
	}
}

func (s *ParticipantService) StatusStats(ctx context.Context, studyKey string) ([]models.StatusCount, error) {
	stats, err := s.participants.StatusStats(ctx, studyKey)
	if err != nil {
		return nil, s.internal(ctx, "failed to compute status stats", err, slog.String("study_key", studyKey))
	}
	return stats, nil
}

// deletionSteps lists, in order, everything removed with a participant
func (s *ParticipantService) deletionSteps(p *models.Participant) []SagaStep {
	steps := make([]SagaStep, 0, len(s.data)+3)

	for _, repo := range s.data {
		steps = append(steps, SagaStep{
			Name: string(repo.Category()),
			Run: func(ctx context.Context) error {
				_, err := repo.DeleteByUserKey(ctx, p.UserKey)
				return err
			},
		})
	}

	steps = append(steps,
		SagaStep{Name: "auditLogs", Run: func(ctx context.Context) error {
			_, err := s.auditLogs.DeleteByUserKey(ctx, p.UserKey)
			return err
		}},
		SagaStep{Name: "participant", Run: func(ctx context.Context) error {
			return s.participants.Delete(ctx, p.Key)
		}},
		SagaStep{Name: "user", Run: func(ctx context.Context) error {
			err := s.users.Delete(ctx, p.UserKey)
			// an orphaned profile has no account left to remove
			if errors.Is(err, models.ErrNotFound) {
				return nil
			}
			return err
		}},
	)
	return steps
}

// Delete removes the participant owned by userKey together with all its
// collected data, its audit trail and its user account. All steps run in
// one transaction; on failure nothing is removed and the returned
// *SagaStepError names the failing step.
func (s *ParticipantService) Delete(ctx context.Context, caller *models.Caller, userKey string) error {
	p, err := s.GetByUserKey(ctx, userKey)
	if err != nil {
		return err
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		return runSaga(ctx, s.logger, "participantDeletion", s.deletionSteps(p))
	})
	if err != nil {
		var stepErr *SagaStepError
		if errors.As(err, &stepErr) {
			return stepErr
		}
		return s.internal(ctx, "participant deletion transaction failed", err, slog.String("participant_key", p.Key))
	}

	s.logger.InfoContext(ctx, "participant deleted", slog.String("participant_key", p.Key))
	s.audit.Log(ctx, AuditEntry{
		Event:   models.AuditEventParticipantDeleted,
		UserKey: caller.UserKey,
		Message: "Participant deleted",
		RefData: models.AuditRefParticipants,
		RefKey:  p.Key,
	})
	return nil
}
