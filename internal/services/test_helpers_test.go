package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/mobistudy/internal/auth"
	"github.com/BradenHooton/mobistudy/internal/models"
	"github.com/BradenHooton/mobistudy/internal/repositories"
)

const testJWTSecret = "services-test-secret-0123456789"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTokenManager() *auth.TokenManager {
	return auth.NewTokenManager(testJWTSecret, time.Hour, 24*time.Hour, 24*time.Hour)
}

func noDelay() *auth.TimingDelay {
	return auth.NewTimingDelay(auth.TimingConfig{})
}

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	CreateFunc           func(ctx context.Context, user *models.User) (*models.User, error)
	GetByKeyFunc         func(ctx context.Context, key string) (*models.User, error)
	GetByEmailFunc       func(ctx context.Context, email string) (*models.User, error)
	ListFunc             func(ctx context.Context, role string) ([]*models.User, error)
	ListByStudyFunc      func(ctx context.Context, studyKey string) ([]*models.User, error)
	ListByResearcherFunc func(ctx context.Context, researcherKey string) ([]*models.User, error)
	UpdatePasswordFunc   func(ctx context.Context, key, hashedPassword string) error
	DeleteFunc           func(ctx context.Context, key string) error
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) GetByKey(ctx context.Context, key string) (*models.User, error) {
	if m.GetByKeyFunc != nil {
		return m.GetByKeyFunc(ctx, key)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, role string) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, role)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) ListByStudy(ctx context.Context, studyKey string) ([]*models.User, error) {
	if m.ListByStudyFunc != nil {
		return m.ListByStudyFunc(ctx, studyKey)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) ListByResearcher(ctx context.Context, researcherKey string) ([]*models.User, error) {
	if m.ListByResearcherFunc != nil {
		return m.ListByResearcherFunc(ctx, researcherKey)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, key, hashedPassword string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, key, hashedPassword)
	}
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return nil
}

// MockParticipantRepository implements ParticipantRepository for testing
type MockParticipantRepository struct {
	CreateFunc           func(ctx context.Context, p *models.Participant) (*models.Participant, error)
	GetByKeyFunc         func(ctx context.Context, key string) (*models.Participant, error)
	GetByUserKeyFunc     func(ctx context.Context, userKey string) (*models.Participant, error)
	ListFunc             func(ctx context.Context, currentStatus string) ([]*models.Participant, error)
	ListByStudyFunc      func(ctx context.Context, studyKey, currentStatus string) ([]*models.Participant, error)
	ListByTeamFunc       func(ctx context.Context, teamKey, currentStatus string) ([]*models.Participant, error)
	ListByResearcherFunc func(ctx context.Context, researcherKey, currentStatus string) ([]*models.Participant, error)
	UpdateProfileFunc    func(ctx context.Context, userKey string, patch models.ProfilePatch) (*models.Participant, error)
	UpdateStudiesFunc    func(ctx context.Context, key string, studies []models.StudyStatus) (*models.Participant, error)
	DeleteFunc           func(ctx context.Context, key string) error
	StatusStatsFunc      func(ctx context.Context, studyKey string) ([]models.StatusCount, error)
}

func (m *MockParticipantRepository) Create(ctx context.Context, p *models.Participant) (*models.Participant, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, p)
	}
	return nil, models.ErrInternalServer
}

func (m *MockParticipantRepository) GetByKey(ctx context.Context, key string) (*models.Participant, error) {
	if m.GetByKeyFunc != nil {
		return m.GetByKeyFunc(ctx, key)
	}
	return nil, models.ErrNotFound
}

func (m *MockParticipantRepository) GetByUserKey(ctx context.Context, userKey string) (*models.Participant, error) {
	if m.GetByUserKeyFunc != nil {
		return m.GetByUserKeyFunc(ctx, userKey)
	}
	return nil, models.ErrNotFound
}

func (m *MockParticipantRepository) List(ctx context.Context, currentStatus string) ([]*models.Participant, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, currentStatus)
	}
	return []*models.Participant{}, nil
}

func (m *MockParticipantRepository) ListByStudy(ctx context.Context, studyKey, currentStatus string) ([]*models.Participant, error) {
	if m.ListByStudyFunc != nil {
		return m.ListByStudyFunc(ctx, studyKey, currentStatus)
	}
	return []*models.Participant{}, nil
}

func (m *MockParticipantRepository) ListByTeam(ctx context.Context, teamKey, currentStatus string) ([]*models.Participant, error) {
	if m.ListByTeamFunc != nil {
		return m.ListByTeamFunc(ctx, teamKey, currentStatus)
	}
	return []*models.Participant{}, nil
}

func (m *MockParticipantRepository) ListByResearcher(ctx context.Context, researcherKey, currentStatus string) ([]*models.Participant, error) {
	if m.ListByResearcherFunc != nil {
		return m.ListByResearcherFunc(ctx, researcherKey, currentStatus)
	}
	return []*models.Participant{}, nil
}

func (m *MockParticipantRepository) UpdateProfile(ctx context.Context, userKey string, patch models.ProfilePatch) (*models.Participant, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userKey, patch)
	}
	return nil, models.ErrNotFound
}

func (m *MockParticipantRepository) UpdateStudies(ctx context.Context, key string, studies []models.StudyStatus) (*models.Participant, error) {
	if m.UpdateStudiesFunc != nil {
		return m.UpdateStudiesFunc(ctx, key, studies)
	}
	return nil, models.ErrNotFound
}

func (m *MockParticipantRepository) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return nil
}

func (m *MockParticipantRepository) StatusStats(ctx context.Context, studyKey string) ([]models.StatusCount, error) {
	if m.StatusStatsFunc != nil {
		return m.StatusStatsFunc(ctx, studyKey)
	}
	return []models.StatusCount{}, nil
}

// MockTeamRepository implements TeamRepository for testing
type MockTeamRepository struct {
	CreateFunc    func(ctx context.Context, team *models.Team) (string, error)
	GetByKeyFunc  func(ctx context.Context, key string) (*models.Team, error)
	GetByNameFunc func(ctx context.Context, name string) (*models.Team, error)
	ListFunc      func(ctx context.Context, filter repositories.TeamFilter) ([]*models.Team, error)
	ReplaceFunc   func(ctx context.Context, key string, team *models.Team) error
	// GetByKeyForUpdateFunc falls back to GetByKey when nil
	GetByKeyForUpdateFunc func(ctx context.Context, key string) (*models.Team, error)
	AddResearcherFunc     func(ctx context.Context, key, invitationCode, userKey string) (bool, error)
}

func (m *MockTeamRepository) Create(ctx context.Context, team *models.Team) (string, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, team)
	}
	return "", models.ErrInternalServer
}

func (m *MockTeamRepository) GetByKey(ctx context.Context, key string) (*models.Team, error) {
	if m.GetByKeyFunc != nil {
		return m.GetByKeyFunc(ctx, key)
	}
	return nil, models.ErrNotFound
}

func (m *MockTeamRepository) GetByName(ctx context.Context, name string) (*models.Team, error) {
	if m.GetByNameFunc != nil {
		return m.GetByNameFunc(ctx, name)
	}
	return nil, models.ErrNotFound
}

func (m *MockTeamRepository) List(ctx context.Context, filter repositories.TeamFilter) ([]*models.Team, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.Team{}, nil
}

func (m *MockTeamRepository) Replace(ctx context.Context, key string, team *models.Team) error {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, key, team)
	}
	return nil
}

func (m *MockTeamRepository) GetByKeyForUpdate(ctx context.Context, key string) (*models.Team, error) {
	if m.GetByKeyForUpdateFunc != nil {
		return m.GetByKeyForUpdateFunc(ctx, key)
	}
	return m.GetByKey(ctx, key)
}

func (m *MockTeamRepository) AddResearcher(ctx context.Context, key, invitationCode, userKey string) (bool, error) {
	if m.AddResearcherFunc != nil {
		return m.AddResearcherFunc(ctx, key, invitationCode, userKey)
	}
	return false, nil
}

// MockStudyRepository implements StudyRepository and StudyFetcher for testing
type MockStudyRepository struct {
	CreateFunc            func(ctx context.Context, study *models.Study) (*models.Study, error)
	GetByKeyFunc          func(ctx context.Context, key string) (*models.Study, error)
	ListFunc              func(ctx context.Context) ([]*models.Study, error)
	ListByResearcherFunc  func(ctx context.Context, researcherKey string) ([]*models.Study, error)
	ListByParticipantFunc func(ctx context.Context, userKey string) ([]*models.Study, error)
}

func (m *MockStudyRepository) Create(ctx context.Context, study *models.Study) (*models.Study, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, study)
	}
	return nil, models.ErrInternalServer
}

func (m *MockStudyRepository) GetByKey(ctx context.Context, key string) (*models.Study, error) {
	if m.GetByKeyFunc != nil {
		return m.GetByKeyFunc(ctx, key)
	}
	return &models.Study{Key: key, Generalities: models.StudyGeneralities{Title: "Test study"}}, nil
}

func (m *MockStudyRepository) List(ctx context.Context) ([]*models.Study, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.Study{}, nil
}

func (m *MockStudyRepository) ListByResearcher(ctx context.Context, researcherKey string) ([]*models.Study, error) {
	if m.ListByResearcherFunc != nil {
		return m.ListByResearcherFunc(ctx, researcherKey)
	}
	return []*models.Study{}, nil
}

func (m *MockStudyRepository) ListByParticipant(ctx context.Context, userKey string) ([]*models.Study, error) {
	if m.ListByParticipantFunc != nil {
		return m.ListByParticipantFunc(ctx, userKey)
	}
	return []*models.Study{}, nil
}

// MockAuditLogRepository implements AuditLogRepository for testing
type MockAuditLogRepository struct {
	CreateFunc          func(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
	ListFunc            func(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLog, error)
	DeleteByUserKeyFunc func(ctx context.Context, userKey string) (int64, error)
}

func (m *MockAuditLogRepository) Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, log)
	}
	return log, nil
}

func (m *MockAuditLogRepository) List(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLog, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.AuditLog{}, nil
}

func (m *MockAuditLogRepository) DeleteByUserKey(ctx context.Context, userKey string) (int64, error) {
	if m.DeleteByUserKeyFunc != nil {
		return m.DeleteByUserKeyFunc(ctx, userKey)
	}
	return 0, nil
}

// MockDataRepository implements DataRepository for testing
type MockDataRepository struct {
	CategoryValue       models.DataCategory
	DeleteByUserKeyFunc func(ctx context.Context, userKey string) (int64, error)
}

func (m *MockDataRepository) Category() models.DataCategory {
	return m.CategoryValue
}

func (m *MockDataRepository) DeleteByUserKey(ctx context.Context, userKey string) (int64, error) {
	if m.DeleteByUserKeyFunc != nil {
		return m.DeleteByUserKeyFunc(ctx, userKey)
	}
	return 0, nil
}

// MockTransactor runs fn directly and records whether a transaction was opened
type MockTransactor struct {
	Calls int
}

func (m *MockTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.Calls++
	return fn(ctx)
}

// SentEmail is one message captured by MockEmailSender
type SentEmail struct {
	To, Subject, HTML string
}

// MockEmailSender records sent emails
type MockEmailSender struct {
	mu   sync.Mutex
	Sent []SentEmail
	Err  error
}

func (m *MockEmailSender) SendEmail(ctx context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentEmail{To: to, Subject: subject, HTML: html})
	return nil
}

// RecordingAuditor captures audit entries instead of persisting them
type RecordingAuditor struct {
	Entries []AuditEntry
}

func (r *RecordingAuditor) Log(ctx context.Context, entry AuditEntry) {
	r.Entries = append(r.Entries, entry)
}

func (r *RecordingAuditor) Events() []string {
	events := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		events = append(events, e.Event)
	}
	return events
}

func NewTestUser(key, email, role string) *models.User {
	return &models.User{
		Key:       key,
		Email:     email,
		Role:      role,
		CreatedTS: time.Now(),
	}
}

func NewTestCaller(key, role string) *models.Caller {
	return &models.Caller{UserKey: key, Email: key + "@example.com", Role: role}
}
