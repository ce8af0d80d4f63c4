package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/BradenHooton/mobistudy/internal/auth"
	"github.com/BradenHooton/mobistudy/internal/models"
	"github.com/BradenHooton/mobistudy/internal/services"
	pkghttp "github.com/BradenHooton/mobistudy/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewRawRequest creates a request whose body is sent as is
func NewRawRequest(method, url, body string) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithCaller attaches an authenticated caller to the request
func WithCaller(req *http.Request, userKey, role string) *http.Request {
	caller := &models.Caller{UserKey: userKey, Email: userKey + "@example.com", Role: role}
	return req.WithContext(auth.WithCaller(req.Context(), caller))
}

// WithURLParams sets chi URL parameters given as key, value pairs
func WithURLParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), target), "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// stubScope backs the real policy with a fixed world: researcher r1 belongs
// to team t1, which owns study s1, in which participant p1 is enrolled.
// Researcher r2 has no team.
type stubScope struct{}

func (stubScope) ResearcherOwnsStudy(ctx context.Context, researcherKey, studyKey string) (bool, error) {
	return researcherKey == "r1" && studyKey == "s1", nil
}

func (stubScope) IsInResearcherScope(ctx context.Context, researcherKey, userKey string) (bool, error) {
	return researcherKey == "r1" && userKey == "p1", nil
}

func (stubScope) GetByKey(ctx context.Context, key string) (*models.Team, error) {
	if key != "t1" {
		return nil, models.ErrNotFound
	}
	return &models.Team{Key: "t1", Name: "Lab", ResearchersKeys: []string{"r1"}}, nil
}

// NewTestPolicy returns the production policy over stubScope
func NewTestPolicy() *auth.Policy {
	return auth.NewPolicy(stubScope{}, stubScope{}, stubScope{})
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc                  func(ctx context.Context, email, password string) (*services.LoginResponse, error)
	SendResetPasswordEmailFunc func(ctx context.Context, email, baseURL string)
	ResetPasswordFunc          func(ctx context.Context, token, password string) error
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*services.LoginResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password)
}

func (m *MockAuthService) SendResetPasswordEmail(ctx context.Context, email, baseURL string) {
	if m.SendResetPasswordEmailFunc != nil {
		m.SendResetPasswordEmailFunc(ctx, email, baseURL)
	}
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, password string) error {
	if m.ResetPasswordFunc == nil {
		return nil
	}
	return m.ResetPasswordFunc(ctx, token, password)
}

// MockUserService implements UserService for testing
type MockUserService struct {
	RegisterFunc  func(ctx context.Context, email, password, role string) (*models.User, error)
	GetUserFunc   func(ctx context.Context, key string) (*models.User, error)
	ListUsersFunc func(ctx context.Context, caller *models.Caller, studyKey string) ([]*models.User, error)
}

func (m *MockUserService) Register(ctx context.Context, email, password, role string) (*models.User, error) {
	if m.RegisterFunc == nil {
		return &models.User{Key: "u1", Email: email, Role: role, HashedPassword: "hash"}, nil
	}
	return m.RegisterFunc(ctx, email, password, role)
}

func (m *MockUserService) GetUser(ctx context.Context, key string) (*models.User, error) {
	if m.GetUserFunc == nil {
		return &models.User{Key: key, Email: key + "@example.com"}, nil
	}
	return m.GetUserFunc(ctx, key)
}

func (m *MockUserService) ListUsers(ctx context.Context, caller *models.Caller, studyKey string) ([]*models.User, error) {
	if m.ListUsersFunc == nil {
		return []*models.User{}, nil
	}
	return m.ListUsersFunc(ctx, caller, studyKey)
}

// MockParticipantService implements ParticipantService for testing
type MockParticipantService struct {
	GetByKeyFunc          func(ctx context.Context, key string) (*models.Participant, error)
	GetByUserKeyFunc      func(ctx context.Context, userKey string) (*models.Participant, error)
	ListFunc              func(ctx context.Context, caller *models.Caller, filter services.ParticipantFilter) ([]*models.Participant, error)
	CreateFunc            func(ctx context.Context, caller *models.Caller, p *models.Participant) (*models.Participant, error)
	UpdateProfileFunc     func(ctx context.Context, caller *models.Caller, userKey string, patch models.ProfilePatch) (*models.Participant, error)
	UpdateStudyStatusFunc func(ctx context.Context, caller *models.Caller, userKey, studyKey string, status models.StudyStatus) (*models.Participant, error)
	StatusStatsFunc       func(ctx context.Context, studyKey string) ([]models.StatusCount, error)
	DeleteFunc            func(ctx context.Context, caller *models.Caller, userKey string) error
}

func (m *MockParticipantService) GetByKey(ctx context.Context, key string) (*models.Participant, error) {
	if m.GetByKeyFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetByKeyFunc(ctx, key)
}

func (m *MockParticipantService) GetByUserKey(ctx context.Context, userKey string) (*models.Participant, error) {
	if m.GetByUserKeyFunc == nil {
		return &models.Participant{Key: "part-" + userKey, UserKey: userKey, Studies: []models.StudyStatus{}}, nil
	}
	return m.GetByUserKeyFunc(ctx, userKey)
}

func (m *MockParticipantService) List(ctx context.Context, caller *models.Caller, filter services.ParticipantFilter) ([]*models.Participant, error) {
	if m.ListFunc == nil {
		return []*models.Participant{}, nil
	}
	return m.ListFunc(ctx, caller, filter)
}

func (m *MockParticipantService) Create(ctx context.Context, caller *models.Caller, p *models.Participant) (*models.Participant, error) {
	if m.CreateFunc == nil {
		return p, nil
	}
	return m.CreateFunc(ctx, caller, p)
}

func (m *MockParticipantService) UpdateProfile(ctx context.Context, caller *models.Caller, userKey string, patch models.ProfilePatch) (*models.Participant, error) {
	if m.UpdateProfileFunc == nil {
		p := &models.Participant{UserKey: userKey}
		b, err := json.Marshal(patch)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &p.ParticipantProfile); err != nil {
			return nil, err
		}
		return p, nil
	}
	return m.UpdateProfileFunc(ctx, caller, userKey, patch)
}

func (m *MockParticipantService) UpdateStudyStatus(ctx context.Context, caller *models.Caller, userKey, studyKey string, status models.StudyStatus) (*models.Participant, error) {
	if m.UpdateStudyStatusFunc == nil {
		status.StudyKey = studyKey
		return &models.Participant{UserKey: userKey, Studies: []models.StudyStatus{status}}, nil
	}
	return m.UpdateStudyStatusFunc(ctx, caller, userKey, studyKey, status)
}

func (m *MockParticipantService) StatusStats(ctx context.Context, studyKey string) ([]models.StatusCount, error) {
	if m.StatusStatsFunc == nil {
		return []models.StatusCount{}, nil
	}
	return m.StatusStatsFunc(ctx, studyKey)
}

func (m *MockParticipantService) Delete(ctx context.Context, caller *models.Caller, userKey string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, caller, userKey)
}

// MockTeamService implements TeamService for testing
type MockTeamService struct {
	CreateFunc               func(ctx context.Context, caller *models.Caller, name string) (*models.Team, error)
	GetFunc                  func(ctx context.Context, key string) (*models.Team, error)
	ListFunc                 func(ctx context.Context, caller *models.Caller) ([]*models.Team, error)
	RotateInvitationCodeFunc func(ctx context.Context, key string) (*models.Team, error)
	AddResearcherFunc        func(ctx context.Context, caller *models.Caller, invitationCode string) (*models.Team, error)
}

func (m *MockTeamService) Create(ctx context.Context, caller *models.Caller, name string) (*models.Team, error) {
	if m.CreateFunc == nil {
		return &models.Team{Key: "t9", Name: name, ResearchersKeys: []string{}}, nil
	}
	return m.CreateFunc(ctx, caller, name)
}

func (m *MockTeamService) Get(ctx context.Context, key string) (*models.Team, error) {
	if m.GetFunc == nil {
		return &models.Team{Key: key}, nil
	}
	return m.GetFunc(ctx, key)
}

func (m *MockTeamService) List(ctx context.Context, caller *models.Caller) ([]*models.Team, error) {
	if m.ListFunc == nil {
		return []*models.Team{}, nil
	}
	return m.ListFunc(ctx, caller)
}

func (m *MockTeamService) RotateInvitationCode(ctx context.Context, key string) (*models.Team, error) {
	if m.RotateInvitationCodeFunc == nil {
		return &models.Team{Key: key, InvitationCode: "code"}, nil
	}
	return m.RotateInvitationCodeFunc(ctx, key)
}

func (m *MockTeamService) AddResearcher(ctx context.Context, caller *models.Caller, invitationCode string) (*models.Team, error) {
	if m.AddResearcherFunc == nil {
		return &models.Team{Key: "t1"}, nil
	}
	return m.AddResearcherFunc(ctx, caller, invitationCode)
}

// MockStudyService implements StudyService for testing
type MockStudyService struct {
	CreateFunc func(ctx context.Context, caller *models.Caller, study *models.Study) (*models.Study, error)
	GetFunc    func(ctx context.Context, key string) (*models.Study, error)
	ListFunc   func(ctx context.Context, caller *models.Caller) ([]*models.Study, error)
}

func (m *MockStudyService) Create(ctx context.Context, caller *models.Caller, study *models.Study) (*models.Study, error) {
	if m.CreateFunc == nil {
		study.Key = "s9"
		return study, nil
	}
	return m.CreateFunc(ctx, caller, study)
}

func (m *MockStudyService) Get(ctx context.Context, key string) (*models.Study, error) {
	if m.GetFunc == nil {
		return &models.Study{Key: key}, nil
	}
	return m.GetFunc(ctx, key)
}

func (m *MockStudyService) List(ctx context.Context, caller *models.Caller) ([]*models.Study, error) {
	if m.ListFunc == nil {
		return []*models.Study{}, nil
	}
	return m.ListFunc(ctx, caller)
}

// MockAuditLogService implements AuditLogService for testing
type MockAuditLogService struct {
	ListFunc func(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLog, error)
}

func (m *MockAuditLogService) List(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLog, error) {
	if m.ListFunc == nil {
		return []*models.AuditLog{}, nil
	}
	return m.ListFunc(ctx, filter)
}

// MockEmailSender records sent emails
type MockEmailSender struct {
	mu   sync.Mutex
	Sent []string
	Err  error
}

func (m *MockEmailSender) SendEmail(ctx context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, to)
	return nil
}
