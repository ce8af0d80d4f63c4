package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/mobistudy/internal/handlers"
	"github.com/BradenHooton/mobistudy/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestAuditLog_List(t *testing.T) {
	var got models.AuditLogFilter
	svc := &handlers.MockAuditLogService{
		ListFunc: func(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLog, error) {
			got = filter
			return []*models.AuditLog{{Key: "l1"}, {Key: "l2"}}, nil
		},
	}
	handler := handlers.NewAuditHandler(svc, handlers.NewTestPolicy())

	req := httptest.NewRequest("GET", "/auditlog?studyKey=s1&event=participantCreated&limit=5&offset=10", nil)
	w := httptest.NewRecorder()
	handler.List(w, handlers.WithCaller(req, "r1", models.RoleResearcher))

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))
	assert.Equal(t, models.AuditLogFilter{StudyKey: "s1", Event: "participantCreated", Limit: 5, Offset: 10}, got)
}

func TestAuditLog_List_Defaults(t *testing.T) {
	var got models.AuditLogFilter
	svc := &handlers.MockAuditLogService{
		ListFunc: func(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLog, error) {
			got = filter
			return []*models.AuditLog{}, nil
		},
	}
	handler := handlers.NewAuditHandler(svc, handlers.NewTestPolicy())

	w := httptest.NewRecorder()
	handler.List(w, handlers.WithCaller(httptest.NewRequest("GET", "/auditlog?limit=-3&offset=x", nil), "a1", models.RoleAdmin))

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, 100, got.Limit)
	assert.Equal(t, 0, got.Offset)
}

func TestAuditLog_List_Forbidden(t *testing.T) {
	handler := handlers.NewAuditHandler(&handlers.MockAuditLogService{}, handlers.NewTestPolicy())

	tests := []struct {
		name, url, callerKey, role string
	}{
		{"researcher without study", "/auditlog", "r1", models.RoleResearcher},
		{"researcher foreign study", "/auditlog?studyKey=s2", "r1", models.RoleResearcher},
		{"participant", "/auditlog?studyKey=s1", "p1", models.RoleParticipant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.List(w, handlers.WithCaller(httptest.NewRequest("GET", tt.url, nil), tt.callerKey, tt.role))
			handlers.AssertErrorResponse(t, w, 403, "forbidden")
		})
	}
}
