package services

import (
	"context"
	"errors"
	"testing"

	"github.com/BradenHooton/mobistudy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_Log_PersistsEntry(t *testing.T) {
	var stored *models.AuditLog
	repo := &MockAuditLogRepository{
		CreateFunc: func(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error) {
			stored = log
			return log, nil
		},
	}
	svc := NewAuditService(repo, testLogger())
	taskID := 3

	svc.Log(context.Background(), AuditEntry{
		Event:    models.AuditEventParticipantStudyUpdate,
		UserKey:  "p1",
		StudyKey: "s1",
		TaskID:   &taskID,
		Message:  "status changed",
		RefData:  models.AuditRefParticipants,
		RefKey:   "part1",
		Data:     map[string]string{"currentStatus": "accepted"},
	})

	require.NotNil(t, stored)
	assert.Equal(t, "p1", stored.UserKey)
	assert.Equal(t, "s1", stored.StudyKey)
	assert.Equal(t, &taskID, stored.TaskID)
	assert.JSONEq(t, `{"currentStatus":"accepted"}`, string(stored.Data))
}

func TestAuditService_Log_NeverFails(t *testing.T) {
	repo := &MockAuditLogRepository{
		CreateFunc: func(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error) {
			return nil, errors.New("disk full")
		},
	}
	svc := NewAuditService(repo, testLogger())

	assert.NotPanics(t, func() {
		svc.Log(context.Background(), AuditEntry{Event: "x", Data: make(chan int)})
	})
}

func TestAuditService_List(t *testing.T) {
	var got models.AuditLogFilter
	repo := &MockAuditLogRepository{
		ListFunc: func(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLog, error) {
			got = filter
			return []*models.AuditLog{{Key: "l1"}}, nil
		},
	}
	svc := NewAuditService(repo, testLogger())

	logs, err := svc.List(context.Background(), models.AuditLogFilter{StudyKey: "s1", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, "s1", got.StudyKey)

	repo.ListFunc = func(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLog, error) {
		return nil, errors.New("timeout")
	}
	_, err = svc.List(context.Background(), models.AuditLogFilter{})
	assert.ErrorIs(t, err, models.ErrInternalServer)
}
