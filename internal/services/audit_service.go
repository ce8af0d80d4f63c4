package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/BradenHooton/mobistudy/internal/models"
)

// AuditLogRepository defines the interface for audit log persistence
type AuditLogRepository interface {
	Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
	List(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLog, error)
	DeleteByUserKey(ctx context.Context, userKey string) (int64, error)
}

// AuditEntry describes one auditable action
type AuditEntry struct {
	Event    string
	UserKey  string // actor
	StudyKey string
	TaskID   *int
	Message  string
	RefData  string // referenced collection
	RefKey   string // referenced record
	Data     any
}

// Auditor records audit entries. Implementations must never fail the caller.
type Auditor interface {
	Log(ctx context.Context, entry AuditEntry)
}

// AuditService handles audit logging with dual-write pattern (slog + database)
type AuditService struct {
	repo   AuditLogRepository
	logger *slog.Logger
}

func NewAuditService(repo AuditLogRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger,
	}
}

// Log writes the entry to the application log and persists it. Persistence
// failures are logged and swallowed.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) {
	s.logger.InfoContext(ctx, "audit event",
		slog.String("event", entry.Event),
		slog.String("user_key", entry.UserKey),
		slog.String("study_key", entry.StudyKey),
		slog.String("ref_data", entry.RefData),
		slog.String("ref_key", entry.RefKey),
		slog.String("message", entry.Message),
	)

	log := &models.AuditLog{
		Event:    entry.Event,
		UserKey:  entry.UserKey,
		StudyKey: entry.StudyKey,
		TaskID:   entry.TaskID,
		Message:  entry.Message,
		RefData:  entry.RefData,
		RefKey:   entry.RefKey,
	}

	if entry.Data != nil {
		data, err := json.Marshal(entry.Data)
		if err != nil {
			s.logger.WarnContext(ctx, "audit payload not serializable",
				slog.String("event", entry.Event),
				slog.Any("error", err),
			)
		} else {
			log.Data = data
		}
	}

	if _, err := s.repo.Create(ctx, log); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit log",
			slog.String("event", entry.Event),
			slog.Any("error", err),
		)
	}
}

// List returns stored audit entries matching the filter
func (s *AuditService) List(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLog, error) {
	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list audit logs", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return logs, nil
}
