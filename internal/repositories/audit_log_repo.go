package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/mobistudy/internal/database"
	"github.com/BradenHooton/mobistudy/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const auditLogColumns = `key, event, user_key, study_key, task_id, message, ref_data, ref_key, data, timestamp`

// AuditLogRepository handles audit log data access
type AuditLogRepository struct {
	db *database.DB
}

// NewAuditLogRepository creates a new AuditLogRepository
func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func scanAuditLogRow(row rowScanner) (*models.AuditLog, error) {
	var log models.AuditLog
	var data []byte

	err := row.Scan(
		&log.Key, &log.Event, &log.UserKey, &log.StudyKey, &log.TaskID,
		&log.Message, &log.RefData, &log.RefKey, &data, &log.Timestamp,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	if len(data) > 0 {
		log.Data = data
	}

	return &log, nil
}

func scanAuditLogRows(rows pgx.Rows) ([]*models.AuditLog, error) {
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		log, err := scanAuditLogRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return logs, nil
}

// Create appends an audit log entry
func (r *AuditLogRepository) Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error) {
	log.Key = uuid.New().String()
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	var data any
	if len(log.Data) > 0 {
		data = string(log.Data)
	}

	query := `
		INSERT INTO audit_logs (` + auditLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10)
		RETURNING ` + auditLogColumns

	result, err := scanAuditLogRow(r.db.Conn(ctx).QueryRow(ctx, query,
		log.Key, log.Event, log.UserKey, log.StudyKey, log.TaskID,
		log.Message, log.RefData, log.RefKey, data, log.Timestamp,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create audit log: %w", err)
	}

	return result, nil
}

// List returns entries matching the filter, newest first
func (r *AuditLogRepository) List(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLog, error) {
	var (
		conditions []string
		args       []any
	)

	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("event", filter.Event)
	add("user_key", filter.UserKey)
	add("study_key", filter.StudyKey)

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + auditLogColumns + ` FROM audit_logs`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}

	return scanAuditLogRows(rows)
}

// DeleteByUserKey removes the user's entries; only used when a participant is deleted
func (r *AuditLogRepository) DeleteByUserKey(ctx context.Context, userKey string) (int64, error) {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM audit_logs WHERE user_key = $1`, userKey)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
