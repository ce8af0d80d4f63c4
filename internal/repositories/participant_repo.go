package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/mobistudy/internal/database"
	"github.com/BradenHooton/mobistudy/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const participantColumns = `p.key, p.user_key, p.profile, p.studies, p.created_ts, p.updated_ts`

type ParticipantRepository struct {
	db *database.DB
}

func NewParticipantRepository(db *database.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func scanParticipantRow(scanner rowScanner) (*models.Participant, error) {
	var p models.Participant
	err := scanner.Scan(&p.Key, &p.UserKey, &p.ParticipantProfile, &p.Studies, &p.CreatedTS, &p.UpdatedTS)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	if p.Studies == nil {
		p.Studies = []models.StudyStatus{}
	}
	return &p, nil
}

func scanParticipantRows(rows pgx.Rows) ([]*models.Participant, error) {
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		p, err := scanParticipantRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return participants, nil
}

func (r *ParticipantRepository) query(ctx context.Context, query string, args ...any) ([]*models.Participant, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	return scanParticipantRows(rows)
}

func (r *ParticipantRepository) Create(ctx context.Context, p *models.Participant) (*models.Participant, error) {
	p.Key = uuid.New().String()
	if p.CreatedTS.IsZero() {
		p.CreatedTS = time.Now().UTC()
	}
	if p.Studies == nil {
		p.Studies = []models.StudyStatus{}
	}

	query := `
		INSERT INTO participants AS p (key, user_key, profile, studies, created_ts, updated_ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + participantColumns

	return scanParticipantRow(r.db.Conn(ctx).QueryRow(ctx, query,
		p.Key, p.UserKey, p.ParticipantProfile, p.Studies, p.CreatedTS, p.UpdatedTS,
	))
}

func (r *ParticipantRepository) GetByKey(ctx context.Context, key string) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants p WHERE p.key = $1`
	return scanParticipantRow(r.db.Conn(ctx).QueryRow(ctx, query, key))
}

func (r *ParticipantRepository) GetByUserKey(ctx context.Context, userKey string) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants p WHERE p.user_key = $1`
	return scanParticipantRow(r.db.Conn(ctx).QueryRow(ctx, query, userKey))
}

// List returns all participants, or those holding currentStatus in any study
func (r *ParticipantRepository) List(ctx context.Context, currentStatus string) ([]*models.Participant, error) {
	query := `
		SELECT ` + participantColumns + ` FROM participants p
		WHERE $1 = '' OR p.studies @> jsonb_build_array(jsonb_build_object('currentStatus', $1::text))
		ORDER BY p.created_ts
	`
	return r.query(ctx, query, currentStatus)
}

// ListByStudy returns participants enrolled in the study, optionally with the given status there
func (r *ParticipantRepository) ListByStudy(ctx context.Context, studyKey, currentStatus string) ([]*models.Participant, error) {
	query := `
		SELECT ` + participantColumns + ` FROM participants p
		WHERE p.studies @> CASE
			WHEN $2 = '' THEN jsonb_build_array(jsonb_build_object('studyKey', $1::text))
			ELSE jsonb_build_array(jsonb_build_object('studyKey', $1::text, 'currentStatus', $2::text))
		END
		ORDER BY p.created_ts
	`
	return r.query(ctx, query, studyKey, currentStatus)
}

// ListByTeam returns participants enrolled in any study owned by the team
func (r *ParticipantRepository) ListByTeam(ctx context.Context, teamKey, currentStatus string) ([]*models.Participant, error) {
	query := `
		SELECT ` + participantColumns + ` FROM participants p
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(p.studies) AS ps
			JOIN studies s ON s.key = ps->>'studyKey'
			WHERE s.team_key = $1 AND ($2 = '' OR ps->>'currentStatus' = $2)
		)
		ORDER BY p.created_ts
	`
	return r.query(ctx, query, teamKey, currentStatus)
}

// ListByResearcher returns participants enrolled in any study of the researcher's teams
func (r *ParticipantRepository) ListByResearcher(ctx context.Context, researcherKey, currentStatus string) ([]*models.Participant, error) {
	query := `
		SELECT ` + participantColumns + ` FROM participants p
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(p.studies) AS ps
			JOIN studies s ON s.key = ps->>'studyKey'
			JOIN teams t ON t.key = s.team_key
			WHERE $1 = ANY(t.researchers_keys) AND ($2 = '' OR ps->>'currentStatus' = $2)
		)
		ORDER BY p.created_ts
	`
	return r.query(ctx, query, researcherKey, currentStatus)
}

// IsInResearcherScope reports whether the participant owned by userKey is
// enrolled in a study of one of the researcher's teams
func (r *ParticipantRepository) IsInResearcherScope(ctx context.Context, researcherKey, userKey string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM participants p
			CROSS JOIN LATERAL jsonb_array_elements(p.studies) AS ps
			JOIN studies s ON s.key = ps->>'studyKey'
			JOIN teams t ON t.key = s.team_key
			WHERE p.user_key = $1 AND $2 = ANY(t.researchers_keys)
		)
	`

	var ok bool
	if err := r.db.Conn(ctx).QueryRow(ctx, query, userKey, researcherKey).Scan(&ok); err != nil {
		return false, database.MapPostgresError(err)
	}
	return ok, nil
}

// UpdateProfile merges patch into the stored profile key by key and stamps updatedTS
func (r *ParticipantRepository) UpdateProfile(ctx context.Context, userKey string, patch models.ProfilePatch) (*models.Participant, error) {
	if patch == nil {
		patch = models.ProfilePatch{}
	}

	query := `
		UPDATE participants AS p SET profile = COALESCE(p.profile, '{}'::jsonb) || $2::jsonb, updated_ts = $3
		WHERE p.user_key = $1
		RETURNING ` + participantColumns

	return scanParticipantRow(r.db.Conn(ctx).QueryRow(ctx, query, userKey, patch, time.Now().UTC()))
}

// UpdateStudies replaces the whole status entry list of the participant
func (r *ParticipantRepository) UpdateStudies(ctx context.Context, key string, studies []models.StudyStatus) (*models.Participant, error) {
	if studies == nil {
		studies = []models.StudyStatus{}
	}

	query := `
		UPDATE participants AS p SET studies = $2, updated_ts = $3
		WHERE p.key = $1
		RETURNING ` + participantColumns

	return scanParticipantRow(r.db.Conn(ctx).QueryRow(ctx, query, key, studies, time.Now().UTC()))
}

func (r *ParticipantRepository) Delete(ctx context.Context, key string) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM participants WHERE key = $1`, key)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// StatusStats counts the participants of a study by their current status there
func (r *ParticipantRepository) StatusStats(ctx context.Context, studyKey string) ([]models.StatusCount, error) {
	query := `
		SELECT ps->>'currentStatus' AS status, COUNT(*)
		FROM participants p, jsonb_array_elements(p.studies) AS ps
		WHERE ps->>'studyKey' = $1
		GROUP BY status
		ORDER BY status
	`

	rows, err := r.db.Conn(ctx).Query(ctx, query, studyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query status stats: %w", err)
	}
	defer rows.Close()

	stats := make([]models.StatusCount, 0)
	for rows.Next() {
		var sc models.StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats = append(stats, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status rows: %w", err)
	}
	return stats, nil
}
