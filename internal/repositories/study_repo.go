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

const studyColumns = `s.key, s.team_key, s.generalities, s.created_ts`

type StudyRepository struct {
	db *database.DB
}

func NewStudyRepository(db *database.DB) *StudyRepository {
	return &StudyRepository{db: db}
}

func scanStudyRow(scanner rowScanner) (*models.Study, error) {
	var study models.Study
	err := scanner.Scan(&study.Key, &study.TeamKey, &study.Generalities, &study.CreatedTS)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &study, nil
}

func scanStudyRows(rows pgx.Rows) ([]*models.Study, error) {
	defer rows.Close()

	studies := make([]*models.Study, 0)
	for rows.Next() {
		study, err := scanStudyRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan study: %w", err)
		}
		studies = append(studies, study)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating study rows: %w", err)
	}
	return studies, nil
}

func (r *StudyRepository) Create(ctx context.Context, study *models.Study) (*models.Study, error) {
	study.Key = uuid.New().String()
	if study.CreatedTS.IsZero() {
		study.CreatedTS = time.Now().UTC()
	}

	query := `
		INSERT INTO studies AS s (key, team_key, generalities, created_ts)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + studyColumns

	return scanStudyRow(r.db.Conn(ctx).QueryRow(ctx, query,
		study.Key, study.TeamKey, study.Generalities, study.CreatedTS,
	))
}

func (r *StudyRepository) GetByKey(ctx context.Context, key string) (*models.Study, error) {
	query := `SELECT ` + studyColumns + ` FROM studies s WHERE s.key = $1`
	return scanStudyRow(r.db.Conn(ctx).QueryRow(ctx, query, key))
}

func (r *StudyRepository) List(ctx context.Context) ([]*models.Study, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, `SELECT `+studyColumns+` FROM studies s ORDER BY s.created_ts`)
	if err != nil {
		return nil, fmt.Errorf("failed to query studies: %w", err)
	}
	return scanStudyRows(rows)
}

// ListByResearcher returns the studies owned by the researcher's teams
func (r *StudyRepository) ListByResearcher(ctx context.Context, researcherKey string) ([]*models.Study, error) {
	query := `
		SELECT ` + studyColumns + ` FROM studies s
		JOIN teams t ON t.key = s.team_key
		WHERE $1 = ANY(t.researchers_keys)
		ORDER BY s.created_ts
	`

	rows, err := r.db.Conn(ctx).Query(ctx, query, researcherKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query studies by researcher: %w", err)
	}
	return scanStudyRows(rows)
}

// ListByParticipant returns the studies the participant has a status entry for
func (r *StudyRepository) ListByParticipant(ctx context.Context, userKey string) ([]*models.Study, error) {
	query := `
		SELECT ` + studyColumns + ` FROM studies s
		WHERE s.key IN (
			SELECT ps->>'studyKey'
			FROM participants p, jsonb_array_elements(p.studies) AS ps
			WHERE p.user_key = $1
		)
		ORDER BY s.created_ts
	`

	rows, err := r.db.Conn(ctx).Query(ctx, query, userKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query studies by participant: %w", err)
	}
	return scanStudyRows(rows)
}

// ResearcherOwnsStudy reports whether the researcher belongs to the team owning the study
func (r *StudyRepository) ResearcherOwnsStudy(ctx context.Context, researcherKey, studyKey string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM studies s
			JOIN teams t ON t.key = s.team_key
			WHERE s.key = $1 AND $2 = ANY(t.researchers_keys)
		)
	`

	var ok bool
	if err := r.db.Conn(ctx).QueryRow(ctx, query, studyKey, researcherKey).Scan(&ok); err != nil {
		return false, database.MapPostgresError(err)
	}
	return ok, nil
}
