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
	"github.com/lib/pq"
)

const teamColumns = `t.key, t.name, t.created_ts, t.invitation_code, t.invitation_expiry, t.researchers_keys`

// TeamFilter narrows a team listing. Empty fields are ignored.
type TeamFilter struct {
	ResearcherKey string
	// StudyKey keeps only the team owning that study
	StudyKey string
}

type TeamRepository struct {
	db *database.DB
}

func NewTeamRepository(db *database.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func scanTeamRow(scanner rowScanner) (*models.Team, error) {
	var team models.Team
	var expiry *time.Time
	keys := pq.StringArray{}

	err := scanner.Scan(&team.Key, &team.Name, &team.CreatedTS, &team.InvitationCode, &expiry, &keys)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if expiry != nil {
		team.InvitationExpiry = *expiry
	}
	team.ResearchersKeys = []string(keys)
	return &team, nil
}

func scanTeamRows(rows pgx.Rows) ([]*models.Team, error) {
	defer rows.Close()

	teams := make([]*models.Team, 0)
	for rows.Next() {
		team, err := scanTeamRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, team)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team rows: %w", err)
	}
	return teams, nil
}

// Create inserts the team and returns its assigned key
func (r *TeamRepository) Create(ctx context.Context, team *models.Team) (string, error) {
	team.Key = uuid.New().String()
	if team.CreatedTS.IsZero() {
		team.CreatedTS = time.Now().UTC()
	}
	if team.ResearchersKeys == nil {
		team.ResearchersKeys = []string{}
	}

	query := `
		INSERT INTO teams (key, name, created_ts, invitation_code, invitation_expiry, researchers_keys)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Conn(ctx).Exec(ctx, query,
		team.Key, team.Name, team.CreatedTS, team.InvitationCode,
		nullableTime(team.InvitationExpiry), pq.Array(team.ResearchersKeys),
	)
	if err != nil {
		return "", database.MapPostgresError(err)
	}
	return team.Key, nil
}

func (r *TeamRepository) GetByKey(ctx context.Context, key string) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams t WHERE t.key = $1`
	return scanTeamRow(r.db.Conn(ctx).QueryRow(ctx, query, key))
}

func (r *TeamRepository) GetByName(ctx context.Context, name string) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams t WHERE t.name = $1`
	return scanTeamRow(r.db.Conn(ctx).QueryRow(ctx, query, name))
}

func (r *TeamRepository) List(ctx context.Context, filter TeamFilter) ([]*models.Team, error) {
	var (
		conditions []string
		args       []any
	)

	from := `FROM teams t`
	if filter.StudyKey != "" {
		from += ` JOIN studies s ON s.team_key = t.key`
		args = append(args, filter.StudyKey)
		conditions = append(conditions, fmt.Sprintf("s.key = $%d", len(args)))
	}
	if filter.ResearcherKey != "" {
		args = append(args, filter.ResearcherKey)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(t.researchers_keys)", len(args)))
	}

	query := `SELECT ` + teamColumns + ` ` + from
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY t.created_ts`

	rows, err := r.db.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	return scanTeamRows(rows)
}

// GetByKeyForUpdate reads the team and locks its row until the surrounding
// transaction ends
func (r *TeamRepository) GetByKeyForUpdate(ctx context.Context, key string) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams t WHERE t.key = $1 FOR UPDATE`
	return scanTeamRow(r.db.Conn(ctx).QueryRow(ctx, query, key))
}

// AddResearcher appends userKey to the team's researchers in one statement,
// only while invitationCode is the team's current code. Reports whether a
// row changed.
func (r *TeamRepository) AddResearcher(ctx context.Context, key, invitationCode, userKey string) (bool, error) {
	query := `
		UPDATE teams
		SET researchers_keys = array_append(researchers_keys, $3)
		WHERE key = $1 AND invitation_code = $2 AND NOT ($3 = ANY(researchers_keys))
	`

	tag, err := r.db.Conn(ctx).Exec(ctx, query, key, invitationCode, userKey)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// Replace overwrites every mutable field of the team identified by key
func (r *TeamRepository) Replace(ctx context.Context, key string, team *models.Team) error {
	if team.ResearchersKeys == nil {
		team.ResearchersKeys = []string{}
	}

	query := `
		UPDATE teams
		SET name = $2, invitation_code = $3, invitation_expiry = $4, researchers_keys = $5
		WHERE key = $1
	`

	tag, err := r.db.Conn(ctx).Exec(ctx, query,
		key, team.Name, team.InvitationCode,
		nullableTime(team.InvitationExpiry), pq.Array(team.ResearchersKeys),
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	team.Key = key
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
