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

const userColumns = `u.key, u.email, u.hashed_password, u.role, u.created_ts`

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// rowScanner is implemented by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	err := scanner.Scan(&user.Key, &user.Email, &user.HashedPassword, &user.Role, &user.CreatedTS)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &user, nil
}

func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.Key = uuid.New().String()
	user.Email = strings.ToLower(user.Email)
	if user.CreatedTS.IsZero() {
		user.CreatedTS = time.Now().UTC()
	}

	query := `
		INSERT INTO users AS u (key, email, hashed_password, role, created_ts)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	return scanUserRow(r.db.Conn(ctx).QueryRow(ctx, query,
		user.Key, user.Email, user.HashedPassword, user.Role, user.CreatedTS,
	))
}

func (r *UserRepository) GetByKey(ctx context.Context, key string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.key = $1`
	return scanUserRow(r.db.Conn(ctx).QueryRow(ctx, query, key))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.email = $1`
	return scanUserRow(r.db.Conn(ctx).QueryRow(ctx, query, strings.ToLower(email)))
}

// List returns every user, or only those holding role when it is not empty
func (r *UserRepository) List(ctx context.Context, role string) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users u
		WHERE ($1 = '' OR u.role = $1)
		ORDER BY u.created_ts
	`

	rows, err := r.db.Conn(ctx).Query(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return scanUserRows(rows)
}

// ListByStudy returns the users whose participant profile is enrolled in the study
func (r *UserRepository) ListByStudy(ctx context.Context, studyKey string) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users u
		JOIN participants p ON p.user_key = u.key
		WHERE p.studies @> jsonb_build_array(jsonb_build_object('studyKey', $1::text))
		ORDER BY u.created_ts
	`

	rows, err := r.db.Conn(ctx).Query(ctx, query, studyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by study: %w", err)
	}
	return scanUserRows(rows)
}

// ListByResearcher returns the participant users enrolled in any study owned
// by a team the researcher belongs to
func (r *UserRepository) ListByResearcher(ctx context.Context, researcherKey string) ([]*models.User, error) {
	query := `
		SELECT DISTINCT ` + userColumns + ` FROM users u
		JOIN participants p ON p.user_key = u.key
		CROSS JOIN LATERAL jsonb_array_elements(p.studies) AS ps
		JOIN studies s ON s.key = ps->>'studyKey'
		JOIN teams t ON t.key = s.team_key
		WHERE $1 = ANY(t.researchers_keys)
		ORDER BY u.created_ts
	`

	rows, err := r.db.Conn(ctx).Query(ctx, query, researcherKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by researcher: %w", err)
	}
	return scanUserRows(rows)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, key, hashedPassword string) error {
	query := `UPDATE users SET hashed_password = $2 WHERE key = $1`

	tag, err := r.db.Conn(ctx).Exec(ctx, query, key, hashedPassword)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, key string) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM users WHERE key = $1`, key)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
