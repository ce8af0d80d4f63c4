package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BradenHooton/mobistudy/internal/auth"
	"github.com/BradenHooton/mobistudy/internal/models"
	"github.com/BradenHooton/mobistudy/internal/repositories"
)

// TeamRepository defines the interface for team data access
type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) (string, error)
	GetByKey(ctx context.Context, key string) (*models.Team, error)
	GetByName(ctx context.Context, name string) (*models.Team, error)
	List(ctx context.Context, filter repositories.TeamFilter) ([]*models.Team, error)
	Replace(ctx context.Context, key string, team *models.Team) error
	GetByKeyForUpdate(ctx context.Context, key string) (*models.Team, error)
	AddResearcher(ctx context.Context, key, invitationCode, userKey string) (bool, error)
}

type TeamService struct {
	repo   TeamRepository
	tm     *auth.TokenManager
	tx     Transactor
	audit  Auditor
	logger *slog.Logger
}

func NewTeamService(repo TeamRepository, tm *auth.TokenManager, tx Transactor, audit Auditor, logger *slog.Logger) *TeamService {
	return &TeamService{repo: repo, tm: tm, tx: tx, audit: audit, logger: logger}
}

// Create stores a new team with a fresh invitation code
func (s *TeamService) Create(ctx context.Context, caller *models.Caller, name string) (*models.Team, error) {
	name = strings.TrimSpace(name)

	_, err := s.repo.GetByName(ctx, name)
	if err == nil {
		return nil, models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.ErrorContext(ctx, "failed to check team name", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	team := &models.Team{Name: name, ResearchersKeys: []string{}}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		key, err := s.repo.Create(ctx, team)
		if err != nil {
			return err
		}
		// the code embeds the key, so it can only be issued once the key exists
		team.InvitationCode, team.InvitationExpiry, err = s.tm.GenerateInvitationCode(key)
		if err != nil {
			return err
		}
		return s.repo.Replace(ctx, key, team)
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.ErrorContext(ctx, "failed to create team", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.InfoContext(ctx, "team created", slog.String("team_key", team.Key))
	s.audit.Log(ctx, AuditEntry{
		Event:   models.AuditEventTeamCreated,
		UserKey: caller.UserKey,
		Message: "Team " + team.Name + " created",
		RefData: models.AuditRefTeams,
		RefKey:  team.Key,
	})
	return team, nil
}

func (s *TeamService) Get(ctx context.Context, key string) (*models.Team, error) {
	team, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.ErrorContext(ctx, "failed to get team", slog.String("team_key", key), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return team, nil
}

// List returns every team for admins and the caller's own teams for researchers
func (s *TeamService) List(ctx context.Context, caller *models.Caller) ([]*models.Team, error) {
	var filter repositories.TeamFilter
	switch {
	case caller.IsAdmin():
	case caller.IsResearcher():
		filter.ResearcherKey = caller.UserKey
	default:
		return nil, models.ErrForbidden
	}

	teams, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list teams", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return teams, nil
}

// RotateInvitationCode issues a new invitation code for the team. The row is
// locked while it is rewritten so concurrent joins are not lost.
func (s *TeamService) RotateInvitationCode(ctx context.Context, key string) (*models.Team, error) {
	var team *models.Team
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		team, err = s.repo.GetByKeyForUpdate(ctx, key)
		if err != nil {
			return err
		}
		team.InvitationCode, team.InvitationExpiry, err = s.tm.GenerateInvitationCode(team.Key)
		if err != nil {
			return err
		}
		return s.repo.Replace(ctx, team.Key, team)
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.ErrorContext(ctx, "failed to rotate invitation code", slog.String("team_key", key), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return team, nil
}

// AddResearcher adds the caller to the team encoded in invitationCode.
// Returns a token error for invalid, expired or rotated codes.
func (s *TeamService) AddResearcher(ctx context.Context, caller *models.Caller, invitationCode string) (*models.Team, error) {
	teamKey, err := s.tm.ValidateInvitationCode(invitationCode)
	if err != nil {
		s.logger.InfoContext(ctx, "invitation code rejected", slog.Any("error", err))
		return nil, err
	}

	team, err := s.Get(ctx, teamKey)
	if err != nil {
		return nil, err
	}

	// a rotated code invalidates older ones
	if team.InvitationCode != invitationCode {
		return nil, models.ErrTokenInvalid
	}
	if team.HasResearcher(caller.UserKey) {
		return team, nil
	}

	added, err := s.repo.AddResearcher(ctx, team.Key, invitationCode, caller.UserKey)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to add researcher to team", slog.String("team_key", team.Key), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// reload to pick up joins that landed in between
	team, err = s.Get(ctx, teamKey)
	if err != nil {
		return nil, err
	}
	if !added {
		if team.HasResearcher(caller.UserKey) {
			return team, nil
		}
		// the code was rotated after it was checked
		return nil, models.ErrTokenInvalid
	}

	s.logger.InfoContext(ctx, "researcher added to team", slog.String("team_key", team.Key), slog.String("user_key", caller.UserKey))
	s.audit.Log(ctx, AuditEntry{
		Event:   models.AuditEventResearcherAdded,
		UserKey: caller.UserKey,
		Message: "Researcher added to team " + team.Name,
		RefData: models.AuditRefTeams,
		RefKey:  team.Key,
	})
	return team, nil
}
