package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/mobistudy/internal/models"
)

// Action names an operation checked by the Policy
type Action string

const (
	ActionUserList                     Action = "user.list"
	ActionUserRead                     Action = "user.read"
	ActionParticipantList              Action = "participant.list"
	ActionParticipantRead              Action = "participant.read"
	ActionParticipantCreate            Action = "participant.create"
	ActionParticipantUpdate            Action = "participant.update"
	ActionParticipantDelete            Action = "participant.delete"
	ActionParticipantUpdateStudyStatus Action = "participant.updateStudyStatus"
	ActionStudyCreate                  Action = "study.create"
	ActionStudyRead                    Action = "study.read"
	ActionStudyStats                   Action = "study.stats"
	ActionTeamCreate                   Action = "team.create"
	ActionTeamRead                     Action = "team.read"
	ActionTeamRotateInvitation         Action = "team.rotateInvitation"
	ActionTeamJoin                     Action = "team.join"
	ActionAuditRead                    Action = "audit.read"
	ActionTesterSendEmail              Action = "tester.sendEmail"
)

// Resource identifies what an action targets. Only the fields relevant to
// the action need to be set.
type Resource struct {
	UserKey  string
	StudyKey string
	TeamKey  string
}

type StudyScope interface {
	ResearcherOwnsStudy(ctx context.Context, researcherKey, studyKey string) (bool, error)
}

type ParticipantScope interface {
	IsInResearcherScope(ctx context.Context, researcherKey, userKey string) (bool, error)
}

type TeamFetcher interface {
	GetByKey(ctx context.Context, key string) (*models.Team, error)
}

// Policy is the single authorization decision point. Admins may do anything
// except act as a participant or join a team. Participants only reach their
// own records. Researchers reach the studies of their teams and the
// participants enrolled in those studies.
type Policy struct {
	studies      StudyScope
	participants ParticipantScope
	teams        TeamFetcher
}

func NewPolicy(studies StudyScope, participants ParticipantScope, teams TeamFetcher) *Policy {
	return &Policy{studies: studies, participants: participants, teams: teams}
}

// Authorize returns nil when caller may perform action on res,
// models.ErrForbidden when it may not, or a lookup error
func (p *Policy) Authorize(ctx context.Context, caller *models.Caller, action Action, res Resource) error {
	if caller == nil {
		return models.ErrUnauthorized
	}

	allowed, err := p.decide(ctx, caller, action, res)
	if err != nil {
		return fmt.Errorf("authorize %s: %w", action, err)
	}
	if !allowed {
		return models.ErrForbidden
	}
	return nil
}

func (p *Policy) decide(ctx context.Context, caller *models.Caller, action Action, res Resource) (bool, error) {
	switch action {
	case ActionParticipantCreate:
		return caller.IsParticipant(), nil
	case ActionTeamJoin:
		return caller.IsResearcher(), nil
	}

	if caller.IsAdmin() {
		return true, nil
	}

	switch action {
	case ActionUserList:
		if caller.IsResearcher() && res.StudyKey != "" {
			return p.ownsStudy(ctx, caller, res.StudyKey)
		}
		return true, nil

	case ActionUserRead, ActionParticipantRead, ActionParticipantUpdateStudyStatus:
		if res.UserKey == caller.UserKey {
			return true, nil
		}
		if caller.IsResearcher() {
			return p.participants.IsInResearcherScope(ctx, caller.UserKey, res.UserKey)
		}
		return false, nil

	case ActionParticipantUpdate, ActionParticipantDelete:
		return caller.IsParticipant() && res.UserKey == caller.UserKey, nil

	case ActionParticipantList:
		if caller.IsParticipant() {
			return true, nil
		}
		if !caller.IsResearcher() {
			return false, nil
		}
		if res.TeamKey != "" {
			ok, err := p.isTeamMember(ctx, caller, res.TeamKey)
			if err != nil || !ok {
				return false, err
			}
		}
		if res.StudyKey != "" {
			return p.ownsStudy(ctx, caller, res.StudyKey)
		}
		return true, nil

	case ActionStudyRead:
		if caller.IsResearcher() && res.StudyKey != "" {
			return p.ownsStudy(ctx, caller, res.StudyKey)
		}
		return caller.IsResearcher() || caller.IsParticipant(), nil

	case ActionStudyStats, ActionAuditRead:
		if !caller.IsResearcher() || res.StudyKey == "" {
			return false, nil
		}
		return p.ownsStudy(ctx, caller, res.StudyKey)

	case ActionStudyCreate, ActionTeamRead:
		if !caller.IsResearcher() {
			return false, nil
		}
		return p.isTeamMember(ctx, caller, res.TeamKey)
	}

	// team.create, team.rotateInvitation, tester.sendEmail and unknown actions
	return false, nil
}

func (p *Policy) ownsStudy(ctx context.Context, caller *models.Caller, studyKey string) (bool, error) {
	return p.studies.ResearcherOwnsStudy(ctx, caller.UserKey, studyKey)
}

func (p *Policy) isTeamMember(ctx context.Context, caller *models.Caller, teamKey string) (bool, error) {
	if teamKey == "" {
		return false, nil
	}
	team, err := p.teams.GetByKey(ctx, teamKey)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return team.HasResearcher(caller.UserKey), nil
}
