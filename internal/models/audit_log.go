package models

import (
	"encoding/json"
	"time"
)

// Audit events
const (
	AuditEventParticipantCreated     = "participantCreated"
	AuditEventParticipantUpdated     = "participantUpdated"
	AuditEventParticipantDeleted     = "participantDeleted"
	AuditEventParticipantStudyUpdate = "participantStudyUpdate"
	AuditEventUserCreated            = "userCreated"
	AuditEventPasswordReset          = "passwordReset"
	AuditEventTeamCreated            = "teamCreated"
	AuditEventResearcherAdded        = "researcherAddedToTeam"
	AuditEventStudyCreated           = "studyCreated"
)

// Referenced collections
const (
	AuditRefParticipants = "participants"
	AuditRefUsers        = "users"
	AuditRefTeams        = "teams"
	AuditRefStudies      = "studies"
)

type AuditLog struct {
	Key       string          `json:"_key"`
	Event     string          `json:"event"`
	UserKey   string          `json:"userKey"`
	StudyKey  string          `json:"studyKey,omitempty"`
	TaskID    *int            `json:"taskId,omitempty"`
	Message   string          `json:"message"`
	RefData   string          `json:"refData,omitempty"`
	RefKey    string          `json:"refKey,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// AuditLogFilter narrows an audit log listing; empty fields are ignored
type AuditLogFilter struct {
	Event    string
	UserKey  string
	StudyKey string
	Limit    int
	Offset   int
}
