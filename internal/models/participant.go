package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Participant study statuses used by the mobile app. The server stores
// whatever the client sends; these only drive the notification emails.
const (
	StudyStatusInvited   = "invited"
	StudyStatusAccepted  = "accepted"
	StudyStatusRejected  = "rejected"
	StudyStatusWithdrawn = "withdrawn"
	StudyStatusCompleted = "completed"
)

// ParticipantProfile holds the fields a participant edits about themselves
type ParticipantProfile struct {
	Name               string          `json:"name,omitempty"`
	Surname            string          `json:"surname,omitempty"`
	DateOfBirth        string          `json:"dateOfBirth,omitempty"`
	Sex                string          `json:"sex,omitempty"`
	Country            string          `json:"country,omitempty"`
	Language           string          `json:"language,omitempty"`
	Height             float64         `json:"height,omitempty"`
	Weight             float64         `json:"weight,omitempty"`
	Diseases           json.RawMessage `json:"diseases,omitempty"`
	Medications        json.RawMessage `json:"medications,omitempty"`
	Lifestyle          json.RawMessage `json:"lifestyle,omitempty"`
	StudiesSuggestions bool            `json:"studiesSuggestions"`
}

// profileFields are the JSON names of ParticipantProfile
var profileFields = map[string]struct{}{
	"name": {}, "surname": {}, "dateOfBirth": {}, "sex": {}, "country": {}, "language": {},
	"height": {}, "weight": {}, "diseases": {}, "medications": {}, "lifestyle": {},
	"studiesSuggestions": {},
}

// ProfilePatch holds only the profile fields present in an update body.
// Stored profiles are merged with it key by key.
type ProfilePatch map[string]json.RawMessage

// NewProfilePatch extracts the profile fields of a JSON object. Other keys
// (studies, createdTS, userKey...) are dropped. Values must decode into the
// ParticipantProfile field types.
func NewProfilePatch(body []byte) (ProfilePatch, error) {
	var typed ParticipantProfile
	if err := json.Unmarshal(body, &typed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	patch := make(ProfilePatch, len(raw))
	for k, v := range raw {
		if _, ok := profileFields[k]; ok {
			patch[k] = v
		}
	}
	return patch, nil
}

type TaskItemConsent struct {
	TaskID       int        `json:"taskId"`
	Consented    bool       `json:"consented"`
	LastExecuted *time.Time `json:"lastExecuted,omitempty"`
}

type ExtraItemConsent struct {
	Consented bool `json:"consented"`
}

// StudyStatus is a participant's enrollment state for one study
type StudyStatus struct {
	StudyKey          string             `json:"studyKey"`
	CurrentStatus     string             `json:"currentStatus" validate:"required"`
	Timestamp         *time.Time         `json:"timestamp" validate:"required"`
	WithdrawalReason  string             `json:"withdrawalReason,omitempty" validate:"required_if=CurrentStatus withdrawn"`
	CriteriaAnswers   json.RawMessage    `json:"criteriaAnswers,omitempty"`
	TaskItemsConsent  []TaskItemConsent  `json:"taskItemsConsent,omitempty"`
	ExtraItemsConsent []ExtraItemConsent `json:"extraItemsConsent,omitempty"`
	// Extra keeps any other fields the client sent so the entry round-trips unchanged
	Extra map[string]json.RawMessage `json:"-"`
}

var studyStatusKeys = map[string]struct{}{
	"studyKey": {}, "currentStatus": {}, "timestamp": {}, "withdrawalReason": {},
	"criteriaAnswers": {}, "taskItemsConsent": {}, "extraItemsConsent": {},
}

// studyStatusFields has StudyStatus's layout without its JSON methods
type studyStatusFields StudyStatus

func (s *StudyStatus) UnmarshalJSON(b []byte) error {
	var known studyStatusFields
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}

	known.Extra = nil
	for k, v := range all {
		if _, ok := studyStatusKeys[k]; ok {
			continue
		}
		if known.Extra == nil {
			known.Extra = make(map[string]json.RawMessage)
		}
		known.Extra[k] = v
	}
	*s = StudyStatus(known)
	return nil
}

func (s StudyStatus) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(studyStatusFields(s))
	if err != nil || len(s.Extra) == 0 {
		return b, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	for k, v := range s.Extra {
		if _, ok := studyStatusKeys[k]; !ok {
			all[k] = v
		}
	}
	return json.Marshal(all)
}

type Participant struct {
	Key     string `json:"_key"`
	UserKey string `json:"userKey"`
	ParticipantProfile
	Studies   []StudyStatus `json:"studies"`
	CreatedTS time.Time     `json:"createdTS"`
	UpdatedTS *time.Time    `json:"updatedTS,omitempty"`
}

// StudyIndex returns the position of the entry for studyKey, or -1
func (p *Participant) StudyIndex(studyKey string) int {
	for i := range p.Studies {
		if p.Studies[i].StudyKey == studyKey {
			return i
		}
	}
	return -1
}

// StatusCount is one row of the per-study status statistics
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}
