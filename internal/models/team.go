package models

import "time"

// Team groups researchers that share access to the team's studies
type Team struct {
	Key              string    `json:"_key"`
	Name             string    `json:"name"`
	CreatedTS        time.Time `json:"createdTS"`
	InvitationCode   string    `json:"invitationCode,omitempty"`
	InvitationExpiry time.Time `json:"invitationExpiry"`
	ResearchersKeys  []string  `json:"researchersKeys"`
}

// HasResearcher reports whether the user key is a member of the team
func (t *Team) HasResearcher(userKey string) bool {
	for _, k := range t.ResearchersKeys {
		if k == userKey {
			return true
		}
	}
	return false
}
