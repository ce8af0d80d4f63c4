package models

import (
	"time"
)

// Roles a user can hold
const (
	RoleAdmin       = "admin"
	RoleResearcher  = "researcher"
	RoleParticipant = "participant"
)

type User struct {
	Key            string    `json:"_key"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	Role           string    `json:"role"`
	CreatedTS      time.Time `json:"createdTS"`
}

// Caller is the authenticated identity attached to a request
type Caller struct {
	UserKey string
	Email   string
	Role    string
}

func (c *Caller) IsAdmin() bool       { return c.Role == RoleAdmin }
func (c *Caller) IsResearcher() bool  { return c.Role == RoleResearcher }
func (c *Caller) IsParticipant() bool { return c.Role == RoleParticipant }
