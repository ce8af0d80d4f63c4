package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the "type" claim
const (
	TokenTypeAccess     = "access"
	TokenTypeReset      = "reset"
	TokenTypeInvitation = "invitation"
)

type TokenClaims struct {
	Type    string `json:"type"`
	UserKey string `json:"userKey,omitempty"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role,omitempty"`
	TeamKey string `json:"teamKey,omitempty"`
	jwt.RegisteredClaims
}
