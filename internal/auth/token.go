package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/mobistudy/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager signs and verifies the service's HS256 tokens: bearer access
// tokens, password reset tokens and team invitation codes
type TokenManager struct {
	secret           []byte
	accessExpiry     time.Duration
	resetExpiry      time.Duration
	invitationExpiry time.Duration
	now              func() time.Time
}

func NewTokenManager(secret string, accessExpiry, resetExpiry, invitationExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:           []byte(secret),
		accessExpiry:     accessExpiry,
		resetExpiry:      resetExpiry,
		invitationExpiry: invitationExpiry,
		now:              time.Now,
	}
}

func (tm *TokenManager) sign(claims *models.TokenClaims, expiry time.Duration) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(expiry)

	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", claims.Type, err)
	}
	return signed, expiresAt, nil
}

// parse verifies the signature only; expiry is checked by the caller against
// the decoded claim
func (tm *TokenManager) parse(tokenString, tokenType string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}

	if claims.Type != tokenType {
		return nil, fmt.Errorf("%w: unexpected token type %q", models.ErrTokenInvalid, claims.Type)
	}

	if claims.ExpiresAt == nil || !tm.now().Before(claims.ExpiresAt.Time) {
		return nil, models.ErrTokenExpired
	}

	return claims, nil
}

func (tm *TokenManager) GenerateAccessToken(user *models.User) (string, error) {
	token, _, err := tm.sign(&models.TokenClaims{
		Type:    models.TokenTypeAccess,
		UserKey: user.Key,
		Email:   user.Email,
		Role:    user.Role,
	}, tm.accessExpiry)
	return token, err
}

func (tm *TokenManager) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	claims, err := tm.parse(tokenString, models.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	if claims.UserKey == "" {
		return nil, fmt.Errorf("%w: missing user key", models.ErrTokenInvalid)
	}
	return claims, nil
}

// GenerateResetToken signs a password reset token embedding the email
func (tm *TokenManager) GenerateResetToken(email string) (string, error) {
	token, _, err := tm.sign(&models.TokenClaims{
		Type:  models.TokenTypeReset,
		Email: email,
	}, tm.resetExpiry)
	return token, err
}

// ValidateResetToken returns the email embedded in a reset token.
// Returns models.ErrTokenExpired once the exp claim has passed.
func (tm *TokenManager) ValidateResetToken(tokenString string) (string, error) {
	claims, err := tm.parse(tokenString, models.TokenTypeReset)
	if err != nil {
		return "", err
	}
	if claims.Email == "" {
		return "", fmt.Errorf("%w: missing email", models.ErrTokenInvalid)
	}
	return claims.Email, nil
}

func (tm *TokenManager) GenerateInvitationCode(teamKey string) (string, time.Time, error) {
	return tm.sign(&models.TokenClaims{
		Type:    models.TokenTypeInvitation,
		TeamKey: teamKey,
	}, tm.invitationExpiry)
}

// ValidateInvitationCode returns the team key an invitation code grants access to
func (tm *TokenManager) ValidateInvitationCode(code string) (string, error) {
	claims, err := tm.parse(code, models.TokenTypeInvitation)
	if err != nil {
		return "", err
	}
	if claims.TeamKey == "" {
		return "", fmt.Errorf("%w: missing team key", models.ErrTokenInvalid)
	}
	return claims.TeamKey, nil
}

// IsTokenError reports whether err came from token verification
func IsTokenError(err error) bool {
	return errors.Is(err, models.ErrTokenInvalid) || errors.Is(err, models.ErrTokenExpired)
}
