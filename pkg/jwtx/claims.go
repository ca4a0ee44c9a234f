package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType discriminates what a token may be used for. A verifier that
// accepts one type must reject every other.
type TokenType string

const (
	TypeAccess      TokenType = "access"
	TypeRefresh     TokenType = "refresh"
	TypeTempSession TokenType = "temp_session"
	TypeUnlock      TokenType = "unlock"
)

// Claims are the claims carried by every token the service mints.
type Claims struct {
	jwt.RegisteredClaims

	Type TokenType `json:"type"`

	// Role label and department are only set on access tokens.
	Role         string `json:"role,omitempty"`
	DepartmentID string `json:"dept_id,omitempty"`

	// Authentication Methods Reference ["pwd","mfa"]
	AMR []string `json:"amr,omitempty"`

	// Temp session tokens record what the pending login still owes.
	MFAPending     bool `json:"mfa,omitempty"`
	PasswordChange bool `json:"pwd_change,omitempty"`
}

// NewClaims builds minimally-correct claims of the given type.
func NewClaims(typ TokenType, subject, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Type: typ,
	}
}

// NewJTI returns a unique identifier for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	return c.ValidateExpiryAt(time.Now())
}

func (c *Claims) ValidateExpiryAt(now time.Time) error {
	if c.ExpiresAt != nil && !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}

// ValidateType rejects tokens minted for another purpose.
func (c *Claims) ValidateType(expected TokenType) error {
	if c.Type != expected {
		return ErrWrongType
	}
	return nil
}
