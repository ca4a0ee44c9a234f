package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

var (
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrWrongType   = errors.New("jwtx: wrong token type")
)

// EdDSAVerifier validates JWTs signed with any Ed25519 key in a KeySet.
type EdDSAVerifier struct {
	keys   *KeySet
	issuer string
	aud    []string
	now    func() time.Time
}

func NewVerifierEdDSA(keys *KeySet, issuer string, aud []string) *EdDSAVerifier {
	return &EdDSAVerifier{keys: keys, issuer: issuer, aud: aud, now: time.Now}
}

// WithClock replaces the time source used for exp and nbf checks.
func (v *EdDSAVerifier) WithClock(now func() time.Time) *EdDSAVerifier {
	v.now = now
	return v
}

// Verify checks signature, issuer, audience and expiry. Token type is left
// to the caller since it depends on the endpoint.
func (v *EdDSAVerifier) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithTimeFunc(v.now),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("jwtx: missing kid")
		}
		pub, err := v.keys.Get(kid)
		if err != nil {
			return nil, fmt.Errorf("jwtx: unknown kid %q: %w", kid, err)
		}
		return pub, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, fmt.Errorf("jwtx: parse or verify: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, errors.New("jwtx: invalid token claims")
	}

	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(v.aud); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiryAt(v.now()); err != nil {
		return Claims{}, err
	}

	return *claims, nil
}
