package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
	"github.com/aussiebroadwan/assetflow/pkg/jwtx"
)

// TokenService mints and checks the typed JWTs the service hands out. Every
// token carries a "type" claim and is only accepted where that type is
// expected.
type TokenService struct {
	KeyManager     *jwtx.KeyManager
	Issuer         string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration // used when the client asks to be remembered
	TempSessionTTL time.Duration
	UnlockTTL      time.Duration
}

// TokenGrant is the result of a completed login.
type TokenGrant struct {
	AccessToken     string
	RefreshToken    string
	Role            string
	DepartmentID    string
	AccessExpiresIn time.Duration
}

// IssueGrant mints an access token carrying the role label and department,
// plus a refresh token. Without rememberMe the refresh token lives as long as
// the access token.
func (s *TokenService) IssueGrant(a domain.Account, role string, rememberMe bool, amr []string, now time.Time) (*TokenGrant, error) {
	access := jwtx.NewClaims(jwtx.TypeAccess, a.ID, s.Issuer, s.AccessTTL, now)
	access.Role = role
	access.DepartmentID = a.DepartmentID
	access.AMR = amr

	accessToken, err := s.sign(access)
	if err != nil {
		return nil, err
	}

	refreshTTL := s.AccessTTL
	if rememberMe {
		refreshTTL = s.RefreshTTL
	}
	refreshToken, err := s.sign(jwtx.NewClaims(jwtx.TypeRefresh, a.ID, s.Issuer, refreshTTL, now))
	if err != nil {
		return nil, err
	}

	return &TokenGrant{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		Role:            role,
		DepartmentID:    a.DepartmentID,
		AccessExpiresIn: s.AccessTTL,
	}, nil
}

// TempSession is what a temp session token says about the login that
// produced it.
type TempSession struct {
	AccountID      string
	RequireMFA     bool
	PasswordChange bool
	IssuedAt       time.Time
}

func (s *TokenService) IssueTempSession(ts TempSession, now time.Time) (string, error) {
	c := jwtx.NewClaims(jwtx.TypeTempSession, ts.AccountID, s.Issuer, s.TempSessionTTL, now)
	c.MFAPending = ts.RequireMFA
	c.PasswordChange = ts.PasswordChange
	return s.sign(c)
}

// VerifyTempSession checks a temp session token and returns its purpose.
func (s *TokenService) VerifyTempSession(token string) (TempSession, error) {
	c, err := s.verify(token, jwtx.TypeTempSession)
	if err != nil {
		return TempSession{}, err
	}
	ts := TempSession{
		AccountID:      c.Subject,
		RequireMFA:     c.MFAPending,
		PasswordChange: c.PasswordChange,
	}
	if c.IssuedAt != nil {
		ts.IssuedAt = c.IssuedAt.Time
	}
	return ts, nil
}

func (s *TokenService) IssueUnlock(accountID string, now time.Time) (string, error) {
	return s.sign(jwtx.NewClaims(jwtx.TypeUnlock, accountID, s.Issuer, s.UnlockTTL, now))
}

// Verify checks signature and expiry and that the token is of the expected
// type. It returns the subject.
func (s *TokenService) Verify(token string, typ jwtx.TokenType) (string, error) {
	c, err := s.verify(token, typ)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

func (s *TokenService) verify(token string, typ jwtx.TokenType) (jwtx.Claims, error) {
	if token == "" {
		return jwtx.Claims{}, errors.New("empty token")
	}
	claims, err := s.KeyManager.Verifier.Verify(token)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if err := claims.ValidateType(typ); err != nil {
		return jwtx.Claims{}, err
	}
	if claims.Subject == "" {
		return jwtx.Claims{}, errors.New("token has no subject")
	}
	return claims, nil
}

func (s *TokenService) sign(c jwtx.Claims) (string, error) {
	if s.KeyManager == nil || s.KeyManager.NumSigners() == 0 {
		return "", errors.New("no signing key available")
	}
	tok, err := s.KeyManager.Signer().Sign(c)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", c.Type, err)
	}
	return tok, nil
}
