package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSuspiciousIP       = errors.New("login blocked due to suspicious activity")
	ErrInvalidSession     = errors.New("invalid or expired session token")
	ErrChallengeNotFound  = errors.New("invalid mfa session")
	ErrChallengeExpired   = errors.New("mfa code expired")
	ErrInvalidCode        = errors.New("invalid mfa code")
	ErrTooManyMFAAttempts = errors.New("too many invalid mfa codes")
	ErrMFARequired        = errors.New("mfa verification required")
	ErrNoPasswordChange   = errors.New("session does not permit a password change")
	ErrInvalidUnlockToken = errors.New("invalid or expired unlock token")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAlreadyWhitelisted = errors.New("ip already whitelisted")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrWeakPassword       = errors.New("password too short")
)

// AccountDisabledError is returned while a temp-disable is in force.
type AccountDisabledError struct {
	Remaining time.Duration
}

func (e *AccountDisabledError) Error() string {
	return fmt.Sprintf("account temporarily disabled. Try again in %.1f hours", e.Remaining.Hours())
}

// AccountStateError is returned when the account status does not permit a
// login.
type AccountStateError struct {
	Status             domain.AccountStatus
	AwaitingActivation bool
}

func (e *AccountStateError) Error() string {
	switch {
	case e.Status == domain.StatusDeleted:
		return "account no longer exists, contact support"
	case e.AwaitingActivation:
		return "account awaiting activation, contact support"
	case e.Status == domain.StatusSuspended:
		return "account suspended, contact support"
	default:
		return "account not active, contact support"
	}
}

// SecurityHoldError is returned when a login was blocked and the account
// disabled until the owner unlocks it out of band.
type SecurityHoldError struct {
	Timezone        string
	UnlockTokenSent bool
}

func (e *SecurityHoldError) Error() string {
	return "login blocked due to timezone mismatch"
}
