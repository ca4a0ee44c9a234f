package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
	"github.com/aussiebroadwan/assetflow/internal/auth/store"
	"github.com/aussiebroadwan/assetflow/pkg/idx"
	"github.com/aussiebroadwan/assetflow/pkg/jwtx"
	"github.com/aussiebroadwan/assetflow/pkg/slogx"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// VerifyMFA redeems the code sent for a challenged login and issues tokens.
// A challenge can be redeemed once. A late code leaves it unused; wrong codes
// are counted and the challenge is burned once Policy.MFAMaxAttempts is hit.
func (s *LoginService) VerifyMFA(ctx context.Context, tempToken, code, ip string) (*TokenGrant, error) {
	now := s.now()

	accountID, err := s.Tokens.Verify(tempToken, jwtx.TypeTempSession)
	if err != nil {
		return nil, ErrInvalidSession
	}

	ch, err := s.Store.MFAChallenges().GetUnusedChallengeByToken(ctx, tempToken)
	if errors.Is(err, store.ErrNotFound) || (err == nil && ch.AccountID != accountID) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}

	if ch.Expired(now) {
		s.audit(auditEvent(accountID, domain.ActionTwoFAFailed, "mfa_challenges", ch.ID, domain.LevelWarning,
			map[string]any{"reason": "expired", "ip": ip}, now))
		return nil, ErrChallengeExpired
	}
	if subtle.ConstantTimeCompare([]byte(ch.Code), []byte(code)) != 1 {
		return nil, s.rejectCode(ctx, ch, ip, now)
	}

	acct, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if acct.Status != domain.StatusActive {
		return nil, &AccountStateError{Status: acct.Status}
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MFAChallenges().ConsumeChallenge(ctx, ch.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrChallengeNotFound
			}
			return err
		}
		if ch.FingerprintHash != "" {
			if err := trustDevice(ctx, tx, acct.ID, ch.FingerprintHash, ch.IPAddress, now); err != nil {
				return err
			}
		}
		return tx.Accounts().UpdateLastLogin(ctx, acct.ID, now)
	})
	if errors.Is(err, ErrChallengeNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("redeem challenge: %w", err)
	}

	grant, err := s.Tokens.IssueGrant(acct, s.Roles.Label(acct), false, []string{amrPassword, amrMFA}, now)
	if err != nil {
		return nil, err
	}

	s.audit(auditEvent(acct.ID, domain.ActionTwoFAVerified, "mfa_challenges", ch.ID, domain.LevelInfo,
		map[string]any{"ip": ip}, now))
	s.Metrics.LoginOutcome("mfa_verified")
	slogx.FromContext(ctx).Info("mfa verified", "account_id", acct.ID)
	return grant, nil
}

// rejectCode counts a wrong code against the challenge and burns it once the
// attempt cap is reached.
func (s *LoginService) rejectCode(ctx context.Context, ch domain.MFAChallenge, ip string, now time.Time) error {
	maxAttempts := s.Policy.MFAMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultPolicy().MFAMaxAttempts
	}

	attempts, err := s.Store.MFAChallenges().RecordFailedAttempt(ctx, ch.ID, maxAttempts)
	if errors.Is(err, store.ErrNotFound) {
		return ErrChallengeNotFound
	}
	if err != nil {
		return fmt.Errorf("record mfa failure: %w", err)
	}

	reason, level, result := "invalid_code", domain.LevelWarning, ErrInvalidCode
	if attempts >= maxAttempts {
		reason, level, result = "too_many_attempts", domain.LevelCritical, ErrTooManyMFAAttempts
		slogx.FromContext(ctx).Warn("mfa challenge burned", "account_id", ch.AccountID, "attempts", attempts)
	}
	s.audit(auditEvent(ch.AccountID, domain.ActionTwoFAFailed, "mfa_challenges", ch.ID, level,
		map[string]any{"reason": reason, "ip": ip, "attempts": attempts}, now))
	return result
}

// trustDevice marks the fingerprint as a trusted device, creating the row
// when it is new.
func trustDevice(ctx context.Context, tx store.Tx, accountID, fpHash, ip string, now time.Time) error {
	d, err := tx.Devices().GetDevice(ctx, accountID, fpHash)
	switch {
	case err == nil:
		return tx.Devices().TouchDevice(ctx, d.ID, now)
	case errors.Is(err, store.ErrNotFound):
		return tx.Devices().CreateDevice(ctx, domain.Device{
			ID:               idx.NewAt(now).String(),
			AccountID:        accountID,
			FingerprintHash:  fpHash,
			IPAtRegistration: ip,
			FirstSeen:        now,
			LastSeen:         now,
			Trusted:          true,
		})
	default:
		return err
	}
}

// ForcePasswordChange sets a new password for the holder of a temp session
// token issued because the password expired. When that login also required
// MFA the challenge must have been verified first. Each token changes the
// password once; the caller must log in again afterwards.
func (s *LoginService) ForcePasswordChange(ctx context.Context, tempToken, newPassword, ip string) error {
	now := s.now()

	sess, err := s.Tokens.VerifyTempSession(tempToken)
	if err != nil {
		return ErrInvalidSession
	}
	if !sess.PasswordChange {
		return ErrNoPasswordChange
	}
	if len(newPassword) < s.Policy.MinPasswordLength {
		return ErrWeakPassword
	}

	if sess.RequireMFA {
		ch, err := s.Store.MFAChallenges().GetChallengeByToken(ctx, tempToken)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load challenge: %w", err)
		}
		if err != nil || !ch.Verified || ch.AccountID != sess.AccountID {
			return ErrMFARequired
		}
	}

	acct, err := s.Store.Accounts().GetAccountByID(ctx, sess.AccountID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if acct.Status != domain.StatusActive {
		return &AccountStateError{Status: acct.Status}
	}
	if acct.LastPasswordChange != nil && !acct.LastPasswordChange.Before(sess.IssuedAt) {
		return ErrInvalidSession
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().UpdatePassword(ctx, acct.ID, hash, now); err != nil {
			return err
		}
		return tx.Accounts().ResetLoginAttempts(ctx, acct.ID)
	})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.audit(auditEvent(acct.ID, domain.ActionPasswordChange, "accounts", acct.ID, domain.LevelInfo,
		map[string]any{"ip": ip, "forced": true}, now))
	slogx.FromContext(ctx).Info("password changed", "account_id", acct.ID)
	return nil
}

// UnlockAccount lifts a temp-disable using the token mailed after a
// timezone hold. It reports false when the account was not disabled.
func (s *LoginService) UnlockAccount(ctx context.Context, token, ip string) (bool, error) {
	now := s.now()

	accountID, err := s.Tokens.Verify(token, jwtx.TypeUnlock)
	if err != nil {
		return false, ErrInvalidUnlockToken
	}

	acct, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return false, ErrInvalidUnlockToken
	}
	if err != nil {
		return false, fmt.Errorf("load account: %w", err)
	}

	if acct.Status != domain.StatusTempDisabled {
		return false, nil
	}
	if err := s.reactivate(ctx, &acct); err != nil {
		return false, err
	}

	s.audit(auditEvent(acct.ID, domain.ActionAccountUnlocked, "accounts", acct.ID, domain.LevelInfo,
		map[string]any{"ip": ip, "method": "unlock_token"}, now))
	slogx.FromContext(ctx).Info("account unlocked", "account_id", acct.ID)
	return true, nil
}

// WhitelistIP adds ip to the account's whitelist after the caller proves
// possession of a fresh MFA code.
func (s *LoginService) WhitelistIP(ctx context.Context, accountID, code, ip string) error {
	now := s.now()

	ch, err := s.Store.MFAChallenges().GetLatestUnusedChallengeByCode(ctx, accountID, code)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("load challenge: %w", err)
	}
	if ch.Expired(now) {
		return ErrChallengeExpired
	}

	entry := domain.IPWhitelistEntry{
		ID:            idx.NewAt(now).String(),
		AccountID:     accountID,
		IPAddress:     ip,
		Type:          domain.WhitelistManual,
		WhitelistedAt: now,
	}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MFAChallenges().ConsumeChallenge(ctx, ch.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidCode
			}
			return err
		}
		listed, err := tx.IPWhitelist().IsWhitelisted(ctx, accountID, ip)
		if err != nil {
			return err
		}
		if listed {
			return ErrAlreadyWhitelisted
		}
		if err := tx.IPWhitelist().AddIP(ctx, entry); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrAlreadyWhitelisted
			}
			return err
		}
		return nil
	})
	if errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrAlreadyWhitelisted) {
		return err
	}
	if err != nil {
		return fmt.Errorf("whitelist ip: %w", err)
	}

	s.audit(auditEvent(accountID, domain.ActionCreate, "ip_whitelist", entry.ID, domain.LevelInfo,
		map[string]any{"ip": ip, "type": string(domain.WhitelistManual)}, now))
	return nil
}

// Devices lists the account's remembered devices, most recent first.
func (s *LoginService) Devices(ctx context.Context, accountID string) ([]domain.Device, error) {
	devices, err := s.Store.Devices().ListDevices(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// ForgetDevice soft-deletes a device so the next login from it is treated
// as new.
func (s *LoginService) ForgetDevice(ctx context.Context, accountID, deviceID, ip string) error {
	now := s.now()

	err := s.Store.Devices().SoftDeleteDevice(ctx, accountID, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrDeviceNotFound
	}
	if err != nil {
		return fmt.Errorf("forget device: %w", err)
	}

	s.audit(auditEvent(accountID, domain.ActionDelete, "device_fingerprints", deviceID, domain.LevelInfo,
		map[string]any{"ip": ip}, now))
	return nil
}

// LoginHistory returns the newest login attempts for an account. limit is
// clamped to [1, MaxHistoryLimit] with DefaultHistoryLimit for zero.
func (s *LoginService) LoginHistory(ctx context.Context, accountID string, limit int) ([]domain.LoginAttempt, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	attempts, err := s.Store.LoginAttempts().ListAttempts(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}
