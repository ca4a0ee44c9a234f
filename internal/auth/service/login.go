package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
	"github.com/aussiebroadwan/assetflow/internal/auth/risk"
	"github.com/aussiebroadwan/assetflow/internal/auth/store"
	"github.com/aussiebroadwan/assetflow/internal/notify"
	"github.com/aussiebroadwan/assetflow/internal/obs"
	"github.com/aussiebroadwan/assetflow/pkg/cryptox"
	"github.com/aussiebroadwan/assetflow/pkg/idx"
	"github.com/aussiebroadwan/assetflow/pkg/slogx"
)

// MFA reasons reported with a challenge.
const (
	ReasonNewDevice       = "new_device"
	ReasonLastLoginStale  = "last_login_stale"
	ReasonLanguage        = "language_mismatch"
	ReasonOutsideHours    = "outside_working_hours"
	ReasonHighFraudScore  = "high_fraud_score"
	ReasonPasswordExpired = "password_expired"
)

// Authentication method references carried in access tokens.
const (
	amrPassword = "pwd"
	amrMFA      = "mfa"
)

// PasswordHasher is satisfied by cryptox.Argon2Hasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) error
}

// ReputationAssessor is satisfied by risk.Assessor.
type ReputationAssessor interface {
	Assess(ctx context.Context, ip string) risk.Assessment
}

type LoginRequest struct {
	Email          string
	Password       string
	Fingerprint    string
	Timezone       string
	Language       string
	RememberMe     bool
	IPAddress      string
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
}

// Challenge is returned instead of tokens when the login needs a second step.
type Challenge struct {
	TempSessionToken string
	RequireMFA       bool
	PasswordChange   bool
	Reasons          []string
}

// LoginOutcome holds exactly one of Challenge or Grant.
type LoginOutcome struct {
	Challenge *Challenge
	Grant     *TokenGrant
}

// LoginService runs the adaptive login state machine and the flows that
// complete or recover from it.
type LoginService struct {
	Store      store.Store
	Hasher     PasswordHasher
	Tokens     *TokenService
	Reputation ReputationAssessor // nil disables the reputation check
	Roles      RoleLabeler
	Codes      CodeGenerator
	Auditor    Auditor
	Notifier   notify.Notifier
	Templates  notify.Templates
	Metrics    *obs.Metrics
	Policy     Policy

	// Now is overridden in tests.
	Now func() time.Time
}

func (s *LoginService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *LoginService) audit(e domain.AuditEvent) {
	if s.Auditor != nil {
		s.Auditor.Enqueue(e)
	}
}

func (s *LoginService) notify(m notify.Message) {
	if s.Notifier != nil {
		s.Notifier.Notify(m)
	}
}

func (s *LoginService) tracker() *LockoutTracker {
	return &LockoutTracker{
		Policy:    s.Policy,
		Auditor:   s.Auditor,
		Notifier:  s.Notifier,
		Templates: s.Templates,
		Metrics:   s.Metrics,
	}
}

func (s *LoginService) codes() CodeGenerator {
	if s.Codes != nil {
		return s.Codes
	}
	return HOTPCodes{Digits: 6}
}

func normaliseRequest(req *LoginRequest) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Timezone = strings.TrimSpace(req.Timezone)
	req.Language = strings.TrimSpace(req.Language)
	if req.Timezone == "" {
		req.Timezone = risk.Unknown
	}
	if req.Language == "" {
		req.Language = risk.Unknown
	}
}

// Login authenticates a password login and decides between issuing tokens,
// challenging for MFA or a password change, or blocking the attempt.
func (s *LoginService) Login(ctx context.Context, req LoginRequest) (*LoginOutcome, error) {
	normaliseRequest(&req)
	now := s.now()
	log := slogx.FromContext(ctx)

	fpHash := risk.HashFingerprint(req.Fingerprint, s.Policy.FingerprintSecret)
	client := risk.ParseDevice(req.UserAgent)
	attempt := domain.LoginAttempt{
		Email:           req.Email,
		IPAddress:       req.IPAddress,
		FingerprintHash: fpHash,
		DeviceInfo:      req.UserAgent,
		Browser:         client.Browser,
		OS:              client.OS,
		Timezone:        req.Timezone,
		Language:        req.Language,
		Timestamp:       now,
	}
	event := notify.Event{IPAddress: req.IPAddress, UserAgent: req.UserAgent, Timezone: req.Timezone}

	// 1. credentials
	acct, err := s.Store.Accounts().GetAccountByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		attempt.ID = idx.NewAt(now).String()
		attempt.FailureReason = "Invalid credentials"
		if err := s.Store.LoginAttempts().RecordAttempt(ctx, attempt); err != nil {
			log.Error("record attempt for unknown email", "err", err)
		}
		s.Metrics.LoginOutcome("invalid_credentials")
		log.Info("login for unknown email", "ip", req.IPAddress)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if err := s.Hasher.Verify(req.Password, acct.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrMismatch) {
			log.Error("stored password hash unusable", "account_id", acct.ID, "err", err)
		}
		return nil, s.failLogin(ctx, acct, attempt, now)
	}

	// 2. temp-disable still in force
	if acct.IsTempDisabled(now) {
		s.Metrics.LoginOutcome("temp_disabled")
		return nil, &AccountDisabledError{Remaining: acct.TempDisabledUntil.Sub(now)}
	}

	// 3. temp-disable ran out
	if acct.TempDisableExpired(now) {
		if err := s.reactivate(ctx, &acct); err != nil {
			return nil, err
		}
		log.Info("temp disable expired, account reactivated", "account_id", acct.ID)
	}

	// 4. status gate
	if acct.Status != domain.StatusActive {
		s.Metrics.LoginOutcome("inactive")
		return nil, &AccountStateError{
			Status:             acct.Status,
			AwaitingActivation: acct.Status == domain.StatusInactive && acct.LastLogin == nil,
		}
	}

	// 5. source address reputation
	assessment := risk.Assessment{}
	if s.Reputation != nil {
		assessment = s.Reputation.Assess(ctx, req.IPAddress)
	}
	if assessment.Suspicious {
		return nil, s.blockSuspicious(ctx, acct, attempt, assessment, event, now)
	}

	// 6. soft signals
	known, err := risk.IsDeviceKnown(ctx, s.Store.Devices(), acct.ID, fpHash)
	if err != nil {
		return nil, fmt.Errorf("device lookup: %w", err)
	}
	whitelisted, err := s.Store.IPWhitelist().IsWhitelisted(ctx, acct.ID, req.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("whitelist lookup: %w", err)
	}

	var reasons []string
	if !known {
		reasons = append(reasons, ReasonNewDevice)
		s.audit(auditEvent(acct.ID, domain.ActionNewDeviceDetected, "device_fingerprints", fpHash, domain.LevelWarning,
			map[string]any{"ip": req.IPAddress, "device_info": req.UserAgent}, now))
	}
	if risk.LastLoginStale(acct.LastLogin, now, s.Policy.InactiveAccountDays) {
		reasons = append(reasons, ReasonLastLoginStale)
	}
	if risk.TimezoneMismatch(req.Timezone, s.Policy.ExpectedTimezone) {
		return nil, s.holdForTimezone(ctx, acct, req.Timezone, event, now)
	}
	if risk.LanguageMismatch(req.Language, s.Policy.ExpectedLanguage) {
		reasons = append(reasons, ReasonLanguage)
	}
	if !risk.WithinWorkingHours(now, s.Policy.OrgUTCOffset, s.Policy.WorkingHoursStart, s.Policy.WorkingHoursEnd) {
		reasons = append(reasons, ReasonOutsideHours)
		s.reportOutOfHours(ctx, acct, event, now)
	}
	if assessment.FraudScore > s.Policy.FraudScoreLimit {
		reasons = append(reasons, ReasonHighFraudScore)
	}
	passwordExpired := risk.PasswordExpired(acct.LastPasswordChange, acct.CreatedAt, now, s.Policy.PasswordExpiryDays)

	// 9, 10. record success, reset counter, auto whitelist
	attempt.ID = idx.NewAt(now).String()
	attempt.AccountID = acct.ID
	attempt.Success = true
	attempt.FraudScore = assessment.FraudScore
	attempt.IPDetails = map[string]any{"suspicious": false, "reason": assessment.Reason}
	if assessment.Degraded {
		attempt.IPDetails["degraded"] = true
	}

	var autoEntry *domain.IPWhitelistEntry
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.LoginAttempts().RecordAttempt(ctx, attempt); err != nil {
			return err
		}
		if err := tx.Accounts().ResetLoginAttempts(ctx, acct.ID); err != nil {
			return err
		}
		if whitelisted {
			return nil
		}
		n, err := tx.LoginAttempts().CountSuccessesFromIP(ctx, acct.ID, req.IPAddress)
		if err != nil {
			return err
		}
		if n < s.Policy.IPWhitelistThreshold {
			return nil
		}
		entry := domain.IPWhitelistEntry{
			ID:            idx.NewAt(now).String(),
			AccountID:     acct.ID,
			IPAddress:     req.IPAddress,
			Type:          domain.WhitelistAuto,
			WhitelistedAt: now,
		}
		if err := tx.IPWhitelist().AddIP(ctx, entry); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return nil
			}
			return err
		}
		autoEntry = &entry
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record successful login: %w", err)
	}
	if autoEntry != nil {
		s.audit(auditEvent(acct.ID, domain.ActionCreate, "ip_whitelist", autoEntry.ID, domain.LevelInfo,
			map[string]any{"ip": req.IPAddress, "type": string(domain.WhitelistAuto)}, now))
	}

	// 11. second step required
	if len(reasons) > 0 || passwordExpired {
		ch, err := s.challenge(ctx, acct, reasons, passwordExpired, known, fpHash, event, now)
		if err != nil {
			return nil, err
		}
		s.Metrics.LoginOutcome("challenge")
		return &LoginOutcome{Challenge: ch}, nil
	}

	// 12. tokens
	grant, err := s.Tokens.IssueGrant(acct, s.Roles.Label(acct), req.RememberMe, []string{amrPassword}, now)
	if err != nil {
		return nil, err
	}
	if err := s.completeLogin(ctx, acct, fpHash, req, now); err != nil {
		return nil, err
	}

	s.audit(auditEvent(acct.ID, domain.ActionLogin, "accounts", acct.ID, domain.LevelInfo,
		map[string]any{"ip": req.IPAddress, "device": req.UserAgent}, now))
	s.Metrics.LoginOutcome("success")
	log.Info("login succeeded", "account_id", acct.ID)
	return &LoginOutcome{Grant: grant}, nil
}

// failLogin records a wrong password and applies lockout escalation.
func (s *LoginService) failLogin(ctx context.Context, acct domain.Account, attempt domain.LoginAttempt, now time.Time) error {
	attempt.ID = idx.NewAt(now).String()
	attempt.AccountID = acct.ID
	attempt.FailureReason = "Invalid credentials"

	t := s.tracker()
	var res FailureResult
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		fresh, err := tx.Accounts().GetAccountByID(ctx, acct.ID)
		if err != nil {
			return err
		}
		acct = fresh
		res, err = t.RecordFailure(ctx, tx, &acct, attempt, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}

	t.Announce(ctx, acct, res, attempt.IPAddress, now)
	s.Metrics.LoginOutcome("invalid_credentials")
	slogx.FromContext(ctx).Info("login failed",
		"account_id", acct.ID, "attempts", res.Attempts, "device_known", res.DeviceKnown, "escalation", res.Escalation.String())
	return ErrInvalidCredentials
}

// reactivate lifts an expired temp-disable.
func (s *LoginService) reactivate(ctx context.Context, acct *domain.Account) error {
	if err := acct.Transition(domain.StatusActive, nil); err != nil {
		return err
	}
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().UpdateStatus(ctx, acct.ID, domain.StatusActive, nil); err != nil {
			return err
		}
		if err := tx.Accounts().ResetLoginAttempts(ctx, acct.ID); err != nil {
			return err
		}
		return tx.TempDisableLogs().DeactivateLogs(ctx, acct.ID)
	})
	if err != nil {
		return fmt.Errorf("reactivate account: %w", err)
	}
	acct.LoginAttempts = 0
	return nil
}

func (s *LoginService) blockSuspicious(ctx context.Context, acct domain.Account, attempt domain.LoginAttempt, a risk.Assessment, event notify.Event, now time.Time) error {
	attempt.ID = idx.NewAt(now).String()
	attempt.AccountID = acct.ID
	attempt.FailureReason = "Suspicious IP detected: " + a.Reason
	attempt.IPDetails = map[string]any{"suspicious": true, "reason": a.Reason}
	attempt.FraudScore = 100

	t := s.tracker()
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.LoginAttempts().RecordAttempt(ctx, attempt); err != nil {
			return err
		}
		return t.TempDisable(ctx, tx, &acct, "Login from suspicious IP: "+a.Reason, now)
	})
	if err != nil {
		return fmt.Errorf("block suspicious login: %w", err)
	}

	event.Reason = a.Reason
	s.notify(s.Templates.SuspiciousLogin(acct.Email, acct.FirstName, event))
	s.audit(auditEvent(acct.ID, domain.ActionSuspiciousActivity, "accounts", acct.ID, domain.LevelCritical,
		map[string]any{"ip": attempt.IPAddress, "reason": a.Reason}, now))
	s.Metrics.Lockout(string(domain.StatusTempDisabled), "suspicious_ip")
	s.Metrics.LoginOutcome("suspicious_ip")
	slogx.FromContext(ctx).Warn("login blocked, suspicious ip", "account_id", acct.ID, "ip", attempt.IPAddress, "reason", a.Reason)
	return ErrSuspiciousIP
}

func (s *LoginService) holdForTimezone(ctx context.Context, acct domain.Account, tz string, event notify.Event, now time.Time) error {
	token, err := s.Tokens.IssueUnlock(acct.ID, now)
	if err != nil {
		return err
	}

	t := s.tracker()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return t.TempDisable(ctx, tx, &acct, "Login from unexpected timezone: "+tz, now)
	})
	if err != nil {
		return fmt.Errorf("hold account: %w", err)
	}

	s.notify(s.Templates.TimezoneMismatch(acct.Email, acct.FirstName, token, event))
	for _, head := range departmentHeads(ctx, s.Store.Accounts(), s.Store.Departments(), acct) {
		s.notify(s.Templates.TimezoneMismatchAdmin(head.Email, head.FirstName, acct.Email, event))
	}
	s.audit(auditEvent(acct.ID, domain.ActionSuspiciousActivity, "accounts", acct.ID, domain.LevelWarning,
		map[string]any{"ip": event.IPAddress, "timezone": tz, "expected": s.Policy.ExpectedTimezone}, now))
	s.Metrics.Lockout(string(domain.StatusTempDisabled), "timezone_mismatch")
	s.Metrics.LoginOutcome("timezone_hold")
	slogx.FromContext(ctx).Warn("login held, unexpected timezone", "account_id", acct.ID, "timezone", tz)
	return &SecurityHoldError{Timezone: tz, UnlockTokenSent: acct.Email != ""}
}

func (s *LoginService) reportOutOfHours(ctx context.Context, acct domain.Account, event notify.Event, now time.Time) {
	s.notify(s.Templates.OutOfHours(acct.Email, acct.FirstName, event))
	for _, head := range departmentHeads(ctx, s.Store.Accounts(), s.Store.Departments(), acct) {
		s.notify(s.Templates.OutOfHoursAdmin(head.Email, head.FirstName, acct.Email, event))
	}
	s.audit(auditEvent(acct.ID, domain.ActionWorkingHoursViolation, "accounts", acct.ID, domain.LevelWarning,
		map[string]any{"ip": event.IPAddress, "time": now.Format(time.RFC3339)}, now))
}

func (s *LoginService) challenge(ctx context.Context, acct domain.Account, reasons []string, passwordExpired, known bool, fpHash string, event notify.Event, now time.Time) (*Challenge, error) {
	requireMFA := len(reasons) > 0
	token, err := s.Tokens.IssueTempSession(TempSession{
		AccountID:      acct.ID,
		RequireMFA:     requireMFA,
		PasswordChange: passwordExpired,
	}, now)
	if err != nil {
		return nil, err
	}
	ch := &Challenge{
		TempSessionToken: token,
		RequireMFA:       requireMFA,
		PasswordChange:   passwordExpired,
		Reasons:          reasons,
	}
	if passwordExpired {
		ch.Reasons = append(ch.Reasons, ReasonPasswordExpired)
	}
	if !ch.RequireMFA {
		return ch, nil
	}

	code, err := s.codes().Generate()
	if err != nil {
		return nil, err
	}
	mfa := domain.MFAChallenge{
		ID:               idx.NewAt(now).String(),
		AccountID:        acct.ID,
		Code:             code,
		TempSessionToken: token,
		FingerprintHash:  fpHash,
		IPAddress:        event.IPAddress,
		ExpiresAt:        now.Add(s.Policy.MFACodeTTL),
		CreatedAt:        now,
	}
	if err := s.Store.MFAChallenges().CreateChallenge(ctx, mfa); err != nil {
		return nil, fmt.Errorf("create mfa challenge: %w", err)
	}

	s.notify(s.Templates.MFACode(acct.Email, acct.FirstName, code, int(s.Policy.MFACodeTTL.Minutes())))
	s.audit(auditEvent(acct.ID, domain.ActionTwoFASent, "mfa_challenges", mfa.ID, domain.LevelInfo,
		map[string]any{"reason": reasons[len(reasons)-1], "reasons": reasons, "ip": event.IPAddress}, now))
	if !known {
		s.notify(s.Templates.NewDevice(acct.Email, acct.FirstName, event))
	}
	return ch, nil
}

// completeLogin trusts or touches the device and stamps last login.
func (s *LoginService) completeLogin(ctx context.Context, acct domain.Account, fpHash string, req LoginRequest, now time.Time) error {
	client := risk.ParseDevice(req.UserAgent)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if fpHash != "" {
			d, err := tx.Devices().GetDevice(ctx, acct.ID, fpHash)
			switch {
			case err == nil:
				if err := tx.Devices().TouchDevice(ctx, d.ID, now); err != nil {
					return err
				}
			case errors.Is(err, store.ErrNotFound):
				err := tx.Devices().CreateDevice(ctx, domain.Device{
					ID:               idx.NewAt(now).String(),
					AccountID:        acct.ID,
					FingerprintHash:  fpHash,
					DeviceInfo:       req.UserAgent,
					Browser:          client.Browser,
					OS:               client.OS,
					IPAtRegistration: req.IPAddress,
					FirstSeen:        now,
					LastSeen:         now,
					Trusted:          true,
				})
				if err != nil {
					return err
				}
			default:
				return err
			}
		}
		return tx.Accounts().UpdateLastLogin(ctx, acct.ID, now)
	})
	if err != nil {
		return fmt.Errorf("complete login: %w", err)
	}
	return nil
}
