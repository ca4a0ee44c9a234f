package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
	"github.com/aussiebroadwan/assetflow/internal/auth/risk"
	"github.com/aussiebroadwan/assetflow/internal/auth/store"
	"github.com/aussiebroadwan/assetflow/internal/notify"
	"github.com/aussiebroadwan/assetflow/internal/obs"
	"github.com/aussiebroadwan/assetflow/pkg/idx"
	"github.com/aussiebroadwan/assetflow/pkg/slogx"
)

// Escalation is the outcome of recording a failed login.
type Escalation int

const (
	EscalationNone Escalation = iota
	EscalationTempDisabled
	EscalationSuspended
)

func (e Escalation) String() string {
	switch e {
	case EscalationTempDisabled:
		return "temp_disabled"
	case EscalationSuspended:
		return "suspended"
	}
	return "none"
}

// FailureResult describes what RecordFailure did so the caller can announce
// it once the transaction has committed.
type FailureResult struct {
	Attempts    int
	DeviceKnown bool
	Escalation  Escalation
	// Trigger is the audit reason, e.g. max_attempts_unknown_device.
	Trigger string
}

// LockoutTracker counts failed logins and escalates to temp-disable or
// suspension.
type LockoutTracker struct {
	Policy    Policy
	Auditor   Auditor
	Notifier  notify.Notifier
	Templates notify.Templates
	Metrics   *obs.Metrics
}

// RecordFailure must run inside the transaction that owns the account row.
// It records the attempt, bumps the counter and applies any escalation.
func (t *LockoutTracker) RecordFailure(ctx context.Context, tx store.Tx, a *domain.Account, attempt domain.LoginAttempt, now time.Time) (FailureResult, error) {
	var res FailureResult

	if err := tx.LoginAttempts().RecordAttempt(ctx, attempt); err != nil {
		return res, fmt.Errorf("record attempt: %w", err)
	}

	attempts, err := tx.Accounts().IncrementLoginAttempts(ctx, a.ID)
	if err != nil {
		return res, fmt.Errorf("increment attempts: %w", err)
	}
	a.LoginAttempts = attempts
	res.Attempts = attempts

	known, err := risk.IsDeviceKnown(ctx, tx.Devices(), a.ID, attempt.FingerprintHash)
	if err != nil {
		return res, fmt.Errorf("device lookup: %w", err)
	}
	res.DeviceKnown = known

	switch {
	case known && attempts >= t.Policy.KnownDeviceMaxAttempts:
		if a.Status != domain.StatusTempDisabled {
			if !domain.CanTransition(a.Status, domain.StatusTempDisabled) {
				return res, nil
			}
			if err := t.TempDisable(ctx, tx, a, "Too many failed login attempts from known device", now); err != nil {
				return res, err
			}
			res.Escalation = EscalationTempDisabled
			res.Trigger = "max_attempts_known_device"
			return res, nil
		}

		if a.TempDisabledUntil == nil {
			return res, nil
		}
		since := a.TempDisabledUntil.Add(-t.Policy.TempDisableDuration)
		failed, err := tx.LoginAttempts().CountFailuresAfter(ctx, a.ID, since)
		if err != nil {
			return res, fmt.Errorf("count failures: %w", err)
		}
		if failed >= t.Policy.FinalAttemptsBeforeLock {
			if err := t.Suspend(ctx, tx, a, "Failed login attempts after temp disable", now); err != nil {
				return res, err
			}
			res.Escalation = EscalationSuspended
			res.Trigger = "max_attempts_after_temp_disable"
		}

	case !known && attempts >= t.Policy.UnknownDeviceMaxAttempts:
		if !domain.CanTransition(a.Status, domain.StatusSuspended) {
			return res, nil
		}
		if err := t.Suspend(ctx, tx, a, "Failed login attempts from unknown device", now); err != nil {
			return res, err
		}
		res.Escalation = EscalationSuspended
		res.Trigger = "max_attempts_unknown_device"
	}

	return res, nil
}

// TempDisable moves the account to temp_disabled for the policy duration
// and logs the reason.
func (t *LockoutTracker) TempDisable(ctx context.Context, tx store.Tx, a *domain.Account, reason string, now time.Time) error {
	until := now.Add(t.Policy.TempDisableDuration)
	return t.lock(ctx, tx, a, domain.StatusTempDisabled, &until, reason, until, now)
}

// Suspend moves the account to suspended. The log entry carries a far future
// expiry since only an administrator can lift it.
func (t *LockoutTracker) Suspend(ctx context.Context, tx store.Tx, a *domain.Account, reason string, now time.Time) error {
	return t.lock(ctx, tx, a, domain.StatusSuspended, nil, "SUSPENDED: "+reason, now.Add(t.Policy.SuspendDuration), now)
}

func (t *LockoutTracker) lock(ctx context.Context, tx store.Tx, a *domain.Account, to domain.AccountStatus, until *time.Time, reason string, logUntil, now time.Time) error {
	if err := a.Transition(to, until); err != nil {
		return err
	}
	if err := tx.Accounts().UpdateStatus(ctx, a.ID, a.Status, a.TempDisabledUntil); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	err := tx.TempDisableLogs().CreateLog(ctx, domain.TempDisableLog{
		ID:            idx.NewAt(now).String(),
		AccountID:     a.ID,
		Reason:        reason,
		DisabledAt:    now,
		DisabledUntil: logUntil,
		Active:        true,
	})
	if err != nil {
		return fmt.Errorf("create disable log: %w", err)
	}
	return nil
}

// Announce emits the audit event, notification and metric for an
// escalation. Call it after the transaction has committed.
func (t *LockoutTracker) Announce(ctx context.Context, a domain.Account, res FailureResult, ip string, now time.Time) {
	if res.Escalation == EscalationNone {
		return
	}

	level := domain.LevelCritical
	msg := t.Templates.Suspended(a.Email, a.FirstName)
	if res.Escalation == EscalationTempDisabled {
		level = domain.LevelWarning
		hours := int(math.Round(t.Policy.TempDisableDuration.Hours()))
		msg = t.Templates.TempDisabled(a.Email, a.FirstName, hours)
	}

	slogx.FromContext(ctx).Warn("account locked",
		"account_id", a.ID, "status", res.Escalation.String(), "trigger", res.Trigger, "attempts", res.Attempts)

	if t.Auditor != nil {
		t.Auditor.Enqueue(auditEvent(a.ID, domain.ActionAccountLocked, "accounts", a.ID, level, map[string]any{
			"reason": res.Trigger,
			"ip":     ip,
			"email":  a.Email,
		}, now))
		if res.Escalation == EscalationSuspended && !res.DeviceKnown {
			t.Auditor.Enqueue(auditEvent(a.ID, domain.ActionBruteForceDetected, "accounts", a.ID, domain.LevelCritical, map[string]any{
				"ip":       ip,
				"attempts": res.Attempts,
			}, now))
		}
	}
	if t.Notifier != nil {
		t.Notifier.Notify(msg)
	}
	t.Metrics.Lockout(res.Escalation.String(), res.Trigger)
}
