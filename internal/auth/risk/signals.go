package risk

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
	"github.com/aussiebroadwan/assetflow/internal/auth/store"
)

// Unknown is what the login flow records when the client did not declare a
// timezone or language. It never counts as a mismatch.
const Unknown = "unknown"

const day = 24 * time.Hour

// DeviceLookup is the subset of store.Devices needed to recognise a device.
type DeviceLookup interface {
	GetDevice(ctx context.Context, accountID, fingerprintHash string) (domain.Device, error)
}

// IsDeviceKnown reports whether the account has a non-deleted device with the
// given fingerprint hash. An empty hash is never known.
func IsDeviceKnown(ctx context.Context, devices DeviceLookup, accountID, fingerprintHash string) (bool, error) {
	if fingerprintHash == "" {
		return false, nil
	}
	_, err := devices.GetDevice(ctx, accountID, fingerprintHash)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// WithinWorkingHours converts now to the organisation's fixed UTC offset and
// checks start <= hour < end.
func WithinWorkingHours(now time.Time, offset time.Duration, start, end int) bool {
	hour := now.UTC().Add(offset).Hour()
	return start <= hour && hour < end
}

// PasswordExpired reports whether maxDays whole days have passed since the
// last password change. Accounts that never changed their password age from
// creation; with neither timestamp the password counts as expired.
func PasswordExpired(lastChange *time.Time, createdAt, now time.Time, maxDays int) bool {
	ref := createdAt
	if lastChange != nil {
		ref = *lastChange
	}
	if ref.IsZero() {
		return true
	}
	return wholeDays(ref, now) >= maxDays
}

// LastLoginStale reports whether the account has not logged in for maxDays.
// An account that never logged in is stale.
func LastLoginStale(lastLogin *time.Time, now time.Time, maxDays int) bool {
	if lastLogin == nil {
		return true
	}
	return wholeDays(*lastLogin, now) >= maxDays
}

// TimezoneMismatch compares the declared timezone with the expected one.
func TimezoneMismatch(declared, expected string) bool {
	return declared != Unknown && declared != "" && declared != expected
}

// LanguageMismatch compares the declared language with the expected one.
func LanguageMismatch(declared, expected string) bool {
	return declared != Unknown && declared != "" && declared != expected
}

func wholeDays(from, to time.Time) int {
	return int(to.Sub(from) / day)
}
