package service

import "time"

// Policy holds the thresholds the login flow enforces.
type Policy struct {
	KnownDeviceMaxAttempts   int
	UnknownDeviceMaxAttempts int
	FinalAttemptsBeforeLock  int
	TempDisableDuration      time.Duration
	SuspendDuration          time.Duration

	FraudScoreLimit  int
	ExpectedTimezone string
	ExpectedLanguage string

	WorkingHoursStart int
	WorkingHoursEnd   int
	OrgUTCOffset      time.Duration

	IPWhitelistThreshold int
	MFACodeTTL           time.Duration
	MFAMaxAttempts       int // wrong codes before a challenge is burned
	PasswordExpiryDays   int
	InactiveAccountDays  int
	MinPasswordLength    int
	FingerprintSecret    string
}

// DefaultPolicy returns the thresholds used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		KnownDeviceMaxAttempts:   5,
		UnknownDeviceMaxAttempts: 2,
		FinalAttemptsBeforeLock:  2,
		TempDisableDuration:      24 * time.Hour,
		SuspendDuration:          36500 * 24 * time.Hour,
		FraudScoreLimit:          70,
		ExpectedTimezone:         "EAT",
		ExpectedLanguage:         "en",
		WorkingHoursStart:        8,
		WorkingHoursEnd:          17,
		OrgUTCOffset:             3 * time.Hour,
		IPWhitelistThreshold:     2,
		MFACodeTTL:               20 * time.Minute,
		MFAMaxAttempts:           5,
		PasswordExpiryDays:       90,
		InactiveAccountDays:      60,
		MinPasswordLength:        8,
	}
}
