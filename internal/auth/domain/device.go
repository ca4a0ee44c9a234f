package domain

import "time"

// Device is a client previously seen for an account, keyed by the salted
// fingerprint hash.
type Device struct {
	ID               string
	AccountID        string
	FingerprintHash  string
	DeviceInfo       string
	Browser          string
	OS               string
	IPAtRegistration string
	FirstSeen        time.Time
	LastSeen         time.Time
	Trusted          bool
	Deleted          bool
}

type WhitelistType string

const (
	WhitelistManual WhitelistType = "manual"
	WhitelistAuto   WhitelistType = "auto"
)

type IPWhitelistEntry struct {
	ID            string
	AccountID     string
	IPAddress     string
	Type          WhitelistType
	WhitelistedAt time.Time
}

// LoginAttempt is written once per authentication try and never updated.
type LoginAttempt struct {
	ID              string
	AccountID       string // empty when the email matched no account
	Email           string
	IPAddress       string
	FingerprintHash string
	Success         bool
	FailureReason   string
	DeviceInfo      string
	Browser         string
	OS              string
	Timezone        string
	Language        string
	IPDetails       map[string]any
	FraudScore      int
	Timestamp       time.Time
}
