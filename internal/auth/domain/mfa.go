package domain

import "time"

// MFAChallenge binds a one-time code to the temp session token issued for a
// pending login. It is consumed at most once.
type MFAChallenge struct {
	ID               string
	AccountID        string
	Code             string
	TempSessionToken string
	FingerprintHash  string // device to trust once the challenge is passed
	IPAddress        string
	ExpiresAt        time.Time
	Used             bool
	Attempts         int  // wrong codes presented so far
	Verified         bool // redeemed with the right code, as opposed to burned
	CreatedAt        time.Time
}

// Expired reports whether now is past the expiry. A code presented at
// exactly ExpiresAt is still accepted.
func (c MFAChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// TempDisableLog records a disable or suspend event. Only the newest active
// entry describes the current lock.
type TempDisableLog struct {
	ID            string
	AccountID     string
	Reason        string
	DisabledAt    time.Time
	DisabledUntil time.Time
	Active        bool
}
