package risk

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashFingerprint salts and hashes a client supplied device fingerprint.
// An absent fingerprint stays absent so it can never match a stored device.
func HashFingerprint(fingerprint, secret string) string {
	if fingerprint == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(fingerprint + secret))
	return hex.EncodeToString(sum[:])
}
