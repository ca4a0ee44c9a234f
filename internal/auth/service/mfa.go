package service

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

// CodeGenerator produces one-time numeric codes for MFA challenges.
type CodeGenerator interface {
	Generate() (string, error)
}

// HOTPCodes derives each code from a fresh random secret and counter, so
// codes are uniformly distributed and never repeat a sequence.
type HOTPCodes struct {
	Digits int
}

func (h HOTPCodes) Generate() (string, error) {
	digits := h.Digits
	if digits <= 0 {
		digits = 6
	}

	var buf [28]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("mfa code entropy: %w", err)
	}
	secret := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf[:20])
	counter := binary.BigEndian.Uint64(buf[20:])

	code, err := hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
		Digits:    otp.Digits(digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("generate mfa code: %w", err)
	}
	return code, nil
}
