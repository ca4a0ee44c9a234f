package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters used for new hashes. Verification reads the
// parameters back out of the stored PHC string.
const (
	memory      = 19 * 1024 // KiB
	iterations  = 2
	parallelism = 1
	keyLength   = 32
	saltLength  = 16
)

var (
	ErrMismatch      = errors.New("cryptox: password does not match")
	ErrInvalidFormat = errors.New("cryptox: invalid hash format")
)

// Argon2Hasher hashes passwords with Argon2id and a server-side pepper.
type Argon2Hasher struct {
	pepper string
}

func NewArgon2Hasher(pepper string) *Argon2Hasher {
	return &Argon2Hasher{pepper: pepper}
}

// Hash returns a PHC-format Argon2id string including salt and parameters.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password+h.pepper), salt, iterations, memory, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory,
		iterations,
		parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify compares a plaintext password against a PHC-format Argon2id hash.
// It returns ErrMismatch for a wrong password and ErrInvalidFormat when the
// stored hash cannot be parsed.
func (h *Argon2Hasher) Verify(password, encodedHash string) error {
	// ["", "argon2id", "v=19", "m=X,t=Y,p=Z", "salt", "hash"]
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return fmt.Errorf("%w: expected 6 parts", ErrInvalidFormat)
	}
	if parts[1] != "argon2id" {
		return fmt.Errorf("%w: not argon2id", ErrInvalidFormat)
	}
	if parts[2] != "v=19" {
		return fmt.Errorf("%w: wrong version", ErrInvalidFormat)
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return fmt.Errorf("%w: parameters: %v", ErrInvalidFormat, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("%w: salt: %v", ErrInvalidFormat, err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("%w: hash: %v", ErrInvalidFormat, err)
	}

	computed := argon2.IDKey(
		[]byte(password+h.pepper),
		salt,
		iters,
		mem,
		par,
		uint32(len(expected)), // #nosec G115 - bounded by the decoded hash
	)

	if subtle.ConstantTimeCompare(computed, expected) == 1 {
		return nil
	}
	return ErrMismatch
}
