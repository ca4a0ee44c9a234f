package cryptox

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	h := NewArgon2Hasher("pepper")

	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"empty password", ""},
		{"whitespace password", "   spaces   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"), "hash should be in PHC format")
			require.Len(t, strings.Split(hash, "$"), 6)

			require.NoError(t, h.Verify(tt.password, hash))
		})
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	h := NewArgon2Hasher("pepper")

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVerifyPassword_WrongPassword(t *testing.T) {
	h := NewArgon2Hasher("pepper")

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	require.ErrorIs(t, h.Verify("battery staple", hash), ErrMismatch)
}

func TestVerifyPassword_PepperMatters(t *testing.T) {
	hash, err := NewArgon2Hasher("one").Hash("secret")
	require.NoError(t, err)
	require.ErrorIs(t, NewArgon2Hasher("two").Verify("secret", hash), ErrMismatch)
}

func TestVerifyPassword_InvalidHashFormat(t *testing.T) {
	h := NewArgon2Hasher("pepper")

	for _, hash := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA",
	} {
		require.ErrorIs(t, h.Verify("x", hash), ErrInvalidFormat, hash)
	}
}

func TestLoadOrGeneratePepper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets", "pepper")

	first, err := LoadOrGeneratePepper(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := LoadOrGeneratePepper(path)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
