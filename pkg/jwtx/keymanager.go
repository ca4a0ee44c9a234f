package jwtx

import (
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/aussiebroadwan/assetflow/pkg/cryptox"
)

// KeyManager owns the signing keys of one instance, the KeySet holding their
// public halves and a Verifier bound to that KeySet.
type KeyManager struct {
	Verifier Verifier
	KeySet   *KeySet

	signers []Signer
}

// NewEphemeralKeyManager generates numKeys Ed25519 keys in memory. Every
// token minted before a restart becomes invalid after it.
func NewEphemeralKeyManager(issuer string, numKeys int) (*KeyManager, error) {
	if issuer == "" {
		return nil, fmt.Errorf("jwtx: issuer is required")
	}
	numKeys = min(max(numKeys, 1), 10)

	km := &KeyManager{KeySet: NewKeySet()}
	for i := range numKeys {
		pemBytes, err := cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, err
		}
		kid, err := generateKeyID()
		if err != nil {
			return nil, err
		}
		signer, err := NewSignerEdDSA(kid, pemBytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: signer %d: %w", i+1, err)
		}
		if err := km.add(signer); err != nil {
			return nil, err
		}
	}

	km.Verifier = NewVerifierEdDSA(km.KeySet, issuer, nil)
	return km, nil
}

// NewKeyManagerFromFile loads a single PKCS8 Ed25519 key from disk so tokens
// survive restarts and can be verified by every replica.
func NewKeyManagerFromFile(issuer, kid, path string) (*KeyManager, error) {
	if issuer == "" {
		return nil, fmt.Errorf("jwtx: issuer is required")
	}
	pemBytes, err := os.ReadFile(path) // #nosec G304 - operator supplied path
	if err != nil {
		return nil, fmt.Errorf("jwtx: read signing key: %w", err)
	}
	signer, err := NewSignerEdDSA(kid, pemBytes)
	if err != nil {
		return nil, err
	}

	km := &KeyManager{KeySet: NewKeySet()}
	if err := km.add(signer); err != nil {
		return nil, err
	}
	km.Verifier = NewVerifierEdDSA(km.KeySet, issuer, nil)
	return km, nil
}

func (km *KeyManager) add(s Signer) error {
	if err := km.KeySet.AddSigner(s); err != nil {
		return fmt.Errorf("jwtx: add signer to keyset: %w", err)
	}
	km.signers = append(km.signers, s)
	return nil
}

// Signer returns one of the signing keys at random.
func (km *KeyManager) Signer() Signer {
	if len(km.signers) == 1 {
		return km.signers[0]
	}
	return km.signers[rand.IntN(len(km.signers))]
}

func (km *KeyManager) NumSigners() int { return len(km.signers) }

func (km *KeyManager) IsReady() bool { return km.KeySet.IsReady() }

func generateKeyID() (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("jwtx: key id: %w", err)
	}
	return "assetflow-" + token, nil
}
