package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/assetflow/pkg/jwtx"
)

// InitAuthKeys creates the KeyManager that signs and verifies tokens.
//
// With AUTH_SIGNING_KEY_FILE set the key is loaded from disk and tokens
// survive restarts. Otherwise AUTH_NUM_KEYS keys are generated in memory and
// every outstanding token becomes invalid when the service restarts.
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	if cfg.SigningKeyFile != "" {
		km, err := jwtx.NewKeyManagerFromFile(cfg.Issuer, cfg.SigningKeyID, cfg.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load signing key: %w", err)
		}
		logger.Info("signing key loaded", "kid", cfg.SigningKeyID, "issuer", cfg.Issuer)
		return km, nil
	}

	km, err := jwtx.NewEphemeralKeyManager(cfg.Issuer, cfg.NumKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
	}
	logger.Info("generated ephemeral signing keys", "num_keys", km.NumSigners(), "issuer", cfg.Issuer)
	logger.Warn("all existing tokens are now invalid due to key rotation on startup")
	return km, nil
}
