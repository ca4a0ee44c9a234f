//go:build e2e

package auth_test

import (
	"testing"

	"github.com/aussiebroadwan/assetflow/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestHealthEndpoints verifies the health checks and JWKS respond without logging in.
func TestHealthEndpoints(t *testing.T) {
	c := setupAuthContainer(t)
	client := authsdk.NewSDKClient(c.BaseURL)

	t.Run("livez", func(t *testing.T) {
		health, err := client.GetLiveness(t.Context())
		assertHealthy(t, health, err)
	})

	t.Run("readyz", func(t *testing.T) {
		health, err := client.GetReadiness(t.Context())
		assertHealthy(t, health, err)
		require.NotNil(t, health.Checks)
		require.Equal(t, "ok", health.Checks.Database)
		require.Equal(t, "ok", health.Checks.Signer)
		require.Equal(t, "ok", health.Checks.Audit)
	})

	t.Run("jwks", func(t *testing.T) {
		jwks, err := client.GetJWKS(t.Context())
		require.NoError(t, err)
		require.Len(t, jwks.Keys, 1)
		require.Equal(t, "OKP", jwks.Keys[0].Kty)
		require.Equal(t, "EdDSA", jwks.Keys[0].Alg)
	})
}
