//go:build e2e

package auth_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/assetflow/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestRateLimitLoginEndpoint verifies that /v1/auth/login is rate limited.
// This endpoint has strict limits (5 req/min) to prevent brute force attacks.
func TestRateLimitLoginEndpoint(t *testing.T) {
	c := setupAuthContainerWithDefaultRateLimits(t)
	client := authsdk.NewSDKClient(c.BaseURL)
	ctx := t.Context()

	req := authsdk.LoginRequest{Email: "nobody@county.go.ke", Password: "wrongpass"}
	for i := range 5 {
		_, err := client.Login(ctx, req)
		assertAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidGrant)
		t.Logf("request %d rejected with invalid_grant", i+1)
	}

	_, err := client.Login(ctx, req)
	assertAPIError(t, err, http.StatusTooManyRequests, authsdk.ErrorCodeRateLimited)
}

// TestRateLimitIsPerEndpoint verifies exhausting the login limit leaves the
// health endpoints reachable.
func TestRateLimitIsPerEndpoint(t *testing.T) {
	c := setupAuthContainerWithDefaultRateLimits(t)
	client := authsdk.NewSDKClient(c.BaseURL)
	ctx := t.Context()

	req := authsdk.LoginRequest{Email: "nobody@county.go.ke", Password: "wrongpass"}
	for range 6 {
		_, _ = client.Login(ctx, req)
	}

	health, err := client.GetLiveness(ctx)
	assertHealthy(t, health, err)
	require.NotEmpty(t, health.Version)
}
