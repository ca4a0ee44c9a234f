//go:build e2e

package auth_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"testing"
	"time"

	"github.com/aussiebroadwan/assetflow/pkg/authsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common constants and helper functions for auth service end-to-end tests.
 * This includes container setup, login flows, and assertions.
 */

const (
	testImageName = "assetflow-auth-test:latest"

	issuer         = "assetflow-auth"
	adminEmail     = "admin@county.go.ke"
	adminFirstName = "Amina"
	adminPassword  = "Admin123!Admin"
	adminRole      = "admin"
	fingerprint    = "e2e-browser-fingerprint"
)

var mfaCodeRe = regexp.MustCompile(`Your MFA code is: (\d+)`)

// TestMain manages the test lifecycle, builds the Docker image once before
// all tests and cleans it up after all tests complete.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building Auth Service Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up Auth Service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

// buildDockerImage builds the test Docker image.
func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/auth/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

// cleanupDockerImage removes the test Docker image.
func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // Ignore errors - image might not exist
}

// authContainer is a running auth service with a bootstrapped administrator.
type authContainer struct {
	container testcontainers.Container
	BaseURL   string
}

func baseEnv() map[string]string {
	return map[string]string{
		"AUTH_ISSUER":                issuer,
		"AUTH_NUM_KEYS":              "1",
		"AUTH_REPUTATION_ENABLED":    "false",
		"BOOTSTRAP_ADMIN_EMAIL":      adminEmail,
		"BOOTSTRAP_ADMIN_PASSWORD":   adminPassword,
		"BOOTSTRAP_ADMIN_FIRST_NAME": adminFirstName,
		"ENV":                        "test",
		// Notification bodies (MFA codes) are logged at debug level without SMTP.
		"LOG_LEVEL":  "debug",
		"LOG_FORMAT": "json",
	}
}

// setupAuthContainer starts the auth service with relaxed rate limits.
func setupAuthContainer(t *testing.T) *authContainer {
	t.Helper()
	env := baseEnv()
	// Tests often make many rapid requests which would otherwise hit the strict production limits
	for _, tier := range []string{"STRICT", "MODERATE"} {
		env["RATELIMIT_"+tier+"_REQUESTS"] = "1000"
		env["RATELIMIT_"+tier+"_WINDOW_SEC"] = "60"
		env["RATELIMIT_"+tier+"_BURST"] = "1000"
	}
	return startContainer(t, env)
}

// setupAuthContainerWithDefaultRateLimits starts the auth service with the
// production rate limits. Only the rate limit tests should need it.
func setupAuthContainerWithDefaultRateLimits(t *testing.T) *authContainer {
	t.Helper()
	return startContainer(t, baseEnv())
}

func startContainer(t *testing.T, env map[string]string) *authContainer {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP("/readyz").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return &authContainer{
		container: container,
		BaseURL:   fmt.Sprintf("http://%s:%s", host, mappedPort.Port()),
	}
}

// latestMFACode scrapes the most recent MFA code from the container logs.
func (c *authContainer) latestMFACode(t *testing.T) string {
	t.Helper()

	var code string
	require.Eventually(t, func() bool {
		logs, err := c.container.Logs(context.Background())
		if err != nil {
			return false
		}
		defer logs.Close()

		raw, err := io.ReadAll(logs)
		if err != nil {
			return false
		}
		matches := mfaCodeRe.FindAllSubmatch(raw, -1)
		if len(matches) == 0 {
			return false
		}
		code = string(matches[len(matches)-1][1])
		return true
	}, 10*time.Second, 200*time.Millisecond, "MFA code never appeared in the logs")

	return code
}

func adminLogin(password string) authsdk.LoginRequest {
	return authsdk.LoginRequest{
		Email:       adminEmail,
		Password:    password,
		Fingerprint: fingerprint,
		Timezone:    "EAT",
		Language:    "en",
	}
}

// loginAdmin completes the first login of the bootstrapped administrator,
// including the MFA challenge raised for the new device.
func loginAdmin(t *testing.T, c *authContainer, client *authsdk.SDKClient) *authsdk.Session {
	t.Helper()
	ctx := t.Context()

	resp, err := client.Login(ctx, adminLogin(adminPassword))
	require.NoError(t, err, "Login should succeed")

	if resp.IsChallenge() {
		require.True(t, resp.RequireMFA, "New device challenge should require MFA")
		resp, err = client.VerifyMFA(ctx, resp.TempSessionToken, c.latestMFACode(t))
		require.NoError(t, err, "MFA verification should succeed")
	}

	session, ok := client.SessionFromLogin(resp)
	require.True(t, ok, "Login should return an access token")
	return session
}

// assertAPIError checks the status and error code of an SDK error.
func assertAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode, "unexpected status: %v", apiErr)
	if code != "" {
		require.Equal(t, code, apiErr.Code)
	}
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
