package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient talks to the public endpoints of the AssetFlow auth service and
// creates Sessions for the authenticated ones.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Login runs the password step. A challenge is not an error: check
// IsChallenge on the response and follow up with VerifyMFA or
// ForcePasswordChange.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.postJSON(ctx, "/v1/auth/login", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) VerifyMFA(ctx context.Context, tempSessionToken, code string) (*LoginResponse, error) {
	var out LoginResponse
	req := MFAVerifyRequest{TempSessionToken: tempSessionToken, Code: code}
	if err := c.postJSON(ctx, "/v1/auth/mfa/verify", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) ForcePasswordChange(ctx context.Context, tempSessionToken, newPassword string) (*MessageResponse, error) {
	var out MessageResponse
	req := ForcePasswordChangeRequest{TempSessionToken: tempSessionToken, NewPassword: newPassword}
	if err := c.postJSON(ctx, "/v1/auth/password/force-change", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) Unlock(ctx context.Context, token string) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.postJSON(ctx, "/v1/auth/unlock", UnlockRequest{Token: token}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// NewSession wraps an access token obtained from Login or VerifyMFA.
func (c *SDKClient) NewSession(accessToken string) *Session {
	return &Session{client: c, accessToken: accessToken}
}

// SessionFromLogin returns a Session when the response carries tokens.
func (c *SDKClient) SessionFromLogin(resp *LoginResponse) (*Session, bool) {
	if resp == nil || resp.AccessToken == "" {
		return nil, false
	}
	return &Session{client: c, accessToken: resp.AccessToken, role: resp.Role}, true
}

func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetJWKS retrieves the keys that verify access tokens.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/jwks.json", nil, nil)
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}
	return &jwks, nil
}
