package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Session performs requests that need a bearer access token. It does not
// refresh the token; once it expires log in again.
type Session struct {
	client      *SDKClient
	accessToken string
	role        string
}

func (s *Session) AccessToken() string { return s.accessToken }

// Role is the role label returned at login, when known.
func (s *Session) Role() string { return s.role }

// WhitelistIP whitelists the caller's current address using an MFA code
// delivered by email.
func (s *Session) WhitelistIP(ctx context.Context, code string) (*MessageResponse, error) {
	var out MessageResponse
	if err := s.postJSON(ctx, "/v1/auth/ip-whitelist", WhitelistIPRequest{Code: code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) ListDevices(ctx context.Context) (*DevicesResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/auth/devices", nil, nil)
	if err != nil {
		return nil, err
	}

	var out DevicesResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) ForgetDevice(ctx context.Context, deviceID string) (*MessageResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/auth/devices/"+url.PathEscape(deviceID), nil, nil)
	if err != nil {
		return nil, err
	}

	var out MessageResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoginHistory returns the caller's recent login attempts. A zero limit uses
// the server default.
func (s *Session) LoginHistory(ctx context.Context, limit int) (*LoginHistoryResponse, error) {
	return s.history(ctx, "/v1/auth/login-history", limit)
}

// AccountLoginHistory is the administrator view of another account's
// attempts.
func (s *Session) AccountLoginHistory(ctx context.Context, accountID string, limit int) (*LoginHistoryResponse, error) {
	return s.history(ctx, "/v1/admin/accounts/"+url.PathEscape(accountID)+"/login-history", limit)
}

func (s *Session) history(ctx context.Context, path string, limit int) (*LoginHistoryResponse, error) {
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	resp, err := s.doAuthRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var out LoginHistoryResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckPermission asks the service to evaluate a permission for the caller.
// A denial is returned as a response with Allowed false, not as an error.
func (s *Session) CheckPermission(ctx context.Context, req AuthzCheckRequest) (*AuthzCheckResponse, error) {
	var out AuthzCheckResponse
	if err := s.postJSON(ctx, "/v1/authz/check", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Scope returns the filter the caller's list queries are narrowed to.
func (s *Session) Scope(ctx context.Context) (*ScopeResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/authz/scope", nil, nil)
	if err != nil {
		return nil, err
	}

	var out ScopeResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
