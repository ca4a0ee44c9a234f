package authsdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/assetflow/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, mux *http.ServeMux) *authsdk.SDKClient {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return authsdk.NewSDKClient(srv.URL + "/")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("challenge then grant", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
			var req authsdk.LoginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "wanjiru@county.go.ke", req.Email)
			writeJSON(w, http.StatusOK, authsdk.LoginResponse{
				TokenType:        authsdk.TokenTypeTempSession,
				TempSessionToken: "temp",
				RequireMFA:       true,
				Reasons:          []string{"Unrecognized device"},
			})
		})
		mux.HandleFunc("POST /v1/auth/mfa/verify", func(w http.ResponseWriter, r *http.Request) {
			var req authsdk.MFAVerifyRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "temp", req.TempSessionToken)
			require.Equal(t, "123456", req.Code)
			writeJSON(w, http.StatusOK, authsdk.LoginResponse{
				TokenType:   authsdk.TokenTypeBearer,
				AccessToken: "access",
				Role:        "officer",
			})
		})
		c := newServer(t, mux)

		resp, err := c.Login(ctx, authsdk.LoginRequest{Email: "wanjiru@county.go.ke", Password: "pw"})
		require.NoError(t, err)
		require.True(t, resp.IsChallenge())
		require.True(t, resp.RequireMFA)

		_, ok := c.SessionFromLogin(resp)
		require.False(t, ok, "a challenge carries no access token")

		resp, err = c.VerifyMFA(ctx, resp.TempSessionToken, "123456")
		require.NoError(t, err)
		require.False(t, resp.IsChallenge())

		sess, ok := c.SessionFromLogin(resp)
		require.True(t, ok)
		require.Equal(t, "access", sess.AccessToken())
		require.Equal(t, "officer", sess.Role())
	})

	t.Run("error body becomes APIError", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusForbidden, authsdk.ErrorResponse{
				Error:            authsdk.ErrorCodeSecurityHold,
				ErrorDescription: "Login blocked due to timezone mismatch.",
			})
		})
		c := newServer(t, mux)

		_, err := c.Login(ctx, authsdk.LoginRequest{Email: "a@b.c", Password: "pw"})
		var apiErr *authsdk.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		require.Equal(t, authsdk.ErrorCodeSecurityHold, apiErr.Code)
	})

	t.Run("non JSON error", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /v1/auth/unlock", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		})
		c := newServer(t, mux)

		_, err := c.Unlock(ctx, "token")
		var apiErr *authsdk.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, authsdk.ErrorCodeServerError, apiErr.Code)
		require.Contains(t, apiErr.Description, "502")
	})
}

func TestSession(t *testing.T) {
	ctx := context.Background()

	authed := func(t *testing.T, fn http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "Bearer access", r.Header.Get("Authorization"))
			fn(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/ip-whitelist", authed(t, func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.WhitelistIPRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "654321", req.Code)
		writeJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "IP address whitelisted successfully"})
	}))
	mux.HandleFunc("GET /v1/auth/devices", authed(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authsdk.DevicesResponse{Devices: []authsdk.DeviceResponse{{ID: "dev1"}}})
	}))
	mux.HandleFunc("DELETE /v1/auth/devices/{id}", authed(t, func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "dev1" {
			writeJSON(w, http.StatusNotFound, authsdk.ErrorResponse{Error: authsdk.ErrorCodeNotFound})
			return
		}
		writeJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Device forgotten successfully"})
	}))
	mux.HandleFunc("GET /v1/admin/accounts/{id}/login-history", authed(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "acct 1", r.PathValue("id"))
		require.Equal(t, "5", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, authsdk.LoginHistoryResponse{})
	}))
	mux.HandleFunc("POST /v1/authz/check", authed(t, func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.AuthzCheckRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusOK, authsdk.AuthzCheckResponse{Allowed: req.Action == "view"})
	}))
	mux.HandleFunc("GET /v1/authz/scope", authed(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authsdk.ScopeResponse{Departments: []string{"dept_finance"}})
	}))

	c := newServer(t, mux)
	sess := c.NewSession("access")

	msg, err := sess.WhitelistIP(ctx, "654321")
	require.NoError(t, err)
	require.Equal(t, "IP address whitelisted successfully", msg.Message)

	devices, err := sess.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices.Devices, 1)

	_, err = sess.ForgetDevice(ctx, "dev1")
	require.NoError(t, err)
	_, err = sess.ForgetDevice(ctx, "dev2")
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	_, err = sess.AccountLoginHistory(ctx, "acct 1", 5)
	require.NoError(t, err)

	decision, err := sess.CheckPermission(ctx, authsdk.AuthzCheckRequest{Resource: "asset", Action: "view"})
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	scope, err := sess.Scope(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"dept_finance"}, scope.Departments)
}
