package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/assetflow/internal/auth/service"
	"github.com/aussiebroadwan/assetflow/pkg/authsdk"
	"github.com/aussiebroadwan/assetflow/pkg/httpx"
	"github.com/aussiebroadwan/assetflow/pkg/slogx"
)

// LoginHandler serves the unauthenticated half of the login flow: password
// login, MFA verification, forced password change and out of band unlock.
type LoginHandler struct {
	LoginService *service.LoginService
}

// HandleLogin godoc
//
//	@Summary		Log in with email and password
//	@Description	Checks the password, scores the attempt for risk and either issues tokens or returns a challenge.
//	@Description	A challenge carries a temp_session_token plus req_mfa and/or pass_change. Reasons list the signals that raised it.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials and device context"
//	@Success		200		{object}	authsdk.LoginResponse	"Tokens or challenge"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid email or password"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Account disabled, inactive or login blocked"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Router			/v1/auth/login [post].
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "Email and password are required").WriteError(w)
		return
	}

	fingerprint := req.Fingerprint
	if fingerprint == "" {
		fingerprint = r.Header.Get("X-Device-Fingerprint")
	}

	outcome, err := h.LoginService.Login(r.Context(), service.LoginRequest{
		Email:          req.Email,
		Password:       req.Password,
		Fingerprint:    fingerprint,
		Timezone:       req.Timezone,
		Language:       req.Language,
		RememberMe:     req.RememberMe,
		IPAddress:      httpx.ClientIP(r),
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
	})
	if err != nil {
		writeServiceError(w, r, err, h.LoginService.Policy.MinPasswordLength)
		return
	}

	if c := outcome.Challenge; c != nil {
		httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
			TokenType:        authsdk.TokenTypeTempSession,
			TempSessionToken: c.TempSessionToken,
			RequireMFA:       c.RequireMFA,
			PasswordChange:   c.PasswordChange,
			Reasons:          c.Reasons,
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, grantResponse(outcome.Grant))
}

// HandleVerifyMFA godoc
//
//	@Summary		Complete a login challenge with an emailed code
//	@Description	Exchanges a temp session token and the six digit code for access and refresh tokens.
//	@Description	The device used for the login becomes trusted.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.MFAVerifyRequest	true	"Temp session token and code"
//	@Success		200		{object}	authsdk.LoginResponse		"Tokens"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Invalid MFA session, code or expired code"
//	@Failure		401		{object}	authsdk.ErrorResponse		"Invalid or expired session token"
//	@Failure		429		{object}	authsdk.ErrorResponse		"Rate limit exceeded"
//	@Router			/v1/auth/mfa/verify [post].
func (h *LoginHandler) HandleVerifyMFA(w http.ResponseWriter, r *http.Request) {
	var req authsdk.MFAVerifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.TempSessionToken == "" || req.Code == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	grant, err := h.LoginService.VerifyMFA(r.Context(), req.TempSessionToken, strings.TrimSpace(req.Code), httpx.ClientIP(r))
	if err != nil {
		writeServiceError(w, r, err, h.LoginService.Policy.MinPasswordLength)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, grantResponse(grant))
}

// HandleForcePasswordChange godoc
//
//	@Summary		Replace an expired password
//	@Description	Sets a new password using the temp session token from a pass_change challenge. The caller must log in again afterwards.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ForcePasswordChangeRequest	true	"Temp session token and new password"
//	@Success		200		{object}	authsdk.MessageResponse				"Password changed"
//	@Failure		400		{object}	authsdk.ErrorResponse				"Password too short"
//	@Failure		401		{object}	authsdk.ErrorResponse				"Invalid or expired session token"
//	@Router			/v1/auth/password/force-change [post].
func (h *LoginHandler) HandleForcePasswordChange(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForcePasswordChangeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.TempSessionToken == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.LoginService.ForcePasswordChange(r.Context(), req.TempSessionToken, req.NewPassword, httpx.ClientIP(r)); err != nil {
		writeServiceError(w, r, err, h.LoginService.Policy.MinPasswordLength)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{
		Message: "Password changed successfully. Please login again.",
	})
}

// HandleUnlock godoc
//
//	@Summary		Lift a security hold
//	@Description	Reactivates an account that was disabled by a timezone mismatch, using the token sent by email.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.UnlockRequest	true	"Unlock token"
//	@Success		200		{object}	authsdk.MessageResponse	"Unlocked or already active"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid or expired unlock token"
//	@Router			/v1/auth/unlock [post].
func (h *LoginHandler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	var req authsdk.UnlockRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Token == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	unlocked, err := h.LoginService.UnlockAccount(r.Context(), req.Token, httpx.ClientIP(r))
	if err != nil {
		writeServiceError(w, r, err, h.LoginService.Policy.MinPasswordLength)
		return
	}

	msg := "Account is already active"
	if unlocked {
		msg = "Account unlocked successfully. You can now login."
		slogx.FromContext(r.Context()).Info("account unlocked via email token")
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msg})
}

func grantResponse(g *service.TokenGrant) authsdk.LoginResponse {
	return authsdk.LoginResponse{
		TokenType:     authsdk.TokenTypeBearer,
		AccessToken:   g.AccessToken,
		RefreshToken:  g.RefreshToken,
		Role:          g.Role,
		DepartmentID:  g.DepartmentID,
		AccessExpires: int(g.AccessExpiresIn.Seconds()),
	}
}
