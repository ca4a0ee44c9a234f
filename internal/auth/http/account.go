package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
	"github.com/aussiebroadwan/assetflow/internal/auth/service"
	"github.com/aussiebroadwan/assetflow/pkg/authsdk"
	"github.com/aussiebroadwan/assetflow/pkg/httpx"
)

// AccountHandler serves the security endpoints of a logged in account.
type AccountHandler struct {
	LoginService *service.LoginService
}

// HandleWhitelistIP godoc
//
//	@Summary		Whitelist the calling IP
//	@Description	Adds the request's IP address to the caller's whitelist after confirming a code sent by email.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		authsdk.WhitelistIPRequest	true	"Confirmation code"
//	@Success		200		{object}	authsdk.MessageResponse		"IP whitelisted"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Invalid code or IP already whitelisted"
//	@Failure		401		{object}	authsdk.ErrorResponse		"Missing or invalid access token"
//	@Router			/v1/auth/ip-whitelist [post].
func (h *AccountHandler) HandleWhitelistIP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.WhitelistIPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Code == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	accountID := httpx.UserIDFromContext(r.Context())
	if err := h.LoginService.WhitelistIP(r.Context(), accountID, req.Code, httpx.ClientIP(r)); err != nil {
		writeServiceError(w, r, err, 0)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "IP address whitelisted successfully"})
}

// HandleListDevices godoc
//
//	@Summary		List devices
//	@Description	Lists the caller's devices, most recently seen first. Forgotten devices are omitted.
//	@Tags			Account
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.DevicesResponse	"Devices"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Missing or invalid access token"
//	@Router			/v1/auth/devices [get].
func (h *AccountHandler) HandleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.LoginService.Devices(r.Context(), httpx.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, 0)
		return
	}

	resp := authsdk.DevicesResponse{Devices: make([]authsdk.DeviceResponse, 0, len(devices))}
	for _, d := range devices {
		resp.Devices = append(resp.Devices, deviceResponse(d))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleForgetDevice godoc
//
//	@Summary		Forget a device
//	@Description	Removes a device so the next login from it is treated as new.
//	@Tags			Account
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string					true	"Device ID"
//	@Success		200	{object}	authsdk.MessageResponse	"Device forgotten"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Missing or invalid access token"
//	@Failure		404	{object}	authsdk.ErrorResponse	"Device not found"
//	@Router			/v1/auth/devices/{id} [delete].
func (h *AccountHandler) HandleForgetDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.LoginService.ForgetDevice(r.Context(), httpx.UserIDFromContext(r.Context()), id, httpx.ClientIP(r)); err != nil {
		writeServiceError(w, r, err, 0)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Device forgotten successfully"})
}

// HandleLoginHistory godoc
//
//	@Summary		Own login history
//	@Description	Lists the caller's recent login attempts, newest first.
//	@Tags			Account
//	@Produce		json
//	@Security		BearerAuth
//	@Param			limit	query		int								false	"Maximum entries (default 20, max 100)"
//	@Success		200		{object}	authsdk.LoginHistoryResponse	"Attempts"
//	@Failure		400		{object}	authsdk.ErrorResponse			"Invalid limit"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Missing or invalid access token"
//	@Router			/v1/auth/login-history [get].
func (h *AccountHandler) HandleLoginHistory(w http.ResponseWriter, r *http.Request) {
	h.writeHistory(w, r, httpx.UserIDFromContext(r.Context()))
}

// HandleAccountLoginHistory godoc
//
//	@Summary		Login history of any account
//	@Description	Lists an account's recent login attempts. Restricted to administrators.
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string							true	"Account ID"
//	@Param			limit	query		int								false	"Maximum entries (default 20, max 100)"
//	@Success		200		{object}	authsdk.LoginHistoryResponse	"Attempts"
//	@Failure		400		{object}	authsdk.ErrorResponse			"Invalid limit"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Missing or invalid access token"
//	@Failure		403		{object}	authsdk.ErrorResponse			"Not an administrator"
//	@Router			/v1/admin/accounts/{id}/login-history [get].
func (h *AccountHandler) HandleAccountLoginHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	h.writeHistory(w, r, id)
}

func (h *AccountHandler) writeHistory(w http.ResponseWriter, r *http.Request, accountID string) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "limit must be a positive integer").WriteError(w)
			return
		}
		limit = n
	}

	attempts, err := h.LoginService.LoginHistory(r.Context(), accountID, limit)
	if err != nil {
		writeServiceError(w, r, err, 0)
		return
	}

	resp := authsdk.LoginHistoryResponse{Attempts: make([]authsdk.LoginAttemptResponse, 0, len(attempts))}
	for _, a := range attempts {
		resp.Attempts = append(resp.Attempts, authsdk.LoginAttemptResponse{
			ID:            a.ID,
			Timestamp:     a.Timestamp,
			IPAddress:     a.IPAddress,
			Success:       a.Success,
			FailureReason: a.FailureReason,
			Browser:       a.Browser,
			OS:            a.OS,
			Timezone:      a.Timezone,
			Language:      a.Language,
			FraudScore:    a.FraudScore,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func deviceResponse(d domain.Device) authsdk.DeviceResponse {
	return authsdk.DeviceResponse{
		ID:               d.ID,
		DeviceInfo:       d.DeviceInfo,
		Browser:          d.Browser,
		OS:               d.OS,
		IPAtRegistration: d.IPAtRegistration,
		FirstSeen:        d.FirstSeen,
		LastSeen:         d.LastSeen,
		Trusted:          d.Trusted,
	}
}
