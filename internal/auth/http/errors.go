package http

import (
	"errors"
	"fmt"
	"net/http"
	"unicode"
	"unicode/utf8"

	"github.com/aussiebroadwan/assetflow/internal/auth/service"
	"github.com/aussiebroadwan/assetflow/pkg/authsdk"
	"github.com/aussiebroadwan/assetflow/pkg/slogx"
)

// writeServiceError maps an error from the login service onto the response
// body clients see. Anything unrecognised is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, minPasswordLength int) {
	var (
		disabled *service.AccountDisabledError
		state    *service.AccountStateError
		hold     *service.SecurityHoldError
	)

	var apiErr *authsdk.APIError
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		apiErr = authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeInvalidGrant, "Invalid email or password")
	case errors.As(err, &disabled):
		apiErr = authsdk.NewAPIError(http.StatusForbidden, authsdk.ErrorCodeAccountDisabled, sentence(disabled.Error()))
	case errors.As(err, &state):
		apiErr = authsdk.NewAPIError(http.StatusForbidden, authsdk.ErrorCodeAccountInactive, sentence(state.Error()))
	case errors.Is(err, service.ErrSuspiciousIP):
		apiErr = authsdk.NewAPIError(http.StatusForbidden, authsdk.ErrorCodeSuspiciousLogin,
			"Login blocked due to suspicious activity. Account temporarily disabled.")
	case errors.As(err, &hold):
		apiErr = authsdk.NewAPIError(http.StatusForbidden, authsdk.ErrorCodeSecurityHold,
			"Login blocked due to timezone mismatch. Check your email for unlock instructions.")
	case errors.Is(err, service.ErrInvalidSession):
		apiErr = authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken, "Invalid or expired session token")
	case errors.Is(err, service.ErrChallengeNotFound):
		apiErr = authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidMFA, "Invalid MFA session")
	case errors.Is(err, service.ErrChallengeExpired):
		apiErr = authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidMFA, "MFA code expired")
	case errors.Is(err, service.ErrInvalidCode):
		apiErr = authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidMFA, "Invalid MFA code")
	case errors.Is(err, service.ErrTooManyMFAAttempts):
		apiErr = authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidMFA,
			"Too many invalid MFA codes. Log in again to receive a new code.")
	case errors.Is(err, service.ErrMFARequired):
		apiErr = authsdk.NewAPIError(http.StatusForbidden, authsdk.ErrorCodeMFARequired, "Verify the MFA code before changing the password")
	case errors.Is(err, service.ErrNoPasswordChange):
		apiErr = authsdk.NewAPIError(http.StatusForbidden, authsdk.ErrorCodeAccessDenied, "This session does not permit a password change")
	case errors.Is(err, service.ErrInvalidUnlockToken):
		apiErr = authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidToken, "Invalid or expired unlock token")
	case errors.Is(err, service.ErrAccountNotFound):
		apiErr = authsdk.NewAPIError(http.StatusNotFound, authsdk.ErrorCodeNotFound, "Account not found")
	case errors.Is(err, service.ErrAlreadyWhitelisted):
		apiErr = authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeAlreadyExists, "IP already whitelisted")
	case errors.Is(err, service.ErrDeviceNotFound):
		apiErr = authsdk.NewAPIError(http.StatusNotFound, authsdk.ErrorCodeNotFound, "Device not found")
	case errors.Is(err, service.ErrWeakPassword):
		apiErr = authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	default:
		slogx.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		apiErr = authsdk.ErrServerError
	}

	apiErr.WriteError(w)
}

// sentence upper-cases the first letter of an error string.
func sentence(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
