package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/assetflow/pkg/httpx"
)

// Error codes carried in the "error" field of every error body.
const (
	ErrorCodeInvalidRequest   = "invalid_request"
	ErrorCodeInvalidToken     = "invalid_token"
	ErrorCodeInvalidGrant     = "invalid_grant"
	ErrorCodeAccountDisabled  = "account_disabled"
	ErrorCodeAccountInactive  = "account_inactive"
	ErrorCodeSuspiciousLogin  = "suspicious_login"
	ErrorCodeSecurityHold     = "security_hold"
	ErrorCodeInvalidMFA       = "invalid_mfa"
	ErrorCodeMFARequired      = "mfa_required"
	ErrorCodeAccessDenied     = "access_denied"
	ErrorCodeNotFound         = "not_found"
	ErrorCodeAlreadyExists    = "already_exists"
	ErrorCodeServerError      = "server_error"
	ErrorCodeRateLimited      = "rate_limit_exceeded"
)

// APIError is the error body returned by every endpoint. It is used by the
// server to write responses and by the client to report them.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes the error as JSON with no-cache headers.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: e.Code, ErrorDescription: e.Description})
}

// NewAPIError builds an APIError with a custom description.
func NewAPIError(statusCode int, code, description string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Description: description}
}

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is missing, invalid or expired",
	}

	ErrAccessDenied = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeAccessDenied,
		Description: "access denied",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
