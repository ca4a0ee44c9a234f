package authsdk

import (
	"time"

	"github.com/aussiebroadwan/assetflow/pkg/jwtx"
)

// ErrorResponse is the wire form of APIError.
type ErrorResponse struct {
	Error            string `json:"error" example:"invalid_grant"`
	ErrorDescription string `json:"error_description" example:"Invalid email or password"`
}

// MessageResponse is returned by endpoints that only report success.
type MessageResponse struct {
	Message string `json:"message" example:"Device forgotten successfully"`
}

// ============================================================================
// Login
// ============================================================================

type LoginRequest struct {
	Email       string `json:"email" example:"wanjiru@county.go.ke"`
	Password    string `json:"password" example:"correct horse battery"`
	Fingerprint string `json:"device_fingerprint,omitempty" example:"b6f1c9..."`
	Timezone    string `json:"timezone,omitempty" example:"EAT"`
	Language    string `json:"language,omitempty" example:"en"`
	RememberMe  bool   `json:"remember_me,omitempty"`
}

// Token types reported in LoginResponse.TokenType.
const (
	TokenTypeBearer      = "bearer"
	TokenTypeTempSession = "temp_session"
)

// LoginResponse is either a token grant (TokenType "bearer") or a challenge
// (TokenType "temp_session") asking for an MFA code and/or a new password.
type LoginResponse struct {
	TokenType string `json:"token_type" example:"bearer"`

	AccessToken   string `json:"access_token,omitempty"`
	RefreshToken  string `json:"refresh_token,omitempty"`
	Role          string `json:"role,omitempty" example:"officer"`
	DepartmentID  string `json:"dept_id,omitempty"`
	AccessExpires int    `json:"a_expires,omitempty" example:"900"`

	TempSessionToken string   `json:"temp_session_token,omitempty"`
	RequireMFA       bool     `json:"req_mfa,omitempty"`
	PasswordChange   bool     `json:"pass_change,omitempty"`
	Reasons          []string `json:"reasons,omitempty"`
}

// IsChallenge reports whether the login needs a second step.
func (r LoginResponse) IsChallenge() bool { return r.TokenType == TokenTypeTempSession }

type MFAVerifyRequest struct {
	TempSessionToken string `json:"temp_session_token"`
	Code             string `json:"mfa_code" example:"482913"`
}

type ForcePasswordChangeRequest struct {
	TempSessionToken string `json:"temp_session_token"`
	NewPassword      string `json:"new_password"`
}

type UnlockRequest struct {
	Token string `json:"token"`
}

type WhitelistIPRequest struct {
	Code string `json:"mfa_code" example:"482913"`
}

// ============================================================================
// Devices and history
// ============================================================================

type DeviceResponse struct {
	ID               string    `json:"id"`
	DeviceInfo       string    `json:"device_info"`
	Browser          string    `json:"browser" example:"Chrome"`
	OS               string    `json:"os" example:"Windows"`
	IPAtRegistration string    `json:"ip_at_registration"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
	Trusted          bool      `json:"is_trusted"`
}

type DevicesResponse struct {
	Devices []DeviceResponse `json:"devices"`
}

type LoginAttemptResponse struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	IPAddress     string    `json:"ip_address"`
	Success       bool      `json:"success"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Browser       string    `json:"browser"`
	OS            string    `json:"os"`
	Timezone      string    `json:"timezone"`
	Language      string    `json:"language"`
	FraudScore    int       `json:"fraud_score"`
}

type LoginHistoryResponse struct {
	Attempts []LoginAttemptResponse `json:"attempts"`
}

// ============================================================================
// Authorization
// ============================================================================

// AuthzCheckRequest asks whether the caller may perform action on a resource.
// Attributes describe the resource instance; leave them empty to check the
// role layer and policies only.
type AuthzCheckRequest struct {
	Resource   string         `json:"resource" example:"asset"`
	Action     string         `json:"action" example:"view"`
	Attributes map[string]any `json:"resource_attributes,omitempty"`
}

type AuthzCheckResponse struct {
	Allowed bool   `json:"allowed"`
	Layer   string `json:"layer,omitempty" example:"scope"`
	Reason  string `json:"reason,omitempty"`
}

// ScopeResponse is the list filter for the caller. An omitted dimension is
// unrestricted.
type ScopeResponse struct {
	Departments []string `json:"departments,omitempty"`
	Counties    []string `json:"counties,omitempty" example:"nairobi"`
	Categories  []string `json:"categories,omitempty"`
}

// ============================================================================
// Health and keys
// ============================================================================

// HealthResponse is returned by /livez and /readyz. Checks is only set by
// /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
	Audit    string `json:"audit,omitempty"`
}

// JWKSResponse holds the public keys that verify access tokens.
type JWKSResponse jwtx.JWKS
