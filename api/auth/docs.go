// Package auth holds the Swagger document served at /swagger/. Regenerate it
// with `swag init -g internal/auth/http/router.go -o api/auth` after changing
// handler annotations.
package auth

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "AussieBroadWAN Team",
            "url": "https://github.com/aussiebroadwan/assetflow"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/auth/login": {
            "post": {
                "description": "Checks the password, scores the attempt for risk and either issues tokens or returns a challenge.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Log in with email and password",
                "parameters": [
                    {"description": "Credentials and device context", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Tokens or challenge", "schema": {"$ref": "#/definitions/authsdk.LoginResponse"}},
                    "400": {"description": "Malformed request", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "401": {"description": "Invalid email or password", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "403": {"description": "Account disabled, inactive or login blocked", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/v1/auth/mfa/verify": {
            "post": {
                "description": "Exchanges a temp session token and the six digit code for access and refresh tokens.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Complete a login challenge with an emailed code",
                "parameters": [
                    {"description": "Temp session token and code", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.MFAVerifyRequest"}}
                ],
                "responses": {
                    "200": {"description": "Tokens", "schema": {"$ref": "#/definitions/authsdk.LoginResponse"}},
                    "400": {"description": "Invalid MFA session, code or expired code", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "401": {"description": "Invalid or expired session token", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/v1/auth/password/force-change": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Replace an expired password",
                "parameters": [
                    {"description": "Temp session token and new password", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.ForcePasswordChangeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Password changed", "schema": {"$ref": "#/definitions/authsdk.MessageResponse"}},
                    "400": {"description": "Password too short", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "401": {"description": "Invalid or expired session token", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/v1/auth/unlock": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Lift a security hold",
                "parameters": [
                    {"description": "Unlock token", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.UnlockRequest"}}
                ],
                "responses": {
                    "200": {"description": "Unlocked or already active", "schema": {"$ref": "#/definitions/authsdk.MessageResponse"}},
                    "400": {"description": "Invalid or expired unlock token", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/v1/auth/ip-whitelist": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Account"],
                "summary": "Whitelist the calling IP",
                "parameters": [
                    {"description": "Confirmation code", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.WhitelistIPRequest"}}
                ],
                "responses": {
                    "200": {"description": "IP whitelisted", "schema": {"$ref": "#/definitions/authsdk.MessageResponse"}},
                    "400": {"description": "Invalid code or IP already whitelisted", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/v1/auth/devices": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Account"],
                "summary": "List devices",
                "responses": {
                    "200": {"description": "Devices", "schema": {"$ref": "#/definitions/authsdk.DevicesResponse"}}
                }
            }
        },
        "/v1/auth/devices/{id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Account"],
                "summary": "Forget a device",
                "parameters": [
                    {"type": "string", "description": "Device ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Device forgotten", "schema": {"$ref": "#/definitions/authsdk.MessageResponse"}},
                    "404": {"description": "Device not found", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/v1/auth/login-history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Account"],
                "summary": "Own login history",
                "parameters": [
                    {"type": "integer", "description": "Maximum entries (default 20, max 100)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Attempts", "schema": {"$ref": "#/definitions/authsdk.LoginHistoryResponse"}}
                }
            }
        },
        "/v1/admin/accounts/{id}/login-history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Login history of any account",
                "parameters": [
                    {"type": "string", "description": "Account ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Maximum entries (default 20, max 100)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Attempts", "schema": {"$ref": "#/definitions/authsdk.LoginHistoryResponse"}},
                    "403": {"description": "Not an administrator", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/v1/authz/check": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Authz"],
                "summary": "Check a permission",
                "parameters": [
                    {"description": "Resource type, action and resource attributes", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.AuthzCheckRequest"}}
                ],
                "responses": {
                    "200": {"description": "Decision", "schema": {"$ref": "#/definitions/authsdk.AuthzCheckResponse"}}
                }
            }
        },
        "/v1/authz/scope": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Authz"],
                "summary": "Caller's list filter",
                "responses": {
                    "200": {"description": "Filter", "schema": {"$ref": "#/definitions/authsdk.ScopeResponse"}}
                }
            }
        },
        "/.well-known/jwks.json": {
            "get": {
                "produces": ["application/json"],
                "tags": ["well-known"],
                "summary": "Get JWKS",
                "responses": {"200": {"description": "The JSON Web Key Set"}}
            }
        },
        "/livez": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health Check Endpoint",
                "responses": {"200": {"description": "status, uptime, version", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}}
            }
        },
        "/readyz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness Check Endpoint",
                "responses": {
                    "200": {"description": "status, uptime, version, checks", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}},
                    "503": {"description": "service not ready", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "authsdk.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "invalid_grant"},
                "error_description": {"type": "string", "example": "Invalid email or password"}
            }
        },
        "authsdk.MessageResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "authsdk.LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "device_fingerprint": {"type": "string"},
                "timezone": {"type": "string", "example": "EAT"},
                "language": {"type": "string", "example": "en"},
                "remember_me": {"type": "boolean"}
            }
        },
        "authsdk.LoginResponse": {
            "type": "object",
            "properties": {
                "token_type": {"type": "string", "example": "bearer"},
                "access_token": {"type": "string"},
                "refresh_token": {"type": "string"},
                "role": {"type": "string"},
                "dept_id": {"type": "string"},
                "a_expires": {"type": "integer", "example": 900},
                "temp_session_token": {"type": "string"},
                "req_mfa": {"type": "boolean"},
                "pass_change": {"type": "boolean"},
                "reasons": {"type": "array", "items": {"type": "string"}}
            }
        },
        "authsdk.MFAVerifyRequest": {
            "type": "object",
            "properties": {
                "temp_session_token": {"type": "string"},
                "mfa_code": {"type": "string", "example": "482913"}
            }
        },
        "authsdk.ForcePasswordChangeRequest": {
            "type": "object",
            "properties": {
                "temp_session_token": {"type": "string"},
                "new_password": {"type": "string"}
            }
        },
        "authsdk.UnlockRequest": {
            "type": "object",
            "properties": {"token": {"type": "string"}}
        },
        "authsdk.WhitelistIPRequest": {
            "type": "object",
            "properties": {"mfa_code": {"type": "string"}}
        },
        "authsdk.DeviceResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "device_info": {"type": "string"},
                "browser": {"type": "string"},
                "os": {"type": "string"},
                "ip_at_registration": {"type": "string"},
                "first_seen": {"type": "string"},
                "last_seen": {"type": "string"},
                "is_trusted": {"type": "boolean"}
            }
        },
        "authsdk.DevicesResponse": {
            "type": "object",
            "properties": {"devices": {"type": "array", "items": {"$ref": "#/definitions/authsdk.DeviceResponse"}}}
        },
        "authsdk.LoginAttemptResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "timestamp": {"type": "string"},
                "ip_address": {"type": "string"},
                "success": {"type": "boolean"},
                "failure_reason": {"type": "string"},
                "browser": {"type": "string"},
                "os": {"type": "string"},
                "timezone": {"type": "string"},
                "language": {"type": "string"},
                "fraud_score": {"type": "integer"}
            }
        },
        "authsdk.LoginHistoryResponse": {
            "type": "object",
            "properties": {"attempts": {"type": "array", "items": {"$ref": "#/definitions/authsdk.LoginAttemptResponse"}}}
        },
        "authsdk.AuthzCheckRequest": {
            "type": "object",
            "properties": {
                "resource": {"type": "string", "example": "asset"},
                "action": {"type": "string", "example": "view"},
                "resource_attributes": {"type": "object", "additionalProperties": true}
            }
        },
        "authsdk.AuthzCheckResponse": {
            "type": "object",
            "properties": {
                "allowed": {"type": "boolean"},
                "layer": {"type": "string", "example": "scope"},
                "reason": {"type": "string"}
            }
        },
        "authsdk.ScopeResponse": {
            "type": "object",
            "properties": {
                "departments": {"type": "array", "items": {"type": "string"}},
                "counties": {"type": "array", "items": {"type": "string"}},
                "categories": {"type": "array", "items": {"type": "string"}}
            }
        },
        "authsdk.HealthChecks": {
            "type": "object",
            "properties": {
                "database": {"type": "string"},
                "signer": {"type": "string"},
                "audit": {"type": "string"}
            }
        },
        "authsdk.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "uptime": {"type": "string"},
                "version": {"type": "string"},
                "checks": {"$ref": "#/definitions/authsdk.HealthChecks"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT access token. Format: \"Bearer {token}\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "AssetFlow Authentication Service API",
	Description:      "Adaptive login and permission decisions for the county asset register.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
