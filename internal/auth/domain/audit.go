package domain

import "time"

// AuditAction names what an audit event records.
type AuditAction string

const (
	ActionCreate                AuditAction = "create"
	ActionUpdate                AuditAction = "update"
	ActionDelete                AuditAction = "delete"
	ActionLogin                 AuditAction = "login"
	ActionLogout                AuditAction = "logout"
	ActionView                  AuditAction = "view"
	ActionPermissionDenied      AuditAction = "permission_denied"
	ActionPasswordChange        AuditAction = "password_change"
	ActionTwoFASent             AuditAction = "two_fa_sent"
	ActionTwoFAVerified         AuditAction = "two_fa_verified"
	ActionTwoFAFailed           AuditAction = "two_fa_failed"
	ActionNewDeviceDetected     AuditAction = "new_device_detected"
	ActionNewIPDetected         AuditAction = "new_ip_detected"
	ActionAccountLocked         AuditAction = "account_locked"
	ActionAccountUnlocked       AuditAction = "account_unlocked"
	ActionSuspiciousActivity    AuditAction = "suspicious_activity"
	ActionWorkingHoursViolation AuditAction = "working_hours_violation"
	ActionBruteForceDetected    AuditAction = "brute_force_detected"
	ActionDeviceTrusted         AuditAction = "device_trusted"
	ActionDeviceRemoved         AuditAction = "device_removed"
)

type AuditLevel string

const (
	LevelDebug    AuditLevel = "debug"
	LevelInfo     AuditLevel = "info"
	LevelWarning  AuditLevel = "warning"
	LevelError    AuditLevel = "error"
	LevelCritical AuditLevel = "critical"
)

// AuditEvent is one entry of the activity log.
type AuditEvent struct {
	ID          string
	ActorID     string // empty for anonymous events
	Action      AuditAction
	TargetTable string
	TargetID    string
	Level       AuditLevel
	Details     map[string]any
	CreatedAt   time.Time
}
