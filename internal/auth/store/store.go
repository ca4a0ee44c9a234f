package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this.
// It exposes sub-repositories to keep concerns tidy and testable, and to stop
// callers from opening transactions within transactions.
type Store interface {
	Accounts() Accounts
	Devices() Devices
	IPWhitelist() IPWhitelist
	LoginAttempts() LoginAttempts
	MFAChallenges() MFAChallenges
	TempDisableLogs() TempDisableLogs
	Roles() Roles
	Policies() Policies
	Departments() Departments
	AuditLogs() AuditLogs

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	//
	// Failure bookkeeping (counter increment, lockout decision, status and
	// log writes) must run inside one WithTx call so concurrent failed logins
	// for the same account cannot lose updates.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByEmail matches case-insensitively.
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	CreateAccount(ctx context.Context, a domain.Account) error

	// IncrementLoginAttempts atomically bumps the failure counter and returns
	// the new value.
	IncrementLoginAttempts(ctx context.Context, id string) (int, error)

	ResetLoginAttempts(ctx context.Context, id string) error

	// UpdateStatus persists a status and its temp-disable expiry. Callers
	// validate the transition with domain.Account.Transition first.
	UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, until *time.Time) error

	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	UpdatePassword(ctx context.Context, id string, hash string, changedAt time.Time) error
}

type Devices interface {
	// GetDevice returns the non-deleted device for (account, fingerprint hash).
	GetDevice(ctx context.Context, accountID, fingerprintHash string) (domain.Device, error)

	// ListDevices returns non-deleted devices, most recently seen first.
	ListDevices(ctx context.Context, accountID string) ([]domain.Device, error)

	CreateDevice(ctx context.Context, d domain.Device) error

	TouchDevice(ctx context.Context, id string, at time.Time) error

	// SoftDeleteDevice flags the device deleted. Returns ErrNotFound if the
	// device does not belong to the account.
	SoftDeleteDevice(ctx context.Context, accountID, id string) error
}

type IPWhitelist interface {
	IsWhitelisted(ctx context.Context, accountID, ip string) (bool, error)

	// AddIP returns ErrAlreadyExists when the pair is already present.
	AddIP(ctx context.Context, e domain.IPWhitelistEntry) error
}

type LoginAttempts interface {
	RecordAttempt(ctx context.Context, a domain.LoginAttempt) error

	// CountFailuresAfter counts failed attempts strictly after since.
	CountFailuresAfter(ctx context.Context, accountID string, since time.Time) (int, error)

	CountSuccessesFromIP(ctx context.Context, accountID, ip string) (int, error)

	// ListAttempts returns the newest attempts first.
	ListAttempts(ctx context.Context, accountID string, limit int) ([]domain.LoginAttempt, error)
}

type MFAChallenges interface {
	CreateChallenge(ctx context.Context, c domain.MFAChallenge) error

	// GetUnusedChallengeByToken returns the unused challenge bound to a temp
	// session token, expired or not.
	GetUnusedChallengeByToken(ctx context.Context, token string) (domain.MFAChallenge, error)

	// GetLatestUnusedChallengeByCode returns the newest unused challenge for
	// the account carrying code, expired or not.
	GetLatestUnusedChallengeByCode(ctx context.Context, accountID, code string) (domain.MFAChallenge, error)

	// GetChallengeByToken returns the challenge bound to a temp session
	// token in any state.
	GetChallengeByToken(ctx context.Context, token string) (domain.MFAChallenge, error)

	// ConsumeChallenge flips used=1 and marks the challenge verified.
	// Returns ErrNotFound when the challenge was already used, so only one
	// caller can win.
	ConsumeChallenge(ctx context.Context, id string) error

	// RecordFailedAttempt counts a wrong code against an unused challenge and
	// returns the new count. The challenge is burned (used, not verified)
	// once the count reaches maxAttempts. Returns ErrNotFound when the
	// challenge is already used.
	RecordFailedAttempt(ctx context.Context, id string, maxAttempts int) (int, error)

	// DeleteExpiredChallenges removes challenges that expired before the
	// given time, used or not.
	DeleteExpiredChallenges(ctx context.Context, before time.Time) (int64, error)
}

type TempDisableLogs interface {
	CreateLog(ctx context.Context, l domain.TempDisableLog) error

	// GetActiveLog returns the newest active entry for the account.
	GetActiveLog(ctx context.Context, accountID string) (domain.TempDisableLog, error)

	DeactivateLogs(ctx context.Context, accountID string) error
}

type Roles interface {
	GetRoleByID(ctx context.Context, id string) (domain.Role, error)
	CreateRole(ctx context.Context, r domain.Role) error
}

type Policies interface {
	// ListActivePoliciesForAction returns active rules naming the action,
	// highest priority first.
	ListActivePoliciesForAction(ctx context.Context, action string) ([]domain.PolicyRule, error)

	// CreatePolicy inserts a rule and returns its id.
	CreatePolicy(ctx context.Context, p domain.PolicyRule) (int64, error)
}

type Departments interface {
	GetDepartment(ctx context.Context, id string) (domain.Department, error)
	CreateDepartment(ctx context.Context, d domain.Department) error
}

type AuditLogs interface {
	// InsertBatch writes every event or none.
	InsertBatch(ctx context.Context, events []domain.AuditEvent) error

	// ListByActor returns an actor's events, newest first.
	ListByActor(ctx context.Context, actorID string, limit int) ([]domain.AuditEvent, error)
}
