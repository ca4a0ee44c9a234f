package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	StatusActive       AccountStatus = "active"
	StatusInactive     AccountStatus = "inactive"
	StatusSuspended    AccountStatus = "suspended"
	StatusTempDisabled AccountStatus = "temp_disabled"
	StatusDeleted      AccountStatus = "deleted"
)

// DefaultPositionTitle is assigned to accounts created without a position.
const DefaultPositionTitle = "member"

var ErrIllegalTransition = errors.New("domain: illegal account status transition")

// transitions lists every legal status change. Anything missing is illegal,
// which makes deleted terminal and keeps suspended sticky.
var transitions = map[AccountStatus][]AccountStatus{
	StatusInactive:     {StatusActive, StatusSuspended, StatusDeleted},
	StatusActive:       {StatusTempDisabled, StatusSuspended, StatusDeleted},
	StatusTempDisabled: {StatusActive, StatusTempDisabled, StatusSuspended, StatusDeleted},
	StatusSuspended:    {StatusDeleted},
}

// CanTransition reports whether an account may move from one status to another.
func CanTransition(from, to AccountStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Account struct {
	ID                  string
	FirstName           string
	LastName            string
	Email               string
	PasswordHash        string // argon2 encoded
	Status              AccountStatus
	LoginAttempts       int
	LastLogin           *time.Time
	LastPasswordChange  *time.Time
	TempDisabledUntil   *time.Time
	RoleID              string // empty when no role is assigned
	PositionTitle       string
	IsAccountingOfficer bool
	DepartmentID        string
	County              string
	AssignedPermissions []string
	AccessScope         json.RawMessage // explicit overrides, merged over the default scope
	Timezone            string
	CreatedAt           time.Time
}

// Transition moves the account to a new status. Entering temp_disabled
// requires an expiry; every other target clears it.
func (a *Account) Transition(to AccountStatus, until *time.Time) error {
	if !CanTransition(a.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.Status, to)
	}
	if to == StatusTempDisabled {
		if until == nil {
			return fmt.Errorf("%w: temp_disabled requires an expiry", ErrIllegalTransition)
		}
		u := *until
		a.TempDisabledUntil = &u
	} else {
		a.TempDisabledUntil = nil
	}
	a.Status = to
	return nil
}

// IsTempDisabled reports whether a temp-disable is still in force at now.
func (a Account) IsTempDisabled(now time.Time) bool {
	if a.Status != StatusTempDisabled || a.TempDisabledUntil == nil {
		return false
	}
	return now.Before(*a.TempDisabledUntil)
}

// TempDisableExpired reports whether the account is temp-disabled but the
// lock has run out.
func (a Account) TempDisableExpired(now time.Time) bool {
	if a.Status != StatusTempDisabled || a.TempDisabledUntil == nil {
		return false
	}
	return !now.Before(*a.TempDisabledUntil)
}

func (a Account) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

type Department struct {
	ID           string
	Name         string
	HeadID       string
	DeputyHeadID string
}
