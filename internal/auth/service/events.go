package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
	"github.com/aussiebroadwan/assetflow/pkg/slogx"
)

// Auditor accepts activity log events. audit.Pipeline implements it.
type Auditor interface {
	Enqueue(e domain.AuditEvent) bool
}

func auditEvent(actor string, action domain.AuditAction, table, target string, level domain.AuditLevel, details map[string]any, now time.Time) domain.AuditEvent {
	return domain.AuditEvent{
		ActorID:     actor,
		Action:      action,
		TargetTable: table,
		TargetID:    target,
		Level:       level,
		Details:     details,
		CreatedAt:   now,
	}
}

// departmentHeads returns the head and deputy of the account's department.
// Lookup failures are logged and yield fewer recipients.
func departmentHeads(ctx context.Context, accounts interface {
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)
}, departments interface {
	GetDepartment(ctx context.Context, id string) (domain.Department, error)
}, a domain.Account) []domain.Account {
	if a.DepartmentID == "" {
		return nil
	}
	log := slogx.FromContext(ctx)

	dept, err := departments.GetDepartment(ctx, a.DepartmentID)
	if err != nil {
		log.Debug("department lookup failed", "department_id", a.DepartmentID, "err", err)
		return nil
	}

	var heads []domain.Account
	for _, id := range []string{dept.HeadID, dept.DeputyHeadID} {
		if id == "" {
			continue
		}
		head, err := accounts.GetAccountByID(ctx, id)
		if err != nil {
			log.Debug("department head lookup failed", "account_id", id, "err", err)
			continue
		}
		heads = append(heads, head)
	}
	return heads
}
