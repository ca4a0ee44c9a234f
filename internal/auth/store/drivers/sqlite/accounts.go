package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
	"github.com/aussiebroadwan/assetflow/internal/auth/store"
)

type accountsRepo struct {
	db dbtx
}

const accountColumns = `id, first_name, last_name, email, password_hash, status, login_attempts,
	last_login, last_password_change, temp_disabled_until, role_id, position_title,
	is_accounting_officer, department_id, county, assigned_permissions, access_scope,
	timezone, created_at`

func scanAccount(row interface{ Scan(...any) error }) (domain.Account, error) {
	var (
		a                   domain.Account
		status              string
		lastLogin           sql.NullInt64
		lastPasswordChange  sql.NullInt64
		tempDisabledUntil   sql.NullInt64
		roleID              sql.NullString
		isAccountingOfficer int
		departmentID        sql.NullString
		assigned            string
		scope               sql.NullString
		createdAt           int64
	)

	err := row.Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash, &status, &a.LoginAttempts,
		&lastLogin, &lastPasswordChange, &tempDisabledUntil, &roleID, &a.PositionTitle,
		&isAccountingOfficer, &departmentID, &a.County, &assigned, &scope,
		&a.Timezone, &createdAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	perms, err := decodeStrings(assigned)
	if err != nil {
		return domain.Account{}, fmt.Errorf("decode assigned permissions: %w", err)
	}

	a.Status = domain.AccountStatus(status)
	a.LastLogin = mapNullMillisPtr(lastLogin)
	a.LastPasswordChange = mapNullMillisPtr(lastPasswordChange)
	a.TempDisabledUntil = mapNullMillisPtr(tempDisabledUntil)
	a.RoleID = mapNullString(roleID)
	a.IsAccountingOfficer = isAccountingOfficer != 0
	a.DepartmentID = mapNullString(departmentID)
	a.AssignedPermissions = perms
	if scope.Valid && scope.String != "" {
		a.AccessScope = json.RawMessage(scope.String)
	}
	a.CreatedAt = fromMillis(createdAt)
	return a, nil
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
	return scanAccount(row)
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	perms, err := encodeStrings(a.AssignedPermissions)
	if err != nil {
		return err
	}

	var scope sql.NullString
	if len(a.AccessScope) > 0 {
		scope = sql.NullString{String: string(a.AccessScope), Valid: true}
	}

	position := a.PositionTitle
	if position == "" {
		position = domain.DefaultPositionTitle
	}

	status := a.Status
	if status == "" {
		status = domain.StatusInactive
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.FirstName, a.LastName, a.Email, a.PasswordHash, string(status), a.LoginAttempts,
		mapOptionalMillis(a.LastLogin), mapOptionalMillis(a.LastPasswordChange),
		mapOptionalMillis(a.TempDisabledUntil), mapStringNull(a.RoleID), position,
		boolInt(a.IsAccountingOfficer), mapStringNull(a.DepartmentID), a.County, perms, scope,
		a.Timezone, toMillis(a.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *accountsRepo) IncrementLoginAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE accounts SET login_attempts = login_attempts + 1
		WHERE id = ?
		RETURNING login_attempts`, id).Scan(&attempts)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return attempts, nil
}

func (r *accountsRepo) ResetLoginAttempts(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE accounts SET login_attempts = 0 WHERE id = ?`, id)
}

func (r *accountsRepo) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, until *time.Time) error {
	return r.exec(ctx, `UPDATE accounts SET status = ?, temp_disabled_until = ? WHERE id = ?`,
		string(status), mapOptionalMillis(until), id)
}

func (r *accountsRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE accounts SET last_login = ? WHERE id = ?`, toMillis(at), id)
}

func (r *accountsRepo) UpdatePassword(ctx context.Context, id string, hash string, changedAt time.Time) error {
	return r.exec(ctx, `UPDATE accounts SET password_hash = ?, last_password_change = ? WHERE id = ?`,
		hash, toMillis(changedAt), id)
}

// exec runs a single-row update and reports ErrNotFound when nothing matched.
func (r *accountsRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func requireRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
