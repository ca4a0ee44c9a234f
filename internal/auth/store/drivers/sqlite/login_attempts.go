package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
)

type loginAttemptsRepo struct {
	db dbtx
}

const loginAttemptColumns = `id, account_id, email, ip_address, fingerprint_hash, success,
	failure_reason, device_info, browser, os, timezone, language, ip_details, fraud_score, timestamp`

func (r *loginAttemptsRepo) RecordAttempt(ctx context.Context, a domain.LoginAttempt) error {
	details, err := encodeDetails(a.IPDetails)
	if err != nil {
		return fmt.Errorf("encode ip details: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO login_attempts (`+loginAttemptColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, mapStringNull(a.AccountID), a.Email, a.IPAddress, a.FingerprintHash, boolInt(a.Success),
		a.FailureReason, a.DeviceInfo, a.Browser, a.OS, a.Timezone, a.Language, details,
		a.FraudScore, toMillis(a.Timestamp),
	)
	return mapConstraint(err)
}

func (r *loginAttemptsRepo) CountFailuresAfter(ctx context.Context, accountID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE account_id = ? AND success = 0 AND timestamp > ?`,
		accountID, toMillis(since)).Scan(&n)
	return n, err
}

func (r *loginAttemptsRepo) CountSuccessesFromIP(ctx context.Context, accountID, ip string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE account_id = ? AND ip_address = ? AND success = 1`,
		accountID, ip).Scan(&n)
	return n, err
}

func (r *loginAttemptsRepo) ListAttempts(ctx context.Context, accountID string, limit int) ([]domain.LoginAttempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+loginAttemptColumns+` FROM login_attempts
		WHERE account_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LoginAttempt
	for rows.Next() {
		var (
			a       domain.LoginAttempt
			acct    sql.NullString
			success int
			details sql.NullString
			ts      int64
		)
		if err := rows.Scan(&a.ID, &acct, &a.Email, &a.IPAddress, &a.FingerprintHash, &success,
			&a.FailureReason, &a.DeviceInfo, &a.Browser, &a.OS, &a.Timezone, &a.Language, &details,
			&a.FraudScore, &ts); err != nil {
			return nil, err
		}
		a.AccountID = mapNullString(acct)
		a.Success = success != 0
		a.Timestamp = fromMillis(ts)
		if a.IPDetails, err = decodeDetails(details); err != nil {
			return nil, fmt.Errorf("decode ip details: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
