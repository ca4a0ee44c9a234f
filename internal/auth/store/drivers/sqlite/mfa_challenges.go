package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
)

type mfaChallengesRepo struct {
	db dbtx
}

func (r *mfaChallengesRepo) CreateChallenge(ctx context.Context, c domain.MFAChallenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_challenges
			(id, account_id, code, temp_session_token, fingerprint_hash, ip_address, expires_at, used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.AccountID, c.Code, c.TempSessionToken, c.FingerprintHash, c.IPAddress,
		toMillis(c.ExpiresAt), boolInt(c.Used), toMillis(c.CreatedAt))
	return mapConstraint(err)
}

const mfaChallengeColumns = `id, account_id, code, temp_session_token, fingerprint_hash, ip_address,
	expires_at, used, attempts, verified, created_at`

func scanChallenge(row interface{ Scan(...any) error }) (domain.MFAChallenge, error) {
	var (
		c                    domain.MFAChallenge
		expiresAt, createdAt int64
		used, verified       int
	)
	err := row.Scan(&c.ID, &c.AccountID, &c.Code, &c.TempSessionToken, &c.FingerprintHash, &c.IPAddress,
		&expiresAt, &used, &c.Attempts, &verified, &createdAt)
	if err != nil {
		return domain.MFAChallenge{}, mapNotFound(err)
	}
	c.ExpiresAt = fromMillis(expiresAt)
	c.CreatedAt = fromMillis(createdAt)
	c.Used = used != 0
	c.Verified = verified != 0
	return c, nil
}

func (r *mfaChallengesRepo) GetChallengeByToken(ctx context.Context, token string) (domain.MFAChallenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+mfaChallengeColumns+` FROM mfa_challenges
		WHERE temp_session_token = ?`, token)
	return scanChallenge(row)
}

func (r *mfaChallengesRepo) GetUnusedChallengeByToken(ctx context.Context, token string) (domain.MFAChallenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+mfaChallengeColumns+` FROM mfa_challenges
		WHERE temp_session_token = ? AND used = 0`, token)
	return scanChallenge(row)
}

func (r *mfaChallengesRepo) GetLatestUnusedChallengeByCode(ctx context.Context, accountID, code string) (domain.MFAChallenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+mfaChallengeColumns+` FROM mfa_challenges
		WHERE account_id = ? AND code = ? AND used = 0
		ORDER BY created_at DESC LIMIT 1`, accountID, code)
	return scanChallenge(row)
}

func (r *mfaChallengesRepo) ConsumeChallenge(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE mfa_challenges SET used = 1, verified = 1 WHERE id = ? AND used = 0`, id)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (r *mfaChallengesRepo) RecordFailedAttempt(ctx context.Context, id string, maxAttempts int) (int, error) {
	// SET expressions see the row as it was before the update.
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE mfa_challenges
		SET attempts = attempts + 1,
		    used = CASE WHEN attempts + 1 >= ? THEN 1 ELSE used END
		WHERE id = ? AND used = 0
		RETURNING attempts`, maxAttempts, id).Scan(&attempts)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return attempts, nil
}

func (r *mfaChallengesRepo) DeleteExpiredChallenges(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mfa_challenges WHERE expires_at < ?`, toMillis(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
