package sqlite

import (
	"context"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
)

type tempDisableLogsRepo struct {
	db dbtx
}

func (r *tempDisableLogsRepo) CreateLog(ctx context.Context, l domain.TempDisableLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO temp_disable_logs (id, account_id, reason, disabled_at, disabled_until, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.AccountID, l.Reason, toMillis(l.DisabledAt), toMillis(l.DisabledUntil), boolInt(l.Active))
	return mapConstraint(err)
}

func (r *tempDisableLogsRepo) GetActiveLog(ctx context.Context, accountID string) (domain.TempDisableLog, error) {
	var (
		l                         domain.TempDisableLog
		disabledAt, disabledUntil int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, reason, disabled_at, disabled_until
		FROM temp_disable_logs
		WHERE account_id = ? AND is_active = 1
		ORDER BY disabled_at DESC, id DESC
		LIMIT 1`, accountID).
		Scan(&l.ID, &l.AccountID, &l.Reason, &disabledAt, &disabledUntil)
	if err != nil {
		return domain.TempDisableLog{}, mapNotFound(err)
	}
	l.DisabledAt = fromMillis(disabledAt)
	l.DisabledUntil = fromMillis(disabledUntil)
	l.Active = true
	return l, nil
}

func (r *tempDisableLogsRepo) DeactivateLogs(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE temp_disable_logs SET is_active = 0 WHERE account_id = ? AND is_active = 1`, accountID)
	return err
}
