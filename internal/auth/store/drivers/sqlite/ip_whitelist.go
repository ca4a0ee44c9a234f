package sqlite

import (
	"context"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
)

type ipWhitelistRepo struct {
	db dbtx
}

func (r *ipWhitelistRepo) IsWhitelisted(ctx context.Context, accountID, ip string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM ip_whitelist WHERE account_id = ? AND ip_address = ?)`,
		accountID, ip).Scan(&exists)
	return exists != 0, err
}

func (r *ipWhitelistRepo) AddIP(ctx context.Context, e domain.IPWhitelistEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ip_whitelist (id, account_id, ip_address, whitelist_type, whitelisted_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, e.IPAddress, string(e.Type), toMillis(e.WhitelistedAt))
	return mapConstraint(err)
}
