package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
)

type devicesRepo struct {
	db dbtx
}

const deviceColumns = `id, account_id, fingerprint_hash, device_info, browser, os,
	ip_at_registration, first_seen, last_seen, is_trusted, is_deleted`

func scanDevice(row interface{ Scan(...any) error }) (domain.Device, error) {
	var (
		d                   domain.Device
		firstSeen, lastSeen int64
		trusted, deleted    int
	)
	err := row.Scan(&d.ID, &d.AccountID, &d.FingerprintHash, &d.DeviceInfo, &d.Browser, &d.OS,
		&d.IPAtRegistration, &firstSeen, &lastSeen, &trusted, &deleted)
	if err != nil {
		return domain.Device{}, mapNotFound(err)
	}
	d.FirstSeen = fromMillis(firstSeen)
	d.LastSeen = fromMillis(lastSeen)
	d.Trusted = trusted != 0
	d.Deleted = deleted != 0
	return d, nil
}

func (r *devicesRepo) GetDevice(ctx context.Context, accountID, fingerprintHash string) (domain.Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+deviceColumns+` FROM devices
		WHERE account_id = ? AND fingerprint_hash = ? AND is_deleted = 0
		ORDER BY last_seen DESC LIMIT 1`, accountID, fingerprintHash)
	return scanDevice(row)
}

func (r *devicesRepo) ListDevices(ctx context.Context, accountID string) ([]domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+deviceColumns+` FROM devices
		WHERE account_id = ? AND is_deleted = 0
		ORDER BY last_seen DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *devicesRepo) CreateDevice(ctx context.Context, d domain.Device) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.AccountID, d.FingerprintHash, d.DeviceInfo, d.Browser, d.OS,
		d.IPAtRegistration, toMillis(d.FirstSeen), toMillis(d.LastSeen),
		boolInt(d.Trusted), boolInt(d.Deleted),
	)
	return mapConstraint(err)
}

func (r *devicesRepo) TouchDevice(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE devices SET last_seen = ? WHERE id = ?`, toMillis(at), id)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (r *devicesRepo) SoftDeleteDevice(ctx context.Context, accountID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices SET is_deleted = 1
		WHERE id = ? AND account_id = ? AND is_deleted = 0`, id, accountID)
	if err != nil {
		return err
	}
	return requireRows(res)
}
