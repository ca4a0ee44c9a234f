package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
)

type departmentsRepo struct {
	db dbtx
}

func (r *departmentsRepo) GetDepartment(ctx context.Context, id string) (domain.Department, error) {
	var (
		d            domain.Department
		head, deputy sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, head_id, deputy_head_id FROM departments WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &head, &deputy)
	if err != nil {
		return domain.Department{}, mapNotFound(err)
	}
	d.HeadID = mapNullString(head)
	d.DeputyHeadID = mapNullString(deputy)
	return d, nil
}

func (r *departmentsRepo) CreateDepartment(ctx context.Context, d domain.Department) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO departments (id, name, head_id, deputy_head_id) VALUES (?, ?, ?, ?)`,
		d.ID, d.Name, mapStringNull(d.HeadID), mapStringNull(d.DeputyHeadID))
	return mapConstraint(err)
}
