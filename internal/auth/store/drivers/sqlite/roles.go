package sqlite

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
)

type rolesRepo struct {
	db dbtx
}

func (r *rolesRepo) GetRoleByID(ctx context.Context, id string) (domain.Role, error) {
	var (
		role  domain.Role
		perms string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, permissions FROM roles WHERE id = ?`, id).
		Scan(&role.ID, &role.Name, &role.Description, &perms)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	if role.Permissions, err = decodeStrings(perms); err != nil {
		return domain.Role{}, fmt.Errorf("decode role permissions: %w", err)
	}
	return role, nil
}

func (r *rolesRepo) CreateRole(ctx context.Context, role domain.Role) error {
	perms, err := encodeStrings(role.Permissions)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO roles (id, name, description, permissions) VALUES (?, ?, ?, ?)`,
		role.ID, role.Name, role.Description, perms)
	return mapConstraint(err)
}
