package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
)

type policiesRepo struct {
	db dbtx
}

func (r *policiesRepo) ListActivePoliciesForAction(ctx context.Context, action string) ([]domain.PolicyRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.description, p.effect, p.user_attributes, p.resource_attributes, p.priority,
			(SELECT group_concat(a2.action_name, char(31)) FROM abac_policy_actions a2 WHERE a2.policy_id = p.id)
		FROM abac_policies p
		JOIN abac_policy_actions a ON a.policy_id = p.id
		WHERE p.is_active = 1 AND a.action_name = ?
		ORDER BY p.priority DESC, p.id ASC`, action)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PolicyRule
	for rows.Next() {
		var (
			p             domain.PolicyRule
			effect        string
			userAttrs     string
			resourceAttrs string
			actions       string
		)
		if err := rows.Scan(&p.ID, &p.Description, &effect, &userAttrs, &resourceAttrs, &p.Priority, &actions); err != nil {
			return nil, err
		}
		p.Effect = domain.PolicyEffect(effect)
		p.UserAttributes = json.RawMessage(userAttrs)
		p.ResourceAttributes = json.RawMessage(resourceAttrs)
		p.ActionNames = strings.Split(actions, "\x1f")
		p.Active = true
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *policiesRepo) CreatePolicy(ctx context.Context, p domain.PolicyRule) (int64, error) {
	userAttrs := string(p.UserAttributes)
	if userAttrs == "" {
		userAttrs = "{}"
	}
	resourceAttrs := string(p.ResourceAttributes)
	if resourceAttrs == "" {
		resourceAttrs = "{}"
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO abac_policies (description, effect, user_attributes, resource_attributes, priority, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Description, string(p.Effect), userAttrs, resourceAttrs, p.Priority, boolInt(p.Active))
	if err != nil {
		return 0, mapConstraint(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, action := range p.ActionNames {
		if _, err := r.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO abac_policy_actions (policy_id, action_name) VALUES (?, ?)`,
			id, action); err != nil {
			return 0, fmt.Errorf("insert policy action %q: %w", action, err)
		}
	}
	return id, nil
}
