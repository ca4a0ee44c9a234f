package authz

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
	"github.com/aussiebroadwan/assetflow/internal/auth/store"
	"github.com/aussiebroadwan/assetflow/internal/obs"
	"github.com/aussiebroadwan/assetflow/pkg/slogx"
	"github.com/google/uuid"
)

// Layer names the stage of evaluation that produced a decision.
type Layer string

const (
	LayerRole   Layer = "role"
	LayerScope  Layer = "scope"
	LayerPolicy Layer = "policy"
)

func (l Layer) title() string {
	switch l {
	case LayerRole:
		return "Role"
	case LayerScope:
		return "Scope"
	case LayerPolicy:
		return "Policy"
	}
	return string(l)
}

// Denial is returned when any layer refuses an action. Reason is always kept
// for audit; Error only includes it when the evaluator runs in debug mode.
type Denial struct {
	Layer  Layer
	Reason string

	verbose bool
}

func (d *Denial) Error() string {
	if d.verbose {
		return fmt.Sprintf("Access denied - %s: %s", d.Layer.title(), d.Reason)
	}
	return "Access denied - " + d.Layer.title()
}

var ErrNotAccountingOfficer = errors.New("This action requires an Accounting Officer")

// Store is what the evaluator reads: roles and the active policy rules.
type Store interface {
	Roles() store.Roles
	Policies() store.Policies
}

// Auditor receives permission_denied events. audit.Pipeline satisfies it.
type Auditor interface {
	Enqueue(e domain.AuditEvent) bool
}

// Evaluator decides whether an account may perform an action. Decisions are
// a pure function of account, action, resource and the stored role and policy
// state.
type Evaluator struct {
	Store   Store
	Auditor Auditor
	Metrics *obs.Metrics
	Debug   bool
	Now     func() time.Time
}

// decision memoises storage reads for the lifetime of one evaluation.
type decision struct {
	e       *Evaluator
	account domain.Account

	role       *domain.Role
	roleLoaded bool
}

func (e *Evaluator) newDecision(a domain.Account) *decision {
	return &decision{e: e, account: a}
}

func (d *decision) loadRole(ctx context.Context) (*domain.Role, error) {
	if d.roleLoaded {
		return d.role, nil
	}
	d.roleLoaded = true
	if d.account.RoleID == "" {
		return nil, nil
	}
	r, err := d.e.Store.Roles().GetRoleByID(ctx, d.account.RoleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		d.roleLoaded = false
		return nil, fmt.Errorf("load role: %w", err)
	}
	d.role = &r
	return d.role, nil
}

// roleCheck returns "" when the action is granted by role or direct
// assignment, otherwise the reason.
func (d *decision) roleCheck(ctx context.Context, action string) (string, error) {
	role, err := d.loadRole(ctx)
	if err != nil {
		return "", err
	}
	if role == nil {
		return "User has no role assigned", nil
	}
	if slices.Contains(role.Permissions, domain.WildcardPermission) ||
		slices.Contains(role.Permissions, action) ||
		slices.Contains(d.account.AssignedPermissions, action) {
		return "", nil
	}
	return fmt.Sprintf("Action '%s' not permitted", action), nil
}

func (d *decision) userAttributes(ctx context.Context) (Attributes, error) {
	role, err := d.loadRole(ctx)
	if err != nil {
		return nil, err
	}
	a := d.account
	roles := []string{}
	if role != nil {
		roles = []string{role.Name}
	}
	return Attributes{
		"id":                    a.ID,
		"email":                 a.Email,
		"status":                string(a.Status),
		"role_id":               a.RoleID,
		"roles":                 roles,
		"department_id":         a.DepartmentID,
		"position_title":        a.PositionTitle,
		"is_accounting_officer": a.IsAccountingOfficer,
		"county":                NormalizeCounty(a.County),
	}, nil
}

// policyCheck returns the deny reason, or "" with the allow reason.
func (d *decision) policyCheck(ctx context.Context, action string, res Resource) (deny, allow string, err error) {
	rules, err := d.e.Store.Policies().ListActivePoliciesForAction(ctx, action)
	if err != nil {
		return "", "", fmt.Errorf("load policies: %w", err)
	}
	if len(rules) == 0 {
		return "", "No policy restrictions", nil
	}

	user, err := d.userAttributes(ctx)
	if err != nil {
		return "", "", err
	}
	if res == nil {
		res = Resource{}
	}

	log := slogx.FromContext(ctx)
	var firstDeny, firstAllow *domain.PolicyRule
	for i := range rules {
		rule := &rules[i]
		matched, err := ruleMatches(rule, user, res)
		if err != nil {
			// A rule that cannot be compiled only ever narrows access.
			log.Error("invalid policy rule", "policy_id", rule.ID, "err", err)
			if rule.Effect != domain.EffectDeny {
				continue
			}
			matched = true
		}
		if !matched {
			continue
		}
		switch {
		case rule.Effect == domain.EffectDeny && firstDeny == nil:
			firstDeny = rule
		case rule.Effect == domain.EffectAllow && firstAllow == nil:
			firstAllow = rule
		}
	}

	if firstDeny != nil {
		log.Warn("deny policy matched", "policy_id", firstDeny.ID, "account_id", d.account.ID, "action", action)
		return "Policy denied: " + firstDeny.Description, "", nil
	}
	if firstAllow != nil {
		log.Debug("allow policy matched", "policy_id", firstAllow.ID, "account_id", d.account.ID, "action", action)
		return "", "Policy allowed: " + firstAllow.Description, nil
	}
	return "", "No policy restrictions", nil
}

func ruleMatches(rule *domain.PolicyRule, user Attributes, res Resource) (bool, error) {
	userPred, err := Compile(rule.UserAttributes)
	if err != nil {
		return false, err
	}
	resPred, err := Compile(rule.ResourceAttributes)
	if err != nil {
		return false, err
	}
	return userPred.Match(user) && resPred.Match(res), nil
}

// Evaluate runs the role, scope and policy layers for resourceType.action,
// stopping at the first denial. It returns nil when allowed, a *Denial when
// refused, or a plain error when storage fails.
func (e *Evaluator) Evaluate(ctx context.Context, a domain.Account, resourceType, action string, res Resource) error {
	full := resourceType + "." + action
	d := e.newDecision(a)

	reason, err := d.roleCheck(ctx, full)
	if err != nil {
		return err
	}
	if reason != "" {
		return e.deny(ctx, a, full, LayerRole, reason)
	}

	if len(res) > 0 {
		scope, err := MergedScope(a)
		if err != nil {
			return err
		}
		if reason := scope.check(a, full, res); reason != "" {
			return e.deny(ctx, a, full, LayerScope, reason)
		}
	}

	deny, allow, err := d.policyCheck(ctx, full, res)
	if err != nil {
		return err
	}
	if deny != "" {
		return e.deny(ctx, a, full, LayerPolicy, deny)
	}

	e.Metrics.AuthzDecision(string(LayerPolicy), "allow")
	slogx.FromContext(ctx).Debug("permission granted", "account_id", a.ID, "action", full, "reason", allow)
	return nil
}

func (e *Evaluator) deny(ctx context.Context, a domain.Account, action string, layer Layer, reason string) error {
	slogx.FromContext(ctx).Warn("permission denied", "account_id", a.ID, "action", action, "layer", layer, "reason", reason)
	e.Metrics.AuthzDecision(string(layer), "deny")

	if e.Auditor != nil {
		e.Auditor.Enqueue(domain.AuditEvent{
			ID:          uuid.NewString(),
			ActorID:     a.ID,
			Action:      domain.ActionPermissionDenied,
			TargetTable: "accounts",
			TargetID:    a.ID,
			Level:       domain.LevelWarning,
			Details: map[string]any{
				"action": action,
				"layer":  string(layer),
				"reason": reason,
			},
			CreatedAt: e.now(),
		})
	}
	return &Denial{Layer: layer, Reason: reason, verbose: e.Debug}
}

func (e *Evaluator) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// CheckSimple runs the role layer only. Storage errors deny.
func (e *Evaluator) CheckSimple(ctx context.Context, a domain.Account, resourceType, action string) bool {
	reason, err := e.newDecision(a).roleCheck(ctx, resourceType+"."+action)
	if err != nil {
		slogx.FromContext(ctx).Error("role check failed", "account_id", a.ID, "err", err)
		return false
	}
	return reason == ""
}

// FilterScope returns the list filter for the account's merged scope.
func (e *Evaluator) FilterScope(a domain.Account) (Filter, error) {
	s, err := MergedScope(a)
	if err != nil {
		return Filter{}, err
	}
	return s.Filter(), nil
}

// RequireRole checks the account's role name against roles.
func (e *Evaluator) RequireRole(ctx context.Context, a domain.Account, roles ...string) error {
	role, err := e.newDecision(a).loadRole(ctx)
	if err != nil {
		return err
	}
	if role == nil || !slices.Contains(roles, role.Name) {
		return &Denial{
			Layer:   LayerRole,
			Reason:  "This action requires one of these roles: " + strings.Join(roles, ", "),
			verbose: e.Debug,
		}
	}
	return nil
}

// IsAccountingOfficer gates actions reserved for accounting officers.
func IsAccountingOfficer(a domain.Account) error {
	if !a.IsAccountingOfficer {
		return ErrNotAccountingOfficer
	}
	return nil
}
