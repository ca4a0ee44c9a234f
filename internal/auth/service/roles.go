package service

import "github.com/aussiebroadwan/assetflow/internal/auth/domain"

// RoleLabeler derives the coarse role label carried in access tokens.
type RoleLabeler struct {
	// MemberPosition short-circuits to the member label.
	MemberPosition string
	// Labels maps role ids to labels, e.g. role_006 -> admin.
	Labels  map[string]string
	Default string
}

func NewRoleLabeler(labels map[string]string) RoleLabeler {
	return RoleLabeler{
		MemberPosition: domain.DefaultPositionTitle,
		Labels:         labels,
		Default:        "member",
	}
}

func (l RoleLabeler) Label(a domain.Account) string {
	if l.MemberPosition != "" && a.PositionTitle == l.MemberPosition {
		return a.PositionTitle
	}
	if label, ok := l.Labels[a.RoleID]; ok && a.RoleID != "" {
		return label
	}
	if l.Default == "" {
		return "member"
	}
	return l.Default
}
