package domain

import "encoding/json"

// WildcardPermission grants every resource.action pair.
const WildcardPermission = "*.*"

type Role struct {
	ID          string
	Name        string
	Description string
	Permissions []string // resource.action strings
}

type PolicyEffect string

const (
	EffectAllow PolicyEffect = "ALLOW"
	EffectDeny  PolicyEffect = "DENY"
)

// PolicyRule is an attribute-based rule as stored. The attribute documents
// are compiled into predicate trees by the authz package.
type PolicyRule struct {
	ID                 int64
	Description        string
	Effect             PolicyEffect
	UserAttributes     json.RawMessage
	ActionNames        []string
	ResourceAttributes json.RawMessage
	Priority           int
	Active             bool
}
