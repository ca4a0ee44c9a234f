package authz

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
)

// Wildcard in a scope list grants every value of that dimension.
const Wildcard = "*"

// Scope is the slice of the organisation an account may act upon. An empty
// list leaves that dimension unrestricted.
type Scope struct {
	Departments     []string    `json:"departments"`
	Geographic      []string    `json:"geographic"`
	AssetCategories []string    `json:"asset_categories"`
	ValueLimits     ValueLimits `json:"value_limits"`
}

type ValueLimits struct {
	CreationThreshold float64 `json:"creation_threshold,omitempty"`
	ApprovalThreshold float64 `json:"approval_threshold,omitempty"`
}

// NormalizeCounty lowercases a county name and joins words with underscores.
func NormalizeCounty(county string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(county)), " ", "_")
}

// DefaultScope confines an account to its own department and county.
func DefaultScope(a domain.Account) Scope {
	s := Scope{
		Departments:     []string{a.DepartmentID},
		Geographic:      []string{},
		AssetCategories: []string{},
	}
	if a.County != "" {
		s.Geographic = []string{NormalizeCounty(a.County)}
	}
	return s
}

// MergedScope overlays the account's explicit access scope on its default.
// Keys present in the document replace the default wholesale.
func MergedScope(a domain.Account) (Scope, error) {
	s := DefaultScope(a)
	if len(a.AccessScope) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(a.AccessScope, &s); err != nil {
		return Scope{}, fmt.Errorf("authz: access scope for %s: %w", a.ID, err)
	}
	return s, nil
}

func allows(list []string, v string) bool {
	return len(list) == 0 || slices.Contains(list, Wildcard) || slices.Contains(list, v)
}

// check returns "" when the resource is within scope, otherwise the reason.
func (s Scope) check(a domain.Account, action string, res Resource) string {
	if dept := res.String(AttrDepartment); dept != "" && dept != a.DepartmentID {
		if !allows(s.Departments, dept) {
			return "Department access denied: " + dept
		}
	}

	if county := res.String(AttrCounty); county != "" {
		if !allows(s.Geographic, NormalizeCounty(county)) {
			return "Geographic access denied for county: " + county
		}
	}

	if category := res.String(AttrCategory); category != "" {
		if !allows(s.AssetCategories, category) {
			return "Asset category access denied: " + category
		}
	}

	if value, ok := res.Number(AttrValue); ok && value != 0 {
		if strings.Contains(action, "create") {
			if t := s.ValueLimits.CreationThreshold; t > 0 && value > t {
				return fmt.Sprintf("Value %g exceeds creation threshold %g", value, t)
			}
		}
		if strings.Contains(action, "approve") {
			if t := s.ValueLimits.ApprovalThreshold; t > 0 && value > t {
				return fmt.Sprintf("Value %g exceeds approval threshold %g", value, t)
			}
		}
	}
	return ""
}

// Filter narrows list queries to an account's scope. Nil slices mean the
// dimension is unrestricted.
type Filter struct {
	Departments []string
	Counties    []string
	Categories  []string
}

func (s Scope) Filter() Filter {
	var f Filter
	if len(s.Departments) > 0 && !slices.Contains(s.Departments, Wildcard) {
		f.Departments = slices.Clone(s.Departments)
	}
	if len(s.Geographic) > 0 && !slices.Contains(s.Geographic, Wildcard) {
		f.Counties = slices.Clone(s.Geographic)
	}
	if len(s.AssetCategories) > 0 && !slices.Contains(s.AssetCategories, Wildcard) {
		f.Categories = slices.Clone(s.AssetCategories)
	}
	return f
}

// Matches applies the filter to a single resource. County matching is a
// case-insensitive substring match against the resource's location.
func (f Filter) Matches(res Resource) bool {
	if f.Departments != nil && !slices.Contains(f.Departments, res.String(AttrDepartment)) {
		return false
	}
	if f.Counties != nil {
		county := NormalizeCounty(res.String(AttrCounty))
		if !slices.ContainsFunc(f.Counties, func(c string) bool { return strings.Contains(county, c) }) {
			return false
		}
	}
	if f.Categories != nil && !slices.Contains(f.Categories, res.String(AttrCategory)) {
		return false
	}
	return true
}
