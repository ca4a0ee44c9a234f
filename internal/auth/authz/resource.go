package authz

// Well known resource attribute names.
const (
	AttrCategory   = "category"
	AttrDepartment = "department"
	AttrValue      = "value"
	AttrStatus     = "status"
	AttrCounty     = "county"
)

// Resource describes the target of an action for the scope and policy layers.
type Resource = Attributes

func (a Attributes) String(key string) string {
	s, _ := a[key].(string)
	return s
}

func (a Attributes) Number(key string) (float64, bool) {
	return toFloat(a[key])
}

// Asset is the subset of an asset record that authorization looks at.
type Asset struct {
	Category        string
	DepartmentID    string
	CurrentValue    float64
	AcquisitionCost float64
	Status          string
	CountyName      string
}

// BuildAssetResource turns an asset into resource attributes. The value is
// the current value, falling back to the acquisition cost.
func BuildAssetResource(a Asset) Resource {
	value := a.CurrentValue
	if value == 0 {
		value = a.AcquisitionCost
	}
	r := Resource{
		AttrDepartment: a.DepartmentID,
		AttrValue:      value,
	}
	if a.Category != "" {
		r[AttrCategory] = a.Category
	}
	if a.Status != "" {
		r[AttrStatus] = a.Status
	}
	if a.CountyName != "" {
		r[AttrCounty] = NormalizeCounty(a.CountyName)
	}
	return r
}
