// Package legal tags queries and documents with a legal subject area.
package legal

import (
	"fmt"
	"strings"
)

// Tag is a legal subject area. The zero value means undetermined.
type Tag string

// Known legal domains.
const (
	Undetermined  Tag = ""
	PenalLaw      Tag = "penal_law"
	CivilLaw      Tag = "civil_law"
	FamilyLaw     Tag = "family_law"
	LaborLaw      Tag = "labor_law"
	CommercialLaw Tag = "commercial_law"
	RealEstate    Tag = "real_estate"
	TaxLaw        Tag = "tax_law"
	Consumer      Tag = "consumer"
)

type rule struct {
	tag      Tag
	keywords []string
}

// Iteration order matters: the first domain with a matching keyword wins.
var rules = []rule{
	{PenalLaw, []string{"سرقة", "جريمة", "عقوبة", "قتل", "سجن", "vol", "crime", "peine", "prison", "pénal"}},
	{CivilLaw, []string{"عقد", "التزام", "دين", "contrat", "obligation", "dette", "civil"}},
	{FamilyLaw, []string{"طلاق", "زواج", "حضانة", "إرث", "مودونة", "divorce", "mariage", "garde", "héritage", "moudawana"}},
	{LaborLaw, []string{"عمل", "أجير", "شغل", "travail", "salarié", "employé", "licenciement"}},
	{CommercialLaw, []string{"شركة", "تجارة", "إفلاس", "société", "commerce", "faillite"}},
	{RealEstate, []string{"عقار", "ملكية", "كراء", "immobilier", "propriété", "bail"}},
	{TaxLaw, []string{"ضريبة", "ضرائب", "impôt", "taxe", "fiscal"}},
	{Consumer, []string{"مستهلك", "ضمان", "consommateur", "garantie", "protection"}},
}

// Detect returns the first domain whose keyword list matches the lower-cased
// query. ok is false when nothing matches; callers must not substitute a default.
func Detect(query string) (Tag, bool) {
	q := strings.ToLower(query)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(q, kw) {
				return r.tag, true
			}
		}
	}
	return Undetermined, false
}

// Parse validates a domain tag. An empty string parses to Undetermined.
func Parse(s string) (Tag, error) {
	t := Tag(s)
	if t == Undetermined || t.IsValid() {
		return t, nil
	}
	return "", fmt.Errorf("unknown legal domain %q", s)
}

// IsValid reports whether t is one of the known domains.
func (t Tag) IsValid() bool {
	for _, r := range rules {
		if r.tag == t {
			return true
		}
	}
	return false
}

// All returns the known domains in detection order.
func All() []Tag {
	out := make([]Tag, len(rules))
	for i, r := range rules {
		out[i] = r.tag
	}
	return out
}
