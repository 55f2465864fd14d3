package project

import (
	"strings"
)

// Type is the building type a project is designed for.
type Type string

const (
	TypeResidential Type = "residential"
	TypeOffice      Type = "office"
	TypeIndustrial  Type = "industrial"
	TypeRetail      Type = "retail"
	TypeHealthcare  Type = "healthcare"
	TypeEducation   Type = "education"
)

// Region selects which body of standards applies.
type Region string

const (
	RegionGermany       Region = "germany"
	RegionEurope        Region = "europe"
	RegionInternational Region = "international"
)

// Discipline is one selected TGA discipline, e.g. {EL, Elétrico}.
type Discipline struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Config is the immutable input of a job.
type Config struct {
	ProjectType Type         `json:"projectType"`
	TotalArea   int          `json:"totalArea"`
	Floors      int          `json:"floors"`
	Region      Region       `json:"region"`
	Disciplines []Discipline `json:"disciplines"`
	Description string       `json:"description,omitempty"`
}

// ParseType normalizes and validates a project type string.
func ParseType(raw string) (Type, bool) {
	switch t := Type(strings.ToLower(strings.TrimSpace(raw))); t {
	case TypeResidential, TypeOffice, TypeIndustrial, TypeRetail, TypeHealthcare, TypeEducation:
		return t, true
	default:
		return "", false
	}
}

// ParseRegion normalizes and validates a region string.
func ParseRegion(raw string) (Region, bool) {
	switch r := Region(strings.ToLower(strings.TrimSpace(raw))); r {
	case RegionGermany, RegionEurope, RegionInternational:
		return r, true
	default:
		return "", false
	}
}

// HasDiscipline reports whether the discipline code was selected.
func (c Config) HasDiscipline(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, d := range c.Disciplines {
		if d.Code == code {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with c.
func (c Config) Clone() Config {
	out := c
	if c.Disciplines != nil {
		out.Disciplines = append([]Discipline(nil), c.Disciplines...)
	}
	return out
}
