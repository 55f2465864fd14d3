package standards

import (
	"tga-backend/internal/project"
	"tga-backend/internal/standards/condition"
)

// KnownDisciplines are the discipline codes the platform produces deliverables
// for. A project that does not list one of them gets an explicit false for it.
var KnownDisciplines = []string{"AR", "ST", "EL", "HY", "HV", "FP", "GA", "LI"}

// AttributesFor derives the rule attributes a project configuration can
// answer. Wet-room flags are not part of the configuration and stay absent,
// so rules that need them resolve through the unresolved policy.
func AttributesFor(p project.Config) condition.Attributes {
	attrs := condition.Attributes{
		condition.AttrArea:   condition.Int(int64(p.TotalArea)),
		condition.AttrFloors: condition.Int(int64(p.Floors)),
		condition.AttrType:   condition.String(string(p.ProjectType)),
		condition.AttrRegion: condition.String(string(p.Region)),
	}
	for _, code := range KnownDisciplines {
		attrs[condition.DisciplineAttr(code)] = condition.Bool(false)
	}
	for _, d := range p.Disciplines {
		if d.Code == "" {
			continue
		}
		attrs[condition.DisciplineAttr(d.Code)] = condition.Bool(true)
	}
	return attrs
}
