package jobs

import (
	"strings"

	"tga-backend/internal/project"
	"tga-backend/internal/shared/util"
)

// Generated file types.
const (
	FileDWG  = "DWG"
	FilePDF  = "PDF"
	FileXLSX = "XLSX"
)

// calculationDisciplines get a spreadsheet of sizing calculations in addition
// to drawings.
var calculationDisciplines = map[string]bool{"EL": true, "HY": true, "HV": true}

// GeneratedFiles lists the deliverables for the given disciplines, in
// discipline order: a drawing and a plan PDF each, plus a calculation
// workbook for electrical, hydraulic and HVAC.
func GeneratedFiles(disciplines []project.Discipline) []GeneratedFile {
	out := make([]GeneratedFile, 0, len(disciplines)*3)
	for _, d := range disciplines {
		code := strings.ToUpper(strings.TrimSpace(d.Code))
		if code == "" {
			continue
		}
		base := code + "_" + util.Underscore(d.Name)
		out = append(out,
			GeneratedFile{ID: code + "-dwg", Name: base + ".dwg", Type: FileDWG, Discipline: d.Name},
			GeneratedFile{ID: code + "-pdf", Name: base + "_Plantas.pdf", Type: FilePDF, Discipline: d.Name},
		)
		if calculationDisciplines[code] {
			out = append(out, GeneratedFile{ID: code + "-xls", Name: base + "_Calculos.xlsx", Type: FileXLSX, Discipline: d.Name})
		}
	}
	return out
}
