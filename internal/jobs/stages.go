package jobs

import (
	"errors"
	"fmt"
	"strings"
)

// Stage ids of the default pipeline.
const (
	StageUpload     = "upload"
	StageSubmit     = "submit"
	StageMonitor    = "monitor"
	StageDownload   = "download"
	StageCompliance = "compliance"
	StageComplete   = "complete"
)

// StageTemplate is the fixed identity of a pipeline step.
type StageTemplate struct {
	ID   string
	Name string
}

// StageSequence is an ordered, immutable list of stage templates.
type StageSequence struct {
	templates []StageTemplate
}

// NewStageSequence validates templates: ids and names are required and ids
// are unique.
func NewStageSequence(templates ...StageTemplate) (StageSequence, error) {
	if len(templates) == 0 {
		return StageSequence{}, errors.New("stage sequence is empty")
	}
	seen := make(map[string]bool, len(templates))
	out := make([]StageTemplate, 0, len(templates))
	for i, t := range templates {
		t.ID = strings.TrimSpace(t.ID)
		t.Name = strings.TrimSpace(t.Name)
		if t.ID == "" || t.Name == "" {
			return StageSequence{}, fmt.Errorf("stage %d: id and name are required", i)
		}
		if seen[t.ID] {
			return StageSequence{}, fmt.Errorf("stage %d: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return StageSequence{templates: out}, nil
}

// MustStageSequence is NewStageSequence for package-level values.
func MustStageSequence(templates ...StageTemplate) StageSequence {
	s, err := NewStageSequence(templates...)
	if err != nil {
		panic(err)
	}
	return s
}

// DefaultSequence is the pipeline every submitted drawing goes through.
var DefaultSequence = MustStageSequence(
	StageTemplate{ID: StageUpload, Name: "Uploading file to APS"},
	StageTemplate{ID: StageSubmit, Name: "Submitting work item"},
	StageTemplate{ID: StageMonitor, Name: "Monitoring job status"},
	StageTemplate{ID: StageDownload, Name: "Downloading results"},
	StageTemplate{ID: StageCompliance, Name: "Performing compliance check"},
	StageTemplate{ID: StageComplete, Name: "Processing complete"},
)

// Len returns the number of stages.
func (s StageSequence) Len() int {
	return len(s.templates)
}

// Templates returns a copy of the templates in order.
func (s StageSequence) Templates() []StageTemplate {
	return append([]StageTemplate(nil), s.templates...)
}

// Instantiate returns fresh pending stages in template order. Every call
// allocates a new slice.
func (s StageSequence) Instantiate() []Stage {
	out := make([]Stage, len(s.templates))
	for i, t := range s.templates {
		out[i] = Stage{ID: t.ID, Name: t.Name, Status: StagePending}
	}
	return out
}
