package jobs

import (
	"time"

	"tga-backend/internal/standards"
)

// StatusView is the polling snapshot of a job.
type StatusView struct {
	ProjectID    string     `json:"projectId"`
	Status       Status     `json:"status"`
	CurrentStage string     `json:"currentStage"`
	Progress     int        `json:"progress"`
	Stages       []Stage    `json:"stages"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// NewStatusView builds the status snapshot of job.
func NewStatusView(job Job) StatusView {
	stages := job.Stages
	if stages == nil {
		stages = []Stage{}
	}
	return StatusView{
		ProjectID:    job.ID,
		Status:       job.Status,
		CurrentStage: job.CurrentStage(),
		Progress:     job.Progress(),
		Stages:       stages,
		Error:        job.Error,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		CompletedAt:  job.CompletedAt,
	}
}

// ResultsView is the deliverable summary of a completed job.
type ResultsView struct {
	ProjectID         string                     `json:"projectId"`
	Status            Status                     `json:"status"`
	GeneratedFiles    []GeneratedFile            `json:"generatedFiles"`
	Violations        []standards.Violation      `json:"violations"`
	ComplianceReport  []standards.StandardResult `json:"complianceReport"`
	OutputDownloadURL string                     `json:"outputDownloadUrl,omitempty"`
}

// NewResultsView builds the results snapshot of job. downloadURL is left out
// when the job has no stored output.
func NewResultsView(job Job, downloadURL string) ResultsView {
	v := ResultsView{
		ProjectID:        job.ID,
		Status:           job.Status,
		GeneratedFiles:   job.Artifacts.GeneratedFiles,
		Violations:       job.Artifacts.Violations,
		ComplianceReport: job.Artifacts.Report,
	}
	if v.GeneratedFiles == nil {
		v.GeneratedFiles = []GeneratedFile{}
	}
	if v.Violations == nil {
		v.Violations = []standards.Violation{}
	}
	if v.ComplianceReport == nil {
		v.ComplianceReport = []standards.StandardResult{}
	}
	if job.Artifacts.OutputKey != "" {
		v.OutputDownloadURL = downloadURL
	}
	return v
}

// SummaryView is one row of the job list.
type SummaryView struct {
	ProjectID    string    `json:"projectId"`
	Status       Status    `json:"status"`
	ProjectType  string    `json:"projectType"`
	TotalArea    int       `json:"totalArea"`
	CurrentStage string    `json:"currentStage"`
	Progress     int       `json:"progress"`
	Violations   int       `json:"violations"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewSummaryView builds a list row for job.
func NewSummaryView(job Job) SummaryView {
	return SummaryView{
		ProjectID:    job.ID,
		Status:       job.Status,
		ProjectType:  string(job.Project.ProjectType),
		TotalArea:    job.Project.TotalArea,
		CurrentStage: job.CurrentStage(),
		Progress:     job.Progress(),
		Violations:   len(job.Artifacts.Violations),
		CreatedAt:    job.CreatedAt,
	}
}
