package jobs

import (
	"time"

	"tga-backend/internal/automation"
	"tga-backend/internal/project"
	"tga-backend/internal/standards"
)

// Status is the overall state of a Job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether the job will not change any more.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// StageStatus is the state of a single Stage.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageActive    StageStatus = "active"
	StageCompleted StageStatus = "completed"
	StageError     StageStatus = "error"
	StageCancelled StageStatus = "cancelled"
)

// Stage is one step of a job's pipeline.
type Stage struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Status      StageStatus `json:"status"`
	Progress    int         `json:"progress"`
	Detail      string      `json:"detail,omitempty"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	DurationMs  *int64      `json:"durationMs,omitempty"`
}

// GeneratedFile is a deliverable produced for a discipline.
type GeneratedFile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Discipline string `json:"discipline"`
}

// Artifacts accumulates what each stage hands to the next.
type Artifacts struct {
	InputKey   string `json:"inputKey,omitempty"`
	InputName  string `json:"inputName,omitempty"`
	InputSize  int64  `json:"inputSize,omitempty"`
	RemoteName string `json:"remoteName,omitempty"`

	Remote     automation.Object `json:"remote"`
	WorkItemID string            `json:"workItemId,omitempty"`
	OutputName string            `json:"outputName,omitempty"`
	OutputKey  string            `json:"outputKey,omitempty"`

	Violations     []standards.Violation      `json:"violations,omitempty"`
	Report         []standards.StandardResult `json:"report,omitempty"`
	GeneratedFiles []GeneratedFile            `json:"generatedFiles,omitempty"`
}

// Job is a single run of the stage pipeline for one project.
type Job struct {
	ID          string         `json:"id"`
	Project     project.Config `json:"project"`
	Status      Status         `json:"status"`
	Stages      []Stage        `json:"stages"`
	Artifacts   Artifacts      `json:"artifacts"`
	Error       string         `json:"error,omitempty"`
	RequestID   string         `json:"requestId,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// Clone returns a deep copy that shares no mutable state with j.
func (j Job) Clone() Job {
	out := j
	out.Project = j.Project.Clone()
	out.Stages = make([]Stage, len(j.Stages))
	for i, s := range j.Stages {
		out.Stages[i] = s.clone()
	}
	out.Artifacts.Violations = append([]standards.Violation(nil), j.Artifacts.Violations...)
	out.Artifacts.GeneratedFiles = append([]GeneratedFile(nil), j.Artifacts.GeneratedFiles...)
	if j.Artifacts.Report != nil {
		out.Artifacts.Report = make([]standards.StandardResult, len(j.Artifacts.Report))
		for i, r := range j.Artifacts.Report {
			r.Violations = append([]string(nil), r.Violations...)
			r.Recommendations = append([]string(nil), r.Recommendations...)
			out.Artifacts.Report[i] = r
		}
	}
	out.StartedAt = cloneTime(j.StartedAt)
	out.CompletedAt = cloneTime(j.CompletedAt)
	return out
}

func (s Stage) clone() Stage {
	out := s
	out.StartedAt = cloneTime(s.StartedAt)
	out.CompletedAt = cloneTime(s.CompletedAt)
	if s.DurationMs != nil {
		d := *s.DurationMs
		out.DurationMs = &d
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// CurrentStage names the stage a poller should show: the active one, else
// the failed one, else the last completed one, else the first.
func (j Job) CurrentStage() string {
	if len(j.Stages) == 0 {
		return ""
	}
	lastDone := -1
	for i, s := range j.Stages {
		switch s.Status {
		case StageActive, StageError:
			return s.Name
		case StageCompleted:
			lastDone = i
		}
	}
	if lastDone >= 0 {
		return j.Stages[lastDone].Name
	}
	return j.Stages[0].Name
}

// Progress is the overall completion percentage.
func (j Job) Progress() int {
	if len(j.Stages) == 0 {
		return 0
	}
	total := 0
	for _, s := range j.Stages {
		switch s.Status {
		case StageCompleted:
			total += 100
		case StageActive:
			total += s.Progress
		}
	}
	return total / len(j.Stages)
}
