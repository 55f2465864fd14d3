package jobs

import (
	"testing"
	"time"
)

func TestDefaultSequenceNames(t *testing.T) {
	want := []string{
		"Uploading file to APS",
		"Submitting work item",
		"Monitoring job status",
		"Downloading results",
		"Performing compliance check",
		"Processing complete",
	}
	got := DefaultSequence.Templates()
	if len(got) != len(want) {
		t.Fatalf("expected %d stages, got %d", len(want), len(got))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("stage %d: expected %q, got %q", i, name, got[i].Name)
		}
	}
}

func TestInstantiateReturnsIndependentStages(t *testing.T) {
	a := DefaultSequence.Instantiate()
	b := DefaultSequence.Instantiate()
	a[0].Status = StageActive
	a[0].Progress = 40
	if b[0].Status != StagePending || b[0].Progress != 0 {
		t.Fatalf("instances share state: %+v", b[0])
	}
	c := DefaultSequence.Instantiate()
	if c[0].Status != StagePending {
		t.Fatalf("template mutated: %+v", c[0])
	}
}

func TestNewStageSequenceValidates(t *testing.T) {
	cases := map[string][]StageTemplate{
		"empty":     nil,
		"no id":     {{ID: " ", Name: "x"}},
		"no name":   {{ID: "a"}},
		"duplicate": {{ID: "a", Name: "A"}, {ID: "a", Name: "B"}},
	}
	for name, templates := range cases {
		if _, err := NewStageSequence(templates...); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func newTestJob() Job {
	return Job{ID: "j1", Status: StatusProcessing, Stages: DefaultSequence.Instantiate()}
}

func TestBeginStageEnforcesOrder(t *testing.T) {
	now := time.Now()
	job := newTestJob()
	if err := job.beginStage(1, now); err == nil {
		t.Fatalf("expected error starting stage 1 before stage 0")
	}
	if err := job.beginStage(0, now); err != nil {
		t.Fatalf("begin 0: %v", err)
	}
	if err := job.beginStage(0, now); err == nil {
		t.Fatalf("expected error for second active stage")
	}
	if err := job.completeStage(0, now); err != nil {
		t.Fatalf("complete 0: %v", err)
	}
	if err := job.beginStage(1, now); err != nil {
		t.Fatalf("begin 1: %v", err)
	}
	if job.CurrentStage() != "Submitting work item" {
		t.Fatalf("current stage = %q", job.CurrentStage())
	}
}

func TestSetStageProgressCaps(t *testing.T) {
	now := time.Now()
	job := newTestJob()
	job.setStageProgress(0, 50, now)
	if job.Stages[0].Progress != 0 {
		t.Fatalf("progress changed on pending stage")
	}
	_ = job.beginStage(0, now)
	job.setStageProgress(0, 150, now)
	if job.Stages[0].Progress != 99 {
		t.Fatalf("progress = %d, want 99", job.Stages[0].Progress)
	}
	job.setStageProgress(0, -3, now)
	if job.Stages[0].Progress != 0 {
		t.Fatalf("progress = %d, want 0", job.Stages[0].Progress)
	}
}

func TestFailStageCancelsRemainder(t *testing.T) {
	start := time.Now()
	job := newTestJob()
	for i := 0; i < 2; i++ {
		_ = job.beginStage(i, start)
		_ = job.completeStage(i, start)
	}
	_ = job.beginStage(2, start)
	cancelled := job.failStage(2, "timeout", start.Add(time.Second))

	if len(cancelled) != 3 || cancelled[0] != 3 || cancelled[2] != 5 {
		t.Fatalf("cancelled = %v", cancelled)
	}
	if job.Status != StatusError || job.Error != "timeout" {
		t.Fatalf("job = %s %q", job.Status, job.Error)
	}
	if job.CompletedAt == nil {
		t.Fatalf("expected completedAt")
	}
	st := job.Stages[2]
	if st.Status != StageError || st.DurationMs == nil || *st.DurationMs != 1000 {
		t.Fatalf("failed stage = %+v", st)
	}
	if job.CurrentStage() != "Monitoring job status" {
		t.Fatalf("current stage = %q", job.CurrentStage())
	}
	if err := job.beginStage(3, start); err == nil {
		t.Fatalf("expected error restarting a failed job")
	}
}

func TestFailPendingFirstStage(t *testing.T) {
	job := Job{ID: "j2", Status: StatusQueued, Stages: DefaultSequence.Instantiate()}
	cancelled := job.failStage(0, DetailCancelled, time.Now())
	if len(cancelled) != 5 {
		t.Fatalf("cancelled = %v", cancelled)
	}
	if job.Stages[0].Status != StageError || job.Stages[0].Detail != DetailCancelled {
		t.Fatalf("first stage = %+v", job.Stages[0])
	}
	if job.Status != StatusError {
		t.Fatalf("status = %s", job.Status)
	}
}

func TestCompleteAllStagesCompletesJob(t *testing.T) {
	now := time.Now()
	job := newTestJob()
	for i := range job.Stages {
		if err := job.beginStage(i, now); err != nil {
			t.Fatalf("begin %d: %v", i, err)
		}
		if job.Status == StatusCompleted {
			t.Fatalf("completed before last stage")
		}
		if err := job.completeStage(i, now); err != nil {
			t.Fatalf("complete %d: %v", i, err)
		}
	}
	if job.Status != StatusCompleted || job.Progress() != 100 {
		t.Fatalf("job = %s %d", job.Status, job.Progress())
	}
	if job.CurrentStage() != "Processing complete" {
		t.Fatalf("current stage = %q", job.CurrentStage())
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	job := newTestJob()
	_ = job.beginStage(0, now)
	job.Project = officeProject()
	job.Artifacts.GeneratedFiles = GeneratedFiles(job.Project.Disciplines)

	cp := job.Clone()
	cp.Stages[0].Status = StageError
	*cp.Stages[0].StartedAt = now.Add(time.Hour)
	cp.Project.Disciplines[0].Code = "XX"
	cp.Artifacts.GeneratedFiles[0].Name = "changed"

	if job.Stages[0].Status != StageActive {
		t.Fatalf("stage status shared")
	}
	if !job.Stages[0].StartedAt.Equal(now) {
		t.Fatalf("startedAt shared")
	}
	if job.Project.Disciplines[0].Code != "EL" {
		t.Fatalf("disciplines shared")
	}
	if job.Artifacts.GeneratedFiles[0].Name == "changed" {
		t.Fatalf("generated files shared")
	}
}
