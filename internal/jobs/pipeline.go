package jobs

import (
	"context"
	"fmt"
	"time"

	"tga-backend/internal/automation"
	"tga-backend/internal/shared/metrics"
	"tga-backend/internal/shared/storage/object"
	"tga-backend/internal/shared/telemetry"
	"tga-backend/internal/shared/util"
	"tga-backend/internal/standards"
)

// Pipeline holds the collaborators the default stage sequence needs.
type Pipeline struct {
	Store   object.Store
	Files   automation.FileStore
	Remote  automation.RemoteJobs
	Checker *standards.Checker
	// Standards are checked in the compliance stage, in this order.
	Standards []string

	PollInterval time.Duration
	MaxAttempts  int
}

// Units returns one work unit per stage of DefaultSequence.
func (p *Pipeline) Units() []WorkUnit {
	return []WorkUnit{
		p.upload,
		p.submit,
		p.monitor,
		p.download,
		p.compliance,
		p.complete,
	}
}

// upload copies the submitted drawing from the object store to the
// automation file store.
func (p *Pipeline) upload(ctx context.Context, sc *StageContext) error {
	a := sc.Artifacts
	if a.InputKey == "" {
		return fmt.Errorf("upload: job has no input drawing")
	}
	if err := p.Files.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	rc, err := p.Store.Open(ctx, a.InputKey)
	if err != nil {
		return fmt.Errorf("upload: open input: %w", err)
	}
	defer rc.Close()

	name, err := util.SanitizeFileName(a.InputName)
	if err != nil {
		name = "drawing.dwg"
	}
	remoteName := sc.JobID + "-" + name
	obj, err := p.Files.Upload(ctx, remoteName, rc)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	a.RemoteName = remoteName
	a.Remote = obj
	return nil
}

func (p *Pipeline) submit(ctx context.Context, sc *StageContext) error {
	a := sc.Artifacts
	a.OutputName = sc.JobID + "-result.zip"
	id, err := p.Remote.Submit(ctx, automation.WorkItem{
		JobID:      sc.JobID,
		Input:      a.Remote,
		OutputName: a.OutputName,
		Project:    sc.Project,
	})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	a.WorkItemID = id
	return nil
}

// monitor polls the work item at a fixed interval until it reaches a terminal
// state or the attempt budget runs out.
func (p *Pipeline) monitor(ctx context.Context, sc *StageContext) error {
	id := sc.Artifacts.WorkItemID
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var last automation.Status
	for attempt := 1; attempt <= attempts; attempt++ {
		st, err := p.Remote.Status(ctx, id)
		if err != nil {
			return fmt.Errorf("monitor: %w", err)
		}
		last = st
		metrics.IncRemotePoll(string(st.State))

		switch st.State {
		case automation.StateSuccess:
			return nil
		case automation.StateFailed, automation.StateCancelled:
			return fmt.Errorf("%w: work item %s %s: %s", ErrRemoteJobFailed, id, st.State, st.Detail)
		}
		sc.Progress(float64(attempt) / float64(attempts))

		if attempt == attempts {
			break
		}
		if err := sleep(ctx, p.PollInterval); err != nil {
			return err
		}
	}
	telemetry.Warn("job.poll_budget_exceeded", map[string]any{
		"request_id": RequestIDFromContext(ctx),
		"job_id":     sc.JobID,
		"work_item":  id,
		"attempts":   attempts,
		"last_state": last.State,
	})
	return fmt.Errorf("%w: %d polls, last state %q", ErrPollBudgetExceeded, attempts, last.State)
}

// download moves the work item output into the object store.
func (p *Pipeline) download(ctx context.Context, sc *StageContext) error {
	a := sc.Artifacts
	rc, err := p.Files.Download(ctx, a.OutputName)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer rc.Close()

	key, err := object.JobKey(sc.JobID, object.KindOutput, a.OutputName)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if _, err := p.Store.Put(ctx, key, "application/zip", rc); err != nil {
		return fmt.Errorf("download: store output: %w", err)
	}
	a.OutputKey = key
	return nil
}

func (p *Pipeline) compliance(ctx context.Context, sc *StageContext) error {
	if p.Checker == nil {
		return fmt.Errorf("compliance: no checker configured")
	}
	violations := p.Checker.Check(ctx, sc.Project, p.Standards)
	if err := ctx.Err(); err != nil {
		return err
	}
	sc.Artifacts.Violations = violations
	sc.Artifacts.Report = p.Checker.Summarize(p.Standards, violations)
	metrics.AddViolations(len(violations))
	return nil
}

func (p *Pipeline) complete(ctx context.Context, sc *StageContext) error {
	sc.Artifacts.GeneratedFiles = GeneratedFiles(sc.Project.Disciplines)
	return ctx.Err()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
