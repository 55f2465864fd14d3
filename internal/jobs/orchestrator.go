package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tga-backend/internal/project"
	"tga-backend/internal/shared/metrics"
	"tga-backend/internal/shared/telemetry"
)

// StageContext is what a work unit sees of its job.
type StageContext struct {
	JobID   string
	Project project.Config
	// Artifacts carries the outputs of earlier stages. Work units add their
	// own outputs to it.
	Artifacts *Artifacts

	report func(fraction float64)
}

// Progress reports finer-grained progress of the running stage, as a
// fraction in [0,1].
func (sc *StageContext) Progress(fraction float64) {
	if sc.report != nil {
		sc.report(fraction)
	}
}

// WorkUnit performs one stage. A returned error fails the stage.
type WorkUnit func(ctx context.Context, sc *StageContext) error

// Orchestrator runs jobs through a stage sequence, one task per job.
type Orchestrator struct {
	repo     Repo
	sequence StageSequence
	units    []WorkUnit
	observer Observer
	now      func() time.Time

	mu      sync.Mutex
	running map[string]*Run
	closed  bool
	wg      sync.WaitGroup
}

// NewOrchestrator pairs each stage of seq with the work unit at the same
// index.
func NewOrchestrator(repo Repo, seq StageSequence, units []WorkUnit, observer Observer) (*Orchestrator, error) {
	if repo == nil {
		return nil, errors.New("orchestrator: repo is required")
	}
	if len(units) != seq.Len() {
		return nil, fmt.Errorf("orchestrator: %d work units for %d stages", len(units), seq.Len())
	}
	for i, u := range units {
		if u == nil {
			return nil, fmt.Errorf("orchestrator: work unit %d is nil", i)
		}
	}
	return &Orchestrator{
		repo:     repo,
		sequence: seq,
		units:    append([]WorkUnit(nil), units...),
		observer: observer,
		now:      func() time.Time { return time.Now().UTC() },
		running:  map[string]*Run{},
	}, nil
}

// Sequence returns the stage sequence jobs are run through.
func (o *Orchestrator) Sequence() StageSequence {
	return o.sequence
}

// Run is the handle of one job execution.
type Run struct {
	JobID string

	done   chan struct{}
	cancel context.CancelFunc
	result Job
	err    error
}

// Done is closed when the run has reached a terminal state.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Cancel asks the run to stop at the next stage boundary or poll.
func (r *Run) Cancel() {
	r.cancel()
}

// Err returns the error that failed the job, or nil if it completed. It is
// only meaningful after Done is closed.
func (r *Run) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until the run finishes or ctx ends, and returns the final job.
func (r *Run) Wait(ctx context.Context) (Job, error) {
	select {
	case <-r.done:
		return r.result.Clone(), r.err
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Start claims a queued job and runs it in the background. The run is
// detached from ctx except for its request ID. Starting a job that is
// already running returns ErrAlreadyRunning; one that is not queued returns
// ErrNotQueued.
func (o *Orchestrator) Start(ctx context.Context, jobID string) (*Run, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if _, busy := o.running[jobID]; busy {
		o.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(detach(ctx))
	run := &Run{JobID: jobID, done: make(chan struct{}), cancel: cancel}
	o.running[jobID] = run
	o.wg.Add(1)
	o.mu.Unlock()

	job, err := o.repo.Claim(ctx, jobID)
	if err != nil {
		o.release(run)
		cancel()
		o.wg.Done()
		return nil, err
	}
	if len(job.Stages) != o.sequence.Len() {
		job.Stages = o.sequence.Instantiate()
	}

	go func() {
		defer o.wg.Done()
		o.execute(runCtx, run, job)
		cancel()
		o.release(run)
		close(run.done)
	}()
	return run, nil
}

// Cancel cancels a job running in this process. It reports whether one was found.
func (o *Orchestrator) Cancel(jobID string) bool {
	o.mu.Lock()
	run, ok := o.running[jobID]
	o.mu.Unlock()
	if ok {
		run.Cancel()
	}
	return ok
}

// Running reports whether jobID is executing in this process.
func (o *Orchestrator) Running(jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[jobID]
	return ok
}

// Shutdown refuses new runs, cancels the active ones and waits for them to
// record their final state.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	for _, run := range o.running {
		run.Cancel()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) release(run *Run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[run.JobID] == run {
		delete(o.running, run.JobID)
	}
}

func (o *Orchestrator) execute(ctx context.Context, run *Run, job Job) {
	finish := metrics.JobStarted()
	total := len(job.Stages)
	current := -1
	artifacts := job.Artifacts

	defer func() {
		if r := recover(); r != nil {
			idx := current
			if idx < 0 {
				idx = 0
			}
			o.fail(ctx, &job, idx, fmt.Sprintf("panic: %v", r))
			run.err = fmt.Errorf("stage panic: %v", r)
		}
		outcome := metrics.OutcomeCompleted
		if job.Status == StatusError {
			outcome = metrics.OutcomeFailed
			if job.Error == DetailCancelled {
				outcome = metrics.OutcomeCancelled
			}
		}
		finish(outcome)
		run.result = job.Clone()
	}()

	telemetry.Info("job.status", map[string]any{
		"request_id":        RequestIDFromContext(ctx),
		"job_id":            job.ID,
		"status":            StatusProcessing,
		"status_transition": "queued->processing",
	})

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			o.fail(ctx, &job, i, DetailCancelled)
			run.err = err
			return
		}

		current = i
		now := o.now()
		if err := job.beginStage(i, now); err != nil {
			o.fail(ctx, &job, i, sanitizeError(err))
			run.err = err
			return
		}
		o.persist(ctx, job)
		o.notify(ctx, job, i, float64(i)/float64(total), "", true)

		idx := i
		sc := &StageContext{
			JobID:     job.ID,
			Project:   job.Project.Clone(),
			Artifacts: &artifacts,
			report: func(f float64) {
				if f < 0 {
					f = 0
				}
				if f > 1 {
					f = 1
				}
				job.setStageProgress(idx, int(f*100), o.now())
				o.persist(ctx, job)
				o.notify(ctx, job, idx, (float64(idx)+f)/float64(total), "", false)
			},
		}

		err := o.units[i](ctx, sc)
		job.Artifacts = artifacts
		if err != nil {
			detail := sanitizeError(err)
			if ctx.Err() != nil {
				detail = DetailCancelled
			}
			o.fail(ctx, &job, i, detail)
			run.err = err
			return
		}

		if err := job.completeStage(i, o.now()); err != nil {
			o.fail(ctx, &job, i, sanitizeError(err))
			run.err = err
			return
		}
		metrics.ObserveStage(job.Stages[i].ID, metrics.OutcomeCompleted, stageDuration(job.Stages[i]))
		o.persist(ctx, job)
		o.notify(ctx, job, i, float64(i+1)/float64(total), "", true)
	}

	telemetry.Info("job.status", map[string]any{
		"request_id":        RequestIDFromContext(ctx),
		"job_id":            job.ID,
		"status":            job.Status,
		"status_transition": "processing->" + string(job.Status),
		"violations":        len(job.Artifacts.Violations),
	})
}

// fail records stage i as failed, cascades cancellation and persists the
// terminal job.
func (o *Orchestrator) fail(ctx context.Context, job *Job, i int, detail string) {
	cancelled := job.failStage(i, detail, o.now())
	outcome := metrics.OutcomeFailed
	if detail == DetailCancelled {
		outcome = metrics.OutcomeCancelled
	}
	metrics.ObserveStage(job.Stages[i].ID, outcome, stageDuration(job.Stages[i]))
	o.persist(ctx, *job)

	total := float64(len(job.Stages))
	o.notify(ctx, *job, i, float64(i)/total, detail, true)
	for _, k := range cancelled {
		o.notify(ctx, *job, k, float64(i)/total, "", true)
	}

	telemetry.Info("job.status", map[string]any{
		"request_id":        RequestIDFromContext(ctx),
		"job_id":            job.ID,
		"status":            job.Status,
		"status_transition": "processing->" + string(job.Status),
		"stage":             job.Stages[i].ID,
		"detail":            detail,
	})
}

// persist saves a snapshot. It ignores ctx cancellation so the terminal state
// of a cancelled run is still recorded.
func (o *Orchestrator) persist(ctx context.Context, job Job) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.repo.Save(saveCtx, job); err != nil {
		telemetry.Error("job.persist_failed", map[string]any{
			"request_id": RequestIDFromContext(ctx),
			"job_id":     job.ID,
			"status":     job.Status,
			"err":        err,
		})
	}
}

func (o *Orchestrator) notify(ctx context.Context, job Job, i int, fraction float64, detail string, transition bool) {
	if o.observer == nil {
		return
	}
	st := job.Stages[i]
	if detail == "" {
		detail = st.Detail
	}
	ev := Event{
		JobID:      job.ID,
		JobStatus:  job.Status,
		StageIndex: i,
		StageID:    st.ID,
		StageName:  st.Name,
		Status:     st.Status,
		Fraction:   fraction,
		Detail:     detail,
		At:         o.now(),
		Transition: transition,
	}
	if err := safeObserve(ctx, o.observer, ev); err != nil {
		telemetry.Warn("job.observer_failed", map[string]any{
			"request_id": RequestIDFromContext(ctx),
			"job_id":     job.ID,
			"stage":      st.ID,
			"err":        err,
		})
	}
}

func stageDuration(st Stage) time.Duration {
	if st.DurationMs == nil {
		return 0
	}
	return time.Duration(*st.DurationMs) * time.Millisecond
}
