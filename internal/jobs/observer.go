package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tga-backend/internal/shared/telemetry"
)

// Event describes one stage transition or progress report of a job.
type Event struct {
	JobID      string      `json:"jobId"`
	JobStatus  Status      `json:"jobStatus"`
	StageIndex int         `json:"stageIndex"`
	StageID    string      `json:"stageId"`
	StageName  string      `json:"stageName"`
	Status     StageStatus `json:"status"`
	// Fraction is overall progress in [0,1].
	Fraction float64   `json:"progress"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
	// Transition is false for progress reports within an active stage.
	Transition bool `json:"transition"`
}

// Observer receives events in the order they happen within a job. It is
// called from the job's task; a slow observer slows that job only.
type Observer interface {
	Observe(ctx context.Context, ev Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event) error

func (f ObserverFunc) Observe(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Observers fans an event out to every member. All members are called even
// when one fails.
type Observers []Observer

func (obs Observers) Observe(ctx context.Context, ev Event) error {
	var errs []error
	for _, o := range obs {
		if o == nil {
			continue
		}
		if err := safeObserve(ctx, o, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func safeObserve(ctx context.Context, o Observer, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return o.Observe(ctx, ev)
}

// LogObserver writes every event as a structured log line.
type LogObserver struct{}

func (LogObserver) Observe(ctx context.Context, ev Event) error {
	fields := map[string]any{
		"request_id": RequestIDFromContext(ctx),
		"job_id":     ev.JobID,
		"job_status": ev.JobStatus,
		"stage":      ev.StageID,
		"status":     ev.Status,
		"progress":   ev.Fraction,
	}
	if ev.Detail != "" {
		fields["detail"] = ev.Detail
	}
	if !ev.Transition {
		telemetry.Debug("job.stage.progress", fields)
		return nil
	}
	if ev.Status == StageError {
		telemetry.Warn("job.stage.transition", fields)
		return nil
	}
	telemetry.Info("job.stage.transition", fields)
	return nil
}
