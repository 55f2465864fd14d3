package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"tga-backend/internal/project"
	"tga-backend/internal/queue"
	"tga-backend/internal/shared/metrics"
	"tga-backend/internal/shared/storage/object"
	"tga-backend/internal/shared/telemetry"
	"tga-backend/internal/shared/util"
)

// AcceptedExtensions are the drawing formats a job can start from.
var AcceptedExtensions = []string{".dwg", ".dxf"}

// Dispatcher hands a queued job to whatever will run it.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// LocalDispatcher runs jobs in this process.
type LocalDispatcher struct {
	Orchestrator *Orchestrator
}

func (d LocalDispatcher) Dispatch(ctx context.Context, jobID string) error {
	_, err := d.Orchestrator.Start(ctx, jobID)
	return err
}

// QueueDispatcher sends jobs to a worker fleet.
type QueueDispatcher struct {
	Queue queue.Client
}

func (d QueueDispatcher) Dispatch(ctx context.Context, jobID string) error {
	if d.Queue == nil {
		return errors.New("job queue not configured")
	}
	return d.Queue.Send(ctx, queue.NewMessage(jobID, RequestIDFromContext(ctx)))
}

// Service is the entry point used by transports.
type Service struct {
	Repo       Repo
	Store      object.Store
	Sequence   StageSequence
	Dispatcher Dispatcher
	// Orchestrator is set when jobs run in this process; it enables
	// cancelling a running job.
	Orchestrator *Orchestrator
}

// Submission is a validated request to start a job.
type Submission struct {
	Project  project.Config
	FileName string
	File     io.Reader
}

// Submit validates the project, stores the drawing, records a queued job and
// dispatches it. Invalid input never creates a job.
func (s *Service) Submit(ctx context.Context, sub Submission) (Job, error) {
	cfg, err := project.Normalize(sub.Project)
	if err != nil {
		return Job{}, err
	}
	name, err := util.SanitizeFileName(sub.FileName)
	if err != nil || !util.HasExtension(name, AcceptedExtensions...) {
		return Job{}, fmt.Errorf("%w: %q", ErrUnsupportedFile, sub.FileName)
	}
	if sub.File == nil {
		return Job{}, fmt.Errorf("%w: empty upload", ErrUnsupportedFile)
	}

	id := uuid.NewString()
	key, err := object.JobKey(id, object.KindInput, name)
	if err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
	}
	size, err := s.Store.Put(ctx, key, "application/acad", sub.File)
	if err != nil {
		return Job{}, fmt.Errorf("store drawing: %w", err)
	}
	if size == 0 {
		return Job{}, fmt.Errorf("%w: empty upload", ErrUnsupportedFile)
	}

	now := time.Now().UTC()
	job := Job{
		ID:        id,
		Project:   cfg,
		Status:    StatusQueued,
		Stages:    s.sequence().Instantiate(),
		Artifacts: Artifacts{InputKey: key, InputName: name, InputSize: size},
		RequestID: RequestIDFromContext(ctx),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, job); err != nil {
		return Job{}, fmt.Errorf("create job: %w", err)
	}
	metrics.IncJobSubmitted()
	telemetry.Info("job.submitted", map[string]any{
		"request_id": job.RequestID,
		"job_id":     id,
		"project":    cfg.ProjectType,
		"area":       cfg.TotalArea,
		"bytes":      size,
	})

	if err := s.Dispatcher.Dispatch(ctx, id); err != nil {
		s.abandon(ctx, id, fmt.Sprintf("dispatch failed: %v", err))
		return Job{}, fmt.Errorf("dispatch job: %w", err)
	}
	return job, nil
}

// abandon records a job that never started as failed at its first stage.
func (s *Service) abandon(ctx context.Context, id, detail string) {
	ctx = context.WithoutCancel(ctx)
	job, err := s.Repo.Claim(ctx, id)
	if err != nil {
		telemetry.Error("job.abandon_failed", map[string]any{"job_id": id, "err": err})
		return
	}
	job.failStage(0, sanitizeError(errors.New(detail)), time.Now().UTC())
	if err := s.Repo.Save(ctx, job); err != nil {
		telemetry.Error("job.abandon_failed", map[string]any{"job_id": id, "err": err})
	}
}

func (s *Service) sequence() StageSequence {
	if s.Sequence.Len() == 0 {
		return DefaultSequence
	}
	return s.Sequence
}

// Get returns a job snapshot.
func (s *Service) Get(ctx context.Context, id string) (Job, error) {
	if id == "" {
		return Job{}, ErrNotFound
	}
	return s.Repo.Get(ctx, id)
}

// Results returns a completed job; any other state yields ErrNotCompleted.
func (s *Service) Results(ctx context.Context, id string) (Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if job.Status != StatusCompleted {
		return job, ErrNotCompleted
	}
	return job, nil
}

// List returns jobs newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Job, error) {
	return s.Repo.List(ctx, limit, offset)
}

// Cancel stops a job. A running job is cancelled through its run handle; a
// job still waiting in the queue is claimed and closed out here. Jobs already
// finished are returned unchanged.
func (s *Service) Cancel(ctx context.Context, id string) (Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if job.Status.Terminal() {
		return job, nil
	}
	if s.Orchestrator != nil && s.Orchestrator.Cancel(id) {
		telemetry.Info("job.cancel_requested", map[string]any{"request_id": RequestIDFromContext(ctx), "job_id": id})
		return job, nil
	}
	if job.Status == StatusQueued {
		claimed, err := s.Repo.Claim(ctx, id)
		if err == nil {
			claimed.failStage(0, DetailCancelled, time.Now().UTC())
			if err := s.Repo.Save(ctx, claimed); err != nil {
				return Job{}, err
			}
			telemetry.Info("job.cancelled", map[string]any{"request_id": RequestIDFromContext(ctx), "job_id": id})
			return claimed, nil
		}
		if !errors.Is(err, ErrNotQueued) {
			return Job{}, err
		}
	}
	return job, ErrNotCancellable
}

// OpenOutput streams the design-automation output of a completed job.
func (s *Service) OpenOutput(ctx context.Context, id string) (io.ReadCloser, string, error) {
	job, err := s.Results(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if job.Artifacts.OutputKey == "" {
		return nil, "", ErrNoOutput
	}
	rc, err := s.Store.Open(ctx, job.Artifacts.OutputKey)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, "", ErrNoOutput
		}
		return nil, "", err
	}
	return rc, path.Base(job.Artifacts.OutputKey), nil
}
