package jobs

import "context"

// Repo is the job registry shared between the submitting side, the pollers
// and the task that runs each job.
type Repo interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	// Save replaces the stored job. Only the task running the job calls it.
	Save(ctx context.Context, job Job) error
	// Claim atomically moves a queued job to processing and returns it.
	// It returns ErrNotQueued when the job is in any other state.
	Claim(ctx context.Context, id string) (Job, error)
	// List returns jobs newest first.
	List(ctx context.Context, limit, offset int) ([]Job, error)
}
