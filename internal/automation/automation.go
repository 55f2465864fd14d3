// Package automation defines the external collaborators a job drives: a file
// store that holds drawings and results, and a remote design-automation
// service that turns an uploaded drawing into deliverables.
package automation

import (
	"context"
	"errors"
	"io"

	"tga-backend/internal/project"
)

// ErrNotFound is returned when a remote object or work item does not exist.
var ErrNotFound = errors.New("automation: not found")

// Object identifies a file held by the FileStore.
type Object struct {
	BucketKey string `json:"bucketKey"`
	ObjectKey string `json:"objectKey"`
	ObjectID  string `json:"objectId,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// FileStore is the remote storage the automation service reads from and
// writes to.
type FileStore interface {
	// EnsureBucket creates the working bucket. An existing bucket is not an error.
	EnsureBucket(ctx context.Context) error
	Upload(ctx context.Context, name string, r io.Reader) (Object, error)
	Download(ctx context.Context, name string) (io.ReadCloser, error)
}

// WorkItem is one request for remote processing.
type WorkItem struct {
	JobID      string
	Input      Object
	OutputName string
	Project    project.Config
}

// State is the lifecycle state reported for a remote work item.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "inprogress"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether no further transitions will be reported.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Status is a single poll result.
type Status struct {
	State    State
	Progress string
	Detail   string
}

// RemoteJobs submits work items and reports their status.
type RemoteJobs interface {
	Submit(ctx context.Context, item WorkItem) (id string, err error)
	Status(ctx context.Context, id string) (Status, error)
}

// Provider bundles the two collaborators of one backend.
type Provider struct {
	Name  string
	Files FileStore
	Jobs  RemoteJobs
}
