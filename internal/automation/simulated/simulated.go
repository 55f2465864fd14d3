// Package simulated is an in-process stand-in for the design-automation
// backend. Files live in an object.Store and work items succeed after a fixed
// number of polls, writing a small result archive.
package simulated

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"tga-backend/internal/automation"
	"tga-backend/internal/shared/storage/object"
)

// Backend implements automation.FileStore and automation.RemoteJobs.
type Backend struct {
	Store     object.Store
	BucketKey string
	// PollsUntilDone is how many Status calls report inprogress before the
	// terminal state.
	PollsUntilDone int
	// FailWith, when set, makes every work item end in StateFailed with this detail.
	FailWith string

	mu    sync.Mutex
	items map[string]*workItem
}

type workItem struct {
	item   automation.WorkItem
	polls  int
	state  automation.State
	detail string
}

// New returns a backend over store.
func New(store object.Store, bucketKey string, pollsUntilDone int) *Backend {
	if bucketKey == "" {
		bucketKey = "tga-simulated"
	}
	return &Backend{Store: store, BucketKey: bucketKey, PollsUntilDone: pollsUntilDone}
}

func (b *Backend) key(name string) string {
	return path.Join("automation", b.BucketKey, name)
}

// EnsureBucket is a no-op; the backing store has no buckets.
func (b *Backend) EnsureBucket(ctx context.Context) error {
	return ctx.Err()
}

// Upload stores r under name.
func (b *Backend) Upload(ctx context.Context, name string, r io.Reader) (automation.Object, error) {
	n, err := b.Store.Put(ctx, b.key(name), "application/octet-stream", r)
	if err != nil {
		return automation.Object{}, fmt.Errorf("simulated upload: %w", err)
	}
	return automation.Object{
		BucketKey: b.BucketKey,
		ObjectKey: name,
		ObjectID:  fmt.Sprintf("urn:adsk.objects:os.object:%s/%s", b.BucketKey, name),
		Size:      n,
	}, nil
}

// Download opens name.
func (b *Backend) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := b.Store.Open(ctx, b.key(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", automation.ErrNotFound, name, err)
	}
	return rc, nil
}

// Submit records a work item.
func (b *Backend) Submit(ctx context.Context, item automation.WorkItem) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if item.Input.ObjectKey == "" || item.OutputName == "" {
		return "", fmt.Errorf("simulated submit: input and output are required")
	}
	id := uuid.NewString()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.items == nil {
		b.items = map[string]*workItem{}
	}
	b.items[id] = &workItem{item: item, state: automation.StatePending}
	return id, nil
}

// Status advances the work item by one poll.
func (b *Backend) Status(ctx context.Context, id string) (automation.Status, error) {
	if err := ctx.Err(); err != nil {
		return automation.Status{}, err
	}
	b.mu.Lock()
	wi, ok := b.items[id]
	if !ok {
		b.mu.Unlock()
		return automation.Status{}, fmt.Errorf("%w: work item %s", automation.ErrNotFound, id)
	}
	if wi.state.Terminal() {
		st := automation.Status{State: wi.state, Progress: "100%", Detail: wi.detail}
		b.mu.Unlock()
		return st, nil
	}
	wi.polls++
	finished := wi.polls > b.PollsUntilDone
	if !finished {
		wi.state = automation.StateInProgress
		st := automation.Status{State: wi.state, Progress: fmt.Sprintf("%d/%d", wi.polls, b.PollsUntilDone+1)}
		b.mu.Unlock()
		return st, nil
	}
	item := wi.item
	b.mu.Unlock()

	state, detail := automation.StateSuccess, ""
	if b.FailWith != "" {
		state, detail = automation.StateFailed, b.FailWith
	} else if err := b.writeOutput(ctx, item); err != nil {
		state, detail = automation.StateFailed, "failedUpload: "+err.Error()
	}

	b.mu.Lock()
	wi.state, wi.detail = state, detail
	b.mu.Unlock()
	return automation.Status{State: state, Progress: "100%", Detail: detail}, nil
}

type manifest struct {
	JobID       string    `json:"jobId"`
	Input       string    `json:"input"`
	ProjectType string    `json:"projectType"`
	TotalArea   int       `json:"totalArea"`
	Floors      int       `json:"floors"`
	Disciplines []string  `json:"disciplines"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (b *Backend) writeOutput(ctx context.Context, item automation.WorkItem) error {
	m := manifest{
		JobID:       item.JobID,
		Input:       item.Input.ObjectKey,
		ProjectType: string(item.Project.ProjectType),
		TotalArea:   item.Project.TotalArea,
		Floors:      item.Project.Floors,
		CreatedAt:   time.Now().UTC(),
	}
	for _, d := range item.Project.Disciplines {
		m.Disciplines = append(m.Disciplines, d.Code)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("manifest.json")
	if err != nil {
		return err
	}
	if err := json.NewEncoder(w).Encode(m); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	_, err = b.Store.Put(ctx, b.key(item.OutputName), "application/zip", &buf)
	return err
}

var (
	_ automation.FileStore  = (*Backend)(nil)
	_ automation.RemoteJobs = (*Backend)(nil)
)
