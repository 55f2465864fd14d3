package jobs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"tga-backend/internal/automation"
	"tga-backend/internal/project"
	"tga-backend/internal/shared/storage/object"
	"tga-backend/internal/standards"
	"tga-backend/internal/standards/condition"
)

var testStandards = []string{"DIN 18015", "VDI 2052"}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (s *memStore) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = b
	return int64(len(b)), nil
}

func (s *memStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[key]
	if !ok {
		return nil, object.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

type fakeFiles struct {
	mu        sync.Mutex
	ensureErr error
	uploads   map[string]int
}

func (f *fakeFiles) EnsureBucket(ctx context.Context) error {
	return f.ensureErr
}

func (f *fakeFiles) Upload(ctx context.Context, name string, r io.Reader) (automation.Object, error) {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return automation.Object{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploads == nil {
		f.uploads = map[string]int{}
	}
	f.uploads[name]++
	return automation.Object{BucketKey: "test-bucket", ObjectKey: name, Size: n}, nil
}

func (f *fakeFiles) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("PK-result-" + name)), nil
}

// fakeRemote reports states in order and repeats the last one.
type fakeRemote struct {
	mu        sync.Mutex
	states    []automation.State
	polls     int
	submitted []automation.WorkItem
	submitErr error
	// onPoll runs after each poll, outside the lock.
	onPoll func(n int)
}

func (r *fakeRemote) Submit(ctx context.Context, item automation.WorkItem) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.submitErr != nil {
		return "", r.submitErr
	}
	r.submitted = append(r.submitted, item)
	return "wi-" + item.JobID, nil
}

func (r *fakeRemote) Status(ctx context.Context, id string) (automation.Status, error) {
	r.mu.Lock()
	idx := r.polls
	if idx >= len(r.states) {
		idx = len(r.states) - 1
	}
	r.polls++
	n := r.polls
	st := r.states[idx]
	hook := r.onPoll
	r.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return automation.Status{State: st}, nil
}

func (r *fakeRemote) pollCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.polls
}

// eventLog records every observed event.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Observe(ctx context.Context, ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) transitions() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Transition {
			out = append(out, ev)
		}
	}
	return out
}

func officeProject() project.Config {
	return project.Config{
		ProjectType: project.TypeOffice,
		TotalArea:   1000,
		Floors:      3,
		Region:      project.RegionGermany,
		Disciplines: []project.Discipline{
			{Code: "EL", Name: "Elétrico"},
			{Code: "HY", Name: "Hidráulico"},
			{Code: "HV", Name: "HVAC"},
		},
	}
}

type harness struct {
	repo   *MemoryRepo
	store  *memStore
	files  *fakeFiles
	remote *fakeRemote
	events *eventLog
	orch   *Orchestrator
}

func newHarness(t *testing.T, remote *fakeRemote, maxAttempts int, extra ...Observer) *harness {
	t.Helper()
	h := &harness{
		repo:   NewMemoryRepo(),
		store:  newMemStore(),
		files:  &fakeFiles{},
		remote: remote,
		events: &eventLog{},
	}
	p := &Pipeline{
		Store:        h.store,
		Files:        h.files,
		Remote:       remote,
		Checker:      standards.NewChecker(standards.MustLoad(), condition.PolicyCompliant),
		Standards:    testStandards,
		PollInterval: time.Millisecond,
		MaxAttempts:  maxAttempts,
	}
	observers := Observers{h.events}
	observers = append(observers, extra...)
	orch, err := NewOrchestrator(h.repo, DefaultSequence, p.Units(), observers)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	h.orch = orch
	return h
}

// seed stores a drawing and records a queued job for it.
func (h *harness) seed(t *testing.T, id string) Job {
	t.Helper()
	key := "projects/" + id + "/input/plan.dwg"
	if _, err := h.store.Put(context.Background(), key, "application/acad", strings.NewReader("AC1027")); err != nil {
		t.Fatalf("put: %v", err)
	}
	now := time.Now().UTC()
	job := Job{
		ID:        id,
		Project:   officeProject(),
		Status:    StatusQueued,
		Stages:    DefaultSequence.Instantiate(),
		Artifacts: Artifacts{InputKey: key, InputName: "plan.dwg", InputSize: 6},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.repo.Create(context.Background(), job); err != nil {
		t.Fatalf("create: %v", err)
	}
	return job
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// checkInvariants asserts the stage-list properties every snapshot keeps.
func checkInvariants(t *testing.T, job Job) {
	t.Helper()
	active := 0
	failed := -1
	for i, s := range job.Stages {
		if s.Status == StageActive {
			active++
		}
		if s.Status == StageError && failed < 0 {
			failed = i
		}
	}
	if active > 1 {
		t.Fatalf("%d active stages: %v", active, stageStatuses(job))
	}
	if failed >= 0 {
		for i := failed + 1; i < len(job.Stages); i++ {
			if job.Stages[i].Status != StageCancelled {
				t.Fatalf("stage %d after error is %s", i, job.Stages[i].Status)
			}
		}
		if job.Status != StatusError {
			t.Fatalf("job status %s with failed stage", job.Status)
		}
	}
}

var errBoom = errors.New("boom")
