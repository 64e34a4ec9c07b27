package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/crosslister/dispatch-be/internal/jobstore"
	"github.com/crosslister/dispatch-be/internal/listing"
	"github.com/crosslister/dispatch-be/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	jobs     map[string]*jobstore.Job
	attempts []int
	failNext bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[string]*jobstore.Job)}
}

func (f *fakeStore) add(job jobstore.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := job
	f.jobs[j.JobID] = &j
}

func (f *fakeStore) Get(ctx context.Context, jobID string) (*jobstore.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, jobstore.ErrJobNotFound
	}
	out := *j
	return &out, nil
}

func (f *fakeStore) Transition(ctx context.Context, jobIDs []string, from, to jobstore.Status, errMsg string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext {
		f.failNext = false
		return nil, errors.New("store unavailable")
	}

	var moved []string
	for _, id := range jobIDs {
		j, ok := f.jobs[id]
		if !ok || j.Status != from {
			continue
		}
		j.Status = to
		moved = append(moved, id)
	}
	return moved, nil
}

func (f *fakeStore) RecordAttempt(ctx context.Context, jobID string, attempt int, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, attempt)
	if j, ok := f.jobs[jobID]; ok {
		j.Attempt = attempt
	}
	return nil
}

func (f *fakeStore) MarkTerminal(ctx context.Context, jobID string, status jobstore.Status, outcome jobstore.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[jobID]
	if !ok {
		return jobstore.ErrJobNotFound
	}
	if j.Status.Terminal() {
		return jobstore.ErrTerminalState
	}
	j.Status = status
	if outcome.PlatformListingID != "" {
		j.PlatformListingID.String = outcome.PlatformListingID
		j.PlatformListingID.Valid = true
	}
	if outcome.PlatformURL != "" {
		j.PlatformURL.String = outcome.PlatformURL
		j.PlatformURL.Valid = true
	}
	if outcome.ErrorMessage != "" {
		j.ErrorMessage.String = outcome.ErrorMessage
		j.ErrorMessage.Valid = true
	}
	return nil
}

// scriptedExecutor returns its scripted errors in order, then succeeds.
type scriptedExecutor struct {
	mu     sync.Mutex
	errs   []error
	calls  int
	gotJob *jobstore.Job
}

func (s *scriptedExecutor) Execute(ctx context.Context, job *jobstore.Job, snapshot *listing.Listing) (*jobstore.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.gotJob = job
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return &jobstore.Outcome{
		PlatformListingID: "m-42",
		PlatformURL:       "https://mercari.example/m-42",
	}, nil
}

func newTestEngine(store Store, exec Executor) *Engine {
	registry := NewRegistry()
	if exec != nil {
		registry.Register(platform.Mercari, exec)
	}

	return NewEngine(&Config{
		Logger:      slog.New(slog.DiscardHandler),
		Store:       store,
		Executors:   registry,
		Concurrency: 1,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
	})
}

func workerJob(id string) jobstore.Job {
	return jobstore.Job{
		JobID:     id,
		UserID:    "usr-1",
		ListingID: "lst-1",
		Platform:  platform.Mercari,
		Operation: jobstore.OpCreate,
		Target:    jobstore.TargetWorker,
		Status:    jobstore.StatusQueued,
		Payload:   `{"listing_id":"lst-1","title":"Jacket","description":"d","price":10,"photos":["p"]}`,
		CreatedAt: time.Now(),
	}
}

func TestProcessJob_SuccessFirstAttempt(t *testing.T) {
	store := newFakeStore()
	store.add(workerJob("job-1"))
	exec := &scriptedExecutor{}
	e := newTestEngine(store, exec)

	err := e.processJob(context.Background(), &JobMessage{JobID: "job-1"})
	require.NoError(t, err)

	job, _ := store.Get(context.Background(), "job-1")
	assert.Equal(t, jobstore.StatusCompleted, job.Status)
	assert.Equal(t, "m-42", job.PlatformListingID.String)
	assert.Equal(t, "https://mercari.example/m-42", job.PlatformURL.String)
	assert.Equal(t, 1, exec.calls)
	assert.Empty(t, store.attempts)
}

func TestProcessJob_RetriesThenSucceeds(t *testing.T) {
	store := newFakeStore()
	store.add(workerJob("job-1"))
	exec := &scriptedExecutor{errs: []error{
		NewRetryableError(errors.New("marketplace 503")),
	}}
	e := newTestEngine(store, exec)

	err := e.processJob(context.Background(), &JobMessage{JobID: "job-1"})
	require.NoError(t, err)

	job, _ := store.Get(context.Background(), "job-1")
	assert.Equal(t, jobstore.StatusCompleted, job.Status)
	assert.Equal(t, 2, exec.calls)
	assert.Equal(t, []int{1}, store.attempts)
}

func TestProcessJob_ExhaustsAttempts(t *testing.T) {
	store := newFakeStore()
	store.add(workerJob("job-1"))
	exec := &scriptedExecutor{errs: []error{
		NewRetryableError(errors.New("try 1")),
		NewRetryableError(errors.New("try 2")),
		NewRetryableError(errors.New("try 3")),
	}}
	e := newTestEngine(store, exec)

	err := e.processJob(context.Background(), &JobMessage{JobID: "job-1"})
	require.NoError(t, err)

	job, _ := store.Get(context.Background(), "job-1")
	assert.Equal(t, jobstore.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage.String, "try 3")
	assert.Equal(t, 3, exec.calls)
	assert.Equal(t, []int{1, 2, 3}, store.attempts)
}

func TestProcessJob_NonRetryableFailsImmediately(t *testing.T) {
	store := newFakeStore()
	store.add(workerJob("job-1"))
	exec := &scriptedExecutor{errs: []error{
		errors.New("listing rejected: prohibited item"),
	}}
	e := newTestEngine(store, exec)

	err := e.processJob(context.Background(), &JobMessage{JobID: "job-1"})
	require.NoError(t, err)

	job, _ := store.Get(context.Background(), "job-1")
	assert.Equal(t, jobstore.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage.String, "prohibited item")
	assert.Equal(t, 1, exec.calls)
}

func TestProcessJob_LostClaimIsNotAnError(t *testing.T) {
	store := newFakeStore()
	job := workerJob("job-1")
	job.Status = jobstore.StatusProcessing
	store.add(job)
	exec := &scriptedExecutor{}
	e := newTestEngine(store, exec)

	err := e.processJob(context.Background(), &JobMessage{JobID: "job-1"})
	require.NoError(t, err)
	assert.Zero(t, exec.calls)
}

func TestProcessJob_NoExecutorFailsJob(t *testing.T) {
	store := newFakeStore()
	store.add(workerJob("job-1"))
	e := newTestEngine(store, nil)

	err := e.processJob(context.Background(), &JobMessage{JobID: "job-1"})
	require.NoError(t, err)

	job, _ := store.Get(context.Background(), "job-1")
	assert.Equal(t, jobstore.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage.String, "no server-side executor")
}

func TestProcessJob_StoreErrorIsRetryable(t *testing.T) {
	store := newFakeStore()
	store.add(workerJob("job-1"))
	store.failNext = true
	e := newTestEngine(store, &scriptedExecutor{})

	err := e.processJob(context.Background(), &JobMessage{JobID: "job-1"})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	// Nothing was claimed; the job is untouched.
	job, _ := store.Get(context.Background(), "job-1")
	assert.Equal(t, jobstore.StatusQueued, job.Status)
}

func TestProcessJob_InvalidSnapshotFailsJob(t *testing.T) {
	store := newFakeStore()
	job := workerJob("job-1")
	job.Payload = "{broken"
	store.add(job)
	e := newTestEngine(store, &scriptedExecutor{})

	err := e.processJob(context.Background(), &JobMessage{JobID: "job-1"})
	require.NoError(t, err)

	got, _ := store.Get(context.Background(), "job-1")
	assert.Equal(t, jobstore.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage.String, "invalid listing snapshot")
}
