package worker

import (
	"context"
	"sync"

	"github.com/crosslister/dispatch-be/internal/jobstore"
	"github.com/crosslister/dispatch-be/internal/listing"
	"github.com/crosslister/dispatch-be/internal/platform"
)

// Executor performs one job against a marketplace from the server side. The
// snapshot is nil for DELETE jobs. Transient failures should be wrapped with
// NewRetryableError; anything else fails the job immediately.
type Executor interface {
	Execute(ctx context.Context, job *jobstore.Job, snapshot *listing.Listing) (*jobstore.Outcome, error)
}

// Registry maps platforms to their server-side executors. Platforms without
// an executor can only be executed by the extension.
type Registry struct {
	mu        sync.RWMutex
	executors map[platform.Platform]Executor
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[platform.Platform]Executor)}
}

// Register binds an executor to a platform, replacing any previous binding.
func (r *Registry) Register(p platform.Platform, e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[p] = e
}

// Get returns the executor for p, if any.
func (r *Registry) Get(p platform.Platform) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[p]
	return e, ok
}
