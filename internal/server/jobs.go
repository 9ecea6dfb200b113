package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kiesman99/rstile/internal/api"
)

// runFunc does the work of a job. It reports progress through p and
// stops early when ctx is cancelled.
type runFunc func(ctx context.Context, p *job) (*api.JobResult, error)

// job is one background clip, convert or stitch run
type job struct {
	id        uuid.UUID
	kind      api.JobKind
	createdAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	mu         sync.Mutex
	state      api.JobState
	completed  int
	total      int
	finishedAt *time.Time
	err        error
	result     *api.JobResult
}

// Report implements progress.Reporter
func (j *job) Report(completed, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.completed = completed
	j.total = total
}

func (j *job) setState(state api.JobState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = state
}

func (j *job) finish(result *api.JobResult, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	j.finishedAt = &now
	j.result = result
	j.err = err
	switch {
	case err == nil:
		j.state = api.Succeeded
	case errors.Is(err, context.Canceled):
		j.state = api.Canceled
	default:
		j.state = api.Failed
	}
}

func (j *job) finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// snapshot returns the API view of the job
func (j *job) snapshot() api.Job {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := api.Job{
		Id:         j.id,
		Kind:       j.kind,
		State:      j.state,
		Completed:  j.completed,
		Total:      j.total,
		CreatedAt:  j.createdAt,
		FinishedAt: j.finishedAt,
		Result:     j.result,
	}
	if j.err != nil {
		msg := j.err.Error()
		out.Error = &msg
	}
	return out
}

// jobStore tracks every job started by a Server
type jobStore struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	jobs map[uuid.UUID]*job
}

func newJobStore() *jobStore {
	ctx, cancel := context.WithCancel(context.Background())
	return &jobStore{ctx: ctx, cancel: cancel, jobs: make(map[uuid.UUID]*job)}
}

// start registers a job and runs it in the background
func (s *jobStore) start(kind api.JobKind, run runFunc) *job {
	ctx, cancel := context.WithCancel(s.ctx)
	j := &job{
		id:        uuid.New(),
		kind:      kind,
		createdAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     api.Pending,
	}

	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(j.done)
		defer cancel()

		j.setState(api.Running)
		j.finish(run(ctx, j))
	}()

	return j
}

func (s *jobStore) get(id uuid.UUID) (*job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

// close cancels every running job and waits for them to return
func (s *jobStore) close() {
	s.cancel()
	s.wg.Wait()
}
