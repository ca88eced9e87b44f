// Package jobs runs sheet operations in the background and tracks their
// lifecycle: queued (acknowledged), running with progress, then completed
// or failed.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/recordqa/internal/core"
	"github.com/JonMunkholm/recordqa/internal/logging"
	"github.com/google/uuid"
)

// ErrJobNotFound is returned for unknown or expired job ids.
var ErrJobNotFound = errors.New("job not found")

// State is a job lifecycle state.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Done reports whether the state is terminal.
func (s State) Done() bool {
	return s == StateCompleted || s == StateFailed
}

// Progress is the last progress report of a running job.
type Progress struct {
	Stage string `json:"stage,omitempty"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

// Job is a snapshot of one background operation.
type Job struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	SheetID    string            `json:"sheetId,omitempty"`
	State      State             `json:"state"`
	Progress   Progress          `json:"progress"`
	Result     any               `json:"result,omitempty"`
	Error      *core.UserMessage `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	StartedAt  *time.Time        `json:"startedAt,omitempty"`
	FinishedAt *time.Time        `json:"finishedAt,omitempty"`
}

// Func is the work a job performs. Progress reported through
// core.ReportProgress on ctx is recorded on the job.
type Func func(ctx context.Context) (any, error)

type entry struct {
	mu   sync.Mutex
	job  Job
	done chan struct{}

	listeners []chan Job
}

func (e *entry) snapshot() Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job
}

// update applies fn under the lock and notifies listeners.
func (e *entry) update(fn func(*Job)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn(&e.job)
	for _, ch := range e.listeners {
		deliver(ch, e.job)
	}
	if e.job.State.Done() {
		for _, ch := range e.listeners {
			close(ch)
		}
		e.listeners = nil
	}
}

// deliver sends job to ch, dropping the oldest buffered update when a slow
// listener has filled its buffer. The listener always ends up holding the
// latest state. Callers hold the entry lock, so no other send races this one.
func deliver(ch chan Job, job Job) {
	for {
		select {
		case ch <- job:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// unsubscribe removes and closes ch if the job has not already closed it.
func (e *entry) unsubscribe(ch chan Job) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, l := range e.listeners {
		if l == ch {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Runner executes jobs under a Limiter and keeps finished jobs for a
// retention window.
type Runner struct {
	limiter   *Limiter
	timeout   time.Duration
	retention time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	jobs map[string]*entry
}

// NewRunner creates a runner. A zero timeout disables the per-job deadline;
// a zero retention keeps finished jobs until the runner is shut down.
func NewRunner(limiter *Limiter, timeout, retention time.Duration) *Runner {
	if limiter == nil {
		limiter = NewLimiter(0, 0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		limiter:   limiter,
		timeout:   timeout,
		retention: retention,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]*entry),
	}
}

// Submit registers a job and starts it in the background. The returned
// snapshot is the acknowledgement: the job is queued until a slot frees up.
// Values carried by ctx (request id, requester) are kept, but its
// cancellation is not; jobs outlive the request that started them.
func (r *Runner) Submit(ctx context.Context, kind, sheetID string, fn Func) Job {
	e := &entry{
		job: Job{
			ID:        uuid.New().String(),
			Kind:      kind,
			SheetID:   sheetID,
			State:     StateQueued,
			CreatedAt: time.Now().UTC(),
		},
		done: make(chan struct{}),
	}

	r.mu.Lock()
	r.jobs[e.job.ID] = e
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(context.WithoutCancel(ctx), e, fn)

	return e.snapshot()
}

func (r *Runner) run(parent context.Context, e *entry, fn Func) {
	defer r.wg.Done()
	defer close(e.done)

	job := e.snapshot()
	parent, logger := logging.WithFields(parent, "job_id", job.ID, "kind", job.Kind)
	logger = logger.With("sheet_id", job.SheetID)
	if ip, ua := core.RequesterFromContext(parent); ip != "" {
		logger = logger.With("ip", ip, "user_agent", ua)
	}

	ctx, stop := context.WithCancel(parent)
	defer stop()
	unregister := context.AfterFunc(r.ctx, stop)
	defer unregister()

	if err := r.limiter.Acquire(ctx); err != nil {
		r.fail(e, logger, err)
		return
	}
	defer r.limiter.Release()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	started := time.Now().UTC()
	e.update(func(j *Job) {
		j.State = StateRunning
		j.StartedAt = &started
	})
	logger.Info("job started")

	ctx = core.ContextWithProgress(ctx, func(stage string, done, total int) {
		e.update(func(j *Job) {
			j.Progress = Progress{Stage: stage, Done: done, Total: total}
		})
	})

	result, err := fn(ctx)
	if err != nil {
		r.fail(e, logger, err)
		return
	}

	finished := time.Now().UTC()
	e.update(func(j *Job) {
		j.State = StateCompleted
		j.Result = result
		j.FinishedAt = &finished
	})
	logger.Info("job completed", "duration_ms", finished.Sub(started).Milliseconds())
	r.expire(job.ID)
}

func (r *Runner) fail(e *entry, logger *slog.Logger, err error) {
	msg := core.MapError(err)
	finished := time.Now().UTC()
	e.update(func(j *Job) {
		j.State = StateFailed
		j.Error = &msg
		j.FinishedAt = &finished
	})
	logger.Error("job failed", "error", err, "code", msg.Code)
	r.expire(e.snapshot().ID)
}

// expire drops a finished job after the retention window.
func (r *Runner) expire(id string) {
	if r.retention <= 0 {
		return
	}
	time.AfterFunc(r.retention, func() {
		r.mu.Lock()
		delete(r.jobs, id)
		r.mu.Unlock()
	})
}

func (r *Runner) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	return e, nil
}

// Get returns the current state of a job without blocking.
func (r *Runner) Get(id string) (Job, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Job{}, err
	}
	return e.snapshot(), nil
}

// Wait blocks until the job finishes or ctx is done.
func (r *Runner) Wait(ctx context.Context, id string) (Job, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Job{}, err
	}
	select {
	case <-e.done:
		return e.snapshot(), nil
	case <-ctx.Done():
		return e.snapshot(), ctx.Err()
	}
}

// Subscribe returns a channel of job updates, starting with the current
// state, and a function that stops the subscription. The channel is closed
// once the job finishes or the subscription is stopped. A listener that
// falls behind loses intermediate progress but always receives the final
// state.
//
//	updates, stop, err := runner.Subscribe(id)
//	if err != nil { ... }
//	defer stop()
func (r *Runner) Subscribe(id string) (<-chan Job, func(), error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan Job, 10)
	e.mu.Lock()
	defer e.mu.Unlock()

	ch <- e.job
	if e.job.State.Done() {
		close(ch)
		return ch, func() {}, nil
	}
	e.listeners = append(e.listeners, ch)
	return ch, func() { e.unsubscribe(ch) }, nil
}

// Status returns the limiter state.
func (r *Runner) Status() LimiterStatus {
	return r.limiter.Status()
}

// Shutdown waits for running jobs to finish. When ctx expires first, the
// remaining jobs are cancelled and Shutdown waits for them to unwind.
func (r *Runner) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
