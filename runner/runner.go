package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/logging"
	"github.com/hupe1980/echokernel/metrics"
)

// ErrRunNotFound is returned by Cancel for unknown or finished runs.
var ErrRunNotFound = errors.New("run not found")

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxConcurrentInvocations limits concurrent agent runs.
	MaxConcurrentInvocations int
	// MaxModelCalls limits the number of model calls per run. 0 means unlimited.
	MaxModelCalls int
	// Logging services.
	Logger logging.Logger
	// Metrics receives one observation per finished run.
	Metrics metrics.Recorder
}

// Run is the outcome of an asynchronous invocation.
type Run struct {
	ID     string
	Agent  string
	Result core.Result
	Err    error
}

// Runner coordinates agent execution. Public methods are safe for concurrent use.
type Runner struct {
	sem           *semaphore.Weighted
	maxConcurrent int
	maxModelCalls int

	logger  logging.Logger
	metrics metrics.Recorder

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentInvocations: 10,
		MaxModelCalls:            100,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxConcurrentInvocations < 1 {
		opts.MaxConcurrentInvocations = 1
	}

	return &Runner{
		sem:           semaphore.NewWeighted(int64(opts.MaxConcurrentInvocations)),
		maxConcurrent: opts.MaxConcurrentInvocations,
		maxModelCalls: opts.MaxModelCalls,
		logger:        logging.OrNoOp(opts.Logger),
		metrics:       metrics.OrNoop(opts.Metrics),
		activeRuns:    make(map[string]context.CancelFunc),
	}
}

// Invoke runs agent on task and blocks until it finishes. The returned
// error follows the agent's strictness.
func (r *Runner) Invoke(ctx context.Context, agent core.Agent, task core.Task) (core.Result, error) {
	runID := uuid.NewString()
	ctx, cancel := r.register(ctx, runID)
	defer cancel()

	return r.run(ctx, runID, agent, task)
}

// Start runs agent asynchronously. The channel receives exactly one Run and
// is then closed. The run can be stopped with Cancel(runID).
func (r *Runner) Start(ctx context.Context, agent core.Agent, task core.Task) (string, <-chan Run) {
	runID := uuid.NewString()
	ctx, cancel := r.register(ctx, runID)

	ch := make(chan Run, 1)

	go func() {
		defer close(ch)
		defer cancel()

		res, err := r.run(ctx, runID, agent, task)
		ch <- Run{ID: runID, Agent: agent.Name(), Result: res, Err: err}
	}()

	return runID, ch
}

// InvokeBatch runs agent once per task with at most MaxConcurrentInvocations
// runs in flight. Results keep the order of tasks; the first returned error
// (strict agents only) is reported after every run finished.
func (r *Runner) InvokeBatch(ctx context.Context, agent core.Agent, tasks []core.Task) ([]core.Result, error) {
	results := make([]core.Result, len(tasks))

	var g errgroup.Group
	g.SetLimit(r.maxConcurrent)

	for i, task := range tasks {
		g.Go(func() error {
			res, err := r.Invoke(ctx, agent, task)
			results[i] = res
			return err
		})
	}

	return results, g.Wait()
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}

	cancel()

	return nil
}

// ActiveRuns returns the ids of runs that have not finished, sorted.
func (r *Runner) ActiveRuns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.activeRuns))
	for id := range r.activeRuns {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

func (r *Runner) register(parent context.Context, runID string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	return ctx, func() {
		cancel()
		r.mu.Lock()
		delete(r.activeRuns, runID)
		r.mu.Unlock()
	}
}

func (r *Runner) run(ctx context.Context, runID string, agent core.Agent, task core.Task) (res core.Result, err error) {
	log := r.logger
	if kl, ok := log.(*logging.KernelLogger); ok {
		log = kl.WithRun(runID, agent.Name())
	}

	op := "runner." + agent.Name()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		res = core.Failure("", core.Cancelled(op, err))
		r.metrics.ObserveAgentRun(agent.Name(), string(agent.Kind()), res.Status.String(), 0)
		return res, nil
	}
	defer r.sem.Release(1)

	ctx = core.WithModelLimiter(ctx, core.NewModelLimiter(r.maxModelCalls))

	log.Info("runner.run.start", "run_id", runID, "agent", agent.Name(), "kind", string(agent.Kind()))
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("runner.run.panic", "run_id", runID, "agent", agent.Name(), "recover", rec, "stack", string(debug.Stack()))
			res = core.Failure("", core.NewError(core.KindInternal, op, fmt.Sprintf("panic: %v", rec), nil))
			err = nil
		}

		dur := time.Since(start)
		r.metrics.ObserveAgentRun(agent.Name(), string(agent.Kind()), res.Status.String(), dur)

		args := []any{"run_id", runID, "agent", agent.Name(), "status", res.Status.String(), "steps", res.Steps, "duration_ms", dur.Milliseconds()}
		if res.Err != nil {
			log.Warn("runner.run.done", append(args, "error", res.Err.Error())...)
		} else {
			log.Info("runner.run.done", args...)
		}
	}()

	return agent.Run(ctx, task)
}
