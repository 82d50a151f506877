package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/logging"
)

// DefaultMaxConcurrent bounds concurrently executing units.
const DefaultMaxConcurrent = 16

// GenericApology is delivered when preparing an inbound unit fails without a
// more specific reply.
const GenericApology = "Sorry, I couldn't process that message."

// ErrShuttingDown is returned by Submit and Run after Shutdown was called.
var ErrShuttingDown = errors.New("runner: shutting down")

// Dispatcher turns a message into a reply. *dispatch.Orchestrator satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, key core.ConversationKey, text string) string
}

// Inbound is one unit of work.
type Inbound struct {
	Key core.ConversationKey
	// Text is dispatched as is unless Prepare is set.
	Text string
	// Prepare produces the text to dispatch. Returning a *ReplyError delivers
	// its reply instead of dispatching; an empty text drops the unit.
	Prepare func(ctx context.Context) (string, error)
	// Deliver sends the reply; nil discards it.
	Deliver func(ctx context.Context, reply string) error
}

// ReplyError aborts a unit with a user-facing reply.
type ReplyError struct {
	Reply string
	Err   error
}

func (e *ReplyError) Error() string {
	if e.Err == nil {
		return e.Reply
	}
	return fmt.Sprintf("%s: %v", e.Reply, e.Err)
}

func (e *ReplyError) Unwrap() error { return e.Err }

// Options configure a Runner.
type Options struct {
	// MaxConcurrent limits units executing at the same time. Excess units
	// wait for a slot.
	MaxConcurrent int
	// Timeout bounds one unit end to end (0 = none).
	Timeout time.Duration
	Logger  logging.Logger
}

// Runner coordinates background execution of inbound units. Public methods
// are safe for concurrent use.
type Runner struct {
	dispatcher Dispatcher
	opts       Options
	sem        chan struct{}

	// base outlives individual requests; Shutdown cancels it once its
	// deadline passes.
	base       context.Context
	cancelBase context.CancelFunc

	mu         sync.Mutex
	closed     bool
	activeRuns map[string]context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a Runner.
func New(d Dispatcher, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrent: DefaultMaxConcurrent,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	base, cancel := context.WithCancel(context.Background())

	return &Runner{
		dispatcher: d,
		opts:       opts,
		sem:        make(chan struct{}, opts.MaxConcurrent),
		base:       base,
		cancelBase: cancel,
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Submit schedules in and returns its run id without waiting for it.
func (r *Runner) Submit(in Inbound) (string, error) {
	runID, ctx, err := r.start(r.base)
	if err != nil {
		return "", err
	}

	go func() {
		_, _ = r.execute(ctx, runID, in)
	}()

	return runID, nil
}

// Run executes in synchronously and returns the reply, which is also
// delivered when in.Deliver is set. An empty reply means the unit was dropped.
func (r *Runner) Run(ctx context.Context, in Inbound) (string, error) {
	runID, runCtx, err := r.start(ctx)
	if err != nil {
		return "", err
	}
	return r.execute(runCtx, runID, in)
}

// Cancel cancels a running unit by id.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// Active returns the number of units submitted and not yet finished.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.activeRuns)
}

// Shutdown stops accepting units and waits for in-flight ones. If ctx ends
// first the remaining units are cancelled and ctx's error is returned.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancelBase()
		return nil
	case <-ctx.Done():
		r.cancelBase()
		r.mu.Lock()
		for _, cancel := range r.activeRuns {
			cancel()
		}
		r.mu.Unlock()
		<-done
		return ctx.Err()
	}
}

func (r *Runner) start(parent context.Context) (string, context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", nil, ErrShuttingDown
	}

	runID := core.NewID()

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if r.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, r.opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	r.activeRuns[runID] = cancel
	r.wg.Add(1)

	return runID, ctx, nil
}

func (r *Runner) finish(runID string) {
	r.mu.Lock()
	if cancel, ok := r.activeRuns[runID]; ok {
		cancel()
		delete(r.activeRuns, runID)
	}
	r.mu.Unlock()
	r.wg.Done()
}

func (r *Runner) execute(ctx context.Context, runID string, in Inbound) (reply string, err error) {
	defer r.finish(runID)

	logger := r.opts.Logger
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("runner: panic in run %s: %v", runID, rec)
			logger.Error("runner.run.panic", "run_id", runID, "conversation", in.Key.String(), "panic", rec)
		}
	}()

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		logger.Warn("runner.run.abandoned", "run_id", runID, "conversation", in.Key.String(), "stage", "queued")
		return "", ctx.Err()
	}

	text := in.Text
	if in.Prepare != nil {
		prepared, err := in.Prepare(ctx)
		if err != nil {
			var re *ReplyError
			if errors.As(err, &re) {
				reply = re.Reply
			} else {
				reply = GenericApology
			}
			logger.Warn("runner.prepare.failed", "run_id", runID, "conversation", in.Key.String(), "error", err)
			return reply, r.deliver(ctx, runID, in, reply)
		}
		text = prepared
	}

	text = strings.TrimSpace(text)
	if text == "" {
		logger.Debug("runner.run.dropped", "run_id", runID, "conversation", in.Key.String())
		return "", nil
	}

	reply = r.dispatcher.Dispatch(ctx, in.Key, text)

	if err := ctx.Err(); err != nil {
		logger.Warn("runner.run.abandoned", "run_id", runID, "conversation", in.Key.String(), "stage", "dispatch")
		return reply, err
	}

	logger.Info("runner.run.done", "run_id", runID, "conversation", in.Key.String(),
		"duration_ms", time.Since(start).Milliseconds())

	return reply, r.deliver(ctx, runID, in, reply)
}

func (r *Runner) deliver(ctx context.Context, runID string, in Inbound, reply string) error {
	if in.Deliver == nil || reply == "" {
		return nil
	}
	if err := in.Deliver(ctx, reply); err != nil {
		r.opts.Logger.Error("runner.deliver.failed", "run_id", runID, "conversation", in.Key.String(), "error", err)
		return fmt.Errorf("deliver reply: %w", err)
	}
	return nil
}
