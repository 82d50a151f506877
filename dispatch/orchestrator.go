package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/logging"
	"github.com/hupe1980/meshbot/roster"
)

// DefaultMaxAttempts is the attempt ceiling of one dispatch.
const DefaultMaxAttempts = 6

// Options configure an Orchestrator.
type Options struct {
	// MaxAttempts bounds responder invocations per dispatch.
	MaxAttempts int
	// Backoff computes the delay after a retryable failure.
	Backoff *Backoff
	// Patterns is the text table used by the classifier.
	Patterns []Pattern
	// Logger receives dispatch diagnostics.
	Logger logging.Logger
	// OnTransition, if set, observes every state change synchronously.
	OnTransition func(Transition)
}

// Orchestrator turns inbound messages into replies. It is safe for
// concurrent use; dispatches on one key are serialized through the session's
// dispatch lock, dispatches on different keys run independently.
type Orchestrator struct {
	store     core.SessionStore
	roster    *roster.Roster
	responder Responder
	opts      Options
}

// NewOrchestrator creates an orchestrator over the given store, roster and
// responder.
func NewOrchestrator(
	store core.SessionStore,
	r *roster.Roster,
	responder Responder,
	optFns ...func(o *Options),
) *Orchestrator {
	opts := Options{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     DefaultBackoff(),
		Patterns:    DefaultPatterns,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff == nil {
		opts.Backoff = DefaultBackoff()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Orchestrator{
		store:     store,
		roster:    r,
		responder: responder,
		opts:      opts,
	}
}

// Dispatch handles one inbound message and returns the reply text. It never
// fails; failures are reported as natural-language replies.
func (o *Orchestrator) Dispatch(ctx context.Context, key core.ConversationKey, text string) string {
	return o.Run(ctx, key, text).Text
}

// Run is Dispatch returning the full result including the attempt trace.
func (o *Orchestrator) Run(ctx context.Context, key core.ConversationKey, text string) Result {
	r := &run{
		o:      o,
		key:    key,
		logger: o.opts.Logger,
		sel:    o.roster.Select(),
	}

	sess := o.store.GetOrCreate(key)

	release, err := sess.Acquire(ctx)
	if err != nil {
		r.logger.Warn("dispatch.abandoned", "conversation", key.String(), "error", err, "phase", "acquire")
		return r.finish(StateAbandoned, MessageUnavailable)
	}
	defer release()

	sess.Append(core.RoleUser, text)

	for attempt := 1; attempt <= o.opts.MaxAttempts; attempt++ {
		current := r.sel.Current()
		r.transition(StateInvoking, attempt, current.Name)

		started := time.Now()
		reply, err := o.invoke(ctx, current, key, sess.Turns())
		a := Attempt{Number: attempt, Responder: current.Name, Duration: time.Since(started)}

		if ctx.Err() != nil {
			a.Outcome = Fatal{Err: ctx.Err()}
			r.attempts = append(r.attempts, a)
			r.logger.Warn("dispatch.abandoned", "conversation", key.String(), "attempt", attempt, "error", ctx.Err())
			return r.finish(StateAbandoned, MessageUnavailable)
		}

		if err == nil {
			a.Outcome = Success{Reply: reply}
			r.attempts = append(r.attempts, a)

			answer := replyText(reply)
			sess.Append(core.RoleAssistant, answer)
			r.logger.Info("dispatch.succeeded",
				"conversation", key.String(), "responder", current.Name, "attempt", attempt,
				"escalated", reply.Escalated)

			return r.finish(StateSucceeded, answer)
		}

		r.transition(StateClassifyingFailure, attempt, current.Name)

		class := ClassifyWith(err, o.opts.Patterns)
		if !class.Retryable() {
			a.Outcome = Fatal{Err: err}
			r.attempts = append(r.attempts, a)
			r.logger.Error("dispatch.attempt.fatal",
				"conversation", key.String(), "responder", current.Name, "attempt", attempt, "error", err)

			return r.finish(StateFatalFailure, MessageFatal)
		}

		a.Outcome = Retryable{Class: class, Err: err}
		r.logger.Warn("dispatch.attempt.failed",
			"conversation", key.String(), "responder", current.Name, "attempt", attempt,
			"max_attempts", o.opts.MaxAttempts, "class", class.String(), "error", err)

		if attempt == o.opts.MaxAttempts {
			r.attempts = append(r.attempts, a)
			break
		}

		r.transition(StateBackingOff, attempt, current.Name)

		a.Delay = o.opts.Backoff.Delay(attempt)
		r.attempts = append(r.attempts, a)

		if err := Wait(ctx, a.Delay); err != nil {
			r.logger.Warn("dispatch.abandoned", "conversation", key.String(), "attempt", attempt, "error", err, "phase", "backoff")
			return r.finish(StateAbandoned, MessageUnavailable)
		}

		if next, ok := r.sel.Advance(); ok {
			r.transition(StateSwappingModel, attempt, next.Name)
			r.logger.Info("dispatch.swap", "conversation", key.String(), "from", current.Name, "to", next.Name)
		}
	}

	r.logger.Error("dispatch.exhausted",
		"conversation", key.String(), "attempts", len(r.attempts), "used", r.sel.Used())

	return r.finish(StateExhaustedRetries, MessageUnavailable)
}

// invoke calls the responder under the descriptor's timeout. A timeout of the
// attempt (with the caller still waiting) always surfaces as
// context.DeadlineExceeded, and a panic becomes an error.
func (o *Orchestrator) invoke(
	ctx context.Context,
	d roster.Descriptor,
	key core.ConversationKey,
	history []core.Turn,
) (reply Reply, err error) {
	actx := ctx
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			reply, err = Reply{}, fmt.Errorf("responder %s panicked: %v", d.Name, rec)
		}
	}()

	reply, err = o.responder.Respond(actx, d, key, history)
	if err != nil && ctx.Err() == nil &&
		errors.Is(actx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", context.DeadlineExceeded, d.Timeout, err)
	}

	return reply, err
}

func replyText(r Reply) string {
	switch {
	case r.Text != "":
		return r.Text
	case r.Escalated:
		return EscalationMessage(r.EscalationMessage)
	default:
		return MessageNoResponse
	}
}

// run is the per-dispatch state.
type run struct {
	o        *Orchestrator
	key      core.ConversationKey
	logger   logging.Logger
	sel      *roster.Selection
	state    State
	attempts []Attempt
}

func (r *run) transition(to State, attempt int, responder string) {
	from := r.state
	r.state = to

	if r.o.opts.OnTransition != nil {
		r.o.opts.OnTransition(Transition{
			Key:       r.key.String(),
			From:      from,
			To:        to,
			Attempt:   attempt,
			Responder: responder,
		})
	}
}

func (r *run) finish(state State, text string) Result {
	r.transition(state, len(r.attempts), r.sel.Current().Name)

	return Result{
		Text:     text,
		State:    state,
		Attempts: r.attempts,
		Used:     r.sel.Used(),
	}
}
