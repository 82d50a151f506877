package dispatch

import (
	"context"
	"time"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/roster"
)

// Reply is the structurally valid result of one responder invocation.
type Reply struct {
	Text string
	// Escalated is set when the responder handed the conversation back
	// instead of answering. EscalationMessage optionally explains why.
	Escalated         bool
	EscalationMessage string
}

// Responder invokes one model configuration with the conversation history.
// The history ends with the inbound user turn. Implementations must honor
// ctx cancellation and deadline.
type Responder interface {
	Respond(ctx context.Context, d roster.Descriptor, key core.ConversationKey, history []core.Turn) (Reply, error)
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(ctx context.Context, d roster.Descriptor, key core.ConversationKey, history []core.Turn) (Reply, error)

// Respond implements Responder.
func (f ResponderFunc) Respond(
	ctx context.Context,
	d roster.Descriptor,
	key core.ConversationKey,
	history []core.Turn,
) (Reply, error) {
	return f(ctx, d, key, history)
}

// Outcome is the tagged result of one attempt: Success, Retryable or Fatal.
type Outcome interface{ isOutcome() }

// Success carries the responder's reply.
type Success struct{ Reply Reply }

// Retryable carries a rate-limited or transient failure.
type Retryable struct {
	Class Class
	Err   error
}

// Fatal carries a failure that must not be retried.
type Fatal struct{ Err error }

func (Success) isOutcome()   {}
func (Retryable) isOutcome() {}
func (Fatal) isOutcome()     {}

// Attempt is one entry of a dispatch trace.
type Attempt struct {
	Number    int
	Responder string
	Outcome   Outcome
	Duration  time.Duration
	// Delay is the backoff slept after this attempt (zero if none).
	Delay time.Duration
}

// Err returns the failure of the attempt, if any.
func (a Attempt) Err() error {
	switch o := a.Outcome.(type) {
	case Retryable:
		return o.Err
	case Fatal:
		return o.Err
	default:
		return nil
	}
}

// Result describes a finished dispatch.
type Result struct {
	Text     string
	State    State
	Attempts []Attempt
	// Used lists the responders selected during the dispatch, in order.
	Used []string
}
