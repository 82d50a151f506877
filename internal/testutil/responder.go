package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/dispatch"
	"github.com/hupe1980/meshbot/roster"
)

// Step is one scripted responder outcome.
type Step struct {
	Text      string
	Err       error
	Escalated bool
	Message   string
	// Block makes the step wait for ctx to end (simulates a hung upstream).
	Block bool
	// Delay is slept (cancellably) before answering.
	Delay time.Duration
}

// OK returns a successful step.
func OK(text string) Step { return Step{Text: text} }

// Fail returns a failing step.
func Fail(err error) Step { return Step{Err: err} }

// Escalate returns an empty escalated step.
func Escalate(msg string) Step { return Step{Escalated: true, Message: msg} }

// Hang returns a step that blocks until the invocation context ends.
func Hang() Step { return Step{Block: true} }

// Call records one responder invocation.
type Call struct {
	Responder string
	Key       core.ConversationKey
	History   []core.Turn
}

// ScriptedResponder is a dispatch.Responder driven by per-responder scripts.
// Steps are consumed in order; the last step repeats once the script is
// exhausted. Responders without a script echo the last user turn.
type ScriptedResponder struct {
	mu      sync.Mutex
	scripts map[string][]Step
	calls   []Call
}

var _ dispatch.Responder = (*ScriptedResponder)(nil)

// NewScriptedResponder creates an empty scripted responder.
func NewScriptedResponder() *ScriptedResponder {
	return &ScriptedResponder{scripts: map[string][]Step{}}
}

// On appends steps to the script of the named responder (chainable).
func (s *ScriptedResponder) On(name string, steps ...Step) *ScriptedResponder {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[name] = append(s.scripts[name], steps...)
	return s
}

// Respond implements dispatch.Responder.
func (s *ScriptedResponder) Respond(
	ctx context.Context,
	d roster.Descriptor,
	key core.ConversationKey,
	history []core.Turn,
) (dispatch.Reply, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Responder: d.Name, Key: key, History: append([]core.Turn(nil), history...)})
	step, scripted := s.next(d.Name)
	s.mu.Unlock()

	if !scripted {
		last := ""
		if n := len(history); n > 0 {
			last = history[n-1].Text
		}
		return dispatch.Reply{Text: "echo: " + last}, nil
	}

	if step.Block {
		<-ctx.Done()
		return dispatch.Reply{}, ctx.Err()
	}

	if step.Delay > 0 {
		if err := dispatch.Wait(ctx, step.Delay); err != nil {
			return dispatch.Reply{}, err
		}
	}

	if step.Err != nil {
		return dispatch.Reply{}, step.Err
	}

	return dispatch.Reply{Text: step.Text, Escalated: step.Escalated, EscalationMessage: step.Message}, nil
}

func (s *ScriptedResponder) next(name string) (Step, bool) {
	steps, ok := s.scripts[name]
	if !ok || len(steps) == 0 {
		return Step{}, false
	}
	step := steps[0]
	if len(steps) > 1 {
		s.scripts[name] = steps[1:]
	}
	return step, true
}

// Calls returns a copy of the recorded invocations.
func (s *ScriptedResponder) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns the number of recorded invocations.
func (s *ScriptedResponder) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
