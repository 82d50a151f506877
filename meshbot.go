// Package meshbot wires the pieces of a resilient chat bot together: a
// session store holding per-conversation memory, a roster of model
// responders, the dispatch orchestrator that retries and falls back across
// that roster, and a runner executing inbound messages in the background.
//
// Most applications create a Bot with New and hand Bot.Runner to a
// transport (Telegram webhook, websocket console), or call Bot.Ask directly:
//
//	bot := meshbot.New(r, responder)
//	reply, err := bot.Ask(ctx, "alice", "", "What projects has the owner built?")
package meshbot

import (
	"context"
	"time"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/dispatch"
	"github.com/hupe1980/meshbot/logging"
	"github.com/hupe1980/meshbot/roster"
	"github.com/hupe1980/meshbot/runner"
	"github.com/hupe1980/meshbot/session"
)

// Options configures a Bot.
type Options struct {
	// AppName is the application part of conversation keys created by Ask.
	AppName string

	// SessionStore holds conversation memory (defaults to in-memory).
	SessionStore core.SessionStore

	// MaxAttempts bounds responder invocations per message.
	MaxAttempts int
	// Backoff overrides the retry delay schedule.
	Backoff *dispatch.Backoff
	// OnTransition observes dispatch state changes.
	OnTransition func(dispatch.Transition)

	// MaxConcurrent limits messages processed at once.
	MaxConcurrent int
	// RunTimeout bounds one message end to end (0 = no limit).
	RunTimeout time.Duration

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Bot is the high-level façade over orchestrator and runner.
type Bot struct {
	opts         Options
	orchestrator *dispatch.Orchestrator
	runner       *runner.Runner
}

// New creates a Bot answering with responder over the roster r.
func New(r *roster.Roster, responder dispatch.Responder, optFns ...func(o *Options)) *Bot {
	opts := Options{
		AppName:       "blog_assistant_app",
		SessionStore:  session.NewInMemoryStore(),
		MaxAttempts:   dispatch.DefaultMaxAttempts,
		MaxConcurrent: runner.DefaultMaxConcurrent,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	o := dispatch.NewOrchestrator(opts.SessionStore, r, responder, func(do *dispatch.Options) {
		do.MaxAttempts = opts.MaxAttempts
		do.Backoff = opts.Backoff
		do.OnTransition = opts.OnTransition
		do.Logger = opts.Logger
	})

	run := runner.New(o, func(ro *runner.Options) {
		ro.MaxConcurrent = opts.MaxConcurrent
		ro.Timeout = opts.RunTimeout
		ro.Logger = opts.Logger
	})

	return &Bot{opts: opts, orchestrator: o, runner: run}
}

// Ask dispatches text for user/topic synchronously and returns the reply.
func (b *Bot) Ask(ctx context.Context, user, topic, text string) (string, error) {
	key := core.NewConversationKey(b.opts.AppName, user, topic)
	return b.runner.Run(ctx, runner.Inbound{Key: key, Text: text})
}

// History returns a copy of the turns recorded for user/topic. Stores that
// can look up without creating are not mutated.
func (b *Bot) History(user, topic string) []core.Turn {
	key := core.NewConversationKey(b.opts.AppName, user, topic)
	if l, ok := b.opts.SessionStore.(interface {
		Lookup(core.ConversationKey) (*core.Session, bool)
	}); ok {
		s, found := l.Lookup(key)
		if !found {
			return nil
		}
		return s.Turns()
	}
	return b.opts.SessionStore.GetOrCreate(key).Turns()
}

// Orchestrator exposes the dispatch orchestrator.
func (b *Bot) Orchestrator() *dispatch.Orchestrator { return b.orchestrator }

// Runner exposes the background runner for transports.
func (b *Bot) Runner() *runner.Runner { return b.runner }

// Store exposes the session store.
func (b *Bot) Store() core.SessionStore { return b.opts.SessionStore }

// Shutdown stops intake and waits for in-flight messages.
func (b *Bot) Shutdown(ctx context.Context) error { return b.runner.Shutdown(ctx) }
