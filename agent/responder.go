package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/dispatch"
	"github.com/hupe1980/meshbot/flow"
	"github.com/hupe1980/meshbot/logging"
	"github.com/hupe1980/meshbot/model"
	"github.com/hupe1980/meshbot/roster"
	"github.com/hupe1980/meshbot/tool"
)

// DefaultMaxModelCalls bounds model calls within one invocation.
const DefaultMaxModelCalls = 8

// ModelFactory builds the model for a roster descriptor.
type ModelFactory interface {
	NewModel(d roster.Descriptor) (model.Model, error)
}

// ModelFactoryFunc adapts a function to ModelFactory.
type ModelFactoryFunc func(d roster.Descriptor) (model.Model, error)

// NewModel implements ModelFactory.
func (f ModelFactoryFunc) NewModel(d roster.Descriptor) (model.Model, error) { return f(d) }

// ResponderOptions configure a Responder.
type ResponderOptions struct {
	Instruction Instruction
	// Vars are expanded into {{.name}} placeholders of the instruction.
	Vars map[string]any
	// MaxHistoryTurns limits the history sent to the model (0 = all).
	MaxHistoryTurns int
	// MaxModelCalls bounds the tool loop; exceeding it escalates.
	MaxModelCalls int
	Tools         []tool.Tool
	Stream        bool
	Executor      flow.FunctionExecutor
	Logger        logging.Logger
}

// Responder answers conversations with a model chosen per descriptor.
type Responder struct {
	factory  ModelFactory
	registry *tool.Registry
	loop     *flow.ToolLoop
	opts     ResponderOptions

	mu     sync.Mutex
	models map[string]model.Model
}

var _ dispatch.Responder = (*Responder)(nil)

// NewResponder creates a responder resolving models through factory.
func NewResponder(factory ModelFactory, optFns ...func(o *ResponderOptions)) (*Responder, error) {
	opts := ResponderOptions{
		Instruction:   NewInstructionFromText(DefaultInstruction),
		MaxModelCalls: DefaultMaxModelCalls,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	registry, err := tool.NewRegistry(opts.Tools...)
	if err != nil {
		return nil, err
	}

	loop := flow.NewToolLoop(func(o *flow.ToolLoopOptions) {
		o.Stream = opts.Stream
		if opts.Executor != nil {
			o.Executor = opts.Executor
		}
	})

	return &Responder{
		factory:  factory,
		registry: registry,
		loop:     loop,
		opts:     opts,
		models:   make(map[string]model.Model),
	}, nil
}

// RegisterTool adds a tool available to every subsequent invocation.
func (r *Responder) RegisterTool(t tool.Tool) error { return r.registry.Register(t) }

// Tools returns the names of the registered tools.
func (r *Responder) Tools() []string { return r.registry.Names() }

// Respond implements dispatch.Responder.
func (r *Responder) Respond(
	ctx context.Context,
	d roster.Descriptor,
	key core.ConversationKey,
	history []core.Turn,
) (dispatch.Reply, error) {
	m, err := r.model(d)
	if err != nil {
		return dispatch.Reply{}, err
	}

	instruction, err := r.opts.Instruction.Resolve(ctx, key)
	if err != nil {
		return dispatch.Reply{}, &model.Error{Provider: d.Provider, Model: d.Name, Kind: model.KindFatal, Err: err}
	}

	res, err := r.loop.Run(&flow.Invocation{
		Ctx:             ctx,
		Key:             key,
		Responder:       d.Name,
		Model:           m,
		Instruction:     instruction,
		Vars:            r.opts.Vars,
		History:         history,
		MaxHistoryTurns: r.opts.MaxHistoryTurns,
		Tools:           r.registry,
		Limiter:         core.NewCallLimiter(r.opts.MaxModelCalls),
		Logger:          r.opts.Logger,
	})
	if err != nil {
		return dispatch.Reply{}, fmt.Errorf("responder %s: %w", d.Name, err)
	}

	r.opts.Logger.Debug("agent.respond.done",
		"responder", d.Name, "conversation", key.String(),
		"model_calls", res.ModelCalls, "tool_calls", res.ToolCalls, "escalated", res.Escalated)

	return dispatch.Reply{
		Text:              res.Text,
		Escalated:         res.Escalated,
		EscalationMessage: res.EscalationMessage,
	}, nil
}

// model returns the cached model of d, building it on first use. Factory
// failures are configuration errors and therefore fatal.
func (r *Responder) model(d roster.Descriptor) (model.Model, error) {
	cacheKey := d.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.models[cacheKey]; ok {
		return m, nil
	}

	m, err := r.factory.NewModel(d)
	if err != nil {
		return nil, &model.Error{Provider: d.Provider, Model: d.Name, Kind: model.KindFatal, Err: err}
	}
	r.models[cacheKey] = m

	return m, nil
}
