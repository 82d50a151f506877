package flow

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/model"
)

// CallLimitMessage is the escalation message used when the per-invocation
// model call budget runs out.
const CallLimitMessage = "The assistant needed too many steps to answer."

// ToolLoopOptions configure a ToolLoop.
type ToolLoopOptions struct {
	Processors []RequestProcessor
	Executor   FunctionExecutor
	// Stream requests streaming responses from the model. Partial chunks
	// are dropped; only the final response is used.
	Stream bool
}

// ToolLoop drives model calls and tool execution for one invocation.
type ToolLoop struct {
	opts ToolLoopOptions
}

// NewToolLoop creates a tool loop with the default processor chain and a
// parallel function executor.
func NewToolLoop(optFns ...func(o *ToolLoopOptions)) *ToolLoop {
	opts := ToolLoopOptions{
		Processors: DefaultProcessors(),
		Executor:   NewParallelFunctionExecutor(FunctionExecutorConfig{}),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ToolLoop{opts: opts}
}

// llmCallLogger is implemented by loggers with a dedicated model-call record.
type llmCallLogger interface {
	LogLLMCall(model string, dur time.Duration, success bool, err error)
}

// Run executes the loop. Model failures are returned unchanged (wrapped with
// %w) so callers can classify them; tool failures are reported back to the
// model instead.
func (l *ToolLoop) Run(inv *Invocation) (Result, error) {
	if inv.Model == nil {
		return Result{}, errors.New("flow: invocation has no model")
	}

	limiter := inv.Limiter
	if limiter == nil {
		limiter = core.NewCallLimiter(0)
	}

	req := model.Request{Stream: l.opts.Stream}
	for _, p := range l.opts.Processors {
		if err := p.ProcessRequest(inv, &req); err != nil {
			return Result{}, fmt.Errorf("request processor %s failed: %w", p.Name(), err)
		}
	}

	var res Result
	logger := inv.logger()

	for {
		if err := limiter.Acquire(); err != nil {
			logger.Warn("flow.call_limit.exceeded", "responder", inv.Responder, "model_calls", res.ModelCalls)
			res.Escalated = true
			res.EscalationMessage = CallLimitMessage
			return res, nil
		}

		start := time.Now()
		resp, err := model.Collect(inv.Ctx, inv.Model, req)
		res.ModelCalls++

		if cl, ok := inv.Logger.(llmCallLogger); ok {
			cl.LogLLMCall(inv.Model.Info().Name, time.Since(start), err == nil, err)
		}

		if err != nil {
			return res, fmt.Errorf("model call %d: %w", res.ModelCalls, err)
		}

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			res.Text = resp.Content.Text()
			return res, nil
		}

		req.Contents = append(req.Contents, resp.Content)

		outcomes := l.opts.Executor.Execute(inv, calls)
		res.ToolCalls += len(outcomes)

		for _, o := range outcomes {
			req.Contents = append(req.Contents, o.Content())
			if o.Escalated && !res.Escalated {
				res.Escalated = true
				res.EscalationMessage = o.EscalationReason
			}
		}

		if res.Escalated {
			// Text emitted alongside the escalating call is kept as the reply.
			res.Text = resp.Content.Text()
			return res, nil
		}

		if err := inv.Ctx.Err(); err != nil {
			return res, err
		}
	}
}
