package flow

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/tool"
)

// CallOutcome is the result of executing one function call.
type CallOutcome struct {
	Call   core.FunctionCall
	Result any
	Err    error
	// Escalated is set when the tool requested escalation.
	Escalated        bool
	EscalationReason string
}

// Content returns the tool-role content reporting the outcome to the model.
func (o CallOutcome) Content() core.Content {
	return core.NewFunctionResponseContent(o.Call.ID, o.Call.Name, o.Result, o.Err)
}

// FunctionExecutor executes a batch of function calls. Implementations must
// respect inv.Ctx cancellation, never panic and return exactly one outcome
// per call, in call order.
type FunctionExecutor interface {
	Execute(inv *Invocation, calls []core.FunctionCall) []CallOutcome
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // 0 or <1 => no explicit limit (len(calls))
	LogStartEvents bool // log a start line per function
}

type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(inv *Invocation, calls []core.FunctionCall) []CallOutcome {
	n := len(calls)
	if n == 0 {
		return nil
	}

	out := make([]CallOutcome, n)

	if n == 1 {
		out[0] = e.executeOne(inv, calls[0])
		return out
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)
	batchStart := time.Now()

	for i := range calls {
		if err := inv.Ctx.Err(); err != nil {
			out[i] = CallOutcome{Call: calls[i], Err: err}
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			out[idx] = e.executeOne(inv, fc)
		}(i, calls[i])
	}

	wg.Wait()

	inv.logger().Debug(
		"flow.functions.batch.complete",
		"responder", inv.Responder,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return out
}

func (e *parallelFunctionExecutor) executeOne(inv *Invocation, fc core.FunctionCall) CallOutcome {
	logger := inv.logger()
	if err := inv.Ctx.Err(); err != nil {
		return CallOutcome{Call: fc, Err: err}
	}

	toolCtx := core.NewToolContext(inv.Ctx, inv.Key, inv.Responder, fc.ID, logger)
	if e.cfg.LogStartEvents {
		logger.Info("flow.function.start", "responder", inv.Responder, "function", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()
	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				logger.Error("flow.function.panic", "responder", inv.Responder, "function", fc.Name, "recover", r)
			}
		}()
		result, err = executeTool(inv.Tools, toolCtx, fc.Name, fc.Arguments)
	}()

	logger.Info(
		"flow.function.executed",
		"responder", inv.Responder,
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	escalated, reason := toolCtx.Escalation()

	return CallOutcome{Call: fc, Result: result, Err: err, Escalated: escalated, EscalationReason: reason}
}

func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

// executeTool centralizes tool lookup, argument decoding and execution.
func executeTool(registry *tool.Registry, toolCtx *core.ToolContext, toolName, args string) (any, error) {
	if registry == nil {
		return nil, tool.NewToolError(toolName, "no tools registered", tool.CodeNotFound)
	}

	impl, ok := registry.Get(toolName)
	if !ok {
		return nil, tool.NewToolError(toolName, fmt.Sprintf("tool %s not found", toolName), tool.CodeNotFound)
	}

	argMap := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return nil, tool.NewToolError(toolName, fmt.Sprintf("failed to unmarshal args: %v", err), tool.CodeBadArgs)
		}
	}

	return impl.Call(toolCtx, argMap)
}
