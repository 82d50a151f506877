// Package flow runs the request -> model -> tool loop of a single responder
// invocation. Request processors assemble the model request (instruction,
// history, tool declarations); the ToolLoop then alternates model calls and
// parallel tool execution until the model answers in text, a tool escalates,
// or the per-invocation call limit is reached.
package flow

import (
	"context"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/logging"
	"github.com/hupe1980/meshbot/model"
	"github.com/hupe1980/meshbot/tool"
)

// Invocation carries everything one responder invocation needs.
type Invocation struct {
	Ctx       context.Context
	Key       core.ConversationKey
	Responder string
	Model     model.Model

	// Instruction is the system prompt; it may contain {{.var}} placeholders
	// expanded from Vars.
	Instruction string
	Vars        map[string]any

	// History is the session history, ending with the inbound user turn.
	History []core.Turn
	// MaxHistoryTurns trims History to its most recent turns (0 = all).
	MaxHistoryTurns int

	Tools   *tool.Registry
	Limiter *core.CallLimiter
	Logger  logging.Logger
}

// Result is the outcome of a completed tool loop.
type Result struct {
	Text              string
	Escalated         bool
	EscalationMessage string
	ModelCalls        int
	ToolCalls         int
}

// RequestProcessor contributes to the initial model request.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request before the first model call.
	ProcessRequest(inv *Invocation, req *model.Request) error
}

// DefaultProcessors returns the standard processor chain.
func DefaultProcessors() []RequestProcessor {
	return []RequestProcessor{
		NewInstructionsProcessor(),
		NewHistoryProcessor(),
		NewToolsProcessor(),
	}
}

func (inv *Invocation) logger() logging.Logger {
	if inv.Logger == nil {
		return logging.NoOpLogger{}
	}
	return inv.Logger
}
