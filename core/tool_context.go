package core

import (
	"context"
	"sync"

	"github.com/hupe1980/meshbot/logging"
)

// ToolContext provides a constrained, auditable surface for tool / function
// implementations invoked during a responder call. Besides the cancellation
// context and identifiers it can record an escalation request, which ends the
// tool loop and surfaces the escalation message as the reply.
type ToolContext struct {
	ctx            context.Context
	key            ConversationKey
	responder      string
	functionCallID string
	logger         logging.Logger

	mu               sync.Mutex
	escalated        bool
	escalationReason string
}

// NewToolContext constructs a tool context for one function call. A nil
// logger is replaced by logging.NoOpLogger.
func NewToolContext(
	ctx context.Context,
	key ConversationKey,
	responder, functionCallID string,
	logger logging.Logger,
) *ToolContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &ToolContext{
		ctx:            ctx,
		key:            key,
		responder:      responder,
		functionCallID: functionCallID,
		logger:         logger,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// Key returns the conversation key the invocation belongs to.
func (tc *ToolContext) Key() ConversationKey { return tc.key }

// Responder returns the name of the responder that requested the call.
func (tc *ToolContext) Responder() string { return tc.responder }

// FunctionCallID returns the provider-assigned function call id.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// Escalate requests that the current invocation stop and hand the
// conversation back with reason as the reply.
func (tc *ToolContext) Escalate(reason string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.escalated = true
	tc.escalationReason = reason
	tc.logger.Info("tool.escalate.request", "responder", tc.responder, "function_call_id", tc.functionCallID)
}

// Escalation reports whether Escalate was called and with which reason.
func (tc *ToolContext) Escalation() (bool, string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	return tc.escalated, tc.escalationReason
}
