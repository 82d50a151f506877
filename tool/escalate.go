package tool

import (
	"github.com/hupe1980/meshbot/core"
)

// EscalateToolName is the function name of the escalation tool.
const EscalateToolName = "escalate"

type escalateTool struct{}

// NewEscalateTool returns a tool the model can call to hand the conversation
// back instead of answering. The reason becomes the escalation message.
func NewEscalateTool() Tool { return escalateTool{} }

func (escalateTool) Name() string { return EscalateToolName }

func (escalateTool) Description() string {
	return "Stop answering and hand the conversation to the site owner. " +
		"Use only when the request cannot be handled with the other tools."
}

func (escalateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reason": map[string]any{"type": "string", "description": "Short explanation shown to the user"},
		},
	}
}

func (escalateTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	reason, _ := args["reason"].(string)
	tc.Escalate(reason)

	return map[string]any{"escalated": true}, nil
}
