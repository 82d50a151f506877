package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshbot/core"
)

var (
	_ Tool = (*FunctionTool)(nil)
	_ Tool = escalateTool{}
)

func toolContext(fcID string) *core.ToolContext {
	key := core.NewConversationKey("blog_assistant_app", "tg_chat_1", "")
	return core.NewToolContext(context.Background(), key, "llama-3.3-70b-versatile", fcID, nil)
}

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	result, err := sumTool.Call(toolContext("fc1"), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	type args struct {
		A float64 `json:"a"`
	}
	tTool := NewFunctionToolFromStruct("test", "Test", args{}, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})

	_, err := tTool.Call(toolContext("fc2"), map[string]any{})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	execTool := NewFunctionTool("fail", "Fails", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := execTool.Call(toolContext("fc3"), map[string]any{})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	custom := NewToolError("lookup", "upstream down", "UPSTREAM")
	tl := NewFunctionTool("lookup", "", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, fmt.Errorf("wrapped: %w", custom)
	})

	_, err := tl.Call(toolContext("fc4"), nil)
	assert.Same(t, custom, err)
}

func TestEscalateTool(t *testing.T) {
	tc := toolContext("fc5")

	res, err := NewEscalateTool().Call(tc, map[string]any{"reason": "needs the owner"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"escalated": true}, res)

	escalated, reason := tc.Escalation()
	assert.True(t, escalated)
	assert.Equal(t, "needs the owner", reason)
}

func TestRegistry(t *testing.T) {
	a := NewFunctionTool("get_work", "work", nil, nil)
	b := NewFunctionTool("get_about", "about", nil, nil)

	r, err := NewRegistry(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"get_about", "get_work"}, r.Names())

	assert.Error(t, r.Register(NewFunctionTool("get_work", "dup", nil, nil)))

	got, ok := r.Get("get_work")
	require.True(t, ok)
	assert.Same(t, a, got)

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "get_about", defs[0].Function.Name)
	assert.Equal(t, "object", defs[0].Function.Parameters["type"])
}

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}
