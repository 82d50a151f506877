package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/model"
)

// ModelTurn is one scripted model response.
type ModelTurn struct {
	Text  string
	Calls []core.FunctionCall
	Err   error
}

// TextTurn returns a plain text turn.
func TextTurn(text string) ModelTurn { return ModelTurn{Text: text} }

// CallTurn returns a turn requesting one function call.
func CallTurn(id, name, args string) ModelTurn {
	return ModelTurn{Calls: []core.FunctionCall{{ID: id, Name: name, Arguments: args}}}
}

// ErrTurn returns a failing turn.
func ErrTurn(err error) ModelTurn { return ModelTurn{Err: err} }

// ScriptedModel is a model.Model replaying turns in order; the last turn
// repeats once the script is exhausted. Requests are recorded.
type ScriptedModel struct {
	info model.Info

	mu       sync.Mutex
	turns    []ModelTurn
	requests []model.Request
}

var _ model.Model = (*ScriptedModel)(nil)

// NewScriptedModel creates a scripted model.
func NewScriptedModel(name string, turns ...ModelTurn) *ScriptedModel {
	return &ScriptedModel{
		info:  model.Info{Name: name, Provider: "scripted", SupportsTools: true},
		turns: turns,
	}
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var turn ModelTurn
	if len(m.turns) > 0 {
		turn = m.turns[0]
		if len(m.turns) > 1 {
			m.turns = m.turns[1:]
		}
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}
		if turn.Err != nil {
			errCh <- turn.Err
			return
		}

		var parts []core.Part
		if turn.Text != "" {
			parts = append(parts, core.TextPart{Text: turn.Text})
		}
		for _, c := range turn.Calls {
			parts = append(parts, core.FunctionCallPart{FunctionCall: c})
		}

		finish := "stop"
		if len(turn.Calls) > 0 {
			finish = "tool_calls"
		}

		respCh <- model.Response{
			Content:      core.Content{Role: "assistant", Parts: parts},
			FinishReason: finish,
		}
	}()

	return respCh, errCh
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info { return m.info }

// Requests returns a copy of the recorded requests.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.requests...)
}
