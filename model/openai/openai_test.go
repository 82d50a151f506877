package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/model"
)

var _ model.Model = (*Model)(nil)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewModel(func(o *Options) {
		o.Model = "llama-3.3-70b-versatile"
		o.Provider = "groq"
		o.BaseURL = srv.URL + "/"
		o.APIKey = "test-key"
		o.MaxCompletionTokens = 256
	})
}

func userRequest(text string) model.Request {
	return model.Request{
		Instructions: "be brief",
		Contents:     []core.Content{{Role: "user", Parts: []core.Part{core.TextPart{Text: text}}}},
	}
}

func TestGenerate_Success(t *testing.T) {
	var captured map[string]any

	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "hello"}}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4}
		}`)
	})

	resp, err := model.Collect(context.Background(), m, userRequest("hi"))
	require.NoError(t, err)

	assert.Equal(t, "hello", resp.Content.Text())
	assert.Equal(t, "stop", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 4, resp.Usage.TotalTokens)

	assert.Equal(t, "llama-3.3-70b-versatile", captured["model"])
	msgs, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestGenerate_ToolCalls(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-2",
			"object": "chat.completion",
			"created": 1,
			"model": "m",
			"choices": [{"index": 0, "finish_reason": "tool_calls",
				"message": {"role": "assistant", "content": "",
					"tool_calls": [{"id": "call_1", "type": "function",
						"function": {"name": "get_about", "arguments": "{}"}}]}}]
		}`)
	})

	resp, err := model.Collect(context.Background(), m, userRequest("who are you"))
	require.NoError(t, err)

	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_about", calls[0].Name)
	assert.Equal(t, "call_1", calls[0].ID)
}

func TestGenerate_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   model.FailureKind
	}{
		{"rate limited", http.StatusTooManyRequests, model.KindRateLimited},
		{"unavailable", http.StatusServiceUnavailable, model.KindTransient},
		{"bad request", http.StatusBadRequest, model.KindFatal},
		{"unauthorized", http.StatusUnauthorized, model.KindFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error": {"message": "nope", "type": "x"}}`)
			})

			_, err := model.Collect(context.Background(), m, userRequest("hi"))
			require.Error(t, err)

			var me *model.Error
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.want, me.Kind)
			assert.Equal(t, tt.status, me.StatusCode)
			assert.Equal(t, "groq", me.Provider)
			assert.Equal(t, int32(1), calls.Load(), "sdk retries must be disabled")
		})
	}
}

func TestWrapError_KeepsModelError(t *testing.T) {
	orig := model.NewError("groq", "m", 503, io.ErrUnexpectedEOF)
	assert.Same(t, orig, WrapError("openai", "x", orig))
	assert.NoError(t, WrapError("openai", "x", nil))

	wrapped := WrapError("openai", "x", io.ErrUnexpectedEOF)
	assert.ErrorIs(t, wrapped, io.ErrUnexpectedEOF)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.Model = "gemma2-9b-it"
		o.Provider = "groq"
		o.APIKey = "k"
	})

	info := m.Info()
	assert.Equal(t, "gemma2-9b-it", info.Name)
	assert.Equal(t, "groq", info.Provider)
	assert.True(t, info.SupportsTools)
}
