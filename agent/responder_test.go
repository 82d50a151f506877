package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/dispatch"
	"github.com/hupe1980/meshbot/internal/testutil"
	"github.com/hupe1980/meshbot/model"
	"github.com/hupe1980/meshbot/roster"
	"github.com/hupe1980/meshbot/session"
	"github.com/hupe1980/meshbot/tool"
)

var key = core.NewConversationKey("blog_assistant_app", "tg_chat_5", "tg_chat_5_main")

func history(text string) []core.Turn {
	return testutil.NewSessionBuilder(key).User(text).Turns()
}

func TestResponder_TextAnswerAndInstruction(t *testing.T) {
	m := testutil.NewScriptedModel("llama", testutil.TextTurn("Hello!"))
	r, err := NewResponder(ModelFactoryFunc(func(roster.Descriptor) (model.Model, error) { return m, nil }),
		func(o *ResponderOptions) { o.Vars = map[string]any{"owner": "imvickykumar999"} })
	require.NoError(t, err)

	reply, err := r.Respond(context.Background(), roster.Descriptor{Name: "llama"}, key, history("hi"))
	require.NoError(t, err)
	assert.Equal(t, dispatch.Reply{Text: "Hello!"}, reply)

	req := m.Requests()[0]
	assert.Contains(t, req.Instructions, "blog assistant of imvickykumar999")
	assert.Contains(t, req.Instructions, "use the available tool(s)")
}

func TestResponder_DefaultOwner(t *testing.T) {
	m := testutil.NewScriptedModel("llama", testutil.TextTurn("ok"))
	r, err := NewResponder(ModelFactoryFunc(func(roster.Descriptor) (model.Model, error) { return m, nil }))
	require.NoError(t, err)

	_, err = r.Respond(context.Background(), roster.Descriptor{Name: "llama"}, key, history("hi"))
	require.NoError(t, err)
	assert.Contains(t, m.Requests()[0].Instructions, "blog assistant of the site owner")
}

func TestResponder_CachesModelsPerDescriptor(t *testing.T) {
	var built atomic.Int32
	factory := ModelFactoryFunc(func(d roster.Descriptor) (model.Model, error) {
		built.Add(1)
		return testutil.NewScriptedModel(d.Name, testutil.TextTurn(d.Name)), nil
	})

	r, err := NewResponder(factory)
	require.NoError(t, err)

	a := roster.Descriptor{Name: "a", Provider: "groq"}
	b := roster.Descriptor{Name: "b", Provider: "groq"}

	for i := 0; i < 3; i++ {
		reply, err := r.Respond(context.Background(), a, key, history("x"))
		require.NoError(t, err)
		assert.Equal(t, "a", reply.Text)
	}
	reply, err := r.Respond(context.Background(), b, key, history("x"))
	require.NoError(t, err)
	assert.Equal(t, "b", reply.Text)

	assert.Equal(t, int32(2), built.Load())
}

func TestResponder_FactoryErrorIsFatal(t *testing.T) {
	r, err := NewResponder(ModelFactoryFunc(func(roster.Descriptor) (model.Model, error) {
		return nil, errors.New("unknown provider \"nope\"")
	}))
	require.NoError(t, err)

	_, err = r.Respond(context.Background(), roster.Descriptor{Name: "x", Provider: "nope"}, key, history("x"))
	assert.Equal(t, dispatch.ClassFatal, dispatch.Classify(err))
}

func TestResponder_ModelErrorKeepsKind(t *testing.T) {
	m := testutil.NewScriptedModel("llama", testutil.ErrTurn(model.NewError("groq", "llama", 503, errors.New("down"))))
	r, err := NewResponder(ModelFactoryFunc(func(roster.Descriptor) (model.Model, error) { return m, nil }))
	require.NoError(t, err)

	_, err = r.Respond(context.Background(), roster.Descriptor{Name: "llama"}, key, history("x"))

	var me *model.Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, dispatch.ClassTransient, dispatch.Classify(err))
}

func TestResponder_EscalationAndDuplicateTools(t *testing.T) {
	m := testutil.NewScriptedModel("llama", testutil.CallTurn("c1", tool.EscalateToolName, `{"reason":"ask the owner"}`))
	r, err := NewResponder(ModelFactoryFunc(func(roster.Descriptor) (model.Model, error) { return m, nil }),
		func(o *ResponderOptions) { o.Tools = []tool.Tool{tool.NewEscalateTool()} })
	require.NoError(t, err)

	assert.Error(t, r.RegisterTool(tool.NewEscalateTool()))
	assert.Equal(t, []string{tool.EscalateToolName}, r.Tools())

	reply, err := r.Respond(context.Background(), roster.Descriptor{Name: "llama"}, key, history("x"))
	require.NoError(t, err)
	assert.True(t, reply.Escalated)
	assert.Equal(t, "ask the owner", reply.EscalationMessage)
}

func TestResponder_WithOrchestratorFallsBack(t *testing.T) {
	primary := testutil.NewScriptedModel("llama-3.3-70b-versatile",
		testutil.ErrTurn(model.NewError("groq", "llama-3.3-70b-versatile", 429, errors.New("rate limited"))))
	fallback := testutil.NewScriptedModel("llama3-8b-8192", testutil.TextTurn("from fallback"))

	r, err := NewResponder(ModelFactoryFunc(func(d roster.Descriptor) (model.Model, error) {
		if d.Name == primary.Info().Name {
			return primary, nil
		}
		return fallback, nil
	}))
	require.NoError(t, err)

	ros := roster.MustNew(roster.Descriptor{Name: "llama-3.3-70b-versatile"}, roster.Descriptor{Name: "llama3-8b-8192"})
	o := dispatch.NewOrchestrator(session.NewInMemoryStore(), ros, r, func(o *dispatch.Options) {
		o.Backoff = &dispatch.Backoff{Unit: 0}
	})

	res := o.Run(context.Background(), key, "hello")
	assert.Equal(t, "from fallback", res.Text)
	assert.Equal(t, []string{"llama-3.3-70b-versatile", "llama3-8b-8192"}, res.Used)
}
