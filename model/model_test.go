package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshbot/core"
)

var _ Model = (*MockModel)(nil)

func TestKindForStatus(t *testing.T) {
	cases := map[int]FailureKind{
		0:   KindUnknown,
		200: KindUnknown,
		400: KindFatal,
		401: KindFatal,
		404: KindFatal,
		408: KindTransient,
		429: KindRateLimited,
		500: KindTransient,
		502: KindTransient,
		503: KindTransient,
		504: KindTransient,
		529: KindTransient,
	}
	for status, want := range cases {
		assert.Equal(t, want, KindForStatus(status), "status %d", status)
	}
}

func TestError_UnwrapAndMessage(t *testing.T) {
	cause := errors.New("boom")
	err := NewError("groq", "llama", 503, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindTransient, err.Kind)
	assert.Contains(t, err.Error(), "http 503")

	var me *Error
	require.True(t, errors.As(error(err), &me))
}

func TestCollect_MockModel(t *testing.T) {
	m := NewMockModel("mock-1", "mock")
	m.AddResponse("hi", "hello there")

	req := Request{
		Stream:   true,
		Contents: []core.Content{{Role: "user", Parts: []core.Part{core.TextPart{Text: "hi"}}}},
	}

	resp, err := Collect(context.Background(), m, req)
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content.Text())
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestCollect_PropagatesError(t *testing.T) {
	m := NewMockModel("mock-1", "mock")

	_, err := Collect(context.Background(), m, Request{})

	var me *Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, KindFatal, me.Kind)
}
