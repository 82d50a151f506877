package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshbot/core"
)

var key = core.NewConversationKey("blog_assistant_app", "tg_chat_1", "tg_chat_1_main")

type dispatcherFunc func(ctx context.Context, key core.ConversationKey, text string) string

func (f dispatcherFunc) Dispatch(ctx context.Context, key core.ConversationKey, text string) string {
	return f(ctx, key, text)
}

func echo() Dispatcher {
	return dispatcherFunc(func(_ context.Context, _ core.ConversationKey, text string) string {
		return "re: " + text
	})
}

type sink struct {
	mu      sync.Mutex
	replies []string
	done    chan struct{}
}

func newSink(n int) *sink { return &sink{done: make(chan struct{}, n)} }

func (s *sink) deliver(_ context.Context, reply string) error {
	s.mu.Lock()
	s.replies = append(s.replies, reply)
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func (s *sink) wait(t *testing.T, n int) []string {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d", i+1)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.replies...)
}

func TestRunner_SubmitDelivers(t *testing.T) {
	r := New(echo())
	s := newSink(1)

	runID, err := r.Submit(Inbound{Key: key, Text: " hello ", Deliver: s.deliver})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	assert.Equal(t, []string{"re: hello"}, s.wait(t, 1))
	require.NoError(t, r.Shutdown(context.Background()))
}

func TestRunner_Prepare(t *testing.T) {
	r := New(echo())

	reply, err := r.Run(context.Background(), Inbound{
		Key:     key,
		Prepare: func(context.Context) (string, error) { return "transcribed", nil },
	})
	require.NoError(t, err)
	assert.Equal(t, "re: transcribed", reply)

	reply, err = r.Run(context.Background(), Inbound{
		Key: key,
		Prepare: func(context.Context) (string, error) {
			return "", &ReplyError{Reply: "Sorry, could not retrieve the audio file.", Err: errors.New("ok=false")}
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sorry, could not retrieve the audio file.", reply)

	reply, err = r.Run(context.Background(), Inbound{
		Key:     key,
		Prepare: func(context.Context) (string, error) { return "", errors.New("boom") },
	})
	require.NoError(t, err)
	assert.Equal(t, GenericApology, reply)
}

func TestRunner_EmptyTextIsDropped(t *testing.T) {
	var calls atomic.Int32
	r := New(dispatcherFunc(func(context.Context, core.ConversationKey, string) string {
		calls.Add(1)
		return "x"
	}))

	reply, err := r.Run(context.Background(), Inbound{Key: key, Text: "   "})
	require.NoError(t, err)
	assert.Empty(t, reply)
	assert.Zero(t, calls.Load())
}

func TestRunner_BoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	release := make(chan struct{})

	r := New(dispatcherFunc(func(context.Context, core.ConversationKey, string) string {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return "ok"
	}), func(o *Options) { o.MaxConcurrent = 2 })

	s := newSink(5)
	for i := 0; i < 5; i++ {
		_, err := r.Submit(Inbound{Key: key, Text: "x", Deliver: s.deliver})
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)

	assert.Len(t, s.wait(t, 5), 5)
	assert.Equal(t, int32(2), peak.Load())
}

func TestRunner_Cancel(t *testing.T) {
	started := make(chan struct{})
	r := New(dispatcherFunc(func(ctx context.Context, _ core.ConversationKey, _ string) string {
		close(started)
		<-ctx.Done()
		return "unavailable"
	}))

	var delivered atomic.Bool
	runID, err := r.Submit(Inbound{Key: key, Text: "x", Deliver: func(context.Context, string) error {
		delivered.Store(true)
		return nil
	}})
	require.NoError(t, err)

	<-started
	require.NoError(t, r.Cancel(runID))
	require.NoError(t, r.Shutdown(context.Background()))

	assert.False(t, delivered.Load())
	assert.Error(t, r.Cancel("unknown"))
}

func TestRunner_Shutdown(t *testing.T) {
	release := make(chan struct{})
	r := New(dispatcherFunc(func(ctx context.Context, _ core.ConversationKey, _ string) string {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return "ok"
	}))

	_, err := r.Submit(Inbound{Key: key, Text: "x"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Shutdown(ctx), context.DeadlineExceeded)
	assert.Zero(t, r.Active())

	_, err = r.Submit(Inbound{Key: key, Text: "x"})
	assert.ErrorIs(t, err, ErrShuttingDown)
	_, err = r.Run(context.Background(), Inbound{Key: key, Text: "x"})
	assert.ErrorIs(t, err, ErrShuttingDown)
	close(release)
}

func TestRunner_DeliverErrorAndPanic(t *testing.T) {
	r := New(echo())
	_, err := r.Run(context.Background(), Inbound{Key: key, Text: "x", Deliver: func(context.Context, string) error {
		return errors.New("telegram down")
	}})
	assert.ErrorContains(t, err, "telegram down")

	r = New(dispatcherFunc(func(context.Context, core.ConversationKey, string) string { panic("bad") }))
	_, err = r.Run(context.Background(), Inbound{Key: key, Text: "x"})
	assert.ErrorContains(t, err, "panic")
	assert.Zero(t, r.Active())
}
