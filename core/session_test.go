package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AppendAndTurns(t *testing.T) {
	s := NewSession(NewConversationKey("app", "u1", ""))

	s.Append(RoleUser, "hi")
	s.Append(RoleAssistant, "hello")

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "hello", turns[1].Text)

	turns[0].Text = "changed"
	if s.Turns()[0].Text != "hi" {
		t.Error("turns slice should be copied on read")
	}
	assert.Equal(t, 2, s.Len())
}

func TestSession_ConcurrentAppendKeepsEveryTurn(t *testing.T) {
	s := NewSession(NewConversationKey("app", "u1", ""))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(RoleUser, "x")
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}

func TestSession_AcquireSerializes(t *testing.T) {
	s := NewSession(NewConversationKey("app", "u1", ""))

	release, err := s.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = s.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // idempotent

	release2, err := s.Acquire(context.Background())
	require.NoError(t, err)
	release2()
}
