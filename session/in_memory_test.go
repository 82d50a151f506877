package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshbot/core"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_GetOrCreateIsStable(t *testing.T) {
	store := NewInMemoryStore()
	key := core.NewConversationKey("app", "tg_chat_1", "")

	first := store.GetOrCreate(key)
	first.Append(core.RoleUser, "hi")

	second := store.GetOrCreate(key)
	assert.Same(t, first, second)
	assert.Equal(t, 1, second.Len())
	assert.Equal(t, 1, store.Len())
}

func TestInMemoryStore_ConcurrentFirstUseSharesSession(t *testing.T) {
	store := NewInMemoryStore()
	key := core.NewConversationKey("app", "tg_chat_1", "")

	const n = 64
	got := make([]*core.Session, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = store.GetOrCreate(key)
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.Same(t, got[0], got[i])
	}
	assert.Equal(t, 1, store.Len())
}

func TestInMemoryStore_KeysAreIsolated(t *testing.T) {
	store := NewInMemoryStore()
	a := core.NewConversationKey("app", "tg_chat_1", "")
	b := core.NewConversationKey("app", "tg_chat_1", "tg_chat_1_7")

	store.GetOrCreate(a).Append(core.RoleUser, "from a")
	assert.Zero(t, store.GetOrCreate(b).Len())

	_, ok := store.Lookup(core.NewConversationKey("app", "nobody", ""))
	assert.False(t, ok)
	assert.Equal(t, []core.ConversationKey{a, b}, store.Keys())
}
