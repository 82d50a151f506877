package session

import (
	"sort"
	"sync"

	"github.com/hupe1980/meshbot/core"
)

// InMemoryStore is a volatile SessionStore keeping sessions in a process local
// map. It is safe for concurrent access. Sessions are never evicted: history
// grows for the lifetime of the process.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[core.ConversationKey]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[core.ConversationKey]*core.Session)}
}

// GetOrCreate returns the session registered for key, creating and
// registering an empty one on first use. Creation is double-checked under the
// write lock so concurrent first messages on one key share a single session.
func (s *InMemoryStore) GetOrCreate(key core.ConversationKey) *core.Session {
	s.mu.RLock()
	sess, ok := s.sessions[key]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[key]; ok {
		return sess
	}
	sess = core.NewSession(key)
	s.sessions[key] = sess

	return sess
}

// Lookup returns the session for key without creating one.
func (s *InMemoryStore) Lookup(key core.ConversationKey) (*core.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[key]

	return sess, ok
}

// Len returns the number of registered sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// Keys returns the registered keys sorted by their string form.
func (s *InMemoryStore) Keys() []core.ConversationKey {
	s.mu.RLock()
	keys := make([]core.ConversationKey, 0, len(s.sessions))
	for k := range s.sessions {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	return keys
}
