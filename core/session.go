package core

import (
	"context"
	"sync"
	"time"
)

// Session owns the ordered turn history of one ConversationKey. It is safe for
// concurrent access.
//
// Contract:
//   - Append is atomic; turns from different callers never interleave mid-turn
//   - Turns returns a defensive copy to avoid external mutation
//   - Acquire serializes whole dispatches on the same key; it is the only
//     blocking operation and honors context cancellation
type Session struct {
	Key     ConversationKey `json:"key"`
	Created time.Time       `json:"created"`

	mu      sync.RWMutex
	turns   []Turn
	updated time.Time
	gate    chan struct{}
}

// NewSession creates an empty session bound to key.
func NewSession(key ConversationKey) *Session {
	now := time.Now()
	return &Session{
		Key:     key,
		Created: now,
		turns:   []Turn{},
		updated: now,
		gate:    make(chan struct{}, 1),
	}
}

// Append adds a new turn to the end of the history and returns it.
func (s *Session) Append(role Role, text string) Turn {
	t := NewTurn(role, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
	s.updated = time.Now()

	return t
}

// Turns returns a copy of the full history in append order.
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)

	return turns
}

// Len returns the number of turns recorded so far.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.turns)
}

// Updated returns the time of the last append (or creation).
func (s *Session) Updated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.updated
}

// Acquire takes the session's dispatch lock, blocking until it is free or ctx
// is done. The returned release func is idempotent.
func (s *Session) Acquire(ctx context.Context) (func(), error) {
	select {
	case s.gate <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once

	return func() { once.Do(func() { <-s.gate }) }, nil
}

// SessionStore maps conversation keys to sessions. Implementations must make
// GetOrCreate atomic: concurrent calls with one key observe a single session.
// Persistent backends plug in behind this interface.
type SessionStore interface {
	GetOrCreate(key ConversationKey) *Session
}
