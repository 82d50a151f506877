package testutil

import (
	"github.com/hupe1980/meshbot/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder(key).User("hi").Assistant("hello").Build()
type SessionBuilder struct {
	key   core.ConversationKey
	turns []core.Turn
}

// NewSessionBuilder creates a new builder for a session with the given key.
func NewSessionBuilder(key core.ConversationKey) *SessionBuilder {
	return &SessionBuilder{key: key}
}

// User appends a user turn (chainable).
func (b *SessionBuilder) User(text string) *SessionBuilder {
	b.turns = append(b.turns, core.NewTurn(core.RoleUser, text))
	return b
}

// Assistant appends an assistant turn (chainable).
func (b *SessionBuilder) Assistant(text string) *SessionBuilder {
	b.turns = append(b.turns, core.NewTurn(core.RoleAssistant, text))
	return b
}

// Build returns a *core.Session with the configured history.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.key)
	for _, t := range b.turns {
		s.Append(t.Role, t.Text)
	}
	return s
}

// Turns returns the configured history without building a session.
func (b *SessionBuilder) Turns() []core.Turn {
	return append([]core.Turn(nil), b.turns...)
}
