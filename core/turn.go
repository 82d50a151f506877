package core

import (
	"time"

	"github.com/google/uuid"
)

// Role tags the author of a turn.
type Role string

const (
	// RoleUser marks inbound user text.
	RoleUser Role = "user"
	// RoleAssistant marks a reply produced by a responder.
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message in a session's history. Turns are values;
// once appended to a session they are never modified.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn creates a turn with a fresh id and a UTC timestamp.
func NewTurn(role Role, text string) Turn {
	return Turn{
		ID:        NewID(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// Content converts the turn into model input content.
func (t Turn) Content() Content {
	return Content{Role: string(t.Role), Parts: []Part{TextPart{Text: t.Text}}}
}

// NewID generates a new unique identifier (UUID v4 string) used for turns and
// dispatch runs.
func NewID() string { return uuid.NewString() }
