package core

import (
	"fmt"
	"strings"
)

// MainTopic is the topic sentinel used when an inbound event carries no topic
// (for example a Telegram chat without forum threads).
const MainTopic = "main"

// ConversationKey identifies one independent memory stream. Two inbound events
// with equal keys share history; different keys never do.
type ConversationKey struct {
	App   string `json:"app"`
	User  string `json:"user"`
	Topic string `json:"topic"`
}

// NewConversationKey builds a key, substituting MainTopic for an empty topic.
func NewConversationKey(app, user, topic string) ConversationKey {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = MainTopic
	}

	return ConversationKey{
		App:   strings.TrimSpace(app),
		User:  strings.TrimSpace(user),
		Topic: topic,
	}
}

// ParseConversationKey parses the "app/user/topic" form produced by String.
// A missing topic segment resolves to MainTopic.
func ParseConversationKey(s string) (ConversationKey, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ConversationKey{}, fmt.Errorf("invalid conversation key %q: want app/user[/topic]", s)
	}

	topic := ""
	if len(parts) == 3 {
		topic = parts[2]
	}

	return NewConversationKey(parts[0], parts[1], topic), nil
}

// String renders the key as "app/user/topic".
func (k ConversationKey) String() string {
	return k.App + "/" + k.User + "/" + k.Topic
}

// IsZero reports whether the key is the zero value.
func (k ConversationKey) IsZero() bool { return k == ConversationKey{} }
