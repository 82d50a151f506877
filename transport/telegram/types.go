package telegram

import (
	"fmt"
	"strconv"

	"github.com/hupe1980/meshbot/core"
)

// Update is an incoming update. Only messages are handled.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is a Telegram message. Text is a pointer so an absent text field
// can be told apart from an empty one.
type Message struct {
	MessageID       int64    `json:"message_id"`
	MessageThreadID int64    `json:"message_thread_id,omitempty"`
	Chat            *Chat    `json:"chat,omitempty"`
	From            *User    `json:"from,omitempty"`
	Text            *string  `json:"text,omitempty"`
	Voice           *Voice   `json:"voice,omitempty"`
	Sticker         *Sticker `json:"sticker,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// User is a message sender.
type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot,omitempty"`
	Username string `json:"username,omitempty"`
}

// Voice is a voice note (OGG/Opus).
type Voice struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id,omitempty"`
	Duration     int    `json:"duration,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// Sticker carries the emoji associated with it, if any.
type Sticker struct {
	FileID string `json:"file_id"`
	Emoji  string `json:"emoji,omitempty"`
}

// File is the result of getFile.
type File struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
}

// ChatUser returns the per-chat user id "tg_chat_<chat>".
func ChatUser(chatID int64) string {
	return "tg_chat_" + strconv.FormatInt(chatID, 10)
}

// ChatTopic returns the topic id "tg_chat_<chat>_<thread|main>".
func ChatTopic(chatID, threadID int64) string {
	if threadID == 0 {
		return fmt.Sprintf("tg_chat_%d_%s", chatID, core.MainTopic)
	}
	return fmt.Sprintf("tg_chat_%d_%d", chatID, threadID)
}

// KeyFor derives the conversation key of a message.
func KeyFor(app string, m *Message) core.ConversationKey {
	chatID := m.Chat.ID
	return core.NewConversationKey(app, ChatUser(chatID), ChatTopic(chatID, m.MessageThreadID))
}
