// Package telegram connects the bot to the Telegram Bot API: a small HTTP
// client for the few methods the bot needs (sendMessage, getFile, file
// download, setWebhook), the update types, and a gin webhook that turns
// updates into runner units.
//
// Memory belongs to the chat, not to the sender: every member of a group
// shares one conversation, and forum topics are kept apart (see KeyFor).
package telegram
