// Package logging provides a minimal logging interface and adapters for meshbot.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// that the orchestrator, responders and transports use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - BotLogger, a slog-backed logger with contextual helpers
//   - NoOpLogger for silent operation (tests, minimal setups)
//
// Usage:
//
//	logger := logging.NewBotLogger(&logging.Config{Level: logging.LevelInfo, Format: "json"})
//	bot := meshbot.New(roster, responder, func(o *meshbot.Options) { o.Logger = logger })
package logging
