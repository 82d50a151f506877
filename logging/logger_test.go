package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Logger = (*BotLogger)(nil)
	_ Logger = (*SlogAdapter)(nil)
	_ Logger = NoOpLogger{}
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestBotLogger_ContextualAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := NewBotLogger(&Config{Level: LevelDebug, Format: "json", Output: &buf}).
		WithComponent("dispatch").
		WithConversation("app/u/main")

	l.Info("dispatch.attempt.failed", "attempt", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "dispatch.attempt.failed", entry["msg"])
	assert.Equal(t, "dispatch", entry["component"])
	assert.Equal(t, "app/u/main", entry["conversation"])
	assert.EqualValues(t, 2, entry["attempt"])
}

func TestBotLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewBotLogger(&Config{Level: LevelWarn, Output: &buf})

	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}
