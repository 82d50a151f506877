// Package transcribe turns voice notes into text.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/hupe1980/meshbot/logging"
	modelopenai "github.com/hupe1980/meshbot/model/openai"
)

// DefaultModel is the Whisper model served by Groq.
const DefaultModel = "whisper-large-v3"

// ErrEmptyAudio is returned when there is nothing to transcribe.
var ErrEmptyAudio = errors.New("transcribe: empty audio")

// Transcriber converts audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
}

// WhisperOptions configure a Whisper transcriber.
type WhisperOptions struct {
	Model    string
	Language string
	// ContentType of the uploaded audio; Telegram voice notes are OGG/Opus.
	ContentType string
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	Logger      logging.Logger
}

// Whisper transcribes through the OpenAI-compatible audio API.
type Whisper struct {
	client *openai.Client
	opts   WhisperOptions
}

var _ Transcriber = (*Whisper)(nil)

// NewWhisper creates a transcriber; with no BaseURL the SDK default applies.
func NewWhisper(optFns ...func(o *WhisperOptions)) *Whisper {
	opts := WhisperOptions{
		Model:       DefaultModel,
		ContentType: "audio/ogg",
		Timeout:     60 * time.Second,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	client := openai.NewClient(modelopenai.ClientOptions(modelopenai.Options{
		BaseURL: opts.BaseURL,
		APIKey:  opts.APIKey,
		Timeout: opts.Timeout,
	})...)

	return &Whisper{client: &client, opts: opts}
}

// Transcribe uploads audio and returns the trimmed transcript.
func (w *Whisper) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}
	if filename == "" {
		filename = "voice.ogg"
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), filename, w.opts.ContentType),
		Model: openai.AudioModel(w.opts.Model),
	}
	if w.opts.Language != "" {
		params.Language = openai.String(w.opts.Language)
	}

	start := time.Now()
	res, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		w.opts.Logger.Warn("transcribe.failed", "model", w.opts.Model, "bytes", len(audio), "error", err)
		return "", modelopenai.WrapError("whisper", w.opts.Model, err)
	}

	text := strings.TrimSpace(res.Text)
	w.opts.Logger.Debug("transcribe.done", "model", w.opts.Model, "bytes", len(audio),
		"chars", len(text), "duration_ms", time.Since(start).Milliseconds())

	return text, nil
}

// Func adapts a function to Transcriber.
type Func func(ctx context.Context, filename string, audio []byte) (string, error)

// Transcribe implements Transcriber.
func (f Func) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	return f(ctx, filename, audio)
}
