package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/meshbot/logging"
	"github.com/hupe1980/meshbot/runner"
	"github.com/hupe1980/meshbot/transcribe"
)

// SecretHeader carries the secret token Telegram echoes on every webhook call.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// DefaultWebhookPath is where updates are posted.
const DefaultWebhookPath = "/webhook"

// Replies sent when a voice note cannot be handled.
const (
	ReplyAudioUnavailable = "Sorry, could not retrieve the audio file."
	ReplyVoiceFailed      = "Sorry, I couldn't process that voice note."
	ReplyTranscribeFailed = "Sorry, I'm having trouble transcribing your audio."
)

const (
	statusOK           = "ok"
	statusIgnore       = "ignored"
	maxUpdateBodyBytes = 1 << 20
)

// Submitter accepts runner units. *runner.Runner satisfies it.
type Submitter interface {
	Submit(in runner.Inbound) (string, error)
}

// API is the subset of Client used by the webhook.
type API interface {
	SendMessage(ctx context.Context, chatID, threadID int64, text string) error
	GetFile(ctx context.Context, fileID string) (*File, error)
	Download(ctx context.Context, filePath string) ([]byte, error)
	SetWebhook(ctx context.Context, cfg WebhookConfig) error
}

// WebhookOptions configure a Webhook.
type WebhookOptions struct {
	// AppName is the application part of every conversation key.
	AppName string
	// Secret must match SecretHeader on every request when non-empty.
	Secret string
	// Path of the update endpoint (default /webhook).
	Path string
	// PublicBaseURL is used by the install endpoint to build the webhook URL.
	PublicBaseURL string
	// Transcriber handles voice notes; without one they are ignored.
	Transcriber transcribe.Transcriber
	Logger      logging.Logger
}

// Webhook receives updates and schedules them on the runner.
type Webhook struct {
	api    API
	runner Submitter
	opts   WebhookOptions
}

// NewWebhook creates a webhook handler.
func NewWebhook(api API, r Submitter, optFns ...func(o *WebhookOptions)) *Webhook {
	opts := WebhookOptions{
		AppName: "blog_assistant_app",
		Path:    DefaultWebhookPath,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Path == "" {
		opts.Path = DefaultWebhookPath
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Webhook{api: api, runner: r, opts: opts}
}

// RegisterRoutes mounts the update endpoint and GET /install_webhook.
func (w *Webhook) RegisterRoutes(r gin.IRouter) {
	r.POST(w.opts.Path, w.handleUpdate)
	r.GET("/install_webhook", w.handleInstall)
}

// WebhookURL is the URL registered with Telegram.
func (w *Webhook) WebhookURL() string {
	return strings.TrimRight(w.opts.PublicBaseURL, "/") + w.opts.Path
}

// Install registers the webhook with Telegram, restricted to messages.
func (w *Webhook) Install(ctx context.Context) error {
	if w.opts.PublicBaseURL == "" {
		return fmt.Errorf("telegram: public base url is not configured")
	}
	return w.api.SetWebhook(ctx, WebhookConfig{
		URL:            w.WebhookURL(),
		SecretToken:    w.opts.Secret,
		AllowedUpdates: []string{"message"},
	})
}

func (w *Webhook) handleInstall(c *gin.Context) {
	if err := w.Install(c.Request.Context()); err != nil {
		w.opts.Logger.Error("telegram.webhook.install_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "url": w.WebhookURL()})
}

func (w *Webhook) handleUpdate(c *gin.Context) {
	if w.opts.Secret != "" {
		got := c.GetHeader(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(w.opts.Secret)) != 1 {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
	}

	var upd Update
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUpdateBodyBytes))
	if err != nil || json.Unmarshal(body, &upd) != nil {
		c.JSON(http.StatusOK, gin.H{"status": statusIgnore})
		return
	}

	in, ok := w.inbound(upd.Message)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": statusIgnore})
		return
	}

	runID, err := w.runner.Submit(in)
	if err != nil {
		w.opts.Logger.Warn("telegram.webhook.rejected", "conversation", in.Key.String(), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}

	w.opts.Logger.Debug("telegram.webhook.accepted", "update_id", upd.UpdateID, "run_id", runID,
		"conversation", in.Key.String())
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// inbound maps a message to a runner unit; false means ignore it.
func (w *Webhook) inbound(m *Message) (runner.Inbound, bool) {
	if m == nil || m.Chat == nil || m.Chat.ID == 0 {
		return runner.Inbound{}, false
	}

	chatID, threadID := m.Chat.ID, m.MessageThreadID
	in := runner.Inbound{
		Key: KeyFor(w.opts.AppName, m),
		Deliver: func(ctx context.Context, reply string) error {
			return w.api.SendMessage(ctx, chatID, threadID, reply)
		},
	}

	switch {
	case m.Text != nil:
		in.Text = strings.TrimSpace(*m.Text)
		return in, true
	case m.Voice != nil:
		if w.opts.Transcriber == nil {
			return runner.Inbound{}, false
		}
		fileID := m.Voice.FileID
		in.Prepare = func(ctx context.Context) (string, error) { return w.transcribeVoice(ctx, fileID) }
		return in, true
	case m.Sticker != nil && m.Sticker.Emoji != "":
		in.Text = m.Sticker.Emoji
		return in, true
	default:
		return runner.Inbound{}, false
	}
}

func (w *Webhook) transcribeVoice(ctx context.Context, fileID string) (string, error) {
	f, err := w.api.GetFile(ctx, fileID)
	if err != nil {
		return "", &runner.ReplyError{Reply: ReplyAudioUnavailable, Err: err}
	}

	audio, err := w.api.Download(ctx, f.FilePath)
	if err != nil {
		return "", &runner.ReplyError{Reply: ReplyVoiceFailed, Err: err}
	}

	text, err := w.opts.Transcriber.Transcribe(ctx, "voice.ogg", audio)
	if err != nil {
		return "", &runner.ReplyError{Reply: ReplyTranscribeFailed, Err: err}
	}
	return text, nil
}
