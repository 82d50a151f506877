package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/meshbot/dispatch"
	"github.com/hupe1980/meshbot/logging"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// MaxMessageLength is the Bot API limit for one text message, in characters.
const MaxMessageLength = 4096

// APIError is a Bot API failure.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram %s: http %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("telegram %s: http %d: %s", e.Method, e.StatusCode, e.Description)
}

// Temporary reports whether retrying may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ErrFileTooLarge is returned when a download exceeds MaxDownloadBytes.
var ErrFileTooLarge = errors.New("telegram: file too large")

// ClientOptions configure a Client.
type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	// SendAttempts is the number of sendMessage tries (default 3).
	SendAttempts int
	// RetryWait returns the pause after failed try i (0-based); default
	// 2*(i+1) seconds.
	RetryWait func(i int) time.Duration
	// MaxDownloadBytes caps file downloads (default 20 MiB, the Bot API limit).
	MaxDownloadBytes int64
	Logger           logging.Logger
}

// Client calls the Bot API with a bot token.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	opts    ClientOptions
}

// NewClient creates a client for token.
func NewClient(token string, optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		BaseURL:          DefaultBaseURL,
		SendAttempts:     3,
		RetryWait:        func(i int) time.Duration { return time.Duration(2*(i+1)) * time.Second },
		MaxDownloadBytes: 20 << 20,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.SendAttempts <= 0 {
		opts.SendAttempts = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   token,
		opts:    opts,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// call POSTs payload as JSON and decodes the result into out (if non-nil).
func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The URL carries the token; keep it out of error strings.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}

	var ar apiResponse
	_ = json.Unmarshal(raw, &ar)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !ar.OK {
		return &APIError{Method: method, StatusCode: resp.StatusCode, Description: ar.Description}
	}

	if out != nil && len(ar.Result) > 0 {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

type sendMessageRequest struct {
	ChatID          int64  `json:"chat_id"`
	MessageThreadID int64  `json:"message_thread_id,omitempty"`
	Text            string `json:"text"`
}

// SendMessage sends text as plain text to a chat (and forum topic, when
// threadID is non-zero). Texts over MaxMessageLength are split.
func (c *Client) SendMessage(ctx context.Context, chatID, threadID int64, text string) error {
	for _, chunk := range SplitMessage(text, MaxMessageLength) {
		req := sendMessageRequest{ChatID: chatID, MessageThreadID: threadID, Text: chunk}
		if err := c.sendWithRetry(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sendWithRetry(ctx context.Context, req sendMessageRequest) error {
	var err error
	for i := 0; i < c.opts.SendAttempts; i++ {
		err = c.call(ctx, "sendMessage", req, nil)
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return err
		}
		if i == c.opts.SendAttempts-1 {
			break
		}

		c.opts.Logger.Warn("telegram.send.retry", "chat_id", req.ChatID, "attempt", i+1, "error", err)
		if werr := dispatch.Wait(ctx, c.opts.RetryWait(i)); werr != nil {
			return werr
		}
	}

	c.opts.Logger.Error("telegram.send.failed", "chat_id", req.ChatID, "attempts", c.opts.SendAttempts, "error", err)
	return err
}

// SplitMessage splits text into chunks of at most limit characters,
// preferring to cut after a line break.
func SplitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// GetFile resolves a file id to a downloadable path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, errors.New("telegram getFile: missing file_id")
	}

	var f File
	if err := c.call(ctx, "getFile", map[string]string{"file_id": fileID}, &f); err != nil {
		return nil, err
	}
	if strings.TrimSpace(f.FilePath) == "" {
		return nil, errors.New("telegram getFile: missing file_path")
	}
	return &f, nil
}

// Download fetches a file returned by GetFile, up to MaxDownloadBytes.
func (c *Client) Download(ctx context.Context, filePath string) ([]byte, error) {
	u := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, strings.TrimLeft(filePath, "/"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, fmt.Errorf("telegram download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Method: "download", StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("telegram download: %w", err)
	}
	if int64(len(data)) > c.opts.MaxDownloadBytes {
		return nil, fmt.Errorf("%w (>%d bytes)", ErrFileTooLarge, c.opts.MaxDownloadBytes)
	}
	return data, nil
}

// WebhookConfig is the setWebhook payload.
type WebhookConfig struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// SetWebhook registers the webhook URL with Telegram.
func (c *Client) SetWebhook(ctx context.Context, cfg WebhookConfig) error {
	return c.call(ctx, "setWebhook", cfg, nil)
}
