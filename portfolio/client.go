package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/meshbot/logging"
)

// DefaultClientTimeout bounds a single API request.
const DefaultClientTimeout = 30 * time.Second

// StatusError is returned for non-2xx API responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s for url: %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// ClientOptions configure a Client.
type ClientOptions struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     logging.Logger
}

// Client reads the portfolio API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger
}

// NewClient creates a client for the API rooted at baseURL (the host, without
// the /api suffix).
func NewClient(baseURL string, optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		Timeout: DefaultClientTimeout,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  opts.Logger,
	}
}

// Fetch GETs /api/<path> and decodes the JSON body. An empty path fetches
// the overview.
func (c *Client) Fetch(ctx context.Context, path string) (any, error) {
	url := c.baseURL + "/api/" + strings.TrimLeft(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	var data any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}

	c.logger.Debug("portfolio.client.fetched", "url", url)

	return data, nil
}
