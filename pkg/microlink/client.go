// Package microlink captures full-page website screenshots through the
// Microlink API.
package microlink

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// minScreenshotBytes filters out error placeholders served as images.
const minScreenshotBytes = 5000

// ErrNoScreenshot means the service answered but returned no usable image.
var ErrNoScreenshot = eris.New("microlink: no screenshot")

// Client captures screenshots.
type Client interface {
	Screenshot(ctx context.Context, targetURL string) (*Screenshot, error)
}

// Screenshot is a captured image.
type Screenshot struct {
	MIMEType string
	Data     []byte
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithAPIKey sets the pro-plan key. The free tier needs none.
func WithAPIKey(key string) Option {
	return func(c *httpClient) { c.apiKey = key }
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a Microlink client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://api.microlink.io",
		http:    &http.Client{Timeout: 25 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Screenshot(ctx context.Context, targetURL string) (*Screenshot, error) {
	q := url.Values{}
	q.Set("url", targetURL)
	q.Set("screenshot", "true")
	q.Set("meta", "false")
	q.Set("embed", "screenshot.url")
	q.Set("fullPage", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "microlink: create request")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "microlink: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("microlink: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "microlink: read body")
	}

	mime := resp.Header.Get("Content-Type")
	if len(data) < minScreenshotBytes || !strings.HasPrefix(mime, "image/") {
		return nil, ErrNoScreenshot
	}
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return &Screenshot{MIMEType: mime, Data: data}, nil
}
