package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/config"
)

// LocalScraper fetches pages directly over HTTP and parses them in process.
type LocalScraper struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// NewLocalScraper creates a LocalScraper from scrape settings.
func NewLocalScraper(cfg config.ScrapeConfig) *LocalScraper {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxBody := int64(cfg.MaxBodyKB) * 1024
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &LocalScraper{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
				TLSHandshakeTimeout: timeout,
			},
		},
		userAgent: cfg.UserAgent,
		maxBody:   maxBody,
	}
}

// Name implements Scraper.
func (l *LocalScraper) Name() string { return "local_http" }

// Scrape implements Scraper. Non-200 responses and anti-bot pages are
// errors.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, NormalizeURL(targetURL), nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBody))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if block := DetectBlock(resp, body); block != BlockNone {
		return nil, eris.Errorf("local_http: blocked (%s)", block)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}

	body, err = decode(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	// Links resolve against the final URL after redirects.
	page, err := parsePage(body, resp.Request.URL)
	if err != nil {
		return nil, err
	}
	page.URL = resp.Request.URL.String()
	page.Source = l.Name()
	return page, nil
}
