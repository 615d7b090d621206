package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/jina"
)

// JinaScraper reads pages through the Jina Reader API. It serves sites the
// local fetch cannot reach.
type JinaScraper struct {
	client  jina.Client
	breaker *resilience.CircuitBreaker
}

// NewJinaScraper wraps a Jina client. Three failures in a row stop calls
// for a minute.
func NewJinaScraper(client jina.Client) *JinaScraper {
	return &JinaScraper{
		client:  client,
		breaker: resilience.NewCircuitBreaker(3, time.Minute),
	}
}

// Name implements Scraper.
func (j *JinaScraper) Name() string { return "jina" }

// Scrape implements Scraper.
func (j *JinaScraper) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	if err := j.breaker.Allow(); err != nil {
		return nil, eris.Wrap(err, "jina: skipped")
	}

	resp, err := j.client.Read(ctx, NormalizeURL(targetURL))
	if err == nil && unusable(resp) {
		err = eris.Errorf("jina: no usable content for %s", targetURL)
	}
	j.breaker.Record(err)
	if err != nil {
		return nil, err
	}

	return &Page{
		URL:    firstNonEmpty(resp.Data.URL, targetURL),
		Title:  resp.Data.Title,
		Text:   strings.Join(strings.Fields(resp.Data.Content), " "),
		Source: j.Name(),
	}, nil
}

var jinaChallenge = []string{
	"checking your browser",
	"enable javascript",
	"access denied",
	"just a moment",
	"attention required",
}

// unusable reports a reader response that is empty or a challenge page.
func unusable(resp *jina.ReadResponse) bool {
	if resp == nil || (resp.Code != 0 && resp.Code != 200) {
		return true
	}
	content := strings.TrimSpace(resp.Data.Content)
	if content == "" {
		return true
	}
	if len(content) < 1000 {
		lower := strings.ToLower(content)
		for _, sig := range jinaChallenge {
			if strings.Contains(lower, sig) {
				return true
			}
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
