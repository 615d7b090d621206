package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/firecrawl"
)

// FirecrawlScraper renders pages through Firecrawl. It is the last resort
// in the chain because every call spends credits.
type FirecrawlScraper struct {
	client  firecrawl.Client
	breaker *resilience.CircuitBreaker
}

// NewFirecrawlScraper wraps a Firecrawl client.
func NewFirecrawlScraper(client firecrawl.Client) *FirecrawlScraper {
	return &FirecrawlScraper{
		client:  client,
		breaker: resilience.NewCircuitBreaker(3, time.Minute),
	}
}

// Name implements Scraper.
func (f *FirecrawlScraper) Name() string { return "firecrawl" }

// Scrape implements Scraper.
func (f *FirecrawlScraper) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	if err := f.breaker.Allow(); err != nil {
		return nil, eris.Wrap(err, "firecrawl: skipped")
	}

	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{URL: NormalizeURL(targetURL), OnlyMainContent: true})
	if err == nil && (!resp.Success || strings.TrimSpace(resp.Data.Markdown) == "") {
		err = eris.Errorf("firecrawl: no usable content for %s", targetURL)
	}
	f.breaker.Record(err)
	if err != nil {
		return nil, err
	}

	page := &Page{
		URL:    firstNonEmpty(resp.Data.Metadata.SourceURL, targetURL),
		Title:  resp.Data.Metadata.Title,
		Text:   strings.Join(strings.Fields(resp.Data.Markdown), " "),
		Source: f.Name(),
	}
	for _, href := range resp.Data.Links {
		if addr, ok := strings.CutPrefix(href, "mailto:"); ok {
			if addr, _, _ = strings.Cut(addr, "?"); addr != "" {
				page.Mailto = append(page.Mailto, addr)
			}
			continue
		}
		page.Links = append(page.Links, Link{Href: href})
	}
	return page, nil
}
