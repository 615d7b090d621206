// Package scrape fetches business websites and pulls out the text, contact
// addresses and links that enrichment works from.
package scrape

import (
	"context"
	"strings"
)

// Link is an anchor found on a page, resolved to an absolute URL.
type Link struct {
	Href string
	Text string
}

// Page is a fetched page reduced to what enrichment needs.
type Page struct {
	URL   string
	Title string
	// Text is the visible text with whitespace collapsed.
	Text string
	// Mailto holds addresses from mailto: links, in page order.
	Mailto []string
	Links  []Link
	Source string
}

// Scraper fetches a single URL.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Page, error)
	Name() string
}

// NormalizeURL adds a scheme to bare host names such as "acme.com".
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	return "http://" + strings.TrimPrefix(raw, "//")
}
