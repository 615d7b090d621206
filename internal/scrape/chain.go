package scrape

import (
	"context"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain tries scrapers in order and returns the first page fetched.
type Chain struct {
	scrapers []Scraper
}

// NewChain creates a Chain. Nil scrapers are ignored.
func NewChain(scrapers ...Scraper) *Chain {
	c := &Chain{}
	for _, s := range scrapers {
		if s != nil {
			c.scrapers = append(c.scrapers, s)
		}
	}
	return c
}

// Name implements Scraper.
func (c *Chain) Name() string { return "chain" }

// Scrape implements Scraper.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	var lastErr error
	for _, s := range c.scrapers {
		page, err := s.Scrape(ctx, targetURL)
		if err == nil && page != nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "scrape: cancelled")
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, eris.Errorf("scrape: no scraper for %s", targetURL)
}

var contactRe = regexp.MustCompile(`(?i)contact|about|reach-us|get-in-touch`)

// ContactLinks returns up to limit links on p that look like contact or
// about pages on the same site, in page order.
func ContactLinks(p *Page, limit int) []string {
	if p == nil || limit <= 0 {
		return nil
	}
	self, _ := url.Parse(p.URL)

	var out []string
	for _, l := range p.Links {
		if !contactRe.MatchString(l.Href) && !contactRe.MatchString(l.Text) {
			continue
		}
		u, err := url.Parse(l.Href)
		if err != nil || (self != nil && !sameSite(self, u)) {
			continue
		}
		if l.Href == p.URL || slices.Contains(out, l.Href) {
			continue
		}
		out = append(out, l.Href)
		if len(out) == limit {
			break
		}
	}
	return out
}

func sameSite(a, b *url.URL) bool {
	return strings.TrimPrefix(strings.ToLower(a.Hostname()), "www.") ==
		strings.TrimPrefix(strings.ToLower(b.Hostname()), "www.")
}

var socialHosts = []string{"facebook.com", "instagram.com", "youtube.com", "twitter.com", "x.com", "linkedin.com"}

// IsSocial reports whether rawURL points at a social network profile.
func IsSocial(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, s := range socialHosts {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}
