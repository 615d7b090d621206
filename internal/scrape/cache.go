package scrape

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// PageCache stores serialized pages by URL.
type PageCache interface {
	GetCachedPage(ctx context.Context, url string) ([]byte, error)
	SetCachedPage(ctx context.Context, url string, data []byte, ttl time.Duration) error
}

// Cached serves pages from a cache before asking the wrapped scraper.
// Cache failures are logged and otherwise ignored.
type Cached struct {
	inner Scraper
	cache PageCache
	ttl   time.Duration
}

// NewCached wraps inner with cache. A nil cache or non-positive ttl
// returns inner unchanged.
func NewCached(inner Scraper, cache PageCache, ttl time.Duration) Scraper {
	if cache == nil || ttl <= 0 {
		return inner
	}
	return &Cached{inner: inner, cache: cache, ttl: ttl}
}

// Name implements Scraper.
func (c *Cached) Name() string { return "cached_" + c.inner.Name() }

// Scrape implements Scraper.
func (c *Cached) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	log := zap.L().With(zap.String("url", targetURL))

	data, err := c.cache.GetCachedPage(ctx, targetURL)
	if err != nil {
		log.Debug("scrape: cache read failed", zap.Error(err))
	} else if data != nil {
		var p Page
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
	}

	page, err := c.inner.Scrape(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(page); err == nil {
		if err := c.cache.SetCachedPage(ctx, targetURL, data, c.ttl); err != nil {
			log.Debug("scrape: cache write failed", zap.Error(err))
		}
	}
	return page, nil
}
