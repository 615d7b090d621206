package provider

import (
	"context"
	"strconv"
	"strings"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/serpapi"
)

const (
	webPageSize = 10
	// Google stops returning useful web results past this offset.
	webMaxStart = 100
)

// XRayAdapter finds public profile pages through site-restricted web
// search. Only results whose link is a profile (/in/) become records.
type XRayAdapter struct {
	client serpapi.Client
	retry  resilience.RetryConfig
}

// NewXRayAdapter creates an XRayAdapter.
func NewXRayAdapter(client serpapi.Client, retry resilience.RetryConfig) *XRayAdapter {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("serpapi", "google")
	}
	return &XRayAdapter{client: client, retry: retry}
}

// Name implements Adapter.
func (a *XRayAdapter) Name() string { return "serpapi_xray" }

// Start implements Adapter.
func (a *XRayAdapter) Start() Cursor { return "0" }

// Validate implements Adapter.
func (a *XRayAdapter) Validate() error {
	if a.client == nil {
		return missingCredential(a.Name(), "serpapi.key")
	}
	return nil
}

// Fetch implements Adapter.
func (a *XRayAdapter) Fetch(ctx context.Context, query string, cursor Cursor) (Page, error) {
	start, err := offset(cursor)
	if err != nil {
		return Page{}, wrapErr(a.Name(), query, err)
	}

	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*serpapi.SearchResponse, error) {
		r, err := a.client.Search(ctx, serpapi.SearchParams{
			Engine: serpapi.EngineGoogle,
			Query:  query,
			Start:  start,
			Num:    webPageSize,
		})
		return r, retryable(err)
	})
	if err != nil {
		return Page{}, wrapErr(a.Name(), query, err)
	}

	var recs []model.RawRecord
	for _, r := range resp.OrganicResults {
		if !strings.Contains(r.Link, "/in/") {
			continue
		}
		name, title := ParseProfileTitle(r.Title)
		recs = append(recs, model.RawRecord{
			Name:     name,
			Category: title,
			Link:     r.Link,
			Snippet:  r.Snippet,
		})
	}

	next := start + webPageSize
	return Page{
		Records: recs,
		Next:    Cursor(strconv.Itoa(next)),
		// A page of only non-profile links is not exhaustion.
		More: len(resp.OrganicResults) > 0 && next <= webMaxStart,
	}, nil
}

// ParseProfileTitle splits a profile result title of the form
// "Name - Job Title - Company | Site" into the name and job title. The job
// title is "N/A" when absent.
func ParseProfileTitle(raw string) (name, title string) {
	parts := strings.Split(raw, "-")
	name = strings.TrimSpace(strings.Split(parts[0], "|")[0])
	title = model.NotApplicable
	if len(parts) > 1 {
		if t := strings.TrimSpace(strings.Split(parts[1], "|")[0]); t != "" {
			title = t
		}
	}
	return name, title
}
