package provider

import (
	"context"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/google"
)

// PlacesAdapter searches business listings through the Google Places Text
// Search API. Pages are chained with nextPageToken.
type PlacesAdapter struct {
	client   google.Client
	pageSize int
	retry    resilience.RetryConfig
}

// NewPlacesAdapter creates a PlacesAdapter. pageSize <= 0 uses the API
// default.
func NewPlacesAdapter(client google.Client, pageSize int, retry resilience.RetryConfig) *PlacesAdapter {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("google", "places_text_search")
	}
	return &PlacesAdapter{client: client, pageSize: pageSize, retry: retry}
}

// Name implements Adapter.
func (a *PlacesAdapter) Name() string { return "google_places" }

// Start implements Adapter.
func (a *PlacesAdapter) Start() Cursor { return "" }

// Validate implements Adapter.
func (a *PlacesAdapter) Validate() error {
	if a.client == nil {
		return missingCredential(a.Name(), "google.key")
	}
	return nil
}

// Fetch implements Adapter.
func (a *PlacesAdapter) Fetch(ctx context.Context, query string, cursor Cursor) (Page, error) {
	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*google.TextSearchResponse, error) {
		r, err := a.client.TextSearch(ctx, google.TextSearchRequest{
			TextQuery: query,
			PageSize:  a.pageSize,
			PageToken: string(cursor),
		})
		return r, retryable(err)
	})
	if err != nil {
		return Page{}, wrapErr(a.Name(), query, err)
	}

	recs := make([]model.RawRecord, 0, len(resp.Places))
	for _, p := range resp.Places {
		recs = append(recs, model.RawRecord{
			Name:     p.DisplayName.Text,
			Address:  p.FormattedAddress,
			Phone:    p.NationalPhoneNumber,
			Website:  p.WebsiteURI,
			Rating:   p.Rating,
			Reviews:  p.UserRatingCount,
			Category: p.PrimaryTypeDisplayName.Text,
		})
	}

	return Page{
		Records: recs,
		Next:    Cursor(resp.NextPageToken),
		More:    len(recs) > 0 && resp.NextPageToken != "",
	}, nil
}
