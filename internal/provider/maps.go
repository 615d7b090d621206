package provider

import (
	"context"
	"strconv"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/serpapi"
)

// mapsPageSize is how far SerpAPI's google_maps engine advances per page.
const mapsPageSize = 20

// MapsAdapter searches business listings through SerpAPI's google_maps
// engine.
type MapsAdapter struct {
	client serpapi.Client
	retry  resilience.RetryConfig
}

// NewMapsAdapter creates a MapsAdapter. A nil client means no credential
// was configured; Validate reports it.
func NewMapsAdapter(client serpapi.Client, retry resilience.RetryConfig) *MapsAdapter {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("serpapi", "google_maps")
	}
	return &MapsAdapter{client: client, retry: retry}
}

// Name implements Adapter.
func (a *MapsAdapter) Name() string { return "serpapi_maps" }

// Start implements Adapter.
func (a *MapsAdapter) Start() Cursor { return "0" }

// Validate implements Adapter.
func (a *MapsAdapter) Validate() error {
	if a.client == nil {
		return missingCredential(a.Name(), "serpapi.key")
	}
	return nil
}

// Fetch implements Adapter.
func (a *MapsAdapter) Fetch(ctx context.Context, query string, cursor Cursor) (Page, error) {
	start, err := offset(cursor)
	if err != nil {
		return Page{}, wrapErr(a.Name(), query, err)
	}

	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*serpapi.SearchResponse, error) {
		r, err := a.client.Search(ctx, serpapi.SearchParams{
			Engine: serpapi.EngineGoogleMaps,
			Query:  query,
			Type:   "search",
			Start:  start,
		})
		return r, retryable(err)
	})
	if err != nil {
		return Page{}, wrapErr(a.Name(), query, err)
	}

	recs := make([]model.RawRecord, 0, len(resp.LocalResults))
	for _, r := range resp.LocalResults {
		recs = append(recs, model.RawRecord{
			Name:     r.Title,
			Address:  r.Address,
			Phone:    r.Phone,
			Website:  r.Website,
			Rating:   r.Rating,
			Reviews:  r.Reviews,
			Category: r.Type,
		})
	}

	return Page{
		Records: recs,
		Next:    Cursor(strconv.Itoa(start + mapsPageSize)),
		More:    len(recs) > 0,
	}, nil
}

func offset(c Cursor) (int, error) {
	if c == "" {
		return 0, nil
	}
	return strconv.Atoi(string(c))
}
