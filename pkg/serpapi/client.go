// Package serpapi provides a client for the SerpAPI search endpoints.
package serpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://serpapi.com"

// Engines supported by the client.
const (
	EngineGoogleMaps = "google_maps"
	EngineGoogle     = "google"
)

// Client performs SerpAPI searches.
type Client interface {
	Search(ctx context.Context, params SearchParams) (*SearchResponse, error)
}

// SearchParams holds the query string parameters of a search.
type SearchParams struct {
	Engine string
	Query  string
	// Start is the result offset. Zero is omitted.
	Start int
	// Num is the page size for the web engine. Zero is omitted.
	Num int
	// Type is the maps search type, usually "search".
	Type string
}

// SearchResponse is the subset of the SerpAPI response the pipeline reads.
type SearchResponse struct {
	LocalResults   []LocalResult   `json:"local_results"`
	OrganicResults []OrganicResult `json:"organic_results"`
	KnowledgeGraph map[string]any  `json:"knowledge_graph,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// LocalResult is one google_maps result.
type LocalResult struct {
	Title   string  `json:"title"`
	Address string  `json:"address"`
	Phone   string  `json:"phone"`
	Website string  `json:"website"`
	Rating  float64 `json:"rating"`
	Reviews int     `json:"reviews"`
	Type    string  `json:"type"`
	PlaceID string  `json:"place_id"`
}

// OrganicResult is one google web result.
type OrganicResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
}

// APIError is returned for non-200 responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("serpapi: unexpected status %d: %s", e.StatusCode, e.Body)
}

// NoResults reports whether a 200 response carried SerpAPI's "no results"
// error instead of data. Callers treat it as an empty page.
func (r *SearchResponse) NoResults() bool {
	return strings.Contains(strings.ToLower(r.Error), "hasn't returned any results")
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a SerpAPI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	if params.Engine == "" {
		return nil, eris.New("serpapi: engine is required")
	}

	q := url.Values{}
	q.Set("engine", params.Engine)
	q.Set("q", params.Query)
	q.Set("api_key", c.apiKey)
	if params.Type != "" {
		q.Set("type", params.Type)
	}
	if params.Start > 0 {
		q.Set("start", strconv.Itoa(params.Start))
	}
	if params.Num > 0 {
		q.Set("num", strconv.Itoa(params.Num))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 300)}
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "serpapi: unmarshal response")
	}
	if result.Error != "" && !result.NoResults() {
		return nil, eris.Errorf("serpapi: %s", result.Error)
	}

	return &result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
