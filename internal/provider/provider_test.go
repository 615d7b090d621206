package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/google"
	googlemocks "github.com/sells-group/leadgen-cli/pkg/google/mocks"
	"github.com/sells-group/leadgen-cli/pkg/serpapi"
	serpmocks "github.com/sells-group/leadgen-cli/pkg/serpapi/mocks"
)

func noRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 1}
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestMapsAdapter_FetchAndAdvance(t *testing.T) {
	client := serpmocks.NewMockClient(t)
	client.On("Search", mock.Anything, serpapi.SearchParams{
		Engine: serpapi.EngineGoogleMaps, Query: "gyms Pune", Type: "search", Start: 20,
	}).Return(&serpapi.SearchResponse{LocalResults: []serpapi.LocalResult{
		{Title: "Iron Gym", Address: "FC Road", Phone: "020-1", Website: "https://iron.example", Rating: 4.4, Reviews: 31, Type: "Gym"},
	}}, nil)

	a := NewMapsAdapter(client, noRetry())
	page, err := a.Fetch(context.Background(), "gyms Pune", Cursor("20"))

	require.NoError(t, err)
	assert.True(t, page.More)
	assert.Equal(t, Cursor("40"), page.Next)
	require.Len(t, page.Records, 1)
	r := page.Records[0]
	assert.Equal(t, "Iron Gym", r.Name)
	assert.Equal(t, "020-1", r.Phone)
	assert.Equal(t, "Gym", r.Category)
	assert.Equal(t, 31, r.Reviews)
}

func TestMapsAdapter_EmptyPageExhausts(t *testing.T) {
	client := serpmocks.NewMockClient(t)
	client.On("Search", mock.Anything, mock.Anything).Return(&serpapi.SearchResponse{}, nil)

	a := NewMapsAdapter(client, noRetry())
	page, err := a.Fetch(context.Background(), "q", a.Start())

	require.NoError(t, err)
	assert.False(t, page.More)
	assert.Empty(t, page.Records)
}

func TestMapsAdapter_RetriesThrottling(t *testing.T) {
	client := serpmocks.NewMockClient(t)
	client.On("Search", mock.Anything, mock.Anything).
		Return(nil, &serpapi.APIError{StatusCode: 429, Body: "slow down"}).Once()
	client.On("Search", mock.Anything, mock.Anything).
		Return(&serpapi.SearchResponse{LocalResults: []serpapi.LocalResult{{Title: "A"}}}, nil).Once()

	a := NewMapsAdapter(client, fastRetry())
	page, err := a.Fetch(context.Background(), "q", a.Start())

	require.NoError(t, err)
	assert.Len(t, page.Records, 1)
}

func TestMapsAdapter_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantFatal bool
		wantCode  int
	}{
		{"auth", &serpapi.APIError{StatusCode: 401}, true, 401},
		{"bad request", &serpapi.APIError{StatusCode: 400}, false, 400},
		{"network", errors.New("dial tcp: no route"), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := serpmocks.NewMockClient(t)
			client.On("Search", mock.Anything, mock.Anything).Return(nil, tt.err)

			a := NewMapsAdapter(client, noRetry())
			_, err := a.Fetch(context.Background(), "q", a.Start())

			var pe *Error
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantFatal, pe.Fatal())
			assert.Equal(t, tt.wantFatal, IsFatal(err))
			assert.Equal(t, tt.wantCode, pe.StatusCode)
			assert.Equal(t, "q", pe.Query)
		})
	}
}

func TestMapsAdapter_ValidateWithoutClient(t *testing.T) {
	err := NewMapsAdapter(nil, noRetry()).Validate()
	var cerr *config.ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, []string{"serpapi.key"}, cerr.Missing)
}

func TestMapsAdapter_BadCursor(t *testing.T) {
	a := NewMapsAdapter(serpmocks.NewMockClient(t), noRetry())
	_, err := a.Fetch(context.Background(), "q", Cursor("page-two"))
	assert.Error(t, err)
}

func TestXRayAdapter_KeepsProfilesOnly(t *testing.T) {
	client := serpmocks.NewMockClient(t)
	client.On("Search", mock.Anything, serpapi.SearchParams{
		Engine: serpapi.EngineGoogle, Query: `site:linkedin.com/in/ "buyer" "Pune"`, Start: 0, Num: 10,
	}).Return(&serpapi.SearchResponse{OrganicResults: []serpapi.OrganicResult{
		{Title: "Jane Doe - Purchase Manager - Acme | LinkedIn", Link: "https://in.linkedin.com/in/janedoe", Snippet: "Buyer"},
		{Title: "Acme Jobs", Link: "https://www.linkedin.com/company/acme"},
	}}, nil)

	a := NewXRayAdapter(client, noRetry())
	page, err := a.Fetch(context.Background(), `site:linkedin.com/in/ "buyer" "Pune"`, a.Start())

	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "Jane Doe", page.Records[0].Name)
	assert.Equal(t, "Purchase Manager", page.Records[0].Category)
	assert.Equal(t, "https://in.linkedin.com/in/janedoe", page.Records[0].Link)
	assert.True(t, page.More)
	assert.Equal(t, Cursor("10"), page.Next)
}

func TestXRayAdapter_StopsAtDepthLimit(t *testing.T) {
	client := serpmocks.NewMockClient(t)
	client.On("Search", mock.Anything, mock.Anything).Return(&serpapi.SearchResponse{
		OrganicResults: []serpapi.OrganicResult{{Title: "A - B", Link: "https://linkedin.com/in/a"}},
	}, nil)

	a := NewXRayAdapter(client, noRetry())
	page, err := a.Fetch(context.Background(), "q", Cursor("100"))
	require.NoError(t, err)
	assert.False(t, page.More)
}

func TestParseProfileTitle(t *testing.T) {
	tests := []struct {
		raw, name, title string
	}{
		{"Jane Doe - Buyer - Acme | LinkedIn", "Jane Doe", "Buyer"},
		{"John Roe | LinkedIn", "John Roe", "N/A"},
		{"Solo", "Solo", "N/A"},
		{"Ann Lee - | LinkedIn", "Ann Lee", "N/A"},
	}
	for _, tt := range tests {
		name, title := ParseProfileTitle(tt.raw)
		assert.Equal(t, tt.name, name, tt.raw)
		assert.Equal(t, tt.title, title, tt.raw)
	}
}

func TestPlacesAdapter_TokenPagination(t *testing.T) {
	client := googlemocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, google.TextSearchRequest{TextQuery: "cafes Goa", PageSize: 20}).
		Return(&google.TextSearchResponse{
			Places: []google.Place{{
				DisplayName:         google.LocalizedText{Text: "Sea Cafe"},
				FormattedAddress:    "Beach Rd",
				NationalPhoneNumber: "0832 1",
			}},
			NextPageToken: "next",
		}, nil)
	client.On("TextSearch", mock.Anything, google.TextSearchRequest{TextQuery: "cafes Goa", PageSize: 20, PageToken: "next"}).
		Return(&google.TextSearchResponse{
			Places: []google.Place{{DisplayName: google.LocalizedText{Text: "Hill Cafe"}}},
		}, nil)

	a := NewPlacesAdapter(client, 20, noRetry())

	p1, err := a.Fetch(context.Background(), "cafes Goa", a.Start())
	require.NoError(t, err)
	assert.True(t, p1.More)
	assert.Equal(t, "Sea Cafe", p1.Records[0].Name)

	p2, err := a.Fetch(context.Background(), "cafes Goa", p1.Next)
	require.NoError(t, err)
	assert.False(t, p2.More, "no token means the last page")
	assert.Equal(t, "Hill Cafe", p2.Records[0].Name)
}

func TestPlacesAdapter_ForbiddenIsFatal(t *testing.T) {
	client := googlemocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.Anything).Return(nil, &google.APIError{StatusCode: 403})

	_, err := NewPlacesAdapter(client, 0, noRetry()).Fetch(context.Background(), "q", "")
	assert.True(t, IsFatal(err))
}

func TestFileAdapter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte("title,phone,email\nAcme,1,a@acme.example\nBeta,2,\n"), 0o644))

	a := NewFileAdapter()
	require.NoError(t, a.Validate())
	page, err := a.Fetch(context.Background(), path, a.Start())

	require.NoError(t, err)
	assert.False(t, page.More)
	require.Len(t, page.Records, 2)
	require.Len(t, page.Prior, 2)
	assert.Equal(t, "a@acme.example", page.Prior[0].Email)
	assert.Equal(t, "Beta", page.Records[1].Name)
}

func TestFileAdapter_MissingFile(t *testing.T) {
	_, err := NewFileAdapter().Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), "")
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.False(t, pe.Fatal())
}

func TestGuarded_OpensIntoFatal(t *testing.T) {
	client := serpmocks.NewMockClient(t)
	client.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Times(2)

	g := WithBreaker(NewMapsAdapter(client, noRetry()), resilience.NewCircuitBreaker(2, time.Minute))

	for range 2 {
		_, err := g.Fetch(context.Background(), "q", g.Start())
		require.Error(t, err)
		assert.False(t, IsFatal(err))
	}

	_, err := g.Fetch(context.Background(), "q", g.Start())
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, "serpapi_maps", g.Name())
}
