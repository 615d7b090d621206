package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/provider"
	"github.com/sells-group/leadgen-cli/internal/query"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/sink"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/pkg/serpapi"
	serpmocks "github.com/sells-group/leadgen-cli/pkg/serpapi/mocks"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type stubBuilder struct {
	deps pipeline.Deps
	err  error

	preset string
	key    string
}

func (b *stubBuilder) Build(_ context.Context, preset string, ov pipeline.Overrides) (*pipeline.Orchestrator, error) {
	b.preset = preset
	b.key = ov.SerpAPIKey
	if b.err != nil {
		return nil, b.err
	}
	d := b.deps
	d.Preset = pipeline.Presets[preset]
	return pipeline.New(d), nil
}

func mapsDeps(t *testing.T, dir string, results ...serpapi.LocalResult) pipeline.Deps {
	t.Helper()
	client := serpmocks.NewMockClient(t)
	client.On("Search", mock.Anything, mock.MatchedBy(func(p serpapi.SearchParams) bool { return p.Start == 0 })).
		Return(&serpapi.SearchResponse{LocalResults: results}, nil).Maybe()
	client.On("Search", mock.Anything, mock.Anything).
		Return(&serpapi.SearchResponse{}, nil).Maybe()

	return pipeline.Deps{
		Expander:  query.TemplateExpander{},
		Adapter:   provider.NewMapsAdapter(client, resilience.RetryConfig{MaxAttempts: 1}),
		OutputDir: dir,
		Now:       func() time.Time { return fixedNow },
	}
}

func readEvents(t *testing.T, body string) []model.Event {
	t.Helper()
	var out []model.Event
	for _, frame := range strings.Split(body, "\n\n") {
		if frame == "" {
			continue
		}
		require.True(t, strings.HasPrefix(frame, "data: "), frame)
		var e model.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &e))
		out = append(out, e)
	}
	return out
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestPing(t *testing.T) {
	rr := serve(New(Config{Builder: &stubBuilder{}}), "/ping")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"status":"ok","message":"Server is awake!"}`, rr.Body.String())
}

func TestGenerate_Streams(t *testing.T) {
	dir := t.TempDir()
	b := &stubBuilder{deps: mapsDeps(t, dir,
		serpapi.LocalResult{Title: "Iron Gym", Phone: "020-1"},
		serpapi.LocalResult{Title: "Iron Gym", Phone: "020-1"},
		serpapi.LocalResult{Title: "Flex Studio", Phone: "020-2"},
	)}
	s := New(Config{Builder: b, OutputDir: dir})

	rr := serve(s, "/generate?keyword=gym&location=Pune&limit=abc&api_key=user-key&preset=maps")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t, "user-key", b.key)
	assert.Equal(t, "maps", b.preset)

	events := readEvents(t, rr.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, model.EventLog, events[0].Type)

	var progress []model.Event
	for _, e := range events {
		if e.Type == model.EventProgress {
			progress = append(progress, e)
		}
	}
	require.Len(t, progress, 2)
	assert.Equal(t, pipeline.DefaultLimit, progress[0].Total)

	last := events[len(events)-1]
	assert.Equal(t, model.EventDone, last.Type)
	assert.Equal(t, 2, last.Count)
	assert.FileExists(t, filepath.Join(dir, last.Filename))

	// The target is released once the stream ends.
	assert.True(t, s.acquire(last.Path))
}

func TestGenerate_MissingParams(t *testing.T) {
	s := New(Config{Builder: &stubBuilder{}})

	rr := serve(s, "/generate?keyword=gym")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Keyword and location are required"}`, rr.Body.String())
}

func TestGenerate_UnknownPreset(t *testing.T) {
	rr := serve(New(Config{Builder: &stubBuilder{}}), "/generate?keyword=gym&location=Pune&preset=nope")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown preset")
}

func TestGenerate_ConfigError(t *testing.T) {
	b := &stubBuilder{err: &config.ConfigError{Feature: "maps", Missing: []string{"serpapi.key"}}}

	rr := serve(New(Config{Builder: b}), "/generate?keyword=gym&location=Pune")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "serpapi.key is required")
}

func TestGenerate_BusyTarget(t *testing.T) {
	dir := t.TempDir()
	s := New(Config{Builder: &stubBuilder{deps: mapsDeps(t, dir)}, OutputDir: dir})
	target := sink.TargetPath(dir, "leads", "gym", "Pune", fixedNow)
	require.True(t, s.acquire(target))

	rr := serve(s, "/generate?keyword=gym&location=Pune")

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestGenerate_AnalyzeNeedsSource(t *testing.T) {
	rr := serve(New(Config{Builder: &stubBuilder{}}), "/generate?preset=analyze&source=../secrets.csv")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "source file")
}

func TestDownload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leads.csv"), []byte("title\nAcme\n"), 0o644))
	s := New(Config{Builder: &stubBuilder{}, OutputDir: dir})

	rr := serve(s, "/download/leads.csv")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "title\nAcme\n", rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "leads.csv")

	rr = serve(s, "/download/missing.csv")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestConfine(t *testing.T) {
	s := New(Config{Builder: &stubBuilder{}, OutputDir: "out"})

	p, ok := s.confine("leads.csv")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join("out", "leads.csv"), p)

	for _, name := range []string{"", "..", "../etc/passwd", "a/b.csv", `a\b.csv`} {
		_, ok := s.confine(name)
		assert.False(t, ok, name)
	}
}

func TestRuns(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	run, err := st.CreateRun(ctx, model.Run{Preset: "maps", Keyword: "gym", Location: "Pune", Target: "out/a.csv", Limit: 5})
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, run.ID, 5))

	s := New(Config{Builder: &stubBuilder{}, Runs: st})

	rr := serve(s, "/runs?state=complete")
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	rr = serve(s, "/runs?state=failed")
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = serve(s, "/runs/"+run.ID)
	require.Equal(t, http.StatusOK, rr.Code)
	var got model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, model.RunStateComplete, got.State)
	assert.Equal(t, 5, got.Accepted)

	rr = serve(s, "/runs/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRuns_DisabledWithoutLedger(t *testing.T) {
	rr := serve(New(Config{Builder: &stubBuilder{}}), "/runs")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
