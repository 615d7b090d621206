package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/classify"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/scrape"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
	anthropicmocks "github.com/sells-group/leadgen-cli/pkg/anthropic/mocks"
	"github.com/sells-group/leadgen-cli/pkg/gemini"
	geminimocks "github.com/sells-group/leadgen-cli/pkg/gemini/mocks"
	"github.com/sells-group/leadgen-cli/pkg/microlink"
	"github.com/sells-group/leadgen-cli/pkg/serpapi"
	serpmocks "github.com/sells-group/leadgen-cli/pkg/serpapi/mocks"
)

type stubScraper struct {
	pages map[string]*scrape.Page
	calls []string
}

func (s *stubScraper) Name() string { return "stub" }

func (s *stubScraper) Scrape(_ context.Context, u string) (*scrape.Page, error) {
	s.calls = append(s.calls, u)
	if p, ok := s.pages[u]; ok {
		return p, nil
	}
	return nil, errors.New("stub: unreachable")
}

type stubShots struct {
	shot *microlink.Screenshot
	err  error
}

func (s stubShots) Screenshot(context.Context, string) (*microlink.Screenshot, error) {
	return s.shot, s.err
}

func testLead() model.Lead {
	return model.NewLead(model.RawRecord{
		Name:     "Acme Tools",
		Address:  "1 MG Road, Pune",
		Website:  "acme.in",
		Category: "Tool manufacturer",
	}, "tool manufacturer Pune", "Pune", "MANUFACTURER")
}

func collect(msgs *[]string) Notify {
	return func(m string) { *msgs = append(*msgs, m) }
}

func TestStage_IsolatesFailingSteps(t *testing.T) {
	t.Parallel()

	var order []string
	step := func(name string, run func(*model.Lead) error) Step {
		return Step{
			Name: name,
			Run: func(_ context.Context, l *model.Lead, _ Notify) error {
				order = append(order, name)
				return run(l)
			},
			Placeholder: func(l *model.Lead) { l.Status = name + "-placeholder" },
		}
	}

	stage := NewStage(
		step("erroring", func(l *model.Lead) error {
			l.Email = "half@written.in"
			return errors.New("boom")
		}),
		step("panicking", func(*model.Lead) error { panic("kaboom") }),
		step("renaming", func(l *model.Lead) error {
			l.Name = "Hijacked"
			l.SourceQuery = "other"
			l.WebsitePhone = "020 555 1234"
			return nil
		}),
	)
	assert.Equal(t, []string{"erroring", "panicking", "renaming"}, stage.Names())

	in := testLead()
	out := stage.Enrich(context.Background(), in, nil)

	assert.Equal(t, []string{"erroring", "panicking", "renaming"}, order)
	assert.Empty(t, out.Email, "partial writes of a failed step are discarded")
	assert.Equal(t, "panicking-placeholder", out.Status)
	assert.Equal(t, in.RawRecord, out.RawRecord)
	assert.Equal(t, in.SourceQuery, out.SourceQuery)
	assert.Equal(t, "020 555 1234", out.WebsitePhone)
}

func TestStage_PanickingPlaceholder(t *testing.T) {
	t.Parallel()

	stage := NewStage(Step{
		Name:        "bad",
		Run:         func(context.Context, *model.Lead, Notify) error { return errors.New("x") },
		Placeholder: func(*model.Lead) { panic("worse") },
	})
	in := testLead()
	assert.NotPanics(t, func() {
		assert.Equal(t, in, stage.Enrich(context.Background(), in, nil))
	})
}

func TestStage_StopsWhenCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	ran := 0
	run := func(context.Context, *model.Lead, Notify) error {
		ran++
		cancel()
		return nil
	}
	stage := NewStage(Step{Name: "a", Run: run}, Step{Name: "b", Run: run})
	stage.Enrich(ctx, testLead(), nil)
	assert.Equal(t, 1, ran)
}

func TestContactStep_HomePage(t *testing.T) {
	t.Parallel()

	sc := &stubScraper{pages: map[string]*scrape.Page{
		"http://acme.in": {
			URL:    "http://acme.in",
			Text:   "Call 020 555 1234 or write to sales@acme.in and noreply@example.com",
			Mailto: []string{"info@acme.in"},
		},
	}}
	var msgs []string
	out := NewStage(ContactStep(sc, classify.NewEmailFilter(), 2, resilience.NewPacer(0))).
		Enrich(context.Background(), testLead(), collect(&msgs))

	assert.Equal(t, "info@acme.in, sales@acme.in", out.Email)
	assert.Equal(t, "020 555 1234", out.WebsitePhone)
	assert.Equal(t, []string{"http://acme.in"}, sc.calls)
	assert.Contains(t, msgs, "Scraping Acme Tools for contact details...")
}

func TestContactStep_FollowsContactLinks(t *testing.T) {
	t.Parallel()

	sc := &stubScraper{pages: map[string]*scrape.Page{
		"http://acme.in": {
			URL:  "http://acme.in",
			Text: "Welcome",
			Links: []scrape.Link{
				{Href: "http://acme.in/products", Text: "Products"},
				{Href: "http://acme.in/about", Text: "About us"},
				{Href: "http://acme.in/contact", Text: "Contact"},
				{Href: "http://acme.in/reach-us", Text: "Reach us"},
			},
		},
		"http://acme.in/contact": {URL: "http://acme.in/contact", Text: "hello@acme.in"},
	}}

	lead := testLead()
	lead.Phone = "020 111 2222"
	out := NewStage(ContactStep(sc, classify.NewEmailFilter(), 2, nil)).
		Enrich(context.Background(), lead, nil)

	assert.Equal(t, "hello@acme.in", out.Email)
	assert.Empty(t, out.WebsitePhone, "phone search is skipped when the listing has one")
	assert.Equal(t, []string{"http://acme.in", "http://acme.in/about", "http://acme.in/contact"}, sc.calls)
}

func TestContactStep_Skips(t *testing.T) {
	t.Parallel()

	sc := &stubScraper{}
	step := ContactStep(sc, classify.NewEmailFilter(), 2, nil)

	noSite := testLead()
	noSite.Website = ""
	hasEmail := testLead()
	hasEmail.Email = "known@acme.in"

	stage := NewStage(step)
	assert.Empty(t, stage.Enrich(context.Background(), noSite, nil).Email)
	assert.Equal(t, "known@acme.in", stage.Enrich(context.Background(), hasEmail, nil).Email)
	assert.Empty(t, sc.calls)

	unreachable := stage.Enrich(context.Background(), testLead(), nil)
	assert.Empty(t, unreachable.Email)
	assert.Empty(t, unreachable.WebsitePhone)
}

func TestEmailSearchQuery(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"Acme Tools" Pune email contact`, EmailSearchQuery(testLead()))

	l := testLead()
	l.TargetLocation = ""
	assert.Equal(t, `"Acme Tools" 1 MG Road, Pune email contact`, EmailSearchQuery(l))
}

func TestEmailSearchStep_SnippetsAndKnowledgeGraph(t *testing.T) {
	t.Parallel()

	client := serpmocks.NewMockClient(t)
	client.On("Search", mock.Anything, serpapi.SearchParams{
		Engine: serpapi.EngineGoogle,
		Query:  `"Acme Tools" Pune email contact`,
		Num:    5,
	}).Return(&serpapi.SearchResponse{
		OrganicResults: []serpapi.OrganicResult{{Link: "https://dir.in/acme", Snippet: "Email: sales@acme.in"}},
		KnowledgeGraph: map[string]any{
			"description": "Makers of tools.",
			"attributes":  map[string]any{"contact": "owner@acme.in", "hours": "9-5"},
		},
	}, nil)

	sc := &stubScraper{}
	out := NewStage(EmailSearchStep(client, sc, classify.NewEmailFilter(), nil)).
		Enrich(context.Background(), testLead(), nil)

	assert.Equal(t, "sales@acme.in, owner@acme.in", out.Email)
	assert.Empty(t, sc.calls)
}

func TestEmailSearchStep_ScrapesResults(t *testing.T) {
	t.Parallel()

	client := serpmocks.NewMockClient(t)
	client.On("Search", mock.Anything, mock.Anything).Return(&serpapi.SearchResponse{
		OrganicResults: []serpapi.OrganicResult{
			{Link: "https://www.facebook.com/acme"},
			{Link: "https://dir.in/acme"},
			{Link: "https://list.in/acme"},
			{Link: "https://third.in/acme"},
		},
	}, nil)

	sc := &stubScraper{pages: map[string]*scrape.Page{
		"https://list.in/acme": {Mailto: []string{"desk@acme.in"}},
	}}
	out := NewStage(EmailSearchStep(client, sc, classify.NewEmailFilter(), nil)).
		Enrich(context.Background(), testLead(), nil)

	assert.Equal(t, "desk@acme.in", out.Email)
	assert.Equal(t, []string{"https://dir.in/acme", "https://list.in/acme"}, sc.calls)
}

func TestEmailSearchStep_SkipsWhenEmailKnown(t *testing.T) {
	t.Parallel()

	client := serpmocks.NewMockClient(t)
	lead := testLead()
	lead.Email = "known@acme.in"
	out := NewStage(EmailSearchStep(client, &stubScraper{}, classify.NewEmailFilter(), nil)).
		Enrich(context.Background(), lead, nil)
	assert.Equal(t, "known@acme.in", out.Email)
	client.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestDecisionMakerStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		results []serpapi.OrganicResult
		err     error
		want    [3]string
	}{
		{
			name:    "profile found",
			results: []serpapi.OrganicResult{{Title: "Priya Shah - Founder - Acme Tools | LinkedIn", Link: "https://in.linkedin.com/in/priya", Snippet: "Founder at Acme"}},
			want:    [3]string{"Priya Shah", "https://in.linkedin.com/in/priya", "Founder at Acme"},
		},
		{
			name:    "not a profile",
			results: []serpapi.OrganicResult{{Title: "Acme Tools | LinkedIn", Link: "https://linkedin.com/company/acme"}},
			want:    [3]string{model.NotFound, model.NotApplicable, model.NotApplicable},
		},
		{
			name: "no results",
			want: [3]string{model.NotFound, model.NotApplicable, model.NotApplicable},
		},
		{
			name: "search fails",
			err:  errors.New("serpapi down"),
			want: [3]string{model.NotFound, model.NotApplicable, model.NotApplicable},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := serpmocks.NewMockClient(t)
			var resp *serpapi.SearchResponse
			if tt.err == nil {
				resp = &serpapi.SearchResponse{OrganicResults: tt.results}
			}
			client.On("Search", mock.Anything, serpapi.SearchParams{
				Engine: serpapi.EngineGoogle,
				Query:  `site:linkedin.com/in/ "Acme Tools" ("owner" OR "founder" OR "buyer" OR "purchasing")`,
				Num:    1,
			}).Return(resp, tt.err)

			out := NewStage(DecisionMakerStep(client, nil)).Enrich(context.Background(), testLead(), nil)
			assert.Equal(t, tt.want, [3]string{out.DecisionMakerName, out.DecisionMakerProfile, out.DecisionMakerBio})
		})
	}
}

func TestParseFindings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"json array", `["One.", "Two.", "Three."]`, []string{"One.", "Two.", "Three."}},
		{"fenced", "```json\n[\"One.\", \"Two.\"]\n```", []string{"One.", "Two."}},
		{"capped", `["a","b","c","d"]`, []string{"a", "b", "c"}},
		{"short array stays short", `["Only one."]`, []string{"Only one."}},
		{"markup cleaned", `["**Slow**\nsite", "no   #cta"]`, []string{"Slow site", "no cta"}},
		{"not json", "The site is **slow**.\nFix it.", []string{"The site is slow . Fix it."}},
		{"empty array", `[]`, []string{"[]"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseFindings(tt.raw, 3))
		})
	}
}

func TestPitchStep_Gemini(t *testing.T) {
	t.Parallel()

	client := geminimocks.NewMockClient(t)
	client.On("Generate", mock.Anything, mock.MatchedBy(func(r gemini.GenerateRequest) bool {
		return r.JSON && len(r.Images) == 1 && r.Images[0].MIMEType == "image/png" &&
			assert.Contains(t, r.Prompt, "exactly 3") && assert.Contains(t, r.Prompt, "We make tools")
	})).Return(&gemini.GenerateResponse{Text: `["Slow.", "Dated.", "No CTA."]`}, nil)

	sc := &stubScraper{pages: map[string]*scrape.Page{"http://acme.in": {Text: "We make tools"}}}
	var msgs []string
	out := NewStage(PitchStep(PitchConfig{
		Scraper:     sc,
		Screenshots: stubShots{shot: &microlink.Screenshot{MIMEType: "image/png", Data: []byte("png")}},
		Generator:   NewGeminiGenerator(client),
	})).Enrich(context.Background(), testLead(), collect(&msgs))

	assert.Equal(t, []string{"Slow.", "Dated.", "No CTA."}, out.Findings)
	assert.Equal(t, model.StatusPendingContact, out.Status)
	assert.Contains(t, msgs, "Analyzing Acme Tools with Gemini...")
}

func TestPitchStep_ClaudeWithoutScreenshot(t *testing.T) {
	t.Parallel()

	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(r anthropic.MessageRequest) bool {
		return r.Model == "claude-haiku-4-5-20251001" && len(r.Messages) == 1 && len(r.Messages[0].Images) == 0
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "Just one thought"}},
	}, nil)

	sc := &stubScraper{pages: map[string]*scrape.Page{"http://acme.in": {Text: "We make tools"}}}
	out := NewStage(PitchStep(PitchConfig{
		Scraper:     sc,
		Screenshots: stubShots{err: microlink.ErrNoScreenshot},
		Generator:   NewClaudeGenerator(client, "claude-haiku-4-5-20251001", 0),
	})).Enrich(context.Background(), testLead(), nil)

	assert.Equal(t, []string{"Just one thought"}, out.Findings)
	assert.Equal(t, model.StatusPendingContact, out.Status)
}

func TestPitchStep_Outcomes(t *testing.T) {
	t.Parallel()

	t.Run("no website", func(t *testing.T) {
		t.Parallel()
		l := testLead()
		l.Website = ""
		out := NewStage(PitchStep(PitchConfig{Scraper: &stubScraper{}})).Enrich(context.Background(), l, nil)
		assert.Equal(t, []string{FindingNoWebsite}, out.Findings)
		assert.Equal(t, model.NotApplicable, out.Status)
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()
		out := NewStage(PitchStep(PitchConfig{Scraper: &stubScraper{}})).Enrich(context.Background(), testLead(), nil)
		assert.Equal(t, []string{FindingUnreachable}, out.Findings)
		assert.Equal(t, model.StatusUnreachable, out.Status)
	})

	t.Run("generator error", func(t *testing.T) {
		t.Parallel()
		client := geminimocks.NewMockClient(t)
		client.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("quota exceeded"))

		sc := &stubScraper{pages: map[string]*scrape.Page{"http://acme.in": {Text: "text"}}}
		out := NewStage(PitchStep(PitchConfig{Scraper: sc, Generator: NewGeminiGenerator(client)})).
			Enrich(context.Background(), testLead(), nil)
		require.Len(t, out.Findings, 1)
		assert.Contains(t, out.Findings[0], "AI Generation Error: ")
		assert.Contains(t, out.Findings[0], "quota exceeded")
		assert.Equal(t, model.StatusPendingContact, out.Status)
	})
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ñañ", truncateRunes("ñañaña", 3))
	assert.Equal(t, "ab", truncateRunes("ab", 3))
}

func TestClassifyStep(t *testing.T) {
	t.Parallel()

	out := NewStage(ClassifyStep()).Enrich(context.Background(), testLead(), nil)
	assert.Equal(t, string(classify.Manufacturer), out.BusinessType)
}
