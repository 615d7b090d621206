package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/classify"
	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/enrich"
	"github.com/sells-group/leadgen-cli/internal/provider"
	"github.com/sells-group/leadgen-cli/internal/query"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/scrape"
	"github.com/sells-group/leadgen-cli/internal/sink"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
	"github.com/sells-group/leadgen-cli/pkg/firecrawl"
	"github.com/sells-group/leadgen-cli/pkg/gemini"
	"github.com/sells-group/leadgen-cli/pkg/google"
	"github.com/sells-group/leadgen-cli/pkg/jina"
	"github.com/sells-group/leadgen-cli/pkg/microlink"
	"github.com/sells-group/leadgen-cli/pkg/serpapi"
)

// Breaker settings for provider adapters.
const (
	breakerThreshold = 5
	breakerReset     = 30 * time.Second
)

// Overrides are per-request settings that take precedence over config.
type Overrides struct {
	// SerpAPIKey replaces serpapi.key for this run only.
	SerpAPIKey string
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithLedger records every built orchestrator's runs in l.
func WithLedger(l Ledger) FactoryOption {
	return func(f *Factory) { f.ledger = l }
}

// WithPageCache caches scraped pages in c for scrape.cache_ttl_hours.
func WithPageCache(c scrape.PageCache) FactoryOption {
	return func(f *Factory) { f.cache = c }
}

// Factory builds orchestrators from configuration. It is safe for
// concurrent use.
type Factory struct {
	cfg    *config.Config
	ledger Ledger
	cache  scrape.PageCache

	mu       sync.Mutex
	catalogs map[string]query.Catalog
}

// NewFactory creates a Factory for cfg.
func NewFactory(cfg *config.Config, opts ...FactoryOption) *Factory {
	f := &Factory{cfg: cfg}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Build returns an orchestrator for the named preset. Missing credentials
// fail here with a *config.ConfigError, before any event is produced.
func (f *Factory) Build(ctx context.Context, presetName string, ov Overrides) (*Orchestrator, error) {
	p, err := LookupPreset(presetName)
	if err != nil {
		return nil, err
	}

	cfg := *f.cfg
	if k := strings.TrimSpace(ov.SerpAPIKey); k != "" {
		cfg.SerpAPI.Key = k
	}

	steps := p.Steps
	if len(cfg.Discovery.Steps) > 0 {
		steps = cfg.Discovery.Steps
	}
	if err := cfg.Validate(p.Name, string(p.Adapter), steps); err != nil {
		return nil, err
	}

	retry := resilience.FromConfig(cfg.Retry)
	var serp serpapi.Client
	if cfg.SerpAPI.Key != "" {
		opts := []serpapi.Option{serpapi.WithBaseURL(cfg.SerpAPI.BaseURL)}
		if cfg.SerpAPI.TimeoutSecs > 0 {
			opts = append(opts, serpapi.WithTimeout(time.Duration(cfg.SerpAPI.TimeoutSecs)*time.Second))
		}
		serp = serpapi.NewClient(cfg.SerpAPI.Key, opts...)
	}

	adapter, err := f.adapter(&cfg, p, serp, retry)
	if err != nil {
		return nil, err
	}
	expander, err := f.expander(&cfg, p)
	if err != nil {
		return nil, err
	}
	stage, err := f.stage(ctx, &cfg, steps, serp)
	if err != nil {
		return nil, err
	}

	d := Deps{
		Preset:           p,
		Expander:         expander,
		Adapter:          adapter,
		Stage:            stage,
		Ledger:           f.ledger,
		OutputDir:        cfg.Discovery.OutputDir,
		MaxPagesPerQuery: cfg.Discovery.MaxPagesPerQuery,
		ProviderPause:    cfg.Discovery.ProviderPause(),
		LogSkips:         cfg.Discovery.LogSkips,
	}
	if p.Theme != "" {
		d.Exporter = sink.NewXLSXExporter(p.Theme)
	}
	return New(d), nil
}

func (f *Factory) adapter(cfg *config.Config, p Preset, serp serpapi.Client, retry resilience.RetryConfig) (provider.Adapter, error) {
	var a provider.Adapter
	switch p.Adapter {
	case AdapterMaps:
		a = provider.NewMapsAdapter(serp, retry)
	case AdapterXRay:
		a = provider.NewXRayAdapter(serp, retry)
	case AdapterPlaces:
		var gc google.Client
		if cfg.Google.Key != "" {
			gc = google.NewClient(cfg.Google.Key, google.WithBaseURL(cfg.Google.BaseURL))
		}
		a = provider.NewPlacesAdapter(gc, cfg.Google.PageSize, retry)
	case AdapterFile:
		return provider.NewFileAdapter(), nil
	default:
		return nil, eris.Errorf("pipeline: unknown adapter %q", p.Adapter)
	}
	return provider.WithBreaker(a, resilience.NewCircuitBreaker(breakerThreshold, breakerReset)), nil
}

func (f *Factory) expander(cfg *config.Config, p Preset) (query.Expander, error) {
	switch p.Expander {
	case ExpandTemplate:
		return query.TemplateExpander{Template: p.Template}, nil
	case ExpandXRay:
		return query.XRayExpander{}, nil
	case ExpandFile:
		return query.FileExpander{}, nil
	case ExpandCatalog:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.catalogs == nil {
			cats, err := query.LoadCatalogs(cfg.Discovery.CatalogPath)
			if err != nil {
				return nil, err
			}
			f.catalogs = cats
		}
		return query.CatalogExpander{Catalogs: f.catalogs}, nil
	default:
		return nil, eris.Errorf("pipeline: unknown expander %q", p.Expander)
	}
}

// stage assembles the enrichment steps. All steps share one pacer so the
// pause applies across the whole stage.
func (f *Factory) stage(ctx context.Context, cfg *config.Config, names []string, serp serpapi.Client) (*enrich.Stage, error) {
	pacer := resilience.NewPacer(cfg.Discovery.EnrichPause())
	scraper := f.scraper(cfg)
	filter := classify.NewEmailFilter(cfg.Scrape.JunkDomains...)

	steps := make([]enrich.Step, 0, len(names))
	for _, name := range names {
		switch name {
		case enrich.StepContact:
			steps = append(steps, enrich.ContactStep(scraper, filter, cfg.Scrape.FollowLinks, pacer))
		case enrich.StepEmailSearch:
			steps = append(steps, enrich.EmailSearchStep(serp, scraper, filter, pacer))
		case enrich.StepDecisionMaker:
			steps = append(steps, enrich.DecisionMakerStep(serp, pacer))
		case enrich.StepClassify:
			steps = append(steps, enrich.ClassifyStep())
		case enrich.StepPitch:
			gen, err := f.generator(ctx, cfg)
			if err != nil {
				return nil, err
			}
			pc := enrich.PitchConfig{
				Scraper:      scraper,
				Generator:    gen,
				Findings:     cfg.Discovery.PitchFindings,
				MaxTextChars: cfg.Scrape.MaxTextChars,
				Pacer:        pacer,
			}
			if cfg.Microlink.Enabled {
				pc.Screenshots = microlink.NewClient(microlink.WithBaseURL(cfg.Microlink.BaseURL))
			}
			steps = append(steps, enrich.PitchStep(pc))
		default:
			return nil, eris.Errorf("pipeline: unknown enrichment step %q", name)
		}
	}
	return enrich.NewStage(steps...), nil
}

func (f *Factory) scraper(cfg *config.Config) scrape.Scraper {
	scrapers := []scrape.Scraper{scrape.NewLocalScraper(cfg.Scrape)}
	if cfg.Scrape.JinaFallback {
		jc := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))
		scrapers = append(scrapers, scrape.NewJinaScraper(jc))
	}
	if cfg.Scrape.FirecrawlFallback {
		fc := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
		scrapers = append(scrapers, scrape.NewFirecrawlScraper(fc))
	}
	var s scrape.Scraper = scrapers[0]
	if len(scrapers) > 1 {
		s = scrape.NewChain(scrapers...)
	}
	if f.cache == nil {
		return s
	}
	return scrape.NewCached(s, f.cache, cfg.Scrape.CacheTTL())
}

func (f *Factory) generator(ctx context.Context, cfg *config.Config) (enrich.Generator, error) {
	if cfg.Discovery.PitchProvider == "anthropic" {
		ac := anthropic.NewClient(cfg.Anthropic.Key, option.WithMaxRetries(2))
		return enrich.NewClaudeGenerator(ac, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens), nil
	}
	gc, err := gemini.NewClient(ctx, cfg.Gemini.Key, cfg.Gemini.Model)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: gemini client")
	}
	return enrich.NewGeminiGenerator(gc), nil
}
