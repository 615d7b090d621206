package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	SerpAPI   SerpAPIConfig   `yaml:"serpapi" mapstructure:"serpapi"`
	Google    GoogleConfig    `yaml:"google" mapstructure:"google"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Firecrawl FirecrawlConfig `yaml:"firecrawl" mapstructure:"firecrawl"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Microlink MicrolinkConfig `yaml:"microlink" mapstructure:"microlink"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SerpAPIConfig holds SerpAPI credentials. Both the maps and web engines share the key.
type SerpAPIConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GoogleConfig holds Google Places API (New) settings.
type GoogleConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	PageSize int    `yaml:"page_size" mapstructure:"page_size"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FirecrawlConfig holds Firecrawl API settings.
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// MicrolinkConfig configures full-page screenshots for the pitch step.
type MicrolinkConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// DiscoveryConfig configures lead runs.
type DiscoveryConfig struct {
	Preset           string   `yaml:"preset" mapstructure:"preset"`
	Limit            int      `yaml:"limit" mapstructure:"limit"`
	MaxPagesPerQuery int      `yaml:"max_pages_per_query" mapstructure:"max_pages_per_query"`
	ProviderPauseMs  int      `yaml:"provider_pause_ms" mapstructure:"provider_pause_ms"`
	EnrichPauseMs    int      `yaml:"enrich_pause_ms" mapstructure:"enrich_pause_ms"`
	OutputDir        string   `yaml:"output_dir" mapstructure:"output_dir"`
	Steps            []string `yaml:"steps" mapstructure:"steps"`
	PitchProvider    string   `yaml:"pitch_provider" mapstructure:"pitch_provider"`
	PitchFindings    int      `yaml:"pitch_findings" mapstructure:"pitch_findings"`
	CatalogPath      string   `yaml:"catalog_path" mapstructure:"catalog_path"`
	LogSkips         bool     `yaml:"log_skips" mapstructure:"log_skips"`
}

// ProviderPause returns the pause between provider calls.
func (d DiscoveryConfig) ProviderPause() time.Duration {
	return time.Duration(d.ProviderPauseMs) * time.Millisecond
}

// EnrichPause returns the pause between enrichment network calls.
func (d DiscoveryConfig) EnrichPause() time.Duration {
	return time.Duration(d.EnrichPauseMs) * time.Millisecond
}

// ScrapeConfig configures website fetching for contact discovery.
type ScrapeConfig struct {
	TimeoutSecs  int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent    string   `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyKB    int      `yaml:"max_body_kb" mapstructure:"max_body_kb"`
	MaxTextChars int      `yaml:"max_text_chars" mapstructure:"max_text_chars"`
	FollowLinks  int      `yaml:"follow_links" mapstructure:"follow_links"`
	JunkDomains  []string `yaml:"junk_domains" mapstructure:"junk_domains"`
	JinaFallback bool     `yaml:"jina_fallback" mapstructure:"jina_fallback"`
	// FirecrawlFallback adds Firecrawl after the other scrapers. Needs firecrawl.key.
	FirecrawlFallback bool `yaml:"firecrawl_fallback" mapstructure:"firecrawl_fallback"`
	// CacheTTLHours keeps fetched pages in the store. Zero disables caching.
	CacheTTLHours int `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// CacheTTL returns how long fetched pages stay cached.
func (s ScrapeConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLHours) * time.Hour
}

// RetryConfig configures retries of transient provider failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// StoreConfig configures the run ledger database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ConfigError reports missing or invalid configuration. A run that fails
// with a ConfigError never starts.
type ConfigError struct {
	Feature string
	Missing []string
}

func (e *ConfigError) Error() string {
	msgs := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		msgs[i] = m + " is required"
	}
	return fmt.Sprintf("config: %s: %s", e.Feature, strings.Join(msgs, "; "))
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed vendor variables are accepted for the API keys.
	_ = v.BindEnv("serpapi.key", "LEADGEN_SERPAPI_KEY", "SERPAPI_KEY")
	_ = v.BindEnv("gemini.key", "LEADGEN_GEMINI_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("anthropic.key", "LEADGEN_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("google.key", "LEADGEN_GOOGLE_KEY", "GOOGLE_PLACES_API_KEY")

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadgen.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("serpapi.timeout_secs", 30)
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.page_size", 20)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("microlink.enabled", true)
	v.SetDefault("microlink.base_url", "https://api.microlink.io")
	v.SetDefault("discovery.preset", "email")
	v.SetDefault("discovery.limit", 10)
	v.SetDefault("discovery.max_pages_per_query", 10)
	v.SetDefault("discovery.provider_pause_ms", 1000)
	v.SetDefault("discovery.enrich_pause_ms", 1000)
	v.SetDefault("discovery.output_dir", "generated_leads")
	v.SetDefault("discovery.pitch_provider", "gemini")
	v.SetDefault("discovery.pitch_findings", 3)
	v.SetDefault("scrape.timeout_secs", 10)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scrape.max_body_kb", 1024)
	v.SetDefault("scrape.max_text_chars", 3000)
	v.SetDefault("scrape.follow_links", 2)
	v.SetDefault("scrape.jina_fallback", false)
	v.SetDefault("scrape.firecrawl_fallback", false)
	v.SetDefault("scrape.cache_ttl_hours", 24)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the credentials needed by the given steps and
// provider are present. It returns a *ConfigError listing every missing key.
func (c *Config) Validate(feature, provider string, steps []string) error {
	var missing []string
	need := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	switch provider {
	case "maps", "xray":
		need("serpapi.key", c.SerpAPI.Key)
	case "places":
		need("google.key", c.Google.Key)
	}

	for _, s := range steps {
		switch s {
		case "email_search", "decision_maker":
			need("serpapi.key", c.SerpAPI.Key)
		case "pitch":
			if c.Discovery.PitchProvider == "anthropic" {
				need("anthropic.key", c.Anthropic.Key)
			} else {
				need("gemini.key", c.Gemini.Key)
			}
		}
	}

	if c.Scrape.FirecrawlFallback && len(steps) > 0 {
		need("firecrawl.key", c.Firecrawl.Key)
	}

	if c.Discovery.Limit <= 0 {
		missing = append(missing, "discovery.limit > 0")
	}
	if feature == "serve" && c.Server.Port <= 0 {
		missing = append(missing, "server.port > 0")
	}

	if len(missing) == 0 {
		return nil
	}
	return &ConfigError{Feature: feature, Missing: dedupe(missing)}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
