package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Filings   FilingsConfig   `yaml:"filings" mapstructure:"filings"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Gate      GateConfig      `yaml:"gate" mapstructure:"gate"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the enhancement record and credit ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FilingsConfig points at the filings database owned by the wider product.
// An empty DatabaseURL falls back to the store's Postgres URL.
type FilingsConfig struct {
	DatabaseURL    string `yaml:"database_url" mapstructure:"database_url"`
	FilingsTable   string `yaml:"filings_table" mapstructure:"filings_table"`
	CompaniesTable string `yaml:"companies_table" mapstructure:"companies_table"`
	RecentLimit    int    `yaml:"recent_limit" mapstructure:"recent_limit"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	Model      string `yaml:"model" mapstructure:"model"`
	TimeoutSec int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// JinaConfig holds Jina AI Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FetchConfig configures the content fetcher.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchConfig configures the search client and discoverer.
type SearchConfig struct {
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts  int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	DenylistFile string `yaml:"denylist_file" mapstructure:"denylist_file"`
}

// GateConfig sets the minimum spacing between calls per external service.
type GateConfig struct {
	SearchSpacingMs int `yaml:"search_spacing_ms" mapstructure:"search_spacing_ms"`
	FetchSpacingMs  int `yaml:"fetch_spacing_ms" mapstructure:"fetch_spacing_ms"`
	LLMSpacingMs    int `yaml:"llm_spacing_ms" mapstructure:"llm_spacing_ms"`
}

// PipelineConfig configures enhancement behavior.
type PipelineConfig struct {
	CrawlPageBudget  int `yaml:"crawl_page_budget" mapstructure:"crawl_page_budget"`
	PageChars        int `yaml:"page_chars" mapstructure:"page_chars"`
	ArticleChars     int `yaml:"article_chars" mapstructure:"article_chars"`
	MaxNewsArticles  int `yaml:"max_news_articles" mapstructure:"max_news_articles"`
	SummaryMaxTokens int `yaml:"summary_max_tokens" mapstructure:"summary_max_tokens"`
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

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("filings.database_url", "")
	v.SetDefault("filings.filings_table", "filings")
	v.SetDefault("filings.companies_table", "companies")
	v.SetDefault("filings.recent_limit", 10)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.timeout_secs", 10)
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("fetch.timeout_secs", 8)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36")
	v.SetDefault("search.timeout_secs", 10)
	v.SetDefault("search.max_attempts", 3)
	v.SetDefault("search.denylist_file", "")
	v.SetDefault("gate.search_spacing_ms", 1000)
	v.SetDefault("gate.fetch_spacing_ms", 250)
	v.SetDefault("gate.llm_spacing_ms", 0)
	v.SetDefault("pipeline.crawl_page_budget", 5)
	v.SetDefault("pipeline.page_chars", 4000)
	v.SetDefault("pipeline.article_chars", 1500)
	v.SetDefault("pipeline.max_news_articles", 5)
	v.SetDefault("pipeline.summary_max_tokens", 600)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks that the keys required by the given mode are present.
// Modes: "enhance" (full pipeline), "serve" (pipeline + HTTP), "store"
// (database only).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres", "sqlite":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	if mode == "enhance" || mode == "serve" {
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		if c.Jina.Key == "" {
			errs = append(errs, "jina.key is required")
		}
		if c.FilingsURL() == "" {
			errs = append(errs, "filings.database_url is required")
		}
		if c.Pipeline.CrawlPageBudget <= 0 {
			errs = append(errs, "pipeline.crawl_page_budget must be positive")
		}
	}

	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// FilingsURL returns the filings database URL, falling back to the store's
// URL when the store itself runs on Postgres.
func (c *Config) FilingsURL() string {
	if c.Filings.DatabaseURL != "" {
		return c.Filings.DatabaseURL
	}
	if c.Store.Driver == "postgres" {
		return c.Store.DatabaseURL
	}
	return ""
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
