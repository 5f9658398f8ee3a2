package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Pipeline.CrawlPageBudget)
	assert.Equal(t, 5, cfg.Pipeline.MaxNewsArticles)
	assert.Equal(t, 1500, cfg.Pipeline.ArticleChars)
	assert.Equal(t, 8, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 1000, cfg.Gate.SearchSpacingMs)
	assert.Equal(t, 250, cfg.Gate.FetchSpacingMs)
	assert.Equal(t, 3, cfg.Search.MaxAttempts)
	assert.Equal(t, "https://s.jina.ai", cfg.Jina.SearchBaseURL)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  database_url: intel.db
log:
  level: debug
  format: console
server:
  port: 9090
pipeline:
  crawl_page_budget: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "intel.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Pipeline.CrawlPageBudget)
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Pipeline.MaxNewsArticles)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("INTEL_STORE_DRIVER", "postgres")
	t.Setenv("INTEL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func validEnhanceConfig() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/intel"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Jina.Key = "jina-key"
	cfg.Pipeline.CrawlPageBudget = 5
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateEnhance_AllPresent(t *testing.T) {
	assert.NoError(t, validEnhanceConfig().Validate("enhance"))
}

func TestValidateEnhance_MissingFields(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("enhance")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "jina.key is required")
	assert.Contains(t, err.Error(), "filings.database_url is required")
}

func TestValidateStore_SQLiteNeedsNoFilings(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "intel.db"

	assert.NoError(t, cfg.Validate("store"))
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validEnhanceConfig()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validEnhanceConfig()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestFilingsURL_FallsBackToStore(t *testing.T) {
	cfg := validEnhanceConfig()
	assert.Equal(t, "postgres://localhost/intel", cfg.FilingsURL())

	cfg.Filings.DatabaseURL = "postgres://localhost/filings"
	assert.Equal(t, "postgres://localhost/filings", cfg.FilingsURL())

	cfg.Filings.DatabaseURL = ""
	cfg.Store.Driver = "sqlite"
	assert.Equal(t, "", cfg.FilingsURL())
}
