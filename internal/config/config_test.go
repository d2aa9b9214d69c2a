package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) string {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "rod", cfg.Browser.Fetcher)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30, cfg.Browser.NavTimeoutSecs)
	assert.Equal(t, 300, cfg.Browser.StableWaitMsecs)
	assert.Equal(t, 4, cfg.Run.Parallelism)
	assert.Equal(t, 2000, cfg.Run.PacingMsecs)
	assert.Equal(t, "output", cfg.Run.OutputDir)
	assert.False(t, cfg.Detect.GenericCapture)
	assert.Equal(t, 50, cfg.Detect.GenericCaptureMax)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "harvester.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
directory:
  base_url: https://directory.example
browser:
  fetcher: http
run:
  parallelism: 8
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://directory.example", cfg.Directory.BaseURL)
	assert.Equal(t, "http", cfg.Browser.Fetcher)
	assert.Equal(t, 8, cfg.Run.Parallelism)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 2000, cfg.Run.PacingMsecs)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
browser:
  fetcher: http
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("HARVESTER_BROWSER_FETCHER", "rod")
	t.Setenv("HARVESTER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "rod", cfg.Browser.Fetcher)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("HARVESTER_SERVER_PORT", "3000")
	t.Setenv("HARVESTER_RUN_PARALLELISM", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Run.Parallelism)
}

// validScrape returns a Config satisfying scrape-mode validation.
func validScrape() *Config {
	cfg := &Config{}
	cfg.Directory.BaseURL = "https://directory.example"
	cfg.Browser.Fetcher = "rod"
	cfg.Run.Parallelism = 4
	cfg.Run.OutputDir = "output"
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "harvester.db"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateScrape_AllPresent(t *testing.T) {
	assert.NoError(t, validScrape().Validate("scrape"))
}

func TestValidateScrape_MissingFields(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate("scrape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory.base_url is required")
	assert.Contains(t, err.Error(), "run.parallelism must be between 1 and 20")
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidateScrape_ParallelismBounds(t *testing.T) {
	cfg := validScrape()

	cfg.Run.Parallelism = 0
	assert.Error(t, cfg.Validate("scrape"))

	cfg.Run.Parallelism = 21
	assert.Error(t, cfg.Validate("scrape"))

	cfg.Run.Parallelism = 20
	assert.NoError(t, cfg.Validate("scrape"))
}

func TestValidateScrape_BadFetcher(t *testing.T) {
	cfg := validScrape()
	cfg.Browser.Fetcher = "curl"
	err := cfg.Validate("scrape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser.fetcher")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validScrape()
	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateReport(t *testing.T) {
	cfg := &Config{}
	assert.NoError(t, cfg.Validate("report"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validScrape().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
