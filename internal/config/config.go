package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Run       RunConfig       `yaml:"run" mapstructure:"run"`
	Detect    DetectConfig    `yaml:"detect" mapstructure:"detect"`
	Links     LinksConfig     `yaml:"links" mapstructure:"links"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DirectoryConfig identifies the directory site being harvested.
type DirectoryConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// BrowserConfig configures page fetching.
type BrowserConfig struct {
	Fetcher         string `yaml:"fetcher" mapstructure:"fetcher"` // "rod" or "http"
	Headless        bool   `yaml:"headless" mapstructure:"headless"`
	ChromePath      string `yaml:"chrome_path" mapstructure:"chrome_path"`
	NavTimeoutSecs  int    `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	StableWaitMsecs int    `yaml:"stable_wait_msecs" mapstructure:"stable_wait_msecs"`
}

// RunConfig configures run scheduling and output.
type RunConfig struct {
	Parallelism int    `yaml:"parallelism" mapstructure:"parallelism"`
	MaxPages    int    `yaml:"max_pages" mapstructure:"max_pages"`
	PacingMsecs int    `yaml:"pacing_msecs" mapstructure:"pacing_msecs"`
	OutputDir   string `yaml:"output_dir" mapstructure:"output_dir"`
}

// DetectConfig configures field detection.
type DetectConfig struct {
	GenericCapture    bool `yaml:"generic_capture" mapstructure:"generic_capture"`
	GenericCaptureMax int  `yaml:"generic_capture_max" mapstructure:"generic_capture_max"`
}

// LinksConfig configures detail-link discovery.
type LinksConfig struct {
	ExclusionFile string `yaml:"exclusion_file" mapstructure:"exclusion_file"`
}

// StoreConfig configures the run-metadata backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("browser.fetcher", "rod")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout_secs", 30)
	v.SetDefault("browser.stable_wait_msecs", 300)
	v.SetDefault("run.parallelism", 4)
	v.SetDefault("run.pacing_msecs", 2000)
	v.SetDefault("run.output_dir", "output")
	v.SetDefault("detect.generic_capture", false)
	v.SetDefault("detect.generic_capture_max", 50)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "harvester.db")
	v.SetDefault("server.port", 8080)
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

// Validate checks the fields a given mode depends on. Modes: "scrape"
// runs the pipeline once, "serve" exposes the HTTP API (and can start
// runs, so it inherits scrape's requirements), "report" only reads
// finished tables.
func (c *Config) Validate(mode string) error {
	var problems []string

	scrapeChecks := func() {
		if c.Directory.BaseURL == "" {
			problems = append(problems, "directory.base_url is required")
		}
		if c.Browser.Fetcher != "rod" && c.Browser.Fetcher != "http" {
			problems = append(problems, "browser.fetcher must be \"rod\" or \"http\"")
		}
		if c.Run.Parallelism < 1 || c.Run.Parallelism > 20 {
			problems = append(problems, "run.parallelism must be between 1 and 20")
		}
		if c.Run.OutputDir == "" {
			problems = append(problems, "run.output_dir is required")
		}
		switch c.Store.Driver {
		case "sqlite", "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required")
			}
		default:
			problems = append(problems, "store.driver must be \"sqlite\" or \"postgres\"")
		}
	}

	switch mode {
	case "scrape":
		scrapeChecks()
	case "serve":
		scrapeChecks()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "report":
		// Reads an existing table; nothing to check.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
