// Package config provides HopeShot application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RobinCoderZhao/hopeshot/internal/news/aggregator"
	"github.com/RobinCoderZhao/hopeshot/internal/news/analyzer"
	"github.com/RobinCoderZhao/hopeshot/internal/news/dedup"
	"github.com/RobinCoderZhao/hopeshot/internal/news/sheets"
	"github.com/RobinCoderZhao/hopeshot/internal/news/sources"
	appconfig "github.com/RobinCoderZhao/hopeshot/pkg/config"
	"github.com/RobinCoderZhao/hopeshot/pkg/storage"
)

// DefaultFile is read from the working directory when HOPESHOT_CONFIG is unset.
const DefaultFile = "hopeshot.yaml"

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig      `yaml:"server"`
	Database storage.Config    `yaml:"database"`
	Log      LogConfig         `yaml:"log"`
	Auth     AuthConfig        `yaml:"auth"`
	Sources  SourcesConfig     `yaml:"sources"`
	RSS      sources.RSSConfig `yaml:"rss"`
	Scoring  analyzer.Config   `yaml:"scoring"`
	Sheets   sheets.Config     `yaml:"sheets"`
	Dedup    DedupConfig       `yaml:"dedup"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	CORSOrigin      string        `yaml:"cors_origin" env:"CORS_ORIGIN"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"` // "text" or "json"
}

// AuthConfig holds operator authentication settings. An empty secret leaves
// scoring open to anonymous callers.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// SourcesConfig holds provider credentials and aggregation settings.
type SourcesConfig struct {
	AFP      sources.AFPConfig                              `yaml:"afp"`
	NewsAPI  sources.NewsAPIConfig                          `yaml:"newsapi"`
	NewsData sources.NewsDataConfig                         `yaml:"newsdata"`
	Settings map[sources.Provider]aggregator.SourceSettings `yaml:"settings"`
	Timeout  time.Duration                                  `yaml:"timeout" env:"SOURCES_TIMEOUT"`
}

// DedupConfig tunes duplicate detection.
type DedupConfig struct {
	Threshold float64       `yaml:"threshold" env:"DEDUP_THRESHOLD"`
	Window    time.Duration `yaml:"window" env:"DEDUP_WINDOW"`
}

// Default returns a Config with the built-in defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8000,
			CORSOrigin:      "http://localhost:3000",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: storage.Config{Driver: storage.SQLite, DSN: "data/hopeshot.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Auth:     AuthConfig{TokenTTL: 7 * 24 * time.Hour},
		Sources: SourcesConfig{
			Settings: aggregator.DefaultSettings(),
			Timeout:  30 * time.Second,
		},
		Scoring: analyzer.DefaultConfig(),
		Dedup: DedupConfig{
			Threshold: dedup.DefaultThreshold,
			Window:    dedup.DefaultWindow,
		},
	}
}

// Load reads .env, then the YAML file, then env overrides. An empty path
// uses HOPESHOT_CONFIG, then hopeshot.yaml, then ~/.hopeshot.yaml.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := appconfig.LoadDotEnv(); err != nil {
		return cfg, err
	}

	if path == "" {
		path = os.Getenv("HOPESHOT_CONFIG")
	}
	if path == "" {
		path = DefaultFile
		if _, err := os.Stat(path); err != nil {
			if home, err := os.UserHomeDir(); err == nil {
				path = filepath.Join(home, ".hopeshot.yaml")
			}
		}
	}
	if err := appconfig.LoadOrDefault(path, &cfg); err != nil {
		return cfg, err
	}

	if cfg.Scoring.LLM.APIKey == "" {
		cfg.Scoring.LLM.APIKey = os.Getenv("LLM_API_KEY")
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the application cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case storage.SQLite, storage.Postgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}
	if c.Dedup.Threshold <= 0 || c.Dedup.Threshold > 1 {
		errs = append(errs, fmt.Errorf("dedup.threshold: %v not in (0, 1]", c.Dedup.Threshold))
	}
	return errors.Join(errs...)
}

// SourceClients builds every provider client. Unconfigured clients are
// included; the aggregator skips them.
func (c Config) SourceClients() []sources.Client {
	timeout := func(t time.Duration) time.Duration {
		if t > 0 {
			return t
		}
		return c.Sources.Timeout
	}
	afp, newsapi, newsdata, rss := c.Sources.AFP, c.Sources.NewsAPI, c.Sources.NewsData, c.RSS
	afp.Timeout = timeout(afp.Timeout)
	newsapi.Timeout = timeout(newsapi.Timeout)
	newsdata.Timeout = timeout(newsdata.Timeout)
	rss.Timeout = timeout(rss.Timeout)

	return []sources.Client{
		sources.NewAFPClient(afp),
		sources.NewNewsAPIClient(newsapi),
		sources.NewNewsDataClient(newsdata),
		sources.NewRSSClient(rss),
	}
}

// AggregatorConfig returns the aggregation settings.
func (c Config) AggregatorConfig() aggregator.Config {
	return aggregator.Config{
		Settings:  c.Sources.Settings,
		Timeout:   c.Sources.Timeout,
		Threshold: c.Dedup.Threshold,
	}
}
