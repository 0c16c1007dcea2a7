package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Query    string        `yaml:"query" env:"HS_QUERY"`
	PageSize int           `yaml:"page_size" env:"HS_PAGE_SIZE"`
	Analyze  bool          `yaml:"analyze" env:"HS_ANALYZE"`
	Interval time.Duration `yaml:"interval" env:"HS_INTERVAL"`
	Feeds    []string      `yaml:"feeds" env:"HS_FEEDS"`
	Scoring  struct {
		Threshold float64 `yaml:"threshold" env:"HS_THRESHOLD"`
		APIKey    string  `yaml:"api_key"`
	} `yaml:"scoring"`
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(content)
	f.Close()
	return f.Name()
}

func TestLoad(t *testing.T) {
	path := writeTemp(t, `
query: hope
page_size: 20
analyze: false
interval: 2m
feeds: [https://a.example/rss]
scoring:
  threshold: 0.8
`)

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Query != "hope" {
		t.Fatalf("expected 'hope', got '%s'", cfg.Query)
	}
	if cfg.PageSize != 20 {
		t.Fatalf("expected 20, got %d", cfg.PageSize)
	}
	if cfg.Interval != 2*time.Minute {
		t.Fatalf("expected 2m, got %s", cfg.Interval)
	}
	if len(cfg.Feeds) != 1 {
		t.Fatalf("expected 1 feed, got %d", len(cfg.Feeds))
	}
	if cfg.Scoring.Threshold != 0.8 {
		t.Fatalf("expected 0.8, got %f", cfg.Scoring.Threshold)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("HS_TEST_KEY", "secret-key")
	path := writeTemp(t, "scoring:\n  api_key: ${HS_TEST_KEY}\n")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Scoring.APIKey != "secret-key" {
		t.Fatalf("expected expanded key, got '%s'", cfg.Scoring.APIKey)
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeTemp(t, "query: default\npage_size: 10\n")

	t.Setenv("HS_QUERY", "from-env")
	t.Setenv("HS_PAGE_SIZE", "50")
	t.Setenv("HS_ANALYZE", "true")
	t.Setenv("HS_INTERVAL", "90")
	t.Setenv("HS_FEEDS", "https://a.example/rss, https://b.example/atom")
	t.Setenv("HS_THRESHOLD", "0.75")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Query != "from-env" {
		t.Fatalf("expected 'from-env', got '%s'", cfg.Query)
	}
	if cfg.PageSize != 50 {
		t.Fatalf("expected 50, got %d", cfg.PageSize)
	}
	if !cfg.Analyze {
		t.Fatal("expected analyze to be true from env")
	}
	if cfg.Interval != 90*time.Second {
		t.Fatalf("expected 90s, got %s", cfg.Interval)
	}
	if len(cfg.Feeds) != 2 || cfg.Feeds[1] != "https://b.example/atom" {
		t.Fatalf("unexpected feeds: %v", cfg.Feeds)
	}
	if cfg.Scoring.Threshold != 0.75 {
		t.Fatalf("expected 0.75, got %f", cfg.Scoring.Threshold)
	}
}

func TestLoadOrDefault_MissingFileKeepsDefaults(t *testing.T) {
	cfg := testConfig{Query: "preset", PageSize: 20}
	t.Setenv("HS_PAGE_SIZE", "30")

	if err := LoadOrDefault("/nonexistent/config.yaml", &cfg); err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Query != "preset" {
		t.Fatalf("expected preset query kept, got '%s'", cfg.Query)
	}
	if cfg.PageSize != 30 {
		t.Fatalf("expected env override to apply, got %d", cfg.PageSize)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("HS_DOTENV_VALUE=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HS_DOTENV_VALUE", "")
	os.Unsetenv("HS_DOTENV_VALUE")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("HS_DOTENV_VALUE"); got != "loaded" {
		t.Fatalf("expected 'loaded', got '%s'", got)
	}
}
