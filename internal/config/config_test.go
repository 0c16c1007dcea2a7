package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RobinCoderZhao/hopeshot/internal/news/sources"
	"github.com/RobinCoderZhao/hopeshot/pkg/storage"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hopeshot.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Scoring.Limits.RequestsPerMinute != 14 || cfg.Scoring.Limits.Interval != 120*time.Second {
		t.Fatalf("unexpected scoring limits: %+v", cfg.Scoring.Limits)
	}
	if cfg.Dedup.Threshold != 0.8 || cfg.Dedup.Window != 30*24*time.Hour {
		t.Fatalf("unexpected dedup defaults: %+v", cfg.Dedup)
	}
	if !cfg.Scoring.Combined {
		t.Fatal("expected combined scoring by default")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  driver: sqlite
  dsn: ":memory:"
sources:
  newsapi:
    api_key: ${HS_TEST_NEWSAPI}
  settings:
    newsdata: {active: false, priority: 3, max_per_request: 10}
rss:
  feeds: [https://feeds.example/good-news.xml]
scoring:
  requests_per_minute: 10
  interval: 90s
  combined: false
dedup:
  threshold: 0.75
`)
	t.Setenv("HS_TEST_NEWSAPI", "news-key")
	t.Setenv("SCORING_RPD", "500")
	t.Setenv("LLM_API_KEY", "fallback-key")
	t.Setenv("GEMINI_API_KEY", "")
	os.Unsetenv("GEMINI_API_KEY")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9090 || cfg.Database.DSN != ":memory:" {
		t.Fatalf("unexpected server/database: %+v %+v", cfg.Server, cfg.Database)
	}
	if cfg.Sources.NewsAPI.APIKey != "news-key" {
		t.Fatalf("expected expanded api key, got %q", cfg.Sources.NewsAPI.APIKey)
	}
	if cfg.Sources.Settings[sources.NewsData].Active {
		t.Fatal("expected newsdata disabled")
	}
	if !cfg.Sources.Settings[sources.AFP].Active {
		t.Fatal("expected default settings kept for unlisted providers")
	}
	if len(cfg.RSS.Feeds) != 1 {
		t.Fatalf("expected 1 feed, got %v", cfg.RSS.Feeds)
	}
	l := cfg.Scoring.Limits
	if l.RequestsPerMinute != 10 || l.RequestsPerDay != 500 || l.Interval != 90*time.Second || l.BatchSize != 100 {
		t.Fatalf("unexpected limits: %+v", l)
	}
	if cfg.Scoring.Combined {
		t.Fatal("expected combined=false from file")
	}
	if cfg.Scoring.LLM.APIKey != "fallback-key" {
		t.Fatalf("expected LLM_API_KEY fallback, got %q", cfg.Scoring.LLM.APIKey)
	}
	if cfg.Dedup.Threshold != 0.75 {
		t.Fatalf("expected threshold 0.75, got %v", cfg.Dedup.Threshold)
	}
}

func TestLoad_EnvPath(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	t.Setenv("HOPESHOT_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = storage.Driver("mysql")
	cfg.Dedup.Threshold = 1.5
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation errors")
	}
}

func TestSourceClients(t *testing.T) {
	cfg := Default()
	cfg.Sources.NewsAPI.APIKey = "k"
	clients := cfg.SourceClients()
	if len(clients) != 4 {
		t.Fatalf("expected 4 clients, got %d", len(clients))
	}
	configured := 0
	for _, c := range clients {
		if c.IsConfigured() {
			configured++
		}
	}
	if configured != 1 {
		t.Fatalf("expected only newsapi configured, got %d", configured)
	}
	if agg := cfg.AggregatorConfig(); agg.Threshold != 0.8 || agg.Timeout != 30*time.Second {
		t.Fatalf("unexpected aggregator config: %+v", agg)
	}
}
