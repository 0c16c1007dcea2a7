package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RobinCoderZhao/hopeshot/internal/config"
	"github.com/RobinCoderZhao/hopeshot/internal/news/aggregator"
	"github.com/RobinCoderZhao/hopeshot/internal/news/analyzer"
	"github.com/RobinCoderZhao/hopeshot/internal/news/dedup"
	"github.com/RobinCoderZhao/hopeshot/internal/news/pipeline"
	"github.com/RobinCoderZhao/hopeshot/internal/news/sheets"
	"github.com/RobinCoderZhao/hopeshot/internal/news/store"
	"github.com/RobinCoderZhao/hopeshot/internal/user"
	"github.com/RobinCoderZhao/hopeshot/pkg/llm"
	"github.com/RobinCoderZhao/hopeshot/pkg/logging"
	"github.com/RobinCoderZhao/hopeshot/pkg/storage"
)

// app holds the components shared by every command.
type app struct {
	cfg      config.Config
	db       *storage.DB
	store    *store.Store
	users    *user.Store
	llm      llm.Client
	pipeline *pipeline.Pipeline
}

// newApp loads the configuration and wires storage, sources, scoring and
// row logging into a pipeline.
func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(logging.New(cfg.Log.Level, cfg.Log.Format))

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &app{cfg: cfg, db: db}

	if a.store, err = store.New(ctx, db); err != nil {
		a.Close()
		return nil, err
	}
	if a.users, err = user.NewStore(ctx, db); err != nil {
		a.Close()
		return nil, err
	}

	scorer, err := a.newAnalyzer()
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := pipeline.Options{
		Aggregator: aggregator.New(cfg.SourceClients(), cfg.AggregatorConfig()),
		Checker:    dedup.NewChecker(a.store, cfg.Dedup.Threshold, cfg.Dedup.Window),
		Store:      a.store,
		Analyzer:   scorer,
	}
	if sinks := sheets.FromConfig(cfg.Sheets); sinks.Len() > 0 {
		opts.Sheets = sinks
	}
	a.pipeline = pipeline.New(opts)
	return a, nil
}

// newAnalyzer returns nil without error when no scoring credentials are set.
func (a *app) newAnalyzer() (*analyzer.Analyzer, error) {
	sc := a.cfg.Scoring
	if sc.LLM.APIKey == "" {
		slog.Warn("scoring disabled: no LLM API key configured")
		return nil, nil
	}
	prompts, err := sc.ResolvePrompts()
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	client, err := sc.NewClient()
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	a.llm = client
	return analyzer.New(client, analyzer.NewLimiter(sc.Limits, nil), prompts, sc.Combined), nil
}

func (a *app) Close() error {
	if a.llm != nil {
		a.llm.Close()
	}
	return a.db.Close()
}
