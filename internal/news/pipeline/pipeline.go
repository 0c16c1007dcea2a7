// Package pipeline runs one news request end to end: aggregate the sources,
// drop stories already stored, score the rest, then persist the first
// prompt's results and log every prompt's results as sheet rows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/RobinCoderZhao/hopeshot/internal/news/aggregator"
	"github.com/RobinCoderZhao/hopeshot/internal/news/analyzer"
	"github.com/RobinCoderZhao/hopeshot/internal/news/dedup"
	"github.com/RobinCoderZhao/hopeshot/internal/news/sheets"
	"github.com/RobinCoderZhao/hopeshot/internal/news/sources"
	"github.com/RobinCoderZhao/hopeshot/internal/news/store"
)

// Request is one inbound news query.
type Request struct {
	Query    string
	Language string
	PageSize int
	Analyze  bool
}

// ScoredArticle is an article with its analysis attached when it was scored.
type ScoredArticle struct {
	sources.Article
	Analysis *analyzer.Result           `json:"gemini_analysis,omitempty"`
	ByPrompt map[string]analyzer.Result `json:"analysis_by_prompt,omitempty"`
}

// ScoringStats reports limiter usage together with what this run consumed.
type ScoringStats struct {
	analyzer.UsageStats
	Status            analyzer.Status `json:"status"`
	Message           string          `json:"message,omitempty"`
	BlockingReason    string          `json:"blocking_reason,omitempty"`
	TotalTokens       int             `json:"total_tokens"`
	TotalBatches      int             `json:"total_batches"`
	ProcessedArticles int             `json:"processed_articles"`
	GeoDefaulted      int             `json:"geo_defaulted"`
	Stored            int             `json:"stored"`
	AlreadyStored     int             `json:"already_stored"`
	NotStored         int             `json:"fallbacks_not_stored"`
	SheetRows         int             `json:"sheet_rows"`
}

// Response is the JSON envelope returned for a request.
type Response struct {
	Status            string                     `json:"status"`
	RunID             string                     `json:"run_id"`
	Query             string                     `json:"query"`
	Message           string                     `json:"message,omitempty"`
	Articles          []ScoredArticle            `json:"articles"`
	SourcesUsed       []sources.Provider         `json:"sourcesUsed"`
	SourcesFailed     []aggregator.SourceFailure `json:"sourcesFailed"`
	TotalArticles     int                        `json:"totalArticles"`
	DuplicatesRemoved int                        `json:"duplicatesRemoved"`
	DuplicateStats    *dedup.Stats               `json:"duplicate_stats,omitempty"`
	ExistingSkipped   []dedup.Skipped            `json:"existing_skipped,omitempty"`
	GeminiAnalyzed    bool                       `json:"gemini_analyzed"`
	PromptVersions    []analyzer.Prompt          `json:"prompt_versions,omitempty"`
	GeminiStats       *ScoringStats              `json:"gemini_stats,omitempty"`

	// Analysis is the raw scoring outcome, kept for reports.
	Analysis *analyzer.Analysis `json:"-"`
}

// Options wires the collaborators. Only Aggregator is required.
type Options struct {
	Aggregator *aggregator.Aggregator
	Checker    *dedup.Checker
	Store      *store.Store
	Analyzer   *analyzer.Analyzer
	Sheets     sheets.Appender
}

// Pipeline orchestrates a request.
type Pipeline struct {
	agg      *aggregator.Aggregator
	checker  *dedup.Checker
	store    *store.Store
	analyzer *analyzer.Analyzer
	sheets   sheets.Appender
	newID    func() string
	logger   *slog.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	return &Pipeline{
		agg:      opts.Aggregator,
		checker:  opts.Checker,
		store:    opts.Store,
		analyzer: opts.Analyzer,
		sheets:   opts.Sheets,
		newID:    uuid.NewString,
		logger:   slog.Default(),
	}
}

// Aggregator returns the source aggregator.
func (p *Pipeline) Aggregator() *aggregator.Aggregator { return p.agg }

// Analyzer returns the scorer, or nil when scoring is not configured.
func (p *Pipeline) Analyzer() *analyzer.Analyzer { return p.analyzer }

// Store returns the article store, or nil when persistence is disabled.
func (p *Pipeline) Store() *store.Store { return p.store }

// Run executes one request. It returns an error only when no source is
// available or scoring cannot start at all; source failures and rate-limit
// stops are reported inside the Response.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Response, error) {
	runID := p.newID()
	logger := p.logger.With("run_id", runID)
	start := time.Now()

	fetched, err := p.agg.FetchUnified(ctx, sources.Query{
		Text:     req.Query,
		Language: req.Language,
		PageSize: req.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate sources: %w", err)
	}
	logger.Info("sources aggregated",
		"articles", fetched.TotalArticles, "sources_used", len(fetched.SourcesUsed),
		"sources_failed", len(fetched.SourcesFailed), "duplicates_removed", fetched.DuplicatesRemoved)

	resp := &Response{
		Status:            "success",
		RunID:             runID,
		Query:             fetched.Query,
		SourcesUsed:       fetched.SourcesUsed,
		SourcesFailed:     fetched.SourcesFailed,
		DuplicatesRemoved: fetched.DuplicatesRemoved,
	}

	if !req.Analyze {
		resp.Articles = plain(fetched.Articles)
		resp.TotalArticles = len(resp.Articles)
		return resp, nil
	}
	if p.analyzer == nil {
		resp.Articles = plain(fetched.Articles)
		resp.TotalArticles = len(resp.Articles)
		resp.Message = "Scoring is not configured"
		return resp, nil
	}

	fresh := fetched.Articles
	if p.checker != nil {
		var stats dedup.Stats
		fresh, resp.ExistingSkipped, stats = p.checker.FilterExisting(ctx, fetched.Articles)
		resp.DuplicateStats = &stats
		logger.Info("existing articles filtered", "checked", stats.Checked, "duplicates", stats.Duplicates)
	}
	resp.PromptVersions = p.analyzer.Prompts()
	if len(fresh) == 0 {
		resp.Articles = []ScoredArticle{}
		resp.Message = "No new articles to analyze"
		resp.GeminiStats = &ScoringStats{UsageStats: p.analyzer.Limiter().Stats(), Status: analyzer.StatusSuccess}
		return resp, nil
	}

	analysis, err := p.analyzer.Analyze(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("analyze articles: %w", err)
	}
	resp.Analysis = analysis
	resp.GeminiAnalyzed = analysis.Processed > 0
	resp.Articles = attach(fresh, analysis)
	resp.TotalArticles = len(resp.Articles)

	stats := &ScoringStats{
		Status:            analysis.Status,
		Message:           analysis.Message,
		BlockingReason:    analysis.BlockingReason,
		TotalTokens:       analysis.TotalTokens,
		TotalBatches:      analysis.TotalBatches,
		ProcessedArticles: analysis.Processed,
		GeoDefaulted:      analysis.GeoDefaulted,
	}
	stats.Stored, stats.AlreadyStored, stats.NotStored = p.persist(ctx, logger, fresh, analysis)
	stats.SheetRows = p.logRows(ctx, logger, fresh, analysis)
	stats.UsageStats = p.analyzer.Limiter().Stats()
	resp.GeminiStats = stats

	logger.Info("request completed",
		"articles", resp.TotalArticles, "scored", analysis.Processed, "stored", stats.Stored,
		"tokens", analysis.TotalTokens, "duration", time.Since(start))
	return resp, nil
}

func plain(articles []sources.Article) []ScoredArticle {
	out := make([]ScoredArticle, len(articles))
	for i, a := range articles {
		out[i] = ScoredArticle{Article: a}
	}
	return out
}

func attach(articles []sources.Article, analysis *analyzer.Analysis) []ScoredArticle {
	out := plain(articles)
	for pi, prompt := range analysis.Prompts {
		pr := analysis.ResultsByPrompt[prompt.ID]
		if pr == nil {
			continue
		}
		for i := range pr.Results {
			if i >= len(out) {
				break
			}
			r := pr.Results[i]
			if pi == 0 {
				out[i].Analysis = &r
			}
			if len(analysis.Prompts) > 1 {
				if out[i].ByPrompt == nil {
					out[i].ByPrompt = make(map[string]analyzer.Result, len(analysis.Prompts))
				}
				out[i].ByPrompt[prompt.ID] = r
			}
		}
	}
	return out
}

// persist stores every successfully scored article with the first prompt's
// result. Fallbacks are left out so the article is scored again next run.
func (p *Pipeline) persist(ctx context.Context, logger *slog.Logger, articles []sources.Article, analysis *analyzer.Analysis) (stored, existing, skipped int) {
	if p.store == nil || len(analysis.Prompts) == 0 {
		return 0, 0, 0
	}
	first := analysis.Prompts[0]
	pr := analysis.ResultsByPrompt[first.ID]
	if pr == nil {
		return 0, 0, 0
	}
	for i, r := range pr.Results {
		if i >= len(articles) {
			break
		}
		if r.Fallback {
			skipped++
			continue
		}
		_, err := p.store.Insert(ctx, store.Record{
			Article:    articles[i],
			Analysis:   r,
			PromptID:   first.ID,
			PromptName: first.Name,
		})
		switch {
		case err == nil:
			stored++
		case errors.Is(err, store.ErrArticleExists):
			existing++
		default:
			logger.Warn("failed to store article", "url", articles[i].URL, "error", err)
		}
	}
	if skipped > 0 {
		logger.Info("fallback results not stored", "count", skipped)
	}
	return stored, existing, skipped
}

// logRows appends one sheet row per analyzed article and prompt. Articles
// the model never saw are skipped.
func (p *Pipeline) logRows(ctx context.Context, logger *slog.Logger, articles []sources.Article, analysis *analyzer.Analysis) int {
	if p.sheets == nil {
		return 0
	}
	var rows []sheets.Row
	for _, prompt := range analysis.Prompts {
		pr := analysis.ResultsByPrompt[prompt.ID]
		if pr == nil {
			continue
		}
		for i, r := range pr.Results {
			if i >= len(articles) {
				break
			}
			if r.Unscored {
				continue
			}
			rows = append(rows, sheets.Flatten(articles[i], r, prompt.ID, prompt.Name))
		}
	}
	if len(rows) == 0 {
		return 0
	}
	if err := p.sheets.Append(ctx, rows); err != nil {
		logger.Warn("failed to append sheet rows", "rows", len(rows), "error", err)
		return 0
	}
	return len(rows)
}
