// Package sheets flattens scored articles into 40-column review rows and
// appends them to a spreadsheet-like sink, one row per article and prompt.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/RobinCoderZhao/hopeshot/internal/news/analyzer"
	"github.com/RobinCoderZhao/hopeshot/internal/news/sources"
)

// Header names the 40 columns in order.
var Header = []string{
	// article (12)
	"timestamp", "title", "description", "url_id", "author", "published_at",
	"language", "news_type", "source_type", "source_name", "source_id", "original_source",
	// sentiment (5)
	"uplift_score", "sentiment_positive", "sentiment_negative", "sentiment_neutral", "sentiment_confidence",
	// emotions (6)
	"emotion_hope", "emotion_awe", "emotion_gratitude", "emotion_compassion", "emotion_relief", "emotion_joy",
	// fact-checking (3)
	"source_credibility", "fact_checkable_claims", "evidence_quality",
	// content (4)
	"controversy_level", "solution_focused", "age_appropriate", "truth_seeking",
	// geographic (2)
	"geographical_impact_level", "geographical_impact_location",
	// metadata (3)
	"categories", "reasoning", "analyzer_type",
	// prompt comparison (2)
	"prompt_id", "prompt_name",
	// reserved (3)
	"reserved1", "reserved2", "reserved3",
}

// Row is one flattened row. Values are strings, ints or float64s.
type Row []any

// Strings renders every cell as text.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, v := range r {
		switch v := v.(type) {
		case string:
			out[i] = v
		case int:
			out[i] = strconv.Itoa(v)
		case float64:
			out[i] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

func indicator(ok bool) int {
	if ok {
		return 1
	}
	return 0
}

// Flatten builds the row for one article under one prompt.
func Flatten(a sources.Article, r analyzer.Result, promptID, promptName string) Row {
	language := a.Language
	if language == "" {
		language = "en"
	}
	analyzerType := r.AnalyzerType
	if analyzerType == "" {
		analyzerType = "gemini"
	}
	categories := r.Categories
	if categories == nil {
		categories = []string{}
	}
	catJSON, _ := json.Marshal(categories)

	e := r.Emotions
	return Row{
		a.PublishedAt, a.Title, a.Description, a.URL, a.Author, a.PublishedAt,
		language, "article", "api", a.Source.Name, a.Source.ID, string(a.Provider),

		r.OverallHopefulness,
		indicator(r.Sentiment == "positive"),
		indicator(r.Sentiment == "negative"),
		indicator(r.Sentiment == "neutral"),
		r.ConfidenceScore,

		e.Hope, e.Awe, e.Gratitude, e.Compassion, e.Relief, e.Joy,

		r.SourceCredibility, r.FactCheckableClaims, r.EvidenceQuality,

		r.ControversyLevel, r.SolutionFocused, r.AgeAppropriate, r.TruthSeeking,

		r.ImpactLevel, strings.Join(r.LocationNames, ", "),

		string(catJSON), r.Reasoning, analyzerType,

		promptID, promptName,

		"", "", "",
	}
}

// Appender is an append-only row sink.
type Appender interface {
	Append(ctx context.Context, rows []Row) error
	Name() string
}

// Fanout appends to several sinks, continuing past failures.
type Fanout struct {
	appenders []Appender
	logger    *slog.Logger
}

// NewFanout creates a Fanout over the non-nil appenders.
func NewFanout(appenders ...Appender) *Fanout {
	f := &Fanout{logger: slog.Default()}
	for _, a := range appenders {
		if a != nil {
			f.appenders = append(f.appenders, a)
		}
	}
	return f
}

// Name implements Appender.
func (f *Fanout) Name() string { return "fanout" }

// Len returns the number of sinks.
func (f *Fanout) Len() int { return len(f.appenders) }

// Append implements Appender.
func (f *Fanout) Append(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	var errs []error
	for _, a := range f.appenders {
		if err := a.Append(ctx, rows); err != nil {
			f.logger.Error("sheet append failed", "sink", a.Name(), "rows", len(rows), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", a.Name(), err))
			continue
		}
		f.logger.Info("sheet rows appended", "sink", a.Name(), "rows", len(rows))
	}
	return errors.Join(errs...)
}

// Config selects the sinks.
type Config struct {
	CSVPath        string            `yaml:"csv_path" json:"csv_path" env:"SHEETS_CSV_PATH"`
	WebhookURL     string            `yaml:"webhook_url" json:"webhook_url" env:"SHEETS_WEBHOOK_URL"`
	WebhookHeaders map[string]string `yaml:"webhook_headers" json:"-"`
}

// FromConfig builds a Fanout over the configured sinks. It may be empty.
func FromConfig(cfg Config) *Fanout {
	var appenders []Appender
	if cfg.CSVPath != "" {
		appenders = append(appenders, NewCSVAppender(cfg.CSVPath))
	}
	if cfg.WebhookURL != "" {
		appenders = append(appenders, NewWebhookAppender(WebhookConfig{URL: cfg.WebhookURL, Headers: cfg.WebhookHeaders}))
	}
	return NewFanout(appenders...)
}
