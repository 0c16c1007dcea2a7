// Package analyzer scores articles for uplifting sentiment with a
// generative-text model. Every active prompt produces its own result set for
// the same articles, and all calls pass through one shared rate limiter.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/RobinCoderZhao/hopeshot/internal/news/sources"
	"github.com/RobinCoderZhao/hopeshot/pkg/llm"
)

var (
	// ErrNoArticles is returned by Analyze for an empty input.
	ErrNoArticles = errors.New("no articles provided")
	// ErrNoPrompts means no prompt configuration is active.
	ErrNoPrompts = errors.New("no active prompt configuration")
)

// Status of an Analyze call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial_success"
	StatusError   Status = "error"
)

// Config is the scoring section of the application config.
type Config struct {
	LLM         llm.Config `yaml:"llm" json:"llm"`
	Limits      Limits     `yaml:",inline" json:"limits"`
	Combined    bool       `yaml:"combined" json:"combined" env:"SCORING_COMBINED"`
	PromptsFile string     `yaml:"prompts_file" json:"prompts_file" env:"SCORING_PROMPTS_FILE"`
	Prompts     []Prompt   `yaml:"prompts" json:"prompts"`
}

// DefaultConfig returns combined-mode scoring with the built-in prompts.
func DefaultConfig() Config {
	return Config{
		LLM:      llm.DefaultConfig(),
		Limits:   DefaultLimits(),
		Combined: true,
	}
}

// ResolvePrompts returns the configured prompt set: the prompts file when
// set, else inline prompts, else the built-in defaults.
func (c Config) ResolvePrompts() ([]Prompt, error) {
	if c.PromptsFile != "" {
		return LoadPrompts(c.PromptsFile)
	}
	if len(c.Prompts) > 0 {
		if err := validatePrompts(c.Prompts); err != nil {
			return nil, err
		}
		return c.Prompts, nil
	}
	return DefaultPrompts(), nil
}

// NewClient builds the scoring client without transport retries: each
// Generate call is exactly one provider request, and every provider request
// passes through the limiter.
func (c Config) NewClient() (llm.Client, error) {
	cfg := c.LLM
	cfg.MaxRetries = 1
	return llm.NewClient(cfg)
}

// PromptResults is the result set of one prompt across all scored batches.
// Results[i] belongs to the i-th input article.
type PromptResults struct {
	Results    []Result `json:"results"`
	TokensUsed int      `json:"tokensUsed"`
	Fallbacks  int      `json:"fallbacks"`
	Unscored   int      `json:"unscored"`
	Config     Prompt   `json:"config"`
}

// Analysis is the outcome of Analyze.
type Analysis struct {
	Status          Status                    `json:"status"`
	Message         string                    `json:"message,omitempty"`
	BlockingReason  string                    `json:"blocking_reason,omitempty"`
	ResultsByPrompt map[string]*PromptResults `json:"results_by_prompt"`
	Prompts         []Prompt                  `json:"prompt_versions"`
	TotalTokens     int                       `json:"totalTokens"`
	TotalBatches    int                       `json:"totalBatches"`
	Processed       int                       `json:"processed_articles"`
	TotalArticles   int                       `json:"total_articles"`
	GeoDefaulted    int                       `json:"geo_defaulted"`
}

// Analyzer runs rate-limited multi-prompt scoring.
type Analyzer struct {
	client   llm.Client
	limiter  *Limiter
	prompts  []Prompt
	combined bool
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *slog.Logger
}

// New creates an Analyzer over the active subset of prompts.
func New(client llm.Client, limiter *Limiter, prompts []Prompt, combined bool) *Analyzer {
	if limiter == nil {
		limiter = NewLimiter(DefaultLimits(), nil)
	}
	return &Analyzer{
		client:   client,
		limiter:  limiter,
		prompts:  ActivePrompts(prompts),
		combined: combined,
		sleep:    sleepContext,
		logger:   slog.Default(),
	}
}

// Prompts returns the active prompts in the order they are scored.
func (a *Analyzer) Prompts() []Prompt { return a.prompts }

// Limiter returns the shared limiter.
func (a *Analyzer) Limiter() *Limiter { return a.limiter }

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func estimateFor(articles, prompts int) int {
	return articles*80*prompts + 1000
}

// Analyze scores articles in batches. A quota denial ends the call early
// with StatusPartial. Every input article ends up with exactly one result per
// active prompt: articles that were never scored carry unscored fallbacks.
func (a *Analyzer) Analyze(ctx context.Context, articles []sources.Article) (*Analysis, error) {
	if len(articles) == 0 {
		return nil, ErrNoArticles
	}
	if len(a.prompts) == 0 {
		return nil, ErrNoPrompts
	}

	out := &Analysis{
		Status:          StatusSuccess,
		ResultsByPrompt: make(map[string]*PromptResults, len(a.prompts)),
		Prompts:         a.prompts,
		TotalArticles:   len(articles),
	}
	for _, p := range a.prompts {
		out.ResultsByPrompt[p.ID] = &PromptResults{Results: []Result{}, Config: p}
	}

	size := a.limiter.Limits().BatchSize
	for start := 0; start < len(articles); start += size {
		end := min(start+size, len(articles))
		batch := articles[start:end]
		out.TotalBatches++

		var err error
		if a.combined {
			err = a.scoreCombined(ctx, out, batch, start)
		} else {
			err = a.scoreEach(ctx, out, batch, start)
		}
		if err == nil {
			out.Processed = end
			continue
		}
		a.fillUnscored(out, start, len(articles))

		var blocked *blockedError
		switch {
		case errors.As(err, &blocked):
			out.Status = StatusPartial
			out.BlockingReason = blocked.reason
			out.Message = fmt.Sprintf("Rate limit reached after %d articles", out.Processed)
			a.logger.Warn("scoring stopped by rate limiter",
				"reason", blocked.reason, "processed", out.Processed, "total", len(articles))
		default:
			out.Status = StatusError
			if out.Processed > 0 {
				out.Status = StatusPartial
			}
			out.Message = fmt.Sprintf("Analysis failed: %v", err)
			a.logger.Error("scoring batch failed", "batch", out.TotalBatches, "error", err)
		}
		return out, nil
	}
	return out, nil
}

// fillUnscored appends unscored fallbacks for articles [from, to) to every
// prompt.
func (a *Analyzer) fillUnscored(out *Analysis, from, to int) {
	for _, p := range a.prompts {
		pr := out.ResultsByPrompt[p.ID]
		for i := from; i < to; i++ {
			pr.Results = append(pr.Results, Unscored(i))
		}
		pr.Unscored += to - from
	}
}

type blockedError struct {
	reason string
}

func (e *blockedError) Error() string { return "rate limited: " + e.reason }

// admit reserves limiter capacity, sleeping once when only the pacing
// interval blocks the call.
func (a *Analyzer) admit(ctx context.Context, estimated int) (*Reservation, error) {
	d, res := a.limiter.Reserve(estimated)
	if res != nil {
		return res, nil
	}
	if d.TimingOnly() && d.Wait > 0 {
		a.logger.Info("waiting for scoring interval", "wait", d.Wait.Round(time.Second))
		if err := a.sleep(ctx, d.Wait+time.Second); err != nil {
			return nil, err
		}
		d, res = a.limiter.Reserve(estimated)
		if res != nil {
			return res, nil
		}
	}
	return nil, &blockedError{reason: d.Reason}
}

func (a *Analyzer) call(ctx context.Context, prompt string, estimated int) (*llm.Response, error) {
	res, err := a.admit(ctx, estimated)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Generate(ctx, llm.UserPrompt(prompt))
	if err != nil {
		a.limiter.Record(res, 0)
		return nil, err
	}
	a.limiter.Record(res, resp.TotalTokens())
	return resp, nil
}

func (a *Analyzer) scoreCombined(ctx context.Context, out *Analysis, batch []sources.Article, offset int) error {
	estimated := estimateFor(len(batch), len(a.prompts))
	resp, err := a.call(ctx, buildCombinedPrompt(a.prompts, batch), estimated)
	if err != nil {
		return err
	}

	tokens := resp.TotalTokens()
	a.logger.Info("scored batch",
		"batch", out.TotalBatches, "articles", len(batch), "prompts", len(a.prompts),
		"estimated_tokens", estimated, "actual_tokens", tokens)
	out.TotalTokens += tokens

	ids := make([]string, len(a.prompts))
	for i, p := range a.prompts {
		ids[i] = p.ID
	}
	parsed := parseResponse(resp.Content, ids, len(batch))

	share, rem := tokens/len(ids), tokens%len(ids)
	for i, id := range ids {
		t := share
		if i == 0 {
			t += rem
		}
		a.merge(out, id, parsed[id], offset, t)
	}
	return nil
}

// scoreEach sends one request per prompt. Results are merged only after
// every prompt has answered for the batch, so a denial between prompts never
// leaves a batch scored for some prompts and not others.
func (a *Analyzer) scoreEach(ctx context.Context, out *Analysis, batch []sources.Article, offset int) error {
	type answered struct {
		id     string
		br     batchResult
		tokens int
	}
	pending := make([]answered, 0, len(a.prompts))
	for _, p := range a.prompts {
		estimated := EstimateTokens(len(batch))
		resp, err := a.call(ctx, buildSinglePrompt(p, batch), estimated)
		if err != nil {
			if len(pending) > 0 {
				a.logger.Warn("discarding partially scored batch",
					"batch", out.TotalBatches, "answered_prompts", len(pending), "prompts", len(a.prompts))
			}
			return err
		}
		tokens := resp.TotalTokens()
		a.logger.Info("scored batch",
			"batch", out.TotalBatches, "prompt", p.ID, "articles", len(batch),
			"estimated_tokens", estimated, "actual_tokens", tokens)
		out.TotalTokens += tokens
		parsed := parseResponse(resp.Content, []string{p.ID}, len(batch))
		pending = append(pending, answered{id: p.ID, br: parsed[p.ID], tokens: tokens})
	}
	for _, ans := range pending {
		a.merge(out, ans.id, ans.br, offset, ans.tokens)
	}
	return nil
}

// merge post-processes one batch result set and appends it to the prompt's
// results.
func (a *Analyzer) merge(out *Analysis, promptID string, br batchResult, offset, tokens int) {
	pr := out.ResultsByPrompt[promptID]
	if br.fallbacks > 0 {
		a.logger.Warn("model output incomplete, using fallback results",
			"prompt", promptID, "fallbacks", br.fallbacks, "batch_size", len(br.results))
	}
	for i := range br.results {
		r := &br.results[i]
		r.ArticleIndex = offset + i
		r.AnalyzerType = string(a.client.Provider())
		if applyGeo(r) && !r.Fallback {
			out.GeoDefaulted++
			a.logger.Warn("location unresolved, defaulting to World",
				"prompt", promptID, "article_index", r.ArticleIndex, "places", r.ImpactPlaces)
		}
	}
	pr.Results = append(pr.Results, br.results...)
	pr.TokensUsed += tokens
	pr.Fallbacks += br.fallbacks
}
