package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/RobinCoderZhao/hopeshot/pkg/scraper"
)

const (
	newsAPIDefaultBaseURL = "https://newsapi.org/v2"
	newsAPIDefaultQuery   = "positive breakthrough innovation hope success"
	newsAPIMaxPageSize    = 100
	// NewsAPI replaces takedown-requested articles with this placeholder.
	newsAPIRemoved = "[Removed]"
)

// NewsAPIConfig holds newsapi.org settings.
type NewsAPIConfig struct {
	APIKey  string        `yaml:"api_key" env:"NEWS_API_KEY"`
	BaseURL string        `yaml:"base_url" env:"NEWS_API_BASE_URL"`
	Timeout time.Duration `yaml:"timeout"`
}

// NewsAPIClient queries the newsapi.org /everything endpoint.
type NewsAPIClient struct {
	cfg  NewsAPIConfig
	http *http.Client
}

// NewNewsAPIClient creates a NewsAPI client.
func NewNewsAPIClient(cfg NewsAPIConfig) *NewsAPIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = newsAPIDefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &NewsAPIClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

func (c *NewsAPIClient) Name() Provider     { return NewsAPI }
func (c *NewsAPIClient) IsConfigured() bool { return c.cfg.APIKey != "" }

type newsAPIResponse struct {
	Status       string            `json:"status"`
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	TotalResults int               `json:"totalResults"`
	Articles     []json.RawMessage `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

func (c *NewsAPIClient) everything(ctx context.Context, q Query) (*newsAPIResponse, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		text = newsAPIDefaultQuery
	}
	lang := q.Language
	if lang == "" {
		lang = "en"
	}
	params := url.Values{
		"q":        {text},
		"language": {lang},
		"pageSize": {strconv.Itoa(clampPageSize(q.PageSize, newsAPIMaxPageSize))},
		"sortBy":   {"relevancy"},
		"apiKey":   {c.cfg.APIKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var resp newsAPIResponse
	if _, err := getJSON(c.http, req, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "error" {
		return nil, fmt.Errorf("NewsAPI error: %s", resp.Message)
	}
	return &resp, nil
}

func (c *NewsAPIClient) Fetch(ctx context.Context, q Query) FetchResult {
	if !c.IsConfigured() {
		return errorResult(NewsAPI, fmt.Errorf("NEWS_API_KEY not configured: %w", ErrNotConfigured))
	}
	resp, err := c.everything(ctx, q)
	if err != nil {
		return errorResult(NewsAPI, fmt.Errorf("NewsAPI request failed: %w", err))
	}

	records, dropped := decodeEach[newsAPIArticle](resp.Articles)
	if dropped > 0 {
		slog.Warn("dropped malformed NewsAPI records", "count", dropped)
	}
	articles := make([]Article, 0, len(records))
	for _, raw := range records {
		if raw.Title == newsAPIRemoved {
			continue
		}
		a := normalizeNewsAPI(raw)
		a.Language = q.Language
		articles = keep(articles, a)
	}
	return successResult(NewsAPI, articles, resp.TotalResults)
}

func normalizeNewsAPI(raw newsAPIArticle) Article {
	return Article{
		Title:       scraper.PlainText(raw.Title),
		Description: scraper.PlainText(raw.Description),
		URL:         raw.URL,
		URLToImage:  raw.URLToImage,
		Author:      strings.TrimSpace(raw.Author),
		PublishedAt: normalizeTime(raw.PublishedAt),
		Source:      SourceRef{ID: raw.Source.ID, Name: raw.Source.Name},
		Content:     scraper.PlainText(raw.Content),
		Provider:    NewsAPI,
	}
}

func (c *NewsAPIClient) TestConnection(ctx context.Context) TestResult {
	if !c.IsConfigured() {
		return TestResult{Source: NewsAPI, Status: StatusError, Message: "NEWS_API_KEY not configured"}
	}
	resp, err := c.everything(ctx, Query{Text: "test", Language: "en", PageSize: 1})
	if err != nil {
		return TestResult{Source: NewsAPI, Status: StatusError, Message: "Connection failed: " + err.Error()}
	}
	return TestResult{Source: NewsAPI, Status: StatusSuccess,
		Message: fmt.Sprintf("Connected successfully (%d results available)", resp.TotalResults)}
}
