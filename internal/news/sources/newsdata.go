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
	newsDataDefaultBaseURL  = "https://newsdata.io/api/1"
	newsDataDefaultQuery    = "breakthrough innovation success positive"
	newsDataDefaultCategory = "technology,science,health"
	newsDataMaxSize         = 10
)

// NewsDataConfig holds newsdata.io settings.
type NewsDataConfig struct {
	APIKey     string        `yaml:"api_key" env:"NEWSDATA_API_KEY"`
	BaseURL    string        `yaml:"base_url" env:"NEWSDATA_BASE_URL"`
	Categories string        `yaml:"categories"`
	Timeout    time.Duration `yaml:"timeout"`
}

// NewsDataClient queries the newsdata.io /news endpoint.
type NewsDataClient struct {
	cfg  NewsDataConfig
	http *http.Client
}

// NewNewsDataClient creates a NewsData client.
func NewNewsDataClient(cfg NewsDataConfig) *NewsDataClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = newsDataDefaultBaseURL
	}
	if cfg.Categories == "" {
		cfg.Categories = newsDataDefaultCategory
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &NewsDataClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

func (c *NewsDataClient) Name() Provider     { return NewsData }
func (c *NewsDataClient) IsConfigured() bool { return c.cfg.APIKey != "" }

// newsDataResponse.Results is an array on success and an object carrying
// the error message otherwise.
type newsDataResponse struct {
	Status       string          `json:"status"`
	TotalResults int             `json:"totalResults"`
	Results      json.RawMessage `json:"results"`
}

type newsDataArticle struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Creator     stringList `json:"creator"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	PubDate     string     `json:"pubDate"`
	ImageURL    string     `json:"image_url"`
	SourceID    string     `json:"source_id"`
	SourceName  string     `json:"source_name"`
}

func (c *NewsDataClient) news(ctx context.Context, q Query) (int, []newsDataArticle, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		text = newsDataDefaultQuery
	}
	lang := q.Language
	if lang == "" {
		lang = "en"
	}
	params := url.Values{
		"apikey":   {c.cfg.APIKey},
		"q":        {text},
		"language": {lang},
		"size":     {strconv.Itoa(clampPageSize(q.PageSize, newsDataMaxSize))},
		"category": {c.cfg.Categories},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/news?"+params.Encode(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	var resp newsDataResponse
	if _, err := getJSON(c.http, req, &resp); err != nil {
		return 0, nil, err
	}
	if resp.Status != "" && resp.Status != "success" {
		var e struct {
			Message string `json:"message"`
		}
		json.Unmarshal(resp.Results, &e)
		return 0, nil, fmt.Errorf("NewsData error: %s", e.Message)
	}

	var items []json.RawMessage
	if len(resp.Results) > 0 && string(resp.Results) != "null" {
		if err := json.Unmarshal(resp.Results, &items); err != nil {
			return 0, nil, fmt.Errorf("parse results: %w", err)
		}
	}
	results, dropped := decodeEach[newsDataArticle](items)
	if dropped > 0 {
		slog.Warn("dropped malformed NewsData records", "count", dropped)
	}
	return resp.TotalResults, results, nil
}

func (c *NewsDataClient) Fetch(ctx context.Context, q Query) FetchResult {
	if !c.IsConfigured() {
		return errorResult(NewsData, fmt.Errorf("NEWSDATA_API_KEY not configured: %w", ErrNotConfigured))
	}
	total, results, err := c.news(ctx, q)
	if err != nil {
		return errorResult(NewsData, fmt.Errorf("NewsData request failed: %w", err))
	}

	articles := make([]Article, 0, len(results))
	for _, raw := range results {
		a := normalizeNewsData(raw)
		a.Language = q.Language
		articles = keep(articles, a)
	}
	return successResult(NewsData, articles, total)
}

func normalizeNewsData(raw newsDataArticle) Article {
	name := raw.SourceName
	if name == "" {
		name = raw.SourceID
	}
	return Article{
		Title:       scraper.PlainText(raw.Title),
		Description: scraper.PlainText(raw.Description),
		URL:         raw.Link,
		URLToImage:  raw.ImageURL,
		Author:      strings.Join(raw.Creator, ", "),
		PublishedAt: normalizeTime(raw.PubDate),
		Source:      SourceRef{ID: raw.SourceID, Name: name},
		Content:     scraper.PlainText(raw.Content),
		Provider:    NewsData,
	}
}

func (c *NewsDataClient) TestConnection(ctx context.Context) TestResult {
	if !c.IsConfigured() {
		return TestResult{Source: NewsData, Status: StatusError, Message: "NEWSDATA_API_KEY not configured"}
	}
	total, _, err := c.news(ctx, Query{Text: "test", Language: "en", PageSize: 1})
	if err != nil {
		return TestResult{Source: NewsData, Status: StatusError, Message: "Connection failed: " + err.Error()}
	}
	return TestResult{Source: NewsData, Status: StatusSuccess,
		Message: fmt.Sprintf("Connected successfully (%d results available)", total)}
}
