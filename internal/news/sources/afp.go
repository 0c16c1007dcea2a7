package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RobinCoderZhao/hopeshot/pkg/scraper"
)

const (
	afpDefaultBaseURL = "https://afp-apicore-prod.afp.com"
	afpDefaultExpiry  = 5 * time.Hour
	afpMaxRows        = 100
	// tokenExpiryMargin renews the token this long before it actually expires.
	tokenExpiryMargin = 5 * time.Minute
)

// AFPConfig holds Agence France-Presse API credentials.
type AFPConfig struct {
	ClientID     string        `yaml:"client_id" env:"AFP_CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" env:"AFP_CLIENT_SECRET"`
	Username     string        `yaml:"username" env:"AFP_USERNAME"`
	Password     string        `yaml:"password" env:"AFP_PASSWORD"`
	BaseURL      string        `yaml:"base_url" env:"AFP_BASE_URL"`
	Timeout      time.Duration `yaml:"timeout"`
}

// AFPClient searches the AFP API. It authenticates with the OAuth2 password
// grant and rotates tokens through the refresh grant.
type AFPClient struct {
	cfg    AFPConfig
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	access    string
	refresh   string
	expiresAt time.Time
}

// NewAFPClient creates an AFP client.
func NewAFPClient(cfg AFPConfig) *AFPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = afpDefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &AFPClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default().With("source", AFP),
		now:    time.Now,
	}
}

func (c *AFPClient) Name() Provider { return AFP }

func (c *AFPClient) IsConfigured() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != "" && c.cfg.Username != "" && c.cfg.Password != ""
}

type afpTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// token returns a valid access token, refreshing or re-authenticating when
// the current one is missing or within tokenExpiryMargin of expiry.
func (c *AFPClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.access != "" && c.now().Before(c.expiresAt.Add(-tokenExpiryMargin)) {
		return c.access, nil
	}

	if c.refresh != "" {
		err := c.requestToken(ctx, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {c.refresh},
		})
		if err == nil {
			return c.access, nil
		}
		c.logger.Warn("token refresh failed, re-authenticating", "error", err)
	}

	err := c.requestToken(ctx, url.Values{
		"grant_type": {"password"},
		"username":   {c.cfg.Username},
		"password":   {c.cfg.Password},
	})
	if err != nil {
		c.access, c.refresh = "", ""
		return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return c.access, nil
}

// requestToken runs one grant against /oauth/token. Callers hold c.mu.
func (c *AFPClient) requestToken(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok afpTokenResponse
	if _, err := getJSON(c.http, req, &tok); err != nil {
		return err
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("token response without access_token")
	}

	expiresIn := time.Duration(tok.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = afpDefaultExpiry
	}
	c.access = tok.AccessToken
	if tok.RefreshToken != "" {
		c.refresh = tok.RefreshToken
	}
	c.expiresAt = c.now().Add(expiresIn)
	return nil
}

func (c *AFPClient) invalidate() {
	c.mu.Lock()
	c.access = ""
	c.mu.Unlock()
}

type afpSearchRequest struct {
	DateRange afpDateRange `json:"dateRange"`
	SortOrder string       `json:"sortOrder"`
	SortField string       `json:"sortField"`
	Lang      string       `json:"lang"`
	MaxRows   string       `json:"maxRows"`
	Query     afpQuery     `json:"query"`
}

type afpDateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type afpQuery struct {
	And []afpTerm `json:"and"`
}

type afpTerm struct {
	Name string   `json:"name"`
	And  []string `json:"and"`
}

type afpSearchResponse struct {
	TotalHits int               `json:"totalHits"`
	Documents []json.RawMessage `json:"documents"`
}

type afpDocument struct {
	Href   string `json:"href"`
	Header struct {
		Headline  string     `json:"headline"`
		Abstract  string     `json:"abstract"`
		Byline    stringList `json:"byline"`
		Published string     `json:"published"`
	} `json:"header"`
	ContentSet *struct {
		InlineData string `json:"inlineData"`
	} `json:"contentSet"`
}

func buildAFPSearch(q Query) afpSearchRequest {
	lang := q.Language
	if lang == "" {
		lang = "en"
	}
	body := afpSearchRequest{
		DateRange: afpDateRange{From: "now-7d", To: "now"},
		SortOrder: "desc",
		SortField: "published",
		Lang:      lang,
		MaxRows:   strconv.Itoa(clampPageSize(q.PageSize, afpMaxRows)),
		Query: afpQuery{And: []afpTerm{
			{Name: "class", And: []string{"text"}},
			// AFP tags uplifting stories with the "inspiring" genre.
			{Name: "genre", And: []string{"inspiring"}},
		}},
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		body.Query.And = append(body.Query.And, afpTerm{Name: "fulltext", And: []string{text}})
	}
	return body
}

func (c *AFPClient) Fetch(ctx context.Context, q Query) FetchResult {
	if !c.IsConfigured() {
		return errorResult(AFP, fmt.Errorf("AFP credentials not configured: %w", ErrNotConfigured))
	}

	payload, err := json.Marshal(buildAFPSearch(q))
	if err != nil {
		return errorResult(AFP, fmt.Errorf("marshal search: %w", err))
	}

	var resp afpSearchResponse
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.token(ctx)
		if err != nil {
			return errorResult(AFP, fmt.Errorf("AFP authentication failed: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/api/search", bytes.NewReader(payload))
		if err != nil {
			return errorResult(AFP, fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		status, err := getJSON(c.http, req, &resp)
		if status == http.StatusUnauthorized {
			c.invalidate()
			if attempt == 0 {
				// Token revoked server-side before its advertised expiry.
				continue
			}
			return errorResult(AFP, fmt.Errorf("AFP search rejected a fresh token: %w: %v", ErrAuthentication, err))
		}
		if err != nil {
			return errorResult(AFP, fmt.Errorf("AFP search error: %w", err))
		}
		break
	}

	docs, dropped := decodeEach[afpDocument](resp.Documents)
	if dropped > 0 {
		slog.Warn("dropped malformed AFP documents", "count", dropped)
	}
	articles := make([]Article, 0, len(docs))
	for _, doc := range docs {
		a := normalizeAFP(doc)
		a.Language = q.Language
		articles = keep(articles, a)
	}
	return successResult(AFP, articles, resp.TotalHits)
}

func normalizeAFP(doc afpDocument) Article {
	author := "AFP"
	if len(doc.Header.Byline) > 0 {
		author = strings.Join(doc.Header.Byline, ", ")
	}
	a := Article{
		Title:       scraper.PlainText(doc.Header.Headline),
		Description: scraper.PlainText(doc.Header.Abstract),
		URL:         doc.Href,
		Author:      author,
		PublishedAt: normalizeTime(doc.Header.Published),
		Source:      SourceRef{ID: "afp", Name: "Agence France-Presse"},
		Provider:    AFP,
	}
	if doc.ContentSet != nil {
		a.Content = scraper.Snippet(scraper.PlainText(doc.ContentSet.InlineData), 200)
	}
	return a
}

func (c *AFPClient) TestConnection(ctx context.Context) TestResult {
	if !c.IsConfigured() {
		return TestResult{Source: AFP, Status: StatusError,
			Message: "AFP credentials not configured (need CLIENT_ID, CLIENT_SECRET, USERNAME, PASSWORD)"}
	}
	c.invalidate()
	if _, err := c.token(ctx); err != nil {
		return TestResult{Source: AFP, Status: StatusError, Message: "Authentication failed - check credentials: " + err.Error()}
	}
	return TestResult{Source: AFP, Status: StatusSuccess, Message: "Connected and authenticated successfully"}
}
