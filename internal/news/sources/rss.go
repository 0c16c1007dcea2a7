package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/RobinCoderZhao/hopeshot/pkg/scraper"
	"github.com/mmcdole/gofeed"
)

// RSSConfig lists the RSS/Atom feeds to poll.
type RSSConfig struct {
	Feeds   []string      `yaml:"feeds" env:"RSS_FEEDS"`
	Timeout time.Duration `yaml:"timeout"`
}

// RSSClient reads articles from a fixed list of RSS or Atom feeds.
type RSSClient struct {
	cfg    RSSConfig
	http   *http.Client
	logger *slog.Logger
}

// NewRSSClient creates a feed client.
func NewRSSClient(cfg RSSConfig) *RSSClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &RSSClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default().With("source", RSS),
	}
}

func (c *RSSClient) Name() Provider     { return RSS }
func (c *RSSClient) IsConfigured() bool { return len(c.cfg.Feeds) > 0 }

func (c *RSSClient) parse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	fp := gofeed.NewParser()
	fp.Client = c.http
	fp.UserAgent = "HopeShot/1.0"
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	return feed, nil
}

func (c *RSSClient) Fetch(ctx context.Context, q Query) FetchResult {
	if !c.IsConfigured() {
		return errorResult(RSS, fmt.Errorf("no RSS feeds configured: %w", ErrNotConfigured))
	}

	feeds := make([]*gofeed.Feed, len(c.cfg.Feeds))
	errs := make([]error, len(c.cfg.Feeds))
	var wg sync.WaitGroup
	for i, u := range c.cfg.Feeds {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			feeds[i], errs[i] = c.parse(ctx, u)
		}(i, u)
	}
	wg.Wait()

	terms := strings.Fields(strings.ToLower(q.Text))
	var articles []Article
	var failed []error
	for i, feed := range feeds {
		if errs[i] != nil {
			c.logger.Warn("feed fetch failed", "feed", c.cfg.Feeds[i], "error", errs[i])
			failed = append(failed, errs[i])
			continue
		}
		for _, item := range feed.Items {
			a := normalizeFeedItem(feed, item, c.cfg.Feeds[i])
			if !matchesTerms(a, terms) {
				continue
			}
			a.Language = q.Language
			articles = keep(articles, a)
		}
	}
	if len(failed) == len(feeds) {
		return errorResult(RSS, fmt.Errorf("all feeds failed: %w", errors.Join(failed...)))
	}

	total := len(articles)
	articles = removeDuplicateTitles(articles)
	if q.PageSize > 0 && len(articles) > q.PageSize {
		articles = articles[:q.PageSize]
	}
	return successResult(RSS, articles, total)
}

func normalizeFeedItem(feed *gofeed.Feed, item *gofeed.Item, feedURL string) Article {
	sourceID := feedURL
	if u, err := url.Parse(feedURL); err == nil && u.Host != "" {
		sourceID = strings.TrimPrefix(u.Host, "www.")
	}
	name := strings.TrimSpace(feed.Title)
	if name == "" {
		name = sourceID
	}

	var authors []string
	for _, p := range item.Authors {
		if p != nil && p.Name != "" {
			authors = append(authors, p.Name)
		}
	}

	published := item.Published
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC().Format(time.RFC3339)
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.UTC().Format(time.RFC3339)
	}

	image := ""
	if item.Image != nil {
		image = item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if image == "" && enc != nil && strings.HasPrefix(enc.Type, "image/") {
			image = enc.URL
		}
	}
	if image == "" {
		image = scraper.FirstImage(item.Content)
	}

	body := item.Content
	if body == "" {
		body = item.Description
	}
	return Article{
		Title:       scraper.PlainText(item.Title),
		Description: scraper.Snippet(scraper.PlainText(item.Description), 500),
		URL:         item.Link,
		URLToImage:  image,
		Author:      strings.Join(authors, ", "),
		PublishedAt: published,
		Source:      SourceRef{ID: sourceID, Name: name},
		Content:     scraper.Snippet(scraper.PlainText(body), 200),
		Provider:    RSS,
	}
}

func matchesTerms(a Article, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	text := strings.ToLower(a.Title + " " + a.Description)
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func (c *RSSClient) TestConnection(ctx context.Context) TestResult {
	if !c.IsConfigured() {
		return TestResult{Source: RSS, Status: StatusError, Message: "no RSS feeds configured"}
	}
	ok := 0
	var lastErr error
	for _, u := range c.cfg.Feeds {
		if _, err := c.parse(ctx, u); err != nil {
			lastErr = err
			continue
		}
		ok++
	}
	if ok == 0 {
		return TestResult{Source: RSS, Status: StatusError, Message: "Connection failed: " + lastErr.Error()}
	}
	return TestResult{Source: RSS, Status: StatusSuccess,
		Message: fmt.Sprintf("%d of %d feeds reachable", ok, len(c.cfg.Feeds))}
}
