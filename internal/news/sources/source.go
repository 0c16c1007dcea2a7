// Package sources implements one client per external news provider. Every
// client normalizes its provider's payload into Article and reports failures
// as a FetchResult instead of returning an error.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider identifies the client that produced an article.
type Provider string

const (
	AFP      Provider = "afp"
	NewsAPI  Provider = "newsapi"
	NewsData Provider = "newsdata"
	RSS      Provider = "rss"
)

// Status is the outcome of a client call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

var (
	// ErrNotConfigured means required credentials are missing.
	ErrNotConfigured = errors.New("source not configured")
	// ErrAuthentication means the provider rejected our credentials or token.
	ErrAuthentication = errors.New("authentication failed")
)

const defaultTimeout = 15 * time.Second

// SourceRef names the publication an article came from.
type SourceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Article is the provider-independent article record.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	URLToImage  string    `json:"urlToImage,omitempty"`
	Author      string    `json:"author,omitempty"`
	PublishedAt string    `json:"publishedAt"`
	Source      SourceRef `json:"source"`
	Content     string    `json:"content,omitempty"`
	Provider    Provider  `json:"api_source"`
	Language    string    `json:"language,omitempty"`
}

// Published parses PublishedAt, returning the zero time when it is not a
// recognizable timestamp.
func (a Article) Published() time.Time {
	t, _ := time.Parse(time.RFC3339, a.PublishedAt)
	return t
}

// Query is one fetch request.
type Query struct {
	Text     string
	Language string
	PageSize int
}

// FetchResult is the outcome of Client.Fetch.
type FetchResult struct {
	Status       Status    `json:"status"`
	Source       Provider  `json:"source"`
	Articles     []Article `json:"articles"`
	TotalResults int       `json:"totalResults"`
	Error        string    `json:"error,omitempty"`
	Err          error     `json:"-"`
}

// TestResult is the outcome of Client.TestConnection.
type TestResult struct {
	Source  Provider `json:"source"`
	Status  Status   `json:"status"`
	Message string   `json:"message"`
}

// Client is implemented by every news provider.
type Client interface {
	// Name returns the provider tag stamped on every article.
	Name() Provider

	// IsConfigured is true iff all required credentials are non-empty.
	IsConfigured() bool

	// Fetch retrieves and normalizes articles. It never returns an error;
	// failures come back as a result with StatusError.
	Fetch(ctx context.Context, q Query) FetchResult

	// TestConnection checks credentials and reachability.
	TestConnection(ctx context.Context) TestResult
}

func errorResult(p Provider, err error) FetchResult {
	return FetchResult{
		Status:   StatusError,
		Source:   p,
		Articles: []Article{},
		Error:    err.Error(),
		Err:      err,
	}
}

func successResult(p Provider, articles []Article, total int) FetchResult {
	articles = removeDuplicateTitles(articles)
	if total < len(articles) {
		total = len(articles)
	}
	return FetchResult{
		Status:       StatusSuccess,
		Source:       p,
		Articles:     articles,
		TotalResults: total,
	}
}

// removeDuplicateTitles collapses articles sharing a trimmed, lower-cased
// title, keeping the first occurrence.
func removeDuplicateTitles(articles []Article) []Article {
	seen := make(map[string]bool, len(articles))
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		key := strings.ToLower(strings.TrimSpace(a.Title))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

// decodeEach unmarshals each element of a provider result list on its own.
// Elements that do not decode are dropped and counted.
func decodeEach[T any](items []json.RawMessage) (out []T, dropped int) {
	out = make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			dropped++
			continue
		}
		out = append(out, v)
	}
	return out, dropped
}

// stringList accepts a JSON string, an array of strings or null. Providers
// send author fields in all three shapes.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case raw == "null":
		*l = nil
		return nil
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s = strings.TrimSpace(s); s != "" {
			*l = stringList{s}
		} else {
			*l = nil
		}
		return nil
	}
	var items []*string
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make(stringList, 0, len(items))
	for _, s := range items {
		if s != nil && strings.TrimSpace(*s) != "" {
			out = append(out, strings.TrimSpace(*s))
		}
	}
	*l = out
	return nil
}

// keep appends a to list when it survived normalization with a title and URL.
func keep(list []Article, a Article) []Article {
	a.Title = strings.TrimSpace(a.Title)
	a.URL = strings.TrimSpace(a.URL)
	if a.Title == "" || a.URL == "" {
		return list
	}
	return append(list, a)
}

var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
}

// normalizeTime rewrites known provider timestamp formats as RFC 3339 UTC.
// Unknown formats are returned unchanged.
func normalizeTime(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return raw
}

func clampPageSize(n, max int) int {
	if n <= 0 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}

// getJSON issues req and decodes a 2xx JSON body into out. Non-2xx bodies
// are returned in the error, truncated.
func getJSON(client *http.Client, req *http.Request, out any) (int, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "HopeShot/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return resp.StatusCode, fmt.Errorf("HTTP %d - %s", resp.StatusCode, msg)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("parse response: %w", err)
	}
	return resp.StatusCode, nil
}
