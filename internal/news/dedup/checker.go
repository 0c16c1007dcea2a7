package dedup

import (
	"context"
	"log/slog"
	"time"

	"github.com/RobinCoderZhao/hopeshot/internal/news/sources"
)

// DefaultWindow bounds how far back stored titles are compared.
const DefaultWindow = 30 * 24 * time.Hour

// Store is the read side of the persisted article store.
type Store interface {
	URLExists(ctx context.Context, url string) (bool, error)
	RecentTitles(ctx context.Context, since time.Time) ([]string, error)
}

// Checker finds articles that were already stored by an earlier run.
// Any store error fails open: the article is treated as new.
type Checker struct {
	store     Store
	threshold float64
	window    time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewChecker creates a Checker over store.
func NewChecker(store Store, threshold float64, window time.Duration) *Checker {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Checker{
		store:     store,
		threshold: threshold,
		window:    window,
		now:       time.Now,
		logger:    slog.Default(),
	}
}

// IsDuplicate checks one article against the store.
func (c *Checker) IsDuplicate(ctx context.Context, a sources.Article) (bool, string) {
	if a.URL == "" || a.Title == "" {
		return false, ""
	}
	if dup, reason, ok := c.checkURL(ctx, a); !ok || dup {
		return dup, reason
	}
	stored := c.recentTitles(ctx)
	if matchTitle(tokenize(a.Title), stored, c.threshold) {
		return true, ReasonTitle
	}
	return false, ""
}

// checkURL reports ok=false when the lookup failed and the caller must
// treat the article as new.
func (c *Checker) checkURL(ctx context.Context, a sources.Article) (dup bool, reason string, ok bool) {
	exists, err := c.store.URLExists(ctx, NormalizeURL(a.URL))
	if err != nil {
		c.logger.Warn("duplicate URL check failed, keeping article", "url", a.URL, "error", err)
		return false, "", false
	}
	if exists {
		return true, ReasonURL, true
	}
	return false, "", true
}

func (c *Checker) recentTitles(ctx context.Context) []tokenSet {
	titles, err := c.store.RecentTitles(ctx, c.now().Add(-c.window))
	if err != nil {
		c.logger.Warn("loading stored titles failed, skipping title check", "error", err)
		return nil
	}
	sets := make([]tokenSet, 0, len(titles))
	for _, t := range titles {
		if s := tokenize(t); len(s) > 0 {
			sets = append(sets, s)
		}
	}
	return sets
}

func matchTitle(toks tokenSet, stored []tokenSet, threshold float64) bool {
	if len(toks) == 0 {
		return false
	}
	for _, s := range stored {
		if jaccard(toks, s) >= threshold {
			return true
		}
	}
	return false
}

// Skipped is an article dropped because it already exists.
type Skipped struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Stats summarizes a FilterExisting pass.
type Stats struct {
	Checked        int     `json:"checked"`
	Duplicates     int     `json:"duplicates"`
	URLMatches     int     `json:"url_matches"`
	TitleMatches   int     `json:"title_matches"`
	TitlesCompared int     `json:"titles_compared"`
	WindowDays     int     `json:"window_days"`
	Threshold      float64 `json:"threshold"`
}

// FilterExisting drops articles already in the store. Stored titles are
// loaded once for the whole batch.
func (c *Checker) FilterExisting(ctx context.Context, articles []sources.Article) ([]sources.Article, []Skipped, Stats) {
	stats := Stats{
		Checked:    len(articles),
		WindowDays: int(c.window / (24 * time.Hour)),
		Threshold:  c.threshold,
	}
	if len(articles) == 0 {
		return articles, nil, stats
	}

	stored := c.recentTitles(ctx)
	stats.TitlesCompared = len(stored)

	fresh := make([]sources.Article, 0, len(articles))
	var skipped []Skipped
	for _, a := range articles {
		if a.URL == "" || a.Title == "" {
			fresh = append(fresh, a)
			continue
		}
		dup, reason, ok := c.checkURL(ctx, a)
		if !ok {
			// Same fail-open rule as IsDuplicate: no title check either.
			fresh = append(fresh, a)
			continue
		}
		if !dup && matchTitle(tokenize(a.Title), stored, c.threshold) {
			dup, reason = true, ReasonTitle
		}
		if !dup {
			fresh = append(fresh, a)
			continue
		}
		switch reason {
		case ReasonURL:
			stats.URLMatches++
		case ReasonTitle:
			stats.TitleMatches++
		}
		skipped = append(skipped, Skipped{URL: a.URL, Title: a.Title, Reason: reason})
	}
	stats.Duplicates = len(skipped)
	return fresh, skipped, stats
}
