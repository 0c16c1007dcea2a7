// Package dedup removes repeated stories: within one request across
// sources, and across runs against the persisted article store.
//
// Two articles are duplicates when their trimmed, lower-cased URLs are equal
// or when the token-set similarity of their titles reaches the threshold.
// Articles with an empty URL or title never match on that key.
package dedup

import (
	"strings"

	"github.com/RobinCoderZhao/hopeshot/internal/news/sources"
)

// DefaultThreshold is the single title-similarity cut-off used for both
// within-request and cross-run checks.
const DefaultThreshold = 0.8

// Reasons reported for a duplicate.
const (
	ReasonURL   = "URL match"
	ReasonTitle = "Title similarity"
)

type tokenSet map[string]struct{}

func tokenize(title string) tokenSet {
	fields := strings.Fields(strings.ToLower(title))
	set := make(tokenSet, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b tokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Similarity is the intersection over union of the lower-cased,
// whitespace-separated word sets of two titles.
func Similarity(a, b string) float64 {
	return jaccard(tokenize(a), tokenize(b))
}

// NormalizeURL is the exact-match key for URLs.
func NormalizeURL(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}

// Deduplicator removes duplicates inside one batch. First seen wins.
type Deduplicator struct {
	threshold float64
}

// New returns a Deduplicator; threshold <= 0 selects DefaultThreshold.
func New(threshold float64) *Deduplicator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Deduplicator{threshold: threshold}
}

// Threshold returns the similarity cut-off in use.
func (d *Deduplicator) Threshold() float64 { return d.threshold }

// Dedupe returns articles in input order with later duplicates removed.
func (d *Deduplicator) Dedupe(articles []sources.Article) []sources.Article {
	unique, _ := d.dedupe(articles)
	return unique
}

// Removed describes one article dropped by Dedupe.
type Removed struct {
	Article sources.Article `json:"article"`
	Reason  string          `json:"reason"`
	Matched string          `json:"matched"`
}

// DedupeExplain is Dedupe that also reports why each article was dropped.
func (d *Deduplicator) DedupeExplain(articles []sources.Article) ([]sources.Article, []Removed) {
	return d.dedupe(articles)
}

func (d *Deduplicator) dedupe(articles []sources.Article) ([]sources.Article, []Removed) {
	seenURLs := make(map[string]string, len(articles))
	type accepted struct {
		title  string
		tokens tokenSet
	}
	var titles []accepted

	unique := make([]sources.Article, 0, len(articles))
	var removed []Removed

outer:
	for _, a := range articles {
		key := NormalizeURL(a.URL)
		if key != "" {
			if prev, ok := seenURLs[key]; ok {
				removed = append(removed, Removed{Article: a, Reason: ReasonURL, Matched: prev})
				continue
			}
		}

		toks := tokenize(a.Title)
		if len(toks) > 0 {
			for _, t := range titles {
				if jaccard(toks, t.tokens) >= d.threshold {
					removed = append(removed, Removed{Article: a, Reason: ReasonTitle, Matched: t.title})
					continue outer
				}
			}
			titles = append(titles, accepted{title: a.Title, tokens: toks})
		}
		if key != "" {
			seenURLs[key] = a.URL
		}
		unique = append(unique, a)
	}
	return unique, removed
}
