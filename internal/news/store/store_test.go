package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RobinCoderZhao/hopeshot/internal/news/analyzer"
	"github.com/RobinCoderZhao/hopeshot/internal/news/dedup"
	"github.com/RobinCoderZhao/hopeshot/internal/news/sources"
	"github.com/RobinCoderZhao/hopeshot/pkg/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.Open(storage.Config{Driver: storage.SQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := New(context.Background(), db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func record(url, title string, categories []string, codes []int, impact string) Record {
	return Record{
		Article: sources.Article{
			Title:       title,
			Description: "desc",
			URL:         url,
			PublishedAt: "2026-03-01T08:00:00Z",
			Source:      sources.SourceRef{ID: "bbc", Name: "BBC"},
			Provider:    sources.NewsAPI,
		},
		Analysis: analyzer.Result{
			Sentiment:          "positive",
			ConfidenceScore:    0.9,
			Emotions:           analyzer.Emotions{Hope: 0.8, Joy: 0.4},
			Categories:         categories,
			ImpactLevel:        impact,
			LocationCodes:      codes,
			OverallHopefulness: 0.7,
			Reasoning:          "good news",
			AnalyzerType:       "gemini",
		},
		PromptID:   "v1",
		PromptName: "Comprehensive",
	}
}

func TestInsert_UniqueByURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, record("https://x.example/a", "Reef recovers", []string{"environment"}, []int{36}, "National"))
	if err != nil {
		t.Fatal(err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}

	exists, err := s.URLExists(ctx, "  HTTPS://X.EXAMPLE/A")
	if err != nil || !exists {
		t.Fatalf("expected url to exist, got %v (%v)", exists, err)
	}
	exists, _ = s.URLExists(ctx, "https://x.example/b")
	if exists {
		t.Fatal("unexpected url match")
	}

	_, err = s.Insert(ctx, record("https://X.example/a ", "Other title", nil, nil, "Global"))
	if !errors.Is(err, ErrArticleExists) {
		t.Fatalf("expected ErrArticleExists, got %v", err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Fatalf("expected 1 article, got %d", n)
	}
}

func TestList_ResolvesLinksAndFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, record("u1", "Solar farm opens", []string{"energy", "environment"}, []int{404}, "National"))
	mustInsert(t, s, record("u2", "Global vaccine milestone", []string{"health"}, nil, "Global"))
	mustInsert(t, s, record("u3", "Town library reopens", []string{"community", "environment"}, []int{250, 150}, "Local"))

	all, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(all))
	}
	// newest first; equal timestamps fall back to id order
	if all[0].URL != "u3" {
		t.Fatalf("expected newest first, got %s", all[0].URL)
	}
	if len(all[0].Categories) != 2 || all[0].Categories[0] != "community" {
		t.Fatalf("unexpected categories: %v", all[0].Categories)
	}
	if len(all[0].LocationCodes) != 2 || all[0].LocationNames[0] != "Europe" {
		t.Fatalf("unexpected locations: %v %v", all[0].LocationCodes, all[0].LocationNames)
	}
	if all[1].LocationCodes[0] != 1 || all[1].LocationNames[0] != "World" {
		t.Fatalf("expected World default, got %v", all[1].LocationCodes)
	}
	if all[2].Sentiment != "positive" || all[2].Emotions.Hope != 0.8 || all[2].APISource != "newsapi" {
		t.Fatalf("unexpected article: %+v", all[2])
	}
	if all[2].Language != "en" {
		t.Fatalf("expected default language en, got %q", all[2].Language)
	}

	env, err := s.List(ctx, Filter{Categories: []string{"environment"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(env) != 2 {
		t.Fatalf("expected 2 environment articles, got %d", len(env))
	}

	local, err := s.List(ctx, Filter{Categories: []string{"environment"}, ImpactLevels: []string{"Local"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(local) != 1 || local[0].URL != "u3" {
		t.Fatalf("unexpected filtered list: %+v", local)
	}

	none, err := s.List(ctx, Filter{ImpactLevels: []string{"Regional"}})
	if err != nil {
		t.Fatal(err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", none)
	}
}

func TestRecentTitles_Window(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return now.Add(-40 * 24 * time.Hour) }
	mustInsert(t, s, record("old", "Old story", nil, nil, "Global"))
	s.now = func() time.Time { return now.Add(-2 * time.Hour) }
	mustInsert(t, s, record("new", "New story", nil, nil, "Global"))
	s.now = func() time.Time { return now }

	titles, err := s.RecentTitles(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(titles) != 1 || titles[0] != "New story" {
		t.Fatalf("unexpected titles: %v", titles)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalArticles != 2 || stats.Last24h != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsert(t, s, record("a", "A", []string{"health", "science"}, []int{404}, "National"))
	mustInsert(t, s, record("b", "B", []string{"health"}, []int{404, 2}, "Regional"))
	mustInsert(t, s, record("c", "C", nil, nil, "Global"))

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalArticles != 3 || st.TotalCategories != 2 || st.Last24h != 3 {
		t.Fatalf("unexpected totals: %+v", st)
	}
	if st.TopCategories[0].Name != "health" || st.TopCategories[0].Count != 2 {
		t.Fatalf("unexpected top category: %+v", st.TopCategories)
	}
	if st.TopLocations[0].Code != 404 || st.TopLocations[0].Name != "Kenya" || st.TopLocations[0].Count != 2 {
		t.Fatalf("unexpected top location: %+v", st.TopLocations)
	}
	if len(st.ImpactLevels) != 3 {
		t.Fatalf("expected 3 impact levels, got %+v", st.ImpactLevels)
	}
}

func TestStore_BacksDuplicateChecker(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsert(t, s, record("https://a.example/1", "Scientists restore coral reef", nil, nil, "Global"))

	c := dedup.NewChecker(s, 0, 0)
	dup, reason := c.IsDuplicate(ctx, sources.Article{Title: "x", URL: "https://A.example/1"})
	if !dup || reason != dedup.ReasonURL {
		t.Fatalf("expected URL match, got %v %q", dup, reason)
	}
	dup, reason = c.IsDuplicate(ctx, sources.Article{Title: "scientists restore coral reef", URL: "https://b.example/2"})
	if !dup || reason != dedup.ReasonTitle {
		t.Fatalf("expected title match, got %v %q", dup, reason)
	}
}

func mustInsert(t *testing.T, s *Store, r Record) {
	t.Helper()
	if _, err := s.Insert(context.Background(), r); err != nil {
		t.Fatalf("insert %s: %v", r.Article.URL, err)
	}
}
