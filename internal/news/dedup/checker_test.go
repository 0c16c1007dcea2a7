package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/RobinCoderZhao/hopeshot/internal/news/sources"
)

type fakeStore struct {
	urls      map[string]bool
	titles    []string
	urlErr    error
	titlesErr error
	since     time.Time
	urlCalls  int
}

func (f *fakeStore) URLExists(_ context.Context, url string) (bool, error) {
	f.urlCalls++
	if f.urlErr != nil {
		return false, f.urlErr
	}
	return f.urls[url], nil
}

func (f *fakeStore) RecentTitles(_ context.Context, since time.Time) ([]string, error) {
	f.since = since
	if f.titlesErr != nil {
		return nil, f.titlesErr
	}
	return f.titles, nil
}

func TestChecker_IsDuplicate(t *testing.T) {
	store := &fakeStore{
		urls:   map[string]bool{"https://a.example/story": true},
		titles: []string{"Community garden feeds hundreds of families"},
	}
	c := NewChecker(store, 0, 0)
	ctx := context.Background()

	dup, reason := c.IsDuplicate(ctx, sources.Article{Title: "x", URL: " HTTPS://A.example/story"})
	assert.Equal(t, dup, true)
	assert.Equal(t, reason, ReasonURL)

	dup, reason = c.IsDuplicate(ctx, sources.Article{Title: "community garden feeds hundreds of families", URL: "https://b.example"})
	assert.Equal(t, dup, true)
	assert.Equal(t, reason, ReasonTitle)

	dup, reason = c.IsDuplicate(ctx, sources.Article{Title: "New bridge opens", URL: "https://c.example"})
	assert.Equal(t, dup, false)
	assert.Equal(t, reason, "")
}

func TestChecker_EmptyFieldsAreNew(t *testing.T) {
	store := &fakeStore{urls: map[string]bool{"": true}}
	c := NewChecker(store, 0, 0)
	dup, _ := c.IsDuplicate(context.Background(), sources.Article{Title: "t", URL: ""})
	assert.Equal(t, dup, false)
	assert.Equal(t, store.urlCalls, 0)
}

func TestChecker_FailsOpen(t *testing.T) {
	store := &fakeStore{
		urlErr:    errors.New("db down"),
		titlesErr: errors.New("db down"),
		titles:    []string{"Same title"},
	}
	c := NewChecker(store, 0, 0)
	dup, _ := c.IsDuplicate(context.Background(), sources.Article{Title: "Same title", URL: "u"})
	assert.Equal(t, dup, false)

	fresh, skipped, stats := c.FilterExisting(context.Background(), []sources.Article{
		{Title: "Same title", URL: "u"},
	})
	assert.Equal(t, len(fresh), 1)
	assert.Equal(t, len(skipped), 0)
	assert.Equal(t, stats.Duplicates, 0)
}

func TestChecker_URLErrorSkipsTitleCheckInBothPaths(t *testing.T) {
	store := &fakeStore{
		urlErr: errors.New("db down"),
		titles: []string{"Same title"},
	}
	c := NewChecker(store, 0, 0)
	article := sources.Article{Title: "Same title", URL: "u"}

	dup, _ := c.IsDuplicate(context.Background(), article)
	assert.Equal(t, dup, false)

	fresh, skipped, stats := c.FilterExisting(context.Background(), []sources.Article{article})
	assert.Equal(t, len(fresh), 1)
	assert.Equal(t, len(skipped), 0)
	assert.Equal(t, stats.TitleMatches, 0)
}

func TestChecker_WindowBoundsTitleQuery(t *testing.T) {
	store := &fakeStore{}
	c := NewChecker(store, 0, 0)
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.IsDuplicate(context.Background(), sources.Article{Title: "t", URL: "u"})
	assert.Equal(t, store.since, now.Add(-30*24*time.Hour))
}

func TestChecker_FilterExisting(t *testing.T) {
	store := &fakeStore{
		urls:   map[string]bool{"https://old.example/1": true},
		titles: []string{"Scientists restore coral reef"},
	}
	c := NewChecker(store, DefaultThreshold, DefaultWindow)

	fresh, skipped, stats := c.FilterExisting(context.Background(), []sources.Article{
		{Title: "Anything", URL: "https://old.example/1"},
		{Title: "scientists restore coral reef", URL: "https://new.example/2"},
		{Title: "Teen invents water filter", URL: "https://new.example/3"},
		{Title: "", URL: "https://old.example/1"},
	})

	assert.Equal(t, len(fresh), 2)
	assert.Equal(t, fresh[0].URL, "https://new.example/3")
	assert.Equal(t, len(skipped), 2)
	assert.Equal(t, stats.Checked, 4)
	assert.Equal(t, stats.Duplicates, 2)
	assert.Equal(t, stats.URLMatches, 1)
	assert.Equal(t, stats.TitleMatches, 1)
	assert.Equal(t, stats.TitlesCompared, 1)
	assert.Equal(t, stats.WindowDays, 30)
}
