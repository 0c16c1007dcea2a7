// Package aggregator fans a query out to every configured news source,
// merges the results in priority order and removes cross-source duplicates.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RobinCoderZhao/hopeshot/internal/news/dedup"
	"github.com/RobinCoderZhao/hopeshot/internal/news/sources"
)

var (
	// ErrNoSources is returned when no source is configured and active.
	ErrNoSources = errors.New("no news sources configured")
	// ErrUnknownSource is returned by FetchSource for an unregistered provider.
	ErrUnknownSource = errors.New("unknown news source")
	// ErrDailyLimit means the provider's daily fetch allowance is used up.
	ErrDailyLimit = errors.New("daily request limit reached")
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// SourceSettings tunes one provider.
type SourceSettings struct {
	Active        bool `yaml:"active" json:"active"`
	Priority      int  `yaml:"priority" json:"priority"`
	MaxPerRequest int  `yaml:"max_per_request" json:"max_per_request"`
	// DailyLimit caps fetches per provider per day; 0 means unlimited.
	DailyLimit int `yaml:"daily_limit" json:"daily_limit"`
}

// DefaultSettings returns the built-in provider order: AFP, NewsAPI,
// NewsData, then RSS.
func DefaultSettings() map[sources.Provider]SourceSettings {
	return map[sources.Provider]SourceSettings{
		sources.AFP:      {Active: true, Priority: 1, MaxPerRequest: 100},
		sources.NewsAPI:  {Active: true, Priority: 2, MaxPerRequest: 100, DailyLimit: 100},
		sources.NewsData: {Active: true, Priority: 3, MaxPerRequest: 10, DailyLimit: 200},
		sources.RSS:      {Active: true, Priority: 4, MaxPerRequest: 50},
	}
}

// Config configures an Aggregator.
type Config struct {
	Settings  map[sources.Provider]SourceSettings
	Timeout   time.Duration
	Threshold float64
}

// SourceFailure describes a source that returned no usable result.
type SourceFailure struct {
	Source sources.Provider `json:"source"`
	Error  string           `json:"error"`
}

// Result is the merged outcome of FetchUnified.
type Result struct {
	Status            string             `json:"status"`
	Query             string             `json:"query"`
	Articles          []sources.Article  `json:"articles"`
	TotalSources      int                `json:"totalSources"`
	SourcesUsed       []sources.Provider `json:"sourcesUsed"`
	SourcesFailed     []SourceFailure    `json:"sourcesFailed"`
	TotalArticles     int                `json:"totalArticles"`
	DuplicatesRemoved int                `json:"duplicatesRemoved"`
	Removed           []dedup.Removed    `json:"-"`
}

// Aggregator owns the set of source clients.
type Aggregator struct {
	clients  []sources.Client
	settings map[sources.Provider]SourceSettings
	dedup    *dedup.Deduplicator
	timeout  time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	day   string
	usage map[sources.Provider]int
	now   func() time.Time
}

// New creates an Aggregator. Providers missing from cfg.Settings take the
// defaults; unknown providers sort last.
func New(clients []sources.Client, cfg Config) *Aggregator {
	settings := DefaultSettings()
	for p, s := range cfg.Settings {
		settings[p] = s
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Aggregator{
		clients:  clients,
		settings: settings,
		dedup:    dedup.New(cfg.Threshold),
		timeout:  timeout,
		logger:   slog.Default(),
		usage:    make(map[sources.Provider]int),
		now:      time.Now,
	}
}

func (a *Aggregator) priority(p sources.Provider) int {
	if s, ok := a.settings[p]; ok && s.Priority > 0 {
		return s.Priority
	}
	return 1 << 30
}

func (a *Aggregator) active(p sources.Provider) bool {
	s, ok := a.settings[p]
	return !ok || s.Active
}

// available returns configured, active clients in priority order.
func (a *Aggregator) available() []sources.Client {
	var out []sources.Client
	for _, c := range a.clients {
		if c.IsConfigured() && a.active(c.Name()) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return a.priority(out[i].Name()) < a.priority(out[j].Name())
	})
	return out
}

// AvailableSources lists configured, active providers in priority order.
func (a *Aggregator) AvailableSources() []sources.Provider {
	clients := a.available()
	out := make([]sources.Provider, len(clients))
	for i, c := range clients {
		out[i] = c.Name()
	}
	return out
}

// takeQuota counts one fetch against the provider's daily limit.
func (a *Aggregator) takeQuota(p sources.Provider) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if today := a.now().Format(time.DateOnly); today != a.day {
		a.day = today
		a.usage = make(map[sources.Provider]int)
	}
	if limit := a.settings[p].DailyLimit; limit > 0 && a.usage[p] >= limit {
		return false
	}
	a.usage[p]++
	return true
}

func normalizePageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}

// fetchOne runs one client with a timeout. A panicking client becomes an
// error result.
func (a *Aggregator) fetchOne(ctx context.Context, c sources.Client, q sources.Query) (res sources.FetchResult) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			res = sources.FetchResult{
				Status:   sources.StatusError,
				Source:   c.Name(),
				Articles: []sources.Article{},
				Error:    fmt.Sprintf("Fetch failed: %v", r),
			}
		}
	}()

	start := time.Now()
	res = c.Fetch(ctx, q)
	res.Source = c.Name()
	a.logger.Info("source fetched",
		"source", c.Name(), "status", res.Status, "articles", len(res.Articles),
		"duration", time.Since(start).Round(time.Millisecond))
	return res
}

// FetchUnified queries every available source concurrently, orders the
// merged articles by source priority, removes duplicates and truncates to
// q.PageSize.
func (a *Aggregator) FetchUnified(ctx context.Context, q sources.Query) (*Result, error) {
	clients := a.available()
	if len(clients) == 0 {
		return nil, ErrNoSources
	}
	pageSize := normalizePageSize(q.PageSize)
	perSource := max(1, pageSize/len(clients))

	results := make([]sources.FetchResult, len(clients))
	var wg sync.WaitGroup
	for i, c := range clients {
		if !a.takeQuota(c.Name()) {
			results[i] = sources.FetchResult{
				Status: sources.StatusError,
				Source: c.Name(),
				Error:  ErrDailyLimit.Error(),
			}
			continue
		}
		sub := q
		sub.PageSize = perSource
		if m := a.settings[c.Name()].MaxPerRequest; m > 0 && sub.PageSize > m {
			sub.PageSize = m
		}
		wg.Add(1)
		go func(i int, c sources.Client, sub sources.Query) {
			defer wg.Done()
			results[i] = a.fetchOne(ctx, c, sub)
		}(i, c, sub)
	}
	wg.Wait()

	out := &Result{
		Status:        "success",
		Query:         q.Text,
		TotalSources:  len(clients),
		SourcesUsed:   []sources.Provider{},
		SourcesFailed: []SourceFailure{},
	}
	var all []sources.Article
	for _, r := range results {
		if r.Status != sources.StatusSuccess {
			msg := r.Error
			if msg == "" {
				msg = "Unknown error"
			}
			out.SourcesFailed = append(out.SourcesFailed, SourceFailure{Source: r.Source, Error: msg})
			continue
		}
		out.SourcesUsed = append(out.SourcesUsed, r.Source)
		all = append(all, r.Articles...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return a.priority(all[i].Provider) < a.priority(all[j].Provider)
	})

	unique, removed := a.dedup.DedupeExplain(all)
	out.DuplicatesRemoved = len(all) - len(unique)
	out.Removed = removed
	if len(unique) > pageSize {
		unique = unique[:pageSize]
	}
	if unique == nil {
		unique = []sources.Article{}
	}
	out.Articles = unique
	out.TotalArticles = len(unique)
	return out, nil
}

// FetchSource queries a single provider without merging or deduplication.
// The daily limit still applies.
func (a *Aggregator) FetchSource(ctx context.Context, p sources.Provider, q sources.Query) (sources.FetchResult, error) {
	var client sources.Client
	for _, c := range a.clients {
		if c.Name() == p {
			client = c
			break
		}
	}
	if client == nil {
		return sources.FetchResult{}, fmt.Errorf("%w: %s", ErrUnknownSource, p)
	}
	if !client.IsConfigured() {
		return sources.FetchResult{}, fmt.Errorf("%s: %w", p, sources.ErrNotConfigured)
	}
	if !a.takeQuota(p) {
		return sources.FetchResult{}, fmt.Errorf("%s: %w", p, ErrDailyLimit)
	}
	q.PageSize = normalizePageSize(q.PageSize)
	if m := a.settings[p].MaxPerRequest; m > 0 && q.PageSize > m {
		q.PageSize = m
	}
	return a.fetchOne(ctx, client, q), nil
}

// TestReport is the outcome of TestAll.
type TestReport struct {
	Status        string                                  `json:"status"`
	SourcesTested int                                     `json:"sources_tested"`
	Results       map[sources.Provider]sources.TestResult `json:"results"`
}

// TestAll checks every configured source concurrently.
func (a *Aggregator) TestAll(ctx context.Context) TestReport {
	var configured []sources.Client
	for _, c := range a.clients {
		if c.IsConfigured() {
			configured = append(configured, c)
		}
	}

	results := make([]sources.TestResult, len(configured))
	var wg sync.WaitGroup
	for i, c := range configured {
		wg.Add(1)
		go func(i int, c sources.Client) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = sources.TestResult{Source: c.Name(), Status: sources.StatusError, Message: fmt.Sprintf("Test failed: %v", r)}
				}
			}()
			tctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			results[i] = c.TestConnection(tctx)
		}(i, c)
	}
	wg.Wait()

	report := TestReport{Status: "success", Results: make(map[sources.Provider]sources.TestResult, len(results))}
	for i, r := range results {
		report.Results[configured[i].Name()] = r
	}
	report.SourcesTested = len(report.Results)
	return report
}

// SourceStatus describes one provider for SourceInfo.
type SourceStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Active     bool   `json:"active"`
	Priority   int    `json:"priority"`
	DailyLimit int    `json:"daily_limit,omitempty"`
	UsedToday  int    `json:"used_today"`
}

// Info is the outcome of SourceInfo.
type Info struct {
	Status        string                            `json:"status"`
	Sources       map[sources.Provider]SourceStatus `json:"sources"`
	PriorityOrder []sources.Provider                `json:"priority_order"`
}

// SourceInfo reports the configuration state of every registered client.
func (a *Aggregator) SourceInfo() Info {
	a.mu.Lock()
	usage := make(map[sources.Provider]int, len(a.usage))
	if a.day == a.now().Format(time.DateOnly) {
		for p, n := range a.usage {
			usage[p] = n
		}
	}
	a.mu.Unlock()

	info := Info{Status: "success", Sources: make(map[sources.Provider]SourceStatus, len(a.clients))}
	order := make([]sources.Client, len(a.clients))
	copy(order, a.clients)
	sort.SliceStable(order, func(i, j int) bool {
		return a.priority(order[i].Name()) < a.priority(order[j].Name())
	})
	for _, c := range order {
		p := c.Name()
		s := a.settings[p]
		info.Sources[p] = SourceStatus{
			Name:       strings.ToUpper(string(p)),
			Configured: c.IsConfigured(),
			Active:     a.active(p),
			Priority:   a.priority(p),
			DailyLimit: s.DailyLimit,
			UsedToday:  usage[p],
		}
		info.PriorityOrder = append(info.PriorityOrder, p)
	}
	return info
}
